package app

import (
	"context"
	"fmt"
	"strings"

	"quiz-content-service/internal/domain"
)

// QuestionRepository abstracts the position ledger and answer store. Every
// mutating method is atomic: it either commits with the dense 1..N position
// invariant intact or leaves the prior state untouched.
type QuestionRepository interface {
	List(ctx context.Context) ([]domain.Question, error)
	GetByID(ctx context.Context, id int64) (domain.Question, error)
	GetByPosition(ctx context.Context, position int) (domain.Question, error)
	Count(ctx context.Context) (int, error)
	// Insert places the question at position (clamped into [1, N+1]); zero
	// means append. Questions at or after the slot shift up by one.
	Insert(ctx context.Context, q domain.Question, position int) (domain.Question, error)
	// Update applies a partial content update, moving and/or replacing answers
	// when the update asks for it. Returns false when the id is unknown.
	Update(ctx context.Context, id int64, upd domain.QuestionUpdate) (bool, error)
	// Move reinserts the question at position (clamped into [1, N]) and
	// recompacts the whole collection. Returns false when the id is unknown.
	Move(ctx context.Context, id int64, position int) (bool, error)
	ReplaceAnswers(ctx context.Context, questionID int64, answers []domain.Answer) error
	// Delete removes the question, cascading its answers, and recompacts.
	// Returns false when the id is unknown.
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) error
}

// ParticipationRepository grades and persists submissions. Submit runs the
// grading read and both writes (score append, participation upsert) in one
// atomic unit against a consistent question snapshot.
type ParticipationRepository interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error)
	ListScores(ctx context.Context, limit int, mode string) ([]domain.Score, error)
	ListParticipations(ctx context.Context, limit int) ([]domain.Participation, error)
	DeleteAllParticipations(ctx context.Context) error
	DeleteAllScores(ctx context.Context) error
}

const (
	defaultScoreLimit = 10
	maxScoreLimit     = 100
)

// QuizService contains the quiz content use cases.
type QuizService struct {
	questions      QuestionRepository
	participations ParticipationRepository
	scoreboard     *ScoreboardHub
}

func NewQuizService(questions QuestionRepository, participations ParticipationRepository) *QuizService {
	return &QuizService{
		questions:      questions,
		participations: participations,
		scoreboard:     NewScoreboardHub(),
	}
}

// ListQuestions returns every question in position order with nested answers.
func (s *QuizService) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	return s.questions.List(ctx)
}

func (s *QuizService) GetQuestion(ctx context.Context, id int64) (domain.Question, error) {
	return s.questions.GetByID(ctx, id)
}

func (s *QuizService) GetQuestionByPosition(ctx context.Context, position int) (domain.Question, error) {
	return s.questions.GetByPosition(ctx, position)
}

func (s *QuizService) QuizInfo(ctx context.Context) (domain.QuizInfo, error) {
	n, err := s.questions.Count(ctx)
	if err != nil {
		return domain.QuizInfo{}, err
	}
	return domain.QuizInfo{Size: n}, nil
}

// InsertQuestion creates a question; position zero appends.
func (s *QuizService) InsertQuestion(ctx context.Context, q domain.Question, position int) (domain.Question, error) {
	q.Title = strings.TrimSpace(q.Title)
	if q.Title == "" {
		return domain.Question{}, fmt.Errorf("%w: question title is required", domain.ErrInvalidSubmission)
	}
	return s.questions.Insert(ctx, q, position)
}

func (s *QuizService) UpdateQuestion(ctx context.Context, id int64, upd domain.QuestionUpdate) (bool, error) {
	return s.questions.Update(ctx, id, upd)
}

func (s *QuizService) MoveQuestion(ctx context.Context, id int64, position int) (bool, error) {
	return s.questions.Move(ctx, id, position)
}

func (s *QuizService) ReplaceAnswers(ctx context.Context, questionID int64, answers []domain.Answer) error {
	return s.questions.ReplaceAnswers(ctx, questionID, answers)
}

func (s *QuizService) DeleteQuestion(ctx context.Context, id int64) (bool, error) {
	return s.questions.Delete(ctx, id)
}

func (s *QuizService) DeleteAllQuestions(ctx context.Context) error {
	return s.questions.DeleteAll(ctx)
}

// SubmitParticipation grades a submission, appends a score row, upserts the
// player's participation, and pushes a fresh scoreboard to live subscribers.
func (s *QuizService) SubmitParticipation(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	sub.Player = strings.TrimSpace(sub.Player)
	if sub.Player == "" {
		return domain.SubmissionResult{}, fmt.Errorf("%w: player name is required", domain.ErrInvalidSubmission)
	}

	result, err := s.participations.Submit(ctx, sub)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	if entries, lerr := s.participations.ListScores(ctx, defaultScoreLimit, ""); lerr == nil {
		s.scoreboard.Broadcast(entries)
	}
	return result, nil
}

// ListScores returns the leaderboard ordered by score descending, ties broken
// by earliest submission. The limit is clamped into [1, 100]; zero means the
// default of 10.
func (s *QuizService) ListScores(ctx context.Context, limit int, mode string) ([]domain.Score, error) {
	if limit <= 0 {
		limit = defaultScoreLimit
	}
	if limit > maxScoreLimit {
		limit = maxScoreLimit
	}
	return s.participations.ListScores(ctx, limit, mode)
}

func (s *QuizService) ListParticipations(ctx context.Context, limit int) ([]domain.Participation, error) {
	if limit <= 0 {
		limit = defaultScoreLimit
	}
	return s.participations.ListParticipations(ctx, limit)
}

func (s *QuizService) DeleteAllParticipations(ctx context.Context) error {
	return s.participations.DeleteAllParticipations(ctx)
}

// RebuildDB wipes questions, answers, scores, and participations.
func (s *QuizService) RebuildDB(ctx context.Context) error {
	if err := s.questions.DeleteAll(ctx); err != nil {
		return err
	}
	if err := s.participations.DeleteAllScores(ctx); err != nil {
		return err
	}
	return s.participations.DeleteAllParticipations(ctx)
}

// SubscribeScoreboard returns a channel receiving scoreboard snapshots after
// each graded submission. The caller must invoke cancel to avoid leaks.
func (s *QuizService) SubscribeScoreboard() (<-chan domain.Scoreboard, func()) {
	return s.scoreboard.Subscribe()
}
