package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"quiz-content-service/internal/domain"
)

// Store is an in-memory implementation of the question and participation
// repositories, used for tests and as a storage fallback when no database is
// configured. A single RWMutex serializes every ledger mutation end to end,
// so the dense 1..N position invariant holds at every point a reader can
// observe; with no eager uniqueness constraint there is no need for the
// scratch-range rewrite the SQL backends perform.
type Store struct {
	mu    sync.RWMutex
	clock func() time.Time

	nextQuestionID int64
	nextAnswerID   int64
	nextScoreID    int64
	nextPartID     int64

	questions      map[int64]*domain.Question
	order          []int64
	scores         []domain.Score
	participations map[string]*domain.Participation
}

func NewStore() *Store {
	return NewStoreWithClock(time.Now)
}

// NewStoreWithClock allows deterministic timestamps in tests.
func NewStoreWithClock(clock func() time.Time) *Store {
	return &Store{
		clock:          clock,
		questions:      make(map[int64]*domain.Question),
		participations: make(map[string]*domain.Participation),
	}
}

func (s *Store) List(_ context.Context) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked(), nil
}

func (s *Store) GetByID(_ context.Context, id int64) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[id]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return copyQuestion(q), nil
}

func (s *Store) GetByPosition(_ context.Context, position int) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if position < 1 || position > len(s.order) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return copyQuestion(s.questions[s.order[position-1]]), nil
}

func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order), nil
}

func (s *Store) Insert(_ context.Context, q domain.Question, position int) (domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position < 1 || position > len(s.order)+1 {
		position = len(s.order) + 1
	}

	s.nextQuestionID++
	now := s.clock()
	stored := &domain.Question{
		ID:        s.nextQuestionID,
		Title:     q.Title,
		Text:      q.Text,
		Image:     q.Image,
		CreatedAt: now,
		UpdatedAt: now,
	}
	stored.Answers = s.numberAnswersLocked(stored.ID, q.Answers)
	s.questions[stored.ID] = stored

	s.order = append(s.order, 0)
	copy(s.order[position:], s.order[position-1:])
	s.order[position-1] = stored.ID
	s.renumberLocked()

	return copyQuestion(stored), nil
}

func (s *Store) Update(_ context.Context, id int64, upd domain.QuestionUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return false, nil
	}

	if upd.Title != nil {
		q.Title = *upd.Title
	}
	if upd.Text != nil {
		q.Text = *upd.Text
	}
	if upd.Image != nil {
		q.Image = *upd.Image
	}
	if upd.Answers != nil {
		q.Answers = s.numberAnswersLocked(id, upd.Answers)
	}
	if upd.Position != nil && *upd.Position != q.Position {
		s.moveLocked(id, *upd.Position)
	}
	q.UpdatedAt = s.clock()
	return true, nil
}

func (s *Store) Move(_ context.Context, id int64, position int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[id]
	if !ok {
		return false, nil
	}
	if position == q.Position {
		return true, nil
	}
	s.moveLocked(id, position)
	q.UpdatedAt = s.clock()
	return true, nil
}

func (s *Store) ReplaceAnswers(_ context.Context, questionID int64, answers []domain.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.questions[questionID]
	if !ok {
		return domain.ErrQuestionNotFound
	}
	q.Answers = s.numberAnswersLocked(questionID, answers)
	q.UpdatedAt = s.clock()
	return nil
}

func (s *Store) Delete(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.questions[id]; !ok {
		return false, nil
	}
	delete(s.questions, id)
	for i, qid := range s.order {
		if qid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.renumberLocked()
	return true, nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = make(map[int64]*domain.Question)
	s.order = nil
	return nil
}

// Submit grades against the current snapshot and persists both side effects
// under the same lock, so the score and participation rows always reflect the
// snapshot they were graded against.
func (s *Store) Submit(_ context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := domain.GradeSubmission(s.snapshotLocked(), sub)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	now := s.clock()
	s.nextScoreID++
	s.scores = append(s.scores, domain.Score{
		ID:        s.nextScoreID,
		Player:    sub.Player,
		Score:     result.Score,
		Total:     result.Total,
		Mode:      sub.Mode,
		CreatedAt: now,
	})

	answers := append([]int(nil), sub.ChosenPositions...)
	if p, ok := s.participations[sub.Player]; ok {
		p.Answers = answers
		p.Mode = sub.Mode
		p.TimeTaken = sub.TimeTaken
	} else {
		s.nextPartID++
		s.participations[sub.Player] = &domain.Participation{
			ID:        s.nextPartID,
			Player:    sub.Player,
			Answers:   answers,
			Mode:      sub.Mode,
			TimeTaken: sub.TimeTaken,
			CreatedAt: now,
		}
	}
	return result, nil
}

func (s *Store) ListScores(_ context.Context, limit int, mode string) ([]domain.Score, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.Score, 0, len(s.scores))
	for _, sc := range s.scores {
		if mode != "" && sc.Mode != mode {
			continue
		}
		entries = append(entries, sc)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) ListParticipations(_ context.Context, limit int) ([]domain.Participation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.Participation, 0, len(s.participations))
	for _, p := range s.participations {
		entry := *p
		entry.Answers = append([]int(nil), p.Answers...)
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].Player < entries[j].Player
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (s *Store) DeleteAllParticipations(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participations = make(map[string]*domain.Participation)
	return nil
}

func (s *Store) DeleteAllScores(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scores = nil
	return nil
}

// moveLocked removes id from the order, reinserts it at the clamped target,
// and renumbers the whole collection.
func (s *Store) moveLocked(id int64, position int) {
	for i, qid := range s.order {
		if qid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if position < 1 {
		position = 1
	}
	if position > len(s.order)+1 {
		position = len(s.order) + 1
	}
	s.order = append(s.order, 0)
	copy(s.order[position:], s.order[position-1:])
	s.order[position-1] = id
	s.renumberLocked()
}

func (s *Store) renumberLocked() {
	for i, id := range s.order {
		s.questions[id].Position = i + 1
	}
}

func (s *Store) numberAnswersLocked(questionID int64, answers []domain.Answer) []domain.Answer {
	numbered := make([]domain.Answer, 0, len(answers))
	for i, a := range answers {
		s.nextAnswerID++
		numbered = append(numbered, domain.Answer{
			ID:         s.nextAnswerID,
			QuestionID: questionID,
			Text:       a.Text,
			IsCorrect:  a.IsCorrect,
			Position:   i + 1,
		})
	}
	return numbered
}

func (s *Store) snapshotLocked() []domain.Question {
	questions := make([]domain.Question, 0, len(s.order))
	for _, id := range s.order {
		questions = append(questions, copyQuestion(s.questions[id]))
	}
	return questions
}

func copyQuestion(q *domain.Question) domain.Question {
	out := *q
	out.Answers = append([]domain.Answer(nil), q.Answers...)
	return out
}
