package app_test

import (
	"context"
	"errors"
	"testing"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/domain"
	"quiz-content-service/internal/infra/memory"
)

func TestInsertRequiresTitle(t *testing.T) {
	service, _ := newTestService()

	_, err := service.InsertQuestion(context.Background(), domain.Question{Title: "   "}, 0)
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
}

func TestSubmitRequiresPlayer(t *testing.T) {
	service, _ := newTestService()

	_, err := service.SubmitParticipation(context.Background(), domain.Submission{ChosenPositions: []int{1}})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
}

func TestSubmitBroadcastsScoreboard(t *testing.T) {
	ctx := context.Background()
	service, _ := newTestService()

	if _, err := service.InsertQuestion(ctx, domain.Question{
		Title:   "q1",
		Answers: []domain.Answer{{Text: "yes", IsCorrect: true}, {Text: "no"}},
	}, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}

	updates, cancel := service.SubscribeScoreboard()
	defer cancel()

	result, err := service.SubmitParticipation(ctx, domain.Submission{
		Player:          "alice",
		ChosenPositions: []int{1},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Score != 1 || result.Total != 1 {
		t.Fatalf("expected 1/1, got %+v", result)
	}

	board := <-updates
	if len(board.Entries) != 1 || board.Entries[0].Player != "alice" {
		t.Fatalf("unexpected scoreboard: %+v", board.Entries)
	}
}

func TestListScoresClampsLimit(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	if _, err := store.Insert(ctx, domain.Question{
		Title:   "q1",
		Answers: []domain.Answer{{Text: "yes", IsCorrect: true}},
	}, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	for _, player := range []string{"a", "b", "c"} {
		if _, err := store.Submit(ctx, domain.Submission{Player: player, ChosenPositions: []int{1}}); err != nil {
			t.Fatalf("submit %s: %v", player, err)
		}
	}

	scores, err := service.ListScores(ctx, -5, "")
	if err != nil {
		t.Fatalf("list with negative limit: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("expected default limit to cover 3 rows, got %d", len(scores))
	}

	scores, err = service.ListScores(ctx, 2, "")
	if err != nil {
		t.Fatalf("list with limit 2: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(scores))
	}
}

func TestRebuildDBClearsAllStores(t *testing.T) {
	ctx := context.Background()
	service, store := newTestService()

	if _, err := store.Insert(ctx, domain.Question{
		Title:   "q1",
		Answers: []domain.Answer{{Text: "yes", IsCorrect: true}},
	}, 0); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := store.Submit(ctx, domain.Submission{Player: "alice", ChosenPositions: []int{1}}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := service.RebuildDB(ctx); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	info, _ := service.QuizInfo(ctx)
	if info.Size != 0 {
		t.Fatalf("expected no questions, got %d", info.Size)
	}
	scores, _ := service.ListScores(ctx, 10, "")
	if len(scores) != 0 {
		t.Fatalf("expected no scores, got %d", len(scores))
	}
	parts, _ := service.ListParticipations(ctx, 10)
	if len(parts) != 0 {
		t.Fatalf("expected no participations, got %d", len(parts))
	}
}

func newTestService() (*app.QuizService, *memory.Store) {
	store := memory.NewStore()
	return app.NewQuizService(store, store), store
}
