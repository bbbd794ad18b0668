package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"quiz-content-service/internal/domain"
)

func TestInsertAppendsAndShifts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	for _, title := range []string{"first", "second", "third"} {
		if _, err := store.Insert(ctx, domain.Question{Title: title}, 0); err != nil {
			t.Fatalf("insert %s: %v", title, err)
		}
	}
	assertDensePositions(t, store, []string{"first", "second", "third"})

	// Insert at position 2: former 2 -> 3, former 3 -> 4.
	inserted, err := store.Insert(ctx, domain.Question{Title: "wedge"}, 2)
	if err != nil {
		t.Fatalf("insert wedge: %v", err)
	}
	if inserted.Position != 2 {
		t.Fatalf("expected wedge at 2, got %d", inserted.Position)
	}
	assertDensePositions(t, store, []string{"first", "wedge", "second", "third"})
}

func TestInsertClampsTarget(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	_, _ = store.Insert(ctx, domain.Question{Title: "first"}, 0)
	q, err := store.Insert(ctx, domain.Question{Title: "far"}, 99)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if q.Position != 2 {
		t.Fatalf("expected clamp to 2, got %d", q.Position)
	}
}

func TestMovePermutesWithoutGaps(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	ids := seedQuestions(t, store, "a", "b", "c", "d")

	ok, err := store.Move(ctx, ids["d"], 1)
	if err != nil || !ok {
		t.Fatalf("move: ok=%v err=%v", ok, err)
	}
	assertDensePositions(t, store, []string{"d", "a", "b", "c"})

	// Clamp beyond the end.
	ok, err = store.Move(ctx, ids["d"], 42)
	if err != nil || !ok {
		t.Fatalf("move: ok=%v err=%v", ok, err)
	}
	assertDensePositions(t, store, []string{"a", "b", "c", "d"})

	ok, err = store.Move(ctx, 9999, 1)
	if err != nil {
		t.Fatalf("move unknown: %v", err)
	}
	if ok {
		t.Fatalf("expected move of unknown id to fail")
	}
}

func TestDeleteCompacts(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	ids := seedQuestions(t, store, "a", "b", "c", "d")

	ok, err := store.Delete(ctx, ids["b"])
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	assertDensePositions(t, store, []string{"a", "c", "d"})

	ok, _ = store.Delete(ctx, ids["b"])
	if ok {
		t.Fatalf("expected second delete to report missing")
	}
}

func TestReplaceAnswersIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ids := seedQuestions(t, store, "a")

	answers := []domain.Answer{
		{Text: "wrong", IsCorrect: false},
		{Text: "right", IsCorrect: true},
	}
	for i := 0; i < 2; i++ {
		if err := store.ReplaceAnswers(ctx, ids["a"], answers); err != nil {
			t.Fatalf("replace %d: %v", i, err)
		}
	}

	q, err := store.GetByID(ctx, ids["a"])
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(q.Answers) != 2 {
		t.Fatalf("expected 2 answers, got %d", len(q.Answers))
	}
	for i, a := range q.Answers {
		if a.Position != i+1 {
			t.Fatalf("expected answer position %d, got %d", i+1, a.Position)
		}
	}
	if !q.Answers[1].IsCorrect || q.Answers[0].IsCorrect {
		t.Fatalf("correct flag misplaced: %+v", q.Answers)
	}

	if err := store.ReplaceAnswers(ctx, 9999, answers); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected ErrQuestionNotFound, got %v", err)
	}
}

func TestUpdateMovesAndReplaces(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	ids := seedQuestions(t, store, "a", "b", "c")

	title := "renamed"
	pos := 3
	ok, err := store.Update(ctx, ids["a"], domain.QuestionUpdate{
		Title:    &title,
		Position: &pos,
		Answers:  []domain.Answer{{Text: "only", IsCorrect: true}},
	})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	assertDensePositions(t, store, []string{"b", "c", "renamed"})

	q, _ := store.GetByID(ctx, ids["a"])
	if len(q.Answers) != 1 || !q.Answers[0].IsCorrect {
		t.Fatalf("expected replaced answers, got %+v", q.Answers)
	}
}

func TestSubmitRecordsScoreAndUpsertsParticipation(t *testing.T) {
	ctx := context.Background()
	store := newClockedStore()
	seedGradedQuestions(t, store, 2, 4, 3)

	first, err := store.Submit(ctx, domain.Submission{
		Player:          "alice",
		ChosenPositions: []int{2, 1, 3},
		Mode:            "normal",
		TimeTaken:       40,
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if first.Score != 2 || first.Total != 3 {
		t.Fatalf("expected 2/3, got %+v", first)
	}

	second, err := store.Submit(ctx, domain.Submission{
		Player:          "alice",
		ChosenPositions: []int{2, 4, 3},
		Mode:            "normal",
		TimeTaken:       25,
	})
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.Score != 3 {
		t.Fatalf("expected perfect score, got %d", second.Score)
	}

	// Two score rows, one participation row holding the second submission.
	scores, _ := store.ListScores(ctx, 10, "")
	if len(scores) != 2 {
		t.Fatalf("expected 2 score rows, got %d", len(scores))
	}
	parts, _ := store.ListParticipations(ctx, 10)
	if len(parts) != 1 {
		t.Fatalf("expected 1 participation, got %d", len(parts))
	}
	if parts[0].TimeTaken != 25 || len(parts[0].Answers) != 3 || parts[0].Answers[1] != 4 {
		t.Fatalf("expected second submission retained, got %+v", parts[0])
	}
}

func TestSubmitRejectsWithoutWriting(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	seedGradedQuestions(t, store, 2, 4, 3)

	_, err := store.Submit(ctx, domain.Submission{Player: "bob", ChosenPositions: []int{1}})
	if !errors.Is(err, domain.ErrInvalidSubmission) {
		t.Fatalf("expected ErrInvalidSubmission, got %v", err)
	}
	if scores, _ := store.ListScores(ctx, 10, ""); len(scores) != 0 {
		t.Fatalf("expected no score rows after rejection, got %d", len(scores))
	}
	if parts, _ := store.ListParticipations(ctx, 10); len(parts) != 0 {
		t.Fatalf("expected no participations after rejection, got %d", len(parts))
	}
}

func TestListScoresOrdersAndFilters(t *testing.T) {
	ctx := context.Background()
	store := newClockedStore()
	seedGradedQuestions(t, store, 1, 1, 1)

	submissions := []struct {
		player string
		picks  []int
		mode   string
	}{
		{"low", []int{2, 2, 2}, "normal"},
		{"early", []int{1, 1, 1}, "normal"},
		{"late", []int{1, 1, 1}, "normal"},
		{"hardcore", []int{1, 1, 2}, "hard"},
	}
	for _, sub := range submissions {
		if _, err := store.Submit(ctx, domain.Submission{Player: sub.player, ChosenPositions: sub.picks, Mode: sub.mode}); err != nil {
			t.Fatalf("submit %s: %v", sub.player, err)
		}
	}

	scores, err := store.ListScores(ctx, 10, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	got := make([]string, 0, len(scores))
	for _, sc := range scores {
		got = append(got, sc.Player)
	}
	// Ties on 3/3 break by earliest submission.
	want := []string{"early", "late", "hardcore", "low"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	hard, _ := store.ListScores(ctx, 10, "hard")
	if len(hard) != 1 || hard[0].Player != "hardcore" {
		t.Fatalf("expected mode filter to keep hardcore only, got %+v", hard)
	}

	top, _ := store.ListScores(ctx, 2, "")
	if len(top) != 2 {
		t.Fatalf("expected limit 2, got %d", len(top))
	}
}

// newClockedStore advances one second per clock read so created_at tie-breaks
// are deterministic.
func newClockedStore() *Store {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return NewStoreWithClock(func() time.Time {
		base = base.Add(time.Second)
		return base
	})
}

func seedQuestions(t *testing.T, store *Store, titles ...string) map[string]int64 {
	t.Helper()
	ids := make(map[string]int64, len(titles))
	for _, title := range titles {
		q, err := store.Insert(context.Background(), domain.Question{Title: title}, 0)
		if err != nil {
			t.Fatalf("seed %s: %v", title, err)
		}
		ids[title] = q.ID
	}
	return ids
}

// seedGradedQuestions inserts one four-answer question per entry, the entry
// naming the correct answer's position.
func seedGradedQuestions(t *testing.T, store *Store, correctAt ...int) {
	t.Helper()
	for i, correct := range correctAt {
		answers := make([]domain.Answer, 0, 4)
		for pos := 1; pos <= 4; pos++ {
			answers = append(answers, domain.Answer{Text: "a", IsCorrect: pos == correct})
		}
		if _, err := store.Insert(context.Background(), domain.Question{Title: "q", Answers: answers}, 0); err != nil {
			t.Fatalf("seed question %d: %v", i+1, err)
		}
	}
}

// assertDensePositions checks both the expected title order and the dense
// 1..N invariant.
func assertDensePositions(t *testing.T, store *Store, titles []string) {
	t.Helper()
	questions, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(questions) != len(titles) {
		t.Fatalf("expected %d questions, got %d", len(titles), len(questions))
	}
	for i, q := range questions {
		if q.Position != i+1 {
			t.Fatalf("expected dense positions, got %d at index %d", q.Position, i)
		}
		if q.Title != titles[i] {
			t.Fatalf("expected %q at position %d, got %q", titles[i], i+1, q.Title)
		}
	}
}
