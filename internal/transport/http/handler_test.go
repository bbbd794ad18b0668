package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/domain"
	"quiz-content-service/internal/infra/memory"
)

const testToken = "test-admin-token"

func TestMutationsRequireAuth(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	requests := []struct {
		method, path string
	}{
		{http.MethodPost, "/questions"},
		{http.MethodPut, "/questions/1"},
		{http.MethodDelete, "/questions/1"},
		{http.MethodDelete, "/questions/all"},
		{http.MethodPut, "/questions/1/answers"},
		{http.MethodDelete, "/participations/all"},
		{http.MethodPost, "/rebuild-db"},
	}
	for _, req := range requests {
		resp := do(t, srv, req.method, req.path, "", `{}`)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", req.method, req.path, resp.StatusCode)
		}
	}
}

func TestQuestionLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	// Create two questions, the second wedged in front.
	first := createQuestion(t, srv, `{"title":"first","possibleAnswers":[{"text":"no"},{"text":"yes","isCorrect":true}]}`)
	second := createQuestion(t, srv, `{"title":"second","position":1}`)

	resp := do(t, srv, http.MethodGet, "/questions", "", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d", resp.StatusCode)
	}
	var listed []domain.Question
	decode(t, resp, &listed)
	if len(listed) != 2 || listed[0].ID != second.ID || listed[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", listed)
	}

	// Fetch by position.
	resp = do(t, srv, http.MethodGet, "/questions?position=2", "", "")
	var byPos domain.Question
	decode(t, resp, &byPos)
	if byPos.ID != first.ID {
		t.Fatalf("expected first at position 2, got %d", byPos.ID)
	}

	// Move via PUT and verify.
	resp = do(t, srv, http.MethodPut, fmt.Sprintf("/questions/%d", first.ID), testToken, `{"position":1}`)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("move: %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, fmt.Sprintf("/questions/%d", first.ID), "", "")
	var moved domain.Question
	decode(t, resp, &moved)
	if moved.Position != 1 {
		t.Fatalf("expected position 1, got %d", moved.Position)
	}

	// Delete and confirm 404 afterwards.
	resp = do(t, srv, http.MethodDelete, fmt.Sprintf("/questions/%d", second.ID), testToken, "")
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete: %d", resp.StatusCode)
	}
	resp = do(t, srv, http.MethodGet, fmt.Sprintf("/questions/%d", second.ID), "", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
	}
}

func TestParticipationFlowOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	createQuestion(t, srv, `{"title":"q1","possibleAnswers":[{"text":"a"},{"text":"b","isCorrect":true}]}`)
	createQuestion(t, srv, `{"title":"q2","possibleAnswers":[{"text":"a","isCorrect":true},{"text":"b"}]}`)

	resp := do(t, srv, http.MethodPost, "/participations", "", `{"playerName":"alice","answers":[2,1],"mode":"normal","timeTaken":17}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("submit: %d", resp.StatusCode)
	}
	var result domain.SubmissionResult
	decode(t, resp, &result)
	if result.Score != 2 || result.Total != 2 {
		t.Fatalf("expected 2/2, got %+v", result)
	}

	// Short submissions are rejected before any write.
	resp = do(t, srv, http.MethodPost, "/participations", "", `{"playerName":"bob","answers":[1]}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for partial submission, got %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/scores?limit=5", "", "")
	var scores []domain.Score
	decode(t, resp, &scores)
	if len(scores) != 1 || scores[0].Player != "alice" {
		t.Fatalf("unexpected scores: %+v", scores)
	}

	resp = do(t, srv, http.MethodGet, "/participations", testToken, "")
	var parts []domain.Participation
	decode(t, resp, &parts)
	if len(parts) != 1 || parts[0].TimeTaken != 17 {
		t.Fatalf("unexpected participations: %+v", parts)
	}
}

func TestQuizInfoReportsSize(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	createQuestion(t, srv, `{"title":"q1"}`)
	resp := do(t, srv, http.MethodGet, "/quiz-info", "", "")
	var info domain.QuizInfo
	decode(t, resp, &info)
	if info.Size != 1 {
		t.Fatalf("expected size 1, got %d", info.Size)
	}
}

func TestRebuildDBWipesEverything(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	createQuestion(t, srv, `{"title":"q1","possibleAnswers":[{"text":"a","isCorrect":true}]}`)
	do(t, srv, http.MethodPost, "/participations", "", `{"playerName":"alice","answers":[1]}`)

	resp := do(t, srv, http.MethodPost, "/rebuild-db", testToken, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("rebuild: %d", resp.StatusCode)
	}

	resp = do(t, srv, http.MethodGet, "/quiz-info", "", "")
	var info domain.QuizInfo
	decode(t, resp, &info)
	if info.Size != 0 {
		t.Fatalf("expected empty quiz, got size %d", info.Size)
	}
	resp = do(t, srv, http.MethodGet, "/scores", "", "")
	var scores []domain.Score
	decode(t, resp, &scores)
	if len(scores) != 0 {
		t.Fatalf("expected no scores, got %+v", scores)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.NewStore()
	service := app.NewQuizService(store, store)
	handler := NewHandler(service, NewStaticTokenAuthenticator(testToken))
	return httptest.NewServer(handler.Routes())
}

func createQuestion(t *testing.T, srv *httptest.Server, body string) domain.Question {
	t.Helper()
	resp := do(t, srv, http.MethodPost, "/questions", testToken, body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create question: status %d", resp.StatusCode)
	}
	var q domain.Question
	decode(t, resp, &q)
	return q
}

func do(t *testing.T, srv *httptest.Server, method, path, token, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}
