package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/domain"
)

// Handler wires the quiz use cases to a REST surface. Mutating routes are
// gated on the Authenticator; reads and submissions stay open.
type Handler struct {
	service *app.QuizService
	auth    Authenticator
}

func NewHandler(service *app.QuizService, auth Authenticator) *Handler {
	return &Handler{service: service, auth: auth}
}

// Routes builds the HTTP mux, websocket scoreboard feed included.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /questions", h.listQuestions)
	mux.HandleFunc("POST /questions", h.requireAuth(h.createQuestion))
	mux.HandleFunc("GET /questions/{id}", h.getQuestion)
	mux.HandleFunc("PUT /questions/{id}", h.requireAuth(h.updateQuestion))
	mux.HandleFunc("DELETE /questions/all", h.requireAuth(h.deleteAllQuestions))
	mux.HandleFunc("DELETE /questions/{id}", h.requireAuth(h.deleteQuestion))
	mux.HandleFunc("PUT /questions/{id}/answers", h.requireAuth(h.replaceAnswers))

	mux.HandleFunc("GET /quiz-info", h.quizInfo)
	mux.HandleFunc("POST /participations", h.submitParticipation)
	mux.HandleFunc("GET /participations", h.requireAuth(h.listParticipations))
	mux.HandleFunc("DELETE /participations/all", h.requireAuth(h.deleteAllParticipations))
	mux.HandleFunc("GET /scores", h.listScores)
	mux.HandleFunc("POST /rebuild-db", h.requireAuth(h.rebuildDB))

	mux.HandleFunc("GET /ws/scores", NewScoreboardWSHandler(h.service).ServeWS)
	return mux
}

type answerPayload struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"isCorrect"`
}

type questionPayload struct {
	Title           string          `json:"title"`
	Text            *string         `json:"text"`
	Image           *string         `json:"image"`
	Position        *int            `json:"position"`
	PossibleAnswers []answerPayload `json:"possibleAnswers"`
}

type participationPayload struct {
	Player      string  `json:"playerName"`
	Answers     []int   `json:"answers"`
	QuestionIDs []int64 `json:"questionIds"`
	Mode        string  `json:"mode"`
	TimeTaken   int     `json:"timeTaken"`
}

func (h *Handler) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.auth.Authenticate(bearerToken(r)) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (h *Handler) listQuestions(w http.ResponseWriter, r *http.Request) {
	// ?position=N serves the player flow that walks the quiz one question at
	// a time.
	if raw := r.URL.Query().Get("position"); raw != "" {
		position, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid position")
			return
		}
		q, err := h.service.GetQuestionByPosition(r.Context(), position)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, q)
		return
	}

	questions, err := h.service.ListQuestions(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if questions == nil {
		questions = []domain.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

func (h *Handler) getQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	q, err := h.service.GetQuestion(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handler) createQuestion(w http.ResponseWriter, r *http.Request) {
	var payload questionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid question payload")
		return
	}

	q := domain.Question{Title: payload.Title}
	if payload.Text != nil {
		q.Text = *payload.Text
	}
	if payload.Image != nil {
		q.Image = *payload.Image
	}
	for _, a := range payload.PossibleAnswers {
		q.Answers = append(q.Answers, domain.Answer{Text: a.Text, IsCorrect: a.IsCorrect})
	}

	created, err := h.service.InsertQuestion(r.Context(), q, insertPosition(payload.Position))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) updateQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload questionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid question payload")
		return
	}

	upd := domain.QuestionUpdate{
		Text:     payload.Text,
		Image:    payload.Image,
		Position: clampPosition(payload.Position),
	}
	if payload.Title != "" {
		upd.Title = &payload.Title
	}
	if payload.PossibleAnswers != nil {
		upd.Answers = make([]domain.Answer, 0, len(payload.PossibleAnswers))
		for _, a := range payload.PossibleAnswers {
			upd.Answers = append(upd.Answers, domain.Answer{Text: a.Text, IsCorrect: a.IsCorrect})
		}
	}

	found, err := h.service.UpdateQuestion(r.Context(), id, upd)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) replaceAnswers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var payload []answerPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid answers payload")
		return
	}
	answers := make([]domain.Answer, 0, len(payload))
	for _, a := range payload {
		answers = append(answers, domain.Answer{Text: a.Text, IsCorrect: a.IsCorrect})
	}
	if err := h.service.ReplaceAnswers(r.Context(), id, answers); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteQuestion(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	found, err := h.service.DeleteQuestion(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteAllQuestions(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAllQuestions(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) quizInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.service.QuizInfo(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (h *Handler) submitParticipation(w http.ResponseWriter, r *http.Request) {
	var payload participationPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid participation payload")
		return
	}
	result, err := h.service.SubmitParticipation(r.Context(), domain.Submission{
		Player:          payload.Player,
		ChosenPositions: payload.Answers,
		QuestionIDs:     payload.QuestionIDs,
		Mode:            payload.Mode,
		TimeTaken:       payload.TimeTaken,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) listParticipations(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit")
	parts, err := h.service.ListParticipations(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if parts == nil {
		parts = []domain.Participation{}
	}
	writeJSON(w, http.StatusOK, parts)
}

func (h *Handler) deleteAllParticipations(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteAllParticipations(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listScores(w http.ResponseWriter, r *http.Request) {
	scores, err := h.service.ListScores(r.Context(), queryInt(r, "limit"), r.URL.Query().Get("mode"))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if scores == nil {
		scores = []domain.Score{}
	}
	writeJSON(w, http.StatusOK, scores)
}

func (h *Handler) rebuildDB(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RebuildDB(r.Context()); err != nil {
		h.writeServiceError(w, err)
		return
	}
	w.Write([]byte("ok"))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrQuestionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidSubmission):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPositionConflict):
		// A ledger defect, not a client problem. Log loudly, fail the request.
		log.Printf("position ledger conflict: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		log.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid question id")
		return 0, false
	}
	return id, true
}

// insertPosition maps an absent position to the append sentinel and clamps
// explicit low targets to the front.
func insertPosition(p *int) int {
	if p == nil {
		return 0
	}
	if *p < 1 {
		return 1
	}
	return *p
}

func clampPosition(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	if v < 1 {
		v = 1
	}
	return &v
}

func queryInt(r *http.Request, name string) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
