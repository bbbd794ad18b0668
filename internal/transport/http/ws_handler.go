package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/domain"
)

// ScoreboardWSHandler streams leaderboard snapshots to websocket clients as
// submissions come in.
type ScoreboardWSHandler struct {
	service  *app.QuizService
	upgrader websocket.Upgrader
}

func NewScoreboardWSHandler(service *app.QuizService) *ScoreboardWSHandler {
	return &ScoreboardWSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type scoreboardMessage struct {
	Type    string            `json:"type"`
	Payload domain.Scoreboard `json:"payload"`
}

func (h *ScoreboardWSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.service.SubscribeScoreboard()
	defer cancel()

	done := make(chan struct{})

	// Reader drains control frames and signals disconnect; clients send
	// nothing meaningful on this feed.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := conn.WriteJSON(scoreboardMessage{Type: "scoreboard", Payload: update}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
