package app

import (
	"sync"
	"time"

	"quiz-content-service/internal/domain"
)

// ScoreboardHub fans leaderboard snapshots out to live subscribers.
type ScoreboardHub struct {
	mu          sync.Mutex
	now         func() time.Time
	subscribers map[chan domain.Scoreboard]struct{}
}

func NewScoreboardHub() *ScoreboardHub {
	return newScoreboardHubWithClock(time.Now)
}

// newScoreboardHubWithClock allows deterministic timestamps in tests.
func newScoreboardHubWithClock(now func() time.Time) *ScoreboardHub {
	return &ScoreboardHub{
		now:         now,
		subscribers: make(map[chan domain.Scoreboard]struct{}),
	}
}

// Subscribe registers a listener. The caller must invoke the returned cancel
// function to avoid leaks.
func (h *ScoreboardHub) Subscribe() (<-chan domain.Scoreboard, func()) {
	ch := make(chan domain.Scoreboard, 8)

	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[ch]; ok {
			delete(h.subscribers, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Broadcast pushes a snapshot to every subscriber. Slow subscribers lose
// the stale snapshot rather than blocking the broadcast.
func (h *ScoreboardHub) Broadcast(entries []domain.Score) {
	h.mu.Lock()
	defer h.mu.Unlock()

	snapshot := domain.Scoreboard{Entries: entries, UpdatedAt: h.now()}
	for ch := range h.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
	}
}
