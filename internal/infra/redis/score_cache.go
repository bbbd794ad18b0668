package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-content-service/internal/app"
	"quiz-content-service/internal/domain"
)

// ScoreCache decorates a ParticipationRepository with a Redis-backed
// leaderboard cache. Cached pages live under a version-stamped key; any write
// that can change the leaderboard bumps the version, leaving stale pages to
// expire by TTL instead of chasing them with pattern deletes.
type ScoreCache struct {
	client *redis.Client
	inner  app.ParticipationRepository
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

const versionKey = "scores:ver"

func NewScoreCache(client *redis.Client, inner app.ParticipationRepository, ttl time.Duration) *ScoreCache {
	return &ScoreCache{
		client: client,
		inner:  inner,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *ScoreCache) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	result, err := c.inner.Submit(ctx, sub)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	c.invalidate(ctx)
	return result, nil
}

func (c *ScoreCache) ListScores(ctx context.Context, limit int, mode string) ([]domain.Score, error) {
	key, err := c.pageKey(ctx, limit, mode)
	if err != nil {
		// Redis trouble degrades to the backing store, never to an error.
		return c.inner.ListScores(ctx, limit, mode)
	}

	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		var scores []domain.Score
		if jsonErr := json.Unmarshal([]byte(cached), &scores); jsonErr == nil {
			return scores, nil
		}
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check in case another goroutine filled the page.
		if cached, err := c.client.Get(ctx, key).Result(); err == nil {
			var scores []domain.Score
			if jsonErr := json.Unmarshal([]byte(cached), &scores); jsonErr == nil {
				return scores, nil
			}
		}

		scores, err := c.inner.ListScores(ctx, limit, mode)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(scores); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return scores, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Score), nil
}

func (c *ScoreCache) ListParticipations(ctx context.Context, limit int) ([]domain.Participation, error) {
	return c.inner.ListParticipations(ctx, limit)
}

func (c *ScoreCache) DeleteAllParticipations(ctx context.Context) error {
	return c.inner.DeleteAllParticipations(ctx)
}

func (c *ScoreCache) DeleteAllScores(ctx context.Context) error {
	if err := c.inner.DeleteAllScores(ctx); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *ScoreCache) pageKey(ctx context.Context, limit int, mode string) (string, error) {
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("scores:%d:%s:%d", ver, mode, limit), nil
}

// invalidate is best-effort: a missed bump only delays freshness by the TTL.
func (c *ScoreCache) invalidate(ctx context.Context) {
	_ = c.client.Incr(ctx, versionKey).Err()
}

func (c *ScoreCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}
