package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"quiz-content-service/internal/domain"
)

// Store persists the quiz in Postgres via pgx. questions.position carries an
// eager UNIQUE constraint, so ledger rewrites run the same two-phase scratch
// discipline as the sqlite backend, inside serializable transactions; the
// transaction doubles as the single-writer guard across processes.
type Store struct {
	pool *pgxpool.Pool
}

const (
	scratchOffset = 1_000_000
	scratchSlot   = 999_999
)

// uniqueViolation is the Postgres error code for a unique constraint breach.
const uniqueViolation = "23505"

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) List(ctx context.Context) ([]domain.Question, error) {
	return listQuestions(ctx, s.pool)
}

func (s *Store) GetByID(ctx context.Context, id int64) (domain.Question, error) {
	return s.getOne(ctx, `SELECT id, title, text, image, position, created_at, updated_at FROM questions WHERE id = $1`, id)
}

func (s *Store) GetByPosition(ctx context.Context, position int) (domain.Question, error) {
	return s.getOne(ctx, `SELECT id, title, text, image, position, created_at, updated_at FROM questions WHERE position = $1`, position)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (domain.Question, error) {
	var q domain.Question
	err := s.pool.QueryRow(ctx, query, arg).
		Scan(&q.ID, &q.Title, &q.Text, &q.Image, &q.Position, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	answers, err := listAnswers(ctx, s.pool, q.ID)
	if err != nil {
		return domain.Question{}, err
	}
	q.Answers = answers
	return q, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, q domain.Question, position int) (domain.Question, error) {
	var created domain.Question
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var count int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
			return fmt.Errorf("count questions: %w", err)
		}
		target := position
		if target < 1 || target > count+1 {
			target = count + 1
		}

		if err := shiftFrom(ctx, tx, target); err != nil {
			return err
		}

		var id int64
		err := tx.QueryRow(ctx,
			`INSERT INTO questions (title, text, image, position) VALUES ($1, $2, $3, $4) RETURNING id`,
			q.Title, q.Text, q.Image, scratchSlot).Scan(&id)
		if err != nil {
			return positionErr("insert question", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE questions SET position = $1 WHERE id = $2`, target, id); err != nil {
			return positionErr("fix question position", err)
		}
		if err := insertAnswers(ctx, tx, id, q.Answers); err != nil {
			return err
		}

		row, err := loadQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		created = row
		return nil
	})
	if err != nil {
		return domain.Question{}, err
	}
	return created, nil
}

func (s *Store) Update(ctx context.Context, id int64, upd domain.QuestionUpdate) (bool, error) {
	found := false
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var current domain.Question
		err := tx.QueryRow(ctx, `SELECT id, title, text, image, position FROM questions WHERE id = $1`, id).
			Scan(&current.ID, &current.Title, &current.Text, &current.Image, &current.Position)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load question: %w", err)
		}
		found = true

		title, text, image := current.Title, current.Text, current.Image
		if upd.Title != nil {
			title = *upd.Title
		}
		if upd.Text != nil {
			text = *upd.Text
		}
		if upd.Image != nil {
			image = *upd.Image
		}
		if _, err := tx.Exec(ctx,
			`UPDATE questions SET title = $1, text = $2, image = $3, updated_at = now() WHERE id = $4`,
			title, text, image, id); err != nil {
			return fmt.Errorf("update question: %w", err)
		}

		if upd.Position != nil && *upd.Position != current.Position {
			if err := move(ctx, tx, id, *upd.Position); err != nil {
				return err
			}
		}
		if upd.Answers != nil {
			if err := replaceAnswers(ctx, tx, id, upd.Answers); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *Store) Move(ctx context.Context, id int64, position int) (bool, error) {
	found := false
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var current int
		err := tx.QueryRow(ctx, `SELECT position FROM questions WHERE id = $1`, id).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load position: %w", err)
		}
		found = true
		if position == current {
			return nil
		}
		if err := move(ctx, tx, id, position); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE questions SET updated_at = now() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *Store) ReplaceAnswers(ctx context.Context, questionID int64, answers []domain.Answer) error {
	return s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		var exists int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM questions WHERE id = $1`, questionID).Scan(&exists); err != nil {
			return fmt.Errorf("check question: %w", err)
		}
		if exists == 0 {
			return domain.ErrQuestionNotFound
		}
		if err := replaceAnswers(ctx, tx, questionID, answers); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE questions SET updated_at = now() WHERE id = $1`, questionID)
		return err
	})
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	found := false
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM questions WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete question: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		found = true
		remaining, err := orderedIDs(ctx, tx)
		if err != nil {
			return err
		}
		return reorderAll(ctx, tx, remaining)
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("delete all questions: %w", err)
	}
	return nil
}

// Submit grades against the questions visible inside the transaction and
// persists both side effects in the same transaction.
func (s *Store) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	var result domain.SubmissionResult
	err := s.inSerializableTx(ctx, func(tx pgx.Tx) error {
		questions, err := listQuestions(ctx, tx)
		if err != nil {
			return err
		}
		graded, err := domain.GradeSubmission(questions, sub)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO scores (player, score, total, mode) VALUES ($1, $2, $3, $4)`,
			sub.Player, graded.Score, graded.Total, sub.Mode); err != nil {
			return fmt.Errorf("insert score: %w", err)
		}

		raw, err := json.Marshal(sub.ChosenPositions)
		if err != nil {
			return fmt.Errorf("encode answers: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO participations (player_name, answers, mode, time_taken)
			 VALUES ($1, $2::jsonb, $3, $4)
			 ON CONFLICT (player_name) DO UPDATE SET
			   answers = EXCLUDED.answers,
			   mode = EXCLUDED.mode,
			   time_taken = EXCLUDED.time_taken`,
			sub.Player, string(raw), sub.Mode, sub.TimeTaken); err != nil {
			return fmt.Errorf("upsert participation: %w", err)
		}
		result = graded
		return nil
	})
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

func (s *Store) ListScores(ctx context.Context, limit int, mode string) ([]domain.Score, error) {
	query := `SELECT id, player, score, total, mode, created_at FROM scores`
	args := []any{}
	if mode != "" {
		query += ` WHERE mode = $1 ORDER BY score DESC, created_at ASC LIMIT $2`
		args = append(args, mode, limit)
	} else {
		query += ` ORDER BY score DESC, created_at ASC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}
	defer rows.Close()

	var scores []domain.Score
	for rows.Next() {
		var sc domain.Score
		if err := rows.Scan(&sc.ID, &sc.Player, &sc.Score, &sc.Total, &sc.Mode, &sc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		scores = append(scores, sc)
	}
	return scores, rows.Err()
}

func (s *Store) ListParticipations(ctx context.Context, limit int) ([]domain.Participation, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, player_name, answers, mode, time_taken, created_at
		 FROM participations ORDER BY created_at DESC, player_name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list participations: %w", err)
	}
	defer rows.Close()

	var parts []domain.Participation
	for rows.Next() {
		var p domain.Participation
		var raw string
		if err := rows.Scan(&p.ID, &p.Player, &raw, &p.Mode, &p.TimeTaken, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan participation: %w", err)
		}
		if err := json.Unmarshal([]byte(raw), &p.Answers); err != nil {
			return nil, fmt.Errorf("decode answers for %s: %w", p.Player, err)
		}
		parts = append(parts, p)
	}
	return parts, rows.Err()
}

func (s *Store) DeleteAllParticipations(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM participations`); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllScores(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	return nil
}

func (s *Store) inSerializableTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// positionErr maps an escaped unique violation on questions.position to
// ErrPositionConflict, which signals a ledger defect rather than a retryable
// condition.
func positionErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrPositionConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
