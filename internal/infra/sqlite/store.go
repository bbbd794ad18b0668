package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/mattn/go-sqlite3"

	"quiz-content-service/internal/domain"
)

// Store persists the quiz in SQLite. questions.position carries an eager
// UNIQUE constraint, so every reorder goes through the two-phase buffered
// rewrite: rows that must shift are first parked in a disjoint scratch range,
// then rewritten to their final compacted values. A store-level mutex keeps
// ledger mutations single-writer; readers only ever see committed snapshots.
type Store struct {
	db *sql.DB

	// Serializes ledger mutations and submissions so concurrent writers
	// cannot interleave their read-compute-write cycle.
	writeMu sync.Mutex
}

const (
	// scratchOffset parks shifting rows above any live position.
	scratchOffset = 1_000_000
	// scratchSlot is where a freshly inserted row lands before its final
	// position is fixed. It sits below scratchOffset so the two phases can
	// never collide.
	scratchSlot = 999_999
)

// Open opens (creating if necessary) the SQLite database at path and applies
// the schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// In-memory databases live per connection; a single connection keeps the
	// schema visible and is plenty for this workload.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			image TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL UNIQUE,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS answers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question_id INTEGER NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			is_correct INTEGER NOT NULL DEFAULT 0,
			position INTEGER NOT NULL,
			UNIQUE (question_id, position)
		);`,
		`CREATE TABLE IF NOT EXISTS scores (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player TEXT NOT NULL,
			score INTEGER NOT NULL,
			total INTEGER NOT NULL,
			mode TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS participations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			player_name TEXT NOT NULL UNIQUE,
			answers TEXT NOT NULL DEFAULT '[]',
			mode TEXT NOT NULL DEFAULT '',
			time_taken INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_scores_leaderboard ON scores(score DESC, created_at ASC);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]domain.Question, error) {
	return listQuestionsTx(ctx, s.db)
}

func (s *Store) GetByID(ctx context.Context, id int64) (domain.Question, error) {
	return s.getOne(ctx, `SELECT id, title, text, image, position, created_at, updated_at FROM questions WHERE id = ?`, id)
}

func (s *Store) GetByPosition(ctx context.Context, position int) (domain.Question, error) {
	return s.getOne(ctx, `SELECT id, title, text, image, position, created_at, updated_at FROM questions WHERE position = ?`, position)
}

func (s *Store) getOne(ctx context.Context, query string, arg any) (domain.Question, error) {
	var q domain.Question
	err := s.db.QueryRowContext(ctx, query, arg).
		Scan(&q.ID, &q.Title, &q.Text, &q.Image, &q.Position, &q.CreatedAt, &q.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, fmt.Errorf("get question: %w", err)
	}
	answers, err := listAnswersTx(ctx, s.db, q.ID)
	if err != nil {
		return domain.Question{}, err
	}
	q.Answers = answers
	return q, nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

func (s *Store) Insert(ctx context.Context, q domain.Question, position int) (domain.Question, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Question{}, fmt.Errorf("begin insert: %w", err)
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count); err != nil {
		return domain.Question{}, fmt.Errorf("count questions: %w", err)
	}
	if position < 1 || position > count+1 {
		position = count + 1
	}

	if err := shiftFrom(ctx, tx, position); err != nil {
		return domain.Question{}, err
	}

	// The new row enters at a scratch slot first so it cannot collide with a
	// row still waiting for its final value.
	res, err := tx.ExecContext(ctx,
		`INSERT INTO questions (title, text, image, position) VALUES (?, ?, ?, ?)`,
		q.Title, q.Text, q.Image, scratchSlot)
	if err != nil {
		return domain.Question{}, positionErr("insert question", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Question{}, fmt.Errorf("insert question id: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE questions SET position = ? WHERE id = ?`, position, id); err != nil {
		return domain.Question{}, positionErr("fix question position", err)
	}

	if err := insertAnswersTx(ctx, tx, id, q.Answers); err != nil {
		return domain.Question{}, err
	}

	if err := tx.Commit(); err != nil {
		return domain.Question{}, fmt.Errorf("commit insert: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *Store) Update(ctx context.Context, id int64, upd domain.QuestionUpdate) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin update: %w", err)
	}
	defer tx.Rollback()

	var current domain.Question
	err = tx.QueryRowContext(ctx, `SELECT id, title, text, image, position FROM questions WHERE id = ?`, id).
		Scan(&current.ID, &current.Title, &current.Text, &current.Image, &current.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load question: %w", err)
	}

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
	if _, err := tx.ExecContext(ctx,
		`UPDATE questions SET title = ?, text = ?, image = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, text, image, id); err != nil {
		return false, fmt.Errorf("update question: %w", err)
	}

	if upd.Position != nil && *upd.Position != current.Position {
		if err := moveTx(ctx, tx, id, *upd.Position); err != nil {
			return false, err
		}
	}

	if upd.Answers != nil {
		if err := replaceAnswersTx(ctx, tx, id, upd.Answers); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit update: %w", err)
	}
	return true, nil
}

func (s *Store) Move(ctx context.Context, id int64, position int) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin move: %w", err)
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRowContext(ctx, `SELECT position FROM questions WHERE id = ?`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load position: %w", err)
	}
	if position == current {
		return true, nil
	}

	if err := moveTx(ctx, tx, id, position); err != nil {
		return false, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE questions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("touch question: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit move: %w", err)
	}
	return true, nil
}

func (s *Store) ReplaceAnswers(ctx context.Context, questionID int64, answers []domain.Answer) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace answers: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE id = ?`, questionID).Scan(&exists); err != nil {
		return fmt.Errorf("check question: %w", err)
	}
	if exists == 0 {
		return domain.ErrQuestionNotFound
	}

	if err := replaceAnswersTx(ctx, tx, questionID, answers); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE questions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, questionID); err != nil {
		return fmt.Errorf("touch question: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace answers: %w", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete question: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	remaining, err := orderedIDsTx(ctx, tx)
	if err != nil {
		return false, err
	}
	if err := reorderAll(ctx, tx, remaining); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete: %w", err)
	}
	return true, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM questions`); err != nil {
		return fmt.Errorf("delete all questions: %w", err)
	}
	return nil
}

// Submit grades against the questions visible inside the transaction and
// persists the score row and participation upsert in the same transaction, so
// a crash between grading and persisting cannot strand a graded submission.
func (s *Store) Submit(ctx context.Context, sub domain.Submission) (domain.SubmissionResult, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("begin submit: %w", err)
	}
	defer tx.Rollback()

	questions, err := listQuestionsTx(ctx, tx)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	result, err := domain.GradeSubmission(questions, sub)
	if err != nil {
		return domain.SubmissionResult{}, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO scores (player, score, total, mode) VALUES (?, ?, ?, ?)`,
		sub.Player, result.Score, result.Total, sub.Mode); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("insert score: %w", err)
	}

	raw, err := json.Marshal(sub.ChosenPositions)
	if err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("encode answers: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO participations (player_name, answers, mode, time_taken)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(player_name) DO UPDATE SET
		   answers = excluded.answers,
		   mode = excluded.mode,
		   time_taken = excluded.time_taken`,
		sub.Player, string(raw), sub.Mode, sub.TimeTaken); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("upsert participation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.SubmissionResult{}, fmt.Errorf("commit submit: %w", err)
	}
	return result, nil
}

func (s *Store) ListScores(ctx context.Context, limit int, mode string) ([]domain.Score, error) {
	query := `SELECT id, player, score, total, mode, created_at FROM scores`
	args := []any{}
	if mode != "" {
		query += ` WHERE mode = ?`
		args = append(args, mode)
	}
	query += ` ORDER BY score DESC, created_at ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, player_name, answers, mode, time_taken, created_at
		 FROM participations ORDER BY created_at DESC, player_name ASC LIMIT ?`, limit)
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
	if _, err := s.db.ExecContext(ctx, `DELETE FROM participations`); err != nil {
		return fmt.Errorf("delete participations: %w", err)
	}
	return nil
}

func (s *Store) DeleteAllScores(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM scores`); err != nil {
		return fmt.Errorf("delete scores: %w", err)
	}
	return nil
}

// positionErr maps an escaped UNIQUE violation on questions.position to
// ErrPositionConflict. That path is unreachable while the buffered rewrite is
// intact, so surfacing it loudly beats retrying.
func positionErr(op string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrPositionConflict, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
