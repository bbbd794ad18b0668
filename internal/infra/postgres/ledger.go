package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"

	"quiz-content-service/internal/domain"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so reads can run
// inside or outside a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// shiftFrom opens a hole at position by moving every row at or after it up by
// one, parking the shifting rows in the scratch range first so no
// intermediate write collides under the eager UNIQUE constraint.
func shiftFrom(ctx context.Context, tx pgx.Tx, position int) error {
	rows, err := tx.Query(ctx,
		`SELECT id, position FROM questions WHERE position >= $1 ORDER BY position DESC`, position)
	if err != nil {
		return fmt.Errorf("read shifting rows: %w", err)
	}
	type rowPos struct {
		id  int64
		pos int
	}
	var shifting []rowPos
	for rows.Next() {
		var r rowPos
		if err := rows.Scan(&r.id, &r.pos); err != nil {
			rows.Close()
			return fmt.Errorf("scan shifting row: %w", err)
		}
		shifting = append(shifting, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range shifting {
		if _, err := tx.Exec(ctx, `UPDATE questions SET position = $1 WHERE id = $2`, scratchOffset+r.pos, r.id); err != nil {
			return positionErr("buffer shifting row", err)
		}
	}
	for _, r := range shifting {
		if _, err := tx.Exec(ctx, `UPDATE questions SET position = $1 WHERE id = $2`, r.pos+1, r.id); err != nil {
			return positionErr("shift row", err)
		}
	}
	return nil
}

// reorderAll rewrites positions to 1..N following the given id order, in two
// phases through the scratch range.
func reorderAll(ctx context.Context, tx pgx.Tx, orderedIDs []int64) error {
	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `UPDATE questions SET position = $1 WHERE id = $2`, scratchOffset+i+1, id); err != nil {
			return positionErr("buffer reorder", err)
		}
	}
	for i, id := range orderedIDs {
		if _, err := tx.Exec(ctx, `UPDATE questions SET position = $1 WHERE id = $2`, i+1, id); err != nil {
			return positionErr("apply reorder", err)
		}
	}
	return nil
}

// move pulls id out of the current order, reinserts it at the clamped target
// index, and rewrites the whole collection densely.
func move(ctx context.Context, tx pgx.Tx, id int64, position int) error {
	ids, err := orderedIDs(ctx, tx)
	if err != nil {
		return err
	}
	without := make([]int64, 0, len(ids))
	for _, qid := range ids {
		if qid != id {
			without = append(without, qid)
		}
	}

	idx := position - 1
	if idx < 0 {
		idx = 0
	}
	if idx > len(without) {
		idx = len(without)
	}
	ordered := make([]int64, 0, len(without)+1)
	ordered = append(ordered, without[:idx]...)
	ordered = append(ordered, id)
	ordered = append(ordered, without[idx:]...)

	return reorderAll(ctx, tx, ordered)
}

func orderedIDs(ctx context.Context, q querier) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT id FROM questions ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("read question order: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func replaceAnswers(ctx context.Context, tx pgx.Tx, questionID int64, answers []domain.Answer) error {
	if _, err := tx.Exec(ctx, `DELETE FROM answers WHERE question_id = $1`, questionID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}
	return insertAnswers(ctx, tx, questionID, answers)
}

func insertAnswers(ctx context.Context, tx pgx.Tx, questionID int64, answers []domain.Answer) error {
	for i, a := range answers {
		if _, err := tx.Exec(ctx,
			`INSERT INTO answers (question_id, text, is_correct, position) VALUES ($1, $2, $3, $4)`,
			questionID, a.Text, a.IsCorrect, i+1); err != nil {
			return fmt.Errorf("insert answer %d: %w", i+1, err)
		}
	}
	return nil
}

func loadQuestion(ctx context.Context, q querier, id int64) (domain.Question, error) {
	var question domain.Question
	err := q.QueryRow(ctx,
		`SELECT id, title, text, image, position, created_at, updated_at FROM questions WHERE id = $1`, id).
		Scan(&question.ID, &question.Title, &question.Text, &question.Image,
			&question.Position, &question.CreatedAt, &question.UpdatedAt)
	if err != nil {
		return domain.Question{}, fmt.Errorf("load question: %w", err)
	}
	answers, err := listAnswers(ctx, q, id)
	if err != nil {
		return domain.Question{}, err
	}
	question.Answers = answers
	return question, nil
}

func listQuestions(ctx context.Context, q querier) ([]domain.Question, error) {
	rows, err := q.Query(ctx,
		`SELECT id, title, text, image, position, created_at, updated_at
		 FROM questions ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	var questions []domain.Question
	for rows.Next() {
		var question domain.Question
		if err := rows.Scan(&question.ID, &question.Title, &question.Text, &question.Image,
			&question.Position, &question.CreatedAt, &question.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, question)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range questions {
		answers, err := listAnswers(ctx, q, questions[i].ID)
		if err != nil {
			return nil, err
		}
		questions[i].Answers = answers
	}
	return questions, nil
}

func listAnswers(ctx context.Context, q querier, questionID int64) ([]domain.Answer, error) {
	rows, err := q.Query(ctx,
		`SELECT id, question_id, text, is_correct, position
		 FROM answers WHERE question_id = $1 ORDER BY position ASC`, questionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var answers []domain.Answer
	for rows.Next() {
		var a domain.Answer
		if err := rows.Scan(&a.ID, &a.QuestionID, &a.Text, &a.IsCorrect, &a.Position); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
