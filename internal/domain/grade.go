package domain

import "fmt"

// GradeSubmission scores a submission against a consistent snapshot of the
// stored questions. The snapshot must be ordered by ascending position with
// each question's answers ordered by answer position.
//
// When the submission names explicit question ids they must be an exact
// permutation of the snapshot's id set and match the picks in length. Without
// explicit ids a pick is required for every question, graded in position
// order. Partial submissions are rejected.
func GradeSubmission(questions []Question, sub Submission) (SubmissionResult, error) {
	ordered, err := submissionOrder(questions, sub)
	if err != nil {
		return SubmissionResult{}, err
	}

	score := 0
	for i, q := range ordered {
		chosen := sub.ChosenPositions[i]
		if chosen < 1 || chosen > len(q.Answers) {
			return SubmissionResult{}, fmt.Errorf("%w: chosen position %d out of range for question %d", ErrInvalidSubmission, chosen, q.ID)
		}
		for _, a := range q.Answers {
			if a.Position == chosen && a.IsCorrect {
				score++
				break
			}
		}
	}

	return SubmissionResult{
		Player: sub.Player,
		Score:  score,
		Total:  len(questions),
	}, nil
}

// submissionOrder resolves the question order the picks apply in.
func submissionOrder(questions []Question, sub Submission) ([]Question, error) {
	if len(sub.QuestionIDs) == 0 {
		if len(sub.ChosenPositions) != len(questions) {
			return nil, fmt.Errorf("%w: expected %d answers, got %d", ErrInvalidSubmission, len(questions), len(sub.ChosenPositions))
		}
		return questions, nil
	}

	if len(sub.QuestionIDs) != len(sub.ChosenPositions) {
		return nil, fmt.Errorf("%w: %d question ids for %d answers", ErrInvalidSubmission, len(sub.QuestionIDs), len(sub.ChosenPositions))
	}
	if len(sub.QuestionIDs) != len(questions) {
		return nil, fmt.Errorf("%w: expected all %d question ids, got %d", ErrInvalidSubmission, len(questions), len(sub.QuestionIDs))
	}

	byID := make(map[int64]Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	ordered := make([]Question, 0, len(sub.QuestionIDs))
	seen := make(map[int64]struct{}, len(sub.QuestionIDs))
	for _, id := range sub.QuestionIDs {
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: duplicate question id %d", ErrInvalidSubmission, id)
		}
		seen[id] = struct{}{}
		q, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown question id %d", ErrInvalidSubmission, id)
		}
		ordered = append(ordered, q)
	}
	return ordered, nil
}
