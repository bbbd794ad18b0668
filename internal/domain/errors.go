package domain

import "errors"

var (
	// ErrQuestionNotFound is returned when an id or position resolves to no question.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidSubmission is returned for malformed submissions: a question-id
	// set that is not a permutation of the stored questions, a length mismatch,
	// or an out-of-range chosen position. Nothing is written when it fires.
	ErrInvalidSubmission = errors.New("invalid submission")
	// ErrPositionConflict indicates a position uniqueness violation escaped the
	// buffered reorder. It is unreachable when the ledger is correct; callers
	// should surface it loudly rather than retry.
	ErrPositionConflict = errors.New("question position conflict")
)
