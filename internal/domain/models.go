package domain

import "time"

// Answer is one of a question's possible answers. Position is 1-based and
// unique within the owning question; by convention a question carries at most
// four answers.
type Answer struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"questionId"`
	Text       string `json:"text"`
	IsCorrect  bool   `json:"isCorrect"`
	Position   int    `json:"position"`
}

// Question is an ordered quiz question. Position is 1-based and dense across
// the collection: at any committed state the set of positions is exactly {1..N}.
type Question struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Text      string    `json:"text"`
	Image     string    `json:"image,omitempty"`
	Position  int       `json:"position"`
	Answers   []Answer  `json:"answers"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuestionUpdate carries a partial content update. Nil fields keep the stored
// value; a non-nil Position triggers a move; a non-nil Answers slice replaces
// the question's answer set wholesale.
type QuestionUpdate struct {
	Title    *string
	Text     *string
	Image    *string
	Position *int
	Answers  []Answer
}

// Submission is one player's attempt. ChosenPositions holds 1-based answer
// picks, one per question. QuestionIDs, when present, fixes the order the
// picks apply in and must be a permutation of the full current question id
// set; when absent the picks follow ascending question position.
type Submission struct {
	Player          string  `json:"playerName"`
	ChosenPositions []int   `json:"answers"`
	QuestionIDs     []int64 `json:"questionIds,omitempty"`
	Mode            string  `json:"mode,omitempty"`
	TimeTaken       int     `json:"timeTaken,omitempty"`
}

// SubmissionResult is the graded outcome returned to the player.
type SubmissionResult struct {
	Player string `json:"playerName"`
	Score  int    `json:"score"`
	Total  int    `json:"total"`
}

// Score is one immutable leaderboard log entry; rows are append-only and
// never rewritten.
type Score struct {
	ID        int64     `json:"id"`
	Player    string    `json:"playerName"`
	Score     int       `json:"score"`
	Total     int       `json:"total"`
	Mode      string    `json:"mode,omitempty"`
	CreatedAt time.Time `json:"date"`
}

// Participation is a player's latest persisted submission; at most one row
// exists per player and resubmitting overwrites it in place.
type Participation struct {
	ID        int64     `json:"id"`
	Player    string    `json:"playerName"`
	Answers   []int     `json:"answers"`
	Mode      string    `json:"mode,omitempty"`
	TimeTaken int       `json:"timeTaken,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Scoreboard is a snapshot of the top scores pushed to live subscribers.
type Scoreboard struct {
	Entries   []Score   `json:"entries"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// QuizInfo summarizes the stored quiz for anonymous callers.
type QuizInfo struct {
	Size int `json:"size"`
}
