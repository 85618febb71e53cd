package domain

import "time"

// Question is what a teacher publishes: a writing prompt and the rubric the grader follows.
type Question struct {
	Prompt    string `json:"prompt" validate:"required"`
	Rubric    string `json:"rubric" validate:"required"`
	TimeLimit int    `json:"timeLimit" validate:"min=1,max=10"` // minutes
}

// JoinRequest is the student join surface.
type JoinRequest struct {
	PIN  string `json:"pin" validate:"required,len=4,number"`
	Name string `json:"name" validate:"required,max=64"`
}

// Submission is one graded answer. Immutable once recorded.
type Submission struct {
	ID            string    `json:"id"`
	Answer        string    `json:"answer"`
	Score         int       `json:"score"`
	Feedback      string    `json:"feedback"`
	QuestionIndex int       `json:"questionIndex"`
	SubmittedAt   time.Time `json:"submittedAt"`
}

// StudentRecord is a student's roster entry. TotalScore is always the sum of Submissions' scores.
type StudentRecord struct {
	Name        string       `json:"name"`
	Submissions []Submission `json:"submissions"`
	TotalScore  int          `json:"totalScore"`
	JoinedAt    time.Time    `json:"joinedAt"`
}

// LeaderboardEntry is a snapshot-friendly view of a student.
type LeaderboardEntry struct {
	Name            string `json:"name"`
	TotalScore      int    `json:"totalScore"`
	Submissions     int    `json:"submissions"`
	CurrentAnswered int    `json:"currentAnswered"` // submissions for the current question
}

// GameState is the full view of a session handed to subscribers.
type GameState struct {
	PIN             string                   `json:"pin"`
	GameID          string                   `json:"gameId"`
	CreatedAt       time.Time                `json:"createdAt"`
	Active          bool                     `json:"active"`
	QuestionIndex   int                      `json:"questionIndex"`
	CurrentQuestion *Question                `json:"currentQuestion,omitempty"`
	PublishedAt     *time.Time               `json:"publishedAt,omitempty"`
	Students        map[string]StudentRecord `json:"students"`
	Leaderboard     []LeaderboardEntry       `json:"leaderboard"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

// GradeStatus tells how a grade was produced.
type GradeStatus string

const (
	GradeOK             GradeStatus = "graded"
	GradeTransportError GradeStatus = "transport_error"
	GradeFormatError    GradeStatus = "format_error"
)

// Grade is the grading client's verdict. Failures are encoded in Status with a zero score.
type Grade struct {
	Score    int         `json:"score"`
	Feedback string      `json:"feedback"`
	Status   GradeStatus `json:"status"`
}

// Template is a reusable question preset.
type Template struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Prompt    string `json:"prompt"`
	Rubric    string `json:"rubric"`
	TimeLimit int    `json:"timeLimit"`
}

// Question converts the template into a publishable question.
func (t Template) Question() Question {
	return Question{Prompt: t.Prompt, Rubric: t.Rubric, TimeLimit: t.TimeLimit}
}

// HostPhase is the teacher-side state of a game.
type HostPhase string

const (
	PhaseSetup      HostPhase = "setup"
	PhaseTesting    HostPhase = "testing"
	PhaseLive       HostPhase = "live"
	PhaseTerminated HostPhase = "terminated"
)

// PlayerPhase is the student-side state of a game.
type PlayerPhase string

const (
	PlayerJoin       PlayerPhase = "join"
	PlayerWaiting    PlayerPhase = "waiting"
	PlayerAnswering  PlayerPhase = "answering"
	PlayerSubmitting PlayerPhase = "submitting"
	PlayerEnded      PlayerPhase = "ended"
)

// TestResult is a rubric trial run by the teacher; never stored in a session.
type TestResult struct {
	Answer string `json:"answer"`
	Grade  Grade  `json:"grade"`
}
