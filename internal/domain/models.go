package domain

import "time"

// Role identifies who produced a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleError     Role = "error"
)

// Message is one turn in a conversation as handed to the renderer.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionStatus is the state of a ConversationSession.
type SessionStatus string

const (
	StatusFresh          SessionStatus = "fresh"
	StatusLoadingHistory SessionStatus = "loading_history"
	StatusReady          SessionStatus = "ready"
	StatusSending        SessionStatus = "sending"
	StatusError          SessionStatus = "error"
)

// ConversationState is a snapshot of a session's working memory.
type ConversationState struct {
	ConversationID string        `json:"conversationId,omitempty"`
	Messages       []Message     `json:"messages"`
	HistoryLoaded  bool          `json:"historyLoaded"`
	Status         SessionStatus `json:"status"`
}

// AnswerSections is the section-triple extracted from one advisor payload.
type AnswerSections struct {
	Answer      string   `json:"answer"`
	Tips        []string `json:"tips"`
	Disclaimers []string `json:"disclaimers"`
}

// IsEmpty reports whether extraction produced nothing usable.
func (s AnswerSections) IsEmpty() bool {
	return s.Answer == "" && len(s.Tips) == 0 && len(s.Disclaimers) == 0
}

// ConversationSummary is an entry of the backend conversation list.
type ConversationSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Option represents a possible answer for a question.
type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Question models an MCQ question; CorrectIndex points into Options.
type Question struct {
	ID           string   `json:"id"`
	Prompt       string   `json:"prompt"`
	Options      []Option `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
}

// Quiz is a fixed, ordered set of questions.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// QuizResult is the verdict of a submitted attempt.
type QuizResult struct {
	Score  int  `json:"score"`
	Passed bool `json:"passed"`
}

// ProgressStatus is the enrollment status reported after a quiz.
type ProgressStatus string

const (
	ProgressCompleted  ProgressStatus = "COMPLETED"
	ProgressInProgress ProgressStatus = "IN_PROGRESS"
)

// ProgressReport is sent to the enrollment-tracking service on submission.
type ProgressReport struct {
	EnrollmentID     string         `json:"-"`
	QuizID           string         `json:"quizId,omitempty"`
	Status           ProgressStatus `json:"status"`
	ProgressPercent  int            `json:"progressPercent"`
	Score            int            `json:"score"`
	AttemptIncrement int            `json:"attemptIncrement"`
}
