package domain

// Document statuses reported by the ingestion backend.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

// Session statuses.
const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
)

// Question types the backend generates.
const (
	QuestionTypeMCQ       = "mcq"
	QuestionTypeTrueFalse = "true_false"
	QuestionTypeFreeText  = "free_text"
)

// Answer input methods.
const (
	InputMethodTyped = "typed"
	InputMethodVoice = "voice"
)

// Document describes an uploaded document as the ingestion service reports it.
// The client only reads it to gate session creation and to decide whether to
// keep polling.
type Document struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	FileType     string `json:"file_type"`
	FileSize     int64  `json:"file_size"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	ChunkCount   *int   `json:"chunk_count,omitempty"`
	PageCount    *int   `json:"page_count,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// Terminal reports whether ingestion has finished, successfully or not.
func (d Document) Terminal() bool {
	return d.Status == DocumentStatusReady || d.Status == DocumentStatusFailed
}

// QuizSession is the server-side state of one quiz run against one document.
type QuizSession struct {
	SessionID         string                  `json:"session_id"`
	DocumentID        string                  `json:"document_id"`
	Status            string                  `json:"status"`
	Difficulty        string                  `json:"difficulty"`
	TotalQuestions    int                     `json:"total_questions"`
	AnsweredQuestions int                     `json:"answered_questions"`
	CorrectAnswers    int                     `json:"correct_answers"`
	ScorePercentage   *float64                `json:"score_percentage,omitempty"`
	Questions         []SessionQuestionDetail `json:"questions,omitempty"`
	StartedAt         string                  `json:"started_at"`
	CompletedAt       *string                 `json:"completed_at,omitempty"`
}

// Completed reports whether the session reached its terminal state.
func (s QuizSession) Completed() bool {
	return s.Status == SessionStatusCompleted
}

// SessionQuestionDetail is one question as it appears in a session status,
// including the user's answer once given.
type SessionQuestionDetail struct {
	QuestionID     string  `json:"question_id"`
	QuestionNumber int     `json:"question_number"`
	QuestionType   string  `json:"question_type"`
	QuestionText   string  `json:"question_text"`
	UserAnswer     *string `json:"user_answer,omitempty"`
	IsCorrect      *bool   `json:"is_correct,omitempty"`
	CorrectAnswer  string  `json:"correct_answer"`
	Explanation    *string `json:"explanation,omitempty"`
}

// CurrentQuestion is the next unanswered question in an active session.
// A nil CurrentQuestion is the canonical "no more questions" value.
type CurrentQuestion struct {
	QuestionID     string   `json:"question_id"`
	QuestionNumber int      `json:"question_number"`
	TotalQuestions int      `json:"total_questions"`
	QuestionType   string   `json:"question_type"`
	QuestionText   string   `json:"question_text"`
	Options        []string `json:"options,omitempty"`
	Difficulty     string   `json:"difficulty"`
}

// AnswerResult is the evaluation of a single submitted answer.
type AnswerResult struct {
	IsCorrect     bool    `json:"is_correct"`
	CorrectAnswer string  `json:"correct_answer"`
	Explanation   *string `json:"explanation,omitempty"`
	ScoreSoFar    int     `json:"score_so_far"`
	TotalAnswered int     `json:"total_answered"`
	Feedback      string  `json:"feedback,omitempty"`
}

// AnswerResponse wraps an AnswerResult with session progression.
type AnswerResponse struct {
	Result          AnswerResult     `json:"result"`
	NextQuestion    *CurrentQuestion `json:"next_question,omitempty"`
	SessionComplete bool             `json:"session_complete"`
}

// SessionConfig is the client-side request to start a session. TimerSeconds
// is local; the backend never sees it.
type SessionConfig struct {
	DocumentID    string   `json:"document_id" validate:"required"`
	NumQuestions  int      `json:"num_questions" validate:"min=1,max=20"`
	Difficulty    string   `json:"difficulty" validate:"oneof=easy medium hard"`
	QuestionTypes []string `json:"question_types" validate:"required,min=1,dive,oneof=mcq true_false free_text"`
	TimerSeconds  int      `json:"-"`
}

// ApplyDefaults fills the backend defaults before validation. An empty
// question_types list is left alone: that is a validation failure, not
// something to paper over.
func (c *SessionConfig) ApplyDefaults() {
	if c.NumQuestions == 0 {
		c.NumQuestions = 5
	}
	if c.Difficulty == "" {
		c.Difficulty = "medium"
	}
}

// CreateSessionResult is the creation response; the backend includes the
// first question so the client can render it without a second round trip.
type CreateSessionResult struct {
	SessionID      string           `json:"session_id"`
	DocumentID     string           `json:"document_id"`
	Difficulty     string           `json:"difficulty"`
	TotalQuestions int              `json:"total_questions"`
	FirstQuestion  *CurrentQuestion `json:"first_question,omitempty"`
}

// TimerRecord is the locally persisted start of a countdown, keyed by the
// session id so a restarted client resumes instead of resetting.
type TimerRecord struct {
	Identity     string
	StartEpochMS int64
}
