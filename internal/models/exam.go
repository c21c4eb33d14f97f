package models

import (
	"time"

	"gorm.io/datatypes"
)

type ExamType string

const (
	ExamIELTS ExamType = "ielts"
	ExamSAT   ExamType = "sat"
	ExamTOEFL ExamType = "toefl"
	ExamCEFR  ExamType = "cefr"
)

type DifficultyLevel string

const (
	DifficultyBeginner     DifficultyLevel = "beginner"
	DifficultyIntermediate DifficultyLevel = "intermediate"
	DifficultyAdvanced     DifficultyLevel = "advanced"
)

// QuestionKind is the closed set of exam question shapes. Grading logic
// switches on it instead of sniffing optional fields.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "multiple_choice"
	KindTrueFalse      QuestionKind = "true_false"
	KindFillBlank      QuestionKind = "fill_blank"
	KindEssay          QuestionKind = "essay"
	KindSpeaking       QuestionKind = "speaking"
)

// ValidQuestionKind reports whether k is one of the known kinds.
func ValidQuestionKind(k QuestionKind) bool {
	switch k {
	case KindMultipleChoice, KindTrueFalse, KindFillBlank, KindEssay, KindSpeaking:
		return true
	}
	return false
}

// ExamQuestion is a generated exam item. Options and CorrectAnswer are only
// meaningful for the kinds that use them.
type ExamQuestion struct {
	ID            string           `json:"id"`
	QuestionText  string           `json:"question_text"`
	Kind          QuestionKind     `json:"question_type"`
	Options       []QuestionOption `json:"options,omitempty"`
	CorrectAnswer string           `json:"correct_answer,omitempty"`
	Points        int              `json:"points"`
	Explanation   string           `json:"explanation,omitempty"`
	AudioContext  string           `json:"audio_context,omitempty"`
	Passage       string           `json:"passage,omitempty"`
	OrderIndex    int              `json:"order_index"`
}

// ExamSection is one timed block of a mock exam.
type ExamSection struct {
	Name            string         `json:"name"`
	DurationSeconds int            `json:"duration_seconds"`
	QuestionCount   int            `json:"question_count"`
	Questions       []ExamQuestion `json:"questions"`
}

type ExamAttemptStatus string

const (
	AttemptNotStarted   ExamAttemptStatus = "not_started"
	AttemptInProgress   ExamAttemptStatus = "in_progress"
	AttemptSectionBreak ExamAttemptStatus = "section_break"
	AttemptCompleted    ExamAttemptStatus = "completed"
)

// SectionScore is one section's contribution to an exam result.
type SectionScore struct {
	Score float64 `json:"score"`
	Max   float64 `json:"max"`
}

// ExamResult is the outcome of a completed mock exam. BandScore is set for
// band-scaled exam types (IELTS), CEFRLevel for level-scaled ones.
type ExamResult struct {
	Score         float64                 `json:"score"`
	MaxScore      float64                 `json:"max_score"`
	SectionScores map[string]SectionScore `json:"section_scores"`
	BandScore     *float64                `json:"band_score,omitempty"`
	CEFRLevel     *string                 `json:"cefr_level,omitempty"`
}

// ExamAttempt is the persisted record of a finished mock exam. Mid-exam state
// never touches the store; only completed attempts are written.
type ExamAttempt struct {
	ID         string          `json:"id" gorm:"primaryKey;type:uuid"`
	UserID     string          `json:"user_id" gorm:"not null;index"`
	ExamType   ExamType        `json:"exam_type" gorm:"not null;size:20"`
	Difficulty DifficultyLevel `json:"difficulty" gorm:"size:20"`

	Score         float64        `json:"score"`
	MaxScore      float64        `json:"max_score"`
	SectionScores datatypes.JSON `json:"section_scores" gorm:"type:jsonb"` // map[string]SectionScore
	BandScore     *float64       `json:"band_score"`
	CEFRLevel     *string        `json:"cefr_level"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}
