package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SessionStatus string

const (
	SessionWaiting   SessionStatus = "waiting"
	SessionStarting  SessionStatus = "starting"
	SessionActive    SessionStatus = "active"
	SessionVoting    SessionStatus = "voting"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

// ArenaSession is a host-controlled, many-participant trivia match.
type ArenaSession struct {
	ID          string        `json:"id" gorm:"primaryKey;type:uuid"`
	Title       string        `json:"title" gorm:"not null;size:200" validate:"required,min=1,max=200"`
	Description *string       `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	HostID      string        `json:"host_id" gorm:"not null;index"`
	Category    string        `json:"category" gorm:"size:100"`
	Status      SessionStatus `json:"status" gorm:"default:waiting;index" validate:"omitempty,oneof=waiting starting active completed cancelled"`

	MaxParticipants     int `json:"max_participants" gorm:"default:50" validate:"min=2,max=200"`
	CurrentQuestion     int `json:"current_question" gorm:"default:0"`
	TotalQuestions      int `json:"total_questions" gorm:"default:10" validate:"min=1,max=50"`
	QuestionTimeSeconds int `json:"question_time_seconds" gorm:"default:30" validate:"min=5,max=300"`

	// AutoAdvance moves to the next question when the question timer expires
	// instead of waiting for the host.
	AutoAdvance bool `json:"auto_advance" gorm:"default:false"`

	StartedAt *time.Time     `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions    []ArenaQuestion    `json:"questions,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
	Participants []ArenaParticipant `json:"participants,omitempty" gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE"`
}

func (ArenaSession) TableName() string {
	return "arena_sessions"
}

// IsJoinable reports whether new participants may still enter.
func (s *ArenaSession) IsJoinable() bool {
	switch s.Status {
	case SessionWaiting, SessionStarting, SessionActive:
		return true
	}
	return false
}

// QuestionOption is one selectable answer of a trivia question.
type QuestionOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ArenaQuestion holds one question of a session. Options are stored as a JSON
// column; CorrectOptionID must reference an entry of that list.
type ArenaQuestion struct {
	ID              string         `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID       string         `json:"session_id" gorm:"not null;uniqueIndex:idx_arena_question_order"`
	QuestionText    string         `json:"question_text" gorm:"not null;type:text"`
	Options         datatypes.JSON `json:"options" gorm:"type:jsonb;not null"` // []QuestionOption
	CorrectOptionID string         `json:"correct_option_id" gorm:"not null;size:50"`
	Points          int            `json:"points" gorm:"default:10"`
	Explanation     *string        `json:"explanation" gorm:"type:text"`
	OrderIndex      int            `json:"order_index" gorm:"not null;uniqueIndex:idx_arena_question_order"`

	CreatedAt time.Time `json:"created_at"`
}

func (ArenaQuestion) TableName() string {
	return "arena_questions"
}

// ArenaParticipant is a user's seat in a session. Rank is derived on read,
// never stored authoritatively.
type ArenaParticipant struct {
	ID        string `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID string `json:"session_id" gorm:"not null;uniqueIndex:idx_arena_participant_user"`
	UserID    string `json:"user_id" gorm:"not null;uniqueIndex:idx_arena_participant_user"`

	Score          int `json:"score" gorm:"default:0"`
	CorrectAnswers int `json:"correct_answers" gorm:"default:0"`
	WrongAnswers   int `json:"wrong_answers" gorm:"default:0"`
	CurrentStreak  int `json:"current_streak" gorm:"default:0"`
	BestStreak     int `json:"best_streak" gorm:"default:0"`

	JoinedAt time.Time `json:"joined_at"`

	// Computed on leaderboard reads
	Rank int `json:"rank" gorm:"-"`
}

func (ArenaParticipant) TableName() string {
	return "arena_participants"
}

// ArenaAnswer records a single submission. The unique index backs the
// one-answer-per-question-per-participant rule at the store level; the
// service-side flag is only the first line of defense.
type ArenaAnswer struct {
	ID               string `json:"id" gorm:"primaryKey;type:uuid"`
	SessionID        string `json:"session_id" gorm:"not null;uniqueIndex:idx_arena_answer_once"`
	QuestionID       string `json:"question_id" gorm:"not null;uniqueIndex:idx_arena_answer_once"`
	UserID           string `json:"user_id" gorm:"not null;uniqueIndex:idx_arena_answer_once"`
	SelectedOptionID string `json:"selected_option_id" gorm:"not null;size:50"`
	IsCorrect        bool   `json:"is_correct"`
	AnswerTimeMs     int    `json:"answer_time_ms"`
	PointsEarned     int    `json:"points_earned"`

	CreatedAt time.Time `json:"created_at"`
}

func (ArenaAnswer) TableName() string {
	return "arena_answers"
}
