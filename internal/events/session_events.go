package events

import (
	"time"
)

// EventType represents different types of notification events
type EventType string

const (
	// Arena events
	EventArenaSessionCreated   EventType = "arena.session_created"
	EventArenaSessionStarted   EventType = "arena.session_started"
	EventArenaSessionCompleted EventType = "arena.session_completed"
	EventArenaSessionCancelled EventType = "arena.session_cancelled"

	// Duel events
	EventDuelCreated   EventType = "duel.created"
	EventDuelAccepted  EventType = "duel.accepted"
	EventDuelCompleted EventType = "duel.completed"

	// Exam events
	EventExamCompleted EventType = "exam.completed"
)

// NotificationEvent is the base event structure for all notification events
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Arena notification event payloads

type ArenaSessionStartedEvent struct {
	SessionID      string    `json:"session_id"`
	Title          string    `json:"title"`
	HostID         string    `json:"host_id"`
	ParticipantIDs []string  `json:"participant_ids"`
	TotalQuestions int       `json:"total_questions"`
	StartedAt      time.Time `json:"started_at"`
}

type ArenaSessionCompletedEvent struct {
	SessionID string    `json:"session_id"`
	Title     string    `json:"title"`
	WinnerID  string    `json:"winner_id,omitempty"`
	TopScore  int       `json:"top_score"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duel notification event payloads

type DuelAcceptedEvent struct {
	DuelID       string    `json:"duel_id"`
	ChallengerID string    `json:"challenger_id"`
	OpponentID   string    `json:"opponent_id"`
	TotalRounds  int       `json:"total_rounds"`
	StartedAt    time.Time `json:"started_at"`
}

type DuelCompletedEvent struct {
	DuelID          string    `json:"duel_id"`
	ChallengerID    string    `json:"challenger_id"`
	OpponentID      string    `json:"opponent_id"`
	ChallengerScore int       `json:"challenger_score"`
	OpponentScore   int       `json:"opponent_score"`
	WinnerID        *string   `json:"winner_id"` // nil on a tie
	EndedAt         time.Time `json:"ended_at"`
}

// Exam notification event payloads

type ExamCompletedEvent struct {
	AttemptID   string    `json:"attempt_id"`
	UserID      string    `json:"user_id"`
	ExamType    string    `json:"exam_type"`
	Score       float64   `json:"score"`
	MaxScore    float64   `json:"max_score"`
	BandScore   *float64  `json:"band_score,omitempty"`
	CEFRLevel   *string   `json:"cefr_level,omitempty"`
	CompletedAt time.Time `json:"completed_at"`
}
