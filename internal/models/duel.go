package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DuelStatus string

const (
	DuelWaiting   DuelStatus = "waiting"
	DuelActive    DuelStatus = "active"
	DuelVoting    DuelStatus = "voting"
	DuelCompleted DuelStatus = "completed"
	DuelCancelled DuelStatus = "cancelled"
)

// SkillDuel is a two-seat head-to-head match. WinnerID stays nil on a tie.
type SkillDuel struct {
	ID           string     `json:"id" gorm:"primaryKey;type:uuid"`
	ChallengerID string     `json:"challenger_id" gorm:"not null;index"`
	OpponentID   *string    `json:"opponent_id" gorm:"index"`
	Category     string     `json:"category" gorm:"size:100"`
	Status       DuelStatus `json:"status" gorm:"default:waiting;index" validate:"omitempty,oneof=waiting active voting completed cancelled"`

	ChallengerScore int     `json:"challenger_score" gorm:"default:0"`
	OpponentScore   int     `json:"opponent_score" gorm:"default:0"`
	WinnerID        *string `json:"winner_id"`

	CurrentRound     int `json:"current_round" gorm:"default:0"`
	TotalRounds      int `json:"total_rounds" gorm:"default:5" validate:"min=1,max=20"`
	RoundTimeSeconds int `json:"round_time_seconds" gorm:"default:60" validate:"min=5,max=300"`
	StakePoints      int `json:"stake_points" gorm:"default:0" validate:"min=0,max=1000"`

	StartedAt *time.Time     `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Rounds     []DuelRound     `json:"rounds,omitempty" gorm:"foreignKey:DuelID;constraint:OnDelete:CASCADE"`
	Spectators []DuelSpectator `json:"spectators,omitempty" gorm:"foreignKey:DuelID;constraint:OnDelete:CASCADE"`
}

func (SkillDuel) TableName() string {
	return "skill_duels"
}

// SeatOf reports which seat the given user occupies, if any.
func (d *SkillDuel) SeatOf(userID string) (DuelSeat, bool) {
	if userID == d.ChallengerID {
		return SeatChallenger, true
	}
	if d.OpponentID != nil && userID == *d.OpponentID {
		return SeatOpponent, true
	}
	return "", false
}

type DuelSeat string

const (
	SeatChallenger DuelSeat = "challenger"
	SeatOpponent   DuelSeat = "opponent"
)

// DuelRound embeds its question payload so rounds stay self-contained.
// RoundWinnerID is nil until both seats answered or the round timer expired.
type DuelRound struct {
	ID          string `json:"id" gorm:"primaryKey;type:uuid"`
	DuelID      string `json:"duel_id" gorm:"not null;uniqueIndex:idx_duel_round_number"`
	RoundNumber int    `json:"round_number" gorm:"not null;uniqueIndex:idx_duel_round_number"`

	QuestionText    string         `json:"question_text" gorm:"not null;type:text"`
	Options         datatypes.JSON `json:"options" gorm:"type:jsonb;not null"` // []QuestionOption
	CorrectOptionID string         `json:"correct_option_id" gorm:"not null;size:50"`
	Points          int            `json:"points" gorm:"default:10"`

	ChallengerAnswer *string `json:"challenger_answer" gorm:"size:50"`
	OpponentAnswer   *string `json:"opponent_answer" gorm:"size:50"`
	ChallengerTimeMs *int    `json:"challenger_time_ms"`
	OpponentTimeMs   *int    `json:"opponent_time_ms"`
	RoundWinnerID    *string `json:"round_winner_id"`
	// ResolvedAt marks the round outcome as applied. A tied round keeps
	// RoundWinnerID nil, so resolution state needs its own column.
	ResolvedAt *time.Time `json:"resolved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DuelRound) TableName() string {
	return "duel_rounds"
}

// BothAnswered reports whether both seats have an answer recorded.
func (r *DuelRound) BothAnswered() bool {
	return r.ChallengerAnswer != nil && r.OpponentAnswer != nil
}

// Resolved reports whether the round outcome was already applied.
func (r *DuelRound) Resolved() bool {
	return r.ResolvedAt != nil
}

// DuelSpectator is a non-participant watching a duel. VoteFor holds the
// chosen seat's user id; at most one row per (duel, user), later votes
// overwrite the earlier choice.
type DuelSpectator struct {
	ID      string  `json:"id" gorm:"primaryKey;type:uuid"`
	DuelID  string  `json:"duel_id" gorm:"not null;uniqueIndex:idx_duel_spectator_user"`
	UserID  string  `json:"user_id" gorm:"not null;uniqueIndex:idx_duel_spectator_user"`
	VoteFor *string `json:"vote_for" gorm:"size:64"`

	JoinedAt time.Time `json:"joined_at"`
}

func (DuelSpectator) TableName() string {
	return "duel_spectators"
}

// VoteTally is the recomputed-on-read aggregation over spectator votes.
type VoteTally struct {
	Challenger int `json:"challenger"`
	Opponent   int `json:"opponent"`
}
