package repositories

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/studypulse/arena-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	Statuses  []models.SessionStatus `json:"statuses"`
	HostID    *string                `json:"host_id"`
	Limit     int                    `json:"limit"`
	Offset    int                    `json:"offset"`
	SortBy    string                 `json:"sort_by"`    // "created_at", "title"
	SortOrder string                 `json:"sort_order"` // "asc", "desc"
}

type DuelFilters struct {
	Statuses []models.DuelStatus `json:"statuses"`
	UserID   *string             `json:"user_id"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
}

type AttemptFilters struct {
	ExamType *models.ExamType `json:"exam_type"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ===== REPOSITORY INTERFACES =====

type ArenaRepository interface {
	CreateSession(ctx context.Context, session *models.ArenaSession) error
	GetSession(ctx context.Context, id string) (*models.ArenaSession, error)
	UpdateSession(ctx context.Context, session *models.ArenaSession) error
	ListSessions(ctx context.Context, filters SessionFilters) ([]*models.ArenaSession, int64, error)

	CreateQuestions(ctx context.Context, questions []*models.ArenaQuestion) error
	GetQuestions(ctx context.Context, sessionID string) ([]*models.ArenaQuestion, error)
	CountQuestions(ctx context.Context, sessionID string) (int64, error)

	CreateParticipant(ctx context.Context, participant *models.ArenaParticipant) error
	GetParticipant(ctx context.Context, sessionID, userID string) (*models.ArenaParticipant, error)
	GetParticipants(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error)
	CountParticipants(ctx context.Context, sessionID string) (int64, error)

	// SubmitAnswer persists the answer record and the participant's updated
	// score in one transaction; both succeed or the call fails.
	SubmitAnswer(ctx context.Context, answer *models.ArenaAnswer, participant *models.ArenaParticipant) error
	GetAnswers(ctx context.Context, sessionID string) ([]*models.ArenaAnswer, error)
	HasAnswered(ctx context.Context, sessionID, questionID, userID string) (bool, error)
}

type DuelRepository interface {
	CreateDuel(ctx context.Context, duel *models.SkillDuel) error
	GetDuel(ctx context.Context, id string) (*models.SkillDuel, error)
	UpdateDuel(ctx context.Context, duel *models.SkillDuel) error
	ListDuels(ctx context.Context, filters DuelFilters) ([]*models.SkillDuel, int64, error)

	CreateRounds(ctx context.Context, rounds []*models.DuelRound) error
	GetRound(ctx context.Context, id string) (*models.DuelRound, error)
	GetRounds(ctx context.Context, duelID string) ([]*models.DuelRound, error)
	UpdateRound(ctx context.Context, round *models.DuelRound) error

	// ResolveRound applies the round winner and the duel score delta in one
	// transaction, only if the round's winner is still unset. Returns
	// (false, nil) when another writer resolved it first.
	ResolveRound(ctx context.Context, round *models.DuelRound, duel *models.SkillDuel) (bool, error)

	UpsertSpectator(ctx context.Context, spectator *models.DuelSpectator) error
	GetSpectators(ctx context.Context, duelID string) ([]*models.DuelSpectator, error)
}

type ExamAttemptRepository interface {
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, id string) (*models.ExamAttempt, error)
	GetByUser(ctx context.Context, userID string, filters AttemptFilters) ([]*models.ExamAttempt, int64, error)
}

// Repository aggregates all repositories behind one dependency.
type Repository interface {
	Arena() ArenaRepository
	Duel() DuelRepository
	Exam() ExamAttemptRepository
}

// IsNotFoundError reports whether err is a missing-row error from the store.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
