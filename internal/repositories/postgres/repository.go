package postgres

import (
	"gorm.io/gorm"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

type repository struct {
	arena repositories.ArenaRepository
	duel  repositories.DuelRepository
	exam  repositories.ExamAttemptRepository
}

// NewRepository wires the gorm-backed repositories.
func NewRepository(db *gorm.DB) repositories.Repository {
	return &repository{
		arena: NewArenaPostgreSQL(db),
		duel:  NewDuelPostgreSQL(db),
		exam:  NewExamAttemptPostgreSQL(db),
	}
}

func (r *repository) Arena() repositories.ArenaRepository      { return r.arena }
func (r *repository) Duel() repositories.DuelRepository        { return r.duel }
func (r *repository) Exam() repositories.ExamAttemptRepository { return r.exam }

// AutoMigrate creates or updates the schema for all owned tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.ArenaSession{},
		&models.ArenaQuestion{},
		&models.ArenaParticipant{},
		&models.ArenaAnswer{},
		&models.SkillDuel{},
		&models.DuelRound{},
		&models.DuelSpectator{},
		&models.ExamAttempt{},
	)
}
