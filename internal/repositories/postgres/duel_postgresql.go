package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

type DuelPostgreSQL struct {
	db *gorm.DB
}

func NewDuelPostgreSQL(db *gorm.DB) repositories.DuelRepository {
	return &DuelPostgreSQL{db: db}
}

func (d *DuelPostgreSQL) CreateDuel(ctx context.Context, duel *models.SkillDuel) error {
	return d.db.WithContext(ctx).Create(duel).Error
}

func (d *DuelPostgreSQL) GetDuel(ctx context.Context, id string) (*models.SkillDuel, error) {
	var duel models.SkillDuel
	if err := d.db.WithContext(ctx).First(&duel, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &duel, nil
}

func (d *DuelPostgreSQL) UpdateDuel(ctx context.Context, duel *models.SkillDuel) error {
	return d.db.WithContext(ctx).Save(duel).Error
}

func (d *DuelPostgreSQL) ListDuels(ctx context.Context, filters repositories.DuelFilters) ([]*models.SkillDuel, int64, error) {
	var duels []*models.SkillDuel
	var total int64

	query := d.db.WithContext(ctx).Model(&models.SkillDuel{})
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.UserID != nil {
		query = query.Where("challenger_id = ? OR opponent_id = ?", *filters.UserID, *filters.UserID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset).Order("created_at DESC")
	if err := query.Find(&duels).Error; err != nil {
		return nil, 0, err
	}
	return duels, total, nil
}

func (d *DuelPostgreSQL) CreateRounds(ctx context.Context, rounds []*models.DuelRound) error {
	if len(rounds) == 0 {
		return nil
	}
	return d.db.WithContext(ctx).Create(rounds).Error
}

func (d *DuelPostgreSQL) GetRound(ctx context.Context, id string) (*models.DuelRound, error) {
	var round models.DuelRound
	if err := d.db.WithContext(ctx).First(&round, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &round, nil
}

func (d *DuelPostgreSQL) GetRounds(ctx context.Context, duelID string) ([]*models.DuelRound, error) {
	var rounds []*models.DuelRound
	err := d.db.WithContext(ctx).
		Where("duel_id = ?", duelID).
		Order("round_number ASC").
		Find(&rounds).Error
	return rounds, err
}

func (d *DuelPostgreSQL) UpdateRound(ctx context.Context, round *models.DuelRound) error {
	return d.db.WithContext(ctx).Save(round).Error
}

// ResolveRound applies the winner and score delta only if the stored round is
// still unresolved. The conditional UPDATE makes duplicate resolution attempts
// (racing clients, replayed change events) a no-op.
func (d *DuelPostgreSQL) ResolveRound(ctx context.Context, round *models.DuelRound, duel *models.SkillDuel) (bool, error) {
	applied := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.DuelRound{}).
			Where("id = ? AND resolved_at IS NULL", round.ID).
			Updates(map[string]interface{}{
				"round_winner_id": round.RoundWinnerID,
				"resolved_at":     gorm.Expr("NOW()"),
				"updated_at":      gorm.Expr("NOW()"),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		applied = true
		return tx.Model(&models.SkillDuel{}).
			Where("id = ?", duel.ID).
			Updates(map[string]interface{}{
				"challenger_score": duel.ChallengerScore,
				"opponent_score":   duel.OpponentScore,
				"current_round":    duel.CurrentRound,
				"status":           duel.Status,
				"winner_id":        duel.WinnerID,
				"ended_at":         duel.EndedAt,
			}).Error
	})
	return applied, err
}

// UpsertSpectator inserts the spectator row or, on the (duel_id, user_id)
// conflict, overwrites the existing vote.
func (d *DuelPostgreSQL) UpsertSpectator(ctx context.Context, spectator *models.DuelSpectator) error {
	return d.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "duel_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"vote_for"}),
		}).
		Create(spectator).Error
}

func (d *DuelPostgreSQL) GetSpectators(ctx context.Context, duelID string) ([]*models.DuelSpectator, error) {
	var spectators []*models.DuelSpectator
	err := d.db.WithContext(ctx).
		Where("duel_id = ?", duelID).
		Order("joined_at ASC").
		Find(&spectators).Error
	return spectators, err
}
