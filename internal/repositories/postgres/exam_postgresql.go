package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

type ExamAttemptPostgreSQL struct {
	db *gorm.DB
}

func NewExamAttemptPostgreSQL(db *gorm.DB) repositories.ExamAttemptRepository {
	return &ExamAttemptPostgreSQL{db: db}
}

func (e *ExamAttemptPostgreSQL) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	return e.db.WithContext(ctx).Create(attempt).Error
}

func (e *ExamAttemptPostgreSQL) GetByID(ctx context.Context, id string) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := e.db.WithContext(ctx).First(&attempt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (e *ExamAttemptPostgreSQL) GetByUser(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	var attempts []*models.ExamAttempt
	var total int64

	query := e.db.WithContext(ctx).Model(&models.ExamAttempt{}).Where("user_id = ?", userID)
	if filters.ExamType != nil {
		query = query.Where("exam_type = ?", *filters.ExamType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset).Order("completed_at DESC")
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}
