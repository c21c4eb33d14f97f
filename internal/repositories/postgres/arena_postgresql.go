package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

type ArenaPostgreSQL struct {
	db *gorm.DB
}

func NewArenaPostgreSQL(db *gorm.DB) repositories.ArenaRepository {
	return &ArenaPostgreSQL{db: db}
}

func (a *ArenaPostgreSQL) CreateSession(ctx context.Context, session *models.ArenaSession) error {
	return a.db.WithContext(ctx).Create(session).Error
}

func (a *ArenaPostgreSQL) GetSession(ctx context.Context, id string) (*models.ArenaSession, error) {
	var session models.ArenaSession
	if err := a.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

func (a *ArenaPostgreSQL) UpdateSession(ctx context.Context, session *models.ArenaSession) error {
	return a.db.WithContext(ctx).Save(session).Error
}

func (a *ArenaPostgreSQL) ListSessions(ctx context.Context, filters repositories.SessionFilters) ([]*models.ArenaSession, int64, error) {
	var sessions []*models.ArenaSession
	var total int64

	query := a.db.WithContext(ctx).Model(&models.ArenaSession{})
	if len(filters.Statuses) > 0 {
		query = query.Where("status IN ?", filters.Statuses)
	}
	if filters.HostID != nil {
		query = query.Where("host_id = ?", *filters.HostID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filters.Limit, filters.Offset)
	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	order := "DESC"
	if filters.SortOrder == "asc" {
		order = "ASC"
	}
	query = query.Order(sortBy + " " + order)

	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func (a *ArenaPostgreSQL) CreateQuestions(ctx context.Context, questions []*models.ArenaQuestion) error {
	if len(questions) == 0 {
		return nil
	}
	return a.db.WithContext(ctx).Create(questions).Error
}

func (a *ArenaPostgreSQL) GetQuestions(ctx context.Context, sessionID string) ([]*models.ArenaQuestion, error) {
	var questions []*models.ArenaQuestion
	err := a.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("order_index ASC").
		Find(&questions).Error
	return questions, err
}

func (a *ArenaPostgreSQL) CountQuestions(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.ArenaQuestion{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

func (a *ArenaPostgreSQL) CreateParticipant(ctx context.Context, participant *models.ArenaParticipant) error {
	return a.db.WithContext(ctx).Create(participant).Error
}

func (a *ArenaPostgreSQL) GetParticipant(ctx context.Context, sessionID, userID string) (*models.ArenaParticipant, error) {
	var participant models.ArenaParticipant
	err := a.db.WithContext(ctx).
		First(&participant, "session_id = ? AND user_id = ?", sessionID, userID).Error
	if err != nil {
		return nil, err
	}
	return &participant, nil
}

func (a *ArenaPostgreSQL) GetParticipants(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error) {
	var participants []*models.ArenaParticipant
	err := a.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("joined_at ASC").
		Find(&participants).Error
	return participants, err
}

func (a *ArenaPostgreSQL) CountParticipants(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.ArenaParticipant{}).
		Where("session_id = ?", sessionID).
		Count(&count).Error
	return count, err
}

// SubmitAnswer inserts the answer record and saves the participant's updated
// score/streak counters in one transaction. The unique index on
// (session_id, question_id, user_id) rejects duplicate submissions that slip
// past the service-side guard.
func (a *ArenaPostgreSQL) SubmitAnswer(ctx context.Context, answer *models.ArenaAnswer, participant *models.ArenaParticipant) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(answer).Error; err != nil {
			return err
		}
		return tx.Save(participant).Error
	})
}

func (a *ArenaPostgreSQL) GetAnswers(ctx context.Context, sessionID string) ([]*models.ArenaAnswer, error) {
	var answers []*models.ArenaAnswer
	err := a.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC").
		Find(&answers).Error
	return answers, err
}

func (a *ArenaPostgreSQL) HasAnswered(ctx context.Context, sessionID, questionID, userID string) (bool, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.ArenaAnswer{}).
		Where("session_id = ? AND question_id = ? AND user_id = ?", sessionID, questionID, userID).
		Count(&count).Error
	return count > 0, err
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return query.Limit(limit).Offset(offset)
}
