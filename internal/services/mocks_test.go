package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/studypulse/arena-service/internal/ai"
	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/repositories"
)

// MockArenaRepository is a mock implementation of ArenaRepository
type MockArenaRepository struct {
	mock.Mock
}

func (m *MockArenaRepository) CreateSession(ctx context.Context, session *models.ArenaSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockArenaRepository) GetSession(ctx context.Context, id string) (*models.ArenaSession, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArenaSession), args.Error(1)
}

func (m *MockArenaRepository) UpdateSession(ctx context.Context, session *models.ArenaSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockArenaRepository) ListSessions(ctx context.Context, filters repositories.SessionFilters) ([]*models.ArenaSession, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.ArenaSession), args.Get(1).(int64), args.Error(2)
}

func (m *MockArenaRepository) CreateQuestions(ctx context.Context, questions []*models.ArenaQuestion) error {
	args := m.Called(ctx, questions)
	return args.Error(0)
}

func (m *MockArenaRepository) GetQuestions(ctx context.Context, sessionID string) ([]*models.ArenaQuestion, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]*models.ArenaQuestion), args.Error(1)
}

func (m *MockArenaRepository) CountQuestions(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArenaRepository) CreateParticipant(ctx context.Context, participant *models.ArenaParticipant) error {
	args := m.Called(ctx, participant)
	return args.Error(0)
}

func (m *MockArenaRepository) GetParticipant(ctx context.Context, sessionID, userID string) (*models.ArenaParticipant, error) {
	args := m.Called(ctx, sessionID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ArenaParticipant), args.Error(1)
}

func (m *MockArenaRepository) GetParticipants(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]*models.ArenaParticipant), args.Error(1)
}

func (m *MockArenaRepository) CountParticipants(ctx context.Context, sessionID string) (int64, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockArenaRepository) SubmitAnswer(ctx context.Context, answer *models.ArenaAnswer, participant *models.ArenaParticipant) error {
	args := m.Called(ctx, answer, participant)
	return args.Error(0)
}

func (m *MockArenaRepository) GetAnswers(ctx context.Context, sessionID string) ([]*models.ArenaAnswer, error) {
	args := m.Called(ctx, sessionID)
	return args.Get(0).([]*models.ArenaAnswer), args.Error(1)
}

func (m *MockArenaRepository) HasAnswered(ctx context.Context, sessionID, questionID, userID string) (bool, error) {
	args := m.Called(ctx, sessionID, questionID, userID)
	return args.Bool(0), args.Error(1)
}

// MockDuelRepository is a mock implementation of DuelRepository
type MockDuelRepository struct {
	mock.Mock
}

func (m *MockDuelRepository) CreateDuel(ctx context.Context, duel *models.SkillDuel) error {
	args := m.Called(ctx, duel)
	return args.Error(0)
}

func (m *MockDuelRepository) GetDuel(ctx context.Context, id string) (*models.SkillDuel, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SkillDuel), args.Error(1)
}

func (m *MockDuelRepository) UpdateDuel(ctx context.Context, duel *models.SkillDuel) error {
	args := m.Called(ctx, duel)
	return args.Error(0)
}

func (m *MockDuelRepository) ListDuels(ctx context.Context, filters repositories.DuelFilters) ([]*models.SkillDuel, int64, error) {
	args := m.Called(ctx, filters)
	return args.Get(0).([]*models.SkillDuel), args.Get(1).(int64), args.Error(2)
}

func (m *MockDuelRepository) CreateRounds(ctx context.Context, rounds []*models.DuelRound) error {
	args := m.Called(ctx, rounds)
	return args.Error(0)
}

func (m *MockDuelRepository) GetRound(ctx context.Context, id string) (*models.DuelRound, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DuelRound), args.Error(1)
}

func (m *MockDuelRepository) GetRounds(ctx context.Context, duelID string) ([]*models.DuelRound, error) {
	args := m.Called(ctx, duelID)
	return args.Get(0).([]*models.DuelRound), args.Error(1)
}

func (m *MockDuelRepository) UpdateRound(ctx context.Context, round *models.DuelRound) error {
	args := m.Called(ctx, round)
	return args.Error(0)
}

func (m *MockDuelRepository) ResolveRound(ctx context.Context, round *models.DuelRound, duel *models.SkillDuel) (bool, error) {
	args := m.Called(ctx, round, duel)
	return args.Bool(0), args.Error(1)
}

func (m *MockDuelRepository) UpsertSpectator(ctx context.Context, spectator *models.DuelSpectator) error {
	args := m.Called(ctx, spectator)
	return args.Error(0)
}

func (m *MockDuelRepository) GetSpectators(ctx context.Context, duelID string) ([]*models.DuelSpectator, error) {
	args := m.Called(ctx, duelID)
	return args.Get(0).([]*models.DuelSpectator), args.Error(1)
}

// MockExamAttemptRepository is a mock implementation of ExamAttemptRepository
type MockExamAttemptRepository struct {
	mock.Mock
}

func (m *MockExamAttemptRepository) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockExamAttemptRepository) GetByID(ctx context.Context, id string) (*models.ExamAttempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ExamAttempt), args.Error(1)
}

func (m *MockExamAttemptRepository) GetByUser(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	args := m.Called(ctx, userID, filters)
	return args.Get(0).([]*models.ExamAttempt), args.Get(1).(int64), args.Error(2)
}

// mockRepository aggregates the three mocks behind the Repository interface.
type mockRepository struct {
	arena *MockArenaRepository
	duel  *MockDuelRepository
	exam  *MockExamAttemptRepository
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		arena: new(MockArenaRepository),
		duel:  new(MockDuelRepository),
		exam:  new(MockExamAttemptRepository),
	}
}

func (r *mockRepository) Arena() repositories.ArenaRepository      { return r.arena }
func (r *mockRepository) Duel() repositories.DuelRepository        { return r.duel }
func (r *mockRepository) Exam() repositories.ExamAttemptRepository { return r.exam }

// MockQuizGenerator stubs the AI quiz generation call.
type MockQuizGenerator struct {
	mock.Mock
}

func (m *MockQuizGenerator) GenerateQuiz(ctx context.Context, req ai.QuizRequest) ([]ai.GeneratedQuizQuestion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ai.GeneratedQuizQuestion), args.Error(1)
}

// MockExamGenerator stubs the AI exam calls.
type MockExamGenerator struct {
	mock.Mock
}

func (m *MockExamGenerator) GenerateExamSection(ctx context.Context, req ai.ExamSectionRequest) ([]ai.GeneratedExamQuestion, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ai.GeneratedExamQuestion), args.Error(1)
}

func (m *MockExamGenerator) EvaluateSpeaking(ctx context.Context, req ai.SpeakingRequest) (*ai.SpeakingEvaluation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ai.SpeakingEvaluation), args.Error(1)
}

// MockLeaderboardCache is a mock implementation of LeaderboardCache
type MockLeaderboardCache struct {
	mock.Mock
}

func (m *MockLeaderboardCache) GetLeaderboard(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ArenaParticipant), args.Error(1)
}

func (m *MockLeaderboardCache) SetLeaderboard(ctx context.Context, sessionID string, entries []*models.ArenaParticipant) error {
	args := m.Called(ctx, sessionID, entries)
	return args.Error(0)
}

func (m *MockLeaderboardCache) InvalidateLeaderboard(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
