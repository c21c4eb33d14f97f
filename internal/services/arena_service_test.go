package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/studypulse/arena-service/internal/events"
	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/realtime"
	"github.com/studypulse/arena-service/internal/utils"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestArenaService(repo *mockRepository) (ArenaService, *events.MockEventPublisher) {
	publisher := events.NewMockEventPublisher(testLogger())
	svc := NewArenaService(
		repo,
		new(MockQuizGenerator),
		realtime.NewMemoryHub(),
		publisher,
		nil,
		testLogger(),
		utils.NewValidator(),
	)
	return svc, publisher
}

func triviaOptions(t *testing.T) datatypes.JSON {
	t.Helper()
	payload, err := json.Marshal([]models.QuestionOption{
		{ID: "a", Text: "Paris"},
		{ID: "b", Text: "Lyon"},
	})
	assert.NoError(t, err)
	return datatypes.JSON(payload)
}

func activeSession() *models.ArenaSession {
	return &models.ArenaSession{
		ID:                  "session-1",
		Title:               "Capital cities",
		HostID:              "host-1",
		Status:              models.SessionActive,
		MaxParticipants:     50,
		TotalQuestions:      2,
		QuestionTimeSeconds: 30,
		CurrentQuestion:     0,
	}
}

func TestArenaCreate_AppliesDefaults(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	repo.arena.On("CreateSession", mock.Anything, mock.MatchedBy(func(s *models.ArenaSession) bool {
		return s.HostID == "host-1" &&
			s.Status == models.SessionWaiting &&
			s.MaxParticipants == 50 &&
			s.TotalQuestions == 10 &&
			s.QuestionTimeSeconds == 30
	})).Return(nil)

	session, err := svc.Create(context.Background(), &CreateSessionRequest{Title: "Quick quiz"}, "host-1")

	assert.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	repo.arena.AssertExpectations(t)
}

func TestArenaCreate_RejectsEmptyTitle(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	_, err := svc.Create(context.Background(), &CreateSessionRequest{}, "host-1")

	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestArenaJoin_IsIdempotent(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.Status = models.SessionWaiting
	existing := &models.ArenaParticipant{ID: "p-1", SessionID: session.ID, UserID: "user-1"}

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetParticipant", mock.Anything, session.ID, "user-1").Return(existing, nil)

	participant, err := svc.Join(context.Background(), session.ID, "user-1")

	assert.NoError(t, err)
	assert.Equal(t, existing.ID, participant.ID)
	repo.arena.AssertNotCalled(t, "CreateParticipant", mock.Anything, mock.Anything)
}

func TestArenaJoin_RejectsFullSession(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.Status = models.SessionWaiting
	session.MaxParticipants = 2

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetParticipant", mock.Anything, session.ID, "user-3").Return(nil, gorm.ErrRecordNotFound)
	repo.arena.On("CountParticipants", mock.Anything, session.ID).Return(int64(2), nil)

	_, err := svc.Join(context.Background(), session.ID, "user-3")

	assert.ErrorIs(t, err, ErrSessionFull)
}

func TestArenaJoin_RejectsFinishedSession(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.Status = models.SessionCompleted
	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)

	_, err := svc.Join(context.Background(), session.ID, "user-1")

	assert.ErrorIs(t, err, ErrSessionNotJoinable)
}

func TestArenaStart_RequiresQuestions(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.Status = models.SessionWaiting

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("CountQuestions", mock.Anything, session.ID).Return(int64(0), nil)

	err := svc.Start(context.Background(), session.ID, "host-1")

	assert.ErrorIs(t, err, ErrSessionNotStartable)
}

func TestArenaStart_RejectsNonHost(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.Status = models.SessionWaiting
	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)

	err := svc.Start(context.Background(), session.ID, "someone-else")

	assert.ErrorIs(t, err, ErrNotHost)
}

func TestArenaSubmitAnswer_RejectsSecondAnswer(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	questions := []*models.ArenaQuestion{{
		ID:              "q-1",
		SessionID:       session.ID,
		Options:         triviaOptions(t),
		CorrectOptionID: "a",
		Points:          10,
	}}
	participant := &models.ArenaParticipant{ID: "p-1", SessionID: session.ID, UserID: "user-1", Score: 14}

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetQuestions", mock.Anything, session.ID).Return(questions, nil)
	repo.arena.On("GetParticipant", mock.Anything, session.ID, "user-1").Return(participant, nil)
	repo.arena.On("HasAnswered", mock.Anything, session.ID, "q-1", "user-1").Return(true, nil)

	_, err := svc.SubmitAnswer(context.Background(), session.ID, "user-1", &SubmitAnswerRequest{
		QuestionID: "q-1",
		OptionID:   "b",
		ElapsedMs:  1000,
	})

	// First answer stands: the duplicate is rejected and nothing is written.
	assert.ErrorIs(t, err, ErrAlreadyAnswered)
	assert.Equal(t, 14, participant.Score)
	repo.arena.AssertNotCalled(t, "SubmitAnswer", mock.Anything, mock.Anything, mock.Anything)
}

func TestArenaSubmitAnswer_ScoresAndExtendsStreak(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	questions := []*models.ArenaQuestion{{
		ID:              "q-1",
		SessionID:       session.ID,
		Options:         triviaOptions(t),
		CorrectOptionID: "a",
		Points:          10,
	}}
	participant := &models.ArenaParticipant{
		ID: "p-1", SessionID: session.ID, UserID: "user-1",
		Score: 10, CorrectAnswers: 1, CurrentStreak: 1, BestStreak: 1,
	}

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetQuestions", mock.Anything, session.ID).Return(questions, nil)
	repo.arena.On("GetParticipant", mock.Anything, session.ID, "user-1").Return(participant, nil)
	repo.arena.On("HasAnswered", mock.Anything, session.ID, "q-1", "user-1").Return(false, nil)
	repo.arena.On("SubmitAnswer", mock.Anything, mock.Anything, participant).Return(nil)

	result, err := svc.SubmitAnswer(context.Background(), session.ID, "user-1", &SubmitAnswerRequest{
		QuestionID: "q-1",
		OptionID:   "a",
		ElapsedMs:  5000,
	})

	assert.NoError(t, err)
	assert.True(t, result.IsCorrect)
	// 10 base + floor((1 - 5/30) * 10 * 0.5) = 14
	assert.Equal(t, 14, result.PointsEarned)
	assert.Equal(t, 24, result.TotalScore)
	assert.Equal(t, 2, result.Streak)
	assert.Equal(t, 2, participant.BestStreak)
}

func TestArenaSubmitAnswer_WrongAnswerResetsStreak(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	questions := []*models.ArenaQuestion{{
		ID:              "q-1",
		SessionID:       session.ID,
		Options:         triviaOptions(t),
		CorrectOptionID: "a",
		Points:          10,
	}}
	participant := &models.ArenaParticipant{
		ID: "p-1", SessionID: session.ID, UserID: "user-1",
		CurrentStreak: 3, BestStreak: 3,
	}

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetQuestions", mock.Anything, session.ID).Return(questions, nil)
	repo.arena.On("GetParticipant", mock.Anything, session.ID, "user-1").Return(participant, nil)
	repo.arena.On("HasAnswered", mock.Anything, session.ID, "q-1", "user-1").Return(false, nil)
	repo.arena.On("SubmitAnswer", mock.Anything, mock.Anything, participant).Return(nil)

	result, err := svc.SubmitAnswer(context.Background(), session.ID, "user-1", &SubmitAnswerRequest{
		QuestionID: "q-1",
		OptionID:   "b",
		ElapsedMs:  2000,
	})

	assert.NoError(t, err)
	assert.False(t, result.IsCorrect)
	assert.Equal(t, 0, result.PointsEarned)
	assert.Equal(t, 0, participant.CurrentStreak)
	assert.Equal(t, 3, participant.BestStreak)
}

func TestArenaSubmitAnswer_RejectsStaleQuestion(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	session.CurrentQuestion = 1
	questions := []*models.ArenaQuestion{
		{ID: "q-1", SessionID: session.ID, Options: triviaOptions(t), CorrectOptionID: "a", Points: 10},
		{ID: "q-2", SessionID: session.ID, Options: triviaOptions(t), CorrectOptionID: "b", Points: 10},
	}

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("GetQuestions", mock.Anything, session.ID).Return(questions, nil)

	_, err := svc.SubmitAnswer(context.Background(), session.ID, "user-1", &SubmitAnswerRequest{
		QuestionID: "q-1",
		OptionID:   "a",
		ElapsedMs:  1000,
	})

	assert.ErrorIs(t, err, ErrNoSuchQuestion)
}

func TestArenaLeaderboard_OrdersByScoreThenJoinTime(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	early := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(time.Minute)
	participants := []*models.ArenaParticipant{
		{ID: "p-1", UserID: "late-high", Score: 20, JoinedAt: late},
		{ID: "p-2", UserID: "early-high", Score: 20, JoinedAt: early},
		{ID: "p-3", UserID: "low", Score: 5, JoinedAt: early},
	}
	repo.arena.On("GetParticipants", mock.Anything, "session-1").Return(participants, nil)

	leaderboard, err := svc.Leaderboard(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Equal(t, "early-high", leaderboard[0].UserID)
	assert.Equal(t, "late-high", leaderboard[1].UserID)
	assert.Equal(t, "low", leaderboard[2].UserID)
	assert.Equal(t, []int{1, 2, 3}, []int{leaderboard[0].Rank, leaderboard[1].Rank, leaderboard[2].Rank})
}

func TestArenaAdvance_PastLastQuestionCompletes(t *testing.T) {
	repo := newMockRepository()
	svc, publisher := newTestArenaService(repo)

	session := activeSession()
	session.CurrentQuestion = 1 // last of 2

	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)
	repo.arena.On("CountQuestions", mock.Anything, session.ID).Return(int64(2), nil)
	repo.arena.On("UpdateSession", mock.Anything, session).Return(nil)
	repo.arena.On("GetParticipants", mock.Anything, session.ID).Return([]*models.ArenaParticipant{
		{ID: "p-1", UserID: "winner", Score: 30},
	}, nil)

	updated, err := svc.AdvanceQuestion(context.Background(), session.ID, "host-1")

	assert.NoError(t, err)
	assert.Equal(t, models.SessionCompleted, updated.Status)
	assert.NotNil(t, updated.EndedAt)

	published := publisher.GetPublishedEvents()
	assert.Len(t, published, 1)
	assert.Equal(t, events.EventArenaSessionCompleted, published[0].Type)
}

func newTestArenaServiceWithCache(repo *mockRepository, cache *MockLeaderboardCache) ArenaService {
	return NewArenaService(
		repo,
		new(MockQuizGenerator),
		realtime.NewMemoryHub(),
		events.NewMockEventPublisher(testLogger()),
		cache,
		testLogger(),
		utils.NewValidator(),
	)
}

func TestArenaLeaderboard_ServesCachedSnapshot(t *testing.T) {
	repo := newMockRepository()
	cache := new(MockLeaderboardCache)
	svc := newTestArenaServiceWithCache(repo, cache)

	cached := []*models.ArenaParticipant{{ID: "p-1", UserID: "user-1", Score: 30, Rank: 1}}
	cache.On("GetLeaderboard", mock.Anything, "session-1").Return(cached, nil)

	leaderboard, err := svc.Leaderboard(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Equal(t, cached, leaderboard)
	repo.arena.AssertNotCalled(t, "GetParticipants", mock.Anything, mock.Anything)
}

func TestArenaLeaderboard_CacheMissRecomputesAndStores(t *testing.T) {
	repo := newMockRepository()
	cache := new(MockLeaderboardCache)
	svc := newTestArenaServiceWithCache(repo, cache)

	cache.On("GetLeaderboard", mock.Anything, "session-1").Return(nil, nil)
	participants := []*models.ArenaParticipant{
		{ID: "p-1", UserID: "low", Score: 5},
		{ID: "p-2", UserID: "high", Score: 20},
	}
	repo.arena.On("GetParticipants", mock.Anything, "session-1").Return(participants, nil)
	cache.On("SetLeaderboard", mock.Anything, "session-1", mock.MatchedBy(func(entries []*models.ArenaParticipant) bool {
		return len(entries) == 2 && entries[0].UserID == "high" && entries[0].Rank == 1
	})).Return(nil)

	leaderboard, err := svc.Leaderboard(context.Background(), "session-1")

	assert.NoError(t, err)
	assert.Equal(t, "high", leaderboard[0].UserID)
	cache.AssertExpectations(t)
}

func TestArenaWatch_CancelTwiceIsSafe(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestArenaService(repo)

	session := activeSession()
	repo.arena.On("GetSession", mock.Anything, session.ID).Return(session, nil)

	snapshots, cancel, err := svc.Watch(context.Background(), session.ID)
	assert.NoError(t, err)

	cancel()
	cancel()

	_, open := <-snapshots
	assert.False(t, open)
}
