package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/studypulse/arena-service/internal/ai"
	"github.com/studypulse/arena-service/internal/events"
	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/realtime"
	"github.com/studypulse/arena-service/internal/repositories"
	"github.com/studypulse/arena-service/internal/utils"
)

// QuizGenerator is the slice of the AI collaborator the arena needs.
type QuizGenerator interface {
	GenerateQuiz(ctx context.Context, req ai.QuizRequest) ([]ai.GeneratedQuizQuestion, error)
}

// LeaderboardCache keeps derived leaderboard snapshots. The store stays
// authoritative: reads fall back to it on a miss, submissions invalidate.
type LeaderboardCache interface {
	GetLeaderboard(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error)
	SetLeaderboard(ctx context.Context, sessionID string, entries []*models.ArenaParticipant) error
	InvalidateLeaderboard(ctx context.Context, sessionID string) error
}

type CreateSessionRequest struct {
	Title               string  `json:"title" validate:"required,min=1,max=200"`
	Description         *string `json:"description" validate:"omitempty,max=1000"`
	Category            string  `json:"category" validate:"omitempty,max=100"`
	TotalQuestions      int     `json:"total_questions" validate:"omitempty,min=1,max=50"`
	QuestionTimeSeconds int     `json:"question_time_seconds" validate:"omitempty,min=5,max=300"`
	MaxParticipants     int     `json:"max_participants" validate:"omitempty,min=2,max=200"`
	AutoAdvance         bool    `json:"auto_advance"`
	GenerateAI          bool    `json:"generate_ai"`
	Difficulty          string  `json:"difficulty" validate:"omitempty,difficulty"`
}

type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	OptionID   string `json:"option_id" validate:"required"`
	ElapsedMs  int    `json:"elapsed_ms" validate:"min=0"`
}

// AnswerResult is the per-submission outcome returned to the caller.
type AnswerResult struct {
	QuestionID   string `json:"question_id"`
	IsCorrect    bool   `json:"is_correct"`
	PointsEarned int    `json:"points_earned"`
	TotalScore   int    `json:"total_score"`
	Streak       int    `json:"streak"`
}

type ArenaService interface {
	Create(ctx context.Context, req *CreateSessionRequest, hostID string) (*models.ArenaSession, error)
	Get(ctx context.Context, sessionID string) (*models.ArenaSession, error)
	List(ctx context.Context) ([]*models.ArenaSession, error)
	Join(ctx context.Context, sessionID, userID string) (*models.ArenaParticipant, error)
	Start(ctx context.Context, sessionID, hostID string) error
	Cancel(ctx context.Context, sessionID, hostID string) error
	SubmitAnswer(ctx context.Context, sessionID, userID string, req *SubmitAnswerRequest) (*AnswerResult, error)
	AdvanceQuestion(ctx context.Context, sessionID, hostID string) (*models.ArenaSession, error)
	Leaderboard(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error)
	Questions(ctx context.Context, sessionID string) ([]*models.ArenaQuestion, error)
	GenerateQuestions(ctx context.Context, sessionID, category, difficulty string, count int) (int, error)
	Watch(ctx context.Context, sessionID string) (<-chan ArenaSnapshot, func(), error)
	Shutdown()
}

type arenaService struct {
	repo      repositories.Repository
	generator QuizGenerator
	hub       realtime.Hub
	publisher events.EventPublisher
	cache     LeaderboardCache
	logger    *slog.Logger
	validator *utils.Validator
	questions *utils.QuestionValidator

	// One countdown per auto-advancing session; cancelled on any transition
	// away from active so no orphaned expiry mutates a finished session.
	timersMu sync.Mutex
	timers   map[string]*CountdownTimer
}

func NewArenaService(
	repo repositories.Repository,
	generator QuizGenerator,
	hub realtime.Hub,
	publisher events.EventPublisher,
	cache LeaderboardCache,
	logger *slog.Logger,
	validator *utils.Validator,
) ArenaService {
	return &arenaService{
		repo:      repo,
		generator: generator,
		hub:       hub,
		publisher: publisher,
		cache:     cache,
		logger:    logger,
		validator: validator,
		questions: utils.NewQuestionValidator(),
		timers:    make(map[string]*CountdownTimer),
	}
}

// ===== LIFECYCLE =====

func (s *arenaService) Create(ctx context.Context, req *CreateSessionRequest, hostID string) (*models.ArenaSession, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	session := &models.ArenaSession{
		ID:                  uuid.NewString(),
		Title:               req.Title,
		Description:         req.Description,
		Category:            req.Category,
		HostID:              hostID,
		Status:              models.SessionWaiting,
		MaxParticipants:     valueOr(req.MaxParticipants, 50),
		TotalQuestions:      valueOr(req.TotalQuestions, 10),
		QuestionTimeSeconds: valueOr(req.QuestionTimeSeconds, 30),
		AutoAdvance:         req.AutoAdvance,
	}

	if err := s.repo.Arena().CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	s.logger.Info("Arena session created",
		"session_id", session.ID,
		"host_id", hostID,
		"generate_ai", req.GenerateAI)

	s.publishChange(ctx, "arena_sessions", realtime.OpInsert, session.ID, session.ID, session)

	if req.GenerateAI {
		category := req.Category
		if category == "" {
			category = req.Title
		}
		difficulty := req.Difficulty
		if difficulty == "" {
			difficulty = string(models.DifficultyIntermediate)
		}
		// Generation runs detached: the session is returned immediately and
		// stays joinable but non-startable until questions land. Failures are
		// logged and surfaced when the host tries to start.
		go func() {
			genCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()
			if _, err := s.GenerateQuestions(genCtx, session.ID, category, difficulty, session.TotalQuestions); err != nil {
				s.logger.Error("Background question generation failed",
					"session_id", session.ID,
					"error", err)
			}
		}()
	}

	return session, nil
}

func (s *arenaService) GenerateQuestions(ctx context.Context, sessionID, category, difficulty string, count int) (int, error) {
	generated, err := s.generator.GenerateQuiz(ctx, ai.QuizRequest{
		Category:      category,
		Difficulty:    difficulty,
		QuestionCount: count,
	})
	if err != nil {
		return 0, err
	}

	rows := make([]*models.ArenaQuestion, 0, len(generated))
	for idx, q := range generated {
		points := q.Points
		if points <= 0 {
			points = 10
		}
		if err := s.questions.ValidateTrivia(q.QuestionText, q.Options, q.CorrectOptionID, points); err != nil {
			return 0, fmt.Errorf("generated question %d rejected: %w", idx, err)
		}
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("failed to encode options: %w", err)
		}
		var explanation *string
		if q.Explanation != "" {
			e := q.Explanation
			explanation = &e
		}
		rows = append(rows, &models.ArenaQuestion{
			ID:              uuid.NewString(),
			SessionID:       sessionID,
			QuestionText:    q.QuestionText,
			Options:         datatypes.JSON(optionsJSON),
			CorrectOptionID: q.CorrectOptionID,
			Points:          points,
			Explanation:     explanation,
			OrderIndex:      idx,
		})
	}

	// All-or-nothing: a partially generated set is never persisted.
	if err := s.repo.Arena().CreateQuestions(ctx, rows); err != nil {
		return 0, fmt.Errorf("failed to store questions: %w", err)
	}

	s.logger.Info("Questions generated for session",
		"session_id", sessionID,
		"count", len(rows))

	s.publishChange(ctx, "arena_questions", realtime.OpInsert, sessionID, sessionID, nil)
	return len(rows), nil
}

func (s *arenaService) Get(ctx context.Context, sessionID string) (*models.ArenaSession, error) {
	session, err := s.repo.Arena().GetSession(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return session, nil
}

func (s *arenaService) List(ctx context.Context) ([]*models.ArenaSession, error) {
	sessions, _, err := s.repo.Arena().ListSessions(ctx, repositories.SessionFilters{
		Statuses: []models.SessionStatus{models.SessionWaiting, models.SessionStarting, models.SessionActive},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

func (s *arenaService) Join(ctx context.Context, sessionID, userID string) (*models.ArenaParticipant, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsJoinable() {
		return nil, ErrSessionNotJoinable
	}

	// Joining twice is an idempotent success.
	if existing, err := s.repo.Arena().GetParticipant(ctx, sessionID, userID); err == nil {
		return existing, nil
	} else if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up participant: %w", err)
	}

	count, err := s.repo.Arena().CountParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count participants: %w", err)
	}
	if count >= int64(session.MaxParticipants) {
		return nil, ErrSessionFull
	}

	participant := &models.ArenaParticipant{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		JoinedAt:  time.Now(),
	}
	if err := s.repo.Arena().CreateParticipant(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to join session: %w", err)
	}

	s.logger.Info("Participant joined arena session",
		"session_id", sessionID,
		"user_id", userID)

	s.publishChange(ctx, "arena_participants", realtime.OpInsert, participant.ID, sessionID, participant)
	return participant, nil
}

func (s *arenaService) Start(ctx context.Context, sessionID, hostID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.HostID != hostID {
		return ErrNotHost
	}
	switch session.Status {
	case models.SessionWaiting, models.SessionStarting:
	default:
		return NewConflictError("arena_session", sessionID, "session already started or finished")
	}

	questionCount, err := s.repo.Arena().CountQuestions(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to count questions: %w", err)
	}
	if questionCount == 0 {
		return ErrSessionNotStartable
	}

	now := time.Now()
	session.Status = models.SessionActive
	session.StartedAt = &now
	session.CurrentQuestion = 0
	if err := s.repo.Arena().UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	s.publishChange(ctx, "arena_sessions", realtime.OpUpdate, sessionID, sessionID, session)
	s.publishNotification(ctx, events.EventArenaSessionStarted, events.ArenaSessionStartedEvent{
		SessionID:      session.ID,
		Title:          session.Title,
		HostID:         session.HostID,
		TotalQuestions: session.TotalQuestions,
		StartedAt:      now,
	})

	if session.AutoAdvance {
		s.armAutoAdvance(session)
	}

	s.logger.Info("Arena session started", "session_id", sessionID)
	return nil
}

func (s *arenaService) Cancel(ctx context.Context, sessionID, hostID string) error {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.HostID != hostID {
		return ErrNotHost
	}
	switch session.Status {
	case models.SessionWaiting, models.SessionStarting:
	default:
		return NewConflictError("arena_session", sessionID, "only waiting sessions can be cancelled")
	}

	now := time.Now()
	session.Status = models.SessionCancelled
	session.EndedAt = &now
	if err := s.repo.Arena().UpdateSession(ctx, session); err != nil {
		return fmt.Errorf("failed to cancel session: %w", err)
	}

	s.stopTimer(sessionID)
	s.publishChange(ctx, "arena_sessions", realtime.OpUpdate, sessionID, sessionID, session)
	s.publishNotification(ctx, events.EventArenaSessionCancelled, events.ArenaSessionCompletedEvent{
		SessionID: session.ID,
		Title:     session.Title,
		EndedAt:   now,
	})
	return nil
}

// ===== ANSWERS =====

func (s *arenaService) SubmitAnswer(ctx context.Context, sessionID, userID string, req *SubmitAnswerRequest) (*AnswerResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != models.SessionActive {
		return nil, ErrSessionNotActive
	}

	questions, err := s.repo.Arena().GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	if session.CurrentQuestion < 0 || session.CurrentQuestion >= len(questions) {
		// Session points past its question list; degrade to waiting-for-host
		// rather than crashing the submitter.
		return nil, ErrNoSuchQuestion
	}
	current := questions[session.CurrentQuestion]
	if current.ID != req.QuestionID {
		return nil, ErrNoSuchQuestion
	}

	participant, err := s.repo.Arena().GetParticipant(ctx, sessionID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to load participant: %w", err)
	}

	answered, err := s.repo.Arena().HasAnswered(ctx, sessionID, req.QuestionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check prior answer: %w", err)
	}
	if answered {
		return nil, ErrAlreadyAnswered
	}

	var options []models.QuestionOption
	if err := json.Unmarshal(current.Options, &options); err != nil {
		return nil, fmt.Errorf("corrupt options payload: %w", err)
	}
	if !optionExists(options, req.OptionID) {
		return nil, NewValidationError("option_id", "not an option of the current question", req.OptionID)
	}

	isCorrect := req.OptionID == current.CorrectOptionID
	basePoints := current.Points
	if basePoints <= 0 {
		basePoints = 10
	}
	budgetMs := session.QuestionTimeSeconds * 1000
	pointsEarned := ScoreAnswer(isCorrect, req.ElapsedMs, budgetMs, basePoints)

	answer := &models.ArenaAnswer{
		ID:               uuid.NewString(),
		SessionID:        sessionID,
		QuestionID:       req.QuestionID,
		UserID:           userID,
		SelectedOptionID: req.OptionID,
		IsCorrect:        isCorrect,
		AnswerTimeMs:     req.ElapsedMs,
		PointsEarned:     pointsEarned,
	}

	participant.Score += pointsEarned
	if isCorrect {
		participant.CorrectAnswers++
		participant.CurrentStreak++
		if participant.CurrentStreak > participant.BestStreak {
			participant.BestStreak = participant.CurrentStreak
		}
	} else {
		participant.WrongAnswers++
		participant.CurrentStreak = 0
	}

	// Answer insert and score update commit together or not at all.
	if err := s.repo.Arena().SubmitAnswer(ctx, answer, participant); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.InvalidateLeaderboard(ctx, sessionID)
	}
	s.publishChange(ctx, "arena_participants", realtime.OpUpdate, participant.ID, sessionID, participant)

	return &AnswerResult{
		QuestionID:   req.QuestionID,
		IsCorrect:    isCorrect,
		PointsEarned: pointsEarned,
		TotalScore:   participant.Score,
		Streak:       participant.CurrentStreak,
	}, nil
}

// ===== PROGRESSION =====

func (s *arenaService) AdvanceQuestion(ctx context.Context, sessionID, hostID string) (*models.ArenaSession, error) {
	session, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.HostID != hostID {
		return nil, ErrNotHost
	}
	if session.Status != models.SessionActive {
		return nil, ErrSessionNotActive
	}

	questionCount, err := s.repo.Arena().CountQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count questions: %w", err)
	}

	next := session.CurrentQuestion + 1
	if next >= int(questionCount) {
		return s.complete(ctx, session)
	}

	session.CurrentQuestion = next
	if err := s.repo.Arena().UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to advance question: %w", err)
	}

	s.publishChange(ctx, "arena_sessions", realtime.OpUpdate, sessionID, sessionID, session)
	if session.AutoAdvance {
		s.armAutoAdvance(session)
	}
	return session, nil
}

func (s *arenaService) complete(ctx context.Context, session *models.ArenaSession) (*models.ArenaSession, error) {
	now := time.Now()
	session.Status = models.SessionCompleted
	session.EndedAt = &now
	if err := s.repo.Arena().UpdateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to complete session: %w", err)
	}

	s.stopTimer(session.ID)
	s.publishChange(ctx, "arena_sessions", realtime.OpUpdate, session.ID, session.ID, session)

	event := events.ArenaSessionCompletedEvent{
		SessionID: session.ID,
		Title:     session.Title,
		EndedAt:   now,
	}
	if leaderboard, err := s.Leaderboard(ctx, session.ID); err == nil && len(leaderboard) > 0 {
		event.WinnerID = leaderboard[0].UserID
		event.TopScore = leaderboard[0].Score
	}
	s.publishNotification(ctx, events.EventArenaSessionCompleted, event)

	s.logger.Info("Arena session completed", "session_id", session.ID)
	return session, nil
}

// Leaderboard serves the cached snapshot when one is still fresh; otherwise
// it re-derives from participant rows: score descending, ties broken by
// earliest join time. Never by realtime event arrival order. Answer
// submissions invalidate the snapshot, and the cache TTL bounds staleness.
func (s *arenaService) Leaderboard(ctx context.Context, sessionID string) ([]*models.ArenaParticipant, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetLeaderboard(ctx, sessionID); err == nil && cached != nil {
			return cached, nil
		}
	}

	participants, err := s.repo.Arena().GetParticipants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	sort.SliceStable(participants, func(i, j int) bool {
		if participants[i].Score != participants[j].Score {
			return participants[i].Score > participants[j].Score
		}
		return participants[i].JoinedAt.Before(participants[j].JoinedAt)
	})
	for idx, p := range participants {
		p.Rank = idx + 1
	}

	if s.cache != nil {
		_ = s.cache.SetLeaderboard(ctx, sessionID, participants)
	}
	return participants, nil
}

func (s *arenaService) Questions(ctx context.Context, sessionID string) ([]*models.ArenaQuestion, error) {
	questions, err := s.repo.Arena().GetQuestions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return questions, nil
}

// ===== AUTO-ADVANCE TIMER =====

// armAutoAdvance restarts the session's countdown for the current question.
// CountdownTimer.Start cancels any running countdown first, so re-arming on
// every advance can never stack tickers for one session.
func (s *arenaService) armAutoAdvance(session *models.ArenaSession) {
	s.timersMu.Lock()
	timer, ok := s.timers[session.ID]
	if !ok {
		sessionID := session.ID
		hostID := session.HostID
		timer = NewCountdownTimer(nil, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if _, err := s.AdvanceQuestion(ctx, sessionID, hostID); err != nil {
				s.logger.Warn("Auto-advance failed",
					"session_id", sessionID,
					"error", err)
			}
		})
		s.timers[session.ID] = timer
	}
	s.timersMu.Unlock()

	timer.Start(session.QuestionTimeSeconds)
}

func (s *arenaService) stopTimer(sessionID string) {
	s.timersMu.Lock()
	timer, ok := s.timers[sessionID]
	if ok {
		delete(s.timers, sessionID)
	}
	s.timersMu.Unlock()
	if ok {
		timer.Cancel()
	}
}

// Shutdown cancels every running auto-advance countdown.
func (s *arenaService) Shutdown() {
	s.timersMu.Lock()
	timers := make([]*CountdownTimer, 0, len(s.timers))
	for id, t := range s.timers {
		timers = append(timers, t)
		delete(s.timers, id)
	}
	s.timersMu.Unlock()
	for _, t := range timers {
		t.Cancel()
	}
}

// ===== HELPERS =====

func (s *arenaService) publishChange(ctx context.Context, table string, op realtime.Operation, rowID, scope string, row interface{}) {
	event := realtime.ChangeEvent{
		Table: table,
		Op:    op,
		RowID: rowID,
		Scope: scope,
	}
	if row != nil {
		if payload, err := json.Marshal(row); err == nil {
			event.Row = payload
		}
	}
	if err := s.hub.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish change event",
			"table", table,
			"row_id", rowID,
			"error", err)
	}
}

func (s *arenaService) publishNotification(ctx context.Context, eventType events.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotificationEvent(ctx, events.NewNotificationEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish notification event",
			"event_type", eventType,
			"error", err)
	}
}

func optionExists(options []models.QuestionOption, optionID string) bool {
	for _, opt := range options {
		if opt.ID == optionID {
			return true
		}
	}
	return false
}

func valueOr(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}
