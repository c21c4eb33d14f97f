package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
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

type CreateDuelRequest struct {
	Category         string `json:"category" validate:"required,max=100"`
	TotalRounds      int    `json:"total_rounds" validate:"omitempty,min=1,max=20"`
	RoundTimeSeconds int    `json:"round_time_seconds" validate:"omitempty,min=5,max=300"`
	StakePoints      int    `json:"stake_points" validate:"min=0,max=1000"`
	Difficulty       string `json:"difficulty" validate:"omitempty,difficulty"`
}

type SubmitRoundAnswerRequest struct {
	RoundNumber int    `json:"round_number" validate:"required,min=1"`
	OptionID    string `json:"option_id" validate:"required"`
	ElapsedMs   int    `json:"elapsed_ms" validate:"min=0"`
}

// RoundResult is returned to the answering seat. Outcome fields are only
// populated once the round is resolved.
type RoundResult struct {
	RoundNumber   int     `json:"round_number"`
	IsCorrect     bool    `json:"is_correct"`
	Resolved      bool    `json:"resolved"`
	RoundWinnerID *string `json:"round_winner_id,omitempty"`
	DuelCompleted bool    `json:"duel_completed"`
}

type DuelService interface {
	Create(ctx context.Context, req *CreateDuelRequest, challengerID string) (*models.SkillDuel, error)
	Get(ctx context.Context, duelID string) (*models.SkillDuel, error)
	ListOpen(ctx context.Context) ([]*models.SkillDuel, error)
	ListForUser(ctx context.Context, userID string) ([]*models.SkillDuel, error)
	Accept(ctx context.Context, duelID, opponentID string) (*models.SkillDuel, error)
	Cancel(ctx context.Context, duelID, userID string) error
	Rounds(ctx context.Context, duelID string) ([]*models.DuelRound, error)
	SubmitAnswer(ctx context.Context, duelID, userID string, req *SubmitRoundAnswerRequest) (*RoundResult, error)
	Vote(ctx context.Context, duelID, userID, voteForUserID string) error
	VoteTally(ctx context.Context, duelID string) (*models.VoteTally, error)
	Shutdown()
}

type duelService struct {
	repo      repositories.Repository
	generator QuizGenerator
	hub       realtime.Hub
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator
	questions *utils.QuestionValidator

	// One countdown per active duel round; expiry force-resolves with
	// whatever answers landed in time.
	timersMu sync.Mutex
	timers   map[string]*CountdownTimer
}

func NewDuelService(
	repo repositories.Repository,
	generator QuizGenerator,
	hub realtime.Hub,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *utils.Validator,
) DuelService {
	return &duelService{
		repo:      repo,
		generator: generator,
		hub:       hub,
		publisher: publisher,
		logger:    logger,
		validator: validator,
		questions: utils.NewQuestionValidator(),
		timers:    make(map[string]*CountdownTimer),
	}
}

// ===== LIFECYCLE =====

func (s *duelService) Create(ctx context.Context, req *CreateDuelRequest, challengerID string) (*models.SkillDuel, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	duel := &models.SkillDuel{
		ID:               uuid.NewString(),
		ChallengerID:     challengerID,
		Category:         req.Category,
		Status:           models.DuelWaiting,
		TotalRounds:      valueOr(req.TotalRounds, 5),
		RoundTimeSeconds: valueOr(req.RoundTimeSeconds, 60),
		StakePoints:      req.StakePoints,
	}
	if err := s.repo.Duel().CreateDuel(ctx, duel); err != nil {
		return nil, fmt.Errorf("failed to create duel: %w", err)
	}

	s.logger.Info("Duel created",
		"duel_id", duel.ID,
		"challenger_id", challengerID,
		"category", req.Category)

	s.publishChange(ctx, "skill_duels", realtime.OpInsert, duel.ID, duel.ID, duel)
	s.publishNotification(ctx, events.EventDuelCreated, events.DuelAcceptedEvent{
		DuelID:       duel.ID,
		ChallengerID: challengerID,
		TotalRounds:  duel.TotalRounds,
	})
	return duel, nil
}

func (s *duelService) Get(ctx context.Context, duelID string) (*models.SkillDuel, error) {
	duel, err := s.repo.Duel().GetDuel(ctx, duelID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrDuelNotFound
		}
		return nil, fmt.Errorf("failed to get duel: %w", err)
	}
	return duel, nil
}

func (s *duelService) ListOpen(ctx context.Context) ([]*models.SkillDuel, error) {
	duels, _, err := s.repo.Duel().ListDuels(ctx, repositories.DuelFilters{
		Statuses: []models.DuelStatus{models.DuelWaiting},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}
	return duels, nil
}

func (s *duelService) ListForUser(ctx context.Context, userID string) ([]*models.SkillDuel, error) {
	duels, _, err := s.repo.Duel().ListDuels(ctx, repositories.DuelFilters{UserID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list duels: %w", err)
	}
	return duels, nil
}

// Accept seats the opponent, generates the full round set, and activates the
// duel. Round generation happens before the duel flips to active so neither
// seat ever sees an active duel with no questions.
func (s *duelService) Accept(ctx context.Context, duelID, opponentID string) (*models.SkillDuel, error) {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if duel.ChallengerID == opponentID {
		return nil, ErrDuelSelfAccept
	}
	if duel.Status != models.DuelWaiting {
		return nil, ErrDuelNotJoinable
	}
	if duel.OpponentID != nil {
		return nil, ErrDuelAlreadyTaken
	}

	generated, err := s.generator.GenerateQuiz(ctx, ai.QuizRequest{
		Category:      duel.Category,
		Difficulty:    string(models.DifficultyIntermediate),
		QuestionCount: duel.TotalRounds,
	})
	if err != nil {
		return nil, err
	}
	if len(generated) < duel.TotalRounds {
		return nil, fmt.Errorf("generator returned %d questions, need %d", len(generated), duel.TotalRounds)
	}

	rounds := make([]*models.DuelRound, 0, duel.TotalRounds)
	for i := 0; i < duel.TotalRounds; i++ {
		q := generated[i]
		points := q.Points
		if points <= 0 {
			points = 10
		}
		if err := s.questions.ValidateTrivia(q.QuestionText, q.Options, q.CorrectOptionID, points); err != nil {
			return nil, fmt.Errorf("generated round %d rejected: %w", i+1, err)
		}
		optionsJSON, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		rounds = append(rounds, &models.DuelRound{
			ID:              uuid.NewString(),
			DuelID:          duel.ID,
			RoundNumber:     i + 1,
			QuestionText:    q.QuestionText,
			Options:         datatypes.JSON(optionsJSON),
			CorrectOptionID: q.CorrectOptionID,
			Points:          points,
		})
	}
	if err := s.repo.Duel().CreateRounds(ctx, rounds); err != nil {
		return nil, fmt.Errorf("failed to store rounds: %w", err)
	}

	now := time.Now()
	duel.OpponentID = &opponentID
	duel.Status = models.DuelActive
	duel.CurrentRound = 1
	duel.StartedAt = &now
	if err := s.repo.Duel().UpdateDuel(ctx, duel); err != nil {
		return nil, fmt.Errorf("failed to accept duel: %w", err)
	}

	s.logger.Info("Duel accepted",
		"duel_id", duelID,
		"opponent_id", opponentID)

	s.publishChange(ctx, "skill_duels", realtime.OpUpdate, duelID, duelID, duel)
	s.publishNotification(ctx, events.EventDuelAccepted, events.DuelAcceptedEvent{
		DuelID:       duel.ID,
		ChallengerID: duel.ChallengerID,
		OpponentID:   opponentID,
		TotalRounds:  duel.TotalRounds,
		StartedAt:    now,
	})

	s.armRoundTimer(duel)
	return duel, nil
}

func (s *duelService) Cancel(ctx context.Context, duelID, userID string) error {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return err
	}
	if duel.ChallengerID != userID {
		return ErrNotDuelParticipant
	}
	if duel.Status != models.DuelWaiting {
		return NewConflictError("skill_duel", duelID, "only waiting duels can be cancelled")
	}

	now := time.Now()
	duel.Status = models.DuelCancelled
	duel.EndedAt = &now
	if err := s.repo.Duel().UpdateDuel(ctx, duel); err != nil {
		return fmt.Errorf("failed to cancel duel: %w", err)
	}
	s.publishChange(ctx, "skill_duels", realtime.OpUpdate, duelID, duelID, duel)
	return nil
}

func (s *duelService) Rounds(ctx context.Context, duelID string) ([]*models.DuelRound, error) {
	if _, err := s.Get(ctx, duelID); err != nil {
		return nil, err
	}
	rounds, err := s.repo.Duel().GetRounds(ctx, duelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rounds: %w", err)
	}
	return rounds, nil
}

// ===== ANSWERS =====

func (s *duelService) SubmitAnswer(ctx context.Context, duelID, userID string, req *SubmitRoundAnswerRequest) (*RoundResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	if duel.Status != models.DuelActive {
		return nil, ErrDuelNotActive
	}
	seat, ok := duel.SeatOf(userID)
	if !ok {
		return nil, ErrNotDuelParticipant
	}
	if req.RoundNumber != duel.CurrentRound {
		return nil, ErrRoundNotFound
	}

	round, err := s.currentRound(ctx, duelID, req.RoundNumber)
	if err != nil {
		return nil, err
	}
	if round.Resolved() {
		return nil, ErrRoundNotFound
	}

	var options []models.QuestionOption
	if err := json.Unmarshal(round.Options, &options); err != nil {
		return nil, fmt.Errorf("corrupt options payload: %w", err)
	}
	if !optionExists(options, req.OptionID) {
		return nil, NewValidationError("option_id", "not an option of this round", req.OptionID)
	}

	optionID := req.OptionID
	elapsed := req.ElapsedMs
	switch seat {
	case models.SeatChallenger:
		if round.ChallengerAnswer != nil {
			return nil, ErrSeatAlreadyAnswered
		}
		round.ChallengerAnswer = &optionID
		round.ChallengerTimeMs = &elapsed
	case models.SeatOpponent:
		if round.OpponentAnswer != nil {
			return nil, ErrSeatAlreadyAnswered
		}
		round.OpponentAnswer = &optionID
		round.OpponentTimeMs = &elapsed
	}

	if err := s.repo.Duel().UpdateRound(ctx, round); err != nil {
		return nil, fmt.Errorf("failed to record answer: %w", err)
	}
	s.publishChange(ctx, "duel_rounds", realtime.OpUpdate, round.ID, duelID, round)

	result := &RoundResult{
		RoundNumber: req.RoundNumber,
		IsCorrect:   optionID == round.CorrectOptionID,
	}

	if round.BothAnswered() {
		completed, winnerID, err := s.resolveRound(ctx, duel, round)
		if err != nil {
			return nil, err
		}
		result.Resolved = true
		result.RoundWinnerID = winnerID
		result.DuelCompleted = completed
	}
	return result, nil
}

// resolveRound decides the round winner and applies scores through the
// conditional repository update. Correct beats incorrect; two correct answers
// go to the faster seat; anything else is a tie and no seat scores.
func (s *duelService) resolveRound(ctx context.Context, duel *models.SkillDuel, round *models.DuelRound) (bool, *string, error) {
	winnerID := roundWinner(duel, round)
	round.RoundWinnerID = winnerID

	if winnerID != nil {
		if *winnerID == duel.ChallengerID {
			duel.ChallengerScore += round.Points
		} else {
			duel.OpponentScore += round.Points
		}
	}

	completed := round.RoundNumber >= duel.TotalRounds
	if completed {
		now := time.Now()
		duel.Status = models.DuelCompleted
		duel.EndedAt = &now
		duel.WinnerID = duelWinner(duel)
	} else {
		duel.CurrentRound = round.RoundNumber + 1
	}

	applied, err := s.repo.Duel().ResolveRound(ctx, round, duel)
	if err != nil {
		return false, nil, fmt.Errorf("failed to resolve round: %w", err)
	}
	if !applied {
		// Someone else resolved first (timer expiry racing a submission).
		// Their outcome stands; report the stored state.
		stored, err := s.repo.Duel().GetRound(ctx, round.ID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to reload round: %w", err)
		}
		refreshed, err := s.Get(ctx, duel.ID)
		if err != nil {
			return false, nil, err
		}
		return refreshed.Status == models.DuelCompleted, stored.RoundWinnerID, nil
	}

	s.publishChange(ctx, "duel_rounds", realtime.OpUpdate, round.ID, duel.ID, round)
	s.publishChange(ctx, "skill_duels", realtime.OpUpdate, duel.ID, duel.ID, duel)

	if completed {
		s.stopTimer(duel.ID)
		opponentID := ""
		if duel.OpponentID != nil {
			opponentID = *duel.OpponentID
		}
		s.publishNotification(ctx, events.EventDuelCompleted, events.DuelCompletedEvent{
			DuelID:          duel.ID,
			ChallengerID:    duel.ChallengerID,
			OpponentID:      opponentID,
			ChallengerScore: duel.ChallengerScore,
			OpponentScore:   duel.OpponentScore,
			WinnerID:        duel.WinnerID,
			EndedAt:         *duel.EndedAt,
		})
		s.logger.Info("Duel completed",
			"duel_id", duel.ID,
			"challenger_score", duel.ChallengerScore,
			"opponent_score", duel.OpponentScore)
	} else {
		s.armRoundTimer(duel)
	}
	return completed, winnerID, nil
}

// roundWinner applies the per-round ranking. Nil means a tied round.
func roundWinner(duel *models.SkillDuel, round *models.DuelRound) *string {
	challengerCorrect := round.ChallengerAnswer != nil && *round.ChallengerAnswer == round.CorrectOptionID
	opponentCorrect := round.OpponentAnswer != nil && *round.OpponentAnswer == round.CorrectOptionID

	switch {
	case challengerCorrect && !opponentCorrect:
		return &duel.ChallengerID
	case opponentCorrect && !challengerCorrect:
		return duel.OpponentID
	case challengerCorrect && opponentCorrect:
		// Both right: faster seat wins, equal times tie.
		ct, ot := challengerTime(round), opponentTime(round)
		if ct < ot {
			return &duel.ChallengerID
		}
		if ot < ct {
			return duel.OpponentID
		}
	}
	return nil
}

func duelWinner(duel *models.SkillDuel) *string {
	if duel.ChallengerScore > duel.OpponentScore {
		return &duel.ChallengerID
	}
	if duel.OpponentScore > duel.ChallengerScore {
		return duel.OpponentID
	}
	return nil
}

func challengerTime(round *models.DuelRound) int {
	if round.ChallengerTimeMs == nil {
		return int(^uint(0) >> 1)
	}
	return *round.ChallengerTimeMs
}

func opponentTime(round *models.DuelRound) int {
	if round.OpponentTimeMs == nil {
		return int(^uint(0) >> 1)
	}
	return *round.OpponentTimeMs
}

// ===== SPECTATORS =====

func (s *duelService) Vote(ctx context.Context, duelID, userID, voteForUserID string) error {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return err
	}
	if _, isSeat := duel.SeatOf(userID); isSeat {
		return ErrSpectatorOnly
	}
	if _, validTarget := duel.SeatOf(voteForUserID); !validTarget {
		return NewValidationError("vote_for", "vote target occupies no seat in this duel", voteForUserID)
	}
	switch duel.Status {
	case models.DuelActive, models.DuelVoting:
	default:
		return ErrDuelNotActive
	}

	spectator := &models.DuelSpectator{
		ID:       uuid.NewString(),
		DuelID:   duelID,
		UserID:   userID,
		VoteFor:  &voteForUserID,
		JoinedAt: time.Now(),
	}
	if err := s.repo.Duel().UpsertSpectator(ctx, spectator); err != nil {
		return fmt.Errorf("failed to record vote: %w", err)
	}

	s.publishChange(ctx, "duel_spectators", realtime.OpUpdate, userID, duelID, nil)
	return nil
}

// VoteTally recomputes counts from spectator rows on every call; nothing is
// incrementally maintained, so a changed vote simply moves a count.
func (s *duelService) VoteTally(ctx context.Context, duelID string) (*models.VoteTally, error) {
	duel, err := s.Get(ctx, duelID)
	if err != nil {
		return nil, err
	}
	spectators, err := s.repo.Duel().GetSpectators(ctx, duelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load spectators: %w", err)
	}

	tally := &models.VoteTally{}
	for _, spec := range spectators {
		if spec.VoteFor == nil {
			continue
		}
		switch {
		case *spec.VoteFor == duel.ChallengerID:
			tally.Challenger++
		case duel.OpponentID != nil && *spec.VoteFor == *duel.OpponentID:
			tally.Opponent++
		}
	}
	return tally, nil
}

// ===== ROUND TIMER =====

// armRoundTimer starts the countdown for the duel's current round. On expiry
// the round is force-resolved with whatever answers landed; the conditional
// update in the repository keeps a racing submission from double-applying.
func (s *duelService) armRoundTimer(duel *models.SkillDuel) {
	s.timersMu.Lock()
	timer, ok := s.timers[duel.ID]
	if !ok {
		duelID := duel.ID
		timer = NewCountdownTimer(nil, func() {
			s.expireRound(duelID)
		})
		s.timers[duel.ID] = timer
	}
	s.timersMu.Unlock()

	timer.Start(duel.RoundTimeSeconds)
}

func (s *duelService) expireRound(duelID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	duel, err := s.Get(ctx, duelID)
	if err != nil || duel.Status != models.DuelActive {
		return
	}
	round, err := s.currentRound(ctx, duelID, duel.CurrentRound)
	if err != nil || round.Resolved() {
		return
	}
	if _, _, err := s.resolveRound(ctx, duel, round); err != nil {
		s.logger.Warn("Round expiry resolution failed",
			"duel_id", duelID,
			"round", round.RoundNumber,
			"error", err)
	}
}

func (s *duelService) currentRound(ctx context.Context, duelID string, roundNumber int) (*models.DuelRound, error) {
	rounds, err := s.repo.Duel().GetRounds(ctx, duelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rounds: %w", err)
	}
	for _, r := range rounds {
		if r.RoundNumber == roundNumber {
			return r, nil
		}
	}
	return nil, ErrRoundNotFound
}

func (s *duelService) stopTimer(duelID string) {
	s.timersMu.Lock()
	timer, ok := s.timers[duelID]
	if ok {
		delete(s.timers, duelID)
	}
	s.timersMu.Unlock()
	if ok {
		timer.Cancel()
	}
}

func (s *duelService) Shutdown() {
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

func (s *duelService) publishChange(ctx context.Context, table string, op realtime.Operation, rowID, scope string, row interface{}) {
	event := realtime.ChangeEvent{Table: table, Op: op, RowID: rowID, Scope: scope}
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

func (s *duelService) publishNotification(ctx context.Context, eventType events.EventType, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishNotificationEvent(ctx, events.NewNotificationEvent(eventType, data)); err != nil {
		s.logger.Warn("Failed to publish notification event",
			"event_type", eventType,
			"error", err)
	}
}
