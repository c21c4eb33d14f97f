package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
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

// ExamGenerator is the slice of the AI collaborator the exam engine needs.
type ExamGenerator interface {
	GenerateExamSection(ctx context.Context, req ai.ExamSectionRequest) ([]ai.GeneratedExamQuestion, error)
	EvaluateSpeaking(ctx context.Context, req ai.SpeakingRequest) (*ai.SpeakingEvaluation, error)
}

type sectionConfig struct {
	name            string
	durationSeconds int
	questionCount   int
}

// Section layouts per exam type. Durations are the real exam timings scaled
// to the mock format.
var examConfigs = map[models.ExamType][]sectionConfig{
	models.ExamIELTS: {
		{"listening", 1800, 10},
		{"reading", 3600, 10},
		{"writing", 3600, 2},
		{"speaking", 900, 3},
	},
	models.ExamSAT: {
		{"reading", 3900, 10},
		{"writing", 2100, 10},
		{"math", 4800, 10},
	},
	models.ExamTOEFL: {
		{"reading", 3240, 10},
		{"listening", 2460, 10},
		{"speaking", 1020, 4},
		{"writing", 3000, 2},
	},
	models.ExamCEFR: {
		{"reading", 1800, 10},
		{"listening", 1200, 10},
		{"writing", 1800, 2},
		{"speaking", 600, 3},
	},
}

// examAttempt is the live, in-memory state of one mock exam. Nothing here is
// persisted until the attempt completes.
type examAttempt struct {
	mu sync.Mutex

	id         string
	userID     string
	examType   models.ExamType
	difficulty models.DifficultyLevel

	status          models.ExamAttemptStatus
	sections        []models.ExamSection
	currentSection  int
	currentQuestion int
	answers         map[string]string // question id -> raw answer
	startedAt       time.Time
	completedAt     time.Time

	timer  *CountdownTimer
	result *models.ExamResult
}

type GenerateExamRequest struct {
	ExamType   string `json:"exam_type" validate:"required,examtype"`
	Difficulty string `json:"difficulty" validate:"omitempty,difficulty"`
}

type SubmitExamAnswerRequest struct {
	QuestionID string `json:"question_id" validate:"required"`
	Answer     string `json:"answer" validate:"required"`
}

type EvaluateSpeakingRequest struct {
	Transcript string `json:"transcript" validate:"required"`
	Prompt     string `json:"prompt"`
	ExamType   string `json:"exam_type" validate:"required,examtype"`
}

// ExamQuestionView is a question as shown to the test taker, with the answer
// key stripped.
type ExamQuestionView struct {
	ID           string                  `json:"id"`
	QuestionText string                  `json:"question_text"`
	Kind         models.QuestionKind     `json:"question_type"`
	Options      []models.QuestionOption `json:"options,omitempty"`
	Points       int                     `json:"points"`
	AudioContext string                  `json:"audio_context,omitempty"`
	Passage      string                  `json:"passage,omitempty"`
	OrderIndex   int                     `json:"order_index"`
}

type ExamSectionView struct {
	Name            string             `json:"name"`
	DurationSeconds int                `json:"duration_seconds"`
	QuestionCount   int                `json:"question_count"`
	Questions       []ExamQuestionView `json:"questions"`
}

// ExamState is a point-in-time snapshot of an attempt for the client.
type ExamState struct {
	AttemptID        string                   `json:"attempt_id"`
	ExamType         models.ExamType          `json:"exam_type"`
	Status           models.ExamAttemptStatus `json:"status"`
	CurrentSection   int                      `json:"current_section"`
	CurrentQuestion  int                      `json:"current_question"`
	RemainingSeconds int                      `json:"remaining_seconds"`
	Sections         []ExamSectionView        `json:"sections"`
	Answers          map[string]string        `json:"answers"`
}

type ExamService interface {
	Generate(ctx context.Context, req *GenerateExamRequest, userID string) (*ExamState, error)
	Start(ctx context.Context, attemptID, userID string) (*ExamState, error)
	State(ctx context.Context, attemptID, userID string) (*ExamState, error)
	SubmitAnswer(ctx context.Context, attemptID, userID string, req *SubmitExamAnswerRequest) error
	NextQuestion(ctx context.Context, attemptID, userID string) (*ExamState, error)
	PrevQuestion(ctx context.Context, attemptID, userID string) (*ExamState, error)
	GoToQuestion(ctx context.Context, attemptID, userID string, index int) (*ExamState, error)
	FinishSectionEarly(ctx context.Context, attemptID, userID string) (*ExamState, error)
	ContinueToNextSection(ctx context.Context, attemptID, userID string) (*ExamState, error)
	Results(ctx context.Context, attemptID, userID string) (*models.ExamResult, error)
	History(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error)
	EvaluateSpeaking(ctx context.Context, req *EvaluateSpeakingRequest) (*ai.SpeakingEvaluation, error)
	Shutdown()
}

type examService struct {
	repo      repositories.Repository
	generator ExamGenerator
	hub       realtime.Hub
	publisher events.EventPublisher
	logger    *slog.Logger
	validator *utils.Validator
	questions *utils.QuestionValidator

	// test seams: section countdown interval, completed-attempt retention
	timerInterval      time.Duration
	completedRetention time.Duration

	mu       sync.RWMutex
	attempts map[string]*examAttempt
}

func NewExamService(
	repo repositories.Repository,
	generator ExamGenerator,
	hub realtime.Hub,
	publisher events.EventPublisher,
	logger *slog.Logger,
	validator *utils.Validator,
) ExamService {
	return &examService{
		repo:               repo,
		generator:          generator,
		hub:                hub,
		publisher:          publisher,
		logger:             logger,
		validator:          validator,
		questions:          utils.NewQuestionValidator(),
		timerInterval:      time.Second,
		completedRetention: time.Hour,
		attempts:           make(map[string]*examAttempt),
	}
}

// ===== GENERATION =====

// Generate builds the full exam up front, section by section. Any section
// failure aborts the whole attempt; a partial exam is never handed out.
func (s *examService) Generate(ctx context.Context, req *GenerateExamRequest, userID string) (*ExamState, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	examType := models.ExamType(req.ExamType)
	configs, ok := examConfigs[examType]
	if !ok {
		return nil, ErrUnknownExamType
	}
	difficulty := models.DifficultyLevel(req.Difficulty)
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}

	sections := make([]models.ExamSection, 0, len(configs))
	for _, cfg := range configs {
		generated, err := s.generator.GenerateExamSection(ctx, ai.ExamSectionRequest{
			ExamType:      string(examType),
			Section:       cfg.name,
			Difficulty:    string(difficulty),
			QuestionCount: cfg.questionCount,
		})
		if err != nil {
			return nil, fmt.Errorf("section %q generation failed: %w", cfg.name, err)
		}

		questions := make([]models.ExamQuestion, 0, len(generated))
		for idx, g := range generated {
			points := g.Points
			if points <= 0 {
				points = 1
			}
			q := models.ExamQuestion{
				ID:            uuid.NewString(),
				QuestionText:  g.QuestionText,
				Kind:          g.QuestionType,
				Options:       g.Options,
				CorrectAnswer: g.CorrectAnswer,
				Points:        points,
				Explanation:   g.Explanation,
				AudioContext:  g.AudioContext,
				Passage:       g.Passage,
				OrderIndex:    idx,
			}
			if err := s.questions.ValidateExamQuestion(q); err != nil {
				return nil, fmt.Errorf("section %q question %d rejected: %w", cfg.name, idx, err)
			}
			questions = append(questions, q)
		}

		sections = append(sections, models.ExamSection{
			Name:            cfg.name,
			DurationSeconds: cfg.durationSeconds,
			QuestionCount:   len(questions),
			Questions:       questions,
		})
	}

	attempt := &examAttempt{
		id:         uuid.NewString(),
		userID:     userID,
		examType:   examType,
		difficulty: difficulty,
		status:     models.AttemptNotStarted,
		sections:   sections,
		answers:    make(map[string]string),
	}

	s.mu.Lock()
	s.attempts[attempt.id] = attempt
	s.mu.Unlock()

	s.logger.Info("Mock exam generated",
		"attempt_id", attempt.id,
		"user_id", userID,
		"exam_type", examType,
		"sections", len(sections))

	return s.snapshot(attempt), nil
}

// ===== LIFECYCLE =====

func (s *examService) Start(_ context.Context, attemptID, userID string) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptNotStarted {
		return nil, ErrExamAlreadyStarted
	}
	attempt.status = models.AttemptInProgress
	attempt.currentSection = 0
	attempt.currentQuestion = 0
	attempt.startedAt = time.Now()

	s.armSectionTimerLocked(attempt)
	return s.snapshotLocked(attempt), nil
}

func (s *examService) State(_ context.Context, attemptID, userID string) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}
	return s.snapshot(attempt), nil
}

// SubmitAnswer records or overwrites the answer for a question in the current
// section. Answers stay revisable until the section ends.
func (s *examService) SubmitAnswer(_ context.Context, attemptID, userID string, req *SubmitExamAnswerRequest) error {
	if err := s.validator.Validate(req); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptInProgress {
		return ErrExamNotInProgress
	}

	section := attempt.sections[attempt.currentSection]
	found := false
	for _, q := range section.Questions {
		if q.ID == req.QuestionID {
			found = true
			break
		}
	}
	if !found {
		return NewValidationError("question_id", "question is not part of the current section", req.QuestionID)
	}

	attempt.answers[req.QuestionID] = req.Answer
	return nil
}

// ===== NAVIGATION =====

// Navigation is free within the current section. Out-of-bounds moves are
// silent no-ops so repeated next/prev at the edges never error.
func (s *examService) NextQuestion(_ context.Context, attemptID, userID string) (*ExamState, error) {
	return s.moveQuestion(attemptID, userID, +1)
}

func (s *examService) PrevQuestion(_ context.Context, attemptID, userID string) (*ExamState, error) {
	return s.moveQuestion(attemptID, userID, -1)
}

func (s *examService) moveQuestion(attemptID, userID string, delta int) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptInProgress {
		return nil, ErrExamNotInProgress
	}
	target := attempt.currentQuestion + delta
	if target >= 0 && target < len(attempt.sections[attempt.currentSection].Questions) {
		attempt.currentQuestion = target
	}
	return s.snapshotLocked(attempt), nil
}

func (s *examService) GoToQuestion(_ context.Context, attemptID, userID string, index int) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptInProgress {
		return nil, ErrExamNotInProgress
	}
	if index >= 0 && index < len(attempt.sections[attempt.currentSection].Questions) {
		attempt.currentQuestion = index
	}
	return s.snapshotLocked(attempt), nil
}

// ===== SECTION TRANSITIONS =====

func (s *examService) FinishSectionEarly(ctx context.Context, attemptID, userID string) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptInProgress {
		return nil, ErrExamNotInProgress
	}
	s.endSectionLocked(attempt)
	return s.snapshotLocked(attempt), nil
}

func (s *examService) ContinueToNextSection(_ context.Context, attemptID, userID string) (*ExamState, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptSectionBreak {
		return nil, NewConflictError("exam_attempt", attemptID, "attempt is not at a section break")
	}
	attempt.currentSection++
	attempt.currentQuestion = 0
	attempt.status = models.AttemptInProgress
	s.armSectionTimerLocked(attempt)
	return s.snapshotLocked(attempt), nil
}

// endSectionLocked closes the running section: the last section completes the
// exam, any earlier one parks the attempt at a break. Caller holds attempt.mu.
func (s *examService) endSectionLocked(attempt *examAttempt) {
	if attempt.timer != nil {
		attempt.timer.Cancel()
	}

	if attempt.currentSection >= len(attempt.sections)-1 {
		s.completeLocked(attempt)
		return
	}
	attempt.status = models.AttemptSectionBreak
}

func (s *examService) armSectionTimerLocked(attempt *examAttempt) {
	attemptID := attempt.id
	if attempt.timer == nil {
		attempt.timer = NewCountdownTimerWithInterval(s.timerInterval, nil, func() {
			s.onSectionExpired(attemptID)
		})
	}
	attempt.timer.Start(attempt.sections[attempt.currentSection].DurationSeconds)
}

// onSectionExpired runs on timer expiry. The timer fires at most once per
// Start, and endSectionLocked cancels it, so an early finish and an expiry can
// never both close the same section.
func (s *examService) onSectionExpired(attemptID string) {
	s.mu.RLock()
	attempt, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok {
		return
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptInProgress {
		return
	}
	s.logger.Info("Exam section time expired",
		"attempt_id", attemptID,
		"section", attempt.sections[attempt.currentSection].Name)
	s.endSectionLocked(attempt)
}

// ===== GRADING =====

// completeLocked grades the attempt, caches the result, persists the attempt
// record and emits the completion event. Runs once; the status guard in every
// caller keeps it from running twice. Caller holds attempt.mu.
func (s *examService) completeLocked(attempt *examAttempt) {
	attempt.status = models.AttemptCompleted
	attempt.completedAt = time.Now()
	attempt.result = gradeExam(attempt)

	record := &models.ExamAttempt{
		ID:          attempt.id,
		UserID:      attempt.userID,
		ExamType:    attempt.examType,
		Difficulty:  attempt.difficulty,
		Score:       attempt.result.Score,
		MaxScore:    attempt.result.MaxScore,
		BandScore:   attempt.result.BandScore,
		CEFRLevel:   attempt.result.CEFRLevel,
		StartedAt:   attempt.startedAt,
		CompletedAt: attempt.completedAt,
	}
	if payload, err := json.Marshal(attempt.result.SectionScores); err == nil {
		record.SectionScores = datatypes.JSON(payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.Exam().Create(ctx, record); err != nil {
		s.logger.Error("Failed to persist exam attempt",
			"attempt_id", attempt.id,
			"error", err)
	}

	if row, err := json.Marshal(record); err == nil {
		_ = s.hub.Publish(ctx, realtime.ChangeEvent{
			Table: "exam_attempts",
			Op:    realtime.OpInsert,
			RowID: record.ID,
			Scope: record.UserID,
			Row:   row,
		})
	}
	if s.publisher != nil {
		event := events.ExamCompletedEvent{
			AttemptID:   record.ID,
			UserID:      record.UserID,
			ExamType:    string(record.ExamType),
			Score:       record.Score,
			MaxScore:    record.MaxScore,
			BandScore:   record.BandScore,
			CEFRLevel:   record.CEFRLevel,
			CompletedAt: record.CompletedAt,
		}
		if err := s.publisher.PublishNotificationEvent(ctx, events.NewNotificationEvent(events.EventExamCompleted, event)); err != nil {
			s.logger.Warn("Failed to publish exam completed event",
				"attempt_id", record.ID,
				"error", err)
		}
	}

	s.logger.Info("Mock exam completed",
		"attempt_id", attempt.id,
		"score", record.Score,
		"max_score", record.MaxScore)

	// Keep the finished attempt around long enough for result reads, then
	// drop it so the map stays bounded. History serves the persisted record.
	attemptID := attempt.id
	time.AfterFunc(s.completedRetention, func() {
		s.evictAttempt(attemptID)
	})
}

func (s *examService) evictAttempt(attemptID string) {
	s.mu.Lock()
	delete(s.attempts, attemptID)
	s.mu.Unlock()
}

// gradeExam derives the result from answers and the answer key. Pure over the
// attempt's data; calling it twice yields identical results.
func gradeExam(attempt *examAttempt) *models.ExamResult {
	result := &models.ExamResult{
		SectionScores: make(map[string]models.SectionScore, len(attempt.sections)),
	}

	for _, section := range attempt.sections {
		var score, max float64
		for _, q := range section.Questions {
			max += float64(q.Points)
			answer, answered := attempt.answers[q.ID]
			if !answered {
				continue
			}
			score += gradeQuestion(q, answer)
		}
		result.SectionScores[section.Name] = models.SectionScore{Score: score, Max: max}
		result.Score += score
		result.MaxScore += max
	}

	if result.MaxScore > 0 {
		percentage := result.Score / result.MaxScore * 100
		switch attempt.examType {
		case models.ExamIELTS:
			band := BandScore(percentage)
			result.BandScore = &band
		case models.ExamCEFR:
			level := LevelFromPercentage(percentage)
			result.CEFRLevel = &level
		}
	}
	return result
}

// gradeQuestion scores one answered question by kind. Open-ended kinds earn
// half credit for any substantive response; full grading of prose happens
// offline through the evaluation pipeline.
func gradeQuestion(q models.ExamQuestion, answer string) float64 {
	switch q.Kind {
	case models.KindMultipleChoice, models.KindTrueFalse, models.KindFillBlank:
		if strings.EqualFold(strings.TrimSpace(answer), strings.TrimSpace(q.CorrectAnswer)) {
			return float64(q.Points)
		}
		return 0
	case models.KindEssay, models.KindSpeaking:
		if len(strings.TrimSpace(answer)) > 10 {
			return float64(q.Points) / 2
		}
		return 0
	}
	return 0
}

// ===== RESULTS =====

func (s *examService) Results(_ context.Context, attemptID, userID string) (*models.ExamResult, error) {
	attempt, err := s.attempt(attemptID, userID)
	if err != nil {
		return nil, err
	}

	attempt.mu.Lock()
	defer attempt.mu.Unlock()

	if attempt.status != models.AttemptCompleted || attempt.result == nil {
		return nil, ErrExamNotCompleted
	}
	return attempt.result, nil
}

func (s *examService) History(ctx context.Context, userID string, filters repositories.AttemptFilters) ([]*models.ExamAttempt, int64, error) {
	return s.repo.Exam().GetByUser(ctx, userID, filters)
}

// EvaluateSpeaking forwards a speaking transcript to the AI collaborator and
// returns its evaluation untouched.
func (s *examService) EvaluateSpeaking(ctx context.Context, req *EvaluateSpeakingRequest) (*ai.SpeakingEvaluation, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return s.generator.EvaluateSpeaking(ctx, ai.SpeakingRequest{
		Transcript: req.Transcript,
		Prompt:     req.Prompt,
		ExamType:   req.ExamType,
	})
}

func (s *examService) Shutdown() {
	s.mu.Lock()
	attempts := make([]*examAttempt, 0, len(s.attempts))
	for _, a := range s.attempts {
		attempts = append(attempts, a)
	}
	s.mu.Unlock()

	for _, a := range attempts {
		a.mu.Lock()
		if a.timer != nil {
			a.timer.Cancel()
		}
		a.mu.Unlock()
	}
}

// ===== HELPERS =====

func (s *examService) attempt(attemptID, userID string) (*examAttempt, error) {
	s.mu.RLock()
	attempt, ok := s.attempts[attemptID]
	s.mu.RUnlock()
	if !ok || attempt.userID != userID {
		return nil, ErrExamNotGenerated
	}
	return attempt, nil
}

func (s *examService) snapshot(attempt *examAttempt) *ExamState {
	attempt.mu.Lock()
	defer attempt.mu.Unlock()
	return s.snapshotLocked(attempt)
}

func (s *examService) snapshotLocked(attempt *examAttempt) *ExamState {
	sections := make([]ExamSectionView, 0, len(attempt.sections))
	for _, sec := range attempt.sections {
		view := ExamSectionView{
			Name:            sec.Name,
			DurationSeconds: sec.DurationSeconds,
			QuestionCount:   sec.QuestionCount,
			Questions:       make([]ExamQuestionView, 0, len(sec.Questions)),
		}
		for _, q := range sec.Questions {
			view.Questions = append(view.Questions, ExamQuestionView{
				ID:           q.ID,
				QuestionText: q.QuestionText,
				Kind:         q.Kind,
				Options:      q.Options,
				Points:       q.Points,
				AudioContext: q.AudioContext,
				Passage:      q.Passage,
				OrderIndex:   q.OrderIndex,
			})
		}
		sections = append(sections, view)
	}

	answers := make(map[string]string, len(attempt.answers))
	for k, v := range attempt.answers {
		answers[k] = v
	}

	remaining := 0
	if attempt.timer != nil && attempt.status == models.AttemptInProgress {
		remaining = attempt.timer.Remaining()
	}

	return &ExamState{
		AttemptID:        attempt.id,
		ExamType:         attempt.examType,
		Status:           attempt.status,
		CurrentSection:   attempt.currentSection,
		CurrentQuestion:  attempt.currentQuestion,
		RemainingSeconds: remaining,
		Sections:         sections,
		Answers:          answers,
	}
}
