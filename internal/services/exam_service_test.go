package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/studypulse/arena-service/internal/ai"
	"github.com/studypulse/arena-service/internal/events"
	"github.com/studypulse/arena-service/internal/models"
	"github.com/studypulse/arena-service/internal/realtime"
	"github.com/studypulse/arena-service/internal/utils"
)

func newTestExamService(repo *mockRepository, generator *MockExamGenerator) (*examService, *events.MockEventPublisher) {
	publisher := events.NewMockEventPublisher(testLogger())
	svc := NewExamService(
		repo,
		generator,
		realtime.NewMemoryHub(),
		publisher,
		testLogger(),
		utils.NewValidator(),
	)
	return svc.(*examService), publisher
}

// stubSections makes the generator return one gradeable multiple-choice
// question per requested section.
func stubSections(generator *MockExamGenerator, examType string) {
	generator.On("GenerateExamSection", mock.Anything, mock.MatchedBy(func(req ai.ExamSectionRequest) bool {
		return req.ExamType == examType
	})).Return([]ai.GeneratedExamQuestion{
		{
			QuestionText:  "Pick the right option",
			QuestionType:  models.KindMultipleChoice,
			Options:       []models.QuestionOption{{ID: "a", Text: "right"}, {ID: "b", Text: "wrong"}},
			CorrectAnswer: "a",
			Points:        10,
		},
	}, nil)
}

func TestExamGenerate_BuildsAllSections(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, err := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")

	assert.NoError(t, err)
	assert.Equal(t, models.AttemptNotStarted, state.Status)
	assert.Len(t, state.Sections, 4)
	assert.Equal(t, "reading", state.Sections[0].Name)
	generator.AssertNumberOfCalls(t, "GenerateExamSection", 4)
}

func TestExamGenerate_SectionFailureAbortsEverything(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)

	// SAT layout: reading succeeds, writing fails.
	generator.On("GenerateExamSection", mock.Anything, mock.MatchedBy(func(req ai.ExamSectionRequest) bool {
		return req.Section == "reading"
	})).Return([]ai.GeneratedExamQuestion{{
		QuestionText:  "Q",
		QuestionType:  models.KindMultipleChoice,
		Options:       []models.QuestionOption{{ID: "a", Text: "x"}, {ID: "b", Text: "y"}},
		CorrectAnswer: "a",
		Points:        10,
	}}, nil)
	generator.On("GenerateExamSection", mock.Anything, mock.MatchedBy(func(req ai.ExamSectionRequest) bool {
		return req.Section == "writing"
	})).Return(nil, errors.New("gateway timeout"))

	state, err := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "sat"}, "user-1")

	assert.Error(t, err)
	assert.Nil(t, state)
	// No partial attempt is retained.
	svc.mu.RLock()
	assert.Empty(t, svc.attempts)
	svc.mu.RUnlock()
}

func TestExamGenerate_RejectsUnknownType(t *testing.T) {
	repo := newMockRepository()
	svc, _ := newTestExamService(repo, new(MockExamGenerator))

	_, err := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "gmat"}, "user-1")

	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestExamStart_OnlyOnce(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, err := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	started, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, started.Status)

	_, err = svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.ErrorIs(t, err, ErrExamAlreadyStarted)
}

func TestExamAnswers_OverwriteIsAllowed(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	state, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	questionID := state.Sections[0].Questions[0].ID
	assert.NoError(t, svc.SubmitAnswer(context.Background(), state.AttemptID, "user-1", &SubmitExamAnswerRequest{
		QuestionID: questionID,
		Answer:     "b",
	}))
	assert.NoError(t, svc.SubmitAnswer(context.Background(), state.AttemptID, "user-1", &SubmitExamAnswerRequest{
		QuestionID: questionID,
		Answer:     "a",
	}))

	current, err := svc.State(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, "a", current.Answers[questionID])
}

func TestExamNavigation_OutOfBoundsIsNoOp(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	_, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	// Single question per section: both moves stay at index 0.
	after, err := svc.PrevQuestion(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, after.CurrentQuestion)

	after, err = svc.NextQuestion(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 0, after.CurrentQuestion)

	after, err = svc.GoToQuestion(context.Background(), state.AttemptID, "user-1", 99)
	assert.NoError(t, err)
	assert.Equal(t, 0, after.CurrentQuestion)
}

func TestExamSectionExpiry_MidExamParksAtBreak(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	_, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	svc.onSectionExpired(state.AttemptID)

	current, err := svc.State(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.AttemptSectionBreak, current.Status)
	assert.Equal(t, 0, current.CurrentSection)

	// Expiry firing again during the break changes nothing.
	svc.onSectionExpired(state.AttemptID)
	current, _ = svc.State(context.Background(), state.AttemptID, "user-1")
	assert.Equal(t, models.AttemptSectionBreak, current.Status)

	next, err := svc.ContinueToNextSection(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, next.Status)
	assert.Equal(t, 1, next.CurrentSection)
}

func TestExamLastSectionExpiry_CompletesNotBreaks(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, publisher := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	repo.exam.On("Create", mock.Anything, mock.MatchedBy(func(a *models.ExamAttempt) bool {
		return a.UserID == "user-1" && a.ExamType == models.ExamCEFR
	})).Return(nil)

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	_, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	// Answer section 1's question correctly, then ride expiries through all
	// four sections.
	questionID := state.Sections[0].Questions[0].ID
	assert.NoError(t, svc.SubmitAnswer(context.Background(), state.AttemptID, "user-1", &SubmitExamAnswerRequest{
		QuestionID: questionID,
		Answer:     "A ", // case and whitespace do not matter
	}))

	for section := 0; section < 4; section++ {
		svc.onSectionExpired(state.AttemptID)
		current, err := svc.State(context.Background(), state.AttemptID, "user-1")
		assert.NoError(t, err)
		if section < 3 {
			assert.Equal(t, models.AttemptSectionBreak, current.Status)
			_, err = svc.ContinueToNextSection(context.Background(), state.AttemptID, "user-1")
			assert.NoError(t, err)
		} else {
			assert.Equal(t, models.AttemptCompleted, current.Status)
		}
	}

	result, err := svc.Results(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 40.0, result.MaxScore)
	assert.NotNil(t, result.CEFRLevel)
	// 25% is below every level threshold
	assert.Equal(t, "A1", *result.CEFRLevel)

	repo.exam.AssertExpectations(t)
	published := publisher.GetPublishedEvents()
	assert.Len(t, published, 1)
	assert.Equal(t, events.EventExamCompleted, published[0].Type)
}

func TestExamResults_AreIdempotent(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")
	repo.exam.On("Create", mock.Anything, mock.Anything).Return(nil)

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	_, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	for section := 0; section < 4; section++ {
		svc.onSectionExpired(state.AttemptID)
		if section < 3 {
			_, err = svc.ContinueToNextSection(context.Background(), state.AttemptID, "user-1")
			assert.NoError(t, err)
		}
	}

	first, err := svc.Results(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	second, err := svc.Results(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)

	// Same cached result object, not a recomputation that could drift.
	assert.Same(t, first, second)
	repo.exam.AssertNumberOfCalls(t, "Create", 1)
}

func TestExamResults_BeforeCompletionRejected(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")

	_, err := svc.Results(context.Background(), state.AttemptID, "user-1")

	assert.ErrorIs(t, err, ErrExamNotCompleted)
}

func TestExamAttempt_WrongUserCannotAccess(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	stubSections(generator, "cefr")

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")

	_, err := svc.State(context.Background(), state.AttemptID, "intruder")

	assert.ErrorIs(t, err, ErrExamNotGenerated)
}

func TestGradeQuestion_Kinds(t *testing.T) {
	mc := models.ExamQuestion{Kind: models.KindMultipleChoice, CorrectAnswer: "a", Points: 10}
	assert.Equal(t, 10.0, gradeQuestion(mc, "a"))
	assert.Equal(t, 0.0, gradeQuestion(mc, "b"))

	fill := models.ExamQuestion{Kind: models.KindFillBlank, CorrectAnswer: "Going to", Points: 4}
	assert.Equal(t, 4.0, gradeQuestion(fill, "  going TO "))
	assert.Equal(t, 0.0, gradeQuestion(fill, "gone to"))

	essay := models.ExamQuestion{Kind: models.KindEssay, Points: 20}
	assert.Equal(t, 10.0, gradeQuestion(essay, "A substantive written response."))
	assert.Equal(t, 0.0, gradeQuestion(essay, "short"))
}

func TestExamEvaluateSpeaking_ForwardsTranscript(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)

	generator.On("EvaluateSpeaking", mock.Anything, ai.SpeakingRequest{
		Transcript: "I would like to describe my hometown.",
		Prompt:     "Describe your hometown",
		ExamType:   "ielts",
	}).Return(&ai.SpeakingEvaluation{DetailedFeedback: "Clear structure"}, nil)

	eval, err := svc.EvaluateSpeaking(context.Background(), &EvaluateSpeakingRequest{
		Transcript: "I would like to describe my hometown.",
		Prompt:     "Describe your hometown",
		ExamType:   "ielts",
	})

	assert.NoError(t, err)
	assert.Equal(t, "Clear structure", eval.DetailedFeedback)
}

func TestExamEvaluateSpeaking_RequiresTranscript(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)

	_, err := svc.EvaluateSpeaking(context.Background(), &EvaluateSpeakingRequest{ExamType: "ielts"})

	assert.ErrorIs(t, err, ErrValidationFailed)
	generator.AssertNotCalled(t, "EvaluateSpeaking")
}

func TestExamCompletedAttemptIsEvicted(t *testing.T) {
	repo := newMockRepository()
	generator := new(MockExamGenerator)
	svc, _ := newTestExamService(repo, generator)
	svc.completedRetention = time.Millisecond
	stubSections(generator, "cefr")
	repo.exam.On("Create", mock.Anything, mock.Anything).Return(nil)

	state, _ := svc.Generate(context.Background(), &GenerateExamRequest{ExamType: "cefr"}, "user-1")
	_, err := svc.Start(context.Background(), state.AttemptID, "user-1")
	assert.NoError(t, err)
	defer svc.Shutdown()

	for section := 0; section < 4; section++ {
		svc.onSectionExpired(state.AttemptID)
		if section < 3 {
			_, err = svc.ContinueToNextSection(context.Background(), state.AttemptID, "user-1")
			assert.NoError(t, err)
		}
	}

	assert.Eventually(t, func() bool {
		_, err := svc.State(context.Background(), state.AttemptID, "user-1")
		return errors.Is(err, ErrExamNotGenerated)
	}, time.Second, 10*time.Millisecond)

	svc.mu.RLock()
	remaining := len(svc.attempts)
	svc.mu.RUnlock()
	assert.Zero(t, remaining)
}
