package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/studypulse/arena-service/internal/repositories"
	"github.com/studypulse/arena-service/internal/services"
)

type ExamHandler struct {
	BaseHandler
	examService   services.ExamService
	exportService services.ExportService
}

func NewExamHandler(examService services.ExamService, exportService services.ExportService, logger *slog.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:   NewBaseHandler(logger),
		examService:   examService,
		exportService: exportService,
	}
}

func (h *ExamHandler) GenerateExam(c *gin.Context) {
	var req services.GenerateExamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.userID(c)
	if !ok {
		return
	}

	state, err := h.examService.Generate(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, state)
}

func (h *ExamHandler) StartExam(c *gin.Context) {
	h.withAttempt(c, h.examService.Start)
}

func (h *ExamHandler) GetState(c *gin.Context) {
	h.withAttempt(c, h.examService.State)
}

func (h *ExamHandler) SubmitAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.SubmitExamAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.examService.SubmitAnswer(c.Request.Context(), id, userID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Answer recorded"})
}

func (h *ExamHandler) NextQuestion(c *gin.Context) {
	h.withAttempt(c, h.examService.NextQuestion)
}

func (h *ExamHandler) PrevQuestion(c *gin.Context) {
	h.withAttempt(c, h.examService.PrevQuestion)
}

func (h *ExamHandler) GoToQuestion(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid question index",
		})
		return
	}

	state, err := h.examService.GoToQuestion(c.Request.Context(), id, userID, index)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *ExamHandler) FinishSection(c *gin.Context) {
	h.withAttempt(c, h.examService.FinishSectionEarly)
}

func (h *ExamHandler) ContinueToNextSection(c *gin.Context) {
	h.withAttempt(c, h.examService.ContinueToNextSection)
}

func (h *ExamHandler) GetResults(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	result, err := h.examService.Results(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *ExamHandler) GetHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	attempts, total, err := h.examService.History(c.Request.Context(), userID, repositories.AttemptFilters{})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attempts": attempts, "total": total})
}

func (h *ExamHandler) EvaluateSpeaking(c *gin.Context) {
	var req services.EvaluateSpeakingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	evaluation, err := h.examService.EvaluateSpeaking(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, evaluation)
}

func (h *ExamHandler) ExportHistory(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	data, err := h.exportService.ExportExamHistoryToExcel(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="exam-history.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// withAttempt factors the shared id-plus-user plumbing for the state machine
// endpoints that take no body.
func (h *ExamHandler) withAttempt(c *gin.Context, fn func(ctx context.Context, attemptID, userID string) (*services.ExamState, error)) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	state, err := fn(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}
