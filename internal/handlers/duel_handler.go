package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/studypulse/arena-service/internal/services"
)

type DuelHandler struct {
	BaseHandler
	duelService services.DuelService
}

func NewDuelHandler(duelService services.DuelService, logger *slog.Logger) *DuelHandler {
	return &DuelHandler{
		BaseHandler: NewBaseHandler(logger),
		duelService: duelService,
	}
}

func (h *DuelHandler) CreateDuel(c *gin.Context) {
	var req services.CreateDuelRequest
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

	duel, err := h.duelService.Create(c.Request.Context(), &req, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, duel)
}

func (h *DuelHandler) GetDuel(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	duel, err := h.duelService.Get(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duel)
}

// ListDuels returns open challenges, or the caller's duels with ?mine=true.
func (h *DuelHandler) ListDuels(c *gin.Context) {
	var duels interface{}
	var err error

	if c.Query("mine") == "true" {
		userID, ok := h.userID(c)
		if !ok {
			return
		}
		duels, err = h.duelService.ListForUser(c.Request.Context(), userID)
	} else {
		duels, err = h.duelService.ListOpen(c.Request.Context())
	}
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"duels": duels})
}

func (h *DuelHandler) AcceptDuel(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	duel, err := h.duelService.Accept(c.Request.Context(), id, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, duel)
}

func (h *DuelHandler) CancelDuel(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	if err := h.duelService.Cancel(c.Request.Context(), id, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Duel cancelled"})
}

func (h *DuelHandler) GetRounds(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	rounds, err := h.duelService.Rounds(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rounds": rounds})
}

func (h *DuelHandler) SubmitAnswer(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req services.SubmitRoundAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	result, err := h.duelService.SubmitAnswer(c.Request.Context(), id, userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type voteRequest struct {
	VoteFor string `json:"vote_for" binding:"required"`
}

func (h *DuelHandler) Vote(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	userID, ok := h.userID(c)
	if !ok {
		return
	}

	var req voteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.duelService.Vote(c.Request.Context(), id, userID, req.VoteFor); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Vote recorded"})
}

func (h *DuelHandler) GetVoteTally(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}

	tally, err := h.duelService.VoteTally(c.Request.Context(), id)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tally)
}
