package handlers

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/studypulse/arena-service/internal/services"
)

type HandlerManager struct {
	arenaHandler *ArenaHandler
	duelHandler  *DuelHandler
	examHandler  *ExamHandler
	wsHandler    *WSHandler
	auth         *Authenticator
}

func NewHandlerManager(
	arenaService services.ArenaService,
	duelService services.DuelService,
	examService services.ExamService,
	exportService services.ExportService,
	auth *Authenticator,
	logger *slog.Logger,
) *HandlerManager {
	return &HandlerManager{
		arenaHandler: NewArenaHandler(arenaService, exportService, logger),
		duelHandler:  NewDuelHandler(duelService, logger),
		examHandler:  NewExamHandler(examService, exportService, logger),
		wsHandler:    NewWSHandler(arenaService, logger),
		auth:         auth,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Health check endpoint
	router.GET("/health", HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(hm.auth.Middleware())
	{
		// Arena session routes
		sessions := v1.Group("/sessions")
		{
			sessions.POST("", hm.arenaHandler.CreateSession)
			sessions.GET("", hm.arenaHandler.ListSessions)
			sessions.GET("/:id", hm.arenaHandler.GetSession)
			sessions.POST("/:id/join", hm.arenaHandler.JoinSession)
			sessions.POST("/:id/start", hm.arenaHandler.StartSession)
			sessions.POST("/:id/cancel", hm.arenaHandler.CancelSession)
			sessions.POST("/:id/answers", hm.arenaHandler.SubmitAnswer)
			sessions.POST("/:id/advance", hm.arenaHandler.AdvanceQuestion)
			sessions.GET("/:id/leaderboard", hm.arenaHandler.GetLeaderboard)
			sessions.GET("/:id/questions", hm.arenaHandler.GetQuestions)
			sessions.GET("/:id/export", hm.arenaHandler.ExportResults)
			sessions.GET("/:id/watch", hm.wsHandler.WatchSession)
		}

		// Duel routes
		duels := v1.Group("/duels")
		{
			duels.POST("", hm.duelHandler.CreateDuel)
			duels.GET("", hm.duelHandler.ListDuels)
			duels.GET("/:id", hm.duelHandler.GetDuel)
			duels.POST("/:id/accept", hm.duelHandler.AcceptDuel)
			duels.POST("/:id/cancel", hm.duelHandler.CancelDuel)
			duels.GET("/:id/rounds", hm.duelHandler.GetRounds)
			duels.POST("/:id/answers", hm.duelHandler.SubmitAnswer)
			duels.POST("/:id/votes", hm.duelHandler.Vote)
			duels.GET("/:id/votes", hm.duelHandler.GetVoteTally)
		}

		// Mock exam routes
		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.GenerateExam)
			exams.GET("/history", hm.examHandler.GetHistory)
			exams.GET("/history/export", hm.examHandler.ExportHistory)
			exams.POST("/speaking/evaluate", hm.examHandler.EvaluateSpeaking)
			exams.POST("/:id/start", hm.examHandler.StartExam)
			exams.GET("/:id", hm.examHandler.GetState)
			exams.POST("/:id/answers", hm.examHandler.SubmitAnswer)
			exams.POST("/:id/next", hm.examHandler.NextQuestion)
			exams.POST("/:id/prev", hm.examHandler.PrevQuestion)
			exams.POST("/:id/goto/:index", hm.examHandler.GoToQuestion)
			exams.POST("/:id/finish-section", hm.examHandler.FinishSection)
			exams.POST("/:id/continue", hm.examHandler.ContinueToNextSection)
			exams.GET("/:id/results", hm.examHandler.GetResults)
		}
	}
}
