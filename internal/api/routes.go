package api

import (
	"quizforge/internal/api/handlers"
	"quizforge/internal/config"
	"quizforge/internal/monitoring"

	"github.com/gin-gonic/gin"
)

// SetupRoutes sets up the web and API routes
func SetupRoutes(router *gin.Engine, h *handlers.Handler, cfg *config.Config, metrics *monitoring.Metrics) {
	router.Use(metrics.Middleware())
	router.Use(CORSMiddleware(cfg.Server.FrontendURL))
	router.SetHTMLTemplate(handlers.Templates())
	router.MaxMultipartMemory = cfg.Server.MaxUploadMB << 20

	router.GET("/healthz", h.HandleHealth)
	router.GET("/metrics", metrics.Handler())

	// --- Browser UI ---
	router.GET("/", h.HandleIndex)
	router.GET("/quiz/download", h.HandleDownloadQuiz)

	generation := router.Group("/")
	generation.Use(RateLimiter(cfg.Server.RateLimitPerMinute))
	{
		generation.POST("/quiz", h.HandleGenerateQuiz)
		generation.POST("/quiz/regenerate", h.HandleRegenerateQuiz)
	}

	// --- JSON API ---
	api := router.Group("/api")
	{
		api.GET("/quiz", h.HandleGetQuiz)
		api.POST("/quiz", RateLimiter(cfg.Server.RateLimitPerMinute), h.HandleGenerateQuiz)
		api.POST("/quiz/share", h.HandleShareQuiz)
		api.GET("/quizzes", h.HandleListQuizzes)
		api.GET("/quizzes/:quizId", h.HandleGetArchivedQuiz)
	}
}
