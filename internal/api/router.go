// internal/api/router.go
package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okhotin/FrontlineMuse/internal/config"
	"github.com/okhotin/FrontlineMuse/internal/di"
	"github.com/okhotin/FrontlineMuse/internal/services"
)

// SetupRouter wires the HTTP surface from the service container.
func SetupRouter(cfg *config.Config) (*gin.Engine, error) {
	container := di.GetContainer()

	generationService, ok := container.Get("generation").(*services.GenerationService)
	if !ok {
		return nil, fmt.Errorf("generation service not initialised")
	}
	emotionService, ok := container.Get("emotion").(*services.EmotionService)
	if !ok {
		return nil, fmt.Errorf("emotion service not initialised")
	}
	literaryService, ok := container.Get("literary").(*services.LiteraryService)
	if !ok {
		return nil, fmt.Errorf("literary service not initialised")
	}
	imageService, ok := container.Get("image").(*services.ImageService)
	if !ok {
		return nil, fmt.Errorf("image service not initialised")
	}
	musicService, ok := container.Get("music").(*services.MusicService)
	if !ok {
		return nil, fmt.Errorf("music service not initialised")
	}
	ledgerService, ok := container.Get("ledger").(*services.LedgerService)
	if !ok {
		return nil, fmt.Errorf("ledger service not initialised")
	}
	// Retrieval is optional: absent when no sources are configured.
	ragService, _ := container.Get("rag").(*services.RAGService)

	handler := NewHandler(
		generationService,
		emotionService,
		ragService,
		literaryService,
		imageService,
		musicService,
		ledgerService,
		cfg.JWTSecret,
	)

	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(requestIDMiddleware())
	r.Use(corsMiddleware())
	r.Use(metricsMiddleware())

	r.Static("/static", cfg.StaticDir)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// The music service posts results here; kept off /api so the
	// configured callback base needs no path rewriting.
	r.POST("/music_callback", handler.MusicCallback)

	api := r.Group("/api")
	api.Use(AuthMiddleware(cfg.JWTSecret))
	{
		api.GET("/health", handler.Health)
		api.POST("/auth/guest", handler.AuthGuest)

		api.POST("/analyze", handler.AnalyzeText)
		api.POST("/generate", handler.Generate)

		api.GET("/literary/:file_id", handler.GetLiteraryWork)
		api.POST("/image/safe", handler.GenerateSafeImage)

		musicGroup := api.Group("/music")
		{
			musicGroup.POST("/generate", handler.GenerateMusic)
			musicGroup.GET("/status/:task_id", handler.GetMusicStatus)
			musicGroup.GET("/tasks", handler.ListMusicTasks)
		}

		ledgerGroup := api.Group("/ledger")
		{
			ledgerGroup.GET("", handler.ListLedger)
			ledgerGroup.DELETE("/:id", handler.DeleteLedgerEntry)
			ledgerGroup.DELETE("", handler.ClearLedger)
		}

		api.POST("/rag/clear_cache", handler.ClearRAGCache)

		api.GET("/ws/music/:task_id", handler.MusicTaskWebSocket)
	}

	return r, nil
}
