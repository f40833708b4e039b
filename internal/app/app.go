// internal/app/app.go
package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/okhotin/FrontlineMuse/internal/api"
	"github.com/okhotin/FrontlineMuse/internal/config"
	"github.com/okhotin/FrontlineMuse/internal/di"
	"github.com/okhotin/FrontlineMuse/internal/histsrc"
	"github.com/okhotin/FrontlineMuse/internal/llm"
	_ "github.com/okhotin/FrontlineMuse/internal/llm/providers/openai"
	"github.com/okhotin/FrontlineMuse/internal/music"
	"github.com/okhotin/FrontlineMuse/internal/services"
	"github.com/okhotin/FrontlineMuse/internal/storage"
	"github.com/okhotin/FrontlineMuse/internal/utils"
)

// App owns process-level resources that need an orderly shutdown.
type App struct {
	cfg *config.Config
	db  *sql.DB
}

// Bootstrap loads configuration, prepares the filesystem and registers
// every service in the container in dependency order.
func Bootstrap() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("prepare directories: %w", err)
	}
	if err := utils.InitLogger(filepath.Join(cfg.LogDir, "server.log")); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger := utils.GetLogger()

	db, err := services.OpenDB(cfg.RecordsDBPath())
	if err != nil {
		return nil, err
	}

	app := &App{cfg: cfg, db: db}
	if err := app.initServices(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("application bootstrapped", map[string]interface{}{
		"port":     cfg.Port,
		"services": len(di.GetContainer().GetNames()),
	})
	return app, nil
}

// initServices builds the service graph bottom-up and registers each
// service under the name the router looks it up by.
func (a *App) initServices() error {
	cfg := a.cfg
	container := di.GetContainer()

	dataStorage, err := storage.NewFileStorage(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("data storage: %w", err)
	}
	staticStorage, err := storage.NewFileStorage(cfg.StaticDir)
	if err != nil {
		return fmt.Errorf("static storage: %w", err)
	}

	provider, err := llm.GetProvider("openai", map[string]string{
		"api_key":  cfg.OpenAIAPIKey,
		"base_url": cfg.OpenAIBaseURL,
	})
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}

	records, err := services.NewRecordStore(a.db)
	if err != nil {
		return err
	}

	ledgerService, err := services.NewLedgerService(a.db, dataStorage, staticStorage)
	if err != nil {
		return err
	}
	container.Register("ledger", ledgerService)

	emotionService := services.NewEmotionService(provider)
	container.Register("emotion", emotionService)

	ragService := services.NewRAGService(
		histsrc.NewEncyclopediaClient(cfg.WikiAPIBase),
		histsrc.NewEventsClient(cfg.EventsAPIBase),
		records,
		provider,
		cfg.RAGDir(),
	)
	container.Register("rag", ragService)

	literaryService := services.NewLiteraryService(provider, dataStorage, ledgerService)
	container.Register("literary", literaryService)

	imageService := services.NewImageService(provider, staticStorage)
	container.Register("image", imageService)

	musicClient := music.NewClient(cfg.MusicAPIBase, cfg.MusicAPIKey)
	musicService := services.NewMusicService(musicClient, staticStorage, ledgerService, cfg.ExternalBaseURL)
	container.Register("music", musicService)

	generationService := services.NewGenerationService(
		emotionService, ragService, literaryService, imageService, musicService, ledgerService)
	container.Register("generation", generationService)

	return nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	logger := utils.GetLogger()

	router, err := api.SetupRouter(a.cfg)
	if err != nil {
		return fmt.Errorf("setup router: %w", err)
	}

	srv := &http.Server{
		Addr:    ":" + a.cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", map[string]interface{}{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", map[string]interface{}{"signal": sig.String()})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.Close()
	logger.Info("server stopped", nil)
	return nil
}

// Close releases the database handle.
func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
}
