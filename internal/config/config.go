// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Config carries every knob the application needs. It is built once by Load
// and threaded through service constructors; nothing reads credentials at
// import time.
type Config struct {
	Port      string
	DataDir   string
	StaticDir string
	LogDir    string
	DebugMode bool

	// Chat + image credential (one service provides both endpoints).
	OpenAIAPIKey  string
	OpenAIBaseURL string

	// Asynchronous music service.
	MusicAPIKey  string
	MusicAPIBase string

	// Externally reachable base URL used to build music callback URLs.
	// Empty means the caller-supplied or request host is used instead.
	ExternalBaseURL string

	JWTSecret string

	// Retrieval sources for the historical context subsystem.
	WikiAPIBase   string
	EventsAPIBase string
}

// Load reads .env (optional) and the environment.
func Load() (*Config, error) {
	godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8085"),
		DataDir:         getEnvPath("DATA_DIR", "data"),
		StaticDir:       getEnvPath("STATIC_DIR", "static"),
		LogDir:          getEnvPath("LOG_DIR", "logs"),
		DebugMode:       getEnvBool("DEBUG_MODE", false),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		MusicAPIKey:     getEnv("MUSIC_API_KEY", ""),
		MusicAPIBase:    getEnv("MUSIC_API_BASE", "https://api.sunoapi.org/api/v1"),
		ExternalBaseURL: getEnv("EXTERNAL_BASE_URL", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		WikiAPIBase:     getEnv("WIKI_API_BASE", "https://ru.wikipedia.org/w/api.php"),
		EventsAPIBase:   getEnv("EVENTS_API_BASE", "https://chroniclingamerica.loc.gov"),
	}

	return cfg, nil
}

// GenerationsDir is where literary works and their metadata sidecars live.
func (c *Config) GenerationsDir() string {
	return filepath.Join(c.DataDir, "generations")
}

// ImagesDir is the static directory for mirrored images.
func (c *Config) ImagesDir() string {
	return filepath.Join(c.StaticDir, "generated_images")
}

// MusicDir is the static directory for music sidecars and mirrored assets.
func (c *Config) MusicDir() string {
	return filepath.Join(c.StaticDir, "generated_music")
}

// RAGDir holds the vectoriser cache files.
func (c *Config) RAGDir() string {
	return filepath.Join(c.DataDir, "rag")
}

// RecordsDBPath is the sqlite database for historical records and the ledger.
func (c *Config) RecordsDBPath() string {
	return filepath.Join(c.DataDir, "records.db")
}

// EnsureDirs creates every directory the components expect.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.LogDir,
		c.GenerationsDir(),
		c.ImagesDir(),
		filepath.Join(c.MusicDir(), "audio"),
		filepath.Join(c.MusicDir(), "covers"),
		filepath.Join(c.MusicDir(), "raw_callbacks"),
		c.RAGDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: failed to create directory %s: %v\n", path, err)
		}
	}
	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}
