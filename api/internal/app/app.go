// Package app builds the engines and the optional recognition log from config.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"alpd/api/internal/config"
	"alpd/api/internal/plate"
	"alpd/api/internal/plate/anthropic"
	"alpd/api/internal/plate/gemini"
	"alpd/api/internal/plate/ollama"
	"alpd/api/internal/plate/openai"
	"alpd/api/internal/retention"
	"alpd/api/internal/store"
)

// Engines returns every engine the config has credentials for, plus the default
// one named by cfg.LLMProvider.
func Engines(cfg *config.Config) (*plate.Engines, plate.Engine, error) {
	wrap := func(e plate.Engine) plate.Engine {
		if cfg.StrictSchema {
			return plate.Strict{Engine: e}
		}
		return e
	}

	engs := &plate.Engines{}
	if cfg.GeminiAPIKey != "" {
		engs.Gemini = wrap(gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel))
	}
	if cfg.AnthropicKey != "" {
		engs.Anthropic = wrap(anthropic.New(cfg.AnthropicKey, cfg.AnthropicModel))
	}
	if cfg.OpenAIKey != "" {
		engs.OpenAI = wrap(openai.New(cfg.OpenAIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL))
	}
	if cfg.OllamaURL != "" {
		o, err := ollama.New(cfg.OllamaURL, cfg.OllamaModel)
		if err != nil {
			return nil, nil, fmt.Errorf("ollama: %w", err)
		}
		engs.Ollama = wrap(o)
	}

	def, err := engs.GetEngine(cfg.LLMProvider)
	if err != nil {
		return nil, nil, err
	}
	return engs, def, nil
}

// RecognitionLog opens Postgres and starts the retention job when a database is
// configured. All return values are nil when it is not.
func RecognitionLog(ctx context.Context, cfg *config.Config, def plate.Engine) (*sql.DB, *store.RecognitionRepo, error) {
	if !cfg.RecognitionLogEnabled() {
		log.Printf("recognition log disabled (no DATABASE_URL)")
		return nil, nil, nil
	}
	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("db connected: %s", config.SafeDSNSummary(cfg.DatabaseURL))

	repo := store.NewRecognitionRepo(db, def.Name(), def.GetModel())
	maxAge := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	if err := retention.Start(ctx, repo, cfg.RetentionSchedule, maxAge); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	log.Printf("recognition log enabled (%s)", repo.Label())
	return db, repo, nil
}
