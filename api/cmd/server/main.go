package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"alpd/api/internal/app"
	"alpd/api/internal/config"
	"alpd/api/internal/handle"
	"alpd/api/internal/httpserver"
	"alpd/api/internal/session"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, def, err := app.Engines(cfg)
	if err != nil {
		log.Fatalf("engines: %v", err)
	}

	var (
		sessOpts   []session.Option
		handleOpts = []handle.Option{
			handle.WithMaxUploadBytes(cfg.MaxUploadBytes),
			handle.WithTimeout(time.Duration(cfg.RequestTimeoutSeconds) * time.Second),
		}
	)
	db, repo, err := app.RecognitionLog(ctx, cfg, def)
	if err != nil {
		log.Fatalf("recognition log: %v", err)
	}
	if repo != nil {
		defer db.Close()
		sessOpts = append(sessOpts, session.WithRecorder(repo))
		handleOpts = append(handleOpts, handle.WithRecognitionLog(repo, db))
	}

	sessions := session.NewManager(def, sessOpts...).WithLimits(cfg.SessionIdleTTL(), cfg.MaxSessions)
	go sessions.Run(ctx, time.Minute)

	h := handle.New(sessions, handleOpts...)
	mux := http.NewServeMux()
	h.Register(mux)

	log.Printf("alpd server: engine %s (%s)", def.Name(), def.GetModel())
	if err := httpserver.Run(ctx, ":"+cfg.Port, mux); err != nil {
		log.Fatal(err)
	}
}
