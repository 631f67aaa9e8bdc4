package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/segmenter/internal/config"
	"github.com/MrJamesThe3rd/segmenter/internal/database"
	segmenterHttp "github.com/MrJamesThe3rd/segmenter/internal/http"
	"github.com/MrJamesThe3rd/segmenter/internal/http/auth"
	runHandler "github.com/MrJamesThe3rd/segmenter/internal/http/run"
	"github.com/MrJamesThe3rd/segmenter/internal/importer"
	"github.com/MrJamesThe3rd/segmenter/internal/pipeline"
	"github.com/MrJamesThe3rd/segmenter/internal/segment"
	segmentStore "github.com/MrJamesThe3rd/segmenter/internal/segment/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString())
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	var (
		segmentService = segment.NewService(segmentStore.New(db))
		importService  = importer.NewService()
		runner         = pipeline.NewRunner(slog.Default(), cfg.CLVConfig(), cfg.ClusterConfig(), cfg.Pipeline.Strict)
	)

	runsH := runHandler.NewHandler(segmentService, importService, runner, cfg.Server.MaxUploadMB)

	guard := auth.NewGuard(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if !guard.Enabled() {
		slog.Warn("AUTH_JWT_SECRET is not set, API is unauthenticated")
	}

	router := segmenterHttp.New(segmenterHttp.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Timeout:        cfg.Server.Timeout,
	}, guard, runsH)

	port := fmt.Sprintf(":%d", cfg.App.Port)
	slog.Info("starting server", "port", port)

	if err := http.ListenAndServe(port, router); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
