package main

import (
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/mux"
	"github.com/urfave/negroni"

	"github.com/serisow/reelforge/config"
	"github.com/serisow/reelforge/handlers"
	"github.com/serisow/reelforge/logging"
	"github.com/serisow/reelforge/server"
	"github.com/serisow/reelforge/video"
)

func main() {
	cfg := config.Load()

	logger, err := initLogger()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if err := ensureDirs(cfg.UploadsDir, cfg.TempDir, cfg.OutputDir); err != nil {
		log.Fatalf("Failed to create working directories: %v", err)
	}

	runner := video.NewExecRunner(logger, cfg.StageTimeout)
	ffmpeg := video.NewFFmpeg(runner, cfg.FFmpegBin, cfg.FFprobeBin, logger)
	resolver := video.NewResolver(logger, ffmpeg, runner, cfg.YtDlpBin, cfg.StrategyTimeout)

	defaults := video.Defaults{
		ImageClipSeconds: cfg.ImageClipSeconds,
		VideoClipSeconds: cfg.VideoClipSeconds,
		FadeInRatio:      cfg.FadeInRatio,
	}
	pipeline := video.NewPipeline(logger, ffmpeg, resolver, cfg.TempDir, cfg.OutputDir, cfg.AssetsDir, defaults)

	cleanup := video.NewCleanupService(logger, cfg.OutputDir, cfg.TempDir, cfg.RetentionDays)
	cleanup.StartSchedule(cfg.CleanupInterval)

	videoHandler := handlers.NewVideoHandler(logger, pipeline, cfg.UploadsDir, cfg.OutputDir, cfg.MaxUploadBytes)
	r := server.SetupRoutes(videoHandler)
	n := setupNegroni(r)

	if cfg.Environment == "production" {
		server.ServeProduction(n, cfg.Domains, cfg.CertCacheDir)
	} else {
		srv := &http.Server{
			Addr:        ":" + cfg.HTTPPort,
			Handler:     n,
			IdleTimeout: time.Minute,
			ReadTimeout: 30 * time.Second,
			// Renders can run for minutes; the write timeout must cover a
			// full pipeline pass.
			WriteTimeout: 10 * time.Minute,
		}
		logger.Info("Starting development server", slog.String("port", cfg.HTTPPort))
		server.ServeDevelopment(srv)
	}
}

func setupNegroni(r *mux.Router) *negroni.Negroni {
	n := negroni.New()

	n.Use(negroni.NewRecovery())
	n.Use(negroni.NewLogger())

	n.UseHandler(r)
	return n
}

func ensureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func initLogger() (*slog.Logger, error) {
	logDir := filepath.Join("logs", "render")

	fileHandler, err := logging.NewDailyFileHandler(logDir, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	})
	if err != nil {
		return nil, err
	}

	return slog.New(fileHandler), nil
}
