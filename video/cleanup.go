package video

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// orphanAge is how old a temp intermediate must be before the sweeper treats
// it as abandoned by a crashed or killed run. Long renders finish well inside
// this window.
const orphanAge = 6 * time.Hour

// CleanupService removes finished videos past the retention period and temp
// intermediates orphaned by runs that never reached their deferred cleanup.
type CleanupService struct {
	logger        *slog.Logger
	outputDir     string
	tempDir       string
	retentionDays int
}

func NewCleanupService(logger *slog.Logger, outputDir, tempDir string, retentionDays int) *CleanupService {
	return &CleanupService{
		logger:        logger,
		outputDir:     outputDir,
		tempDir:       tempDir,
		retentionDays: retentionDays,
	}
}

// StartSchedule begins periodic cleanup in the background.
func (s *CleanupService) StartSchedule(interval time.Duration) {
	ticker := time.NewTicker(interval)

	go func() {
		for range ticker.C {
			s.PerformCleanup()
		}
	}()

	s.logger.Info("Cleanup service started",
		slog.Int("retention_days", s.retentionDays),
		slog.Duration("interval", interval))
}

// PerformCleanup runs one sweep over both directories.
func (s *CleanupService) PerformCleanup() {
	s.sweep(s.outputDir, time.Now().AddDate(0, 0, -s.retentionDays))
	s.sweep(s.tempDir, time.Now().Add(-orphanAge))
}

func (s *CleanupService) sweep(dir string, cutoff time.Time) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("Error reading directory during cleanup",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		s.logger.Info("Removing expired file",
			slog.String("path", path),
			slog.Time("modified_time", info.ModTime()),
			slog.Time("cutoff_time", cutoff))

		if err := os.Remove(path); err != nil {
			s.logger.Error("Failed to remove expired file",
				slog.String("path", path),
				slog.String("error", err.Error()))
		}
	}
}
