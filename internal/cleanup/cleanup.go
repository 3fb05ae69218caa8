// Package cleanup periodically sweeps idle sessions and stale temp files.
// Grounded on the teacher's retention Service (start/stop ticker loop)
// plus robfig/cron for the cron-spec schedule (the same scheduling library
// the rest of the pack reaches for; the teacher's own cron schedule
// happened to hand-roll a minute ticker, but this package takes the
// opportunity to exercise an actual cron-expression parser).
package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/smartdoor/orchestrator/internal/assets"
)

// TmpRetention is how long a temp audio directory may sit unused before
// the sweep removes it (spec §4.8: "Deletions are never performed
// automatically" on snapshots/tts output, but tmp/ is working scratch
// space the Orchestrator owns and may reclaim).
const TmpRetention = 24 * time.Hour

// Service runs the periodic sweep described above.
type Service struct {
	assets *assets.Store
	cron   *cron.Cron
	logger *slog.Logger
}

// New constructs a cleanup Service rooted at the same asset tree as the
// rest of the pipeline.
func New(assetsStore *assets.Store) *Service {
	return &Service{
		assets: assetsStore,
		cron:   cron.New(),
		logger: slog.Default().With("component", "cleanup"),
	}
}

// Start registers the sweep on spec (standard 5-field cron syntax,
// default "@every 1h") and begins running it.
func (s *Service) Start(spec string) error {
	if spec == "" {
		spec = "@every 1h"
	}
	if _, err := s.cron.AddFunc(spec, s.sweepTmp); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("cleanup service started", "schedule", spec)
	return nil
}

// Stop halts the scheduler, waiting for any in-flight sweep to finish.
func (s *Service) Stop(ctx context.Context) {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("cleanup service stopped")
}

// sweepTmp removes per-session temp audio directories older than
// TmpRetention.
func (s *Service) sweepTmp() {
	root := filepath.Join(s.assets.BaseDir, string(assets.SubdirTmp))
	entries, err := os.ReadDir(root)
	if err != nil {
		s.logger.Warn("cleanup: read tmp dir", "error", err)
		return
	}

	cutoff := time.Now().Add(-TmpRetention)
	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(root, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			s.logger.Warn("cleanup: remove stale tmp dir", "path", path, "error", err)
			continue
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("cleanup: removed stale tmp directories", "count", removed)
	}
}
