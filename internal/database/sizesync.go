package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// MinSyncInterval is the floor enforced by Start.
const MinSyncInterval = 10 * time.Second

// SizeSync reconciles on-disk file sizes with rows recorded complete but
// still carrying a placeholder size_bytes=0 — the file writer commits the
// row before it knows the final size. Its loop shape mirrors the teacher's
// ticker-driven worker with a running guard and panic-safe cycle.
type SizeSync struct {
	db      *DB
	running atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
}

// NewSizeSync returns a SizeSync bound to db.
func NewSizeSync(db *DB) *SizeSync {
	return &SizeSync{db: db}
}

// ForceSync runs one reconciliation pass immediately and returns the number
// of rows updated. Rows whose file is missing are left untouched — an
// out-of-scope orphan reaper handles those.
func (s *SizeSync) ForceSync(ctx context.Context) (int, error) {
	rows, err := s.db.active().QueryContext(ctx, "SELECT id, file_path FROM recordings WHERE is_complete = 1 AND size_bytes = 0")
	if err != nil {
		return 0, fmt.Errorf("size sync: query: %w", err)
	}

	type candidate struct {
		id   int64
		path string
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		if err := rows.Scan(&c.id, &c.path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("size sync: scan: %w", err)
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("size sync: rows: %w", err)
	}

	updated := 0
	for _, c := range candidates {
		info, err := os.Stat(c.path)
		if err != nil {
			slog.Warn("size sync: file missing, leaving row", "id", c.id, "path", c.path)
			continue
		}
		if info.Size() == 0 {
			continue
		}
		res, err := s.db.active().ExecContext(ctx, "UPDATE recordings SET size_bytes = ? WHERE id = ?", info.Size(), c.id)
		if err != nil {
			slog.Warn("size sync: update failed", "id", c.id, "error", err)
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			updated++
		}
	}
	return updated, nil
}

// Start launches the periodic sync loop. It is idempotent: calling it again
// while already running returns false without starting a second loop.
func (s *SizeSync) Start(interval time.Duration) bool {
	if interval < MinSyncInterval {
		interval = MinSyncInterval
	}
	if !s.running.CompareAndSwap(false, true) {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx, interval)
	return true
}

func (s *SizeSync) run(ctx context.Context, interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.safeCycle(ctx)
		}
	}
}

func (s *SizeSync) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("size sync cycle panicked", "recover", r)
		}
	}()
	if _, err := s.ForceSync(ctx); err != nil {
		slog.Warn("size sync cycle failed", "error", err)
	}
}

// Stop joins the running loop. Calling it when not running returns false.
func (s *SizeSync) Stop() bool {
	if !s.running.CompareAndSwap(true, false) {
		return false
	}
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	return true
}

// IsRunning reports whether the loop is active.
func (s *SizeSync) IsRunning() bool {
	return s.running.Load()
}
