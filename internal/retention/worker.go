package retention

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/nvrengine/engine/internal/shutdown"
)

// Worker runs Engine.Scan on a ticker, registered with the shutdown
// coordinator so a single InitiateShutdown call stops it in priority order.
// The loop shape (ticker, cycle-running guard, panic-safe cycle via a
// conc.WaitGroup) mirrors the teacher's health-check worker.
type Worker struct {
	engine   *Engine
	interval time.Duration
	coord    *shutdown.Coordinator
	compID   shutdown.ComponentID
	running  atomic.Bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewWorker registers a retention scan loop with coord at the given
// priority and returns the Worker. Call Start to begin ticking.
func NewWorker(engine *Engine, interval time.Duration, coord *shutdown.Coordinator, priority int) *Worker {
	w := &Worker{engine: engine, interval: interval, coord: coord}
	w.compID = coord.Register("retention-scan", "retention-scan", w.stop, priority)
	return w
}

// Start launches the periodic scan loop. Idempotent: a second call while
// running is a no-op.
func (w *Worker) Start() {
	if !w.running.CompareAndSwap(false, true) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx)
}

func (w *Worker) run(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if w.coord.IsShutdownInitiated() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.safeCycle(ctx)
		}
	}
}

func (w *Worker) safeCycle(ctx context.Context) {
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("retention scan cycle panicked", "recover", r)
			}
		}()
		if _, err := w.engine.Scan(ctx); err != nil {
			slog.Warn("retention scan cycle failed", "error", err)
		}
	})
	wg.Wait()
}

// stop is the shutdown.StopFunc registered with the coordinator.
func (w *Worker) stop() error {
	if !w.running.CompareAndSwap(true, false) {
		return nil
	}
	if w.cancel != nil {
		w.cancel()
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}
