package retention

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/sourcegraph/conc"

	"github.com/nvrengine/engine/internal/shutdown"
)

// CronWorker runs a full Engine.Scan on a cron schedule, complementing
// Worker's fixed-interval disk-pressure polling with a calendar-style
// reconciliation pass (e.g. "run a full sweep every night at 03:00" even
// though pressure checks tick every few minutes). Registered with the same
// shutdown coordinator so one InitiateShutdown call drains both.
type CronWorker struct {
	engine *Engine
	sched  *cron.Cron
	coord  *shutdown.Coordinator
	compID shutdown.ComponentID
}

// NewCronWorker parses expr (standard five-field cron syntax) and returns a
// CronWorker registered with coord. The schedule is not started until Start
// is called.
func NewCronWorker(engine *Engine, expr string, coord *shutdown.Coordinator, priority int) (*CronWorker, error) {
	sched := cron.New()
	w := &CronWorker{engine: engine, sched: sched, coord: coord}
	if _, err := sched.AddFunc(expr, w.safeCycle); err != nil {
		return nil, err
	}
	w.compID = coord.Register("retention-cron-scan", "retention-cron-scan", w.stop, priority)
	return w, nil
}

// Start begins dispatching scheduled runs.
func (w *CronWorker) Start() {
	w.sched.Start()
}

func (w *CronWorker) safeCycle() {
	if w.coord.IsShutdownInitiated() {
		return
	}
	wg := conc.NewWaitGroup()
	wg.Go(func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("scheduled retention scan panicked", "recover", r)
			}
		}()
		if _, err := w.engine.Scan(context.Background()); err != nil {
			slog.Warn("scheduled retention scan failed", "error", err)
		}
	})
	wg.Wait()
}

// stop is the shutdown.StopFunc registered with the coordinator.
func (w *CronWorker) stop() error {
	ctx := w.sched.Stop()
	<-ctx.Done()
	return nil
}
