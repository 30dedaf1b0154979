package slogutil

import (
	"log/slog"
	"sync/atomic"
)

type DynamicLeveler struct {
	level atomic.Value
}

// NewDynamicLeveler returns a DynamicLeveler starting at initial.
func NewDynamicLeveler(initial slog.Level) *DynamicLeveler {
	dl := &DynamicLeveler{}
	dl.SetLevel(initial)
	return dl
}

// Level returns the current logging level.
func (dl *DynamicLeveler) Level() slog.Level {
	return dl.level.Load().(slog.Level)
}

// SetLevel updates the logging level. A handler built with this leveler as
// its slog.HandlerOptions.Level picks up the change on its very next log
// call, with no handler rebuild required.
func (dl *DynamicLeveler) SetLevel(level slog.Level) {
	dl.level.Store(level)
}
