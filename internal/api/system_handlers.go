package api

import (
	"log/slog"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
)

func (s *Server) handleSystemStats(c *fiber.Ctx) error {
	dbSize, err := s.db.GetDatabaseSize(c.Context())
	if err != nil {
		slog.ErrorContext(logCtx(c), "system stats: database size query failed", "err", err)
		return respondFromError(c, err)
	}
	counters := fiber.Map{}
	for _, key := range []string{"bytes_recorded", "packets_dropped", "evictions_total", "retention_deletions_total"} {
		value, _ := s.db.GetSystemStat(c.Context(), key)
		counters[key] = value
	}

	return RespondSuccess(c, fiber.Map{
		"uptime_seconds": time.Since(s.startTime).Seconds(),
		"go_version":     runtime.Version(),
		"stream_count":   s.streams.GetCount(),
		"database_bytes": dbSize,
		"counters":       counters,
	})
}

func (s *Server) handleSystemHealth(c *fiber.Ctx) error {
	status := "healthy"
	details := fiber.Map{}

	if _, err := s.db.GetDatabaseSize(c.Context()); err != nil {
		status = "unhealthy"
		details["database"] = err.Error()
	}

	return RespondSuccess(c, fiber.Map{"status": status, "details": details})
}
