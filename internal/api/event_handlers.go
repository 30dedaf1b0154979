package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/database"
)

func (s *Server) registerEventRoutes(api fiber.Router) {
	api.Get("/events", s.handleListEvents)
	api.Get("/streams/:name/motion-config", s.handleGetMotionConfig)
	api.Put("/streams/:name/motion-config", s.handleSetMotionConfig)
}

func (s *Server) handleListEvents(c *fiber.Ctx) error {
	tr := database.TimeRange{Start: time.Unix(0, 0), End: time.Now()}
	if start := c.Query("start"); start != "" {
		parsed, err := time.Parse(time.RFC3339, start)
		if err != nil {
			return RespondBadRequest(c, "start must be RFC3339")
		}
		tr.Start = parsed
	}
	if end := c.Query("end"); end != "" {
		parsed, err := time.Parse(time.RFC3339, end)
		if err != nil {
			return RespondBadRequest(c, "end must be RFC3339")
		}
		tr.End = parsed
	}

	events, err := s.db.GetEventsInTimeRange(c.Context(), tr)
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, fiber.Map{"events": events, "count": len(events)})
}

func (s *Server) handleGetMotionConfig(c *fiber.Ctx) error {
	cfg, err := s.db.GetMotionConfig(c.Context(), c.Params("name"))
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, cfg)
}

func (s *Server) handleSetMotionConfig(c *fiber.Ctx) error {
	var cfg database.MotionConfig
	if err := c.BodyParser(&cfg); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	cfg.StreamName = c.Params("name")
	if err := s.db.SetMotionConfig(c.Context(), cfg); err != nil {
		return respondFromError(c, err)
	}
	return RespondMessage(c, "saved")
}
