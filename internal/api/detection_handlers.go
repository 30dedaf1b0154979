package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/database"
)

func (s *Server) registerDetectionRoutes(api fiber.Router) {
	api.Get("/streams/:name/zones", s.handleGetZones)
	api.Put("/streams/:name/zones", s.handleSaveZones)
}

func (s *Server) handleGetZones(c *fiber.Ctx) error {
	zones, err := s.db.GetDetectionZones(c.Context(), c.Params("name"))
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, zones)
}

func (s *Server) handleSaveZones(c *fiber.Ctx) error {
	var zones []database.DetectionZone
	if err := c.BodyParser(&zones); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	name := c.Params("name")
	if err := s.db.SaveDetectionZones(c.Context(), name, zones); err != nil {
		return respondFromError(c, err)
	}
	if s.gate != nil {
		s.gate.InvalidateZones(name)
	}
	return RespondMessage(c, "saved")
}
