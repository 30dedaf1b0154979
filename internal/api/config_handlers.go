package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/config"
)

func (s *Server) registerConfigRoutes(api fiber.Router) {
	api.Get("/config", s.handleGetConfig)
	api.Put("/config", s.handleUpdateConfig)
	api.Post("/config/validate", s.handleValidateConfig)
}

func (s *Server) handleGetConfig(c *fiber.Ctx) error {
	return RespondSuccess(c, s.configManager.GetConfig())
}

func (s *Server) handleUpdateConfig(c *fiber.Ctx) error {
	cfg := s.configManager.GetConfig().DeepCopy()
	if err := c.BodyParser(cfg); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if err := s.configManager.UpdateConfig(cfg); err != nil {
		return RespondBadRequest(c, err.Error())
	}
	return RespondMessage(c, "configuration updated")
}

func (s *Server) handleValidateConfig(c *fiber.Ctx) error {
	cfg := &config.Config{}
	if err := c.BodyParser(cfg); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if err := cfg.Validate(); err != nil {
		return RespondSuccess(c, fiber.Map{"valid": false, "error": err.Error()})
	}
	return RespondSuccess(c, fiber.Map{"valid": true})
}
