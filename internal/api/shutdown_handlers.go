package api

import "github.com/gofiber/fiber/v2"

func (s *Server) registerShutdownRoutes(api fiber.Router) {
	api.Post("/system/shutdown", s.handleInitiateShutdown)
	api.Get("/system/shutdown", s.handleShutdownStatus)
}

// handleInitiateShutdown triggers the process-wide orderly-stop barrier.
// It returns immediately; the caller polls GET /system/shutdown to learn
// when every registered component has stopped.
func (s *Server) handleInitiateShutdown(c *fiber.Ctx) error {
	s.coordinator.InitiateShutdown()
	return RespondMessage(c, "shutdown initiated")
}

func (s *Server) handleShutdownStatus(c *fiber.Ctx) error {
	return RespondSuccess(c, fiber.Map{
		"initiated": s.coordinator.IsShutdownInitiated(),
	})
}
