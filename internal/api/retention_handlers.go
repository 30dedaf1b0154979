package api

import "github.com/gofiber/fiber/v2"

func (s *Server) registerRetentionRoutes(api fiber.Router) {
	api.Post("/retention/scan", s.handleForceRetentionScan)
}

// handleForceRetentionScan runs one retention pass synchronously and
// reports what it did, for operators who don't want to wait for the
// background worker's next tick.
func (s *Server) handleForceRetentionScan(c *fiber.Ctx) error {
	result, err := s.retention.Scan(c.Context())
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, result)
}
