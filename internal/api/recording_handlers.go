package api

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/database"
)

func (s *Server) registerRecordingRoutes(api fiber.Router) {
	api.Get("/recordings", s.handleListRecordings)
	api.Get("/recordings/:id", s.handleGetRecording)
	api.Delete("/recordings/:id", s.handleDeleteRecording)
	api.Put("/recordings/:id/protected", s.handleSetProtected)
	api.Put("/recordings/:id/retention-tier", s.handleSetRetentionTier)
}

func (s *Server) handleListRecordings(c *fiber.Ctx) error {
	params := database.PaginationParams{
		Stream: c.Query("stream"),
		Sort:   c.Query("sort", "start_time"),
		Order:  c.Query("order", "desc"),
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}

	var tr database.TimeRange
	if v := c.Query("start"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			tr.Start = t
		}
	}
	if v := c.Query("end"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			tr.End = t
		}
	}

	recordings, err := s.db.Paginated(c.Context(), tr, params)
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, recordings)
}

func (s *Server) handleGetRecording(c *fiber.Ctx) error {
	id, err := parseIntParam(c, "id")
	if err != nil {
		return RespondBadRequest(c, "invalid recording id")
	}
	rec, err := s.db.GetByID(c.Context(), id)
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, rec)
}

func (s *Server) handleDeleteRecording(c *fiber.Ctx) error {
	id, err := parseIntParam(c, "id")
	if err != nil {
		return RespondBadRequest(c, "invalid recording id")
	}
	if err := s.db.DeleteRecording(c.Context(), id); err != nil {
		return respondFromError(c, err)
	}
	return RespondNoContent(c)
}

type setProtectedRequest struct {
	Protected bool `json:"protected"`
}

func (s *Server) handleSetProtected(c *fiber.Ctx) error {
	id, err := parseIntParam(c, "id")
	if err != nil {
		return RespondBadRequest(c, "invalid recording id")
	}
	var req setProtectedRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if err := s.db.SetProtected(c.Context(), id, req.Protected); err != nil {
		return respondFromError(c, err)
	}
	return RespondMessage(c, "updated")
}

type setRetentionTierRequest struct {
	Tier database.RetentionTier `json:"tier"`
}

func (s *Server) handleSetRetentionTier(c *fiber.Ctx) error {
	id, err := parseIntParam(c, "id")
	if err != nil {
		return RespondBadRequest(c, "invalid recording id")
	}
	var req setRetentionTierRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if err := s.db.SetRetentionTier(c.Context(), id, req.Tier); err != nil {
		return respondFromError(c, err)
	}
	return RespondMessage(c, "updated")
}
