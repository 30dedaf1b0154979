package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/stream"
)

func (s *Server) registerStreamRoutes(api fiber.Router) {
	api.Get("/streams", s.handleListStreams)
	api.Post("/streams", s.handleCreateStream)
	api.Get("/streams/:name", s.handleGetStream)
	api.Post("/streams/:name/stop", s.handleStopStream)
	api.Delete("/streams/:name", s.handleDeleteStream)
}

type streamResponse struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	RefCount  int64  `json:"ref_count"`
	Stopping  bool   `json:"stopping"`
}

func (s *Server) handleListStreams(c *fiber.Ctx) error {
	configs, err := s.db.ListStreamConfigs(c.Context())
	if err != nil {
		return respondFromError(c, err)
	}
	out := make([]streamResponse, 0, len(configs))
	for _, cfg := range configs {
		out = append(out, s.describeStream(cfg.Name))
	}
	return RespondSuccess(c, out)
}

func (s *Server) describeStream(name string) streamResponse {
	resp := streamResponse{Name: name}
	h, err := s.streams.GetByName(name)
	if err != nil {
		resp.State = stream.Inactive.String()
		return resp
	}
	st, _ := s.streams.GetOperationalState(h)
	resp.State = st.String()
	resp.RefCount, _ = s.streams.GetRefCount(h)
	resp.Stopping, _ = s.streams.IsStopping(h)
	return resp
}

type createStreamRequest struct {
	Name      string `json:"name"`
	SourceURL string `json:"source_url"`
}

func (s *Server) handleCreateStream(c *fiber.Ctx) error {
	var req createStreamRequest
	if err := c.BodyParser(&req); err != nil {
		return RespondBadRequest(c, "malformed request body")
	}
	if _, err := s.streams.Create(stream.Config{Name: req.Name}); err != nil {
		return respondFromError(c, err)
	}
	if _, err := s.db.AddStreamConfig(c.Context(), database.StreamConfig{
		Name:             req.Name,
		SourceURL:        req.SourceURL,
		StreamingEnabled: true,
	}); err != nil {
		return respondFromError(c, err)
	}
	return RespondCreated(c, s.describeStream(req.Name))
}

func (s *Server) handleGetStream(c *fiber.Ctx) error {
	name := c.Params("name")
	cfg, err := s.db.GetStreamConfigByName(c.Context(), name)
	if err != nil {
		return respondFromError(c, err)
	}
	return RespondSuccess(c, fiber.Map{
		"config": cfg,
		"status": s.describeStream(name),
	})
}

func (s *Server) handleStopStream(c *fiber.Ctx) error {
	name := c.Params("name")
	h, err := s.streams.GetByName(name)
	if err != nil {
		return respondFromError(c, err)
	}
	if err := s.streams.RequestStop(h); err != nil {
		return respondFromError(c, err)
	}
	return RespondMessage(c, "stop requested")
}

func (s *Server) handleDeleteStream(c *fiber.Ctx) error {
	name := c.Params("name")
	h, err := s.streams.GetByName(name)
	if err == nil {
		_ = s.streams.Remove(h)
	}
	return RespondNoContent(c)
}

func parseIntParam(c *fiber.Ctx, name string) (int64, error) {
	return strconv.ParseInt(c.Params(name), 10, 64)
}
