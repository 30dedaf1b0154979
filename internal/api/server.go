// Package api exposes the engine's subsystems over a fiber REST server:
// stream and recording CRUD, retention control, shutdown requests, and
// authentication. None of the six core subsystems import this package —
// it only ever depends on them.
package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"

	"github.com/nvrengine/engine/internal/auth"
	"github.com/nvrengine/engine/internal/config"
	"github.com/nvrengine/engine/internal/database"
	"github.com/nvrengine/engine/internal/detection"
	"github.com/nvrengine/engine/internal/retention"
	"github.com/nvrengine/engine/internal/shutdown"
	"github.com/nvrengine/engine/internal/slogutil"
	"github.com/nvrengine/engine/internal/stream"
)

const logContextLocal = "log_ctx"

// logCtx returns a context carrying this request's request_id, for
// handlers that want logs correlated via slog's context-attribute hooks.
func logCtx(c *fiber.Ctx) context.Context {
	if ctx, ok := c.Locals(logContextLocal).(context.Context); ok {
		return ctx
	}
	return context.Background()
}

// Config configures the API server's mount point.
type Config struct {
	Prefix string
}

// DefaultConfig mounts the API at "/api".
func DefaultConfig() *Config {
	return &Config{Prefix: "/api"}
}

// Server wires the catalog, config manager, retention engine, stream
// manager, detection gate, auth service, and shutdown coordinator into a
// fiber route table.
type Server struct {
	config        *Config
	db            *database.DB
	configManager *config.Manager
	retention     *retention.Engine
	streams       *stream.Manager
	gate          *detection.Gate
	authService   *auth.Service
	coordinator   *shutdown.Coordinator
	logger        *slog.Logger
	startTime     time.Time
}

// NewServer wires all server dependencies. db and streams are required;
// configManager, retention, authService and coordinator may be nil, in
// which case the routes that depend on them are not registered. gate may
// also be nil: the zone routes are still registered and then skip zone
// cache invalidation.
func NewServer(
	cfg *Config,
	db *database.DB,
	configManager *config.Manager,
	retentionEngine *retention.Engine,
	streams *stream.Manager,
	gate *detection.Gate,
	authService *auth.Service,
	coordinator *shutdown.Coordinator,
) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Server{
		config:        cfg,
		db:            db,
		configManager: configManager,
		retention:     retentionEngine,
		streams:       streams,
		gate:          gate,
		authService:   authService,
		coordinator:   coordinator,
		logger:        slog.Default(),
		startTime:     time.Now(),
	}
}

// SetupRoutes registers every route on app under the configured prefix.
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group(s.config.Prefix)
	api.Use(requestid.New(requestid.Config{Generator: func() string { return uuid.NewString() }}))
	api.Use(cors.New())
	api.Use(recover.New())
	api.Use(func(c *fiber.Ctx) error {
		ctx := slogutil.With(context.Background(), "request_id", c.GetRespHeader(fiber.HeaderXRequestID))
		c.Locals(logContextLocal, ctx)
		return c.Next()
	})

	api.Get("/system/stats", s.handleSystemStats)
	api.Get("/system/health", s.handleSystemHealth)

	s.registerStreamRoutes(api)
	s.registerRecordingRoutes(api)
	s.registerDetectionRoutes(api)
	s.registerEventRoutes(api)

	if s.retention != nil {
		s.registerRetentionRoutes(api)
	}
	if s.configManager != nil {
		s.registerConfigRoutes(api)
	}
	if s.coordinator != nil {
		s.registerShutdownRoutes(api)
	}
	if s.authService != nil {
		s.registerAuthRoutes(api)
	}
}
