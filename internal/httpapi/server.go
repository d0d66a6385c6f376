package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"vidforge/internal/automation"
	"vidforge/internal/store"
	logx "vidforge/pkg/logx"
)

// Config controls the embedded HTTP server.
type Config struct {
	Enabled      bool
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server exposes the manual control surface: trigger a channel run, force a
// scheduler tick, and inspect channels. It mutates nothing the scheduler
// would not; every write goes through the same coordinator.
type Server struct {
	cfg   Config
	coord *automation.Coordinator
	loop  *automation.Service
	chans automation.ChannelStore
	log   logx.Logger
	app   *fiber.App
}

func New(cfg Config, coord *automation.Coordinator, loop *automation.Service, chans automation.ChannelStore, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{cfg: cfg, coord: coord, loop: loop, chans: chans, log: log}
	s.app = fiber.New(fiber.Config{
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", s.handleHealth)

	api := s.app.Group("/api")
	api.Get("/channels", s.handleListChannels)
	api.Post("/channels/:id/run", s.handleRunNow)
	api.Post("/automation/tick", s.handleTick)
}

// Start listens in a goroutine; listen errors after startup are logged, not
// returned, matching how the daemon treats a lost control surface (degraded,
// not fatal).
func (s *Server) Start() {
	if !s.cfg.Enabled {
		s.log.Info("http api disabled")
		return
	}
	go func() {
		s.log.Info("http api listening", logx.String("addr", s.cfg.Addr))
		if err := s.app.Listen(s.cfg.Addr); err != nil {
			s.log.Error("http api stopped", logx.Err(err))
		}
	}()
}

func (s *Server) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	deadline := 5 * time.Second
	if d, ok := ctx.Deadline(); ok {
		if rem := time.Until(d); rem < deadline {
			deadline = rem
		}
	}
	if err := s.app.ShutdownWithTimeout(deadline); err != nil {
		s.log.Warn("http shutdown", logx.Err(err))
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleListChannels(c *fiber.Ctx) error {
	channels, err := s.chans.ListEnabledChannels(c.Context())
	if err != nil {
		return apiError(c, fiber.StatusInternalServerError, err)
	}
	if channels == nil {
		channels = []store.Channel{}
	}
	return c.JSON(fiber.Map{"channels": channels})
}

func (s *Server) handleRunNow(c *fiber.Ctx) error {
	id := c.Params("id")
	job, err := s.coord.RunNow(c.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apiError(c, fiber.StatusNotFound, err)
	case errors.Is(err, automation.ErrChannelDisabled),
		errors.Is(err, store.ErrAlreadyRunning):
		return apiError(c, fiber.StatusBadRequest, err)
	case err != nil:
		return apiError(c, fiber.StatusInternalServerError, err)
	case job == nil:
		// Capacity skip surfaces as a client-visible rejection for manual
		// triggers, unlike scheduled ticks where it is a silent skip.
		return apiError(c, fiber.StatusBadRequest, errors.New("channel is at its active job limit"))
	}
	return c.JSON(fiber.Map{
		"jobId":       job.ID,
		"channelId":   job.ChannelID,
		"channelName": job.ChannelName,
	})
}

func (s *Server) handleTick(c *fiber.Ctx) error {
	sum := s.loop.Tick(c.Context())
	return c.JSON(sum)
}

func apiError(c *fiber.Ctx, code int, err error) error {
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
