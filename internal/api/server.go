// Package api exposes jobs, podcasts and playback sessions over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"podcastai/internal/config"
	"podcastai/internal/domain"
	"podcastai/internal/service"
)

type Server struct {
	app      *fiber.App
	jobs     JobService
	catalog  CatalogService
	sessions SessionRegistry
	defaults domain.UserPreferences
	logger   *slog.Logger
}

func New(
	jobs JobService,
	catalog CatalogService,
	sessions SessionRegistry,
	defaults domain.UserPreferences,
	cfg config.HTTPConfig,
	logger *slog.Logger,
) *Server {
	s := &Server{
		jobs:     jobs,
		catalog:  catalog,
		sessions: sessions,
		defaults: defaults,
		logger:   logger.With("component", "api"),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "podcastd",
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	s.app.Use(s.logRequests)
	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	v1 := s.app.Group("/v1")

	v1.Post("/jobs", s.submitJob)
	v1.Get("/jobs/:id", s.getJob)
	v1.Post("/jobs/:id/cancel", s.cancelJob)
	v1.Get("/users/:userID/jobs", s.listJobs)

	v1.Get("/users/:userID/podcasts", s.listPodcasts)
	v1.Get("/podcasts/:id", s.getPodcast)
	v1.Get("/podcasts/:id/audio", s.streamAudio)

	v1.Post("/sessions", s.openSession)
	v1.Get("/sessions/:id", s.getSession)
	v1.Delete("/sessions/:id", s.closeSession)
	v1.Post("/sessions/:id/play", s.play)
	v1.Post("/sessions/:id/pause", s.pause)
	v1.Post("/sessions/:id/seek", s.seek)
	v1.Post("/sessions/:id/skip", s.skip)
	v1.Post("/sessions/:id/rate", s.setRate)
	v1.Post("/sessions/:id/position", s.reportPosition)
	v1.Post("/sessions/:id/ended", s.reportEnded)
	v1.Post("/sessions/:id/error", s.reportError)
}

// ServeAssets exposes the audio directory under prefix so asset URLs minted
// with a local public base URL resolve against this server.
func (s *Server) ServeAssets(prefix, dir string) {
	s.app.Static(prefix, dir, fiber.Static{ByteRange: true})
	s.logger.Info("serving audio assets", "prefix", prefix, "dir", dir)
}

func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Listen(addr string) error {
	s.logger.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) logRequests(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	s.logger.Debug("request",
		"method", c.Method(),
		"path", c.Path(),
		"status", c.Response().StatusCode(),
		"duration", time.Since(start),
	)
	return err
}

// handleError maps domain errors onto status codes. The body is always
// {"error": "..."}.
func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "method", c.Method(), "path", c.Path(), "error", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func statusFor(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, domain.ErrInvalidRequest):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnsupportedRate):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrActiveJob), errors.Is(err, domain.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrShuttingDown):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "malformed body: "+err.Error())
	}
	return nil
}
