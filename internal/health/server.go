// Package health exposes the liveness endpoint hosting platforms poll.
package health

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// Body is returned for GET and HEAD on "/".
const Body = "Bot is running"

// Server is a tiny fiber app answering liveness probes.
type Server struct {
	app  *fiber.App
	addr string
}

// New builds the server listening on port. Nothing is bound until Start.
func New(port int) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			if code >= fiber.StatusInternalServerError {
				log.Error().Err(err).Str("path", c.Path()).Msg("Health endpoint error")
			}
			return c.Status(code).SendString(err.Error())
		},
	})
	// fiber registers HEAD alongside GET.
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(Body)
	})
	return &Server{app: app, addr: fmt.Sprintf(":%d", port)}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.addr).Msg("Health check listener started")
	return s.app.Listen(s.addr)
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
