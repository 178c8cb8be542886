package http

import (
	"context"
	"errors"
	"time"

	"github.com/NationalLibraryOfNorway/warehouse-logistics-service-sub001/pkg/log"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const shutdownTimeout = 10 * time.Second

// Server wraps the fiber app with route registration and graceful shutdown.
type Server struct {
	app    *fiber.App
	addr   string
	logger log.Logger
}

// NewServer builds the HTTP server and registers every route.
func NewServer(addr string, orders *OrderHandler, items *ItemHandler, admin *AdminHandler, logger log.Logger) (*Server, error) {
	if orders == nil || items == nil || admin == nil {
		return nil, errors.New("all handlers are required")
	}

	if logger == nil {
		logger = log.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               "warehouse-logistics-service",
		DisableStartupMessage: true,
	})

	app.Use(requestLogging(logger))

	app.Get("/health", func(c *fiber.Ctx) error {
		return OK(c, map[string]string{"status": "ok"})
	})

	v1 := app.Group("/v1")

	v1.Post("/orders", orders.Create)
	v1.Get("/orders/:hostSystem/:hostOrderId", orders.Get)
	v1.Put("/orders/:hostSystem/:hostOrderId/status", orders.UpdateStatus)
	v1.Post("/orders/:hostSystem/:hostOrderId/picked", orders.MarkPicked)
	v1.Delete("/orders/:hostSystem/:hostOrderId", orders.Delete)

	v1.Post("/items", items.Create)
	v1.Get("/items/:hostSystem/:hostId", items.Get)
	v1.Post("/items/:hostSystem/:hostId/placed", items.MarkPlaced)

	v1.Post("/admin/outbox/drain", admin.Drain)
	v1.Get("/admin/outbox", admin.ListOutbox)

	return &Server{app: app, addr: addr, logger: logger}, nil
}

// Listen serves until the context is canceled, then shuts down gracefully.
func (server *Server) Listen(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- server.app.Listen(server.addr)
	}()

	server.logger.Log(ctx, log.LevelInfo, "http server listening", log.String("addr", server.addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.logger.Log(context.Background(), log.LevelInfo, "shutting down http server")

		return server.app.ShutdownWithTimeout(shutdownTimeout)
	}
}

// App exposes the fiber app for tests.
func (server *Server) App() *fiber.App {
	return server.app
}

func requestLogging(logger log.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		requestID := uuid.NewString()

		c.Set("X-Request-Id", requestID)

		err := c.Next()

		logger.Log(c.UserContext(), log.LevelInfo, "http request",
			log.String("request_id", requestID),
			log.String("method", c.Method()),
			log.String("path", c.Path()),
			log.Int("status", c.Response().StatusCode()),
			log.String("duration", time.Since(start).String()),
		)

		return err
	}
}
