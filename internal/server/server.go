package server

import (
	"context"
	"errors"
	"net"

	"chatedge-be/internal/bootstrap"
	"chatedge-be/internal/config"
	"chatedge-be/internal/constant"
	"chatedge-be/internal/pkg/serverutils"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
)

const serviceName = "chatedge"

type Server struct {
	app       *fiber.App
	cfg       *config.Config
	container *bootstrap.Container
}

type healthResponse struct {
	Message string `json:"message"`
	Service string `json:"service"`
}

func New(cfg *config.Config, container *bootstrap.Container) *Server {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		BodyLimit:             1024 * 1024,
		ErrorHandler:          serverutils.ErrorHandler(container.Logger),
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(serverutils.RequestLogger(container.Logger))
	app.Use(serverutils.ErrorHandlerMiddleware(container.Logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.App.CorsOrigin,
		AllowCredentials: true,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(otelfiber.Middleware())
	app.Use(encryptcookie.New(encryptcookie.Config{
		Key: serverutils.CookieKey(cfg.Auth.CookieSecret),
	}))

	registerRoutes(app, container)

	return &Server{
		app:       app,
		cfg:       cfg,
		container: container,
	}
}

func (s *Server) GetApp() *fiber.App {
	return s.app
}

// Run serves on the configured port until ctx is cancelled, then drains
// in-flight requests within the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", ":"+s.cfg.App.Port)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.container.Logger.Info("Server", "Server is running", map[string]interface{}{"addr": ln.Addr().String()})
		errCh <- s.app.Listener(ln)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.container.Logger.Info("Server", "Shutting down", nil)
	if err := s.app.ShutdownWithTimeout(s.cfg.App.ShutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

func registerRoutes(app *fiber.App, c *bootstrap.Container) {
	api := app.Group("/api/v1")

	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(healthResponse{Message: constant.MsgOK, Service: serviceName})
	})

	c.AuthController.RegisterRoutes(api)
	c.ChatController.RegisterRoutes(api)
	c.WebSocketHandler.RegisterRoutes(api)
}
