package server

import (
	"context"

	"github.com/feliven/qrpulse/internal/app/repository"
	"github.com/feliven/qrpulse/internal/app/service"
	inthttp "github.com/feliven/qrpulse/internal/http/handler"
	"github.com/feliven/qrpulse/internal/http/middleware"
	httpUtil "github.com/feliven/qrpulse/internal/http/util"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Dependencies bundles everything the HTTP server needs to wire its routes.
type Dependencies struct {
	Logger     *zap.Logger
	Redis      *redis.Client
	QRCodes    repository.QRCodeRepository
	Auth       service.AuthService
	QRs        service.QRService
	Analytics  service.AnalyticsService
	Publisher  *service.ScanPublisher
	CodeFilter *service.CodeFilter
	Tokens     *httpUtil.TokenSigner
	BaseURL    string
}

// Server wraps the Fiber application and its dependencies.
type Server struct {
	app  *fiber.App
	deps Dependencies
}

// New creates a new HTTP server instance with default routes.
func New(deps Dependencies) *Server {
	app := fiber.New()

	s := &Server{
		app:  app,
		deps: deps,
	}

	s.registerRoutes()
	return s
}

// Listen starts the Fiber server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the Fiber server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) registerRoutes() {
	s.app.Use(middleware.RequestID())
	s.app.Use(middleware.Recovery(s.deps.Logger))
	s.app.Use(middleware.Logger(s.deps.Logger))
	s.app.Use(middleware.CORS())
	if s.deps.Redis != nil {
		s.app.Use(middleware.RateLimit(s.deps.Redis, middleware.DefaultRateLimitConfig(), s.deps.Logger))
	}

	redirectHandler := inthttp.NewRedirectHandler(inthttp.RedirectDeps{
		Logger:     s.deps.Logger,
		QRCodes:    s.deps.QRCodes,
		CodeFilter: s.deps.CodeFilter,
		Publisher:  s.deps.Publisher,
	})
	redirectHandler.Register(s.app)

	api := s.app.Group("/api")

	authHandler := inthttp.NewAuthHandler(inthttp.AuthDeps{
		Logger:      s.deps.Logger,
		AuthService: s.deps.Auth,
		Tokens:      s.deps.Tokens,
	})
	authHandler.Register(api)

	qrHandler := inthttp.NewQRHandler(inthttp.QRDeps{
		Logger:     s.deps.Logger,
		QRService:  s.deps.QRs,
		Analytics:  s.deps.Analytics,
		CodeFilter: s.deps.CodeFilter,
		BaseURL:    s.deps.BaseURL,
	})
	qrHandler.Register(api.Group("", middleware.Auth(s.deps.Tokens)))
}
