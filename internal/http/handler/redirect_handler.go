package handler

import (
	"context"
	"errors"
	"time"

	"github.com/feliven/qrpulse/internal/app/repository"
	"github.com/feliven/qrpulse/internal/app/service"
	infraPrometheus "github.com/feliven/qrpulse/internal/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// RedirectDeps groups dependencies required by the public redirect handlers.
type RedirectDeps struct {
	Logger     *zap.Logger
	QRCodes    repository.QRCodeRepository
	CodeFilter *service.CodeFilter
	Publisher  *service.ScanPublisher
}

// RedirectHandler implements the public scan entry point. Every QR image
// encodes /r/:code, so this is the hot path.
type RedirectHandler struct {
	logger     *zap.Logger
	qrCodes    repository.QRCodeRepository
	codeFilter *service.CodeFilter
	publisher  *service.ScanPublisher
}

// NewRedirectHandler creates a redirect handler with the provided dependencies.
func NewRedirectHandler(deps RedirectDeps) *RedirectHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedirectHandler{
		logger:     logger,
		qrCodes:    deps.QRCodes,
		codeFilter: deps.CodeFilter,
		publisher:  deps.Publisher,
	}
}

// Register wires the public routes onto the provided router.
func (h *RedirectHandler) Register(router fiber.Router) {
	router.Get("/", h.Health)
	router.Get("/health", h.Health)
	router.Get("/r/:code", h.Resolve)
}

// Health is a simple root endpoint so we know the service is running.
func (h *RedirectHandler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": "qrpulse",
		"status":  "ok",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// Resolve handles GET /r/:code, records the scan and issues the redirect.
func (h *RedirectHandler) Resolve(c *fiber.Ctx) error {
	code := c.Params("code")
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "missing code",
		})
	}

	// The bloom filter rejects most junk codes without touching the DB.
	if h.codeFilter != nil && !h.codeFilter.MayContain(code) {
		infraPrometheus.Redirects.WithLabelValues("not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "qr code not found",
		})
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	qr, err := h.qrCodes.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrQRCodeNotFound) {
			infraPrometheus.Redirects.WithLabelValues("not_found").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "qr code not found",
			})
		}
		h.logger.Error("failed to load qr code", zap.Error(err), zap.String("code", code))
		infraPrometheus.Redirects.WithLabelValues("error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "internal server error",
		})
	}

	if !qr.IsActive {
		infraPrometheus.Redirects.WithLabelValues("inactive").Inc()
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "qr code is disabled",
		})
	}

	if h.publisher != nil {
		go h.publishScan(qr.ID, code, c.IP(), c.Get(fiber.HeaderUserAgent))
	}

	infraPrometheus.Redirects.WithLabelValues("ok").Inc()
	h.logger.Debug("redirecting scan", zap.String("code", code), zap.String("target", qr.TargetURL))
	return c.Redirect(qr.TargetURL, fiber.StatusFound)
}

func (h *RedirectHandler) publishScan(qrCodeID int64, code, ip, userAgent string) {
	if err := h.publisher.Publish(qrCodeID, code, ip, userAgent); err != nil {
		h.logger.Error("failed to publish scan event", zap.Error(err), zap.String("code", code))
	}
}
