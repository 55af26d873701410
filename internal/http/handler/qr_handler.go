package handler

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
	"github.com/feliven/qrpulse/internal/app/service"
	"github.com/feliven/qrpulse/internal/http/middleware"
	infraPrometheus "github.com/feliven/qrpulse/internal/infra/prometheus"
	"github.com/gofiber/fiber/v2"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/zap"
)

const qrImageSize = 256

// QRDeps groups dependencies required by the QR management handlers.
type QRDeps struct {
	Logger     *zap.Logger
	QRService  service.QRService
	Analytics  service.AnalyticsService
	CodeFilter *service.CodeFilter
	BaseURL    string
}

// QRHandler implements the authenticated QR management API, including the
// analytics surface.
type QRHandler struct {
	logger     *zap.Logger
	qrs        service.QRService
	analytics  service.AnalyticsService
	codeFilter *service.CodeFilter
	baseURL    string
}

// NewQRHandler creates a QR handler with the provided dependencies.
func NewQRHandler(deps QRDeps) *QRHandler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QRHandler{
		logger:     logger,
		qrs:        deps.QRService,
		analytics:  deps.Analytics,
		codeFilter: deps.CodeFilter,
		baseURL:    deps.BaseURL,
	}
}

// Register wires QR routes onto the provided router (already behind auth).
func (h *QRHandler) Register(router fiber.Router) {
	qr := router.Group("/qr")
	{
		qr.Post("/", h.Create)
		qr.Get("/", h.List)
		qr.Get("/:id", h.Get)
		qr.Put("/:id", h.Update)
		qr.Delete("/:id", h.Delete)
		qr.Get("/:id/image", h.Image)
		qr.Get("/:id/analytics", h.Analytics)
	}
}

// CreateQRRequest represents the request body for creating a QR code.
type CreateQRRequest struct {
	Code      string `json:"code"`
	TargetURL string `json:"target_url"`
}

// UpdateQRRequest represents the request body for updating a QR code.
type UpdateQRRequest struct {
	TargetURL *string `json:"target_url,omitempty"`
	IsActive  *bool   `json:"is_active,omitempty"`
}

// QRResponse represents a QR code with its lifetime scan count.
type QRResponse struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	TargetURL string    `json:"target_url"`
	IsActive  bool      `json:"is_active"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ScanCount int64     `json:"scan_count"`
}

func toQRResponse(qr model.QRCode, count int64) QRResponse {
	return QRResponse{
		ID:        qr.ID,
		Code:      qr.Code,
		TargetURL: qr.TargetURL,
		IsActive:  qr.IsActive,
		CreatedBy: qr.CreatedBy,
		CreatedAt: qr.CreatedAt,
		UpdatedAt: qr.UpdatedAt,
		ScanCount: count,
	}
}

// Create handles POST /api/qr.
func (h *QRHandler) Create(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	var req CreateQRRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	qr, err := h.qrs.Create(reqCtx(c), userID, req.Code, req.TargetURL)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCodeTaken):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("qr code %q already exists", req.Code),
			})
		case errors.Is(err, service.ErrInvalidCode), errors.Is(err, service.ErrInvalidTargetURL):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		h.logger.Error("failed to create qr code", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create qr code",
		})
	}

	if h.codeFilter != nil {
		h.codeFilter.Add(qr.Code)
	}

	return c.Status(fiber.StatusCreated).JSON(toQRResponse(*qr, 0))
}

// List handles GET /api/qr.
func (h *QRHandler) List(c *fiber.Ctx) error {
	userID, ok := middleware.UserID(c)
	if !ok {
		return c.SendStatus(fiber.StatusUnauthorized)
	}

	codes, err := h.qrs.List(reqCtx(c), userID)
	if err != nil {
		h.logger.Error("failed to list qr codes", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to list qr codes",
		})
	}

	response := make([]QRResponse, len(codes))
	for i, qr := range codes {
		response[i] = toQRResponse(qr.QRCode, qr.ScanCount)
	}
	return c.JSON(response)
}

// Get handles GET /api/qr/:id.
func (h *QRHandler) Get(c *fiber.Ctx) error {
	userID, id, ok := h.idParams(c)
	if !ok {
		return nil
	}

	qr, svcErr := h.qrs.Get(reqCtx(c), userID, id)
	if svcErr != nil {
		return h.qrError(c, svcErr, id)
	}
	return c.JSON(toQRResponse(qr.QRCode, qr.ScanCount))
}

// Update handles PUT /api/qr/:id.
func (h *QRHandler) Update(c *fiber.Ctx) error {
	userID, id, ok := h.idParams(c)
	if !ok {
		return nil
	}

	var req UpdateQRRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	qr, svcErr := h.qrs.Update(reqCtx(c), userID, id, service.UpdateQRInput{
		TargetURL: req.TargetURL,
		IsActive:  req.IsActive,
	})
	if svcErr != nil {
		if errors.Is(svcErr, service.ErrInvalidTargetURL) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": svcErr.Error(),
			})
		}
		return h.qrError(c, svcErr, id)
	}
	return c.JSON(toQRResponse(qr.QRCode, qr.ScanCount))
}

// Delete handles DELETE /api/qr/:id. Scan events go with the QR code.
func (h *QRHandler) Delete(c *fiber.Ctx) error {
	userID, id, ok := h.idParams(c)
	if !ok {
		return nil
	}

	if svcErr := h.qrs.Delete(reqCtx(c), userID, id); svcErr != nil {
		return h.qrError(c, svcErr, id)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Image handles GET /api/qr/:id/image, rendering a PNG that points at the
// public redirect URL for the code.
func (h *QRHandler) Image(c *fiber.Ctx) error {
	userID, id, ok := h.idParams(c)
	if !ok {
		return nil
	}

	qr, svcErr := h.qrs.Get(reqCtx(c), userID, id)
	if svcErr != nil {
		return h.qrError(c, svcErr, id)
	}

	redirectURL := fmt.Sprintf("%s/r/%s", h.baseURL, qr.Code)
	png, encErr := qrcode.Encode(redirectURL, qrcode.Medium, qrImageSize)
	if encErr != nil {
		h.logger.Error("failed to render qr image", zap.Int64("id", id), zap.Error(encErr))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to render qr image",
		})
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=qr-%s.png", qr.Code))
	c.Type("png")
	return c.Send(png)
}

// Analytics handles GET /api/qr/:id/analytics.
func (h *QRHandler) Analytics(c *fiber.Ctx) error {
	userID, id, ok := h.idParams(c)
	if !ok {
		return nil
	}

	query := service.AnalyticsQuery{
		Range:     c.Query("range"),
		StartDate: c.Query("start_date"),
		EndDate:   c.Query("end_date"),
		Timezone:  c.Query("timezone"),
		Page:      c.QueryInt("page", 1),
		PageSize:  c.QueryInt("page_size", service.DefaultPageSize),
	}

	result, svcErr := h.analytics.Aggregate(reqCtx(c), id, userID, query)
	if svcErr != nil {
		switch {
		case errors.Is(svcErr, service.ErrInvalidTimezone),
			errors.Is(svcErr, service.ErrInvalidRange),
			errors.Is(svcErr, service.ErrInvalidDate),
			errors.Is(svcErr, service.ErrInvalidDateRange),
			errors.Is(svcErr, service.ErrInvalidPage),
			errors.Is(svcErr, service.ErrInvalidPageSize):
			infraPrometheus.AnalyticsRequests.WithLabelValues("invalid").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": svcErr.Error(),
			})
		case errors.Is(svcErr, repository.ErrQRCodeNotFound):
			infraPrometheus.AnalyticsRequests.WithLabelValues("not_found").Inc()
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "qr code not found",
			})
		}
		infraPrometheus.AnalyticsRequests.WithLabelValues("error").Inc()
		h.logger.Error("failed to aggregate analytics", zap.Int64("id", id), zap.Error(svcErr))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to compute analytics",
		})
	}

	infraPrometheus.AnalyticsRequests.WithLabelValues("ok").Inc()
	return c.JSON(result)
}

// idParams pulls the authenticated user and the :id path parameter,
// writing the failure response itself. ok is false when the response has
// already been written.
func (h *QRHandler) idParams(c *fiber.Ctx) (userID, id int64, ok bool) {
	userID, authed := middleware.UserID(c)
	if !authed {
		_ = c.SendStatus(fiber.StatusUnauthorized)
		return 0, 0, false
	}
	id, parseErr := strconv.ParseInt(c.Params("id"), 10, 64)
	if parseErr != nil || id <= 0 {
		_ = c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid qr code id",
		})
		return 0, 0, false
	}
	return userID, id, true
}

// qrError maps service failures on a loaded QR code to a response,
// treating not-owned exactly like missing.
func (h *QRHandler) qrError(c *fiber.Ctx, err error, id int64) error {
	if errors.Is(err, repository.ErrQRCodeNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "qr code not found",
		})
	}
	h.logger.Error("qr code operation failed", zap.Int64("id", id), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
