package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
	"go.uber.org/zap"
)

var (
	// ErrInvalidPage signals a page number below 1.
	ErrInvalidPage = errors.New("page must be >= 1")
	// ErrInvalidPageSize signals a page size outside 1..MaxPageSize.
	ErrInvalidPageSize = errors.New("page_size out of bounds")
)

const (
	// MaxPageSize caps one page of raw scan events.
	MaxPageSize = 100
	// DefaultPageSize applies when the caller does not ask for one.
	DefaultPageSize = 20

	topGeoLimit = 5
)

// AnalyticsQuery carries the caller-controlled knobs of one aggregation.
type AnalyticsQuery struct {
	Range     string
	StartDate string
	EndDate   string
	Timezone  string
	Page      int
	PageSize  int
}

// AnalyticsService computes the fixed rollup set for one QR code. All of
// its queries are reads over committed rows; it keeps no running tallies,
// so concurrent ingestion at worst shifts a count by the scans that landed
// mid-call.
type AnalyticsService interface {
	Aggregate(ctx context.Context, qrCodeID, userID int64, q AnalyticsQuery) (*model.AnalyticsResult, error)
}

type analyticsService struct {
	logger  *zap.Logger
	qrCodes repository.QRCodeRepository
	rollups repository.AnalyticsRepository

	// now is swappable so tests can pin the reference instant.
	now func() time.Time
}

// NewAnalyticsService returns the aggregation engine backed by the given
// repositories.
func NewAnalyticsService(logger *zap.Logger, qrCodes repository.QRCodeRepository, rollups repository.AnalyticsRepository) AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &analyticsService{
		logger:  logger,
		qrCodes: qrCodes,
		rollups: rollups,
		now:     time.Now,
	}
}

func (s *analyticsService) Aggregate(ctx context.Context, qrCodeID, userID int64, q AnalyticsQuery) (*model.AnalyticsResult, error) {
	page, pageSize, err := normalizePagination(q.Page, q.PageSize)
	if err != nil {
		return nil, err
	}

	// One reference instant for the whole call.
	now := s.now().UTC()

	window, loc, err := ResolveWindow(q.Range, q.StartDate, q.EndDate, q.Timezone, now)
	if err != nil {
		return nil, err
	}

	// Ownership guard runs before any rollup query.
	if _, err := s.qrCodes.GetForUser(ctx, qrCodeID, userID); err != nil {
		return nil, fmt.Errorf("analytics: load qr code: %w", err)
	}

	total, err := s.rollups.CountScans(ctx, qrCodeID, window)
	if err != nil {
		return nil, err
	}

	today, week, month, err := s.headlineCounts(ctx, qrCodeID, now, loc)
	if err != nil {
		return nil, err
	}

	devices, err := s.rollups.DeviceCounts(ctx, qrCodeID, window)
	if err != nil {
		return nil, err
	}
	breakdown := model.DeviceBreakdown{
		Mobile:  devices[model.DeviceMobile],
		Desktop: devices[model.DeviceDesktop],
		Tablet:  devices[model.DeviceTablet],
	}

	var mobilePct float64
	if total > 0 {
		mobilePct = math.Round(float64(breakdown.Mobile)/float64(total)*1000) / 10
	}

	topCountries, err := s.rollups.TopCountries(ctx, qrCodeID, window, topGeoLimit)
	if err != nil {
		return nil, err
	}
	topCities, err := s.rollups.TopCities(ctx, qrCodeID, window, topGeoLimit)
	if err != nil {
		return nil, err
	}

	hourly, peak, err := s.hourlyBreakdown(ctx, qrCodeID, window, loc)
	if err != nil {
		return nil, err
	}

	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	scans, err := s.rollups.ScanPage(ctx, qrCodeID, window, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []model.ScanEvent{}
	}

	return &model.AnalyticsResult{
		QRCodeID:          qrCodeID,
		TotalScans:        total,
		ScansToday:        today,
		ScansThisWeek:     week,
		ScansThisMonth:    month,
		DeviceBreakdown:   breakdown,
		MobilePercentage:  mobilePct,
		TopCountries:      topCountries,
		TopCities:         topCities,
		HourlyBreakdown:   hourly,
		PeakHour:          peak,
		FilteredScanCount: total,
		TotalPages:        totalPages,
		Page:              page,
		PageSize:          pageSize,
		Scans:             scans,
	}, nil
}

// headlineCounts are the dashboard "at a glance" counters. They always use
// fixed trailing windows off the reference instant, independent of the
// user-selected window.
func (s *analyticsService) headlineCounts(ctx context.Context, qrCodeID int64, now time.Time, loc *time.Location) (today, week, month int64, err error) {
	dayStart := startOfDay(now, loc)
	weekStart := now.Add(-7 * 24 * time.Hour)
	monthStart := now.Add(-30 * 24 * time.Hour)

	if today, err = s.rollups.CountScans(ctx, qrCodeID, repository.Window{Start: &dayStart, End: &now}); err != nil {
		return 0, 0, 0, err
	}
	if week, err = s.rollups.CountScans(ctx, qrCodeID, repository.Window{Start: &weekStart, End: &now}); err != nil {
		return 0, 0, 0, err
	}
	if month, err = s.rollups.CountScans(ctx, qrCodeID, repository.Window{Start: &monthStart, End: &now}); err != nil {
		return 0, 0, 0, err
	}
	return today, week, month, nil
}

// hourlyBreakdown converts every in-window event into the query timezone
// before bucketing, then picks the peak hour with lowest-index tie-break.
func (s *analyticsService) hourlyBreakdown(ctx context.Context, qrCodeID int64, w repository.Window, loc *time.Location) ([]model.HourBucket, *int, error) {
	times, err := s.rollups.ScanTimes(ctx, qrCodeID, w)
	if err != nil {
		return nil, nil, err
	}

	var counts [24]int64
	for _, t := range times {
		counts[t.In(loc).Hour()]++
	}

	hourly := make([]model.HourBucket, 24)
	var peak *int
	var best int64
	for h := 0; h < 24; h++ {
		hourly[h] = model.HourBucket{Hour: h, Count: counts[h]}
		if counts[h] > best {
			best = counts[h]
			hour := h
			peak = &hour
		}
	}
	return hourly, peak, nil
}

func normalizePagination(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	if page < 1 {
		return 0, 0, ErrInvalidPage
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	return page, pageSize, nil
}
