package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
)

type mockAnalyticsRepository struct {
	countFn        func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error)
	deviceCountsFn func(ctx context.Context, qrCodeID int64, w repository.Window) (map[string]int64, error)
	topCountriesFn func(ctx context.Context, qrCodeID int64, w repository.Window, limit int) ([]model.GeoBucket, error)
	topCitiesFn    func(ctx context.Context, qrCodeID int64, w repository.Window, limit int) ([]model.GeoBucket, error)
	scanTimesFn    func(ctx context.Context, qrCodeID int64, w repository.Window) ([]time.Time, error)
	scanPageFn     func(ctx context.Context, qrCodeID int64, w repository.Window, limit, offset int) ([]model.ScanEvent, error)
}

func (m *mockAnalyticsRepository) CountScans(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, qrCodeID, w)
	}
	return 0, nil
}

func (m *mockAnalyticsRepository) DeviceCounts(ctx context.Context, qrCodeID int64, w repository.Window) (map[string]int64, error) {
	if m.deviceCountsFn != nil {
		return m.deviceCountsFn(ctx, qrCodeID, w)
	}
	return map[string]int64{}, nil
}

func (m *mockAnalyticsRepository) TopCountries(ctx context.Context, qrCodeID int64, w repository.Window, limit int) ([]model.GeoBucket, error) {
	if m.topCountriesFn != nil {
		return m.topCountriesFn(ctx, qrCodeID, w, limit)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) TopCities(ctx context.Context, qrCodeID int64, w repository.Window, limit int) ([]model.GeoBucket, error) {
	if m.topCitiesFn != nil {
		return m.topCitiesFn(ctx, qrCodeID, w, limit)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) ScanTimes(ctx context.Context, qrCodeID int64, w repository.Window) ([]time.Time, error) {
	if m.scanTimesFn != nil {
		return m.scanTimesFn(ctx, qrCodeID, w)
	}
	return nil, nil
}

func (m *mockAnalyticsRepository) ScanPage(ctx context.Context, qrCodeID int64, w repository.Window, limit, offset int) ([]model.ScanEvent, error) {
	if m.scanPageFn != nil {
		return m.scanPageFn(ctx, qrCodeID, w, limit, offset)
	}
	return nil, nil
}

func ownedQRCodeRepo() *mockQRCodeRepository {
	return &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return &model.QRCode{ID: id, Code: "promo", CreatedBy: userID, IsActive: true}, nil
		},
	}
}

func newTestAnalyticsService(qrCodes repository.QRCodeRepository, rollups repository.AnalyticsRepository, now time.Time) AnalyticsService {
	svc := NewAnalyticsService(nil, qrCodes, rollups).(*analyticsService)
	svc.now = func() time.Time { return now }
	return svc
}

func TestAnalyticsService_EmptyWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestAnalyticsService(ownedQRCodeRepo(), &mockAnalyticsRepository{}, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Range: "7days"})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}

	if res.TotalScans != 0 || res.ScansToday != 0 || res.ScansThisWeek != 0 || res.ScansThisMonth != 0 {
		t.Fatalf("expected all-zero counters, got %+v", res)
	}
	if res.MobilePercentage != 0 {
		t.Fatalf("expected mobile percentage 0, got %v", res.MobilePercentage)
	}
	if res.PeakHour != nil {
		t.Fatalf("expected nil peak hour, got %d", *res.PeakHour)
	}
	if len(res.HourlyBreakdown) != 24 {
		t.Fatalf("expected 24 hourly buckets, got %d", len(res.HourlyBreakdown))
	}
	if res.TotalPages != 1 {
		t.Fatalf("expected 1 page for empty results, got %d", res.TotalPages)
	}
	if res.Scans == nil || len(res.Scans) != 0 {
		t.Fatalf("expected empty non-nil scan list, got %v", res.Scans)
	}
}

func TestAnalyticsService_OwnershipGuard(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockQRCodeRepository{
		getForUserFn: func(ctx context.Context, id, userID int64) (*model.QRCode, error) {
			return nil, repository.ErrQRCodeNotFound
		},
	}
	rollupCalled := false
	rollups := &mockAnalyticsRepository{
		countFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
			rollupCalled = true
			return 0, nil
		},
	}
	svc := newTestAnalyticsService(repo, rollups, now)

	_, err := svc.Aggregate(context.Background(), 1, 99, AnalyticsQuery{})
	if !errors.Is(err, repository.ErrQRCodeNotFound) {
		t.Fatalf("expected ErrQRCodeNotFound, got %v", err)
	}
	if rollupCalled {
		t.Fatal("rollup queries must not run when ownership check fails")
	}
}

func TestAnalyticsService_DeviceBreakdownAndMobilePct(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	rollups := &mockAnalyticsRepository{
		countFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
			return 3, nil
		},
		deviceCountsFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (map[string]int64, error) {
			return map[string]int64{
				model.DeviceMobile:  1,
				model.DeviceDesktop: 1,
				"Unknown":           1,
			}, nil
		},
	}
	svc := newTestAnalyticsService(ownedQRCodeRepo(), rollups, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}

	if res.DeviceBreakdown.Mobile != 1 || res.DeviceBreakdown.Desktop != 1 || res.DeviceBreakdown.Tablet != 0 {
		t.Fatalf("unexpected breakdown: %+v", res.DeviceBreakdown)
	}
	// 1 of 3 scans is mobile, rounded to one decimal place.
	if res.MobilePercentage != 33.3 {
		t.Fatalf("expected mobile percentage 33.3, got %v", res.MobilePercentage)
	}
}

func TestAnalyticsService_HourlyBucketsInQueryZone(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	// Two scans at 03:30 UTC and one at 08:30 UTC. In Asia/Kolkata
	// (UTC+5:30) those are 09:00 and 14:00 local.
	times := []time.Time{
		time.Date(2024, 6, 14, 3, 30, 0, 0, time.UTC),
		time.Date(2024, 6, 14, 3, 45, 0, 0, time.UTC),
		time.Date(2024, 6, 14, 8, 30, 0, 0, time.UTC),
	}
	rollups := &mockAnalyticsRepository{
		countFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
			return int64(len(times)), nil
		},
		scanTimesFn: func(ctx context.Context, qrCodeID int64, w repository.Window) ([]time.Time, error) {
			return times, nil
		},
	}
	svc := newTestAnalyticsService(ownedQRCodeRepo(), rollups, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Timezone: "Asia/Kolkata"})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}

	if res.HourlyBreakdown[9].Count != 2 {
		t.Fatalf("expected 2 scans at local hour 9, got %d", res.HourlyBreakdown[9].Count)
	}
	if res.HourlyBreakdown[14].Count != 1 {
		t.Fatalf("expected 1 scan at local hour 14, got %d", res.HourlyBreakdown[14].Count)
	}
	if res.PeakHour == nil || *res.PeakHour != 9 {
		t.Fatalf("expected peak hour 9, got %v", res.PeakHour)
	}

	var sum int64
	for _, b := range res.HourlyBreakdown {
		sum += b.Count
	}
	if sum != res.TotalScans {
		t.Fatalf("hourly counts sum to %d, total is %d", sum, res.TotalScans)
	}

	// The same scans viewed in UTC land in different buckets but keep
	// the same total.
	resUTC, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Timezone: "UTC"})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if resUTC.HourlyBreakdown[3].Count != 2 || resUTC.HourlyBreakdown[8].Count != 1 {
		t.Fatalf("unexpected UTC buckets: %+v", resUTC.HourlyBreakdown)
	}
	if resUTC.TotalScans != res.TotalScans {
		t.Fatalf("timezone changed the total: %d vs %d", resUTC.TotalScans, res.TotalScans)
	}
}

func TestAnalyticsService_PeakHourTieBreak(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	// Hours 2 and 5 both have two scans; the earlier hour wins.
	times := []time.Time{
		time.Date(2024, 6, 14, 2, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 14, 2, 30, 0, 0, time.UTC),
		time.Date(2024, 6, 14, 5, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 14, 5, 30, 0, 0, time.UTC),
	}
	rollups := &mockAnalyticsRepository{
		scanTimesFn: func(ctx context.Context, qrCodeID int64, w repository.Window) ([]time.Time, error) {
			return times, nil
		},
	}
	svc := newTestAnalyticsService(ownedQRCodeRepo(), rollups, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if res.PeakHour == nil || *res.PeakHour != 2 {
		t.Fatalf("expected peak hour 2 on tie, got %v", res.PeakHour)
	}
}

func TestAnalyticsService_Pagination(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	var gotLimit, gotOffset int
	rollups := &mockAnalyticsRepository{
		countFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
			return 105, nil
		},
		scanPageFn: func(ctx context.Context, qrCodeID int64, w repository.Window, limit, offset int) ([]model.ScanEvent, error) {
			gotLimit, gotOffset = limit, offset
			if offset >= 105 {
				return nil, nil
			}
			return make([]model.ScanEvent, 5), nil
		},
	}
	svc := newTestAnalyticsService(ownedQRCodeRepo(), rollups, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Page: 3, PageSize: 50})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if res.TotalPages != 3 {
		t.Fatalf("expected 3 pages for 105 scans at size 50, got %d", res.TotalPages)
	}
	if gotLimit != 50 || gotOffset != 100 {
		t.Fatalf("expected limit 50 offset 100, got %d/%d", gotLimit, gotOffset)
	}

	// A page past the end is not an error, just empty.
	res, err = svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Page: 4, PageSize: 50})
	if err != nil {
		t.Fatalf("Aggregate error on past-the-end page: %v", err)
	}
	if len(res.Scans) != 0 || res.Scans == nil {
		t.Fatalf("expected empty non-nil list, got %v", res.Scans)
	}
	if res.TotalPages != 3 {
		t.Fatalf("total pages must not change for overshoot, got %d", res.TotalPages)
	}
}

func TestAnalyticsService_PaginationValidation(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestAnalyticsService(ownedQRCodeRepo(), &mockAnalyticsRepository{}, now)

	if _, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Page: -1}); !errors.Is(err, ErrInvalidPage) {
		t.Fatalf("expected ErrInvalidPage, got %v", err)
	}
	if _, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{PageSize: 500}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
	if _, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{PageSize: -2}); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}
}

func TestAnalyticsService_HeadlineCountersIgnoreWindow(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	// Record every window the counter sees. The first call carries the
	// user-selected range, the next three are the fixed trailing windows.
	var windows []repository.Window
	rollups := &mockAnalyticsRepository{
		countFn: func(ctx context.Context, qrCodeID int64, w repository.Window) (int64, error) {
			windows = append(windows, w)
			return 10, nil
		},
	}
	svc := newTestAnalyticsService(ownedQRCodeRepo(), rollups, now)

	res, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{
		StartDate: "2024-01-01",
		EndDate:   "2024-01-31",
	})
	if err != nil {
		t.Fatalf("Aggregate error: %v", err)
	}
	if len(windows) != 4 {
		t.Fatalf("expected 4 count queries, got %d", len(windows))
	}

	wantWeek := now.Add(-7 * 24 * time.Hour)
	if windows[2].Start == nil || !windows[2].Start.Equal(wantWeek) {
		t.Fatalf("week counter start should be %v, got %v", wantWeek, windows[2].Start)
	}
	wantMonth := now.Add(-30 * 24 * time.Hour)
	if windows[3].Start == nil || !windows[3].Start.Equal(wantMonth) {
		t.Fatalf("month counter start should be %v, got %v", wantMonth, windows[3].Start)
	}
	if res.ScansToday != 10 || res.ScansThisWeek != 10 || res.ScansThisMonth != 10 {
		t.Fatalf("unexpected headline counters: %+v", res)
	}
}

func TestAnalyticsService_InvalidTimezone(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestAnalyticsService(ownedQRCodeRepo(), &mockAnalyticsRepository{}, now)

	_, err := svc.Aggregate(context.Background(), 1, 7, AnalyticsQuery{Timezone: "Not/AZone"})
	if !errors.Is(err, ErrInvalidTimezone) {
		t.Fatalf("expected ErrInvalidTimezone, got %v", err)
	}
}
