package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Window is a resolved absolute time interval. A nil bound means
// unbounded on that side; both nil means "all time".
type Window struct {
	Start *time.Time
	End   *time.Time
}

// AnalyticsRepository is the read-only rollup surface of the event store.
// Every method filters by QR code and window; none of them mutate
// anything, so an abandoned query mid-aggregation has no consequences.
type AnalyticsRepository interface {
	CountScans(ctx context.Context, qrCodeID int64, w Window) (int64, error)
	DeviceCounts(ctx context.Context, qrCodeID int64, w Window) (map[string]int64, error)
	TopCountries(ctx context.Context, qrCodeID int64, w Window, limit int) ([]model.GeoBucket, error)
	TopCities(ctx context.Context, qrCodeID int64, w Window, limit int) ([]model.GeoBucket, error)
	ScanTimes(ctx context.Context, qrCodeID int64, w Window) ([]time.Time, error)
	ScanPage(ctx context.Context, qrCodeID int64, w Window, limit, offset int) ([]model.ScanEvent, error)
}

type analyticsRepository struct {
	pool *pgxpool.Pool
}

// NewAnalyticsRepository returns a pgx-backed AnalyticsRepository.
func NewAnalyticsRepository(pool *pgxpool.Pool) AnalyticsRepository {
	return &analyticsRepository{pool: pool}
}

// windowClause builds the shared WHERE fragment and its positional args.
func windowClause(qrCodeID int64, w Window) (string, []any) {
	where := "qr_code_id = $1"
	args := []any{qrCodeID}
	idx := 2

	if w.Start != nil {
		where += fmt.Sprintf(" AND occurred_at >= $%d", idx)
		args = append(args, *w.Start)
		idx++
	}
	if w.End != nil {
		where += fmt.Sprintf(" AND occurred_at <= $%d", idx)
		args = append(args, *w.End)
		idx++
	}

	return where, args
}

func (r *analyticsRepository) CountScans(ctx context.Context, qrCodeID int64, w Window) (int64, error) {
	where, args := windowClause(qrCodeID, w)

	var count int64
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM scan_events WHERE "+where, args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("analytics: count scans: %w", err)
	}
	return count, nil
}

func (r *analyticsRepository) DeviceCounts(ctx context.Context, qrCodeID int64, w Window) (map[string]int64, error) {
	where, args := windowClause(qrCodeID, w)

	rows, err := r.pool.Query(ctx, `
SELECT device_type, COUNT(*)
FROM scan_events
WHERE `+where+`
GROUP BY device_type`, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: device counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var device string
		var count int64
		if err := rows.Scan(&device, &count); err != nil {
			return nil, fmt.Errorf("analytics: device counts: %w", err)
		}
		counts[device] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: device counts: %w", err)
	}
	return counts, nil
}

func (r *analyticsRepository) TopCountries(ctx context.Context, qrCodeID int64, w Window, limit int) ([]model.GeoBucket, error) {
	where, args := windowClause(qrCodeID, w)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT country, COUNT(*) AS cnt
FROM scan_events
WHERE %s AND country IS NOT NULL AND country <> ''
GROUP BY country
ORDER BY cnt DESC
LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: top countries: %w", err)
	}
	defer rows.Close()

	var out []model.GeoBucket
	for rows.Next() {
		var b model.GeoBucket
		if err := rows.Scan(&b.Country, &b.Count); err != nil {
			return nil, fmt.Errorf("analytics: top countries: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: top countries: %w", err)
	}
	return out, nil
}

func (r *analyticsRepository) TopCities(ctx context.Context, qrCodeID int64, w Window, limit int) ([]model.GeoBucket, error) {
	where, args := windowClause(qrCodeID, w)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT city, COALESCE(country, ''), COUNT(*) AS cnt
FROM scan_events
WHERE %s AND city IS NOT NULL AND city <> ''
GROUP BY city, country
ORDER BY cnt DESC
LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: top cities: %w", err)
	}
	defer rows.Close()

	var out []model.GeoBucket
	for rows.Next() {
		var b model.GeoBucket
		if err := rows.Scan(&b.City, &b.Country, &b.Count); err != nil {
			return nil, fmt.Errorf("analytics: top cities: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: top cities: %w", err)
	}
	return out, nil
}

// ScanTimes returns the raw timestamps of every in-window event. Hour
// bucketing happens in Go after converting each instant into the query's
// timezone; a SQL extract(hour ...) over the stored UTC value assigns
// events to the wrong local hour for any non-UTC zone.
func (r *analyticsRepository) ScanTimes(ctx context.Context, qrCodeID int64, w Window) ([]time.Time, error) {
	where, args := windowClause(qrCodeID, w)

	rows, err := r.pool.Query(ctx,
		"SELECT occurred_at FROM scan_events WHERE "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: scan times: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("analytics: scan times: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: scan times: %w", err)
	}
	return out, nil
}

func (r *analyticsRepository) ScanPage(ctx context.Context, qrCodeID int64, w Window, limit, offset int) ([]model.ScanEvent, error) {
	where, args := windowClause(qrCodeID, w)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(`
SELECT id, qr_code_id, occurred_at, device_type, device_name, browser, os,
       ip_address, country, city, region, user_agent
FROM scan_events
WHERE %s
ORDER BY occurred_at DESC
LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, fmt.Errorf("analytics: scan page: %w", err)
	}
	defer rows.Close()

	var out []model.ScanEvent
	for rows.Next() {
		var e model.ScanEvent
		if err := rows.Scan(
			&e.ID, &e.QRCodeID, &e.OccurredAt,
			&e.DeviceType, &e.DeviceName, &e.Browser, &e.OS,
			&e.IPAddress, &e.Country, &e.City, &e.Region, &e.UserAgent,
		); err != nil {
			return nil, fmt.Errorf("analytics: scan page: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("analytics: scan page: %w", err)
	}
	return out, nil
}
