package repository

import (
	"context"

	"github.com/feliven/qrpulse/internal/app/model"
	"gorm.io/gorm"
)

// ScanEventRepository is the write side of the event store: append on
// scan, one optional geographic back-fill per row.
type ScanEventRepository interface {
	Create(ctx context.Context, event *model.ScanEvent) error
	BackfillGeo(ctx context.Context, id int64, country, city, region *string) error
	CountForQRCode(ctx context.Context, qrCodeID int64) (int64, error)
	CountsForUser(ctx context.Context, userID int64) (map[int64]int64, error)
}

type scanEventRepository struct {
	db *gorm.DB
}

// NewScanEventRepository returns a GORM-backed ScanEventRepository.
func NewScanEventRepository(db *gorm.DB) ScanEventRepository {
	return &scanEventRepository{db: db}
}

func (r *scanEventRepository) Create(ctx context.Context, event *model.ScanEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// BackfillGeo fills the geographic columns of one event. Applying it twice
// with the same values is a no-op, so enrichment retries are safe, and it
// never touches any other column.
func (r *scanEventRepository) BackfillGeo(ctx context.Context, id int64, country, city, region *string) error {
	return r.db.WithContext(ctx).
		Model(&model.ScanEvent{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"country": country,
			"city":    city,
			"region":  region,
		}).Error
}

func (r *scanEventRepository) CountForQRCode(ctx context.Context, qrCodeID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ScanEvent{}).
		Where("qr_code_id = ?", qrCodeID).
		Count(&count).Error
	return count, err
}

// CountsForUser returns scan totals for every QR code the user owns in a
// single grouped query, keyed by QR code id.
func (r *scanEventRepository) CountsForUser(ctx context.Context, userID int64) (map[int64]int64, error) {
	type row struct {
		QRCodeID int64
		Cnt      int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).Raw(`
        SELECT s.qr_code_id AS qr_code_id, COUNT(*) AS cnt
        FROM scan_events s
        JOIN qr_codes q ON q.id = s.qr_code_id
        WHERE q.created_by = ?
        GROUP BY s.qr_code_id
    `, userID).Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[int64]int64, len(rows))
	for _, r := range rows {
		counts[r.QRCodeID] = r.Cnt
	}
	return counts, nil
}
