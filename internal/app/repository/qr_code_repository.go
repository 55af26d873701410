package repository

import (
	"context"
	"errors"

	"github.com/feliven/qrpulse/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrQRCodeNotFound covers both a missing QR code and a QR code owned
	// by someone else, so callers cannot probe for existence.
	ErrQRCodeNotFound = errors.New("qr code not found")
)

// QRCodeRepository defines the data access contract for QR codes.
type QRCodeRepository interface {
	Create(ctx context.Context, qr *model.QRCode) error
	GetByCode(ctx context.Context, code string) (*model.QRCode, error)
	GetForUser(ctx context.Context, id, userID int64) (*model.QRCode, error)
	ListForUser(ctx context.Context, userID int64) ([]model.QRCode, error)
	ListCodes(ctx context.Context) ([]string, error)
	Update(ctx context.Context, qr *model.QRCode) error
	Delete(ctx context.Context, id int64) error
}

type qrCodeRepository struct {
	db *gorm.DB
}

// NewQRCodeRepository returns a GORM-backed QRCodeRepository.
func NewQRCodeRepository(db *gorm.DB) QRCodeRepository {
	return &qrCodeRepository{db: db}
}

func (r *qrCodeRepository) Create(ctx context.Context, qr *model.QRCode) error {
	return r.db.WithContext(ctx).Create(qr).Error
}

func (r *qrCodeRepository) GetByCode(ctx context.Context, code string) (*model.QRCode, error) {
	var qr model.QRCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return &qr, nil
}

// GetForUser is the ownership guard: it only returns a QR code when it
// exists AND belongs to userID, failing with the same ErrQRCodeNotFound in
// both other cases.
func (r *qrCodeRepository) GetForUser(ctx context.Context, id, userID int64) (*model.QRCode, error) {
	var qr model.QRCode
	if err := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ?", id, userID).
		First(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQRCodeNotFound
		}
		return nil, err
	}
	return &qr, nil
}

func (r *qrCodeRepository) ListForUser(ctx context.Context, userID int64) ([]model.QRCode, error) {
	var result []model.QRCode
	if err := r.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&result).Error; err != nil {
		return nil, err
	}
	return result, nil
}

// ListCodes returns every short code, used to seed the redirect path's
// known-code filter at startup.
func (r *qrCodeRepository) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := r.db.WithContext(ctx).
		Model(&model.QRCode{}).
		Pluck("code", &codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

func (r *qrCodeRepository) Update(ctx context.Context, qr *model.QRCode) error {
	result := r.db.WithContext(ctx).
		Model(&model.QRCode{}).
		Where("id = ?", qr.ID).
		Updates(map[string]interface{}{
			"target_url": qr.TargetURL,
			"is_active":  qr.IsActive,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrQRCodeNotFound
	}

	return r.db.WithContext(ctx).First(qr, qr.ID).Error
}

// Delete removes the QR code and all of its scan events in one
// transaction. Migrations run with FK constraints disabled, so the cascade
// is explicit here.
func (r *qrCodeRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("qr_code_id = ?", id).Delete(&model.ScanEvent{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&model.QRCode{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrQRCodeNotFound
		}
		return nil
	})
}
