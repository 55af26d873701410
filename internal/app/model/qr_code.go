package model

import "time"

// QRCode is a trackable short code. The printed QR image always points at
// /r/<code>, so the target URL can change without reprinting anything.
type QRCode struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	Code      string    `json:"code" gorm:"size:100;uniqueIndex;not null"`
	TargetURL string    `json:"target_url" gorm:"type:text;not null"`
	CreatedBy int64     `json:"created_by" gorm:"index;not null"`
	IsActive  bool      `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (QRCode) TableName() string { return "qr_codes" }
