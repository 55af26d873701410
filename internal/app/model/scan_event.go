package model

import "time"

// Recognized device type values. Anything the parser cannot classify is
// stored as DeviceUnknown and excluded from the device breakdown.
const (
	DeviceMobile  = "Mobile"
	DeviceDesktop = "Desktop"
	DeviceTablet  = "Tablet"
	DeviceUnknown = "Unknown"
)

// ScanEvent is one resolution of a QR code. Rows are append-only: the
// geographic columns may be back-filled once by background enrichment,
// nothing else ever changes, and rows are removed only when the owning QR
// code is deleted.
type ScanEvent struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	QRCodeID   int64     `json:"qr_code_id" gorm:"index;not null"`
	OccurredAt time.Time `json:"occurred_at" gorm:"index;not null"`

	DeviceType string `json:"device_type" gorm:"size:20"`
	DeviceName string `json:"device_name" gorm:"size:100"`
	Browser    string `json:"browser" gorm:"size:50"`
	OS         string `json:"os" gorm:"size:50"`

	// Geographic fields stay NULL until enrichment completes (or forever,
	// when the lookup fails).
	IPAddress string  `json:"-" gorm:"size:45"`
	Country   *string `json:"country" gorm:"size:100"`
	City      *string `json:"city" gorm:"size:100"`
	Region    *string `json:"region" gorm:"size:100"`

	// Raw user agent kept for debugging only, never aggregated.
	UserAgent string `json:"-" gorm:"type:text"`
}

func (ScanEvent) TableName() string { return "scan_events" }

// ScanMessage is the wire form of a scan published to JetStream by the
// redirect path and persisted by the scan consumer.
type ScanMessage struct {
	ID         string    `json:"id"`
	QRCodeID   int64     `json:"qr_code_id"`
	Code       string    `json:"code"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	ScanStreamName     = "SCANS"
	ScanStreamSubject  = "scans.events"
	ScanConsumerName   = "scan-logger"
	ScanStreamMaxBytes = 1024 * 1024 * 100 // 100MB
)
