package service

import (
	"encoding/json"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// ScanPublisher publishes scan events to NATS JetStream. The redirect
// path fires it asynchronously so the 302 never waits on persistence,
// let alone geolocation.
type ScanPublisher struct {
	js nats.JetStreamContext
}

// NewScanPublisher creates a new scan event publisher.
func NewScanPublisher(js nats.JetStreamContext) *ScanPublisher {
	return &ScanPublisher{js: js}
}

// Publish emits one scan of the given QR code to the stream.
func (p *ScanPublisher) Publish(qrCodeID int64, code, ip, userAgent string) error {
	msg := model.ScanMessage{
		ID:         uuid.New().String(),
		QRCodeID:   qrCodeID,
		Code:       code,
		IP:         ip,
		UserAgent:  userAgent,
		OccurredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ScanStreamSubject, data)
	return err
}
