package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/feliven/qrpulse/internal/app/model"
	"github.com/feliven/qrpulse/internal/app/repository"
	"github.com/feliven/qrpulse/internal/enrich"
	infraprometheus "github.com/feliven/qrpulse/internal/infra/prometheus"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const geoBackfillTimeout = 10 * time.Second

// ScanConsumer drains scan events from JetStream into the event store.
// Device metadata is parsed inline (pure, never fails); the geographic
// back-fill runs detached per event, so a row is visible to aggregation
// with null geo fields until the lookup lands.
type ScanConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   repository.ScanEventRepository
	geo    *enrich.GeoResolver
}

// NewScanConsumer creates a new scan event consumer.
func NewScanConsumer(js nats.JetStreamContext, logger *zap.Logger, repo repository.ScanEventRepository, geo *enrich.GeoResolver) *ScanConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScanConsumer{js: js, logger: logger, repo: repo, geo: geo}
}

// Start ensures the stream and durable consumer exist and begins pulling.
func (c *ScanConsumer) Start() error {
	_, err := c.js.StreamInfo(model.ScanStreamName)
	if err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:     model.ScanStreamName,
			Subjects: []string{model.ScanStreamSubject},
			MaxBytes: model.ScanStreamMaxBytes,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	_, err = c.js.ConsumerInfo(model.ScanStreamName, model.ScanConsumerName)
	if err != nil {
		_, err = c.js.AddConsumer(model.ScanStreamName, &nats.ConsumerConfig{
			Durable:   model.ScanConsumerName,
			AckPolicy: nats.AckExplicitPolicy,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ScanStreamSubject, model.ScanConsumerName)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(sub)
	return nil
}

func (c *ScanConsumer) consume(sub *nats.Subscription) {
	ctx := context.Background()
	for {
		msgs, err := sub.Fetch(10, nats.MaxWait(5*time.Second))
		if err != nil && !errors.Is(err, nats.ErrTimeout) {
			c.logger.Error("failed to fetch messages", zap.Error(err))
			continue
		}

		for _, msg := range msgs {
			var scan model.ScanMessage
			if err := json.Unmarshal(msg.Data, &scan); err != nil {
				c.logger.Error("failed to unmarshal scan event", zap.Error(err))
				msg.Nak()
				continue
			}

			device := enrich.ParseUserAgent(scan.UserAgent)
			event := &model.ScanEvent{
				QRCodeID:   scan.QRCodeID,
				OccurredAt: scan.OccurredAt.UTC(),
				DeviceType: device.DeviceType,
				DeviceName: device.DeviceName,
				Browser:    device.Browser,
				OS:         device.OS,
				IPAddress:  scan.IP,
				UserAgent:  scan.UserAgent,
			}

			if err := c.repo.Create(ctx, event); err != nil {
				c.logger.Error("failed to store scan event",
					zap.String("id", scan.ID),
					zap.String("code", scan.Code),
					zap.Error(err))
				msg.Nak()
				continue
			}

			infraprometheus.ScansRecorded.Inc()

			// Detached: the event is already committed and countable.
			go c.backfillGeo(event.ID, scan.IP)

			c.logger.Debug("scan event stored",
				zap.String("id", scan.ID),
				zap.String("code", scan.Code),
				zap.Int64("event_id", event.ID),
				zap.Time("occurred_at", scan.OccurredAt),
			)

			msg.Ack()
		}
	}
}

// backfillGeo resolves the IP and applies the single idempotent geo
// update. Lookup failures leave the fields null and are never retried
// past the resolver's own timeout.
func (c *ScanConsumer) backfillGeo(eventID int64, ip string) {
	ctx, cancel := context.WithTimeout(context.Background(), geoBackfillTimeout)
	defer cancel()

	loc, err := c.geo.Lookup(ctx, ip)
	if err != nil {
		c.logger.Debug("geo lookup failed",
			zap.Int64("event_id", eventID),
			zap.Error(err))
		return
	}

	if err := c.repo.BackfillGeo(ctx, eventID,
		nullable(loc.Country), nullable(loc.City), nullable(loc.Region)); err != nil {
		c.logger.Error("failed to backfill geo fields",
			zap.Int64("event_id", eventID),
			zap.Error(err))
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
