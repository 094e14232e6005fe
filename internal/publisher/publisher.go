// Package publisher emits operational events about completed scans to NATS
// for downstream analytics. This is operator plumbing, not a second
// notification channel: publish failures are logged and never fail a run.
package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectScanCompleted is emitted once per finished pipeline run.
const SubjectScanCompleted = "evt.sme_deals.scan_completed.v1"

// ScanEvent summarizes one pipeline run.
type ScanEvent struct {
	RunID       uuid.UUID `json:"run_id"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Fetched     int       `json:"fetched"`
	SME         int       `json:"sme"`
	New         int       `json:"new"`
	Delivered   bool      `json:"delivered"`
	SourcesDown []string  `json:"sources_down,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher wraps a NATS connection with JetStream enabled.
type Publisher struct {
	nc      *nats.Conn
	js      nats.JetStreamContext
	logger  *zap.Logger
	service string
}

// New creates a new Publisher with JetStream enabled if available.
func New(nc *nats.Conn, logger *zap.Logger, service string) (*Publisher, error) {
	js, err := nc.JetStream()
	if err != nil {
		return nil, err
	}
	return &Publisher{
		nc:      nc,
		js:      js,
		logger:  logger,
		service: service,
	}, nil
}

// PublishScanCompleted serializes and publishes a scan summary event.
func (p *Publisher) PublishScanCompleted(ctx context.Context, event ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("publisher.marshal_failed", zap.Error(err))
		return err
	}

	msg := &nats.Msg{
		Subject: SubjectScanCompleted,
		Data:    data,
		Header: nats.Header{
			"source":       []string{p.service},
			"run_id":       []string{event.RunID.String()},
			"content_type": []string{"application/json"},
		},
	}

	if _, err := p.js.PublishMsg(msg); err != nil {
		p.logger.Warn("publisher.publish_failed",
			zap.String("subject", SubjectScanCompleted),
			zap.Error(err))
		return err
	}

	p.logger.Debug("publisher.publish_success",
		zap.String("subject", SubjectScanCompleted),
		zap.String("run_id", event.RunID.String()))
	return nil
}

func (p *Publisher) Close() {
	if p.nc != nil && p.nc.IsConnected() {
		p.nc.Close()
	}
}
