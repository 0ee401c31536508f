// Package nats publishes quiz progress reports on a NATS subject for the
// enrollment service to consume.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"advisor-chat/internal/domain"
	"github.com/nats-io/nats.go"
)

// DefaultSubject carries progress reports when none is configured.
const DefaultSubject = "advisor.enrollment.progress"

const flushTimeout = 5 * time.Second

// progressEvent is the wire form of a report; unlike the HTTP body it carries
// the enrollment id.
type progressEvent struct {
	EnrollmentID string `json:"enrollmentId"`
	domain.ProgressReport
	ReportedAt time.Time `json:"reportedAt"`
}

type conn interface {
	Publish(subject string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// ProgressPublisher implements app.ProgressReporter over NATS.
type ProgressPublisher struct {
	conn    conn
	subject string
	now     func() time.Time
}

// Connect dials url with reconnects enabled and returns a publisher on subject.
func Connect(url, subject string, logger *slog.Logger) (*ProgressPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("advisor-chat"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return newPublisher(nc, subject), nil
}

func newPublisher(c conn, subject string) *ProgressPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &ProgressPublisher{conn: c, subject: subject, now: time.Now}
}

func (p *ProgressPublisher) ReportProgress(ctx context.Context, report domain.ProgressReport) error {
	payload, err := json.Marshal(progressEvent{
		EnrollmentID:   report.EnrollmentID,
		ProgressReport: report,
		ReportedAt:     p.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if err := p.conn.Publish(p.subject, payload); err != nil {
		return fmt.Errorf("publish progress: %w", err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush progress: %w", err)
	}
	return nil
}

func (p *ProgressPublisher) Close() {
	p.conn.Close()
}
