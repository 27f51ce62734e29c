// Package events hands finished plans and extraction progress to other
// services over NATS, carrying OpenTelemetry trace context in headers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"github.com/FranksOps/paaplan/internal/plan"
)

// Subjects.
const (
	SubjectExtracted = "paaplan.plan.extracted"
	SubjectProgress  = "paaplan.plan.progress"
)

// Extracted announces a finished extraction run.
type Extracted struct {
	RunID  string       `json:"run_id"`
	Site   string       `json:"site"`
	Result *plan.Result `json:"result"`
}

// Progress reports how far an extraction run has got.
type Progress struct {
	RunID    string    `json:"run_id"`
	Fraction float64   `json:"fraction"`
	Label    string    `json:"label"`
	At       time.Time `json:"at"`
}

// Conn is the part of *nats.Conn the publisher needs.
type Conn interface {
	PublishMsg(m *nats.Msg) error
}

// Publisher emits run events. A nil *Publisher is a valid, disabled
// publisher.
type Publisher struct {
	conn   Conn
	logger *slog.Logger
}

// NewPublisher wraps an established connection.
func NewPublisher(conn Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Connect dials url and returns a publisher plus a close func that drains
// the connection.
func Connect(url string, logger *slog.Logger) (*Publisher, func(), error) {
	nc, err := nats.Connect(url,
		nats.Name("paaplan"),
		nats.Timeout(5*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("events: connect %s: %w", url, err)
	}
	return NewPublisher(nc, logger), func() { _ = nc.Drain() }, nil
}

// Extracted publishes a finished run on SubjectExtracted.
func (p *Publisher) Extracted(ctx context.Context, runID, site string, res *plan.Result) error {
	if p == nil {
		return nil
	}
	if err := publish(ctx, p.conn, SubjectExtracted, Extracted{RunID: runID, Site: site, Result: res}); err != nil {
		return fmt.Errorf("events: publish extracted: %w", err)
	}
	p.logger.Debug("plan handed off", "run_id", runID, "subject", SubjectExtracted)
	return nil
}

// Progress publishes one progress update on SubjectProgress.
func (p *Publisher) Progress(ctx context.Context, runID string, fraction float64, label string) error {
	if p == nil {
		return nil
	}
	ev := Progress{RunID: runID, Fraction: fraction, Label: label, At: time.Now().UTC()}
	if err := publish(ctx, p.conn, SubjectProgress, ev); err != nil {
		return fmt.Errorf("events: publish progress: %w", err)
	}
	return nil
}

// ProgressFunc adapts Progress to an extraction progress callback.
// Publish failures are logged, not returned.
func (p *Publisher) ProgressFunc(ctx context.Context, runID string) func(float64, string) {
	return func(fraction float64, label string) {
		if err := p.Progress(ctx, runID, fraction, label); err != nil {
			p.logger.Warn("progress event dropped", "run_id", runID, "err", err)
		}
	}
}

// Subscribe registers a handler for JSON messages of type T. The trace
// context from the message headers is passed to handler. Malformed
// messages are dropped.
func Subscribe[T any](nc *nats.Conn, subject string, handler func(context.Context, T)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		ctx, v, err := decode[T](msg)
		if err != nil {
			return
		}
		handler(ctx, v)
	})
}

func publish(ctx context.Context, conn Conn, subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	msg := &nats.Msg{Subject: subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(msg))
	return conn.PublishMsg(msg)
}

func decode[T any](msg *nats.Msg) (context.Context, T, error) {
	var v T
	if err := json.Unmarshal(msg.Data, &v); err != nil {
		return nil, v, err
	}
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), (*headerCarrier)(msg))
	return ctx, v, nil
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}
