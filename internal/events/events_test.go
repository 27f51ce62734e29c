package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/FranksOps/paaplan/internal/plan"
)

type fakeConn struct {
	msgs []*nats.Msg
	err  error
}

func (f *fakeConn) PublishMsg(m *nats.Msg) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, m)
	return nil
}

func TestHeaderCarrier(t *testing.T) {
	msg := &nats.Msg{}
	c := (*headerCarrier)(msg)

	if c.Get("missing") != "" || c.Keys() != nil {
		t.Fatalf("empty carrier should have no keys")
	}
	c.Set("traceparent", "00-abc-def-01")
	if got := c.Get("traceparent"); got != "00-abc-def-01" {
		t.Fatalf("expected traceparent, got %q", got)
	}
	if len(c.Keys()) != 1 {
		t.Fatalf("unexpected keys: %v", c.Keys())
	}
}

func TestPublisher_Extracted(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	conn := &fakeConn{}
	p := NewPublisher(conn, nil)

	res := plan.NewResult([]plan.Page{
		plan.NewPage(plan.Pair{Keyword: "drug rehab", Location: "Newark, NJ"}, plan.Signals{}, 70),
	}, time.Now())
	if err := p.Extracted(ctx, "run-1", "trupathnj", res); err != nil {
		t.Fatalf("Extracted failed: %v", err)
	}

	if len(conn.msgs) != 1 || conn.msgs[0].Subject != SubjectExtracted {
		t.Fatalf("unexpected messages: %+v", conn.msgs)
	}
	if conn.msgs[0].Header.Get("traceparent") == "" {
		t.Errorf("trace context not injected")
	}

	gotCtx, ev, err := decode[Extracted](conn.msgs[0])
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if ev.RunID != "run-1" || ev.Site != "trupathnj" || ev.Result.TotalKeywords != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if sc := trace.SpanContextFromContext(gotCtx); sc.TraceID() != traceID {
		t.Errorf("trace id not propagated: %v", sc.TraceID())
	}
}

func TestPublisher_ProgressFunc(t *testing.T) {
	conn := &fakeConn{}
	progress := NewPublisher(conn, nil).ProgressFunc(context.Background(), "run-2")

	progress(0.5, "Processing: detox Newark")
	progress(1, "Processing: rehab Newark")

	if len(conn.msgs) != 2 {
		t.Fatalf("expected 2 progress messages, got %d", len(conn.msgs))
	}
	_, ev, err := decode[Progress](conn.msgs[0])
	if err != nil {
		t.Fatal(err)
	}
	if ev.RunID != "run-2" || ev.Fraction != 0.5 || ev.Label != "Processing: detox Newark" {
		t.Errorf("unexpected progress event: %+v", ev)
	}

	conn.err = errors.New("connection closed")
	progress(1, "ignored") // must not panic
}

func TestPublisher_Nil(t *testing.T) {
	var p *Publisher
	if err := p.Extracted(context.Background(), "r", "s", nil); err != nil {
		t.Errorf("nil publisher should be a no-op, got %v", err)
	}
	if err := p.Progress(context.Background(), "r", 1, ""); err != nil {
		t.Errorf("nil publisher should be a no-op, got %v", err)
	}
}

func TestPublisher_Error(t *testing.T) {
	p := NewPublisher(&fakeConn{err: nats.ErrConnectionClosed}, nil)
	if err := p.Extracted(context.Background(), "r", "s", plan.NewResult(nil, time.Now())); !errors.Is(err, nats.ErrConnectionClosed) {
		t.Errorf("expected wrapped ErrConnectionClosed, got %v", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, _, err := decode[Progress](&nats.Msg{Data: []byte("{")}); err == nil {
		t.Error("expected decode error")
	}
}
