package metrics

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestMetricsServer(t *testing.T) {
	srv := Start(8889, nil)
	// Give it a tiny bit of time to start up
	time.Sleep(100 * time.Millisecond)

	defer srv.Stop(context.Background())

	RecordSignal("serpapi", StatusOK, 1500*time.Millisecond)
	RecordSignal("autocomplete", StatusBlocked, 200*time.Millisecond)
	RecordScored(1)
	RecordPublish(false)

	resp, err := http.Get("http://localhost:8889/metrics")
	if err != nil {
		t.Fatalf("failed to fetch metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	output := string(body)

	for _, want := range []string{
		`paaplan_signal_requests_total{source="serpapi",status="ok"}`,
		`paaplan_signal_requests_total{source="autocomplete",status="blocked"}`,
		`paaplan_signal_duration_seconds_bucket`,
		`paaplan_pages_scored_total{tier="1"}`,
		`paaplan_publish_total{status="error"}`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in metrics output", want)
		}
	}
}

func TestStopNil(t *testing.T) {
	var s *Server
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("nil server Stop should be a no-op: %v", err)
	}
}
