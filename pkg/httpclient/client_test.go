package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/FranksOps/paaplan/pkg/useragent"
)

func TestClient_Timeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := New(Config{Timeout: 10 * time.Millisecond})

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestClient_Redirects(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/1":
			http.Redirect(w, r, "/2", http.StatusFound)
		case "/2":
			http.Redirect(w, r, "/3", http.StatusFound)
		default:
			w.WriteHeader(http.StatusOK)
		}
	}))
	defer ts.Close()

	client := New(Config{MaxRedirects: 1})
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	if _, err := client.Do(context.Background(), req); err == nil {
		t.Fatal("expected redirect limit error")
	}

	noRedir := New(Config{MaxRedirects: -1})
	req2, _ := http.NewRequest(http.MethodGet, ts.URL+"/1", nil)
	resp, err := noRedir.Do(context.Background(), req2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusFound {
		t.Errorf("expected 302 StatusFound, got %d", resp.StatusCode)
	}
}

func TestClient_UserAgentRotation(t *testing.T) {
	var got []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = append(got, r.Header.Get("User-Agent"))
	}))
	defer ts.Close()

	client := New(Config{UserAgents: useragent.NewPool([]string{"ua-1", "ua-2"})})
	for i := 0; i < 3; i++ {
		req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
		resp, err := client.Do(context.Background(), req)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL, nil)
	req.Header.Set("User-Agent", "explicit")
	resp, err := client.Do(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	want := []string{"ua-1", "ua-2", "ua-1", "explicit"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("request %d: User-Agent = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestClient_DoJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"name":"paaplan","count":3}`))
		case "/bad":
			w.Write([]byte(`{not json`))
		default:
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("slow down"))
		}
	}))
	defer ts.Close()

	client := New(Config{})
	ctx := context.Background()

	var out struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/ok", nil)
	if err := client.DoJSON(ctx, req, &out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Name != "paaplan" || out.Count != 3 {
		t.Errorf("unexpected decode: %+v", out)
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/bad", nil)
	if err := client.DoJSON(ctx, req, &out); err == nil {
		t.Errorf("expected decode error")
	}

	req, _ = http.NewRequest(http.MethodGet, ts.URL+"/limited", nil)
	err := client.DoJSON(ctx, req, &out)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Errorf("unexpected status error: %+v", se)
	}
}

func TestClient_NilContext(t *testing.T) {
	client := New(Config{})
	req, _ := http.NewRequest(http.MethodGet, "http://example.com", nil)
	if _, err := client.Do(nil, req); err == nil {
		t.Fatal("expected error for nil context")
	}
}
