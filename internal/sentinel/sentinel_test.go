package sentinel

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewDispatcherEmptyIsNil(t *testing.T) {
	if d := NewDispatcher(nil); d != nil {
		t.Error("NewDispatcher(nil) != nil")
	}
	if d := NewDispatcher([]SinkConfig{}); d != nil {
		t.Error("NewDispatcher(empty) != nil")
	}
}

func TestNilDispatcherDispatchIsSafe(t *testing.T) {
	var d *Dispatcher
	d.Dispatch(Event{Severity: "critical"})
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name       string
		severities []string
		severity   string
		want       bool
	}{
		{"empty list matches all", nil, "low", true},
		{"listed severity", []string{"high", "critical"}, "critical", true},
		{"unlisted severity", []string{"high", "critical"}, "low", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matches(tt.severities, tt.severity); got != tt.want {
				t.Errorf("matches(%v, %q) = %v, want %v", tt.severities, tt.severity, got, tt.want)
			}
		})
	}
}

func TestDispatchFiltersBySeverity(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d := NewDispatcher([]SinkConfig{
		{URL: ts.URL, Severities: []string{"critical"}},
	})

	d.Dispatch(Event{Severity: "low", Module: "risk"})
	d.Dispatch(Event{Severity: "critical", Module: "risk"})

	deadline := time.Now().Add(3 * time.Second)
	for hits.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("hits = %d, want 1 (only the critical event)", got)
	}
}

func TestSendRetriesOn5xx(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	err := Send(SinkConfig{URL: ts.URL}, Event{Severity: "high", Module: "risk"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if attempts.Load() != 2 {
		t.Errorf("attempts = %d, want 2", attempts.Load())
	}
}

func TestSendNoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	err := Send(SinkConfig{URL: ts.URL}, Event{Severity: "high"})
	if err == nil {
		t.Fatal("Send succeeded against a 403")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1 (no retry on client error)", attempts.Load())
	}
}

func TestSendSetsHeaders(t *testing.T) {
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	sink := SinkConfig{URL: ts.URL, Headers: map[string]string{"Authorization": "Bearer tok"}}
	if err := Send(sink, Event{Severity: "low"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
}

func TestFormatPayload(t *testing.T) {
	event := Event{
		Timestamp: "2025-06-01T03:00:00Z",
		Module:    "risk",
		Severity:  "critical",
		Action:    "quarantine_immediate",
		AlertID:   "a-1",
		Hash:      "sha256:ab",
	}

	t.Run("generic", func(t *testing.T) {
		body, err := FormatPayload("generic", event)
		if err != nil {
			t.Fatalf("FormatPayload: %v", err)
		}
		var got Event
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got != event {
			t.Errorf("round trip = %+v, want %+v", got, event)
		}
	})

	t.Run("slack", func(t *testing.T) {
		body, err := FormatPayload("slack", event)
		if err != nil {
			t.Fatalf("FormatPayload: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got["blocks"] == nil {
			t.Error("slack payload missing blocks")
		}
	})

	t.Run("pagerduty severity mapping", func(t *testing.T) {
		body, err := FormatPayload("pagerduty", event)
		if err != nil {
			t.Fatalf("FormatPayload: %v", err)
		}
		var got map[string]any
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		payload, _ := got["payload"].(map[string]any)
		if payload == nil {
			t.Fatal("pagerduty payload missing")
		}
		if payload["severity"] != "critical" {
			t.Errorf("severity = %v, want critical", payload["severity"])
		}
	})
}
