package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestObserve(t *testing.T) {
	rec := NewRecorder(Options{}, zerolog.Nop())
	rec.Observe(RunSample{
		StartedAt:    time.Unix(1700000000, 0),
		Duration:     1500 * time.Millisecond,
		Rows:         20,
		Skipped:      2,
		Candidates:   4,
		Qualifying:   3,
		Status:       "ok",
		AlertOutcome: "sent",
	})
	rec.Observe(RunSample{Status: "errored", AlertOutcome: "failed"})

	cases := []struct {
		family string
		label  string
		want   float64
	}{
		{"hlwatch_runs_total", "ok", 1},
		{"hlwatch_runs_total", "errored", 1},
		{"hlwatch_alerts_total", "sent", 1},
		{"hlwatch_alerts_total", "failed", 1},
		{"hlwatch_last_run_qualifying", "", 0},
		{"hlwatch_last_run_rows", "", 0},
	}
	for _, tc := range cases {
		if got := gathered(t, rec, tc.family, tc.label); got != tc.want {
			t.Fatalf("%s{%s} = %v, want %v", tc.family, tc.label, got, tc.want)
		}
	}
}

// gathered returns the value of the series in family whose single label
// equals label; an empty label selects an unlabelled series.
func gathered(t *testing.T, rec *Recorder, family, label string) float64 {
	t.Helper()
	families, err := rec.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != family {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && (len(m.GetLabel()) != 1 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	t.Fatalf("series %s{%s} not found", family, label)
	return 0
}

func TestPushDisabled(t *testing.T) {
	rec := NewRecorder(Options{}, zerolog.Nop())
	if rec.Enabled() {
		t.Fatal("recorder without gateway should be disabled")
	}
	if err := rec.Push(context.Background()); err != nil {
		t.Fatalf("disabled push should be a no-op: %v", err)
	}
}

func TestPushToGateway(t *testing.T) {
	var (
		mu     sync.Mutex
		path   string
		method string
		body   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		path, method, body = r.URL.Path, r.Method, string(data)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rec := NewRecorder(Options{PushgatewayURL: srv.URL, Job: "hlwatch", Wallet: "0xabc"}, zerolog.Nop())
	rec.Observe(RunSample{Rows: 5, Status: "ok"})

	if err := rec.Push(context.Background()); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodPut {
		t.Fatalf("expected PUT, got %s", method)
	}
	if path != "/metrics/job/hlwatch/wallet/0xabc" {
		t.Fatalf("unexpected push path %s", path)
	}
	if body == "" {
		t.Fatal("expected a metrics payload")
	}
}

func TestPushGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := NewRecorder(Options{PushgatewayURL: srv.URL}, zerolog.Nop())
	err := rec.Push(context.Background())
	if err == nil || !strings.Contains(err.Error(), "push metrics") {
		t.Fatalf("expected wrapped push error, got %v", err)
	}
}
