package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserve(t *testing.T) {
	m := New()

	m.ObserveRequest("getProperty", "ERR_OK", 2*time.Millisecond)
	m.ObserveRequest("getProperty", "ERR_OK", time.Millisecond)
	m.ObserveRequest("setProperty", "ERR_NOT_FOUND", time.Millisecond)
	m.ObserveNotification("callScene", 3, 1)
	m.ObserveNotification("callScene", 2, 0)
	m.ObserveAnnounce("vdsd", true)
	m.ObserveAnnounce("vdsd", false)
	m.ObservePush()
	m.ObserveHTTP("/api/v1/devices/{dsuid}", 200)
	m.ObserveHTTP("/api/v1/devices/{dsuid}", 200)
	m.ObserveHTTP("/api/v1/audit", 503)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"getProperty ok", testutil.ToFloat64(m.Requests.WithLabelValues("getProperty", "ERR_OK")), 2},
		{"setProperty not found", testutil.ToFloat64(m.Requests.WithLabelValues("setProperty", "ERR_NOT_FOUND")), 1},
		{"callScene targets", testutil.ToFloat64(m.Notifications.WithLabelValues("callScene")), 5},
		{"callScene failures", testutil.ToFloat64(m.NotifyFailures.WithLabelValues("callScene")), 1},
		{"vdsd accepted", testutil.ToFloat64(m.Announcements.WithLabelValues("vdsd", "accepted")), 1},
		{"vdsd failed", testutil.ToFloat64(m.Announcements.WithLabelValues("vdsd", "failed")), 1},
		{"pushes", testutil.ToFloat64(m.Pushes), 1},
		{"device route", testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/devices/{dsuid}", "200")), 2},
		{"audit unavailable", testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/v1/audit", "503")), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestSessionActive(t *testing.T) {
	m := New()
	m.SetSessionActive(true)
	if got := testutil.ToFloat64(m.SessionActive); got != 1 {
		t.Errorf("session_active = %v, want 1", got)
	}
	m.SetSessionActive(false)
	m.SetSessionActive(true)
	if got := testutil.ToFloat64(m.Sessions); got != 2 {
		t.Errorf("sessions_total = %v, want 2", got)
	}
	m.SetSessionActive(false)
	if got := testutil.ToFloat64(m.SessionActive); got != 0 {
		t.Errorf("session_active = %v, want 0", got)
	}
}

func TestHandlerExposesGauges(t *testing.T) {
	m := New()
	m.AddGauge("devices", "Registered devices.", func() float64 { return 4 })
	m.ObservePush()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body) //nolint:errcheck // recorder body

	for _, want := range []string{"vdcd_devices 4", "vdcd_property_pushes_total 1", "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
