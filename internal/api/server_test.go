package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/nerrad567/vdc-core/internal/device"
	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/infrastructure/config"
	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

type fixture struct {
	srv  *Server
	host *vdc.Host
	vdc  *vdc.Vdc
	lamp *device.Vdsd
}

type checkFunc func(ctx context.Context) error

func (f checkFunc) HealthCheck(ctx context.Context) error { return f(ctx) }

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// newFixture builds a host with one vDC and one dimmer vdSD.
func newFixture(t *testing.T, checks map[string]HealthChecker) *fixture {
	t.Helper()
	ctx := context.Background()

	host, err := vdc.NewHost(vdc.Config{MAC: "02:00:00:00:00:01", Name: "Test host"}, device.NewRegistry(nil))
	if err != nil {
		t.Fatalf("NewHost() error = %v", err)
	}
	v, err := vdc.NewVdc(vdc.VdcConfig{ImplementationID: "x-test-light", Name: "Lights"})
	if err != nil {
		t.Fatalf("NewVdc() error = %v", err)
	}
	if err := host.AddVdc(ctx, v); err != nil {
		t.Fatalf("AddVdc() error = %v", err)
	}

	id := dsuid.FromName("lamp", dsuid.NamespaceVDC)
	lamp := device.NewVdsd(id, device.Config{Name: "Kitchen", ZoneID: 4, PrimaryGroup: device.GroupLight})
	if err := lamp.SetOutput(device.NewOutput(device.FunctionDimmer, device.GroupLight)); err != nil {
		t.Fatalf("SetOutput() error = %v", err)
	}
	d := device.NewDevice(id, v.DSUID())
	if err := d.AddVdsd(lamp); err != nil {
		t.Fatalf("AddVdsd() error = %v", err)
	}
	if err := host.AddDevice(ctx, d); err != nil {
		t.Fatalf("AddDevice() error = %v", err)
	}

	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:      "127.0.0.1",
			WebSocket: config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		},
		Logger:  testLogger(),
		Host:    host,
		Version: "test",
		Checks:  checks,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("vdcd_up 1\n")) //nolint:errcheck
		}),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	host.AddEventSink(srv.Hub())
	return &fixture{srv: srv, host: host, vdc: v, lamp: lamp}
}

func (f *fixture) get(t *testing.T, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	f.srv.buildRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() without logger should fail")
	}
	if _, err := New(Deps{Logger: testLogger()}); err == nil {
		t.Error("New() without host should fail")
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checks     map[string]HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checks", nil, http.StatusOK, "ok"},
		{
			"all healthy",
			map[string]HealthChecker{"database": checkFunc(func(context.Context) error { return nil })},
			http.StatusOK, "ok",
		},
		{
			"one failing",
			map[string]HealthChecker{
				"database": checkFunc(func(context.Context) error { return nil }),
				"mqtt":     checkFunc(func(context.Context) error { return errors.New("not connected") }),
			},
			http.StatusServiceUnavailable, "degraded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.checks)
			w := f.get(t, "/api/v1/health")
			if w.Code != tt.wantCode {
				t.Errorf("status code = %d, want %d", w.Code, tt.wantCode)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			resp := decode(t, w)
			if resp["status"] != tt.wantStatus {
				t.Errorf("status = %v, want %s", resp["status"], tt.wantStatus)
			}
			if resp["host"] != f.host.DSUID().String() {
				t.Errorf("host = %v, want %s", resp["host"], f.host.DSUID())
			}
			components, _ := resp["components"].(map[string]any)
			if len(components) != len(tt.checks) {
				t.Errorf("components = %v, want %d entries", components, len(tt.checks))
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	f := newFixture(t, nil)
	router := f.srv.buildRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestRecoverPanic(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantCode int
	}{
		{"before response", func(http.ResponseWriter, *http.Request) { panic("boom") }, http.StatusInternalServerError},
		{"after header", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			panic("boom")
		}, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			f.srv.recoverPanic(tt.handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusInternalServerError {
				if resp := decode(t, w); resp["code"] != ErrCodeInternal {
					t.Errorf("code = %v, want %s", resp["code"], ErrCodeInternal)
				}
			}
		})
	}
}

type routeCounter map[string]int

func (c routeCounter) ObserveHTTP(route string, status int) {
	c[route+" "+strconv.Itoa(status)]++
}

func TestObserveCountsRoutePatterns(t *testing.T) {
	f := newFixture(t, nil)
	counts := routeCounter{}
	f.srv.requests = counts
	lamp := f.lamp.DSUID().String()

	f.get(t, "/api/v1/devices/"+lamp)
	f.get(t, "/api/v1/devices/"+lamp)
	f.get(t, "/api/v1/audit")
	f.get(t, "/nope")

	want := routeCounter{
		"/api/v1/devices/{dsuid} 200": 2,
		"/api/v1/audit 503":           1,
		"unmatched 404":               1,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("counts[%q] = %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.get(t, "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", w.Code)
	}
}

func TestMetricsRoute(t *testing.T) {
	f := newFixture(t, nil)
	w := f.get(t, "/metrics")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "vdcd_up") {
		t.Errorf("GET /metrics = %d %q", w.Code, w.Body.String())
	}
}

func TestListDevices(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get(t, "/api/v1/devices")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Devices []VdsdView `json:"devices"`
		Count   int        `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Count != 1 || len(resp.Devices) != 1 {
		t.Fatalf("count = %d, want 1", resp.Count)
	}
	got := resp.Devices[0]
	if got.DSUID != f.lamp.DSUID().String() || got.Name != "Kitchen" || got.ZoneID != 4 || !got.Output {
		t.Errorf("device = %+v", got)
	}
	if got.Vdc != f.vdc.DSUID().String() {
		t.Errorf("vdc = %s, want %s", got.Vdc, f.vdc.DSUID())
	}
	if got.Announced {
		t.Error("device reported announced without a session")
	}
}

func TestListDevices_ByVdc(t *testing.T) {
	f := newFixture(t, nil)
	other := dsuid.FromName("other", dsuid.NamespaceVDC)

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantCount float64
	}{
		{"own vdc", "?vdc=" + f.vdc.DSUID().String(), http.StatusOK, 1},
		{"other vdc", "?vdc=" + other.String(), http.StatusOK, 0},
		{"invalid", "?vdc=xyz", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.get(t, "/api/v1/devices"+tt.query)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if tt.wantCode == http.StatusOK {
				if resp := decode(t, w); resp["count"] != tt.wantCount {
					t.Errorf("count = %v, want %v", resp["count"], tt.wantCount)
				}
			}
		})
	}
}

func TestGetDevice(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get(t, "/api/v1/devices/"+f.lamp.DSUID().String())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", w.Code, w.Body.String())
	}
	props, _ := decode(t, w)["properties"].(map[string]any)
	if props["name"] != "Kitchen" {
		t.Errorf("name = %v, want Kitchen", props["name"])
	}
	if _, ok := props["channelStates"]; !ok {
		t.Errorf("channelStates missing from %v", props)
	}
}

func TestGetDevice_Names(t *testing.T) {
	f := newFixture(t, nil)

	w := f.get(t, "/api/v1/devices/"+f.lamp.DSUID().String()+"?names=name,zoneID,bogus")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	props, _ := resp["properties"].(map[string]any)
	if len(props) != 2 || props["name"] != "Kitchen" || props["zoneID"] != float64(4) {
		t.Errorf("properties = %v, want name and zoneID", props)
	}
	if errs, _ := resp["errors"].([]any); len(errs) != 1 {
		t.Errorf("errors = %v, want one entry for bogus", resp["errors"])
	}
}

func TestGetDevice_Entities(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name     string
		id       string
		wantCode int
	}{
		{"host", f.host.DSUID().String(), http.StatusOK},
		{"vdc", f.vdc.DSUID().String(), http.StatusOK},
		{"unknown", dsuid.FromName("nobody", dsuid.NamespaceVDC).String(), http.StatusNotFound},
		{"malformed", "not-a-dsuid", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := f.get(t, "/api/v1/devices/"+tt.id); w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
		})
	}
}

func TestSession_Inactive(t *testing.T) {
	f := newFixture(t, nil)
	w := f.get(t, "/api/v1/session")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if resp := decode(t, w); resp["active"] != false || resp["vdsm"] != nil {
		t.Errorf("session = %v, want inactive", resp)
	}
}

func TestSystem(t *testing.T) {
	f := newFixture(t, nil)
	w := f.get(t, "/api/v1/system")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Registry.Devices != 1 || m.Registry.Vdsds != 1 || m.Registry.WithOutput != 1 {
		t.Errorf("registry = %+v", m.Registry)
	}
	if m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("system = %+v", m)
	}
	if m.MQTT != nil || m.Database != nil {
		t.Error("optional sections present without sources")
	}
}

func TestStartAndClose(t *testing.T) {
	f := newFixture(t, nil)
	if err := f.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start should fail")
	}
	if err := f.srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := f.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := f.srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
