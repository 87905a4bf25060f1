package api

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/nerrad567/vdc-core/internal/audit"
	"github.com/nerrad567/vdc-core/internal/device"
)

type fakeHistory struct {
	entries []device.StateHistoryEntry
	err     error
	gotID   string
	gotN    int
}

func (f *fakeHistory) GetHistory(_ context.Context, id string, limit int) ([]device.StateHistoryEntry, error) {
	f.gotID, f.gotN = id, limit
	return f.entries, f.err
}

type fakeAudit struct {
	filter audit.Filter
	err    error
}

func (f *fakeAudit) List(_ context.Context, filter audit.Filter) (*audit.ListResult, error) {
	f.filter = filter
	if f.err != nil {
		return nil, f.err
	}
	return &audit.ListResult{
		Entries: []audit.Entry{{ID: "aud-1", Kind: "session"}},
		Total:   1,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

func TestDeviceHistory(t *testing.T) {
	f := newFixture(t, nil)
	lamp := f.lamp.DSUID().String()

	if w := f.get(t, "/api/v1/devices/"+lamp+"/history"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without store: status = %d, want 503", w.Code)
	}

	hist := &fakeHistory{entries: []device.StateHistoryEntry{
		{DSUID: lamp, Kind: device.HistoryKindChannel, Index: 1, Value: 80, Source: device.HistorySourceVdsm},
	}}
	f.srv.history = hist

	tests := []struct {
		name      string
		path      string
		wantCode  int
		wantLimit int
	}{
		{"default limit", "/api/v1/devices/" + lamp + "/history", http.StatusOK, defaultHistoryLimit},
		{"explicit limit", "/api/v1/devices/" + lamp + "/history?limit=5", http.StatusOK, 5},
		{"bad limit", "/api/v1/devices/" + lamp + "/history?limit=-1", http.StatusBadRequest, 0},
		{"bad dsuid", "/api/v1/devices/xyz/history", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hist.gotN = 0
			w := f.get(t, tt.path)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusOK {
				return
			}
			if hist.gotN != tt.wantLimit || hist.gotID != lamp {
				t.Errorf("GetHistory(%q, %d), want (%q, %d)", hist.gotID, hist.gotN, lamp, tt.wantLimit)
			}
			resp := decode(t, w)
			if resp["count"] != float64(1) {
				t.Errorf("count = %v, want 1", resp["count"])
			}
		})
	}

	hist.err = errors.New("database is locked")
	if w := f.get(t, "/api/v1/devices/"+lamp+"/history"); w.Code != http.StatusInternalServerError {
		t.Errorf("store error: status = %d, want 500", w.Code)
	}
}

func TestListAudit(t *testing.T) {
	f := newFixture(t, nil)

	if w := f.get(t, "/api/v1/audit"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("without store: status = %d, want 503", w.Code)
	}

	store := &fakeAudit{}
	f.srv.audit = store
	lamp := f.lamp.DSUID().String()

	w := f.get(t, "/api/v1/audit?kind=remove&dsuid="+lamp+"&limit=10&offset=20")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", w.Code, w.Body.String())
	}
	want := audit.Filter{Kind: "remove", DSUID: lamp, Limit: 10, Offset: 20}
	if store.filter != want {
		t.Errorf("filter = %+v, want %+v", store.filter, want)
	}
	resp := decode(t, w)
	if resp["total"] != float64(1) {
		t.Errorf("total = %v, want 1", resp["total"])
	}

	for _, path := range []string{"/api/v1/audit?dsuid=nope", "/api/v1/audit?limit=x", "/api/v1/audit?offset=-3"} {
		if w := f.get(t, path); w.Code != http.StatusBadRequest {
			t.Errorf("GET %s: status = %d, want 400", path, w.Code)
		}
	}

	store.err = errors.New("boom")
	if w := f.get(t, "/api/v1/audit"); w.Code != http.StatusInternalServerError {
		t.Errorf("store error: status = %d, want 500", w.Code)
	}
}
