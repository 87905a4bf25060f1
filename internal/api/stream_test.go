package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/vdc-core/internal/dsuid"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

func TestWatchFilter_Normalize(t *testing.T) {
	id := dsuid.FromName("lamp", dsuid.NamespaceVDC)
	lower := strings.ToLower(id.String())

	got, err := watchFilter{Kinds: []string{vdc.EventValue}, DSUIDs: []string{lower}}.normalize()
	if err != nil {
		t.Fatalf("normalize() error = %v", err)
	}
	if len(got.DSUIDs) != 1 || got.DSUIDs[0] != id.String() {
		t.Errorf("DSUIDs = %v, want [%s]", got.DSUIDs, id)
	}

	for _, bad := range []watchFilter{
		{Kinds: []string{"bogus"}},
		{DSUIDs: []string{"not-a-dsuid"}},
	} {
		if _, err := bad.normalize(); err == nil {
			t.Errorf("normalize(%+v) succeeded, want error", bad)
		}
	}
}

func TestStreamConn_Reply(t *testing.T) {
	c := &streamConn{w: newWatcher(watchFilter{})}
	lamp := dsuid.FromName("lamp", dsuid.NamespaceVDC).String()

	tests := []struct {
		name   string
		in     string
		wantOp string
	}{
		{"ping", `{"op":"ping","id":"1"}`, opPong},
		{"watch", `{"op":"watch","id":"2","filter":{"kinds":["value"],"dsuids":["` + lamp + `"]}}`, opAck},
		{"bad kind", `{"op":"watch","id":"3","filter":{"kinds":["bogus"]}}`, opError},
		{"unknown op", `{"op":"subscribe","id":"4"}`, opError},
		{"not json", `{`, opError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var f streamFrame
			if err := json.Unmarshal(c.reply([]byte(tt.in)), &f); err != nil {
				t.Fatal(err)
			}
			if f.Op != tt.wantOp {
				t.Errorf("op = %q, want %q (%+v)", f.Op, tt.wantOp, f)
			}
		})
	}

	// The failed watch left the accepted filter in place.
	if !c.w.wants(vdc.Event{Kind: vdc.EventValue, DSUID: lamp}) {
		t.Error("watch filter not applied")
	}
	if c.w.wants(vdc.Event{Kind: vdc.EventPush, DSUID: lamp}) {
		t.Error("push passes a value-only filter")
	}
}

func TestEventStream_RejectsBadFilter(t *testing.T) {
	f := newFixture(t, nil)
	if w := f.get(t, "/api/v1/events?kinds=bogus"); w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestEventStream_DeliversHostEvents(t *testing.T) {
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv.buildRouter())
	defer ts.Close()

	lamp := f.lamp.DSUID().String()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/events?kinds=" + vdc.EventValue + "&dsuid=" + lamp
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for f.srv.Hub().ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never attached")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.host.UpdateChannelValue(context.Background(), f.lamp.DSUID(), 0, 42); err != nil {
		t.Fatalf("UpdateChannelValue() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck
	var frame streamFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.Op != opEvent || frame.Event == nil {
		t.Fatalf("frame = %+v, want an event", frame)
	}
	if frame.Event.DSUID != lamp || frame.Event.Data["value"] != float64(42) {
		t.Errorf("event = %+v", frame.Event)
	}

	if err := conn.WriteJSON(streamFrame{Op: opPing, ID: "p1"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if frame.Op != opPong || frame.ID != "p1" {
		t.Errorf("ping answer = %+v", frame)
	}
}
