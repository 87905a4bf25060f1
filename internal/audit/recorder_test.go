package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/vdc-core/internal/vdc"
)

type memoryRepo struct {
	mu      sync.Mutex
	entries []Entry
	err     error
}

func (m *memoryRepo) Create(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memoryRepo) List(context.Context, Filter) (*ListResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &ListResult{Entries: append([]Entry(nil), m.entries...), Total: len(m.entries)}, nil
}

func (m *memoryRepo) kinds() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, e := range m.entries {
		out = append(out, e.Kind)
	}
	return out
}

func TestRecorder_RecordsSelectedKinds(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{})
	r.Start(context.Background())

	ts := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	r.Publish(vdc.Event{Kind: vdc.EventSession, Time: ts, Data: map[string]any{"state": "active"}})
	r.Publish(vdc.Event{Kind: vdc.EventValue, DSUID: "D1", Time: ts})
	r.Publish(vdc.Event{Kind: vdc.EventPush, DSUID: "D1", Time: ts})
	r.Publish(vdc.Event{Kind: vdc.EventRemove, DSUID: "D1", Time: ts})
	r.Stop()

	got := repo.kinds()
	want := []string{vdc.EventSession, vdc.EventRemove}
	if len(got) != len(want) {
		t.Fatalf("recorded kinds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("kinds[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if !repo.entries[0].CreatedAt.Equal(ts) {
		t.Errorf("CreatedAt = %v, want event time %v", repo.entries[0].CreatedAt, ts)
	}
	if repo.entries[1].DSUID != "D1" {
		t.Errorf("DSUID = %q, want D1", repo.entries[1].DSUID)
	}
}

func TestRecorder_CustomKinds(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{Kinds: []string{vdc.EventPush}})
	r.Start(context.Background())
	r.Publish(vdc.Event{Kind: vdc.EventSession})
	r.Publish(vdc.Event{Kind: vdc.EventPush, DSUID: "D2"})
	r.Stop()

	if got := repo.kinds(); len(got) != 1 || got[0] != vdc.EventPush {
		t.Errorf("recorded kinds = %v, want [push]", got)
	}
}

func TestRecorder_DropsWhenFull(t *testing.T) {
	r := NewRecorder(&memoryRepo{}, RecorderConfig{})
	// Not started: nothing drains the queue.
	for i := 0; i < queueSize+5; i++ {
		r.Publish(vdc.Event{Kind: vdc.EventAnnounce})
	}
	if got := r.Dropped(); got != 5 {
		t.Errorf("Dropped() = %d, want 5", got)
	}
}

func TestRecorder_IgnoresAfterStop(t *testing.T) {
	repo := &memoryRepo{}
	r := NewRecorder(repo, RecorderConfig{})
	r.Start(context.Background())
	r.Stop()
	r.Stop()
	r.Publish(vdc.Event{Kind: vdc.EventVanish})

	if got := repo.kinds(); len(got) != 0 {
		t.Errorf("recorded kinds = %v, want none", got)
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	warns int
}

func (l *recordingLogger) Warn(string, ...any) {
	l.mu.Lock()
	l.warns++
	l.mu.Unlock()
}

func TestRecorder_LogsWriteFailure(t *testing.T) {
	log := &recordingLogger{}
	r := NewRecorder(&memoryRepo{err: errors.New("disk full")}, RecorderConfig{Logger: log})
	r.Start(context.Background())
	r.Publish(vdc.Event{Kind: vdc.EventVanish})
	r.Stop()

	if log.warns != 1 {
		t.Errorf("warnings = %d, want 1", log.warns)
	}
}
