package api

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/nerrad567/vdc-core/internal/infrastructure/logging"
	"github.com/nerrad567/vdc-core/internal/vdc"
)

// watcherQueue is the number of frames buffered per stream client.
const watcherQueue = 256

// watchFilter selects host events by kind and dSUID. An empty set matches
// everything.
type watchFilter struct {
	Kinds  []string `json:"kinds,omitempty"`
	DSUIDs []string `json:"dsuids,omitempty"`
}

func (f watchFilter) matches(e vdc.Event) bool {
	return inSet(f.Kinds, e.Kind) && inSet(f.DSUIDs, e.DSUID)
}

func inSet(set []string, v string) bool {
	if len(set) == 0 {
		return true
	}
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// watcher is one event stream subscriber. The hub owns out: only the
// goroutine that removes the watcher from the hub closes it.
type watcher struct {
	out    chan []byte
	mu     sync.RWMutex
	filter watchFilter
}

func newWatcher(f watchFilter) *watcher {
	return &watcher{out: make(chan []byte, watcherQueue), filter: f}
}

func (w *watcher) setFilter(f watchFilter) {
	w.mu.Lock()
	w.filter = f
	w.mu.Unlock()
}

func (w *watcher) wants(e vdc.Event) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.filter.matches(e)
}

// Hub fans host events out to the connected stream clients. It
// implements vdc.EventSink; a slow client loses frames rather than
// stalling the host.
type Hub struct {
	logger   *logging.Logger
	mu       sync.Mutex
	watchers map[*watcher]struct{}
	dropped  atomic.Uint64
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{logger: logger, watchers: make(map[*watcher]struct{})}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		close(w.out)
		delete(h.watchers, w)
	}
}

// Publish implements vdc.EventSink.
func (h *Hub) Publish(e vdc.Event) {
	var frame []byte
	h.mu.Lock()
	defer h.mu.Unlock()
	for w := range h.watchers {
		if !w.wants(e) {
			continue
		}
		if frame == nil {
			var err error
			if frame, err = json.Marshal(streamFrame{Op: opEvent, Event: &e}); err != nil {
				h.logger.Error("encoding stream event failed", "kind", e.Kind, "error", err)
				return
			}
		}
		h.offer(w, frame)
	}
}

// offer queues a frame without blocking. Callers hold h.mu.
func (h *Hub) offer(w *watcher, frame []byte) {
	select {
	case w.out <- frame:
	default:
		h.dropped.Add(1)
	}
}

// send queues a reply frame for a single watcher if it is still attached.
func (h *Hub) send(w *watcher, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.watchers[w]; ok {
		h.offer(w, frame)
	}
}

func (h *Hub) attach(w *watcher) {
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	n := len(h.watchers)
	h.mu.Unlock()
	h.logger.Debug("event stream client attached", "clients", n)
}

func (h *Hub) detach(w *watcher) {
	h.mu.Lock()
	_, ok := h.watchers[w]
	if ok {
		delete(h.watchers, w)
		close(w.out)
	}
	n := len(h.watchers)
	h.mu.Unlock()
	if ok {
		h.logger.Debug("event stream client detached", "clients", n)
	}
}

// ClientCount returns the number of attached clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.watchers)
}

// Dropped returns how many frames were discarded for slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}
