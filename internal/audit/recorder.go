package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/vdc-core/internal/vdc"
)

const (
	queueSize    = 128
	writeTimeout = 2 * time.Second
)

// DefaultKinds are the host event kinds recorded when RecorderConfig.Kinds
// is empty. Value changes and pushes go to the state history and InfluxDB
// instead.
var DefaultKinds = []string{
	vdc.EventSession,
	vdc.EventAnnounce,
	vdc.EventVanish,
	vdc.EventRemove,
	vdc.EventNotificationFailed,
}

// Logger is the logging interface used by the recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Kinds  []string
	Logger Logger
}

// Recorder is a vdc.EventSink that writes selected events to a Repository
// from a background goroutine.
type Recorder struct {
	repo   Repository
	kinds  map[string]bool
	logger Logger

	queue    chan vdc.Event
	dropped  atomic.Uint64
	stopped  atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewRecorder creates a recorder writing to repo. Call Start to begin.
func NewRecorder(repo Repository, cfg RecorderConfig) *Recorder {
	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = DefaultKinds
	}
	r := &Recorder{
		repo:   repo,
		kinds:  make(map[string]bool, len(kinds)),
		logger: cfg.Logger,
		queue:  make(chan vdc.Event, queueSize),
		done:   make(chan struct{}),
	}
	for _, k := range kinds {
		r.kinds[k] = true
	}
	if r.logger == nil {
		r.logger = noopLogger{}
	}
	return r
}

// Start runs the writer until ctx ends or Stop is called.
func (r *Recorder) Start(ctx context.Context) {
	r.wg.Add(1)
	go r.writeLoop(ctx)
}

// Stop writes what is queued and waits for the writer. Safe to call
// multiple times.
func (r *Recorder) Stop() {
	r.stopOnce.Do(func() {
		r.stopped.Store(true)
		close(r.done)
		r.wg.Wait()
	})
}

// Publish implements vdc.EventSink. It never blocks; events arriving while
// the queue is full are counted in Dropped.
func (r *Recorder) Publish(e vdc.Event) {
	if !r.kinds[e.Kind] || r.stopped.Load() {
		return
	}
	select {
	case r.queue <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns the number of events lost to a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

func (r *Recorder) writeLoop(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case e := <-r.queue:
			r.write(e)
		case <-ctx.Done():
			return
		case <-r.done:
			for {
				select {
				case e := <-r.queue:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

func (r *Recorder) write(e vdc.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	entry := &Entry{Kind: e.Kind, DSUID: e.DSUID, Details: e.Data, CreatedAt: e.Time}
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("writing audit entry failed", "kind", e.Kind, "error", err)
	}
}
