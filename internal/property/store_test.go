package property

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingSource holds {a, b} and records overlapping applies.
type countingSource struct {
	mu       sync.Mutex
	a, b     int64
	inApply  atomic.Int32
	overlaps atomic.Int32
	delay    time.Duration
}

func (s *countingSource) PropertyTree() *Element {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Container("", Leaf("a", Int64Value(s.a)), Leaf("b", Int64Value(s.b)))
}

func (s *countingSource) Writable(path []string) bool { return path[0] != "b" }

func (s *countingSource) ApplyProperties(tree *Element) error {
	if s.inApply.Add(1) > 1 {
		s.overlaps.Add(1)
	}
	defer s.inApply.Add(-1)
	time.Sleep(s.delay)

	s.mu.Lock()
	defer s.mu.Unlock()
	if a := tree.Child("a"); a != nil {
		s.a = a.Value.AsInt64()
	}
	return nil
}

func TestStoreUnknownTarget(t *testing.T) {
	st := NewStore()

	if _, err := st.Get("nope", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
	if err := st.Set("nope", []*Element{Leaf("a", Int64Value(1))}); !errors.Is(err, ErrNotFound) {
		t.Errorf("Set(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestStoreGetAndSet(t *testing.T) {
	st := NewStore()
	src := &countingSource{a: 1, b: 2}
	st.Register("dev", src)

	if err := st.Set("dev", []*Element{Leaf("a", Int64Value(10))}); err != nil {
		t.Fatalf("Set() error: %v", err)
	}
	res, err := st.Get("dev", []*Element{Placeholder("a")})
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if got := res.Elements[0].Value.AsInt64(); got != 10 {
		t.Errorf("a = %d, want 10", got)
	}

	if err := st.Set("dev", []*Element{Leaf("b", Int64Value(3))}); !errors.Is(err, ErrForbidden) {
		t.Errorf("Set(read-only) error = %v, want ErrForbidden", err)
	}
	if err := st.Set("dev", nil); !errors.Is(err, ErrMissingData) {
		t.Errorf("Set(empty) error = %v, want ErrMissingData", err)
	}
}

func TestStoreSerializesSetsPerDevice(t *testing.T) {
	st := NewStore()
	src := &countingSource{delay: 5 * time.Millisecond}
	st.Register("dev", src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v int64) {
			defer wg.Done()
			if err := st.Set("dev", []*Element{Leaf("a", Int64Value(v))}); err != nil {
				t.Errorf("Set() error: %v", err)
			}
		}(int64(i))
	}
	wg.Wait()

	if n := src.overlaps.Load(); n != 0 {
		t.Errorf("observed %d overlapping sets on one device, want 0", n)
	}
}

func TestStoreDevicesIndependent(t *testing.T) {
	st := NewStore()
	slow := &countingSource{delay: 200 * time.Millisecond}
	fast := &countingSource{}
	st.Register("slow", slow)
	st.Register("fast", fast)

	started := make(chan struct{})
	go func() {
		close(started)
		_ = st.Set("slow", []*Element{Leaf("a", Int64Value(1))}) //nolint:errcheck // exercised for timing only
	}()
	<-started
	time.Sleep(10 * time.Millisecond)

	begin := time.Now()
	if err := st.Set("fast", []*Element{Leaf("a", Int64Value(2))}); err != nil {
		t.Fatalf("Set(fast) error: %v", err)
	}
	if elapsed := time.Since(begin); elapsed > 100*time.Millisecond {
		t.Errorf("Set on another device took %v, want it not to wait for the slow device", elapsed)
	}

	if ids := st.IDs(); len(ids) != 2 || ids[0] != "fast" {
		t.Errorf("IDs() = %v, want [fast slow]", ids)
	}
}
