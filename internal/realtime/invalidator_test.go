package realtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"dispatch-cli/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu   sync.Mutex
	subs map[events.EventType][]events.Handler
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: map[events.EventType][]events.Handler{}}
}

func (f *fakeSource) Subscribe(t events.EventType, fn events.Handler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[t] = append(f.subs[t], fn)
	idx := len(f.subs[t]) - 1
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.subs[t][idx] = nil
	}
}

func (f *fakeSource) emit(t events.EventType) {
	f.mu.Lock()
	hs := append([]events.Handler(nil), f.subs[t]...)
	f.mu.Unlock()
	for _, h := range hs {
		if h != nil {
			h(events.Event{Type: t})
		}
	}
}

func (f *fakeSource) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, hs := range f.subs {
		for _, h := range hs {
			if h != nil {
				n++
			}
		}
	}
	return n
}

type countingRefresher struct {
	mu    sync.Mutex
	n     int
	block chan struct{}
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.mu.Lock()
	r.n++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func TestInvalidator_RefreshesOnBothEventTypes(t *testing.T) {
	src := newFakeSource()
	ref := &countingRefresher{}
	inv := New(src, ref, Options{Debounce: 0})
	inv.Start()
	defer inv.Stop()
	require.Equal(t, 2, src.active())

	src.emit(events.WorkOrderAssigned)
	require.Eventually(t, func() bool { return ref.count() == 1 }, time.Second, 5*time.Millisecond)

	src.emit(events.WorkOrderUpdated)
	require.Eventually(t, func() bool { return ref.count() == 2 }, time.Second, 5*time.Millisecond)

	src.emit("crew_updated")
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 2, ref.count())
}

func TestInvalidator_CoalescesBurst(t *testing.T) {
	src := newFakeSource()
	ref := &countingRefresher{}
	inv := New(src, ref, Options{Debounce: 40 * time.Millisecond})
	inv.Start()
	defer inv.Stop()

	for i := 0; i < 10; i++ {
		src.emit(events.WorkOrderUpdated)
	}
	require.Eventually(t, func() bool { return ref.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, ref.count())
	assert.Equal(t, 1, inv.Refreshes())
}

func TestInvalidator_SingleFollowUpWhileRunning(t *testing.T) {
	src := newFakeSource()
	block := make(chan struct{})
	ref := &countingRefresher{block: block}
	inv := New(src, ref, Options{Debounce: 0})
	inv.Start()
	defer inv.Stop()

	src.emit(events.WorkOrderAssigned)
	require.Eventually(t, func() bool { return ref.count() == 1 }, time.Second, 5*time.Millisecond)

	// Several events while the first refresh is still running.
	src.emit(events.WorkOrderUpdated)
	src.emit(events.WorkOrderUpdated)
	src.emit(events.WorkOrderAssigned)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, ref.count(), "no concurrent refresh")

	ref.mu.Lock()
	ref.block = nil
	ref.mu.Unlock()
	close(block)

	require.Eventually(t, func() bool { return ref.count() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 2, ref.count())
}

func TestInvalidator_StopUnsubscribesAndDropsPending(t *testing.T) {
	src := newFakeSource()
	ref := &countingRefresher{}
	inv := New(src, ref, Options{Debounce: 50 * time.Millisecond})
	inv.Start()

	src.emit(events.WorkOrderUpdated)
	inv.Stop()
	inv.Stop()

	assert.Equal(t, 0, src.active())
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, ref.count())

	inv.Invalidate()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, ref.count())
}

func TestInvalidator_WorksWithBus(t *testing.T) {
	bus := events.NewBus(4, nil)
	defer bus.Close()
	ref := &countingRefresher{}
	inv := New(bus, ref, Options{Debounce: -1})
	inv.Start()
	defer inv.Stop()

	bus.Publish(events.Event{Type: events.WorkOrderAssigned})
	require.Eventually(t, func() bool { return ref.count() == 1 }, 2*time.Second, 10*time.Millisecond)
}
