// Package realtime turns backend push events into board refreshes.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"dispatch-cli/internal/events"
)

// DefaultDebounce coalesces bursts of push events into one refresh.
const DefaultDebounce = 250 * time.Millisecond

// Refresher is the board's single refresh entry point.
type Refresher interface {
	Refresh(ctx context.Context) error
}

type Options struct {
	// Debounce is the quiet period before a refresh fires. Negative means
	// DefaultDebounce; zero refreshes as soon as possible.
	Debounce time.Duration
	// Types are the event types that invalidate the board.
	// Default: work_order_assigned and work_order_updated.
	Types  []events.EventType
	Logger *slog.Logger
}

// Invalidator subscribes to push events and refreshes the board whenever one
// arrives. Payloads are ignored. At most one refresh runs at a time; events
// that land while one is running schedule a single follow-up.
type Invalidator struct {
	source    events.Source
	refresher Refresher
	debounce  time.Duration
	types     []events.EventType
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	unsubs  []func()
	timer   *time.Timer
	pending bool
	running bool
	stopped bool
	fired   int
}

func New(source events.Source, refresher Refresher, opts Options) *Invalidator {
	debounce := opts.Debounce
	if debounce < 0 {
		debounce = DefaultDebounce
	}
	types := opts.Types
	if len(types) == 0 {
		types = []events.EventType{events.WorkOrderAssigned, events.WorkOrderUpdated}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Invalidator{
		source:    source,
		refresher: refresher,
		debounce:  debounce,
		types:     types,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start subscribes to the event source. Calling it twice is a no-op.
func (inv *Invalidator) Start() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.stopped || len(inv.unsubs) > 0 {
		return
	}
	for _, t := range inv.types {
		inv.unsubs = append(inv.unsubs, inv.source.Subscribe(t, inv.onEvent))
	}
}

// Stop unsubscribes and drops any pending refresh. A refresh already running
// is canceled.
func (inv *Invalidator) Stop() {
	inv.mu.Lock()
	if inv.stopped {
		inv.mu.Unlock()
		return
	}
	inv.stopped = true
	unsubs := inv.unsubs
	inv.unsubs = nil
	if inv.timer != nil {
		inv.timer.Stop()
	}
	inv.pending = false
	inv.mu.Unlock()

	for _, u := range unsubs {
		u()
	}
	inv.cancel()
}

// Refreshes returns how many refreshes the invalidator has started.
func (inv *Invalidator) Refreshes() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.fired
}

func (inv *Invalidator) onEvent(ev events.Event) {
	inv.logger.Debug("board invalidated by push event", "type", ev.Type)
	inv.Invalidate()
}

// Invalidate schedules a refresh after the debounce window.
func (inv *Invalidator) Invalidate() {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if inv.stopped {
		return
	}
	inv.pending = true
	if inv.timer == nil {
		inv.timer = time.AfterFunc(inv.debounce, inv.onTimer)
		return
	}
	inv.timer.Reset(inv.debounce)
}

func (inv *Invalidator) onTimer() {
	inv.mu.Lock()
	if inv.stopped || !inv.pending {
		inv.mu.Unlock()
		return
	}
	if inv.running {
		// Picked up again when the running refresh finishes.
		inv.mu.Unlock()
		return
	}
	inv.pending = false
	inv.running = true
	inv.fired++
	inv.mu.Unlock()

	if err := inv.refresher.Refresh(inv.ctx); err != nil && inv.ctx.Err() == nil {
		inv.logger.Warn("board refresh after push event failed", "error", err)
	}

	inv.mu.Lock()
	inv.running = false
	if inv.pending && !inv.stopped {
		inv.timer.Reset(inv.debounce)
	}
	inv.mu.Unlock()
}
