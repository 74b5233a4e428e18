// Package board owns the dispatch board snapshot and the parameters that
// select it. Every consumer refreshes through the same Store.Refresh call.
package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dispatch-cli/internal/model"
)

var ErrClosed = errors.New("board store closed")

// Fetcher loads one snapshot from the backend.
type Fetcher interface {
	FetchBoard(ctx context.Context, date string, view model.View) (model.BoardSnapshot, error)
}

// State is what listeners see after every fetch outcome.
type State struct {
	Date     string
	View     model.View
	Snapshot model.BoardSnapshot
	// Loaded is false until the first snapshot has been applied.
	Loaded   bool
	Loading  bool
	Warnings []string
	// Err is the most recent fetch error; cleared by the next applied snapshot.
	Err error
}

type Listener func(State)

type Options struct {
	// Date is the initial board date (YYYY-MM-DD). Default: today.
	Date string
	// View is the initial view. Default: day.
	View   model.View
	Logger *slog.Logger
	Now    func() time.Time
}

type Store struct {
	fetcher Fetcher
	logger  *slog.Logger

	lifetime context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	date      string
	view      model.View
	snap      model.BoardSnapshot
	loaded    bool
	warnings  []string
	lastErr   error
	issued    uint64
	applied   uint64
	inflight  int
	closed    bool
	listeners map[int]Listener
	nextID    int
}

func NewStore(fetcher Fetcher, opts Options) (*Store, error) {
	if fetcher == nil {
		return nil, errors.New("board: nil fetcher")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	date := strings.TrimSpace(opts.Date)
	if date == "" {
		date = model.Today(now())
	}
	if _, err := model.ParseDate(date, time.Local); err != nil {
		return nil, err
	}
	view, err := model.ParseView(string(opts.View))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		fetcher:   fetcher,
		logger:    logger,
		lifetime:  ctx,
		cancel:    cancel,
		date:      date,
		view:      view,
		listeners: map[int]Listener{},
	}, nil
}

// Refresh fetches a snapshot for the current date/view and replaces the held
// snapshot wholesale. Each call takes a sequence number; a response is only
// applied if no later call has been applied already and the date/view it was
// issued for is still current. Failures leave the previous snapshot in place.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.issued++
	seq := s.issued
	date, view := s.date, s.view
	s.inflight++
	s.mu.Unlock()
	s.notify()

	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.lifetime, cancel)
	defer stop()

	snap, err := s.fetcher.FetchBoard(fetchCtx, date, view)

	s.mu.Lock()
	s.inflight--
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	stale := seq <= s.applied || date != s.date || view != s.view
	if err != nil {
		// A failure for a superseded request must not mark the current board
		// as failed.
		if !stale {
			s.lastErr = err
		}
		s.mu.Unlock()
		s.logger.Error("board fetch failed", "date", date, "view", view, "seq", seq, "stale", stale, "error", err)
		s.notify()
		return fmt.Errorf("refreshing board: %w", err)
	}
	if stale {
		applied := s.applied
		s.mu.Unlock()
		s.logger.Debug("discarding stale board snapshot", "date", date, "view", view, "seq", seq, "applied", applied)
		s.notify()
		return nil
	}
	snap.Date, snap.View = date, view
	warnings := Consistency(snap)
	s.applied = seq
	s.snap = snap
	s.loaded = true
	s.warnings = warnings
	s.lastErr = nil
	s.mu.Unlock()

	for _, w := range warnings {
		s.logger.Warn("board snapshot inconsistency", "date", date, "view", view, "detail", w)
	}
	s.logger.Debug("board snapshot applied", "date", date, "view", view, "seq", seq, "work_orders", snap.Total(), "crews", len(snap.Crews))
	s.notify()
	return nil
}

// SetParams changes date and/or view (empty keeps the current value) and refreshes.
func (s *Store) SetParams(ctx context.Context, date string, view model.View) error {
	date = strings.TrimSpace(date)
	if date != "" {
		if _, err := model.ParseDate(date, time.Local); err != nil {
			return err
		}
	}
	if view != "" {
		v, err := model.ParseView(string(view))
		if err != nil {
			return err
		}
		view = v
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if date != "" {
		s.date = date
	}
	if view != "" {
		s.view = view
	}
	s.mu.Unlock()
	return s.Refresh(ctx)
}

func (s *Store) SetDate(ctx context.Context, date string) error {
	return s.SetParams(ctx, date, "")
}

func (s *Store) SetView(ctx context.Context, view model.View) error {
	return s.SetParams(ctx, "", view)
}

// Params returns the current date and view.
func (s *Store) Params() (string, model.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date, s.view
}

// Snapshot returns the held snapshot and whether one has been loaded yet.
func (s *Store) Snapshot() (model.BoardSnapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap, s.loaded
}

func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}

func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Store) stateLocked() State {
	return State{
		Date:     s.date,
		View:     s.view,
		Snapshot: s.snap,
		Loaded:   s.loaded,
		Loading:  s.inflight > 0,
		Warnings: append([]string(nil), s.warnings...),
		Err:      s.lastErr,
	}
}

// Subscribe registers a listener called after every fetch start and outcome.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) notify() {
	s.mu.Lock()
	st := s.stateLocked()
	fns := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(st)
	}
}

// Close cancels in-flight fetches; nothing is applied afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = map[int]Listener{}
	s.mu.Unlock()
	s.cancel()
}
