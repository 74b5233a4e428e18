package web

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"

	"github.com/starfederation/datastar-go/datastar"
)

// resourceHub wakes every open stream after a mutation. Wakeups coalesce:
// a subscriber that has not caught up yet gets one pending signal.
type resourceHub struct {
	mu   sync.Mutex
	subs map[chan struct{}]struct{}
}

func newResourceHub() *resourceHub {
	return &resourceHub{subs: map[chan struct{}]struct{}{}}
}

func (h *resourceHub) subscribe() (ch chan struct{}, cancel func()) {
	ch = make(chan struct{}, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *resourceHub) broadcast() {
	h.mu.Lock()
	for ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

type summarySignals struct {
	Date    string        `json:"date"`
	View    model.View    `json:"view"`
	Summary model.Summary `json:"summary"`
	Line    string        `json:"line"`
	Updated string        `json:"updated"`
}

// handleStream keeps a Datastar SSE connection open and patches the board
// summary signals (and the digest element) after every mutation.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	date, view, err := s.boardParams(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	ch, cancel := s.stream.subscribe()
	defer cancel()

	sse := datastar.NewSSE(w, r)
	push := func() {
		snap, err := s.snapshot(r, date, view)
		if err != nil {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		_ = sse.MarshalAndPatchSignals(summarySignals{
			Date:    snap.Date,
			View:    snap.View,
			Summary: snap.Summary,
			Line:    format.SummaryLine(snap.Summary),
			Updated: s.cfg.Now().In(s.cfg.Location).Format(time.TimeOnly),
		})
		if html, err := renderDigest(snap); err == nil {
			_ = sse.PatchElements(`<div id="digest">`+string(html)+`</div>`,
				datastar.WithSelector("#digest"),
				datastar.WithMode(datastar.ElementPatchModeOuter))
		}
	}
	push()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()

	for {
		select {
		case <-sse.Context().Done():
			return
		case <-keepAlive.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-ch:
			push()
		}
	}
}
