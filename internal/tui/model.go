package tui

import (
	"context"
	"log/slog"
	"time"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/drag"
	"dispatch-cli/internal/events"
	"dispatch-cli/internal/model"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// Board is the store the screen renders and drives.
type Board interface {
	drag.Board
	State() board.State
	SetParams(ctx context.Context, date string, view model.View) error
	Subscribe(fn board.Listener) func()
}

type Options struct {
	Board   Board
	Mutator drag.Mutator
	// Source, when set, refreshes the board on push events.
	Source events.Source
	// Debounce is passed to the invalidator (negative means its default).
	Debounce time.Duration
	Logger   *slog.Logger
	Now      func() time.Time
}

const noteTTL = 6 * time.Second

type opDoneMsg struct {
	op  string
	err error
}

type noteExpiredMsg struct{ seq int }

type boardModel struct {
	ctx    context.Context
	cancel context.CancelFunc
	board  Board
	ctrl   *drag.Controller
	inbox  *inbox
	unsub  func()
	logger *slog.Logger
	now    func() time.Time

	keys keyMap
	help help.Model
	spin spinner.Model

	width  int
	height int

	state      board.State
	cols       boardColumns
	sel        boardSelection
	showDetail bool

	confirm *confirmMsg
	note    *noteMsg
	noteSeq int
}

func newBoardModel(opts Options) boardModel {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	in := newInbox()
	m := boardModel{
		ctx:    ctx,
		cancel: cancel,
		board:  opts.Board,
		inbox:  in,
		logger: logger,
		now:    now,
		keys:   defaultKeyMap(),
		help:   help.New(),
		spin:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styleMuted())),
	}
	m.ctrl = drag.New(opts.Mutator, opts.Board, in, drag.Options{Logger: logger, Now: now})
	m.unsub = opts.Board.Subscribe(func(board.State) { in.boardChanged() })
	m.state = opts.Board.State()
	m.cols = buildColumns(m.state.Snapshot)
	return m
}

func (m boardModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.inbox.listen(), m.run("refresh", m.board.Refresh))
}

// close stops background work; pending confirmations answer "no".
func (m boardModel) close() {
	m.cancel()
	m.unsub()
	m.inbox.close()
}

func (m boardModel) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return opDoneMsg{op: op, err: fn(ctx)}
	}
}

func (m boardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		if m.state.Loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case boardChangedMsg:
		m.state = m.board.State()
		m.cols = buildColumns(m.state.Snapshot)
		if _, held := m.ctrl.Dragged(); !held {
			m.sel = m.cols.clamp(m.sel)
		}
		return m, m.inbox.listen()

	case noteMsg:
		var expire tea.Cmd
		m, expire = m.showNote(msg)
		return m, tea.Batch(m.inbox.listen(), expire)

	case noteExpiredMsg:
		if msg.seq == m.noteSeq {
			m.note = nil
		}
		return m, nil

	case confirmMsg:
		m.confirm = &msg
		return m, m.inbox.listen()

	case opDoneMsg:
		if msg.err != nil {
			m.logger.Debug("board operation finished with error", "op", msg.op, "error", msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.updateConfirm(msg)
		}
		if _, held := m.ctrl.Dragged(); held {
			return m.updateDragging(msg)
		}
		return m.updateBrowsing(msg)
	}
	return m, nil
}

func (m boardModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	answer := func(ok bool) (tea.Model, tea.Cmd) {
		m.confirm.reply <- ok
		m.confirm = nil
		return m, nil
	}
	switch msg.String() {
	case "y", "Y", "enter":
		return answer(true)
	case "n", "N", "esc", "q":
		return answer(false)
	case "ctrl+c":
		m.confirm.reply <- false
		m.confirm = nil
		m.close()
		return m, tea.Quit
	}
	return m, nil
}

// updateDragging moves the drop cursor across columns while a card is held.
func (m boardModel) updateDragging(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Left):
		m.sel.Col = max(m.sel.Col-1, 0)
	case key.Matches(msg, m.keys.Right):
		m.sel.Col = min(m.sel.Col+1, len(m.cols)-1)
	case key.Matches(msg, m.keys.Cancel):
		wo, _ := m.ctrl.Dragged()
		m.ctrl.EndDrag()
		m.sel = m.cols.clamp(boardSelection{ID: wo.ID})
	case key.Matches(msg, m.keys.Drop):
		// The gesture ends here; keys pressed while the request runs browse.
		wo, ok := m.ctrl.Release()
		if !ok {
			return m, nil
		}
		c := m.cols[m.sel.Col]
		if !c.dropTarget() {
			// Not a lane: no request.
			m.sel = m.cols.clamp(boardSelection{ID: wo.ID})
			return m, nil
		}
		m.sel.ID = wo.ID
		ctrl, crewID := m.ctrl, c.crew.ID
		return m, m.run("drop", func(ctx context.Context) error {
			_, err := ctrl.DropOnto(ctx, wo, crewID)
			return err
		})
	case key.Matches(msg, m.keys.Quit):
		m.ctrl.EndDrag()
		m.close()
		return m, tea.Quit
	}
	return m, nil
}

func (m boardModel) updateBrowsing(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Left):
		m.sel = m.cols.clamp(boardSelection{Col: m.sel.Col - 1, Row: m.sel.Row})
	case key.Matches(msg, m.keys.Right):
		m.sel = m.cols.clamp(boardSelection{Col: m.sel.Col + 1, Row: m.sel.Row})
	case key.Matches(msg, m.keys.Up):
		m.sel = m.cols.clamp(boardSelection{Col: m.sel.Col, Row: m.sel.Row - 1})
	case key.Matches(msg, m.keys.Down):
		m.sel = m.cols.clamp(boardSelection{Col: m.sel.Col, Row: m.sel.Row + 1})
	case key.Matches(msg, m.keys.Pick):
		wo, ok := m.cols.selected(m.sel)
		if !ok {
			return m, nil
		}
		if wo.Status == model.StatusCompleted {
			return m.flash(noteWarn, "Completed work orders cannot be reassigned.")
		}
		m.ctrl.BeginDrag(wo)
	case key.Matches(msg, m.keys.Unassign):
		wo, ok := m.cols.selected(m.sel)
		if !ok || m.cols[m.sel.Col].kind != columnLane {
			return m, nil
		}
		ctrl := m.ctrl
		return m, m.run("unassign", func(ctx context.Context) error {
			return ctrl.UnassignCrew(ctx, wo.ID)
		})
	case key.Matches(msg, m.keys.Optimize):
		ctrl := m.ctrl
		return m, m.run("optimize", func(ctx context.Context) error {
			_, err := ctrl.Optimize(ctx)
			return err
		})
	case key.Matches(msg, m.keys.Prev), key.Matches(msg, m.keys.Next):
		n := 1
		if key.Matches(msg, m.keys.Prev) {
			n = -1
		}
		date, view := m.board.Params()
		next, err := model.ShiftDate(date, view, n)
		if err != nil {
			return m.flash(noteAlert, err.Error())
		}
		return m, m.setParams(next, "")
	case key.Matches(msg, m.keys.Today):
		return m, m.setParams(model.Today(m.now()), "")
	case key.Matches(msg, m.keys.View):
		_, view := m.board.Params()
		return m, m.setParams("", view.Next())
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run("refresh", m.board.Refresh)
	case key.Matches(msg, m.keys.Detail), key.Matches(msg, m.keys.Drop):
		m.showDetail = !m.showDetail
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

func (m boardModel) setParams(date string, view model.View) tea.Cmd {
	b := m.board
	return m.run("params", func(ctx context.Context) error {
		return b.SetParams(ctx, date, view)
	})
}

func (m boardModel) flash(level noteLevel, text string) (tea.Model, tea.Cmd) {
	return m.showNote(noteMsg{level: level, text: text})
}

// showNote replaces the footer note; it expires after noteTTL unless a newer
// one replaced it first.
func (m boardModel) showNote(n noteMsg) (boardModel, tea.Cmd) {
	m.noteSeq++
	m.note = &n
	seq := m.noteSeq
	return m, tea.Tick(noteTTL, func(time.Time) tea.Msg { return noteExpiredMsg{seq: seq} })
}
