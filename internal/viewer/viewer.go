// Package viewer holds the full-screen media viewer state machine.
//
// The machine owns which item is shown, whether the overlay controls
// ("chrome") are visible and the open / close / crossfade lifecycle. It never
// sleeps: a crossfade is handed back to the caller as a Transition, and the
// caller reports its completion with the transition's token once the delay has
// elapsed. Completions carrying a superseded token are ignored.
package viewer

import (
	"time"

	"image-syncer/internal/gesture"
	"image-syncer/internal/media"
)

// DefaultCrossfade is how long content stays hidden while switching items.
const DefaultCrossfade = 150 * time.Millisecond

// Phase of the viewer lifecycle.
type Phase int

const (
	Closed Phase = iota
	Opening
	Open
	Transitioning
	Closing
)

func (p Phase) String() string {
	switch p {
	case Opening:
		return "opening"
	case Open:
		return "open"
	case Transitioning:
		return "transitioning"
	case Closing:
		return "closing"
	default:
		return "closed"
	}
}

// State is a copy of the machine's state. Index is valid for the current
// snapshot whenever Phase is not Closed.
type State struct {
	Phase         Phase
	Index         int
	ChromeVisible bool
}

// Visible reports whether the viewer covers the grid.
func (s State) Visible() bool { return s.Phase != Closed }

// Binder attaches media content to the display surface. Bind is expected to
// start loading asynchronously and return immediately; load failures are the
// renderer's business and do not move the machine.
type Binder interface {
	Bind(item media.Item)
	Release()
}

// Transition is a pending crossfade. The caller must call Complete(Token)
// after Delay.
type Transition struct {
	Token  uint64
	Target int
	Delay  time.Duration
}

// Key is a keyboard input the viewer understands.
type Key int

const (
	KeyNone Key = iota
	KeyEscape
	KeyPrevious
	KeyNext
	KeyDelete
	KeyShare
)

// Action is work the viewer asks its host to perform on the current item.
type Action int

const (
	ActionNone Action = iota
	ActionDeleteCurrent
	ActionShareCurrent
)

// Option configures a Machine.
type Option func(*Machine)

// WithCrossfade overrides the crossfade interval.
func WithCrossfade(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.crossfade = d
		}
	}
}

// WithObserver registers fn as in Subscribe.
func WithObserver(fn func(State)) Option {
	return func(m *Machine) { m.Subscribe(fn) }
}

// Machine is not safe for concurrent use; drive it from one control loop.
type Machine struct {
	binder    Binder
	crossfade time.Duration
	items     media.Snapshot
	observers []func(State)

	st      State
	seq     uint64
	pending uint64 // token of the crossfade in flight, 0 when none
}

// New returns a closed viewer bound to binder.
func New(binder Binder, opts ...Option) *Machine {
	m := &Machine{
		binder:    binder,
		crossfade: DefaultCrossfade,
		st:        State{Phase: Closed, ChromeVisible: true},
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Subscribe registers fn to be called after every state change, including
// intermediate phases. It is the hook for renderers and diagnostics.
func (m *Machine) Subscribe(fn func(State)) {
	if fn != nil {
		m.observers = append(m.observers, fn)
	}
}

// State returns a copy of the current state.
func (m *Machine) State() State { return m.st }

// Items returns the snapshot the viewer navigates.
func (m *Machine) Items() media.Snapshot { return m.items }

// Current returns the item at the current index while the viewer is visible.
func (m *Machine) Current() (media.Item, bool) {
	if m.st.Phase == Closed || !m.items.Valid(m.st.Index) {
		return media.Item{}, false
	}
	return m.items[m.st.Index], true
}

// SetItems replaces the snapshot. An open viewer follows its item to the
// new position and closes when the item is gone.
func (m *Machine) SetItems(items media.Snapshot) {
	var currentID string
	if cur, ok := m.Current(); ok {
		currentID = cur.ID
	}
	m.items = items
	if m.st.Phase == Closed {
		return
	}
	idx := items.Find(currentID)
	if idx < 0 {
		m.Close()
		return
	}
	if idx != m.st.Index {
		m.st.Index = idx
		m.notify()
	}
}

// Open shows the item at index. From Closed the content is bound at once.
// While open with a different index a crossfade starts and is returned; a
// crossfade still in flight is superseded.
func (m *Machine) Open(index int) *Transition {
	if !m.items.Valid(index) {
		return nil
	}
	switch m.st.Phase {
	case Closed:
		m.st = State{Phase: Opening, Index: index, ChromeVisible: true}
		m.notify()
		m.binder.Bind(m.items[index])
		m.st.Phase = Open
		m.notify()
		return nil
	case Open, Transitioning:
		if index == m.st.Index {
			// same item: only the metadata display refreshes
			m.notify()
			return nil
		}
		m.seq++
		m.pending = m.seq
		m.st.Phase = Transitioning
		m.st.Index = index
		m.st.ChromeVisible = true
		m.notify()
		return &Transition{Token: m.pending, Target: index, Delay: m.crossfade}
	default:
		return nil
	}
}

// Complete finishes the crossfade identified by token. It returns false for
// stale or unknown tokens.
func (m *Machine) Complete(token uint64) bool {
	if token == 0 || token != m.pending || m.st.Phase != Transitioning {
		return false
	}
	m.pending = 0
	m.binder.Bind(m.items[m.st.Index])
	m.st.Phase = Open
	m.notify()
	return true
}

// Close hides the viewer and releases its content. Closing a closed viewer
// does nothing.
func (m *Machine) Close() {
	if m.st.Phase != Open && m.st.Phase != Transitioning {
		return
	}
	m.pending = 0
	m.st.Phase = Closing
	m.notify()
	m.binder.Release()
	m.st.Phase = Closed
	m.st.ChromeVisible = true
	m.notify()
}

// Navigate moves one item in dir. Moving past either end does nothing.
func (m *Machine) Navigate(dir gesture.Direction) *Transition {
	if m.st.Phase != Open {
		return nil
	}
	next := m.st.Index - 1
	if dir == gesture.Next {
		next = m.st.Index + 1
	}
	if !m.items.Valid(next) {
		return nil
	}
	return m.Open(next)
}

// ToggleChrome flips overlay visibility. Ignored unless Open.
func (m *Machine) ToggleChrome() {
	if m.st.Phase != Open {
		return
	}
	m.st.ChromeVisible = !m.st.ChromeVisible
	m.notify()
}

// HandleGesture dispatches a classified gesture.
func (m *Machine) HandleGesture(res gesture.Result) *Transition {
	switch res.Kind {
	case gesture.Tap:
		m.ToggleChrome()
	case gesture.Swipe:
		return m.Navigate(res.Direction)
	}
	return nil
}

// HandleKey dispatches a key while the viewer is visible. Delete and share
// are returned as actions for the host; on a successful delete the host
// is expected to call Close.
func (m *Machine) HandleKey(k Key) (Action, *Transition) {
	if m.st.Phase != Open && m.st.Phase != Transitioning {
		return ActionNone, nil
	}
	switch k {
	case KeyEscape:
		m.Close()
	case KeyPrevious:
		return ActionNone, m.Navigate(gesture.Previous)
	case KeyNext:
		return ActionNone, m.Navigate(gesture.Next)
	case KeyDelete:
		return ActionDeleteCurrent, nil
	case KeyShare:
		return ActionShareCurrent, nil
	}
	return ActionNone, nil
}

func (m *Machine) notify() {
	for _, fn := range m.observers {
		fn(m.st)
	}
}
