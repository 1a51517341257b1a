// Package gesture turns a press / move / release sequence of pointer samples
// into a single classified gesture. It knows nothing about what the gesture
// is used for.
package gesture

import (
	"math"
	"time"
)

// Sample is one pointer position.
type Sample struct {
	X, Y float64
	Time time.Time
}

// Direction of a horizontal swipe, named by navigation intent.
type Direction int

const (
	Previous Direction = iota
	Next
)

func (d Direction) String() string {
	if d == Next {
		return "next"
	}
	return "previous"
}

// Kind tags a Result.
type Kind int

const (
	Cancel Kind = iota
	Tap
	Swipe
)

func (k Kind) String() string {
	switch k {
	case Tap:
		return "tap"
	case Swipe:
		return "swipe"
	default:
		return "cancel"
	}
}

// Result is produced once per completed interaction. Direction is only
// meaningful for Swipe.
type Result struct {
	Kind      Kind
	Direction Direction
}

func (r Result) String() string {
	if r.Kind == Swipe {
		return "swipe(" + r.Direction.String() + ")"
	}
	return r.Kind.String()
}

// Thresholds are in the same units as Sample coordinates.
type Thresholds struct {
	Move          float64       // displacement after which the gesture counts as moved
	DirectionLock float64       // horizontal displacement that claims the gesture
	MinSwipe      float64       // minimum horizontal travel for a swipe
	MaxTap        time.Duration // taps must end before this
}

// DefaultThresholds returns the stock values: 10, 20 and 50 units, 300ms.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Move:          10,
		DirectionLock: 20,
		MinSwipe:      50,
		MaxTap:        300 * time.Millisecond,
	}
}

// Tracker follows at most one gesture at a time. The zero value is not
// usable; call NewTracker.
type Tracker struct {
	th Thresholds

	active   bool
	origin   Sample
	last     Sample
	hasMoved bool
	locked   bool
}

// NewTracker returns a tracker using th. Zero fields fall back to defaults.
func NewTracker(th Thresholds) *Tracker {
	def := DefaultThresholds()
	if th.Move <= 0 {
		th.Move = def.Move
	}
	if th.DirectionLock <= 0 {
		th.DirectionLock = def.DirectionLock
	}
	if th.MinSwipe <= 0 {
		th.MinSwipe = def.MinSwipe
	}
	if th.MaxTap <= 0 {
		th.MaxTap = def.MaxTap
	}
	return &Tracker{th: th}
}

// Thresholds returns the effective thresholds.
func (t *Tracker) Thresholds() Thresholds { return t.th }

// Active reports whether a gesture is in progress.
func (t *Tracker) Active() bool { return t.active }

// Locked reports whether the current gesture has been claimed as horizontal.
func (t *Tracker) Locked() bool { return t.active && t.locked }

// Start begins a gesture. A gesture already in progress is discarded.
func (t *Tracker) Start(s Sample) {
	t.active = true
	t.origin = s
	t.last = s
	t.hasMoved = false
	t.locked = false
}

// Move records s as the latest position. It returns true while the gesture
// is claimed for horizontal navigation; callers should suppress their own
// scrolling for the rest of the gesture once that happens.
func (t *Tracker) Move(s Sample) bool {
	if !t.active {
		return false
	}
	t.last = s
	dx := math.Abs(s.X - t.origin.X)
	dy := math.Abs(s.Y - t.origin.Y)
	if dx > t.th.Move || dy > t.th.Move {
		t.hasMoved = true
	}
	if dx > dy && dx > t.th.DirectionLock {
		t.locked = true
	}
	return t.locked
}

// End finishes the gesture at s and classifies it. ok is false when no
// gesture was in progress.
func (t *Tracker) End(s Sample, now time.Time) (res Result, ok bool) {
	if !t.active {
		return Result{}, false
	}
	t.last = s
	dx := t.last.X - t.origin.X
	dy := t.last.Y - t.origin.Y
	duration := now.Sub(t.origin.Time)
	hasMoved := t.hasMoved
	t.reset()

	adx, ady := math.Abs(dx), math.Abs(dy)
	switch {
	case !hasMoved && duration < t.th.MaxTap && adx < t.th.Move && ady < t.th.Move:
		return Result{Kind: Tap}, true
	case adx > ady && adx >= t.th.MinSwipe:
		// finger moving right pulls the previous item in from the left
		if dx > 0 {
			return Result{Kind: Swipe, Direction: Previous}, true
		}
		return Result{Kind: Swipe, Direction: Next}, true
	default:
		return Result{Kind: Cancel}, true
	}
}

// Cancel drops the gesture in progress without producing a result.
func (t *Tracker) Cancel() {
	t.reset()
}

func (t *Tracker) reset() {
	t.active = false
	t.origin = Sample{}
	t.last = Sample{}
	t.hasMoved = false
	t.locked = false
}
