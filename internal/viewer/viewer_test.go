package viewer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-syncer/internal/gesture"
	"image-syncer/internal/media"
)

type fakeBinder struct {
	bound    []string
	released int
}

func (b *fakeBinder) Bind(it media.Item) { b.bound = append(b.bound, it.ID) }
func (b *fakeBinder) Release()           { b.released++ }

func snapshot(n int) media.Snapshot {
	out := make(media.Snapshot, n)
	for i := range out {
		out[i] = media.Item{ID: fmt.Sprintf("m%d", i), Name: fmt.Sprintf("IMG_%04d.JPG", i), Kind: media.KindImage}
	}
	return out
}

func newMachine(n int) (*Machine, *fakeBinder, *[]Phase) {
	b := &fakeBinder{}
	var phases []Phase
	m := New(b, WithObserver(func(s State) { phases = append(phases, s.Phase) }))
	m.SetItems(snapshot(n))
	return m, b, &phases
}

func TestOpen_FromClosedPassesThroughOpening(t *testing.T) {
	m, b, phases := newMachine(3)
	tr := m.Open(1)
	assert.Nil(t, tr)
	assert.Equal(t, []Phase{Opening, Open}, *phases)
	assert.Equal(t, State{Phase: Open, Index: 1, ChromeVisible: true}, m.State())
	assert.Equal(t, []string{"m1"}, b.bound)
}

func TestOpen_OutOfRangeIgnored(t *testing.T) {
	m, b, _ := newMachine(2)
	assert.Nil(t, m.Open(5))
	assert.Nil(t, m.Open(-1))
	assert.Equal(t, Closed, m.State().Phase)
	assert.Empty(t, b.bound)
}

func TestClose_ReturnsToClosedWithChromeReset(t *testing.T) {
	m, b, phases := newMachine(3)
	m.Open(0)
	m.ToggleChrome()
	require.False(t, m.State().ChromeVisible)
	*phases = nil

	m.Close()
	assert.Equal(t, []Phase{Closing, Closed}, *phases)
	assert.Equal(t, Closed, m.State().Phase)
	assert.True(t, m.State().ChromeVisible)
	assert.Equal(t, 1, b.released)

	m.Close()
	assert.Equal(t, 1, b.released, "closing twice is a no-op")
}

func TestNavigate_CrossfadeThenRebind(t *testing.T) {
	m, b, _ := newMachine(3)
	m.Open(0)
	tr := m.Navigate(gesture.Next)
	require.NotNil(t, tr)
	assert.Equal(t, 1, tr.Target)
	assert.Equal(t, DefaultCrossfade, tr.Delay)
	assert.Equal(t, Transitioning, m.State().Phase)
	assert.Equal(t, []string{"m0"}, b.bound, "content is rebound only after the crossfade")

	assert.True(t, m.Complete(tr.Token))
	assert.Equal(t, Open, m.State().Phase)
	assert.Equal(t, 1, m.State().Index)
	assert.Equal(t, []string{"m0", "m1"}, b.bound)
}

func TestNavigate_BoundariesAreNoOps(t *testing.T) {
	m, _, _ := newMachine(3)
	m.Open(0)
	assert.Nil(t, m.Navigate(gesture.Previous))
	assert.Equal(t, State{Phase: Open, Index: 0, ChromeVisible: true}, m.State())

	m.Close()
	m.Open(2)
	assert.Nil(t, m.Navigate(gesture.Next))
	assert.Equal(t, Open, m.State().Phase)
	assert.Equal(t, 2, m.State().Index)
}

func TestNavigate_IgnoredWhileTransitioning(t *testing.T) {
	m, _, _ := newMachine(5)
	m.Open(1)
	tr := m.Navigate(gesture.Next)
	require.NotNil(t, tr)
	assert.Nil(t, m.Navigate(gesture.Next))
	assert.Equal(t, 2, m.State().Index)
}

func TestOpen_SupersedesPendingTransition(t *testing.T) {
	m, b, _ := newMachine(5)
	m.Open(0)
	first := m.Open(2)
	second := m.Open(4)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Token, second.Token)

	assert.False(t, m.Complete(first.Token), "stale completion must not rebind")
	assert.Equal(t, Transitioning, m.State().Phase)
	assert.True(t, m.Complete(second.Token))
	assert.Equal(t, []string{"m0", "m4"}, b.bound)
	assert.False(t, m.Complete(second.Token), "tokens complete once")
}

func TestComplete_AfterCloseIgnored(t *testing.T) {
	m, b, _ := newMachine(3)
	m.Open(0)
	tr := m.Navigate(gesture.Next)
	m.Close()
	assert.False(t, m.Complete(tr.Token))
	assert.Equal(t, Closed, m.State().Phase)
	assert.Equal(t, []string{"m0"}, b.bound)
}

func TestOpen_SameIndexRefreshesOnly(t *testing.T) {
	m, b, phases := newMachine(3)
	m.Open(1)
	*phases = nil
	assert.Nil(t, m.Open(1))
	assert.Equal(t, []Phase{Open}, *phases)
	assert.Equal(t, []string{"m1"}, b.bound)
}

func TestToggleChrome_OnlyWhenOpen(t *testing.T) {
	m, _, _ := newMachine(3)
	m.ToggleChrome()
	assert.True(t, m.State().ChromeVisible)

	m.Open(0)
	m.Navigate(gesture.Next)
	m.ToggleChrome()
	assert.True(t, m.State().ChromeVisible, "no effect during a crossfade")
}

func TestHandleGesture_TapTogglesChrome(t *testing.T) {
	m, _, _ := newMachine(3)
	m.Open(0)

	tr := gesture.NewTracker(gesture.DefaultThresholds())
	base := time.Now()
	tr.Start(gesture.Sample{X: 100, Y: 100, Time: base})
	res, ok := tr.End(gesture.Sample{X: 104, Y: 98}, base.Add(120*time.Millisecond))
	require.True(t, ok)

	assert.Nil(t, m.HandleGesture(res))
	assert.False(t, m.State().ChromeVisible)
}

func TestHandleGesture_SwipeNavigates(t *testing.T) {
	m, _, _ := newMachine(3)
	m.Open(0)

	tr := gesture.NewTracker(gesture.DefaultThresholds())
	base := time.Now()
	tr.Start(gesture.Sample{X: 300, Y: 100, Time: base})
	tr.Move(gesture.Sample{X: 200, Y: 105, Time: base.Add(50 * time.Millisecond)})
	res, _ := tr.End(gesture.Sample{X: 180, Y: 108}, base.Add(90*time.Millisecond))

	trn := m.HandleGesture(res)
	require.NotNil(t, trn)
	m.Complete(trn.Token)
	assert.Equal(t, 1, m.State().Index)
}

func TestHandleGesture_CancelDropped(t *testing.T) {
	m, _, phases := newMachine(3)
	m.Open(0)
	*phases = nil
	assert.Nil(t, m.HandleGesture(gesture.Result{Kind: gesture.Cancel}))
	assert.Empty(t, *phases)
}

func TestHandleKey(t *testing.T) {
	m, _, _ := newMachine(3)

	act, tr := m.HandleKey(KeyEscape)
	assert.Equal(t, ActionNone, act)
	assert.Nil(t, tr)

	m.Open(1)
	_, tr = m.HandleKey(KeyPrevious)
	require.NotNil(t, tr)
	m.Complete(tr.Token)
	assert.Equal(t, 0, m.State().Index)

	_, tr = m.HandleKey(KeyNext)
	require.NotNil(t, tr)
	act, _ = m.HandleKey(KeyDelete)
	assert.Equal(t, ActionDeleteCurrent, act, "delete is accepted during a crossfade")
	act, _ = m.HandleKey(KeyShare)
	assert.Equal(t, ActionShareCurrent, act)

	m.HandleKey(KeyEscape)
	assert.Equal(t, Closed, m.State().Phase)
}

func TestSetItems_FollowsOrClosesCurrent(t *testing.T) {
	m, _, _ := newMachine(4)
	m.Open(2)

	items := snapshot(4)
	m.SetItems(media.Snapshot{items[0], items[2], items[3]})
	assert.Equal(t, Open, m.State().Phase)
	assert.Equal(t, 1, m.State().Index)

	m.SetItems(media.Snapshot{items[0]})
	assert.Equal(t, Closed, m.State().Phase)
}

func TestWithCrossfade(t *testing.T) {
	m := New(&fakeBinder{}, WithCrossfade(40*time.Millisecond))
	m.SetItems(snapshot(2))
	m.Open(0)
	tr := m.Open(1)
	require.NotNil(t, tr)
	assert.Equal(t, 40*time.Millisecond, tr.Delay)
}
