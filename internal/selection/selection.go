// Package selection tracks multi-select mode over the gallery grid and runs
// batch downloads and deletes for the selected items.
package selection

import (
	"context"
	"sort"

	"image-syncer/internal/batch"
	"image-syncer/internal/media"
)

// Deleter removes one item on the server.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Downloader saves one item locally.
type Downloader interface {
	Download(ctx context.Context, id string) error
}

// Confirmer asks the user to approve a destructive batch.
type Confirmer interface {
	Confirm(ctx context.Context, count int) (bool, error)
}

// DeleterFunc adapts a function to Deleter.
type DeleterFunc func(ctx context.Context, id string) error

func (f DeleterFunc) Delete(ctx context.Context, id string) error { return f(ctx, id) }

// DownloaderFunc adapts a function to Downloader.
type DownloaderFunc func(ctx context.Context, id string) error

func (f DownloaderFunc) Download(ctx context.Context, id string) error { return f(ctx, id) }

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, count int) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, count int) (bool, error) { return f(ctx, count) }

// State is a copy of the selection state.
type State struct {
	Active   bool
	Selected []string
}

// Outcome aggregates a batch once every item has settled.
type Outcome struct {
	Succeeded int
	Failed    int
	Failures  []batch.Failure
	Deleted   []string
}

func outcomeOf(sum batch.Summary) Outcome {
	return Outcome{
		Succeeded: len(sum.Succeeded),
		Failed:    len(sum.Failures),
		Failures:  sum.Failures,
	}
}

// Coordinator is not safe for concurrent use. Batch methods block until the
// batch settles; hosts with an event loop run them off-loop and feed the
// result back through Apply* methods.
type Coordinator struct {
	active   bool
	selected map[string]struct{}
	known    map[string]struct{}

	// Concurrency caps in-flight requests per batch; 0 means one per item.
	Concurrency int
	// Progress, when set, receives per-item updates during a batch.
	Progress chan<- batch.Progress
}

// New returns an inactive coordinator.
func New() *Coordinator {
	return &Coordinator{
		selected: map[string]struct{}{},
		known:    map[string]struct{}{},
	}
}

// State returns the mode flag and the selected ids in sorted order.
func (c *Coordinator) State() State {
	return State{Active: c.active, Selected: c.Selected()}
}

// Active reports whether selection mode is on.
func (c *Coordinator) Active() bool { return c.active }

// Count returns the number of selected items.
func (c *Coordinator) Count() int { return len(c.selected) }

// IsSelected reports whether id is selected.
func (c *Coordinator) IsSelected(id string) bool {
	_, ok := c.selected[id]
	return ok
}

// Selected returns the selected ids in sorted order.
func (c *Coordinator) Selected() []string {
	out := make([]string, 0, len(c.selected))
	for id := range c.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SetItems replaces the snapshot and drops selected ids that left it.
func (c *Coordinator) SetItems(items media.Snapshot) {
	c.known = items.IDs()
	for id := range c.selected {
		if _, ok := c.known[id]; !ok {
			delete(c.selected, id)
		}
	}
}

// ToggleMode flips selection mode. Leaving the mode discards the selection.
func (c *Coordinator) ToggleMode() {
	c.active = !c.active
	if !c.active {
		c.clear()
	}
}

// ToggleItem selects or deselects id. Ignored outside selection mode and for
// ids missing from the snapshot.
func (c *Coordinator) ToggleItem(id string) {
	if !c.active {
		return
	}
	if _, ok := c.known[id]; !ok {
		return
	}
	if _, ok := c.selected[id]; ok {
		delete(c.selected, id)
		return
	}
	c.selected[id] = struct{}{}
}

// BatchDownload downloads every selected item concurrently. Individual
// failures are collected, never retried, and the selection is kept.
func (c *Coordinator) BatchDownload(ctx context.Context, d Downloader) Outcome {
	return RunDownload(ctx, c.Selected(), c.Concurrency, c.Progress, d)
}

// RunDownload is BatchDownload over an explicit id list, usable off the
// control loop.
func RunDownload(ctx context.Context, ids []string, concurrency int, progress chan<- batch.Progress, d Downloader) Outcome {
	return outcomeOf(batch.Run(ctx, ids, concurrency, progress, d.Download))
}

// BatchDelete asks for confirmation and then deletes every selected item
// concurrently. Once all deletes have settled the selection is cleared and
// the mode is left, whether or not some deletes failed. ok is false when
// nothing was attempted.
func (c *Coordinator) BatchDelete(ctx context.Context, conf Confirmer, d Deleter) (out Outcome, ok bool, err error) {
	ids := c.Selected()
	if len(ids) == 0 {
		return Outcome{}, false, nil
	}
	approved, err := conf.Confirm(ctx, len(ids))
	if err != nil || !approved {
		return Outcome{}, false, err
	}
	out = RunDelete(ctx, ids, c.Concurrency, c.Progress, d)
	c.ApplyDelete()
	return out, true, nil
}

// RunDelete is the settle-all half of BatchDelete, usable off the control
// loop. Call ApplyDelete on the loop once it returns.
func RunDelete(ctx context.Context, ids []string, concurrency int, progress chan<- batch.Progress, d Deleter) Outcome {
	sum := batch.Run(ctx, ids, concurrency, progress, d.Delete)
	out := outcomeOf(sum)
	out.Deleted = sum.Succeeded
	return out
}

// ApplyDelete clears the selection and leaves selection mode.
func (c *Coordinator) ApplyDelete() {
	c.active = false
	c.clear()
}

func (c *Coordinator) clear() {
	for id := range c.selected {
		delete(c.selected, id)
	}
}
