package tui

import (
	"context"
	"io"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"

	"image-syncer/internal/media"
)

type loadState int

const (
	loadIdle loadState = iota
	loadPending
	loadDone
	loadFailed
)

// content is what the viewer surface currently shows.
type content struct {
	item    media.Item
	state   loadState
	sniffed string
	bytes   int64
	err     error
}

type contentLoadedMsg struct {
	gen     uint64
	id      string
	sniffed string
	bytes   int64
	err     error
}

// contentBinder implements viewer.Binder for the terminal. Binding queues a
// fetch command that the model drains after each viewer call; a newer bind
// or a release cancels the fetch in flight and invalidates its result.
type contentBinder struct {
	fetch  func(ctx context.Context, id string) (io.ReadCloser, error)
	gen    uint64
	cancel context.CancelFunc
	cur    content
	queued []tea.Cmd
}

func (b *contentBinder) Bind(item media.Item) {
	b.stop()
	b.gen++
	b.cur = content{item: item, state: loadPending}
	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.queued = append(b.queued, loadContent(ctx, b.fetch, b.gen, item))
}

func (b *contentBinder) Release() {
	b.stop()
	b.gen++
	b.cur = content{}
}

func (b *contentBinder) stop() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
}

// drain hands queued fetches to the runtime.
func (b *contentBinder) drain() tea.Cmd {
	if len(b.queued) == 0 {
		return nil
	}
	cmds := b.queued
	b.queued = nil
	return tea.Batch(cmds...)
}

// apply records a finished load. It reports false for loads that were
// superseded.
func (b *contentBinder) apply(msg contentLoadedMsg) bool {
	if msg.gen != b.gen || msg.id != b.cur.item.ID {
		return false
	}
	b.stop()
	b.cur.sniffed = msg.sniffed
	b.cur.bytes = msg.bytes
	b.cur.err = msg.err
	if msg.err != nil {
		b.cur.state = loadFailed
	} else {
		b.cur.state = loadDone
	}
	return true
}

// loadContent streams the item. Videos only read enough to identify the
// stream, like a player preloading metadata.
func loadContent(ctx context.Context, fetch func(context.Context, string) (io.ReadCloser, error), gen uint64, item media.Item) tea.Cmd {
	return func() tea.Msg {
		msg := contentLoadedMsg{gen: gen, id: item.ID}
		rc, err := fetch(ctx, item.ID)
		if err != nil {
			msg.err = err
			return msg
		}
		defer rc.Close()

		head := make([]byte, 512)
		n, err := io.ReadFull(rc, head)
		if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
			msg.err = err
			return msg
		}
		msg.sniffed = http.DetectContentType(head[:n])
		msg.bytes = int64(n)
		if item.IsVideo() || n < len(head) {
			return msg
		}
		rest, err := io.Copy(io.Discard, rc)
		msg.bytes += rest
		msg.err = err
		return msg
	}
}
