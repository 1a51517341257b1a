package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sahilm/fuzzy"
	"github.com/sirupsen/logrus"

	"image-syncer/internal/batch"
	"image-syncer/internal/download"
	"image-syncer/internal/gesture"
	"image-syncer/internal/logging"
	"image-syncer/internal/media"
	"image-syncer/internal/selection"
	"image-syncer/internal/viewer"
	"image-syncer/pkg/utils"
)

// Backend is what the UI needs from the gallery server.
type Backend interface {
	media.Provider
	MediaURL(id string) string
}

// Options tune the UI. Zero values fall back to defaults.
type Options struct {
	Thresholds  gesture.Thresholds
	CellWidth   int // gesture units per terminal column
	CellHeight  int // gesture units per terminal row
	Crossfade   time.Duration
	Toast       time.Duration
	Concurrency int
	DownloadDir string
	DryRun      bool
	Log         *logrus.Entry
	Clipboard   func(string) error
	Now         func() time.Time
}

type status int

const (
	statusLoading status = iota
	statusReady
	statusConfirm
	statusWorking
)

type confirmKind int

const (
	confirmBatchDelete confirmKind = iota
	confirmCurrentDelete
)

type workKind int

const (
	workDownload workKind = iota
	workDelete
)

const gridTop = 3 // header lines above the first grid row

type toast struct {
	text  string
	isErr bool
	token uint64
}

// Model is the bubbletea model for the gallery: a scrolling grid of media
// with a full-screen viewer on top.
type Model struct {
	backend Backend
	opts    Options
	log     *logrus.Entry
	keys    keyMap
	help    help.Model
	sp      spinner.Model

	st    status
	items media.Snapshot // as listed by the server
	view  media.Snapshot // items after the filter, in display order

	cursor       int
	scrollOffset int
	savedScroll  int
	pressRow     int
	filterText   string
	filtering    bool
	showHelp     bool

	sel     *selection.Coordinator
	viewer  *viewer.Machine
	binder  *contentBinder
	tracker *gesture.Tracker

	confirm   confirmKind
	confirmID string

	workCh        chan tea.Msg
	workCancel    context.CancelFunc
	workKind      workKind
	workTotal     int
	workCompleted int
	workLast      string

	toast    toast
	toastSeq uint64

	termW int
	termH int
}

// New builds the model. Call Init (or Run) to load the gallery.
func New(b Backend, opts Options) *Model {
	if opts.CellWidth <= 0 {
		opts.CellWidth = 8
	}
	if opts.CellHeight <= 0 {
		opts.CellHeight = 16
	}
	if opts.Toast <= 0 {
		opts.Toast = 3 * time.Second
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "."
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	m := &Model{
		backend:  b,
		opts:     opts,
		log:      logging.Component(opts.Log, "tui"),
		keys:     newKeyMap(),
		help:     help.New(),
		sp:       sp,
		st:       statusLoading,
		pressRow: -1,
		sel:      selection.New(),
		binder:   &contentBinder{fetch: b.Fetch},
		tracker:  gesture.NewTracker(opts.Thresholds),
	}
	m.sel.Concurrency = opts.Concurrency
	m.viewer = viewer.New(m.binder,
		viewer.WithCrossfade(opts.Crossfade),
		viewer.WithObserver(m.onViewerState),
	)
	return m
}

// Run starts the full-screen program with mouse reporting.
func Run(b Backend, opts Options) error {
	p := tea.NewProgram(New(b, opts), tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithReportFocus())
	_, err := p.Run()
	return err
}

// messages
type listMsg struct {
	items media.Snapshot
	err   error
}

type crossfadeMsg struct{ token uint64 }

type toastExpiredMsg struct{ token uint64 }

type workProgressMsg struct{ p batch.Progress }

type workDoneMsg struct {
	kind    workKind
	outcome selection.Outcome
}

type deleteCurrentMsg struct {
	id  string
	err error
}

type scanMsg struct {
	res media.ScanResult
	err error
}

type shareMsg struct {
	url string
	err error
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, m.refresh())
}

func (m *Model) refresh() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		items, err := b.List(context.Background())
		return listMsg{items: items, err: err}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.termW, m.termH = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.adjustScroll()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case listMsg:
		if m.st == statusLoading {
			m.st = statusReady
		}
		if msg.err != nil {
			return m, m.fail("could not load media", msg.err)
		}
		m.setItems(msg.items)
		return m, m.binder.drain()

	case crossfadeMsg:
		if !m.viewer.Complete(msg.token) {
			m.log.WithField("token", msg.token).Debug("stale crossfade ignored")
		}
		return m, m.binder.drain()

	case contentLoadedMsg:
		if m.binder.apply(msg) && msg.err != nil {
			return m, m.fail("could not load "+m.binder.cur.item.Name, msg.err)
		}
		return m, nil

	case toastExpiredMsg:
		if msg.token == m.toast.token {
			m.toast = toast{}
		}
		return m, nil

	case workProgressMsg:
		m.workCompleted = msg.p.Completed
		m.workLast = msg.p.ID
		return m, m.waitWork()

	case workDoneMsg:
		return m, m.finishWork(msg)

	case deleteCurrentMsg:
		if msg.err != nil {
			return m, m.fail("delete failed", msg.err)
		}
		m.log.WithField("id", msg.id).Info("deleted from viewer")
		m.viewer.Close()
		return m, tea.Batch(m.notify("deleted", false), m.refresh())

	case scanMsg:
		if msg.err != nil {
			return m, m.fail("scan failed", msg.err)
		}
		cmds := []tea.Cmd{m.notify(fmt.Sprintf("scan complete: %d new files", msg.res.Added), false)}
		if msg.res.Added > 0 {
			cmds = append(cmds, m.refresh())
		}
		return m, tea.Batch(cmds...)

	case shareMsg:
		if msg.err != nil {
			return m, m.fail("could not copy link", msg.err)
		}
		return m, m.notify("link copied: "+msg.url, false)

	case tea.BlurMsg:
		m.tracker.Cancel()
		return m, nil

	case tea.MouseMsg:
		return m, m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// notifications

func (m *Model) notify(text string, isErr bool) tea.Cmd {
	m.toastSeq++
	tok := m.toastSeq
	m.toast = toast{text: text, isErr: isErr, token: tok}
	return tea.Tick(m.opts.Toast, func(time.Time) tea.Msg { return toastExpiredMsg{token: tok} })
}

func (m *Model) fail(what string, err error) tea.Cmd {
	m.log.WithError(err).Warn(what)
	return m.notify(fmt.Sprintf("%s: %v", what, err), true)
}

// snapshot handling

func (m *Model) setItems(items media.Snapshot) {
	m.items = items
	m.sel.SetItems(items)
	m.applyFilter()
}

func (m *Model) applyFilter() {
	if m.filterText == "" {
		m.view = m.items
	} else {
		names := make([]string, len(m.items))
		for i, it := range m.items {
			names[i] = it.Name
		}
		matches := fuzzy.Find(m.filterText, names)
		view := make(media.Snapshot, 0, len(matches))
		for _, mt := range matches {
			view = append(view, m.items[mt.Index])
		}
		m.view = view
	}
	m.viewer.SetItems(m.view)
	if m.cursor >= len(m.view) {
		m.cursor = len(m.view) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.adjustScroll()
}

func (m *Model) onViewerState(s viewer.State) {
	m.log.WithFields(logrus.Fields{
		"phase":  s.Phase.String(),
		"index":  s.Index,
		"chrome": s.ChromeVisible,
	}).Debug("viewer state")
	if s.Phase == viewer.Closed {
		// back on the grid where the user left it, cursor on the last item shown
		m.scrollOffset = m.savedScroll
		if m.view.Valid(s.Index) {
			m.cursor = s.Index
		}
		m.adjustScroll()
	}
}

// activate is a grid click or enter: a toggle in selection mode, otherwise
// it opens the viewer.
func (m *Model) activate(i int) tea.Cmd {
	if !m.view.Valid(i) {
		return nil
	}
	m.cursor = i
	if m.sel.Active() {
		m.sel.ToggleItem(m.view[i].ID)
		return nil
	}
	if !m.viewer.State().Visible() {
		m.savedScroll = m.scrollOffset
	}
	tr := m.viewer.Open(i)
	return tea.Batch(m.crossfade(tr), m.binder.drain())
}

func (m *Model) crossfade(tr *viewer.Transition) tea.Cmd {
	if tr == nil {
		return nil
	}
	tok := tr.Token
	return tea.Tick(tr.Delay, func(time.Time) tea.Msg { return crossfadeMsg{token: tok} })
}

// keyboard

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		if m.workCancel != nil {
			m.workCancel()
		}
		return m, tea.Quit
	}

	switch m.st {
	case statusConfirm:
		switch {
		case key.Matches(msg, m.keys.Yes):
			return m, m.confirmed()
		case key.Matches(msg, m.keys.No):
			m.st = statusReady
		}
		return m, nil
	case statusWorking:
		if key.Matches(msg, m.keys.Quit) && m.workCancel != nil {
			m.workCancel()
			// keep waiting for the done message
			return m, m.waitWork()
		}
		return m, nil
	}

	if m.viewer.State().Visible() {
		return m, m.viewerKey(msg)
	}
	if m.filtering {
		m.filterKey(msg)
		return m, nil
	}
	return m.gridKey(msg)
}

func (m *Model) viewerKey(msg tea.KeyMsg) tea.Cmd {
	k := viewer.KeyNone
	switch {
	case key.Matches(msg, m.keys.Close), key.Matches(msg, m.keys.Quit):
		k = viewer.KeyEscape
	case key.Matches(msg, m.keys.Previous):
		k = viewer.KeyPrevious
	case key.Matches(msg, m.keys.Next):
		k = viewer.KeyNext
	case key.Matches(msg, m.keys.Remove):
		k = viewer.KeyDelete
	case key.Matches(msg, m.keys.Share):
		k = viewer.KeyShare
	case key.Matches(msg, m.keys.Chrome):
		m.viewer.ToggleChrome()
		return nil
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		return nil
	}

	action, tr := m.viewer.HandleKey(k)
	cmds := []tea.Cmd{m.crossfade(tr), m.binder.drain()}
	cur, ok := m.viewer.Current()
	switch {
	case !ok:
	case action == viewer.ActionDeleteCurrent:
		m.st = statusConfirm
		m.confirm = confirmCurrentDelete
		m.confirmID = cur.ID
	case action == viewer.ActionShareCurrent:
		cmds = append(cmds, m.share(cur.ID))
	}
	return tea.Batch(cmds...)
}

func (m *Model) filterKey(msg tea.KeyMsg) {
	switch msg.Type {
	case tea.KeyEnter:
		m.filtering = false
	case tea.KeyEsc:
		m.filtering = false
		m.filterText = ""
	case tea.KeyBackspace:
		if r := []rune(m.filterText); len(r) > 0 {
			m.filterText = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.filterText += " "
	case tea.KeyRunes:
		m.filterText += string(msg.Runes)
	default:
		return
	}
	m.applyFilter()
}

func (m *Model) gridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.view)-1 {
			m.cursor++
			m.adjustScroll()
		}
	case key.Matches(msg, m.keys.Open):
		return m, m.activate(m.cursor)
	case key.Matches(msg, m.keys.Toggle):
		if m.sel.Active() {
			return m, m.activate(m.cursor)
		}
	case key.Matches(msg, m.keys.SelectMode):
		m.sel.ToggleMode()
	case key.Matches(msg, m.keys.Download):
		if m.sel.Active() && m.sel.Count() > 0 {
			return m, m.startDownload()
		}
	case key.Matches(msg, m.keys.Delete):
		if m.sel.Active() && m.sel.Count() > 0 {
			m.st = statusConfirm
			m.confirm = confirmBatchDelete
		}
	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
	case key.Matches(msg, m.keys.Refresh):
		return m, m.refresh()
	case key.Matches(msg, m.keys.Scan):
		return m, tea.Batch(m.notify("scanning external storage...", false), m.scan())
	case msg.Type == tea.KeyEsc:
		if m.sel.Active() {
			m.sel.ToggleMode()
		} else if m.filterText != "" {
			m.filterText = ""
			m.applyFilter()
		}
	}
	return m, nil
}

func (m *Model) confirmed() tea.Cmd {
	m.st = statusReady
	if m.confirm == confirmBatchDelete {
		return m.startDelete()
	}
	id := m.confirmID
	if m.opts.DryRun {
		return func() tea.Msg { return deleteCurrentMsg{id: id} }
	}
	b := m.backend
	return func() tea.Msg {
		return deleteCurrentMsg{id: id, err: b.Delete(context.Background(), id)}
	}
}

func (m *Model) scan() tea.Cmd {
	b := m.backend
	return func() tea.Msg {
		res, err := b.Scan(context.Background(), media.ScanOptions{})
		return scanMsg{res: res, err: err}
	}
}

func (m *Model) share(id string) tea.Cmd {
	u := m.backend.MediaURL(id)
	write := m.opts.Clipboard
	return func() tea.Msg {
		return shareMsg{url: u, err: write(u)}
	}
}

// pointer input

func (m *Model) sample(msg tea.MouseMsg) gesture.Sample {
	return gesture.Sample{
		X:    float64(msg.X * m.opts.CellWidth),
		Y:    float64(msg.Y * m.opts.CellHeight),
		Time: m.opts.Now(),
	}
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	if m.st != statusReady {
		return nil
	}
	if m.viewer.State().Visible() {
		return m.viewerMouse(msg)
	}

	switch msg.Button {
	case tea.MouseButtonWheelUp:
		if m.cursor > 0 {
			m.cursor--
			m.adjustScroll()
		}
		return nil
	case tea.MouseButtonWheelDown:
		if m.cursor < len(m.view)-1 {
			m.cursor++
			m.adjustScroll()
		}
		return nil
	}

	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.pressRow = m.rowAt(msg.Y)
		}
	case tea.MouseActionRelease:
		row := m.rowAt(msg.Y)
		pressed := m.pressRow
		m.pressRow = -1
		if row >= 0 && row == pressed {
			return m.activate(row)
		}
	}
	return nil
}

func (m *Model) viewerMouse(msg tea.MouseMsg) tea.Cmd {
	s := m.sample(msg)
	switch msg.Action {
	case tea.MouseActionPress:
		if msg.Button == tea.MouseButtonLeft {
			m.tracker.Start(s)
		}
	case tea.MouseActionMotion:
		if m.tracker.Active() {
			m.tracker.Move(s)
		}
	case tea.MouseActionRelease:
		res, ok := m.tracker.End(s, s.Time)
		if !ok {
			return nil
		}
		m.log.WithField("gesture", res.String()).Debug("gesture")
		tr := m.viewer.HandleGesture(res)
		return tea.Batch(m.crossfade(tr), m.binder.drain())
	}
	return nil
}

// rowAt maps a terminal row to a view index, or -1.
func (m *Model) rowAt(y int) int {
	if y < gridTop || y >= gridTop+m.visibleHeight() {
		return -1
	}
	i := m.scrollOffset + y - gridTop
	if !m.view.Valid(i) {
		return -1
	}
	return i
}

func (m *Model) visibleHeight() int {
	// header plus toast and help lines
	h := m.termH - gridTop - 2
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) adjustScroll() {
	visible := m.visibleHeight()
	if m.cursor >= m.scrollOffset+visible {
		m.scrollOffset = m.cursor - visible + 1
	}
	if m.cursor < m.scrollOffset {
		m.scrollOffset = m.cursor
	}
	if m.scrollOffset < 0 {
		m.scrollOffset = 0
	}
}

// batch work, bridged from worker goroutines into tea messages

func (m *Model) startDownload() tea.Cmd {
	ids := m.sel.Selected()
	saver := download.NewSaver(m.backend, m.opts.DownloadDir, m.items)
	conc := m.sel.Concurrency
	return m.startWork(workDownload, len(ids), func(ctx context.Context, p chan<- batch.Progress) selection.Outcome {
		return selection.RunDownload(ctx, ids, conc, p, saver)
	})
}

func (m *Model) startDelete() tea.Cmd {
	ids := m.sel.Selected()
	var d selection.Deleter = m.backend
	if m.opts.DryRun {
		d = selection.DeleterFunc(func(context.Context, string) error { return nil })
	}
	conc := m.sel.Concurrency
	return m.startWork(workDelete, len(ids), func(ctx context.Context, p chan<- batch.Progress) selection.Outcome {
		return selection.RunDelete(ctx, ids, conc, p, d)
	})
}

func (m *Model) startWork(kind workKind, total int, run func(context.Context, chan<- batch.Progress) selection.Outcome) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	m.st = statusWorking
	m.workKind = kind
	m.workTotal = total
	m.workCompleted = 0
	m.workLast = ""
	m.workCancel = cancel

	ch := make(chan tea.Msg)
	m.workCh = ch
	go func() {
		defer close(ch)
		pch := make(chan batch.Progress, total)
		done := make(chan selection.Outcome, 1)
		go func() { done <- run(ctx, pch) }()
		for {
			select {
			case p := <-pch:
				ch <- workProgressMsg{p: p}
			case out := <-done:
				// progress that raced the summary goes first
			drain:
				for {
					select {
					case p := <-pch:
						ch <- workProgressMsg{p: p}
					default:
						break drain
					}
				}
				ch <- workDoneMsg{kind: kind, outcome: out}
				return
			}
		}
	}()
	return tea.Batch(m.sp.Tick, m.waitWork())
}

func (m *Model) waitWork() tea.Cmd {
	ch := m.workCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}

func (m *Model) finishWork(msg workDoneMsg) tea.Cmd {
	m.st = statusReady
	m.workCh = nil
	if m.workCancel != nil {
		m.workCancel()
		m.workCancel = nil
	}
	out := msg.outcome
	for _, f := range out.Failures {
		m.log.WithField("id", f.ID).WithError(f.Err).Warn("batch item failed")
	}

	switch msg.kind {
	case workDelete:
		m.sel.ApplyDelete()
		text := fmt.Sprintf("deleted %d items", out.Succeeded)
		if out.Failed > 0 {
			text = fmt.Sprintf("deleted %d items, %d failed", out.Succeeded, out.Failed)
		}
		return tea.Batch(m.notify(text, out.Failed > 0), m.refresh())
	default:
		text := fmt.Sprintf("downloaded %d items to %s", out.Succeeded, m.opts.DownloadDir)
		if out.Failed > 0 {
			text = fmt.Sprintf("downloaded %d items, %d failed", out.Succeeded, out.Failed)
		}
		return m.notify(text, out.Failed > 0)
	}
}

// rendering

func (m *Model) View() string {
	var b strings.Builder
	if m.viewer.State().Visible() {
		b.WriteString(m.viewerView())
	} else {
		b.WriteString(m.headerText())
		b.WriteString(m.renderGrid())
	}

	switch m.st {
	case statusConfirm:
		b.WriteString("\n" + m.confirmText() + "\n")
	case statusWorking:
		verb := "Downloading"
		if m.workKind == workDelete {
			verb = "Deleting"
		}
		mode := ""
		if m.opts.DryRun && m.workKind == workDelete {
			mode = " [dry-run]"
		}
		fmt.Fprintf(&b, "\n%s%s... %s  %d/%d  Last: %s  (q to cancel)\n", verb, mode, m.sp.View(), m.workCompleted, m.workTotal, m.workLast)
	}

	if m.toast.text != "" {
		style := toastStyle
		if m.toast.isErr {
			style = toastErrorStyle
		}
		b.WriteString("\n" + style.Render(m.toast.text))
	}
	if m.showHelp {
		var km help.KeyMap = gridKeys{m.keys}
		if m.viewer.State().Visible() {
			km = viewerKeys{m.keys}
		}
		h := m.help
		h.ShowAll = true
		b.WriteString("\n" + helpBoxStyle.Render(h.View(km)))
	}
	return b.String()
}

func (m *Model) confirmText() string {
	if m.confirm == confirmCurrentDelete {
		name := m.confirmID
		if cur, ok := m.viewer.Current(); ok {
			name = cur.Name
		}
		return fmt.Sprintf("Delete %s? (y/N)", name)
	}
	return fmt.Sprintf("Delete %d selected items? (y/N)", m.sel.Count())
}

func (m *Model) headerText() string {
	if m.st == statusLoading {
		return fmt.Sprintf("Loading gallery... %s\n\n\n", m.sp.View())
	}
	line := headerStyle.Render("Gallery") + fmt.Sprintf("  %d items", len(m.items))
	if len(m.view) != len(m.items) {
		line += fmt.Sprintf("  (%d shown)", len(m.view))
	}

	var mode string
	switch {
	case m.filtering:
		mode = filterStyle.Render("/"+m.filterText) + "_"
	case m.sel.Active():
		mode = markSelectedStyle.Render(fmt.Sprintf("Selection: %d selected", m.sel.Count())) +
			dimStyle.Render("  space toggle · x download · D delete · esc done")
	case m.filterText != "":
		mode = dimStyle.Render("filter: ") + filterStyle.Render(m.filterText)
	default:
		mode = dimStyle.Render(m.help.ShortHelpView(gridKeys{m.keys}.ShortHelp()))
	}
	return line + "\n" + mode + "\n\n"
}

func (m *Model) renderGrid() string {
	if len(m.view) == 0 {
		if len(m.items) == 0 && m.st != statusLoading {
			return "No media yet. Upload with `image-syncer upload <path>` or press S to scan storage.\n"
		}
		return ""
	}

	var b strings.Builder
	now := m.opts.Now()
	end := m.scrollOffset + m.visibleHeight()
	if end > len(m.view) {
		end = len(m.view)
	}
	for i := m.scrollOffset; i < end; i++ {
		it := m.view[i]
		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render(">") + " "
		}

		mark := ""
		selected := m.sel.IsSelected(it.ID)
		if m.sel.Active() {
			if selected {
				mark = markSelectedStyle.Render("[x]") + " "
			} else {
				mark = markStyle.Render("[ ]") + " "
			}
		}

		icon := dimStyle.Render("■")
		if it.IsVideo() {
			icon = videoStyle.Render("▶")
		}
		name := it.Name
		if selected {
			name = nameSelectedStyle.Render(name)
		}
		size := sizeStyle.Render(fmt.Sprintf("%10s", utils.FormatFileSize(it.Size)))
		b.WriteString(prefix + mark + icon + " " + size + "  " + name + "  " + dimStyle.Render(utils.Ago(it.CreatedAt, now)) + "\n")
	}
	return b.String()
}

func (m *Model) viewerView() string {
	st := m.viewer.State()
	cur, _ := m.viewer.Current()
	var b strings.Builder

	if st.ChromeVisible {
		b.WriteString(chromeStyle.Render(fmt.Sprintf("✕ esc   %d / %d   %s", st.Index+1, len(m.view), cur.Name)) + "\n\n")
	} else {
		b.WriteString("\n\n")
	}

	var body string
	c := m.binder.cur
	switch {
	case st.Phase == viewer.Transitioning:
		body = fadingStyle.Render(cur.Name)
	case c.state == loadPending:
		body = contentStyle.Render(m.sp.View() + " loading " + c.item.Name)
	case c.state == loadFailed:
		body = contentStyle.Render("could not load " + c.item.Name)
	case c.state == loadDone:
		kind := "image"
		if c.item.IsVideo() {
			kind = "video"
		}
		body = contentStyle.Render(fmt.Sprintf("%s  %s\n%s received", kind, c.sniffed, utils.HumanizeBytes(c.bytes)))
	default:
		body = contentStyle.Render(cur.Name)
	}
	b.WriteString(body + "\n")

	if st.ChromeVisible {
		info := []string{
			headerStyle.Render(cur.Name),
			"Size: " + utils.FormatFileSize(cur.Size),
			"Created: " + utils.FormatDate(cur.CreatedAt),
			"Type: " + cur.MIMEType,
		}
		b.WriteString("\n" + strings.Join(info, "\n") + "\n")
		b.WriteString(dimStyle.Render(m.help.ShortHelpView(viewerKeys{m.keys}.ShortHelp())) + "\n")
	}
	return b.String()
}
