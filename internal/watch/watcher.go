// Package watch uploads media files as they appear in a local folder.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"image-syncer/internal/collect"
	"image-syncer/internal/logging"
	"image-syncer/internal/media"
)

// Uploader sends files to the gallery.
type Uploader interface {
	Upload(ctx context.Context, files []media.UploadFile) (media.UploadResult, error)
}

// Batch reports one debounced upload.
type Batch struct {
	Files  []string
	Result media.UploadResult
	Err    error
}

// Watcher collects new media files under a directory and uploads them once
// the folder has been quiet for the debounce interval.
type Watcher struct {
	dir      string
	up       Uploader
	debounce time.Duration
	log      *logrus.Entry
	results  chan Batch
	fs       *fsnotify.Watcher
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before an upload.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(w *Watcher) { w.log = logging.Component(log, "watch") }
}

// New watches dir and its existing subdirectories.
func New(dir string, up Uploader, opts ...Option) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("error accessing directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		dir:      dir,
		up:       up,
		debounce: 1500 * time.Millisecond,
		log:      logging.Component(nil, "watch"),
		results:  make(chan Batch, 10),
		fs:       fsw,
	}
	for _, o := range opts {
		o(w)
	}
	if err := w.addTree(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	return w, nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if p != root && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return fmt.Errorf("failed to add directory %s to watcher: %w", p, err)
		}
		w.log.WithField("directory", p).Debug("watching directory")
		return nil
	})
}

// Results delivers one Batch per upload attempt. Batches are dropped when
// nobody reads them.
func (w *Watcher) Results() <-chan Batch { return w.results }

// Run processes events until ctx is done, then closes the watcher and the
// results channel. Files still waiting for the debounce are not uploaded.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.results)
	defer w.fs.Close()

	pending := map[string]struct{}{}
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	w.log.WithField("directory", w.dir).Info("watcher started")

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			w.log.Info("watcher stopped")
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			info, err := os.Stat(event.Name)
			if err != nil {
				continue
			}
			if info.IsDir() {
				if event.Op.Has(fsnotify.Create) {
					if err := w.addTree(event.Name); err != nil {
						w.log.WithError(err).Warn("cannot watch new directory")
					}
				}
				continue
			}
			if _, ok := media.KindOf(event.Name); !ok {
				continue
			}
			pending[event.Name] = struct{}{}
			timer.Reset(w.debounce)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Error("fsnotify watcher error")

		case <-timer.C:
			w.flush(ctx, pending)
			pending = map[string]struct{}{}
		}
	}
}

func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) {
	if len(pending) == 0 {
		return
	}
	var files []collect.File
	for p := range pending {
		info, err := os.Stat(p)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, collect.File{Path: p, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	if len(files) == 0 {
		return
	}

	b := Batch{Files: make([]string, 0, len(files))}
	for _, f := range files {
		b.Files = append(b.Files, f.Path)
	}
	b.Result, b.Err = w.up.Upload(ctx, collect.UploadFiles(files))
	entry := w.log.WithField("count", len(files))
	if b.Err != nil {
		entry.WithError(b.Err).Error("auto upload failed")
	} else {
		entry.Info("auto upload complete")
	}
	select {
	case w.results <- b:
	default:
		w.log.Warn("results channel is full, dropped batch")
	}
}
