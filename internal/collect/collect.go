// Package collect finds local media files to upload.
package collect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"image-syncer/internal/media"
)

// File is a media file found on disk.
type File struct {
	Path    string
	Size    int64
	Kind    media.Kind
	ModTime time.Time
	Err     error
}

// Options defines collection behaviour.
type Options struct {
	Concurrency   int      // workers for stat calls
	MaxDepth      int      // -1 unlimited; 0 means only files directly in root
	FollowSymlink bool     // descend into symlinked directories
	Excludes      []string // glob patterns matched against full path and base name
}

type matcher []glob.Glob

func compile(patterns []string) (matcher, error) {
	var m matcher
	for _, p := range patterns {
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, filepath.Separator)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern %q: %w", p, err)
		}
		m = append(m, g)
	}
	return m, nil
}

func (m matcher) excluded(p string) bool {
	base := filepath.Base(p)
	for _, g := range m {
		if g.Match(p) || g.Match(base) {
			return true
		}
	}
	return false
}

// Collect walks roots and returns every media file found, sorted by path,
// with their combined size. Roots may be files or directories.
func Collect(ctx context.Context, roots []string, opts Options) ([]File, int64, error) {
	var (
		files []File
		total int64
		errs  []error
	)
	for _, root := range roots {
		out, errCh := CollectStream(ctx, root, opts)
		for f := range out {
			if f.Err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", f.Path, f.Err))
				continue
			}
			files = append(files, f)
			total += f.Size
		}
		if err := <-errCh; err != nil {
			errs = append(errs, err)
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, total, combineErrors(errs)
}

// CollectStream walks root and sends each media file on the returned channel
// as soon as it has been stat'ed. When done, the files channel is closed and
// a single error (if any) is sent on errCh, which is then closed.
func CollectStream(ctx context.Context, root string, opts Options) (<-chan File, <-chan error) {
	if ctx == nil {
		ctx = context.Background()
	}
	out := make(chan File)
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		defer close(out)

		excl, err := compile(opts.Excludes)
		if err != nil {
			errCh <- err
			return
		}
		n := opts.Concurrency
		if n <= 0 {
			n = runtime.NumCPU()
		}
		if n < 1 {
			n = 1
		}

		jobs := make(chan string)
		var wg sync.WaitGroup
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				for p := range jobs {
					f := statFile(p)
					select {
					case <-ctx.Done():
						return
					case out <- f:
					}
				}
			}()
		}

		w := &walker{ctx: ctx, opts: opts, excl: excl, jobs: jobs, seen: map[string]struct{}{}}
		w.walk(root, 0)
		close(jobs)
		wg.Wait()
		errCh <- combineErrors(w.errs)
	}()
	return out, errCh
}

type walker struct {
	ctx  context.Context
	opts Options
	excl matcher
	jobs chan<- string
	seen map[string]struct{}
	errs []error
}

func (w *walker) emit(p string) error {
	if _, ok := media.KindOf(p); !ok || w.excl.excluded(p) {
		return nil
	}
	select {
	case <-w.ctx.Done():
		return w.ctx.Err()
	case w.jobs <- p:
		return nil
	}
}

// walk visits root, whose directories start at depth base.
func (w *walker) walk(root string, base int) {
	info, err := os.Stat(root)
	if err != nil {
		w.errs = append(w.errs, fmt.Errorf("walk error at %s: %w", root, err))
		return
	}
	if !info.IsDir() {
		if err := w.emit(root); err != nil {
			w.errs = append(w.errs, err)
		}
		return
	}
	// WalkDir does not descend into a symlinked root, so walk its target
	if real, err := filepath.EvalSymlinks(root); err == nil {
		if _, ok := w.seen[real]; ok {
			return
		}
		w.seen[real] = struct{}{}
		root = real
	}

	rootDepth := depthOf(root)
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			w.errs = append(w.errs, fmt.Errorf("walk error at %s: %w", p, err))
			return nil
		}
		if w.ctx.Err() != nil {
			return w.ctx.Err()
		}
		depth := base + depthOf(p) - rootDepth
		if d.IsDir() {
			if p != root && (w.excl.excluded(p) || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			if w.opts.MaxDepth >= 0 && depth > w.opts.MaxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(p)
			if err != nil {
				return nil
			}
			if target.IsDir() {
				if w.opts.FollowSymlink && !w.excl.excluded(p) && (w.opts.MaxDepth < 0 || depth+1 <= w.opts.MaxDepth) {
					w.walk(p, depth+1)
				}
				return nil
			}
		}
		return w.emit(p)
	})
}

func statFile(p string) File {
	f := File{Path: p}
	f.Kind, _ = media.KindOf(p)
	info, err := os.Stat(p)
	if err != nil {
		f.Err = err
		return f
	}
	f.Size = info.Size()
	f.ModTime = info.ModTime()
	return f
}

// UploadFiles turns collected files into upload parts.
func UploadFiles(files []File) []media.UploadFile {
	out := make([]media.UploadFile, 0, len(files))
	for _, f := range files {
		p := f.Path
		out = append(out, media.UploadFile{
			Name: filepath.Base(p),
			Size: f.Size,
			Open: func() (io.ReadCloser, error) { return os.Open(p) },
		})
	}
	return out
}

func depthOf(p string) int {
	clean := filepath.Clean(p)
	depth := 0
	for {
		parent := filepath.Dir(clean)
		if parent == clean {
			break
		}
		depth++
		clean = parent
	}
	return depth
}

func combineErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("multiple errors:")
	for _, e := range errs {
		if e == nil {
			continue
		}
		b.WriteString("\n - ")
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
