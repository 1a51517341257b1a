// Package download saves gallery media to the local disk, either one file
// per item or bundled into a single zip archive.
package download

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"image-syncer/internal/batch"
	"image-syncer/internal/media"
)

// Fetcher streams the full-size content of an item.
type Fetcher interface {
	Fetch(ctx context.Context, id string) (io.ReadCloser, error)
}

type Success struct {
	ID   string
	Dest string
	Size int64
}

type Summary struct {
	Successes []Success
	Failures  []batch.Failure
	Written   int64 // total bytes written
}

// Saver writes items into a directory. Its Download method has the shape of
// a per-item batch operation and is safe for concurrent use.
type Saver struct {
	fetch Fetcher
	dir   string
	names map[string]string

	mu       sync.Mutex
	reserved map[string]struct{}
	saved    []Success
}

// NewSaver returns a Saver writing into dir. items supply the file names;
// unknown ids are saved under the id itself.
func NewSaver(f Fetcher, dir string, items media.Snapshot) *Saver {
	names := make(map[string]string, len(items))
	for _, it := range items {
		names[it.ID] = it.Name
	}
	return &Saver{fetch: f, dir: dir, names: names, reserved: map[string]struct{}{}}
}

func (s *Saver) nameFor(id string) string {
	name := filepath.Base(s.names[id])
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = id
	}
	return name
}

// reserve picks a free destination path, also avoiding paths handed to
// downloads still in flight.
func (s *Saver) reserve(name string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	dest := nextAvailable(filepath.Join(s.dir, name), func(p string) bool {
		_, taken := s.reserved[p]
		return taken
	})
	s.reserved[dest] = struct{}{}
	return dest
}

// Download fetches id and writes it to the directory. A partial file is
// removed when the transfer fails.
func (s *Saver) Download(ctx context.Context, id string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	rc, err := s.fetch.Fetch(ctx, id)
	if err != nil {
		return err
	}
	defer rc.Close()

	dest := s.reserve(s.nameFor(id))
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	n, err := io.Copy(f, rc)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("write %s: %w", filepath.Base(dest), err)
	}

	s.mu.Lock()
	s.saved = append(s.saved, Success{ID: id, Dest: dest, Size: n})
	s.mu.Unlock()
	return nil
}

// Saved returns what has been written so far.
func (s *Saver) Saved() []Success {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Success(nil), s.saved...)
}

// Files downloads ids concurrently into dir, one file per item.
func Files(ctx context.Context, f Fetcher, items media.Snapshot, ids []string, dir string, concurrency int, progress chan<- batch.Progress) Summary {
	s := NewSaver(f, dir, items)
	res := batch.Run(ctx, ids, concurrency, progress, s.Download)
	sum := Summary{Successes: s.Saved(), Failures: res.Failures}
	for _, ok := range sum.Successes {
		sum.Written += ok.Size
	}
	return sum
}

// Archive downloads ids one after another into a single zip at dest. Items
// whose fetch fails are left out of the archive; if none succeed the archive
// is removed.
func Archive(ctx context.Context, f Fetcher, items media.Snapshot, ids []string, dest string, progress chan<- batch.Progress) (Summary, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Summary{}, err
	}
	dest = nextAvailable(dest, nil)
	out, err := os.Create(dest)
	if err != nil {
		return Summary{}, err
	}
	zw := zip.NewWriter(out)
	s := NewSaver(f, "", items)
	used := map[string]struct{}{}

	var sum Summary
	total := len(ids)
	for i, id := range ids {
		var n int64
		err := ctx.Err()
		if err == nil {
			n, err = s.addToZip(ctx, zw, id, used)
		}
		if err != nil {
			sum.Failures = append(sum.Failures, batch.Failure{ID: id, Err: err})
		} else {
			sum.Successes = append(sum.Successes, Success{ID: id, Dest: dest, Size: n})
		}
		if progress != nil {
			select {
			case progress <- batch.Progress{Completed: i + 1, Total: total, ID: id, Err: err}:
			default:
			}
		}
	}

	if err := zw.Close(); err != nil {
		_ = out.Close()
		_ = os.Remove(dest)
		return sum, err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return sum, err
	}
	if len(sum.Successes) == 0 {
		_ = os.Remove(dest)
		return sum, errors.New("no items downloaded")
	}
	if st, err := os.Stat(dest); err == nil {
		sum.Written = st.Size()
	}
	return sum, nil
}

func (s *Saver) addToZip(ctx context.Context, zw *zip.Writer, id string, used map[string]struct{}) (int64, error) {
	rc, err := s.fetch.Fetch(ctx, id)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	name := s.nameFor(id)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		if _, dup := used[name]; !dup {
			break
		}
		name = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	used[name] = struct{}{}

	hdr := &zip.FileHeader{Name: name, Method: zip.Store, Modified: time.Now()}
	// media formats are stored as-is, except bmp
	if _, ok := media.KindOf(name); !ok || strings.EqualFold(ext, ".bmp") {
		hdr.Method = zip.Deflate
	}
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return 0, err
	}
	return io.Copy(w, rc)
}

// nextAvailable returns p, or p with a numeric suffix when p exists on disk
// or taken reports it as used.
func nextAvailable(p string, taken func(string) bool) string {
	free := func(c string) bool {
		if taken != nil && taken(c) {
			return false
		}
		_, err := os.Stat(c)
		return errors.Is(err, fs.ErrNotExist)
	}
	if free(p) {
		return p
	}
	dir := filepath.Dir(p)
	base := filepath.Base(p)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	for i := 1; i < 10000; i++ {
		cand := filepath.Join(dir, fmt.Sprintf("%s-%d%s", name, i, ext))
		if free(cand) {
			return cand
		}
	}
	return p
}
