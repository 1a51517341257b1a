package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-syncer/internal/media"
)

type recordingUploader struct {
	mu    sync.Mutex
	names []string
	fail  bool
}

func (r *recordingUploader) Upload(_ context.Context, files []media.UploadFile) (media.UploadResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return media.UploadResult{}, errors.New("server unavailable")
	}
	var res media.UploadResult
	for _, f := range files {
		rc, err := f.Open()
		if err != nil {
			return media.UploadResult{}, err
		}
		rc.Close()
		r.names = append(r.names, f.Name)
		res.IDs = append(res.IDs, "id-"+f.Name)
	}
	return res, nil
}

func startWatcher(t *testing.T, dir string, up Uploader) *Watcher {
	t.Helper()
	w, err := New(dir, up, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func waitBatch(t *testing.T, w *Watcher) Batch {
	t.Helper()
	select {
	case b := <-w.Results():
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for upload")
	}
	return Batch{}
}

func TestWatcher_UploadsNewMedia(t *testing.T) {
	dir := t.TempDir()
	up := &recordingUploader{}
	w := startWatcher(t, dir, up)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("jpg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.mp4"), []byte("mp4"), 0o644))

	b := waitBatch(t, w)
	require.NoError(t, b.Err)
	assert.Equal(t, []string{filepath.Join(dir, "a.jpg"), filepath.Join(dir, "b.mp4")}, b.Files)
	assert.Equal(t, []string{"id-a.jpg", "id-b.mp4"}, b.Result.IDs)
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, &recordingUploader{})

	sub := filepath.Join(dir, "2024")
	require.NoError(t, os.Mkdir(sub, 0o755))
	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.png"), []byte("png"), 0o644))

	b := waitBatch(t, w)
	assert.Equal(t, []string{filepath.Join(sub, "c.png")}, b.Files)
}

func TestWatcher_ReportsUploadFailure(t *testing.T) {
	dir := t.TempDir()
	w := startWatcher(t, dir, &recordingUploader{fail: true})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "d.heic"), []byte("heic"), 0o644))
	b := waitBatch(t, w)
	assert.Error(t, b.Err)
}

func TestNew_RejectsFile(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.jpg")
	require.NoError(t, os.WriteFile(f, nil, 0o644))
	_, err := New(f, &recordingUploader{})
	assert.Error(t, err)
}
