package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"image-syncer/internal/media"
)

// fakeServer mimics the gallery server's routes closely enough for the client.
type fakeServer struct {
	mu       sync.Mutex
	files    []fileJSON
	deleted  []string
	failIDs  map[string]int
	loggedIn bool
	requests []*http.Request
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/files", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		per, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
		start := (page - 1) * per
		end := start + per
		if end > len(f.files) {
			end = len(f.files)
		}
		var body listJSON
		if start < len(f.files) {
			body.Files = f.files[start:end]
		}
		body.Pagination.Page = page
		body.Pagination.HasNext = end < len(f.files)
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		id := strings.TrimPrefix(r.URL.Path, "/files/")
		if status, ok := f.failIDs[id]; ok {
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error": "ファイルが見つかりません"}`)
			return
		}
		switch r.Method {
		case http.MethodDelete:
			f.mu.Lock()
			f.deleted = append(f.deleted, id)
			f.mu.Unlock()
			_, _ = io.WriteString(w, `{"message": "ok"}`)
		default:
			_, _ = io.WriteString(w, "bytes-of-"+id)
		}
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var body struct {
			Files []fileJSON `json:"files"`
		}
		for i, fh := range r.MultipartForm.File["files"] {
			body.Files = append(body.Files, fileJSON{ID: "up" + strconv.Itoa(i), OriginalName: fh.Filename})
		}
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("/scan", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		var req struct {
			Force    bool `json:"force"`
			MaxFiles *int `json:"max_files"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.MaxFiles != nil && *req.MaxFiles == 13 {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, `{"success": false, "error": "scan error: bad limit"}`)
			return
		}
		_, _ = io.WriteString(w, `{"success": true, "scanned": 12, "added": 3}`)
	})
	mux.HandleFunc("/cleanup", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"message": "done", "cleaned_files": ["x1", "x2"]}`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && r.FormValue("username") == "admin" && r.FormValue("password") == "secret" {
			f.mu.Lock()
			f.loggedIn = true
			f.mu.Unlock()
			http.Redirect(w, r, "/", http.StatusFound)
			return
		}
		_, _ = io.WriteString(w, "<html>login</html>")
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusFound)
	})
	return mux
}

func (f *fakeServer) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r)
}

func (f *fakeServer) recorded() []*http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*http.Request(nil), f.requests...)
}

func (f *fakeServer) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func newTestClient(t *testing.T, f *fakeServer, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func TestList_FollowsPagination(t *testing.T) {
	f := &fakeServer{}
	for i := 0; i < 5; i++ {
		f.files = append(f.files, fileJSON{
			ID:           "id" + strconv.Itoa(i),
			OriginalName: "IMG_" + strconv.Itoa(i) + ".MOV",
			FileType:     "video",
			FileSize:     int64(1000 * i),
			CreatedAt:    "2024-05-01 10:00:00",
		})
	}
	c := newTestClient(t, f, WithPageSize(2))

	items, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 5)
	assert.Equal(t, "id4", items[4].ID)
	assert.Equal(t, media.KindVideo, items[0].Kind)
	assert.Equal(t, "video/quicktime", items[0].MIMEType)
	assert.Equal(t, 2024, items[0].CreatedAt.Year())

	reqs := f.recorded()
	require.Len(t, reqs, 3)
	first := reqs[0]
	assert.Equal(t, "no-cache", first.Header.Get("Cache-Control"))
	assert.NotEmpty(t, first.URL.Query().Get("_t"))
	assert.NotEmpty(t, first.Header.Get("X-Request-ID"))
	assert.True(t, strings.HasPrefix(first.Header.Get("User-Agent"), "image-syncer/"))
}

func TestDelete_ErrorPayload(t *testing.T) {
	f := &fakeServer{failIDs: map[string]int{"gone": http.StatusNotFound, "boom": http.StatusInternalServerError}}
	c := newTestClient(t, f)

	require.NoError(t, c.Delete(context.Background(), "ok"))
	assert.Equal(t, []string{"ok"}, f.deletedIDs())

	err := c.Delete(context.Background(), "gone")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "ファイルが見つかりません", apiErr.Message)

	err = c.Delete(context.Background(), "boom")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestFetchAndThumbnail(t *testing.T) {
	c := newTestClient(t, &fakeServer{})
	rc, err := c.Fetch(context.Background(), "abc")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "bytes-of-abc", string(data))

	_, err = c.Thumbnail(context.Background(), "abc")
	assert.Error(t, err, "the fake server has no thumbnail route")
}

func TestUpload_Multipart(t *testing.T) {
	c := newTestClient(t, &fakeServer{})
	files := []media.UploadFile{
		{Name: "a.jpg", Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("aaa")), nil }},
		{Name: "b.mp4", Open: func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("bbb")), nil }},
	}
	res, err := c.Upload(context.Background(), files)
	require.NoError(t, err)
	assert.Equal(t, []string{"up0", "up1"}, res.IDs)
}

func TestScan(t *testing.T) {
	c := newTestClient(t, &fakeServer{})
	res, err := c.Scan(context.Background(), media.ScanOptions{Force: true})
	require.NoError(t, err)
	assert.Equal(t, media.ScanResult{Success: true, Scanned: 12, Added: 3}, res)

	_, err = c.Scan(context.Background(), media.ScanOptions{MaxFiles: 13})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan error: bad limit")
}

func TestCleanup(t *testing.T) {
	c := newTestClient(t, &fakeServer{})
	ids, err := c.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, ids)
}

func TestLogin(t *testing.T) {
	f := &fakeServer{}
	c := newTestClient(t, f)

	err := c.Login(context.Background(), "admin", "wrong")
	assert.True(t, errors.Is(err, ErrUnauthorized))

	require.NoError(t, c.Login(context.Background(), "admin", "secret"))
	f.mu.Lock()
	defer f.mu.Unlock()
	assert.True(t, f.loggedIn)
}

func TestRedirectToLoginIsUnauthorized(t *testing.T) {
	c := newTestClient(t, &fakeServer{})
	_, err := c.stream(context.Background(), "private", c.endpoint("private"))
	assert.True(t, errors.Is(err, ErrUnauthorized))
}

func TestMediaURL(t *testing.T) {
	c, err := New("https://photos.example.net/gallery/")
	require.NoError(t, err)
	assert.Equal(t, "https://photos.example.net/gallery/files/abc", c.MediaURL("abc"))
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("photos.local")
	assert.Error(t, err)
}
