package offline

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shellServer struct {
	mu      sync.Mutex
	hits    map[string]int
	missing string
}

func (s *shellServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if s.hits == nil {
		s.hits = map[string]int{}
	}
	s.hits[r.URL.Path]++
	s.mu.Unlock()
	if r.URL.Path == s.missing {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	_, _ = io.WriteString(w, "network:"+r.URL.Path)
}

func (s *shellServer) count(p string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[p]
}

// downTransport simulates a lost connection.
type downTransport struct{}

func (downTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network is unreachable")
}

func openStore(t *testing.T) *Store {
	t.Helper()
	st, err := OpenStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func get(t *testing.T, rt http.RoundTripper, u string, hdr map[string]string) (*http.Response, error) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, u, nil)
	require.NoError(t, err)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	return rt.RoundTrip(req)
}

func body(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestInstall_StoresPrecacheAndActivates(t *testing.T) {
	srv := &shellServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	st := openStore(t)

	c, err := New(ctx, st, ts.URL)
	require.NoError(t, err)
	assert.False(t, c.Active())

	require.NoError(t, c.Install(ctx))
	assert.True(t, c.Active())

	status, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(Precache), status.Entries)
	assert.Equal(t, []string{DefaultCacheName}, status.Caches)

	// served from the cache: the server sees no second request
	resp, err := get(t, c, ts.URL+"/static/css/main.css", nil)
	require.NoError(t, err)
	assert.Equal(t, "hit", resp.Header.Get(HeaderSource))
	assert.Equal(t, "network:/static/css/main.css", body(t, resp))
	assert.Equal(t, 1, srv.count("/static/css/main.css"))
}

func TestInstall_AllOrNothing(t *testing.T) {
	srv := &shellServer{missing: "/static/icon-512.png"}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	st := openStore(t)

	c, err := New(ctx, st, ts.URL)
	require.NoError(t, err)
	require.Error(t, c.Install(ctx))
	assert.False(t, c.Active())

	n, err := st.Count(ctx, DefaultCacheName)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestActivate_PurgesOtherCaches(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.PutAll(ctx, "image-syncer-v1", []Entry{{URL: "http://old/", Status: 200, Body: []byte("old")}}))
	require.NoError(t, st.Claim(ctx, "image-syncer-v1"))
	require.NoError(t, st.PutAll(ctx, DefaultCacheName, []Entry{{URL: "http://new/", Status: 200}}))

	c, err := New(ctx, st, "http://new")
	require.NoError(t, err)
	require.NoError(t, c.Activate(ctx))

	names, err := st.CacheNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{DefaultCacheName}, names)
	claimed, err := st.Claimed(ctx, "image-syncer-v1")
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestRoundTrip_MediaBypassesCache(t *testing.T) {
	srv := &shellServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	st := openStore(t)
	// a poisoned entry for a media url must never be served
	require.NoError(t, st.PutAll(ctx, DefaultCacheName, []Entry{{URL: ts.URL + "/files/abc", Status: 200, Body: []byte("stale")}}))

	c, err := New(ctx, st, ts.URL)
	require.NoError(t, err)
	require.NoError(t, c.Activate(ctx))

	resp, err := get(t, c, ts.URL+"/files/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "network:/files/abc", body(t, resp))

	resp, err = get(t, c, ts.URL+"/thumbnails/abc", nil)
	require.NoError(t, err)
	assert.Equal(t, "network:/thumbnails/abc", body(t, resp))

	// nothing is cached at fetch time
	n, err := st.Count(ctx, DefaultCacheName)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRoundTrip_MissFallsBackToNetwork(t *testing.T) {
	srv := &shellServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	st := openStore(t)

	c, err := New(ctx, st, ts.URL)
	require.NoError(t, err)
	require.NoError(t, c.Install(ctx))

	resp, err := get(t, c, ts.URL+"/files?page=1", nil)
	require.NoError(t, err)
	assert.Empty(t, resp.Header.Get(HeaderSource))
	assert.Equal(t, "network:/files", body(t, resp))

	n, err := st.Count(ctx, DefaultCacheName)
	require.NoError(t, err)
	assert.Equal(t, len(Precache), n)
}

func TestRoundTrip_OfflineDocumentGetsIndex(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.PutAll(ctx, DefaultCacheName, []Entry{
		{URL: "http://gallery.local/", Status: 200, Header: http.Header{"Content-Type": {"text/html"}}, Body: []byte("<html>shell</html>")},
	}))

	c, err := New(ctx, st, "http://gallery.local", WithNext(downTransport{}))
	require.NoError(t, err)
	require.NoError(t, c.Activate(ctx))

	resp, err := get(t, c, "http://gallery.local/login", map[string]string{"Sec-Fetch-Dest": "document"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html", resp.Header.Get("Content-Type"))
	assert.Equal(t, "<html>shell</html>", body(t, resp))

	_, err = get(t, c, "http://gallery.local/api/other", nil)
	assert.Error(t, err, "non-navigation requests surface the network error")
}

func TestRoundTrip_InactivePassesThrough(t *testing.T) {
	srv := &shellServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.PutAll(ctx, DefaultCacheName, []Entry{{URL: ts.URL + "/", Status: 200, Body: []byte("cached")}}))

	c, err := New(ctx, st, ts.URL)
	require.NoError(t, err)
	resp, err := get(t, c, ts.URL+"/", nil)
	require.NoError(t, err)
	assert.Equal(t, "network:/", body(t, resp))
}

func TestNew_RestoresClaim(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	require.NoError(t, st.Claim(ctx, "custom"))

	c, err := New(ctx, st, "http://gallery.local", WithName("custom"))
	require.NoError(t, err)
	assert.Equal(t, "custom", c.Name())
	assert.True(t, c.Active())
}
