// Package offline keeps the gallery's app shell available without a network.
// A Cache is an http.RoundTripper that answers from a versioned, precached
// set of static resources and passes media traffic straight through.
package offline

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"image-syncer/internal/logging"
)

// DefaultCacheName is bumped whenever the precache list changes.
const DefaultCacheName = "image-syncer-v2"

// Precache is the app shell stored at install time.
var Precache = []string{
	"/",
	"/manifest.json",
	"/static/css/main.css",
	"/static/js/main.js",
	"/static/icon-192.png",
	"/static/icon-512.png",
}

// HeaderSource marks responses served from the cache.
const HeaderSource = "X-Image-Syncer-Cache"

// Status describes the cache database.
type Status struct {
	Name    string
	Active  bool
	Entries int
	Caches  []string
}

// Cache implements the offline policy on top of a Store.
type Cache struct {
	name  string
	base  *url.URL
	store *Store
	next  http.RoundTripper
	log   *logrus.Entry

	mu     sync.RWMutex
	active bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithName overrides DefaultCacheName.
func WithName(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.name = name
		}
	}
}

// WithNext sets the network transport. Defaults to http.DefaultTransport.
func WithNext(rt http.RoundTripper) Option {
	return func(c *Cache) { c.next = rt }
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Cache) { c.log = logging.Component(log, "offline") }
}

// New returns a cache for the server at baseURL. A cache claimed by an
// earlier run starts active.
func New(ctx context.Context, store *Store, baseURL string, opts ...Option) (*Cache, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	c := &Cache{
		name:  DefaultCacheName,
		base:  u,
		store: store,
		next:  http.DefaultTransport,
		log:   logging.Component(nil, "offline"),
	}
	for _, o := range opts {
		o(c)
	}
	claimed, err := store.Claimed(ctx, c.name)
	if err != nil {
		return nil, fmt.Errorf("read cache claim: %w", err)
	}
	c.active = claimed
	return c, nil
}

// Name returns the cache name.
func (c *Cache) Name() string { return c.name }

// Active reports whether the cache answers requests.
func (c *Cache) Active() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

func (c *Cache) resolve(p string) *url.URL {
	return c.base.ResolveReference(&url.URL{Path: strings.TrimPrefix(p, "/")})
}

// Install fetches the precache list and stores it, then activates. Nothing
// is stored unless every resource fetched successfully.
func (c *Cache) Install(ctx context.Context) error {
	entries := make([]Entry, 0, len(Precache))
	for _, p := range Precache {
		u := c.resolve(p)
		e, err := c.fetch(ctx, u)
		if err != nil {
			c.log.WithError(err).WithField("url", u.String()).Warn("install aborted")
			return fmt.Errorf("install %s: %w", c.name, err)
		}
		entries = append(entries, e)
	}
	if err := c.store.PutAll(ctx, c.name, entries); err != nil {
		return fmt.Errorf("install %s: %w", c.name, err)
	}
	c.log.WithField("entries", len(entries)).Info("installed")
	return c.Activate(ctx)
}

func (c *Cache) fetch(ctx context.Context, u *url.URL) (Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Entry{}, err
	}
	resp, err := c.next.RoundTrip(req)
	if err != nil {
		return Entry{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Entry{}, fmt.Errorf("%s: status %d", u.Path, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Entry{}, fmt.Errorf("%s: %w", u.Path, err)
	}
	return Entry{
		URL:      cacheKey(u),
		Status:   resp.StatusCode,
		Header:   resp.Header.Clone(),
		Body:     body,
		StoredAt: time.Now(),
	}, nil
}

// Activate deletes every cache other than the current one and claims it.
func (c *Cache) Activate(ctx context.Context) error {
	names, err := c.store.CacheNames(ctx)
	if err != nil {
		return fmt.Errorf("activate %s: %w", c.name, err)
	}
	for _, n := range names {
		if n == c.name {
			continue
		}
		if err := c.store.DeleteCache(ctx, n); err != nil {
			return fmt.Errorf("delete old cache %s: %w", n, err)
		}
		c.log.WithField("cache", n).Info("deleted old cache")
	}
	if err := c.store.Claim(ctx, c.name); err != nil {
		return fmt.Errorf("claim %s: %w", c.name, err)
	}
	c.mu.Lock()
	c.active = true
	c.mu.Unlock()
	return nil
}

// Status summarises the cache database.
func (c *Cache) Status(ctx context.Context) (Status, error) {
	n, err := c.store.Count(ctx, c.name)
	if err != nil {
		return Status{}, err
	}
	names, err := c.store.CacheNames(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Name: c.name, Active: c.Active(), Entries: n, Caches: names}, nil
}

// bypass reports whether u is media traffic that must always hit the network.
func bypass(u *url.URL) bool {
	s := u.String()
	return strings.Contains(s, "/files/") || strings.Contains(s, "/thumbnails/")
}

func cacheKey(u *url.URL) string {
	k := *u
	k.Fragment = ""
	k.RawFragment = ""
	if k.Path == "" {
		k.Path = "/"
	}
	return k.String()
}

// RoundTrip serves app-shell requests cache first and falls back to the
// network. Responses are never added to the cache here.
func (c *Cache) RoundTrip(req *http.Request) (*http.Response, error) {
	if bypass(req.URL) || !c.Active() {
		return c.next.RoundTrip(req)
	}
	ctx := req.Context()
	if req.Method == http.MethodGet {
		e, err := c.store.Match(ctx, c.name, cacheKey(req.URL))
		if err != nil {
			c.log.WithError(err).Warn("cache lookup failed")
		}
		if e != nil {
			return e.response(req), nil
		}
	}
	resp, err := c.next.RoundTrip(req)
	if err == nil {
		return resp, nil
	}
	if req.Header.Get("Sec-Fetch-Dest") == "document" {
		if e, _ := c.store.Match(ctx, c.name, cacheKey(c.resolve("/"))); e != nil {
			c.log.WithField("url", req.URL.String()).Debug("offline, serving cached index")
			return e.response(req), nil
		}
	}
	return nil, err
}

func (e *Entry) response(req *http.Request) *http.Response {
	h := e.Header.Clone()
	if h == nil {
		h = http.Header{}
	}
	h.Set(HeaderSource, "hit")
	return &http.Response{
		Status:        strconv.Itoa(e.Status) + " " + http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(e.Body)),
		ContentLength: int64(len(e.Body)),
		Request:       req,
	}
}

var _ http.RoundTripper = (*Cache)(nil)
