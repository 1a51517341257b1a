// Package backend is the HTTP client for the gallery server. It implements
// media.Provider.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"image-syncer/internal/logging"
	"image-syncer/internal/media"
)

// Version is reported in the User-Agent header.
var Version = "dev"

// Client talks to one gallery server. It keeps the login session in a
// cookie jar and is safe for concurrent use.
type Client struct {
	base       *url.URL
	http       *http.Client
	noRedirect *http.Client
	pageSize   int
	log        *logrus.Entry
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithTransport routes requests through rt, e.g. the offline cache.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.http.Transport = rt
		c.noRedirect.Transport = rt
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
		c.noRedirect.Timeout = d
	}
}

// WithPageSize sets the page size used when listing.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = logging.Component(log, "backend") }
}

// New returns a client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("server url %q is not absolute", baseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		base:     u,
		pageSize: 50,
		log:      logging.Component(nil, "backend"),
		now:      time.Now,
	}
	c.http = &http.Client{
		Jar: jar,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			// protected routes bounce anonymous requests to the login page
			if strings.HasSuffix(req.URL.Path, "/login") {
				return ErrUnauthorized
			}
			if len(via) >= 10 {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			return nil
		},
	}
	c.noRedirect = &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// BaseURL returns the server URL.
func (c *Client) BaseURL() string { return c.base.String() }

// MediaURL is the address a browser would use for the full-size item.
func (c *Client) MediaURL(id string) string {
	return c.endpoint("files", id).String()
}

func (c *Client) endpoint(elems ...string) *url.URL {
	return c.base.JoinPath(elems...)
}

func (c *Client) newRequest(ctx context.Context, method string, u *url.URL, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "image-syncer/"+Version)
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

func (c *Client) do(op string, hc *http.Client, req *http.Request) (*http.Response, error) {
	start := c.now()
	resp, err := hc.Do(req)
	fields := logrus.Fields{
		"op":      op,
		"method":  req.Method,
		"path":    req.URL.Path,
		"request": req.Header.Get("X-Request-ID"),
	}
	if err != nil {
		c.log.WithFields(fields).WithError(err).Warn("request failed")
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	fields["status"] = resp.StatusCode
	fields["elapsed"] = c.now().Sub(start).Round(time.Millisecond)
	c.log.WithFields(fields).Debug("request")
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		return nil, readAPIError(op, resp)
	}
	return resp, nil
}

func (c *Client) doJSON(op string, req *http.Request, out interface{}) error {
	resp, err := c.do(op, c.http, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// Login opens a session with the server's form login.
func (c *Client) Login(ctx context.Context, username, password string) error {
	form := url.Values{"username": {username}, "password": {password}}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("login"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do("login", c.noRedirect, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	// success redirects to the index; failure re-renders the login form
	loc := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode > 399 || strings.HasSuffix(strings.SplitN(loc, "?", 2)[0], "/login") {
		return fmt.Errorf("login: %w", ErrUnauthorized)
	}
	c.log.WithField("user", username).Info("logged in")
	return nil
}

type fileJSON struct {
	ID           string  `json:"id"`
	OriginalName string  `json:"original_name"`
	Filename     string  `json:"filename"`
	FileType     string  `json:"file_type"`
	MIMEType     string  `json:"mime_type"`
	FileSize     int64   `json:"file_size"`
	CreatedAt    string  `json:"created_at"`
	TakenDate    *string `json:"taken_date"`
}

type listJSON struct {
	Files      []fileJSON `json:"files"`
	Pagination struct {
		Page       int  `json:"page"`
		PerPage    int  `json:"per_page"`
		TotalCount int  `json:"total_count"`
		TotalPages int  `json:"total_pages"`
		HasNext    bool `json:"has_next"`
	} `json:"pagination"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

func (f fileJSON) item() media.Item {
	name := f.OriginalName
	if name == "" {
		name = f.Filename
	}
	kind := media.KindImage
	if f.FileType == string(media.KindVideo) {
		kind = media.KindVideo
	}
	mimeType := f.MIMEType
	if mimeType == "" {
		mimeType = media.MIMEFor(name, kind)
	}
	return media.Item{
		ID:        f.ID,
		Name:      name,
		Size:      f.FileSize,
		CreatedAt: parseTime(f.CreatedAt),
		Kind:      kind,
		MIMEType:  mimeType,
	}
}

// List fetches every page of the media list, newest first as ordered by the
// server.
func (c *Client) List(ctx context.Context) (media.Snapshot, error) {
	var out media.Snapshot
	for page := 1; ; page++ {
		u := c.endpoint("files")
		q := url.Values{}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.pageSize))
		q.Set("_t", strconv.FormatInt(c.now().UnixMilli(), 10))
		u.RawQuery = q.Encode()

		req, err := c.newRequest(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Cache-Control", "no-cache")
		req.Header.Set("Pragma", "no-cache")

		var body listJSON
		if err := c.doJSON("list", req, &body); err != nil {
			return nil, err
		}
		for _, f := range body.Files {
			out = append(out, f.item())
		}
		if !body.Pagination.HasNext || len(body.Files) == 0 {
			break
		}
	}
	c.log.WithField("count", len(out)).Debug("listed media")
	return out, nil
}

func (c *Client) stream(ctx context.Context, op string, u *url.URL) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(op, c.http, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Fetch streams the full-size media. The caller closes the reader.
func (c *Client) Fetch(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.stream(ctx, "fetch "+id, c.endpoint("files", id))
}

// Thumbnail streams the thumbnail for id.
func (c *Client) Thumbnail(ctx context.Context, id string) (io.ReadCloser, error) {
	return c.stream(ctx, "thumbnail "+id, c.endpoint("thumbnails", id))
}

// Delete removes one item.
func (c *Client) Delete(ctx context.Context, id string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, c.endpoint("files", id), nil)
	if err != nil {
		return err
	}
	if err := c.doJSON("delete "+id, req, nil); err != nil {
		return err
	}
	c.log.WithField("id", id).Info("deleted")
	return nil
}

// Upload sends files in one multipart request.
func (c *Client) Upload(ctx context.Context, files []media.UploadFile) (media.UploadResult, error) {
	if len(files) == 0 {
		return media.UploadResult{}, nil
	}
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("upload"), pr)
	if err != nil {
		pr.Close()
		return media.UploadResult{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var body struct {
		Files []fileJSON `json:"files"`
	}
	err = c.doJSON("upload", req, &body)
	pr.Close()
	if err != nil {
		return media.UploadResult{}, err
	}
	res := media.UploadResult{IDs: make([]string, 0, len(body.Files))}
	for _, f := range body.Files {
		res.IDs = append(res.IDs, f.ID)
	}
	c.log.WithField("count", len(res.IDs)).Info("uploaded")
	return res, nil
}

func writeParts(mw *multipart.Writer, files []media.UploadFile) error {
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.Name)
		if err != nil {
			return err
		}
		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", f.Name, err)
		}
		_, err = io.Copy(part, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

// Scan asks the server to index its external storage.
func (c *Client) Scan(ctx context.Context, opts media.ScanOptions) (media.ScanResult, error) {
	payload := map[string]interface{}{"force": opts.Force}
	if opts.MaxFiles > 0 {
		payload["max_files"] = opts.MaxFiles
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return media.ScanResult{}, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("scan"), bytes.NewReader(data))
	if err != nil {
		return media.ScanResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var body struct {
		Success bool   `json:"success"`
		Scanned int    `json:"scanned"`
		Added   int    `json:"added"`
		Error   string `json:"error"`
	}
	if err := c.doJSON("scan", req, &body); err != nil {
		return media.ScanResult{}, err
	}
	if !body.Success {
		return media.ScanResult{}, &APIError{Status: http.StatusOK, Message: body.Error, Op: "scan"}
	}
	return media.ScanResult{Success: true, Scanned: body.Scanned, Added: body.Added}, nil
}

// Cleanup asks the server to drop entries whose files vanished and returns
// their ids.
func (c *Client) Cleanup(ctx context.Context) ([]string, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("cleanup"), nil)
	if err != nil {
		return nil, err
	}
	var body struct {
		CleanedFiles []string `json:"cleaned_files"`
	}
	if err := c.doJSON("cleanup", req, &body); err != nil {
		return nil, err
	}
	return body.CleanedFiles, nil
}

var _ media.Provider = (*Client)(nil)
