package media

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"strings"
	"time"
)

// Kind distinguishes still images from videos.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

// Item is one entry of the gallery as reported by the server.
type Item struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"createdAt"`
	Kind      Kind      `json:"kind"`
	MIMEType  string    `json:"mimeType"`
}

// IsVideo reports whether the item should be rendered as a video.
func (it Item) IsVideo() bool { return it.Kind == KindVideo }

// Snapshot is the ordered media list as last fetched from the server.
// It is replaced wholesale on refresh and never patched in place.
type Snapshot []Item

// Len returns the number of items.
func (s Snapshot) Len() int { return len(s) }

// Valid reports whether i indexes an item of the snapshot.
func (s Snapshot) Valid(i int) bool { return i >= 0 && i < len(s) }

// IDs returns the set of identifiers present in the snapshot.
func (s Snapshot) IDs() map[string]struct{} {
	out := make(map[string]struct{}, len(s))
	for _, it := range s {
		out[it.ID] = struct{}{}
	}
	return out
}

// Find returns the index of the item with the given id, or -1.
func (s Snapshot) Find(id string) int {
	for i, it := range s {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// UploadFile is a local file handed to the upload transport.
type UploadFile struct {
	Name string
	Size int64
	Open func() (io.ReadCloser, error)
}

// UploadResult reports what the server accepted.
type UploadResult struct {
	IDs []string
}

// ScanOptions control a server-side scan of external storage.
type ScanOptions struct {
	Force    bool
	MaxFiles int
}

// ScanResult is the outcome of an external-storage scan.
type ScanResult struct {
	Success bool
	Scanned int
	Added   int
}

// Provider is the gallery backend. It owns what media exists; callers only
// hold snapshots.
type Provider interface {
	List(ctx context.Context) (Snapshot, error)
	Fetch(ctx context.Context, id string) (io.ReadCloser, error)
	Thumbnail(ctx context.Context, id string) (io.ReadCloser, error)
	Delete(ctx context.Context, id string) error
	Upload(ctx context.Context, files []UploadFile) (UploadResult, error)
	Scan(ctx context.Context, opts ScanOptions) (ScanResult, error)
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".bmp": true, ".webp": true, ".heic": true, ".heif": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".avi": true, ".mkv": true, ".webm": true, ".m4v": true}
)

// KindOf guesses the media kind from a file name. ok is false for files the
// server does not accept.
func KindOf(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExts[ext]:
		return KindImage, true
	case videoExts[ext]:
		return KindVideo, true
	}
	return "", false
}

var mimeTypes = map[string]string{
	".heic": "image/heic",
	".heif": "image/heif",
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
}

// MIMEFor returns a MIME type for name, falling back to a generic type per kind.
func MIMEFor(name string, kind Kind) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := mimeTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if kind == KindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}
