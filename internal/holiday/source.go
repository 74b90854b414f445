package holiday

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	appLog "eventcal/internal/log"
)

// ErrNoResource means the year simply has no holiday resource.
var ErrNoResource = errors.New("holiday: no resource for year")

const (
	FormatJSON = "json"
	FormatICS  = "ics"
)

// Resource is a raw per-year holiday document.
type Resource struct {
	Name   string
	Format string
	Body   []byte
}

// Source yields the raw holiday resource for a year.
type Source interface {
	Open(ctx context.Context, year int) (Resource, error)
}

// DirSource reads <dir>/<year>.json, falling back to <dir>/<year>.ics.
type DirSource struct {
	Dir string
}

func (d DirSource) Open(_ context.Context, year int) (Resource, error) {
	for _, format := range []string{FormatJSON, FormatICS} {
		name := filepath.Join(d.Dir, strconv.Itoa(year)+"."+format)
		body, err := os.ReadFile(name)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Resource{}, err
		}
		return Resource{Name: name, Format: format, Body: body}, nil
	}
	return Resource{}, ErrNoResource
}

// URLSource fetches holiday resources over HTTP. Template contains the
// literal "{year}", e.g. "https://example.com/holidays/{year}.json".
// Responses are cached on disk and revalidated with ETag / Last-Modified.
type URLSource struct {
	Template string
	client   *http.Client
	cacheDir string
}

// cacheEntry holds HTTP cache metadata for a single URL.
type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func NewURLSource(template, cacheDir string) *URLSource {
	if cacheDir == "" {
		cacheDir = "./var/holiday-cache"
	}
	return &URLSource{
		Template: template,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		cacheDir: cacheDir,
	}
}

func (u *URLSource) Open(ctx context.Context, year int) (Resource, error) {
	url := strings.ReplaceAll(u.Template, "{year}", strconv.Itoa(year))
	format := FormatJSON
	if strings.HasSuffix(strings.ToLower(strings.SplitN(url, "?", 2)[0]), ".ics") {
		format = FormatICS
	}

	body, err := u.fetch(ctx, url)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Name: redactURL(url), Format: format, Body: body}, nil
}

func (u *URLSource) fetch(ctx context.Context, url string) ([]byte, error) {
	cachePath := u.cachePathForURL(url)
	if err := os.MkdirAll(cachePath, 0o700); err != nil {
		return nil, err
	}

	meta, _ := loadCacheMeta(cachePath)
	cachedBody, _ := os.ReadFile(filepath.Join(cachePath, "body"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if len(cachedBody) > 0 {
		if meta.ETag != "" {
			req.Header.Set("If-None-Match", meta.ETag)
		}
		if meta.LastModified != "" {
			req.Header.Set("If-Modified-Since", meta.LastModified)
		}
	}

	resp, err := u.client.Do(req)
	if err != nil {
		if len(cachedBody) > 0 {
			appLog.Error("holiday fetch failed, using cached body", err, "url", redactURL(url))
			return cachedBody, nil
		}
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		newMeta := cacheEntry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := saveCache(cachePath, newMeta, body); err != nil {
			appLog.Error("holiday cache save failed", err, "url", redactURL(url))
		}
		return body, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return nil, errors.New("received 304 Not Modified but no cached body available")
		}
		return cachedBody, nil

	case http.StatusNotFound, http.StatusGone:
		return nil, ErrNoResource

	default:
		if len(cachedBody) > 0 {
			appLog.Error("holiday fetch non-OK, using cached body", errors.New(resp.Status), "url", redactURL(url))
			return cachedBody, nil
		}
		return nil, fmt.Errorf("holiday fetch: %s", resp.Status)
	}
}

func (u *URLSource) cachePathForURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return filepath.Join(u.cacheDir, hex.EncodeToString(sum[:8]))
}

func loadCacheMeta(cachePath string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := os.ReadFile(filepath.Join(cachePath, "meta.json"))
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func saveCache(cachePath string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := os.WriteFile(filepath.Join(cachePath, "body"), body, 0o600); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(cachePath, "meta.json"), data, 0o600)
}

// redactURL keeps scheme and host only.
func redactURL(u string) string {
	i := strings.Index(u, "://")
	if i == -1 {
		return "...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j >= 0 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + "/...(redacted)"
}
