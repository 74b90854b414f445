package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Folder is the fixed prefix for event images inside the bucket.
const Folder = "events"

// ErrExists is returned by Upload when the path is already taken.
var ErrExists = errors.New("media: object already exists")

// Bucket is the object storage surface for event images.
type Bucket interface {
	// Upload stores r under objectPath and never overwrites.
	Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) error
	// PublicURL returns a retrievable URL for objectPath, or "" when the
	// path is not valid.
	PublicURL(objectPath string) string
}

var unsafeChars = regexp.MustCompile(`[^\w.\-()]+`)

// SafeName replaces every run of characters outside [A-Za-z0-9_.-()] with
// a single underscore.
func SafeName(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" || name == "" {
		name = "image"
	}
	return unsafeChars.ReplaceAllString(name, "_")
}

// NewObjectPath returns events/<uuid>-<safe name>.
func NewObjectPath(filename string) string {
	return Folder + "/" + uuid.NewString() + "-" + SafeName(filename)
}

// Dir is a Bucket on the local filesystem. Objects are published under
// URLPrefix, which the web server maps back onto Root.
type Dir struct {
	Root      string
	URLPrefix string
}

func NewDir(root, urlPrefix string) (*Dir, error) {
	if root == "" {
		return nil, errors.New("media: root is empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("media: create root: %w", err)
	}
	if !strings.HasSuffix(urlPrefix, "/") {
		urlPrefix += "/"
	}
	return &Dir{Root: root, URLPrefix: urlPrefix}, nil
}

func (d *Dir) Upload(ctx context.Context, objectPath string, r io.Reader, contentType string) error {
	full, err := d.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, objectPath)
		}
		return err
	}

	if _, err := io.Copy(f, readerWithContext(ctx, r)); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("media: write %s: %w", objectPath, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(full)
		return err
	}
	return nil
}

func (d *Dir) PublicURL(objectPath string) string {
	if _, err := d.resolve(objectPath); err != nil {
		return ""
	}
	parts := strings.Split(objectPath, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return d.URLPrefix + strings.Join(parts, "/")
}

// FS exposes the bucket contents for serving.
func (d *Dir) FS() fs.FS {
	return os.DirFS(d.Root)
}

func (d *Dir) resolve(objectPath string) (string, error) {
	if objectPath == "" || !fs.ValidPath(objectPath) {
		return "", fmt.Errorf("media: invalid object path %q", objectPath)
	}
	return filepath.Join(d.Root, filepath.FromSlash(objectPath)), nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	if ctx == nil {
		return r
	}
	return ctxReader{ctx: ctx, r: r}
}
