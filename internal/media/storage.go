package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix is the route local uploads are served from.
const PublicPrefix = "/uploads"

// Storage persists image objects under flat keys.
type Storage interface {
	Put(ctx context.Context, key, contentType string, r io.Reader, size int64) error
	Delete(ctx context.Context, key string) error
	// URL returns the public address of key. baseURL is the request origin and
	// is ignored by backends that have their own public endpoint.
	URL(baseURL, key string) string
	// KeyFor maps a URL issued by URL back to its key. URLs pointing
	// anywhere else report false.
	KeyFor(rawURL string) (string, bool)
}

var errInvalidKey = errors.New("invalid object key")

func validKey(key string) bool {
	return key != "" && key != "." && key != ".." && !strings.ContainsAny(key, `/\`)
}

// LocalStorage writes objects into a directory served at PublicPrefix.
type LocalStorage struct {
	dir     string
	baseURL string
}

// NewLocalStorage creates dir if needed. baseURL, when set, overrides the
// request origin in generated URLs.
func NewLocalStorage(dir, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStorage{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory objects are written to.
func (s *LocalStorage) Dir() string {
	return s.dir
}

// Put writes to a temp file in the same directory and renames it into place,
// so readers never observe a partial object.
func (s *LocalStorage) Put(_ context.Context, key, _ string, r io.Reader, _ int64) error {
	if !validKey(key) {
		return errInvalidKey
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(s.dir, key))
}

// Delete removes key. A missing object is not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if !validKey(key) {
		return errInvalidKey
	}
	err := os.Remove(filepath.Join(s.dir, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) URL(baseURL, key string) string {
	if s.baseURL != "" {
		baseURL = s.baseURL
	}
	return strings.TrimRight(baseURL, "/") + PublicPrefix + "/" + key
}

// KeyFor accepts any origin unless a public base URL is configured, since
// URLs are otherwise built from the request's own origin.
func (s *LocalStorage) KeyFor(rawURL string) (string, bool) {
	if s.baseURL != "" && !strings.HasPrefix(rawURL, s.baseURL+PublicPrefix+"/") {
		return "", false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	key, ok := strings.CutPrefix(u.Path, PublicPrefix+"/")
	if !ok || !validKey(key) {
		return "", false
	}
	return key, true
}
