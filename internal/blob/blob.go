// Package blob stores uploaded event images.
package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Shivanand-hulikatti/eventhub/internal/model"
	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload.
const MaxImageSize = 5 << 20

// ErrUnsupportedType is returned for anything but jpeg, png and gif.
var ErrUnsupportedType = fmt.Errorf("%w: only jpeg, png and gif images are allowed", model.ErrValidation)

var extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

// Store persists blobs and returns a public URL for them.
type Store interface {
	Put(ctx context.Context, data []byte, mimeType string) (string, error)
}

// LocalStore writes blobs under a directory that is served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

// NewLocalStore creates dir if needed. baseURL is the public prefix the
// directory is served under, e.g. http://localhost:8080/uploads.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the directory blobs are written to.
func (s *LocalStore) Dir() string { return s.dir }

// Put writes data to a new uniquely named file.
func (s *LocalStore) Put(ctx context.Context, data []byte, mimeType string) (string, error) {
	ext, ok := extensions[mimeType]
	if !ok {
		return "", ErrUnsupportedType
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty upload", model.ErrValidation)
	}
	if len(data) > MaxImageSize {
		return "", fmt.Errorf("%w: image exceeds 5MB", model.ErrValidation)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := uuid.NewString() + ext
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Join(fmt.Errorf("write upload: %w", err), os.Remove(path))
	}
	return s.baseURL + "/" + name, nil
}
