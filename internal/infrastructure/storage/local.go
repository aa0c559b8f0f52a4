package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/admissions-hub/admissions-hub/internal/domain/application"
	"github.com/admissions-hub/admissions-hub/internal/domain/shared"
)

// LocalStore writes documents under a directory served by the HTTP API.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ application.FileStore = (*LocalStore)(nil)

// NewLocalStore creates the directory if needed. baseURL is the public
// prefix the files are served under, e.g. http://localhost:8080/files.
func NewLocalStore(dir, baseURL string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("storage: local directory is required")
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, fmt.Errorf("storage: create %s: %w", abs, err)
	}
	return &LocalStore{dir: abs, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Dir returns the root directory.
func (s *LocalStore) Dir() string {
	return s.dir
}

// Save writes the file to <dir>/<owner>/<key>-<uuid><ext>.
func (s *LocalStore) Save(ctx context.Context, owner shared.UserID, key application.DocumentKey, file application.Upload) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	rel := path.Join(sanitize(owner.String()), fmt.Sprintf("%s-%s%s", key, uuid.NewString(), extensionOf(file)))
	full := filepath.Join(s.dir, filepath.FromSlash(rel))

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("storage: create owner directory: %w", err)
	}
	if err := os.WriteFile(full, file.Data, 0o640); err != nil {
		return "", fmt.Errorf("storage: write %s: %w", rel, err)
	}

	return s.baseURL + "/" + rel, nil
}

// Delete removes a file previously returned by Save. Unknown or missing files are ignored.
func (s *LocalStore) Delete(ctx context.Context, location string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rel, ok := strings.CutPrefix(location, s.baseURL+"/")
	if !ok {
		return nil
	}
	full := filepath.Join(s.dir, filepath.FromSlash(path.Clean("/" + rel)))
	if !strings.HasPrefix(full, s.dir+string(filepath.Separator)) {
		return fmt.Errorf("storage: location %q escapes the storage directory", location)
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	return nil
}

// sanitize keeps a path segment to a safe character set.
func sanitize(segment string) string {
	var b strings.Builder
	for _, r := range segment {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
