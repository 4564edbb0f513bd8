// Package filesystem contains filesystem-based adapter implementations.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/example/filedupe/internal/ports/secondary"
)

// PublicScheme prefixes locators stored under the files root.
const PublicScheme = "public://"

// ContentStore implements secondary.ContentStore on a local directory.
type ContentStore struct {
	root string
}

// NewContentStore creates a content store rooted at root.
// If root is empty, defaults to ./files.
func NewContentStore(root string) (*ContentStore, error) {
	if root == "" {
		root = "files"
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve files root: %w", err)
	}
	return &ContentStore{root: abs}, nil
}

// Root returns the absolute files root.
func (s *ContentStore) Root() string {
	return s.root
}

// Resolve maps a locator to a path. public:// locators and bare relative
// paths resolve under the root and may not escape it; absolute paths are
// used as they are.
func (s *ContentStore) Resolve(locator string) (string, error) {
	rel, public := strings.CutPrefix(locator, PublicScheme)
	if !public && filepath.IsAbs(locator) {
		return filepath.Clean(locator), nil
	}
	if scheme, _, ok := strings.Cut(rel, "://"); ok {
		return "", fmt.Errorf("unsupported locator scheme %q", scheme)
	}

	path := filepath.Join(s.root, filepath.FromSlash(rel))
	if path != s.root && !strings.HasPrefix(path, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("locator %q escapes the files root", locator)
	}
	return path, nil
}

// Locator maps a path under the root back to its public:// locator.
func (s *ContentStore) Locator(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s is outside the files root", path)
	}
	return PublicScheme + filepath.ToSlash(rel), nil
}

// Open returns a reader over the content behind locator.
func (s *ContentStore) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Resolve(locator)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", locator, err)
	}
	return f, nil
}

// Remove deletes the content behind locator. Missing content is not an error.
func (s *ContentStore) Remove(ctx context.Context, locator string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.Resolve(locator)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", locator, err)
	}
	return nil
}

// Ensure ContentStore implements the interface.
var _ secondary.ContentStore = (*ContentStore)(nil)
