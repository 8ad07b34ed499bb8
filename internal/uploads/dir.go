// Package uploads stores attachment files on the local filesystem.
package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidPath is returned for file names escaping the upload directory.
var ErrInvalidPath = errors.New("invalid upload path")

const attachmentsPrefix = "attachments"

// Dir is an upload directory. Stored file names are relative to its root.
type Dir struct {
	root string
}

// NewDir creates the directory if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(filepath.Join(root, attachmentsPrefix), 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Dir{root: root}, nil
}

// Save writes r under a fresh name keeping the extension of originalName
// and returns the stored name.
func (d *Dir) Save(r io.Reader, originalName string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filepath.Base(originalName)))
	name := attachmentsPrefix + "/" + uuid.NewString() + ext

	path, err := d.Path(name)
	if err != nil {
		return "", err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return name, nil
}

// Path resolves a stored name to a filesystem path inside the root.
func (d *Dir) Path(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if clean == "." || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, name)
	}
	return filepath.Join(d.root, clean), nil
}

// Remove deletes stored files. Missing files are ignored.
func (d *Dir) Remove(_ context.Context, names ...string) error {
	var errs []error
	for _, name := range names {
		path, err := d.Path(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
