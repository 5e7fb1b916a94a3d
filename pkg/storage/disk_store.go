package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DiskStore saves attachments on the local filesystem under a root directory.
type DiskStore struct {
	root string
}

// NewDiskStore creates the root directory if missing.
func NewDiskStore(root string) (*DiskStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve storage root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &DiskStore{root: abs}, nil
}

// Root returns the absolute storage root.
func (d *DiskStore) Root() string { return d.root }

// Save writes r to path, creating parent directories. Existing files are never overwritten.
func (d *DiskStore) Save(ctx context.Context, path string, r io.Reader) (int64, error) {
	target, err := d.resolve(path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return 0, fmt.Errorf("create upload dir: %w", err)
	}
	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	n, copyErr := io.Copy(out, &ctxReader{ctx: ctx, r: r})
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(target)
		return 0, fmt.Errorf("write file: %w", copyErr)
	}
	return n, nil
}

// Open returns a reader for the file at path.
func (d *DiskStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	target, err := d.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

// Remove deletes the file at path.
func (d *DiskStore) Remove(_ context.Context, path string) error {
	target, err := d.resolve(path)
	if err != nil {
		return err
	}
	if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// resolve maps path onto the root. Relative paths are joined to the root;
// absolute paths must already live under it.
func (d *DiskStore) resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("storage path is required")
	}
	target := filepath.Clean(path)
	if !filepath.IsAbs(target) {
		target = filepath.Join(d.root, target)
	}
	rel, err := filepath.Rel(d.root, target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return target, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
