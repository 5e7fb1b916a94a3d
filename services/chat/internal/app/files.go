package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"wisechat/pkg/domain"
	"wisechat/pkg/storage"
)

// GetFile returns a file row by id.
func (a *App) GetFile(ctx context.Context, id int64) (domain.File, error) {
	f, ok, err := a.store.GetFile(ctx, id)
	if err != nil {
		return domain.File{}, fmt.Errorf("fetch file: %w", err)
	}
	if !ok {
		return domain.File{}, ErrNotFound
	}
	return f, nil
}

// GetFileByPath returns a file row by storage path.
func (a *App) GetFileByPath(ctx context.Context, path string) (domain.File, error) {
	f, ok, err := a.store.GetFileByPath(ctx, path)
	if err != nil {
		return domain.File{}, fmt.Errorf("fetch file: %w", err)
	}
	if !ok {
		return domain.File{}, ErrNotFound
	}
	return f, nil
}

// GetFileForMessage returns a file only when it is attached to messageID.
func (a *App) GetFileForMessage(ctx context.Context, messageID, fileID int64) (domain.File, error) {
	f, ok, err := a.store.GetFileForMessage(ctx, messageID, fileID)
	if err != nil {
		return domain.File{}, fmt.Errorf("fetch file: %w", err)
	}
	if !ok {
		return domain.File{}, ErrNotFound
	}
	return f, nil
}

// OpenFile returns the file row and a reader over its bytes. The caller closes the reader.
func (a *App) OpenFile(ctx context.Context, id int64) (domain.File, io.ReadCloser, error) {
	f, err := a.GetFile(ctx, id)
	if err != nil {
		return domain.File{}, nil, err
	}
	rc, err := a.blobs.Open(ctx, f.Path)
	if err != nil {
		if errors.Is(err, storage.ErrBlobNotFound) {
			return domain.File{}, nil, ErrNotFound
		}
		return domain.File{}, nil, fmt.Errorf("open file: %w", err)
	}
	return f, rc, nil
}

// ListFiles returns a page of file rows.
func (a *App) ListFiles(ctx context.Context, limit, offset int) ([]domain.File, error) {
	files, err := a.store.ListFiles(ctx, pageLimit(limit), offset)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// DeleteFile removes a file row and its bytes, returning the removed path.
func (a *App) DeleteFile(ctx context.Context, id int64) (string, error) {
	path, ok, err := a.store.DeleteFile(ctx, id)
	if err != nil {
		return "", fmt.Errorf("delete file: %w", err)
	}
	if !ok {
		return "", ErrNotFound
	}
	a.removeBlobs(ctx, []string{path})
	return path, nil
}

// UpdateFileSize corrects the recorded size for a storage path.
func (a *App) UpdateFileSize(ctx context.Context, path string, size int64) error {
	if size < 0 {
		return fmt.Errorf("%w: negative size", ErrInvalidInput)
	}
	ok, err := a.store.UpdateFileSize(ctx, path, size)
	if err != nil {
		return fmt.Errorf("update file size: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
