package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// FileStore keeps the session record in a single file shared by every
// seedhub process of the same user. Writes use temp file + rename for
// crash safety; other processes learn about changes through Watch.
type FileStore struct {
	filePath string
}

// Compile-time checks that FileStore implements Store and Watcher.
var (
	_ Store   = (*FileStore)(nil)
	_ Watcher = (*FileStore)(nil)
)

// NewFileStore creates a FileStore for the given path, creating parent
// directories with 0700 permissions if they don't exist.
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}

	return &FileStore{
		filePath: filePath,
	}, nil
}

// Read returns the stored record bytes. Returns ErrNotFound if the file
// doesn't exist, and an error if it has insecure permissions.
func (f *FileStore) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if info.Mode().Perm() != 0600 {
		return nil, fmt.Errorf("insecure permissions on %s: %04o (expected 0600)", f.filePath, info.Mode().Perm())
	}

	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound
	}
	return data, nil
}

// Write atomically saves the record using temp file + rename, with 0600
// permissions (owner read/write only).
func (f *FileStore) Write(ctx context.Context, record []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Secure temp file in the same directory so the rename stays atomic
	dir := filepath.Dir(f.filePath)
	tempFile, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tempName := tempFile.Name()
	defer func() { _ = os.Remove(tempName) }()
	defer func() { _ = tempFile.Close() }()

	if err := tempFile.Chmod(0600); err != nil {
		return err
	}
	if _, err := tempFile.Write(record); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}

	return os.Rename(tempName, f.filePath)
}

// Clear removes the session file. A missing file is not an error.
func (f *FileStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.Remove(f.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Watch signals after every change to the session file made by another
// process. The parent directory is watched rather than the file itself:
// atomic rename-into-place and removal would otherwise drop the watch.
func (f *FileStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(f.filePath)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", filepath.Dir(f.filePath), err)
	}

	// Buffer of one: bursts of events for the same change coalesce into a
	// single signal, receivers re-read the file anyway.
	signals := make(chan struct{}, 1)

	go func() {
		defer close(signals)
		defer func() { _ = watcher.Close() }()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != filepath.Base(f.filePath) {
					continue
				}
				if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Rename | fsnotify.Remove) {
					continue
				}
				select {
				case signals <- struct{}{}:
				default:
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
				// Watch errors are transient; the next real change still
				// produces an event.
			}
		}
	}()

	return signals, nil
}
