package watermark

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"tower_bot/internal/models"
)

var fileNames = map[models.Stream]string{
	models.StreamPosts:    "last_processed_timestamp.txt",
	models.StreamMessages: "last_processed_pm_timestamp.txt",
}

// FileBackend keeps one text file per stream inside Dir.
type FileBackend struct {
	Dir string
}

func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileBackend{Dir: dir}, nil
}

func (b *FileBackend) path(stream models.Stream) (string, error) {
	name, ok := fileNames[stream]
	if !ok {
		return "", fmt.Errorf("unknown stream %q", stream)
	}
	return filepath.Join(b.Dir, name), nil
}

func (b *FileBackend) Load(_ context.Context, stream models.Stream) (string, bool, error) {
	path, err := b.path(stream)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(data), true, nil
}

// Save writes through a temp file and renames it over the old value, so a crash
// leaves either the previous or the new watermark on disk.
func (b *FileBackend) Save(_ context.Context, stream models.Stream, value string) error {
	path, err := b.path(stream)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.Dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (b *FileBackend) Close() error { return nil }
