package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Sink stores encoded snapshots under a name.
type Sink interface {
	Put(ctx context.Context, name string, data []byte) error
	Describe() string
}

// FileSink writes snapshots into a local directory.
type FileSink struct {
	Dir string
}

func (f FileSink) Describe() string { return "file:" + f.Dir }

// Put writes atomically: a temp file in the same directory is renamed into place.
func (f FileSink) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(f.Dir, 0o700); err != nil {
		return fmt.Errorf("creating backup dir: %w", err)
	}
	tmp, err := os.CreateTemp(f.Dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return fmt.Errorf("chmod snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(f.Dir, name)); err != nil {
		return fmt.Errorf("renaming snapshot: %w", err)
	}
	return nil
}
