package sink

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DirSink stores tables as files under Root/bucket/key.
type DirSink struct {
	Root string
}

// NewDir returns a sink rooted at root.
func NewDir(root string) *DirSink {
	return &DirSink{Root: root}
}

func (d *DirSink) path(bucket, key string) (string, error) {
	p := filepath.Join(d.Root, bucket, filepath.FromSlash(key))
	rel, err := filepath.Rel(d.Root, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("key %q escapes sink root", key)
	}
	return p, nil
}

// Exists reports whether the file for bucket/key exists.
func (d *DirSink) Exists(ctx context.Context, bucket, key string) (bool, error) {
	p, err := d.path(bucket, key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Delete removes the file for bucket/key.
func (d *DirSink) Delete(ctx context.Context, bucket, key string) error {
	p, err := d.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// WriteTable writes to a temporary file in the target directory and renames
// it into place.
func (d *DirSink) WriteTable(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	p, err := d.path(bucket, key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".licensekit-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), p)
}
