// Package sink writes report tables to object storage.
//
// Storage offers no upsert, so Export replaces an object by checking for it,
// deleting it when present and only then writing the new table.
package sink

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/klytics/licensekit/internal/formats/table"
)

// ErrNotFound is returned by Delete when the object does not exist.
var ErrNotFound = errors.New("object not found")

// ResultSink stores encoded tables under bucket/key.
type ResultSink interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Delete(ctx context.Context, bucket, key string) error
	// WriteTable stores data in a single all-or-nothing write.
	WriteTable(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// Key joins prefix and a report name and adds the format's extension.
func Key(prefix, name string, f table.Format) string {
	return strings.TrimPrefix(path.Join(prefix, name+f.Ext()), "/")
}

// Outcome describes what Export did.
type Outcome struct {
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	Rows     int    `json:"rows"`
	Bytes    int    `json:"bytes"`
	Replaced bool   `json:"replaced"`
}

// Export encodes t and writes it to bucket/key, removing any stale object
// first. A failed existence check aborts the export.
func Export(ctx context.Context, s ResultSink, bucket, key string, t *table.Table, f table.Format) (Outcome, error) {
	out := Outcome{Bucket: bucket, Key: key, Rows: t.Len()}

	data, err := table.Encode(t, f)
	if err != nil {
		return out, fmt.Errorf("encoding %s: %w", key, err)
	}
	out.Bytes = len(data)

	exists, err := s.Exists(ctx, bucket, key)
	if err != nil {
		return out, fmt.Errorf("checking %s/%s: %w", bucket, key, err)
	}
	if exists {
		if err := s.Delete(ctx, bucket, key); err != nil && !errors.Is(err, ErrNotFound) {
			return out, fmt.Errorf("deleting %s/%s: %w", bucket, key, err)
		}
		out.Replaced = true
	}
	if err := s.WriteTable(ctx, bucket, key, data, f.ContentType()); err != nil {
		return out, fmt.Errorf("writing %s/%s: %w", bucket, key, err)
	}
	return out, nil
}
