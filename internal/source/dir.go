package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klytics/licensekit/internal/formats/table"
)

// DirSource serves datasets from <dir>/<dataset>.{csv,json,xlsx}, applying
// filters in memory. It is used for offline runs against exported snapshots.
type DirSource struct {
	Dir string
}

// NewDir returns a DirSource rooted at dir.
func NewDir(dir string) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("source directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source path %s is not a directory", dir)
	}
	return &DirSource{Dir: dir}, nil
}

// Extensions lists the file types a DirSource reads, in lookup order.
var Extensions = []string{".csv", ".json", ".xlsx"}

// Path returns the file backing dataset, or ErrUnknownDataset.
func (s *DirSource) Path(dataset string) (string, error) {
	for _, ext := range Extensions {
		p := filepath.Join(s.Dir, dataset+ext)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: no %s.{csv,json,xlsx} in %s", ErrUnknownDataset, dataset, s.Dir)
}

// Fetch reads the dataset file, filters it, and projects the requested columns.
// Requested columns absent from the file come back as "".
func (s *DirSource) Fetch(ctx context.Context, q Query) (Rows, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.Path(q.Dataset)
	if err != nil {
		return nil, err
	}
	t, err := table.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", q.Dataset, err)
	}

	out := Rows{}
	for _, rec := range t.Records() {
		row := Row(rec)
		if !Match(row, q.Filters) {
			continue
		}
		proj := make(Row, len(q.Columns))
		for _, c := range q.Columns {
			proj[c] = row[c]
		}
		out = append(out, proj)
	}
	return out, nil
}
