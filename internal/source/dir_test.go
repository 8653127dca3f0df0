package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestDirSourceFiltersAndProjects(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "actions.csv", `user_name,log_category,log_action,logged_time
alice,info_link,get_data,2025-03-01 10:00:00
bob,admin,login,2025-03-01 10:00:00
carol,info_link,run_query,2024-01-01 10:00:00
`)
	src, err := NewDir(dir)
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), Query{
		Dataset: "actions",
		Columns: []string{"user_name", "log_action", "success"},
		Filters: []Filter{
			NotIn("log_category", "admin"),
			Gte("logged_time", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)),
		},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"user_name": "alice", "log_action": "get_data", "success": ""}, rows[0])
}

func TestDirSourceJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "hr.json", `[{"smtp":"a@x.com","nt_id":"auser"},{"smtp":null,"nt_id":"buser"}]`)
	src, err := NewDir(dir)
	require.NoError(t, err)

	rows, err := src.Fetch(context.Background(), Query{
		Dataset: "hr",
		Columns: []string{"smtp", "nt_id"},
		Filters: []Filter{NotNull("smtp")},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "auser", rows[0]["nt_id"])
}

func TestDirSourceUnknownDataset(t *testing.T) {
	src, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), Query{Dataset: "users", Columns: []string{"user_name"}})
	assert.True(t, errors.Is(err, ErrUnknownDataset))
}

func TestNewDirRequiresDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.csv", "a\n")
	_, err := NewDir(filepath.Join(dir, "file.csv"))
	assert.Error(t, err)
	_, err = NewDir(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
