// Package audit keeps an append-only history of pipeline runs.
package audit

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Run statuses.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Entry is one run in the history file.
type Entry struct {
	RunID        string    `json:"run_id"`
	Timestamp    time.Time `json:"timestamp"`
	Machine      string    `json:"machine"`
	Command      string    `json:"command"`
	Args         []string  `json:"args,omitempty"`
	Status       string    `json:"status"`
	DryRun       bool      `json:"dry_run,omitempty"`
	DurationMs   int64     `json:"duration_ms"`
	Threshold    float64   `json:"threshold"`
	LookbackDays int       `json:"lookback_days"`
	FailedStage  string    `json:"failed_stage,omitempty"`
	Error        string    `json:"error,omitempty"`

	Users         int      `json:"users"`
	Events        int      `json:"events"`
	Resolved      int      `json:"resolved"`
	DroppedUsers  int      `json:"dropped_users"`
	FlaggedUsers  int      `json:"flagged_users"`
	InvalidTimes  int      `json:"invalid_times,omitempty"`
	OutputObjects []string `json:"outputs,omitempty"`
}

// Logger appends entries to a JSONL file.
type Logger struct {
	FilePath string
}

// NewLogger returns a Logger writing to filePath. An empty path disables it.
func NewLogger(filePath string) *Logger {
	return &Logger{FilePath: filePath}
}

// Log appends entry. Failures are returned but never affect the run itself.
func (l *Logger) Log(_ context.Context, entry Entry) error {
	if l == nil || l.FilePath == "" {
		return nil
	}
	if entry.Machine == "" {
		entry.Machine, _ = os.Hostname()
	}
	if err := os.MkdirAll(filepath.Dir(l.FilePath), 0755); err != nil {
		return fmt.Errorf("could not create history directory: %w", err)
	}

	f, err := os.OpenFile(l.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("could not open history: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// ReadEntries reads all entries from filePath. A missing file yields none.
func ReadEntries(filePath string) ([]Entry, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []Entry
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue // skip malformed lines
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// FilterEntries returns entries within [since, until] with the given status.
// Zero times and an empty status match everything.
func FilterEntries(entries []Entry, since, until time.Time, status string) []Entry {
	var result []Entry
	for _, e := range entries {
		if !since.IsZero() && e.Timestamp.Before(since) {
			continue
		}
		if !until.IsZero() && e.Timestamp.After(until) {
			continue
		}
		if status != "" && e.Status != status {
			continue
		}
		result = append(result, e)
	}
	return result
}

// Clear truncates the history file.
func Clear(filePath string) error {
	err := os.Truncate(filePath, 0)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// sensitiveFlags are flags whose following value should be redacted.
var sensitiveFlags = map[string]bool{
	"--dsn": true, "--secret-access-key": true, "--access-key-id": true, "--password": true,
}

// Redact masks secrets in command-line args, including --flag=value forms.
func Redact(args []string) []string {
	result := make([]string, len(args))
	redactNext := false
	for i, arg := range args {
		if redactNext {
			result[i] = "[REDACTED]"
			redactNext = false
			continue
		}
		if sensitiveFlags[arg] {
			result[i] = arg
			redactNext = true
			continue
		}
		if name, _, ok := strings.Cut(arg, "="); ok && sensitiveFlags[name] {
			result[i] = name + "=[REDACTED]"
			continue
		}
		result[i] = arg
	}
	return result
}
