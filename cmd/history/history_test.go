package history

import (
	"testing"
	"time"

	"github.com/klytics/licensekit/internal/output"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate("--since", "2025-03-01")
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("expected %s, got %s", want, got)
	}

	if got, err := parseDate("--since", ""); err != nil || !got.IsZero() {
		t.Errorf("empty date should be zero, got %s, %v", got, err)
	}

	_, err = parseDate("--until", "03/01/2025")
	if err == nil {
		t.Fatal("expected error for a non-ISO date")
	}
	if output.ExitCode(err) != output.ExitUserError {
		t.Errorf("expected a user error, got exit code %d", output.ExitCode(err))
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		ms   int64
		want string
	}{
		{0, "0ms"},
		{850, "850ms"},
		{1000, "1.0s"},
		{12345, "12.3s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.ms); got != tt.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}

func TestCommandTree(t *testing.T) {
	cmd := NewCommand()
	for _, f := range []string{"last", "since", "until", "status"} {
		if cmd.Flags().Lookup(f) == nil {
			t.Errorf("missing --%s flag", f)
		}
	}
	if sub, _, err := cmd.Find([]string{"clear"}); err != nil || sub.Name() != "clear" {
		t.Error("missing clear subcommand")
	}
}
