package output

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/goccy/go-json"

	"github.com/klytics/licensekit/internal/formats/table"
)

func TestExitCode(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{base, ExitUserError},
		{UserError(base), ExitUserError},
		{SystemError(base), ExitSystemError},
		{fmt.Errorf("run: %w", SystemError(base)), ExitSystemError},
	}
	for _, tt := range tests {
		if got := ExitCode(tt.err); got != tt.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
	if UserError(nil) != nil || SystemError(nil) != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWriteJSONEnvelope(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, "run", map[string]int{"users": 3}); err != nil {
		t.Fatal(err)
	}
	var got JSONResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if !got.OK || got.Command != "run" || got.Version == "" {
		t.Errorf("unexpected envelope %+v", got)
	}
}

func TestWriteJSONError(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSONError(&buf, "run", SystemError(errors.New("bucket unreachable"))); err != nil {
		t.Fatal(err)
	}
	var got JSONResult
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.OK || got.Code != ExitSystemError || got.Error != "bucket unreachable" {
		t.Errorf("unexpected envelope %+v", got)
	}
}

func TestFormatTable(t *testing.T) {
	tb := table.New("platform-summary", "PLATFORM", "TOTAL_LOGINS")
	tb.Append("Cloud", "12")
	tb.Append("Web Player", "4")
	tb.Append("Other", "1")

	got := FormatTable(tb, 2)
	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, 2 rows and a footer, got %q", got)
	}
	if !strings.HasPrefix(lines[1], "Cloud       12") {
		t.Errorf("columns not aligned: %q", lines[1])
	}
	if lines[3] != "... 1 more rows" {
		t.Errorf("unexpected footer %q", lines[3])
	}
	if strings.Count(FormatTable(tb, 0), "\n") != 4 {
		t.Error("limit 0 should show every row")
	}
}

func TestWriterFields(t *testing.T) {
	color.NoColor = true
	var buf bytes.Buffer
	w := NewWriterTo(&buf)
	w.Heading("Run 1a2b3c4d")
	w.Field("Flagged users", 2)
	w.OK("wrote %d tables", 5)

	out := buf.String()
	for _, want := range []string{"Run 1a2b3c4d", "Flagged users:", "2", "✓ wrote 5 tables"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
