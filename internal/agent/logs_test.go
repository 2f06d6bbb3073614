package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeLog(t *testing.T, lines int, eol string) string {
	t.Helper()
	var b strings.Builder
	for i := 1; i <= lines; i++ {
		fmt.Fprintf(&b, "line %d%s", i, eol)
	}
	path := filepath.Join(t.TempDir(), "hwinventory.log")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestTailLines(t *testing.T) {
	tests := []struct {
		name      string
		lines     int
		eol       string
		n         int
		wantFirst string
		wantLast  string
		wantCount int
	}{
		{"small file", 5, "\n", 3, "line 3", "line 5", 3},
		{"fewer lines than asked", 2, "\n", 10, "line 1", "line 2", 2},
		{"crlf", 4, "\r\n", 2, "line 3", "line 4", 2},
		// spans several read chunks
		{"large file", 5000, "\n", 1200, "line 3801", "line 5000", 1200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeLog(t, tt.lines, tt.eol)

			got, err := tailLines(path, tt.n)
			if err != nil {
				t.Fatalf("tailLines() error = %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d lines, want %d", len(got), tt.wantCount)
			}
			if got[0] != tt.wantFirst || got[len(got)-1] != tt.wantLast {
				t.Errorf("got %q ... %q, want %q ... %q", got[0], got[len(got)-1], tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestTailLinesEmptyFile(t *testing.T) {
	path := writeLog(t, 0, "\n")
	got, err := tailLines(path, 10)
	if err != nil {
		t.Fatalf("tailLines() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %v, want no lines", got)
	}
}

func TestTailLinesInvalid(t *testing.T) {
	path := writeLog(t, 3, "\n")
	for _, n := range []int{0, -1, maxTailLines + 1} {
		if _, err := tailLines(path, n); err == nil {
			t.Errorf("tailLines(%d) expected error", n)
		}
	}
	if _, err := tailLines(filepath.Join(t.TempDir(), "missing.log"), 5); err == nil {
		t.Error("expected error for missing file")
	}
}
