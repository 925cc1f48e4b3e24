package extract_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vivaan01/blood-test-analyser-debug/internal/extract"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "Hemoglobin 13.5", "Hemoglobin 13.5"},
		{"double break", "a\n\nb", "a\nb"},
		{"many breaks", "a\n\n\n\n\nb", "a\nb"},
		{"crlf", "a\r\n\r\nb", "a\nb"},
		{"trims", "\n\n  a  \n\n", "a"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extract.Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPDFExtractUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	if err := os.WriteFile(path, []byte("not a pdf at all"), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := extract.PDF{}.Extract(context.Background(), path)
	if !errors.Is(err, extract.ErrUnreadable) {
		t.Errorf("Extract() error = %v, want ErrUnreadable", err)
	}
}

func TestPDFExtractMissingFile(t *testing.T) {
	_, err := extract.PDF{}.Extract(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"))
	if !errors.Is(err, extract.ErrUnreadable) {
		t.Errorf("Extract() error = %v, want ErrUnreadable", err)
	}
}

func TestPDFExtractCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := extract.PDF{}.Extract(ctx, "irrelevant.pdf")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Extract() error = %v, want context.Canceled", err)
	}
}

func TestPageCountRejectsGarbage(t *testing.T) {
	if _, err := extract.PageCount([]byte("%PDF-1.4 truncated")); !errors.Is(err, extract.ErrUnreadable) {
		t.Errorf("PageCount() error = %v, want ErrUnreadable", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	var got string
	ex := extract.Func(func(_ context.Context, path string) (string, error) {
		got = path
		return "text", nil
	})

	text, err := ex.Extract(context.Background(), "/tmp/x.pdf")
	if err != nil || text != "text" || got != "/tmp/x.pdf" {
		t.Errorf("Extract() = %q, %v (path %q)", text, err, got)
	}
}
