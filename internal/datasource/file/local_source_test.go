package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalOpen(t *testing.T) {
	t.Parallel()

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name            string
		path            func(t *testing.T) string
		ctx             context.Context
		wantErrIs       error
		wantErrContains string
		wantContent     string
	}{
		{
			name:        "reads content",
			path:        func(t *testing.T) string { return writeTempFile(t, "data.txt", "hello\nworld") },
			ctx:         context.Background(),
			wantContent: "hello\nworld",
		},
		{
			name:            "missing file wraps not-exist",
			path:            func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.csv") },
			ctx:             context.Background(),
			wantErrIs:       os.ErrNotExist,
			wantErrContains: "open ",
		},
		{
			name:      "canceled context short-circuits",
			path:      func(t *testing.T) string { return writeTempFile(t, "data.txt", "ignored") },
			ctx:       canceled,
			wantErrIs: context.Canceled,
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rc, err := NewLocal(tc.path(t)).Open(tc.ctx)
			if tc.wantErrIs != nil {
				if !errors.Is(err, tc.wantErrIs) {
					t.Fatalf("err=%v; want errors.Is %v", err, tc.wantErrIs)
				}
				if tc.wantErrContains != "" && !strings.Contains(err.Error(), tc.wantErrContains) {
					t.Fatalf("error %q does not contain %q", err, tc.wantErrContains)
				}
				if rc != nil {
					_ = rc.Close()
					t.Fatalf("got non-nil ReadCloser on error: %T", rc)
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer rc.Close()
			got, err := io.ReadAll(rc)
			if err != nil {
				t.Fatalf("read: %v", err)
			}
			if string(got) != tc.wantContent {
				t.Fatalf("content=%q; want %q", got, tc.wantContent)
			}
		})
	}
}

func TestLocalName(t *testing.T) {
	t.Parallel()

	l := NewLocal(filepath.Join("in", "2025", "Report.DOCX"))
	if l.Name() != "Report.DOCX" {
		t.Fatalf("Name=%q; want Report.DOCX", l.Name())
	}
	if l.Path() != filepath.Join("in", "2025", "Report.DOCX") {
		t.Fatalf("Path=%q", l.Path())
	}
}

func BenchmarkLocalOpen(b *testing.B) {
	p := filepath.Join(b.TempDir(), "bench.csv")
	if err := os.WriteFile(p, []byte("a,b\n1,2\n"), 0o644); err != nil {
		b.Fatalf("write: %v", err)
	}
	src := NewLocal(p)
	ctx := context.Background()

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		rc, err := src.Open(ctx)
		if err != nil {
			b.Fatalf("open: %v", err)
		}
		_ = rc.Close()
	}
}
