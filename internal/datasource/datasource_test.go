package datasource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dynetl/internal/datasource/file"
	"dynetl/internal/datasource/httpds"
)

func TestFor(t *testing.T) {
	t.Parallel()

	if _, ok := For("HTTPS://example.com/a.csv", nil).(*httpds.URLSource); !ok {
		t.Fatalf("https target not mapped to URLSource")
	}
	if _, ok := For("/tmp/a.csv", nil).(*file.Local); !ok {
		t.Fatalf("path target not mapped to Local")
	}
}

func TestReadAll(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "Rows.CSV")
	if err := os.WriteFile(p, []byte("a\n1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	name, data, err := ReadAll(context.Background(), For(p, nil), 0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if name != "Rows.CSV" || string(data) != "a\n1\n" {
		t.Fatalf("ReadAll=(%q,%q)", name, data)
	}

	if _, _, err := ReadAll(context.Background(), For(p, nil), 3); !errors.Is(err, ErrTooLarge) {
		t.Fatalf("err=%v; want ErrTooLarge", err)
	}
	if _, _, err := ReadAll(context.Background(), For(p, nil), 4); err != nil {
		t.Fatalf("limit equal to size: %v", err)
	}
}

func TestReadAll_URL(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"a":1}]`))
	}))
	defer srv.Close()

	name, data, err := ReadAll(context.Background(), For(srv.URL+"/export?id=7", httpds.NewClient(httpds.Config{})), 0)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if name != "id_7.json" || string(data) != `[{"a":1}]` {
		t.Fatalf("ReadAll=(%q,%q)", name, data)
	}
}
