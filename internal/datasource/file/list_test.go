package file

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeTempFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestReadList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{
			name: "mixed targets and comments",
			content: `
# nightly drops
/data/in/customers.csv
   # indented comment
https://example.org/export.json

   notes.txt
`,
			want: []string{"/data/in/customers.csv", "https://example.org/export.json", "notes.txt"},
		},
		{name: "empty", content: "", want: nil},
		{name: "only comments", content: "# a\n#b\n", want: nil},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := ReadList(writeTempFile(t, "list.txt", tc.content))
			if err != nil {
				t.Fatalf("ReadList error: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("ReadList = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestReadList_FileNotFound(t *testing.T) {
	t.Parallel()

	if _, err := ReadList(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Fatalf("expected error for missing file, got nil")
	}
}
