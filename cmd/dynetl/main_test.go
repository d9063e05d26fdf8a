package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"dynetl/internal/storage"
)

// env is a temp dir holding a config that points at a file-backed sqlite DB,
// so several commands can share state.
type env struct {
	dir string
	cfg string
}

func newEnv(t *testing.T) env {
	t.Helper()
	dir := t.TempDir()
	db := filepath.Join(dir, "dynetl.db")
	cfg := filepath.Join(dir, "dynetl.yaml")
	body := "job: clitest\nstorage:\n  kind: sqlite\n  dsn: \"" + db + "\"\ningest:\n  workers: 2\n"
	if err := os.WriteFile(cfg, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env{dir: dir, cfg: cfg}
}

func (e env) file(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(e.dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func (e env) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(append([]string{"--config", e.cfg}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestIngest_OrderedVersionsAndQueries(t *testing.T) {
	e := newEnv(t)
	a := e.file(t, "a.csv", "id,name\n1,x\n2,y\n")
	b := e.file(t, "b.csv", "id,email\n3,z@example.com\n")

	out, _, err := e.run(t, "ingest", a, b)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	for _, want := range []string{
		"a.csv: New schema version 1 created",
		"2 records processed: 2 valid, 0 with issues",
		"b.csv: Schema updated from v1 to v2",
		"added=[email] removed=[name]",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("ingest output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "a.csv") > strings.Index(out, "b.csv") {
		t.Fatalf("results not in argument order:\n%s", out)
	}

	out, _, err = e.run(t, "schemas", "--json")
	if err != nil {
		t.Fatalf("schemas: %v", err)
	}
	var hist []storage.SchemaVersion
	if err := json.Unmarshal([]byte(out), &hist); err != nil {
		t.Fatalf("decode schemas: %v\n%s", err, out)
	}
	if len(hist) != 2 || hist[0].Version != 1 || hist[1].Version != 2 {
		t.Fatalf("schemas=%+v", hist)
	}

	out, _, err = e.run(t, "changes")
	if err != nil {
		t.Fatalf("changes: %v", err)
	}
	if !strings.Contains(out, "v1 -> v2") {
		t.Fatalf("changes output=%q", out)
	}

	out, _, err = e.run(t, "records", "--version", "1")
	if err != nil {
		t.Fatalf("records: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(out), "\n"); len(lines) != 2 {
		t.Fatalf("records --version 1 printed %d lines; want 2:\n%s", len(lines), out)
	}
}

func TestIngest_FlattenAndJSONOutput(t *testing.T) {
	e := newEnv(t)
	p := e.file(t, "nested.json", `{"user":{"id":1},"ok":true}`)

	out, _, err := e.run(t, "ingest", "--flatten", "--json", p)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	var res struct {
		SchemaVersion int      `json:"schema_version"`
		Added         []string `json:"added_fields"`
		Valid         int      `json:"valid"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode result: %v\n%s", err, out)
	}
	if res.SchemaVersion != 1 || res.Valid != 1 {
		t.Fatalf("result=%+v", res)
	}
	if strings.Join(res.Added, ",") != "ok,user.id" {
		t.Fatalf("added=%v; want flattened keys", res.Added)
	}
}

func TestIngest_ListFileAndMissingTarget(t *testing.T) {
	e := newEnv(t)
	a := e.file(t, "one.txt", "hello\n")
	list := e.file(t, "targets.txt", "# inputs\n"+a+"\n\n")

	out, _, err := e.run(t, "ingest", "--list", list)
	if err != nil {
		t.Fatalf("ingest --list: %v", err)
	}
	if !strings.Contains(out, "one.txt: New schema version 1 created") {
		t.Fatalf("output=%q", out)
	}

	if _, _, err := e.run(t, "ingest", filepath.Join(e.dir, "nope.csv")); err == nil {
		t.Fatal("expected error for missing file")
	}
	if _, _, err := e.run(t, "ingest"); err == nil {
		t.Fatal("expected error with no targets")
	}
}

func TestConfigValidate(t *testing.T) {
	e := newEnv(t)
	out, _, err := e.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !strings.Contains(out, "config ok: job=clitest storage=sqlite") {
		t.Fatalf("output=%q", out)
	}

	bad := e.file(t, "bad.json", `{"job":"x","storage":{"kind":"oracle","dsn":"x"}}`)
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"config", "validate", "-c", bad})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected invalid config error")
	}
	if !strings.Contains(stderr.String(), "storage.kind") {
		t.Fatalf("stderr=%q; want storage.kind issue", stderr.String())
	}
}

func TestOpenStoreFailure(t *testing.T) {
	e := newEnv(t)
	orig := openStore
	openStore = func(context.Context, storage.Config) (storage.Store, error) {
		return nil, errors.New("no disk")
	}
	t.Cleanup(func() { openStore = orig })

	_, _, err := e.run(t, "schemas")
	if err == nil || !strings.Contains(err.Error(), "no disk") {
		t.Fatalf("err=%v; want wrapped open failure", err)
	}
}
