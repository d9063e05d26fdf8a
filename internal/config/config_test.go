package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
	"unicode/utf8"
)

// -----------------------------------------------------------------------------
// Loading tests
// -----------------------------------------------------------------------------

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestDecode_JSON(t *testing.T) {
	t.Parallel()

	const js = `{
	  "job": "invoices",
	  "storage": {"kind": "postgres", "dsn": "postgres://u@h/db", "max_conns": 8},
	  "ingest": {"workers": 2, "json": {"flatten": true}, "csv": {"comma": ";"}},
	  "events": {"kind": "kafka", "brokers": ["k1:9092"], "topic": "t"},
	  "watch": {"dir": "/in", "debounce": "250ms"}
	}`
	cfg := Default()
	if err := Decode([]byte(js), ".json", &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Job != "invoices" || cfg.Storage.Kind != "postgres" || cfg.Storage.MaxConns != 8 {
		t.Fatalf("top-level/storage decode mismatch: %+v", cfg)
	}
	if cfg.Ingest.Workers != 2 || !cfg.Ingest.JSON.Bool("flatten", false) || cfg.Ingest.CSV.Rune("comma", ',') != ';' {
		t.Fatalf("ingest decode mismatch: %+v", cfg.Ingest)
	}
	if !reflect.DeepEqual(cfg.Events.Brokers, []string{"k1:9092"}) {
		t.Fatalf("brokers=%v", cfg.Events.Brokers)
	}
	if cfg.Watch.Debounce.Std() != 250*time.Millisecond {
		t.Fatalf("debounce=%v; want 250ms", cfg.Watch.Debounce.Std())
	}
	// Defaults survive for omitted sections.
	if cfg.Server.Addr != ":8080" || cfg.Metrics.Backend != "none" {
		t.Fatalf("defaults lost: server=%+v metrics=%+v", cfg.Server, cfg.Metrics)
	}
}

func TestDecode_YAML(t *testing.T) {
	t.Parallel()

	const y = `
job: docs
storage:
  kind: mysql
  dsn: "u:p@tcp(localhost:3306)/etl"
ingest:
  workers: 3
  csv:
    keep_text: true
    header_map:
      Full Name: name
server:
  rate_per_sec: 2.5
  burst: 5
watch:
  debounce: 2s
`
	cfg := Default()
	if err := Decode([]byte(y), ".YML", &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg.Job != "docs" || cfg.Storage.Kind != "mysql" || cfg.Ingest.Workers != 3 {
		t.Fatalf("yaml decode mismatch: %+v", cfg)
	}
	if !cfg.Ingest.CSV.Bool("keep_text", false) {
		t.Fatalf("keep_text not decoded: %#v", cfg.Ingest.CSV)
	}
	if got := cfg.Ingest.CSV.StringMap("header_map"); !reflect.DeepEqual(got, map[string]string{"Full Name": "name"}) {
		t.Fatalf("header_map=%v", got)
	}
	if cfg.Server.RatePerSec != 2.5 || cfg.Server.Burst != 5 {
		t.Fatalf("server=%+v", cfg.Server)
	}
	if cfg.Watch.Debounce.Std() != 2*time.Second {
		t.Fatalf("debounce=%v; want 2s", cfg.Watch.Debounce.Std())
	}
}

func TestLoad_FileAndErrors(t *testing.T) {
	t.Parallel()

	p := writeFile(t, "c.json", `{"job":"x","storage":{"kind":"sqlite","dsn":":memory:"}}`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Job != "x" || cfg.Storage.DSN != ":memory:" {
		t.Fatalf("cfg=%+v", cfg)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	bad := writeFile(t, "bad.yaml", "job: [unterminated")
	if _, err := Load(bad); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"DYNETL_STORAGE_KIND": "postgres",
		"DYNETL_DSN":          "postgres://env@h/db",
		"METRICS_BACKEND":     "prometheus",
		"PUSHGATEWAY_URL":     "http://pg:9091",
		"KAFKA_BROKERS":       "a:9092, b:9092,",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}
	cfg := Default()
	ApplyEnv(&cfg, lookup)

	if cfg.Storage.Kind != "postgres" || cfg.Storage.DSN != "postgres://env@h/db" {
		t.Fatalf("storage=%+v", cfg.Storage)
	}
	if cfg.Metrics.Backend != "prometheus" || cfg.Metrics.PushgatewayURL != "http://pg:9091" {
		t.Fatalf("metrics=%+v", cfg.Metrics)
	}
	if cfg.Events.Kind != "kafka" || !reflect.DeepEqual(cfg.Events.Brokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("events=%+v", cfg.Events)
	}
	if issues := Validate(cfg); HasErrors(issues) {
		t.Fatalf("env-derived config has errors: %+v", issues)
	}
}

func TestDuration_JSON(t *testing.T) {
	t.Parallel()

	var d Duration
	if err := json.Unmarshal([]byte(`"1m30s"`), &d); err != nil || d.Std() != 90*time.Second {
		t.Fatalf("string: d=%v err=%v", d.Std(), err)
	}
	if err := json.Unmarshal([]byte(`1000`), &d); err != nil || d.Std() != time.Microsecond {
		t.Fatalf("number: d=%v err=%v", d.Std(), err)
	}
	if err := json.Unmarshal([]byte(`"soon"`), &d); err == nil {
		t.Fatalf("expected error for bad duration")
	}
	b, err := json.Marshal(Duration(time.Second))
	if err != nil || string(b) != `"1s"` {
		t.Fatalf("marshal=%s err=%v", b, err)
	}
}

// -----------------------------------------------------------------------------
// Options helper tests
// -----------------------------------------------------------------------------

func TestOptions_String_Bool_Int_Rune_DefaultsAndCoercion(t *testing.T) {
	t.Parallel()

	o := Options{
		"s":  "hello",
		"b":  true,
		"i":  float64(42), // encoding/json decodes numbers as float64
		"iy": 7,           // yaml.v3 decodes integers as int
		"r":  ",",
	}

	if got := o.String("s", "def"); got != "hello" {
		t.Fatalf("String(s) = %q, want hello", got)
	}
	if got := o.String("missing", "def"); got != "def" {
		t.Fatalf("String(missing) = %q, want def", got)
	}
	if got := o.Bool("b", false); got != true {
		t.Fatalf("Bool(b) = %v, want true", got)
	}
	if got := o.Bool("missing", true); got != true {
		t.Fatalf("Bool(missing) = %v, want true", got)
	}
	if got := o.Int("i", 0); got != 42 {
		t.Fatalf("Int(i) = %d, want 42", got)
	}
	if got := o.Int("iy", 0); got != 7 {
		t.Fatalf("Int(iy) = %d, want 7", got)
	}
	if got := o.Int("missing", 7); got != 7 {
		t.Fatalf("Int(missing) = %d, want 7", got)
	}
	if got := o.Rune("r", ';'); got != ',' {
		t.Fatalf("Rune(r) = %q, want ','", got)
	}
	if got := o.Rune("missing", 'X'); got != 'X' {
		t.Fatalf("Rune(missing) = %q, want 'X'", got)
	}

	o["r2"] = "ž"
	r := o.Rune("r2", 'x')
	if r == 0 || !utf8.ValidRune(r) || string(r) != "ž" {
		t.Fatalf("Rune(r2) = %#U, want ž", r)
	}
}

func TestOptions_StringMap_StringSlice(t *testing.T) {
	t.Parallel()

	o := Options{
		"m":  map[string]any{"A": "a", "B": "b", "X": 1},
		"s1": []any{"alpha", "beta", 3},
		"s2": []string{"gamma", "delta"},
	}

	if sm := o.StringMap("m"); !reflect.DeepEqual(sm, map[string]string{"A": "a", "B": "b"}) {
		t.Fatalf("StringMap(m) = %#v, want {A:a B:b}", sm)
	}
	if sm := o.StringMap("missing"); sm == nil || len(sm) != 0 {
		t.Fatalf("StringMap(missing) = %#v, want empty map", sm)
	}
	if ss := o.StringSlice("s1"); !reflect.DeepEqual(ss, []string{"alpha", "beta"}) {
		t.Fatalf("StringSlice(s1) = %#v, want [alpha beta]", ss)
	}
	if ss := o.StringSlice("s2"); !reflect.DeepEqual(ss, []string{"gamma", "delta"}) {
		t.Fatalf("StringSlice(s2) = %#v, want [gamma delta]", ss)
	}
	if got := o.StringSlice("missing"); got != nil {
		t.Fatalf("StringSlice(missing) = %#v, want nil", got)
	}
}

func TestOptions_UnmarshalJSON(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Opts Options `json:"options"`
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"options": null}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts == nil || len(w.Opts) != 0 {
		t.Fatalf("Opts after null unmarshal = %#v, want non-nil empty map", w.Opts)
	}

	w = wrapper{}
	if err := json.Unmarshal([]byte(`{"options": {"a":"x","b":true,"n": 3}}`), &w); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if w.Opts.String("a", "") != "x" || !w.Opts.Bool("b", false) || w.Opts.Int("n", 0) != 3 {
		t.Fatalf("Opts = %#v", w.Opts)
	}
}
