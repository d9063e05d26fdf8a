package html

import (
	"reflect"
	"testing"

	"dynetl/pkg/records"
)

func contents(recs []records.Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r[records.KeyContent].(string))
	}
	return out
}

func TestParse_Blocks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{
			name: "paragraphs and headings",
			in:   `<html><head><title>Report</title></head><body><h1>Q1</h1><p>Revenue  was <b>up</b>.</p><p>   </p></body></html>`,
			want: []string{"Report", "Q1", "Revenue was up."},
		},
		{
			name: "script and style skipped",
			in:   `<p>keep</p><script>var x = "<p>no</p>";</script><style>p{}</style><p>also</p>`,
			want: []string{"keep", "also"},
		},
		{
			name: "list items and br",
			in:   `<ul><li>one</li><li>two</li></ul>line a<br>line b`,
			want: []string{"one", "two", "line a", "line b"},
		},
		{
			name: "table rows",
			in:   `<table><tr><td>a</td><td>b</td></tr><tr><th>c</th></tr></table>`,
			want: []string{"a b", "c"},
		},
		{
			name: "entities unescaped",
			in:   `<p>Tom &amp; Jerry&nbsp;show</p>`,
			want: []string{"Tom & Jerry show"},
		},
		{
			name: "bare text",
			in:   "just\ntext",
			want: []string{"just text"},
		},
		{
			name: "empty",
			in:   "",
			want: []string{},
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			recs, err := NewParser().Parse([]byte(tc.in))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if got := contents(recs); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("blocks=%q; want %q", got, tc.want)
			}
			for _, r := range recs {
				if len(r) != 1 {
					t.Fatalf("record %v has extra fields", r)
				}
			}
		})
	}
}

func TestParse_MetaCharset(t *testing.T) {
	t.Parallel()

	// 0xE9 is "é" in ISO-8859-1.
	in := []byte("<html><head><meta charset=\"iso-8859-1\"></head><body><p>caf\xe9</p></body></html>")
	recs, err := NewParser().Parse(in)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := contents(recs); !reflect.DeepEqual(got, []string{"café"}) {
		t.Fatalf("blocks=%q", got)
	}
}

func TestCollapseWhitespace(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"":                 "",
		"  a  b\t\nc  ":    "a b c",
		"x\r\n\r\ny":       "x y",
		"no-space":         "no-space",
		"\u00a0nbsp\u00a0": "nbsp",
	}
	for in, want := range tests {
		if got := CollapseWhitespace(in); got != want {
			t.Fatalf("CollapseWhitespace(%q)=%q; want %q", in, got, want)
		}
	}
}
