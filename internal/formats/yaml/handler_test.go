package yaml

import (
	"strings"
	"testing"

	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// TestDetect verifies the confidence heuristics, in particular that
// JSON content never matches as YAML.
func TestDetect(t *testing.T) {
	h := &Handler{}
	tests := []struct {
		name    string
		content string
		minConf float64
		maxConf float64
	}{
		{"document marker", "---\nkey: value\n", 0.5, 1.0},
		{"key lines", "name: x\nport: 8080\n", 0.4, 0.7},
		{"list", "- one\n- two\n", 0.3, 0.5},
		{"keys and list", "items:\n  - a\n  - b\n", 0.6, 0.8},
		{"json object", `{"a": 1}`, 0, 0},
		{"json array", `[1, 2]`, 0, 0},
		{"empty", "", 0, 0},
		{"prose", "just some words", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.Detect(tt.content)
			if res.Confidence < tt.minConf || res.Confidence > tt.maxConf {
				t.Errorf("Detect(%q) confidence = %v, want in [%v, %v]",
					tt.content, res.Confidence, tt.minConf, tt.maxConf)
			}
		})
	}
}

// TestParseOrderAndKinds verifies key order, scalar typing, and
// nesting.
func TestParseOrderAndKinds(t *testing.T) {
	h := &Handler{}
	src := "z: 1\na: 2.5\nflags:\n  - true\n  - null\nname: svc\n"
	v, err := h.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	keys := v.Map().Keys()
	if len(keys) != 4 || keys[0] != "z" || keys[1] != "a" || keys[2] != "flags" || keys[3] != "name" {
		t.Errorf("keys = %v", keys)
	}
	z, _ := v.Map().Get("z")
	if z.Kind() != value.KindInt || z.Int() != 1 {
		t.Errorf("z = %s, want integer 1", z.Kind())
	}
	a, _ := v.Map().Get("a")
	if a.Kind() != value.KindFloat || a.Float() != 2.5 {
		t.Errorf("a = %s, want float 2.5", a.Kind())
	}
	flags, _ := v.Map().Get("flags")
	if flags.Kind() != value.KindSeq || len(flags.Seq()) != 2 {
		t.Fatalf("flags = %s", flags.Kind())
	}
	if flags.Seq()[0].Kind() != value.KindBool || !flags.Seq()[1].IsNull() {
		t.Error("sequence members lost their kinds")
	}
	name, _ := v.Map().Get("name")
	if name.Kind() != value.KindString || name.Str() != "svc" {
		t.Errorf("name = %v", name)
	}
}

// TestParseAliasExpansion verifies that anchors and aliases expand
// into plain values.
func TestParseAliasExpansion(t *testing.T) {
	h := &Handler{}
	src := "base: &b\n  host: localhost\nprod: *b\n"
	v, err := h.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	base, _ := v.Map().Get("base")
	prod, _ := v.Map().Get("prod")
	if !value.Equal(base, prod) {
		t.Error("alias did not expand to the anchored value")
	}
}

// TestParseTimestampStaysString verifies that timestamp-shaped scalars
// remain strings.
func TestParseTimestampStaysString(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse("when: 2024-03-01T12:00:00Z\n")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	when, _ := v.Map().Get("when")
	if when.Kind() != value.KindString {
		t.Errorf("timestamp kind = %s, want string", when.Kind())
	}
}

// TestParseEmptyDocument verifies that empty input parses to null.
func TestParseEmptyDocument(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse("")
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !v.IsNull() {
		t.Errorf("empty document kind = %s, want null", v.Kind())
	}
}

// TestValidateError verifies that malformed input yields one error
// with a line number.
func TestValidateError(t *testing.T) {
	h := &Handler{}
	res := h.Validate("key: value\n  bad indent: [\n")
	if res.Valid {
		t.Fatal("malformed document reported valid")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("got %d errors, want exactly 1", len(res.Errors))
	}
	if res.Errors[0].Line == 0 {
		t.Errorf("error has no line: %+v", res.Errors[0])
	}
}

// TestStringifyRoundTrip verifies block-style output that re-parses to
// the same tree with no anchors.
func TestStringifyRoundTrip(t *testing.T) {
	h := &Handler{}
	src := "z: 1\na: 2.5\nitems:\n  - x\n  - null\nnested:\n  k: v\n"
	v, err := h.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out, err := h.Stringify(v, formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if strings.Contains(out, "&") || strings.Contains(out, "*") {
		t.Errorf("output contains anchors or aliases:\n%s", out)
	}
	back, err := h.Parse(out)
	if err != nil {
		t.Fatalf("re-Parse failed: %v\noutput:\n%s", err, out)
	}
	if !value.Equal(v, back) {
		t.Errorf("round trip changed the document:\n%s", out)
	}
}

// TestStringifyFloatMarker verifies that whole-number floats keep a
// decimal point.
func TestStringifyFloatMarker(t *testing.T) {
	h := &Handler{}
	m := value.NewMap()
	m.Set("f", value.NewFloat(3))
	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if !strings.Contains(out, "3.0") {
		t.Errorf("whole-number float lost its marker: %s", out)
	}
}

// TestStringifySortKeys verifies key sorting.
func TestStringifySortKeys(t *testing.T) {
	h := &Handler{}
	m := value.NewMap()
	m.Set("b", value.NewInt(1))
	m.Set("a", value.NewInt(2))
	out, err := h.Stringify(value.NewMapValue(m), formats.Options{SortKeys: true})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if strings.Index(out, "a:") > strings.Index(out, "b:") {
		t.Errorf("keys not sorted:\n%s", out)
	}
}

// TestMinifyUnsupported verifies that minify is refused.
func TestMinifyUnsupported(t *testing.T) {
	h := &Handler{}
	res := h.Minify("key: value\n")
	if len(res.Errors) == 0 {
		t.Fatal("Minify should report an error")
	}
	if res.Output != "" {
		t.Error("Minify should produce no output")
	}
}

// TestBuildStructure verifies labels, types, and source lines from the
// node tree.
func TestBuildStructure(t *testing.T) {
	h := &Handler{}
	src := "name: x\nitems:\n  - 1\n  - two\n"
	res := h.BuildStructure(src)
	if len(res.Errors) > 0 {
		t.Fatalf("BuildStructure errors: %v", res.Errors)
	}
	root := res.Nodes[0]
	if root.Type != "object" || len(root.Children) != 2 {
		t.Fatalf("root = %+v", root)
	}
	name := root.Children[0]
	if name.Label != "name" || name.Type != "string" || name.Line != 1 {
		t.Errorf("name = %+v", name)
	}
	items := root.Children[1]
	if items.Label != "items" || items.Type != "array" || items.Line != 2 {
		t.Errorf("items = %+v", items)
	}
	if len(items.Children) != 2 || items.Children[0].Type != "integer" || items.Children[1].Type != "string" {
		t.Errorf("item types wrong: %+v", items.Children)
	}
}
