package xml

import (
	"strings"
	"testing"

	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// TestDetect verifies the confidence heuristics for XML content.
func TestDetect(t *testing.T) {
	h := &Handler{}
	tests := []struct {
		name    string
		content string
		minConf float64
		maxConf float64
	}{
		{"declaration", `<?xml version="1.0"?><a>x</a>`, 0.9, 1.0},
		{"plain element", `<a>x</a>`, 0.6, 0.8},
		{"self closing", `<a/>`, 0.6, 0.8},
		{"open tag only", `<a>unclosed`, 0.2, 0.4},
		{"not xml", `{"a": 1}`, 0, 0},
		{"empty", "", 0, 0},
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

// TestValidate verifies accepted and rejected documents.
func TestValidate(t *testing.T) {
	h := &Handler{}
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"simple", `<a><b>1</b></a>`, true},
		{"with declaration", `<?xml version="1.0"?><a/>`, true},
		{"unclosed", `<a><b>1</a>`, false},
		{"multiple roots", `<a/><b/>`, false},
		{"text outside root", `<a/>stray`, false},
		{"empty", ``, false},
		{"no element", `<!-- only a comment -->`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.Validate(tt.content)
			if res.Valid != tt.valid {
				t.Errorf("Validate(%q).Valid = %v, want %v (errors: %v)",
					tt.content, res.Valid, tt.valid, res.Errors)
			}
			if !tt.valid && len(res.Errors) != 1 {
				t.Errorf("got %d errors, want exactly 1", len(res.Errors))
			}
		})
	}
}

// TestValidateErrorLine verifies that syntax errors carry a line.
func TestValidateErrorLine(t *testing.T) {
	h := &Handler{}
	res := h.Validate("<a>\n  <b>\n</a>\n")
	if res.Valid {
		t.Fatal("mismatched tags reported valid")
	}
	if res.Errors[0].Line == 0 {
		t.Errorf("error has no line: %+v", res.Errors[0])
	}
}

// TestParseAttributesAndText verifies the reserved-key convention:
// attributes under "@attributes", mixed text under "#text", and the
// root element unwrapped.
func TestParseAttributesAndText(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse(`<a x="1">hi</a>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if v.Kind() != value.KindMap {
		t.Fatalf("root kind = %s, want object", v.Kind())
	}
	m := v.Map()
	attrs, ok := m.Get(formats.AttrsKey)
	if !ok || attrs.Kind() != value.KindMap {
		t.Fatalf("missing %s mapping", formats.AttrsKey)
	}
	x, _ := attrs.Map().Get("x")
	if x == nil || x.Str() != "1" {
		t.Errorf("attribute x = %v, want \"1\"", x)
	}
	text, ok := m.Get(formats.TextKey)
	if !ok || text.Str() != "hi" {
		t.Errorf("%s = %v, want \"hi\"", formats.TextKey, text)
	}
}

// TestParseTextOnlyCollapses verifies that an element with only text
// and no attributes becomes a bare string.
func TestParseTextOnlyCollapses(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse(`<root><name>widget</name></root>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	name, ok := v.Map().Get("name")
	if !ok || name.Kind() != value.KindString || name.Str() != "widget" {
		t.Errorf("name = %v, want string widget", name)
	}
}

// TestParseRepeatedSiblings verifies that repeated child tags collapse
// into a sequence in document order.
func TestParseRepeatedSiblings(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse(`<root><item>a</item><item>b</item><item>c</item></root>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	items, ok := v.Map().Get("item")
	if !ok || items.Kind() != value.KindSeq {
		t.Fatalf("item = %v, want array", items)
	}
	seq := items.Seq()
	if len(seq) != 3 || seq[0].Str() != "a" || seq[1].Str() != "b" || seq[2].Str() != "c" {
		t.Errorf("items = %v", seq)
	}
}

// TestParseEmptyElement verifies that an empty element becomes an
// empty string.
func TestParseEmptyElement(t *testing.T) {
	h := &Handler{}
	v, err := h.Parse(`<root><gap/></root>`)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	gap, _ := v.Map().Get("gap")
	if gap.Kind() != value.KindString || gap.Str() != "" {
		t.Errorf("gap = %v, want empty string", gap)
	}
}

// TestStringifySingleKeyRoot verifies root re-wrapping: a single-key
// mapping uses its key as the root element.
func TestStringifySingleKeyRoot(t *testing.T) {
	h := &Handler{}
	inner := value.NewMap()
	inner.Set("name", value.NewString("x"))
	m := value.NewMap()
	m.Set("config", value.NewMapValue(inner))

	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "<config>") {
		t.Errorf("single-key mapping should become the root:\n%s", out)
	}
	if strings.Contains(out, "<root>") {
		t.Errorf("synthetic root emitted unnecessarily:\n%s", out)
	}
}

// TestStringifyRootSequence verifies that a sequence document renders
// as repeated item children under one root element.
func TestStringifyRootSequence(t *testing.T) {
	h := &Handler{}
	out, err := h.Stringify(value.NewSeq(value.NewInt(1), value.NewInt(2)), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify: %v", err)
	}
	want := "<root>\n  <item>1</item>\n  <item>2</item>\n</root>\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if vr := h.Validate(out); !vr.Valid {
		t.Errorf("output does not validate: %+v", vr.Errors)
	}
}

// TestStringifySingleKeySequenceKeepsRoot verifies that a single-key
// mapping holding a sequence is not unwrapped into sibling roots.
func TestStringifySingleKeySequenceKeepsRoot(t *testing.T) {
	h := &Handler{}
	m := value.NewMap()
	m.Set("entry", value.NewSeq(value.NewString("a"), value.NewString("b")))
	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify: %v", err)
	}
	want := "<root>\n  <entry>a</entry>\n  <entry>b</entry>\n</root>\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if vr := h.Validate(out); !vr.Valid {
		t.Errorf("output does not validate: %+v", vr.Errors)
	}
}

// TestStringifySyntheticRoot verifies that a multi-key mapping gets a
// synthetic root element.
func TestStringifySyntheticRoot(t *testing.T) {
	h := &Handler{}
	m := value.NewMap()
	m.Set("a", value.NewInt(1))
	m.Set("b", value.NewInt(2))

	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "<root>") {
		t.Errorf("multi-key mapping should get a synthetic root:\n%s", out)
	}

	named, err := h.Stringify(value.NewMapValue(m), formats.Options{RootName: "doc"})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(named), "<doc>") {
		t.Errorf("RootName not honored:\n%s", named)
	}
}

// TestStringifySequenceAsSiblings verifies that sequences render as
// repeated elements and that nulls render as empty elements.
func TestStringifySequenceAsSiblings(t *testing.T) {
	h := &Handler{}
	inner := value.NewMap()
	inner.Set("item", value.NewSeq(value.NewString("a"), value.NewNull(), value.NewInt(3)))
	m := value.NewMap()
	m.Set("list", value.NewMapValue(inner))

	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if strings.Count(out, "<item") != 3 {
		t.Errorf("want 3 item elements:\n%s", out)
	}
	if !strings.Contains(out, "<item/>") {
		t.Errorf("null member should render as empty element:\n%s", out)
	}
}

// TestStringifyEscaping verifies markup escaping in text and
// attributes.
func TestStringifyEscaping(t *testing.T) {
	h := &Handler{}
	attrs := value.NewMap()
	attrs.Set("q", value.NewString(`a"b<c`))
	inner := value.NewMap()
	inner.Set(formats.AttrsKey, value.NewMapValue(attrs))
	inner.Set(formats.TextKey, value.NewString("1 < 2 & 3 > 2"))
	m := value.NewMap()
	m.Set("e", value.NewMapValue(inner))

	out, err := h.Stringify(value.NewMapValue(m), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	if !strings.Contains(out, "&quot;") || !strings.Contains(out, "&amp;") || !strings.Contains(out, "&lt;") {
		t.Errorf("markup not escaped:\n%s", out)
	}
}

// TestStringifyInvalidName verifies rejection of names XML cannot
// express.
func TestStringifyInvalidName(t *testing.T) {
	h := &Handler{}
	m := value.NewMap()
	m.Set("bad name", value.NewInt(1))
	m.Set("other", value.NewInt(2))
	if _, err := h.Stringify(value.NewMapValue(m), formats.Options{}); err == nil {
		t.Error("element name with a space should be rejected")
	}
}

// TestRoundTrip verifies parse then stringify re-parses to the same
// tree for attribute-bearing documents.
func TestRoundTrip(t *testing.T) {
	h := &Handler{}
	src := `<config env="prod"><name>svc</name><port>8080</port></config>`
	v, err := h.Parse(src)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	// The root was unwrapped, so re-wrap under the original tag before
	// serializing.
	wrapped := value.NewMap()
	wrapped.Set("config", v)
	out, err := h.Stringify(value.NewMapValue(wrapped), formats.Options{})
	if err != nil {
		t.Fatalf("Stringify failed: %v", err)
	}
	back, err := h.Parse(out)
	if err != nil {
		t.Fatalf("re-Parse failed: %v\noutput:\n%s", err, out)
	}
	if !value.Equal(v, back) {
		t.Errorf("round trip changed the document:\n%s", out)
	}
}

// TestFormat verifies pretty-printing with nested indentation.
func TestFormat(t *testing.T) {
	h := &Handler{}
	res := h.Format(`<a><b><c>1</c></b></a>`, formats.Options{})
	if len(res.Errors) > 0 {
		t.Fatalf("Format errors: %v", res.Errors)
	}
	if !strings.Contains(res.Output, "\n  <b>") || !strings.Contains(res.Output, "\n    <c>1</c>") {
		t.Errorf("nested elements not indented:\n%s", res.Output)
	}
}

// TestMinify verifies whitespace removal between elements.
func TestMinify(t *testing.T) {
	h := &Handler{}
	res := h.Minify("<a>\n  <b>1</b>\n  <c/>\n</a>\n")
	if len(res.Errors) > 0 {
		t.Fatalf("Minify errors: %v", res.Errors)
	}
	if res.Output != `<a><b>1</b><c/></a>` {
		t.Errorf("Minify = %q", res.Output)
	}
}

// TestBuildStructure verifies element labels, depths, and lines.
func TestBuildStructure(t *testing.T) {
	h := &Handler{}
	src := "<root>\n  <child>\n    <leaf>1</leaf>\n  </child>\n</root>\n"
	res := h.BuildStructure(src)
	if len(res.Errors) > 0 {
		t.Fatalf("BuildStructure errors: %v", res.Errors)
	}
	if len(res.Nodes) != 1 {
		t.Fatalf("got %d roots, want 1", len(res.Nodes))
	}
	root := res.Nodes[0]
	if root.Label != "root" || root.Line != 1 || len(root.Children) != 1 {
		t.Fatalf("root = %+v", root)
	}
	child := root.Children[0]
	if child.Label != "child" || child.Depth != 1 || child.Line != 2 {
		t.Errorf("child = %+v", child)
	}
	if len(child.Children) != 1 || child.Children[0].Label != "leaf" || child.Children[0].Line != 3 {
		t.Errorf("leaf = %+v", child.Children[0])
	}
}
