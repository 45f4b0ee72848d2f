package formats

import (
	"testing"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
)

// stubHandler is a minimal handler for registry tests.
type stubHandler struct {
	name string
	exts []string
}

func (s *stubHandler) Name() string                            { return s.name }
func (s *stubHandler) Extensions() []string                    { return s.exts }
func (s *stubHandler) Detect(content string) DetectResult      { return DetectResult{} }
func (s *stubHandler) Validate(content string) ValidationResult {
	return ValidationResult{Format: s.name, Valid: true}
}
func (s *stubHandler) Format(content string, opts Options) FormatResult {
	return FormatResult{Format: s.name, Output: content}
}
func (s *stubHandler) Minify(content string) FormatResult {
	return FormatResult{Format: s.name, Output: content}
}
func (s *stubHandler) BuildStructure(content string) StructureResult {
	return StructureResult{Format: s.name}
}
func (s *stubHandler) Parse(content string) (*value.Value, error) {
	return value.NewNull(), nil
}
func (s *stubHandler) Stringify(v *value.Value, opts Options) (string, error) {
	return "", nil
}

// TestRegisterAndGet verifies registration, case-insensitive lookup,
// and replacement semantics.
func TestRegisterAndGet(t *testing.T) {
	first := &stubHandler{name: "stub1"}
	Register(first)

	h, ok := Get("stub1")
	if !ok || h != Handler(first) {
		t.Fatal("Get did not return the registered handler")
	}
	if _, ok := Get("STUB1"); !ok {
		t.Error("Get should be case-insensitive")
	}
	if !IsRegistered("stub1") {
		t.Error("IsRegistered = false for registered handler")
	}
	if IsRegistered("nope") {
		t.Error("IsRegistered = true for unknown handler")
	}

	replacement := &stubHandler{name: "stub1"}
	Register(replacement)
	h, _ = Get("stub1")
	if h != Handler(replacement) {
		t.Error("re-registration should replace the handler")
	}

	count := 0
	for _, n := range Names() {
		if n == "stub1" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("stub1 appears %d times in Names(), want 1", count)
	}
}

// TestByExtension verifies extension matching with and without the
// leading dot.
func TestByExtension(t *testing.T) {
	Register(&stubHandler{name: "stub2", exts: []string{".st2"}})

	tests := []struct {
		ext  string
		want bool
	}{
		{".st2", true},
		{"st2", true},
		{".ST2", true},
		{".unknown", false},
		{"", false},
	}
	for _, tt := range tests {
		h, ok := ByExtension(tt.ext)
		if ok != tt.want {
			t.Errorf("ByExtension(%q) ok = %v, want %v", tt.ext, ok, tt.want)
		}
		if ok && h.Name() != "stub2" {
			t.Errorf("ByExtension(%q) returned %s", tt.ext, h.Name())
		}
	}
}

// TestOptionsIndent verifies indent defaults.
func TestOptionsIndent(t *testing.T) {
	if got := (Options{}).Indent(); got != "  " {
		t.Errorf("default Indent() = %q, want two spaces", got)
	}
	if got := (Options{IndentWidth: 4}).Indent(); got != "    " {
		t.Errorf("Indent() = %q, want four spaces", got)
	}
	if got := (Options{}).Width(); got != 2 {
		t.Errorf("default Width() = %d, want 2", got)
	}
	if got := (Options{IndentWidth: -1}).Width(); got != 2 {
		t.Errorf("negative Width() = %d, want 2", got)
	}
}

// TestIssueFromError verifies extraction of location data from
// structured syntax errors and the plain fallback.
func TestIssueFromError(t *testing.T) {
	syn := errors.NewSyntax("json", 4, 9, "unexpected token")
	issue := IssueFromError("json", syn)
	if issue.Line != 4 || issue.Column != 9 || issue.Message != "unexpected token" {
		t.Errorf("IssueFromError(SyntaxError) = %+v", issue)
	}

	plain := IssueFromError("xml", errors.ErrNoMatch)
	if plain.Format != "xml" || plain.Line != 0 || plain.Message == "" {
		t.Errorf("IssueFromError(plain) = %+v", plain)
	}
}
