// Package formats defines the contract shared by all format handlers
// and the registry they are selected through. Each concrete handler
// lives in a subpackage and registers itself by name during init; the
// detector, converter, and service only ever see this interface.
package formats

import (
	"sort"
	"strings"
	"sync"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
)

// Registered format names.
const (
	FormatJSON = "json"
	FormatXML  = "xml"
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// Reserved keys used by the XML encoding convention. The intermediate
// model has no native notion of attributes or mixed text, so XML
// elements carry them under these mapping keys.
const (
	// AttrsKey holds an element's attribute mapping.
	AttrsKey = "@attributes"
	// TextKey holds an element's trailing text content.
	TextKey = "#text"
)

// Handler is the capability interface every format implements.
// Handlers hold no mutable state and are safe for concurrent use.
type Handler interface {
	// Name returns the registry name of the format.
	Name() string

	// Extensions returns the file extensions (with leading dot, lower
	// case) associated with the format.
	Extensions() []string

	// Detect is a pure content heuristic. It must not panic, must run
	// on arbitrary text in O(n), and returns a confidence in [0,1].
	Detect(content string) DetectResult

	// Validate attempts a full parse. On failure it returns exactly one
	// structured error with 1-indexed line/column when derivable.
	Validate(content string) ValidationResult

	// Format parses and re-serializes with canonical indentation.
	Format(content string, opts Options) FormatResult

	// Minify produces the compact form. Whitespace-significant formats
	// return an unsupported-operation error instead of corrupt output.
	Minify(content string) FormatResult

	// BuildStructure produces a navigation tree for the document.
	BuildStructure(content string) StructureResult

	// Parse converts content into the intermediate model, failing
	// loudly on any syntax error.
	Parse(content string) (*value.Value, error)

	// Stringify serializes an intermediate value. It fails only on
	// values the format cannot represent (e.g., null in TOML).
	Stringify(v *value.Value, opts Options) (string, error)
}

// DetectResult is one handler's verdict on a piece of content.
type DetectResult struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

// Issue is a structured error or warning returned as data.
type Issue struct {
	Format  string `json:"format,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Message string `json:"message"`
}

// ValidationResult reports whether content parses in a format.
type ValidationResult struct {
	Format   string  `json:"format"`
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// FormatResult carries formatted or minified output. Output is empty
// when Errors is non-empty.
type FormatResult struct {
	Format string  `json:"format"`
	Output string  `json:"output,omitempty"`
	Errors []Issue `json:"errors,omitempty"`
}

// StructureNode is a navigation-only tree node with a best-effort
// source line reference. It is never round-tripped back to text.
type StructureNode struct {
	Label    string           `json:"label"`
	Type     string           `json:"type"`
	Depth    int              `json:"depth"`
	Line     int              `json:"line,omitempty"`
	Children []*StructureNode `json:"children,omitempty"`
}

// StructureResult carries the structure tree for a document.
type StructureResult struct {
	Format string           `json:"format"`
	Nodes  []*StructureNode `json:"nodes"`
	Errors []Issue          `json:"errors,omitempty"`
}

// Options controls serialization.
type Options struct {
	// IndentWidth is the number of spaces per level; 0 means the
	// default of 2.
	IndentWidth int
	// SortKeys sorts mapping keys instead of preserving order.
	SortKeys bool
	// Declaration emits the XML declaration (XML only).
	Declaration bool
	// RootName overrides the synthetic root element name (XML only).
	RootName string
}

// Indent returns the indentation string implied by the options.
func (o Options) Indent() string {
	w := o.IndentWidth
	if w <= 0 {
		w = 2
	}
	return strings.Repeat(" ", w)
}

// Width returns the effective indent width.
func (o Options) Width() int {
	if o.IndentWidth <= 0 {
		return 2
	}
	return o.IndentWidth
}

// registry holds all registered handlers by name.
var (
	registryMu sync.RWMutex
	registry   = make(map[string]Handler)
	regOrder   []string
)

// Register registers a handler by its name. Later registrations with
// the same name replace earlier ones.
func Register(h Handler) {
	registryMu.Lock()
	defer registryMu.Unlock()
	name := h.Name()
	if _, ok := registry[name]; !ok {
		regOrder = append(regOrder, name)
	}
	registry[name] = h
}

// Get returns the handler registered under name.
func Get(name string) (Handler, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	h, ok := registry[strings.ToLower(name)]
	return h, ok
}

// IsRegistered reports whether a handler exists for name.
func IsRegistered(name string) bool {
	_, ok := Get(name)
	return ok
}

// Names returns all registered format names in registration order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	out := make([]string, len(regOrder))
	copy(out, regOrder)
	return out
}

// ByExtension returns the handler whose extension set contains ext.
// The extension is matched case-insensitively, with or without the
// leading dot.
func ByExtension(ext string) (Handler, bool) {
	ext = strings.ToLower(ext)
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, name := range regOrder {
		h := registry[name]
		for _, e := range h.Extensions() {
			if e == ext {
				return h, true
			}
		}
	}
	return nil, false
}

// SortedNames returns all registered format names sorted
// alphabetically, for callers needing a stable list.
func SortedNames() []string {
	names := Names()
	sort.Strings(names)
	return names
}

// IssueFromError converts an engine error into a structured Issue,
// pulling out line/column when the error carries them.
func IssueFromError(format string, err error) Issue {
	var syn *errors.SyntaxError
	if errors.As(err, &syn) {
		f := syn.Format
		if f == "" {
			f = format
		}
		return Issue{
			Format:  f,
			Line:    syn.Line,
			Column:  syn.Column,
			Message: syn.Message,
		}
	}
	return Issue{Format: format, Message: err.Error()}
}
