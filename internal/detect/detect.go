// Package detect implements format sniffing over the handler registry.
// A trusted filename extension short-circuits content inspection;
// otherwise every handler's heuristic runs in a fixed priority order
// and the highest-confidence match wins, with the order itself acting
// as the tie-break.
package detect

import (
	"path/filepath"
	"strings"

	"github.com/polyform-dev/polyform/internal/formats"
)

// Detection methods.
const (
	MethodExtension = "extension"
	MethodContent   = "content"
	MethodNone      = "none"
)

// extensionConfidence is the fixed confidence assigned to extension
// matches; extensions are trusted over content sniffing.
const extensionConfidence = 0.9

// priority is the order handlers are consulted in: more syntactically
// distinctive formats first.
var priority = []string{
	formats.FormatJSON,
	formats.FormatXML,
	formats.FormatTOML,
	formats.FormatYAML,
}

// Result describes the outcome of a detection pass. Confidence is
// advisory: callers choose how to act on low values.
type Result struct {
	Format     string  `json:"format"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
}

// Detect sniffs the format of content. filename is optional; when its
// extension matches a registered handler the handler is returned
// immediately with method "extension".
func Detect(content, filename string) Result {
	if filename != "" {
		ext := strings.ToLower(filepath.Ext(filename))
		if h, ok := formats.ByExtension(ext); ok {
			return Result{
				Format:     h.Name(),
				Confidence: extensionConfidence,
				Method:     MethodExtension,
			}
		}
	}

	best := Result{Method: MethodNone}
	for _, name := range priority {
		h, ok := formats.Get(name)
		if !ok {
			continue
		}
		dr := h.Detect(content)
		if !dr.Match || dr.Confidence <= 0 {
			continue
		}
		// Strictly-greater keeps the earlier handler on ties.
		if dr.Confidence > best.Confidence {
			best = Result{
				Format:     name,
				Confidence: dr.Confidence,
				Method:     MethodContent,
			}
		}
	}
	return best
}
