// Package convert orchestrates cross-format conversion: parse through
// the source handler, apply compatibility transforms, serialize
// through the target handler, and report every lossy repair as an
// adjustment with a best-effort output line number.
package convert

import (
	"fmt"
	"strings"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Adjustment types.
const (
	AdjustTagName   = "tagName"
	AdjustNullValue = "nullValue"
	AdjustStructure = "structure"
)

// Adjustment records one lossy repair made during a conversion. It is
// scoped to a single Convert call and never persisted.
type Adjustment struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Original string `json:"original"`
	NewValue string `json:"newValue"`
	// Path is a dotted/bracketed locator into the source tree.
	Path string `json:"path"`
	// Line is the 1-indexed line in the output text, 0 when the repair
	// could not be located.
	Line int `json:"line,omitempty"`
}

// Result is the outcome of one conversion.
type Result struct {
	Format      string          `json:"format"`
	Converted   string          `json:"converted,omitempty"`
	Errors      []formats.Issue `json:"errors"`
	Adjustments []Adjustment    `json:"adjustments"`
}

// Convert converts content between two registered formats. Identical
// source and target short-circuit to the unchanged input. The
// adjustment list is threaded through the transforms as an explicit
// accumulator, so Convert is safe for concurrent callers.
func Convert(content, from, to string, opts formats.Options) (res Result) {
	res = Result{
		Format:      to,
		Errors:      []formats.Issue{},
		Adjustments: []Adjustment{},
	}

	// Identity conversion: nothing to do, nothing to report.
	if from == to {
		res.Converted = content
		return res
	}

	defer func() {
		if r := recover(); r != nil {
			res.Converted = ""
			res.Errors = append(res.Errors, phaseIssue(errors.PhaseConversion, fmt.Errorf("internal error: %v", r)))
		}
	}()

	src, ok := formats.Get(from)
	if !ok {
		res.Errors = append(res.Errors, phaseIssue(errors.PhaseValidation, errors.NewUnsupportedFormat(from)))
		return res
	}
	dst, ok := formats.Get(to)
	if !ok {
		res.Errors = append(res.Errors, phaseIssue(errors.PhaseValidation, errors.NewUnsupportedFormat(to)))
		return res
	}

	v, err := src.Parse(content)
	if err != nil {
		res.Errors = append(res.Errors, phaseIssue(errors.PhaseConversion, err))
		return res
	}

	if from == formats.FormatXML && to != formats.FormatXML {
		v = flattenMarkup(v)
	}
	if to == formats.FormatTOML {
		v = stripNulls(v, "", &res.Adjustments)
		if v == nil {
			// The whole document was a single null.
			res.Adjustments = append(res.Adjustments, nullAdjustment(""))
			v = emptyTable()
		}
		v = wrapRootSeq(v, rootSeqKey, "the target format requires a table at the root", &res.Adjustments)
		v = sanitizeTableKeys(v, "", &res.Adjustments)
	}
	if to == formats.FormatXML {
		v = wrapRootSeq(v, rootItemKey, "XML requires a single root element", &res.Adjustments)
		v = sanitizeTree(v, "", &res.Adjustments)
	}

	out, err := dst.Stringify(v, opts)
	if err != nil {
		res.Errors = append(res.Errors, phaseIssue(errors.PhaseConversion, err))
		return res
	}

	resolveLines(out, res.Adjustments)
	res.Converted = out
	return res
}

// resolveLines sets each adjustment's line to the first output line
// containing its literal new value. First-match attribution can be
// wrong when several keys share a value; tracking positions during
// serialization would fix that and is noted as an open improvement.
func resolveLines(converted string, adjs []Adjustment) {
	if len(adjs) == 0 {
		return
	}
	lines := strings.Split(converted, "\n")
	for i := range adjs {
		if adjs[i].NewValue == "" {
			continue
		}
		for ln, l := range lines {
			if strings.Contains(l, adjs[i].NewValue) {
				adjs[i].Line = ln + 1
				break
			}
		}
	}
}

// phaseIssue wraps an error with its pipeline phase.
func phaseIssue(phase errors.Phase, err error) formats.Issue {
	cerr := &errors.ConversionError{Phase: phase, Err: err}
	issue := formats.IssueFromError("", err)
	issue.Message = cerr.Error()
	return issue
}

// Targets returns every registered format except the source.
func Targets(from string) []string {
	var out []string
	for _, name := range formats.Names() {
		if name != from {
			out = append(out, name)
		}
	}
	return out
}

// Supported reports whether both formats are registered.
func Supported(from, to string) bool {
	return formats.IsRegistered(from) && formats.IsRegistered(to)
}

// pairWarnings holds static, pair-specific advisories. They describe
// generic risk for the pair and are distinct from adjustments, which
// are per-document and concrete.
var pairWarnings = map[string][]string{
	"json|xml": {
		"XML requires a single root element; multi-key documents are wrapped in a synthetic root",
		"a top-level array renders as repeated 'item' elements under the root",
		"object keys are sanitized to legal element names",
		"number and boolean types become text and are not recoverable",
	},
	"json|toml": {
		"null values cannot be represented in TOML and are removed",
		"a top-level array is wrapped under an 'items' key",
		"object keys TOML cannot render bare are sanitized",
	},
	"json|yaml": {
		"strings resembling numbers or booleans are quoted to preserve their type",
	},
	"xml|json": {
		"attributes are flattened to '@'-prefixed keys and text content to '_text'",
		"all scalar values become strings; numeric types are not inferred",
	},
	"xml|yaml": {
		"attributes are flattened to '@'-prefixed keys and text content to '_text'",
		"all scalar values become strings; numeric types are not inferred",
	},
	"xml|toml": {
		"attributes are flattened to '@'-prefixed keys and text content to '_text'",
		"empty elements become empty strings rather than null",
		"keys TOML cannot render bare are sanitized, except '@'-prefixed attribute keys",
	},
	"yaml|json": {
		"comments, anchors, and aliases are not preserved",
	},
	"yaml|xml": {
		"comments, anchors, and aliases are not preserved",
		"XML requires a single root element; multi-key documents are wrapped in a synthetic root",
		"a top-level sequence renders as repeated 'item' elements under the root",
		"mapping keys are sanitized to legal element names",
	},
	"yaml|toml": {
		"comments, anchors, and aliases are not preserved",
		"null values cannot be represented in TOML and are removed",
		"a top-level sequence is wrapped under an 'items' key",
		"mapping keys TOML cannot render bare are sanitized",
	},
	"toml|json": {
		"datetime values are rendered as RFC 3339 strings",
		"comments are not preserved",
	},
	"toml|yaml": {
		"datetime values are rendered as RFC 3339 strings",
		"comments are not preserved",
	},
	"toml|xml": {
		"datetime values are rendered as RFC 3339 strings",
		"table keys are sanitized to legal element names",
	},
}

// Warnings returns the static advisories for a conversion pair.
func Warnings(from, to string) []string {
	return pairWarnings[from+"|"+to]
}
