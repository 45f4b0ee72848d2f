package convert

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Transform rules are pure recursive functions: each takes a tree and
// returns a new tree plus any adjustments, never mutating in place.

// flattenedTextKey is the key text content lands under when the XML
// encoding convention is flattened for non-XML targets.
const flattenedTextKey = "_text"

// flattenMarkup rewrites the XML encoding convention for non-XML
// targets: attribute entries become "@"-prefixed keys, text content
// becomes "_text", and a mapping holding nothing but text collapses to
// the text itself.
func flattenMarkup(v *value.Value) *value.Value {
	if v == nil {
		return value.NewNull()
	}
	switch v.Kind() {
	case value.KindMap:
		m := v.Map()
		if m.Len() == 1 {
			if tv, ok := m.Get(formats.TextKey); ok {
				return flattenMarkup(tv)
			}
		}
		out := value.NewMap()
		for _, k := range m.Keys() {
			entry, _ := m.Get(k)
			switch k {
			case formats.AttrsKey:
				if entry != nil && entry.Kind() == value.KindMap {
					for _, ak := range entry.Map().Keys() {
						av, _ := entry.Map().Get(ak)
						out.Set("@"+ak, flattenMarkup(av))
					}
				}
			case formats.TextKey:
				out.Set(flattenedTextKey, flattenMarkup(entry))
			default:
				out.Set(k, flattenMarkup(entry))
			}
		}
		return value.NewMapValue(out)
	case value.KindSeq:
		items := make([]*value.Value, 0, len(v.Seq()))
		for _, item := range v.Seq() {
			items = append(items, flattenMarkup(item))
		}
		return value.NewSeq(items...)
	default:
		return v
	}
}

// legalNameChar reports whether c may appear in an element name.
func legalNameChar(c rune) bool {
	switch {
	case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		return true
	case c == '_' || c == '.' || c == '-':
		return true
	}
	return false
}

// sanitizeName makes name a legal XML element name, returning the new
// name and one human-readable clause per rule that fired. A legal name
// comes back unchanged with no clauses.
func sanitizeName(name string) (string, []string) {
	var clauses []string
	out := name

	if strings.Contains(out, " ") {
		out = strings.ReplaceAll(out, " ", "_")
		clauses = append(clauses, "spaces replaced with underscores")
	}

	var offending []rune
	seen := map[rune]bool{}
	var b strings.Builder
	for _, c := range out {
		if legalNameChar(c) {
			b.WriteRune(c)
			continue
		}
		if !seen[c] {
			seen[c] = true
			offending = append(offending, c)
		}
		b.WriteByte('_')
	}
	if len(offending) > 0 {
		out = b.String()
		quoted := make([]string, len(offending))
		for i, c := range offending {
			quoted[i] = fmt.Sprintf("%q", string(c))
		}
		sort.Strings(quoted)
		clauses = append(clauses, fmt.Sprintf("invalid characters %s replaced with underscores", strings.Join(quoted, ", ")))
	}

	if out == "" {
		out = "_"
		clauses = append(clauses, "empty name replaced with underscore")
	}

	first := out[0]
	if first >= '0' && first <= '9' || first == '-' || first == '.' {
		out = "_" + out
		clauses = append(clauses, "names cannot start with a digit, hyphen, or period")
	}

	if len(out) >= 3 && strings.EqualFold(out[:3], "xml") {
		out = "_" + out
		clauses = append(clauses, "the 'xml' prefix is reserved")
	}

	return out, clauses
}

// sanitizeTree sanitizes every mapping key so the tree serializes as
// XML, appending one tagName adjustment per changed key. The reserved
// convention keys pass through untouched. Keys that collide after
// sanitization gain a numeric suffix.
func sanitizeTree(v *value.Value, path string, adjs *[]Adjustment) *value.Value {
	if v == nil {
		return value.NewNull()
	}
	switch v.Kind() {
	case value.KindMap:
		m := v.Map()
		out := value.NewMap()
		for _, k := range m.Keys() {
			entry, _ := m.Get(k)
			childPath := joinPath(path, k)
			if k == formats.AttrsKey || k == formats.TextKey {
				out.Set(k, sanitizeTree(entry, childPath, adjs))
				continue
			}
			newName, clauses := sanitizeName(k)
			if out.Has(newName) {
				base := newName
				for i := 2; out.Has(newName); i++ {
					newName = fmt.Sprintf("%s_%d", base, i)
				}
				clauses = append(clauses, "renamed to avoid a collision with a sibling key")
			}
			if len(clauses) > 0 {
				*adjs = append(*adjs, Adjustment{
					Type:     AdjustTagName,
					Message:  fmt.Sprintf("Tag name %q adjusted to %q: %s", k, newName, strings.Join(clauses, "; ")),
					Original: k,
					NewValue: newName,
					Path:     childPath,
				})
			}
			out.Set(newName, sanitizeTree(entry, childPath, adjs))
		}
		return value.NewMapValue(out)
	case value.KindSeq:
		items := make([]*value.Value, 0, len(v.Seq()))
		for i, item := range v.Seq() {
			items = append(items, sanitizeTree(item, fmt.Sprintf("%s[%d]", path, i), adjs))
		}
		return value.NewSeq(items...)
	default:
		return v
	}
}

// stripNulls removes every null scalar for targets that cannot
// represent them, appending one nullValue adjustment per removal.
// Sequence removals are recorded against their original index and the
// remaining elements re-indexed.
func stripNulls(v *value.Value, path string, adjs *[]Adjustment) *value.Value {
	if v == nil || v.IsNull() {
		return nil
	}
	switch v.Kind() {
	case value.KindMap:
		m := v.Map()
		out := value.NewMap()
		for _, k := range m.Keys() {
			entry, _ := m.Get(k)
			childPath := joinPath(path, k)
			if entry == nil || entry.IsNull() {
				*adjs = append(*adjs, nullAdjustment(childPath))
				continue
			}
			if kept := stripNulls(entry, childPath, adjs); kept != nil {
				out.Set(k, kept)
			}
		}
		return value.NewMapValue(out)
	case value.KindSeq:
		items := make([]*value.Value, 0, len(v.Seq()))
		for i, item := range v.Seq() {
			childPath := fmt.Sprintf("%s[%d]", path, i)
			if item == nil || item.IsNull() {
				*adjs = append(*adjs, nullAdjustment(childPath))
				continue
			}
			if kept := stripNulls(item, childPath, adjs); kept != nil {
				items = append(items, kept)
			}
		}
		return value.NewSeq(items...)
	default:
		return v
	}
}

func nullAdjustment(path string) Adjustment {
	return Adjustment{
		Type:     AdjustNullValue,
		Message:  fmt.Sprintf("Removed null value at %q: the target format cannot represent null", displayPath(path)),
		Original: "null",
		Path:     path,
	}
}

// wrapRootSeq wraps a root-level sequence in a single-entry mapping so
// it can serialize in formats that need a container at the document
// root, recording one structural adjustment.
func wrapRootSeq(v *value.Value, key, reason string, adjs *[]Adjustment) *value.Value {
	if v == nil || v.Kind() != value.KindSeq {
		return v
	}
	m := value.NewMap()
	m.Set(key, v)
	*adjs = append(*adjs, Adjustment{
		Type:     AdjustStructure,
		Message:  fmt.Sprintf("Root-level array wrapped under the %q key: %s", key, reason),
		Original: "array",
		NewValue: key,
		Path:     "",
	})
	return value.NewMapValue(m)
}

// rootSeqKey holds a root sequence for table targets; rootItemKey names
// the repeated elements a root sequence becomes for markup targets.
const (
	rootSeqKey  = "items"
	rootItemKey = "item"
)

// tomlBareKeyRe matches keys TOML renders without quoting.
var tomlBareKeyRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// sanitizeKey makes name a bare TOML key, returning the new name and
// one clause per rule that fired. A bare name comes back unchanged.
func sanitizeKey(name string) (string, []string) {
	if tomlBareKeyRe.MatchString(name) {
		return name, nil
	}
	var clauses []string
	out := name

	if strings.Contains(out, " ") {
		out = strings.ReplaceAll(out, " ", "_")
		clauses = append(clauses, "spaces replaced with underscores")
	}

	var offending []rune
	seen := map[rune]bool{}
	var b strings.Builder
	for _, c := range out {
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '_' || c == '-':
			b.WriteRune(c)
		default:
			if !seen[c] {
				seen[c] = true
				offending = append(offending, c)
			}
			b.WriteByte('_')
		}
	}
	if len(offending) > 0 {
		out = b.String()
		quoted := make([]string, len(offending))
		for i, c := range offending {
			quoted[i] = fmt.Sprintf("%q", string(c))
		}
		sort.Strings(quoted)
		clauses = append(clauses, fmt.Sprintf("invalid characters %s replaced with underscores", strings.Join(quoted, ", ")))
	}

	if out == "" {
		out = "_"
		clauses = append(clauses, "empty name replaced with underscore")
	}
	return out, clauses
}

// sanitizeTableKeys rewrites mapping keys the TOML encoder would have
// to quote, appending one tagName adjustment per changed key. Keys
// carrying the flattened attribute marker ("@"-prefixed) pass through
// so the markup convention stays visible in the output. Keys that
// collide after sanitization gain a numeric suffix.
func sanitizeTableKeys(v *value.Value, path string, adjs *[]Adjustment) *value.Value {
	if v == nil {
		return v
	}
	switch v.Kind() {
	case value.KindMap:
		m := v.Map()
		out := value.NewMap()
		for _, k := range m.Keys() {
			entry, _ := m.Get(k)
			childPath := joinPath(path, k)
			if strings.HasPrefix(k, "@") {
				out.Set(k, sanitizeTableKeys(entry, childPath, adjs))
				continue
			}
			newName, clauses := sanitizeKey(k)
			if out.Has(newName) {
				base := newName
				for i := 2; out.Has(newName); i++ {
					newName = fmt.Sprintf("%s_%d", base, i)
				}
				clauses = append(clauses, "renamed to avoid a collision with a sibling key")
			}
			if len(clauses) > 0 {
				*adjs = append(*adjs, Adjustment{
					Type:     AdjustTagName,
					Message:  fmt.Sprintf("Key %q adjusted to %q: %s", k, newName, strings.Join(clauses, "; ")),
					Original: k,
					NewValue: newName,
					Path:     childPath,
				})
			}
			out.Set(newName, sanitizeTableKeys(entry, childPath, adjs))
		}
		return value.NewMapValue(out)
	case value.KindSeq:
		items := make([]*value.Value, 0, len(v.Seq()))
		for i, item := range v.Seq() {
			items = append(items, sanitizeTableKeys(item, fmt.Sprintf("%s[%d]", path, i), adjs))
		}
		return value.NewSeq(items...)
	default:
		return v
	}
}

// emptyTable returns an empty mapping, used when a document reduces to
// nothing after null removal.
func emptyTable() *value.Value {
	return value.NewMapValue(value.NewMap())
}

// joinPath appends a key to a dotted locator.
func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// displayPath renders a locator for messages; the root is "(root)".
func displayPath(path string) string {
	if path == "" {
		return "(root)"
	}
	return path
}
