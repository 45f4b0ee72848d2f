// Package toml implements the TOML format handler. Parsing goes
// through BurntSushi/toml, with document key order restored from
// MetaData.Keys and error positions taken from toml.ParseError.
// Serialization is hand-rolled: the canonical form (pairs before
// sections, a blank line before every header, [[...]] for arrays of
// tables) is not expressible through the library encoder.
package toml

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tidwall/gjson"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Handler implements formats.Handler for TOML.
type Handler struct{}

// init automatically registers this handler when the package is imported.
func init() {
	formats.Register(&Handler{})
}

// Name implements formats.Handler.Name.
func (h *Handler) Name() string { return formats.FormatTOML }

// Extensions implements formats.Handler.Extensions.
func (h *Handler) Extensions() []string { return []string{".toml"} }

var (
	sectionRe    = regexp.MustCompile(`(?m)^\s*\[[^\[\]\n]+\]\s*(#.*)?$`)
	arrayTableRe = regexp.MustCompile(`(?m)^\s*\[\[[^\]\n]+\]\]\s*(#.*)?$`)
	keyValueRe   = regexp.MustCompile(`(?m)^\s*[A-Za-z0-9_."'-]+\s*=`)
	bareKeyRe    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// Detect implements formats.Handler.Detect.
// A leading document marker (---) or content that parses as JSON
// disqualifies TOML outright.
func (h *Handler) Detect(content string) formats.DetectResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || strings.HasPrefix(trimmed, "---") {
		return formats.DetectResult{}
	}
	if gjson.Valid(trimmed) {
		return formats.DetectResult{}
	}

	conf := 0.0
	if sectionRe.MatchString(content) {
		conf += 0.4
	}
	if arrayTableRe.MatchString(content) {
		conf += 0.2
	}
	if keyValueRe.MatchString(content) {
		conf += 0.4
	}
	if conf > 1 {
		conf = 1
	}
	return formats.DetectResult{Match: conf > 0, Confidence: conf}
}

// Validate implements formats.Handler.Validate.
func (h *Handler) Validate(content string) formats.ValidationResult {
	res := formats.ValidationResult{Format: h.Name()}
	if _, err := h.Parse(content); err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	res.Valid = true
	return res
}

// Format implements formats.Handler.Format.
func (h *Handler) Format(content string, opts formats.Options) formats.FormatResult {
	res := formats.FormatResult{Format: h.Name()}
	v, err := h.Parse(content)
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	out, err := h.Stringify(v, opts)
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	res.Output = out
	return res
}

// Minify implements formats.Handler.Minify.
// TOML has no compact form: newlines separate statements.
func (h *Handler) Minify(content string) formats.FormatResult {
	err := errors.NewUnsupportedOperation("minify", h.Name(), "whitespace is significant")
	return formats.FormatResult{
		Format: h.Name(),
		Errors: []formats.Issue{{Format: h.Name(), Message: err.Error()}},
	}
}

// Parse implements formats.Handler.Parse.
func (h *Handler) Parse(content string) (*value.Value, error) {
	var raw map[string]interface{}
	md, err := toml.Decode(content, &raw)
	if err != nil {
		return nil, h.syntaxError(content, err)
	}

	// Restore document order: MetaData.Keys lists every defined key in
	// the order it appears.
	idx := make(map[string]int)
	for i, k := range md.Keys() {
		j := strings.Join(k, "\x00")
		if _, ok := idx[j]; !ok {
			idx[j] = i
		}
	}
	return h.convertValue(raw, nil, idx)
}

// syntaxError converts BurntSushi errors into positioned SyntaxErrors.
func (h *Handler) syntaxError(content string, err error) error {
	var pe toml.ParseError
	if errors.As(err, &pe) {
		line := pe.Position.Line
		col := 0
		if start := formats.LineStart(content, line); start >= 0 && pe.Position.Start >= start {
			col = pe.Position.Start - start + 1
		}
		msg := pe.Message
		if msg == "" {
			msg = err.Error()
		}
		return errors.NewSyntax(h.Name(), line, col, msg)
	}
	return errors.NewSyntax(h.Name(), 0, 0, err.Error())
}

// convertValue maps decoded TOML data into the intermediate model.
func (h *Handler) convertValue(x interface{}, path []string, idx map[string]int) (*value.Value, error) {
	switch t := x.(type) {
	case map[string]interface{}:
		keys := h.orderKeys(t, path, idx)
		m := value.NewMap()
		for _, k := range keys {
			child, err := h.convertValue(t[k], append(path, k), idx)
			if err != nil {
				return nil, err
			}
			m.Set(k, child)
		}
		return value.NewMapValue(m), nil
	case []map[string]interface{}:
		items := make([]*value.Value, 0, len(t))
		for _, elem := range t {
			item, err := h.convertValue(elem, path, idx)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return value.NewSeq(items...), nil
	case []interface{}:
		items := make([]*value.Value, 0, len(t))
		for _, elem := range t {
			item, err := h.convertValue(elem, path, idx)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return value.NewSeq(items...), nil
	case bool:
		return value.NewBool(t), nil
	case int64:
		return value.NewInt(t), nil
	case float64:
		return value.NewFloat(t), nil
	case string:
		return value.NewString(t), nil
	case time.Time:
		return value.NewTime(t), nil
	}
	return nil, fmt.Errorf("unexpected TOML value of type %T", x)
}

// orderKeys sorts a decoded table's keys by their position in the
// source document, falling back to name order for keys the metadata
// does not cover.
func (h *Handler) orderKeys(t map[string]interface{}, path []string, idx map[string]int) []string {
	keys := make([]string, 0, len(t))
	for k := range t {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool {
		ia, oka := idx[strings.Join(append(path, keys[a]), "\x00")]
		ib, okb := idx[strings.Join(append(path, keys[b]), "\x00")]
		if oka && okb {
			return ia < ib
		}
		if oka != okb {
			return oka
		}
		return keys[a] < keys[b]
	})
	return keys
}

// Stringify implements formats.Handler.Stringify. Null values are
// unrepresentable; the converter strips them before calling here.
func (h *Handler) Stringify(v *value.Value, opts formats.Options) (string, error) {
	if v == nil || v.Kind() != value.KindMap {
		kind := "null"
		if v != nil {
			kind = v.Kind().String()
		}
		return "", fmt.Errorf("TOML requires a table at the document root, got %s", kind)
	}
	var b strings.Builder
	if err := h.writeTable(&b, v.Map(), nil, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// writeTable emits one table: scalar pairs first, then sections in
// document order, each preceded by a blank line.
func (h *Handler) writeTable(b *strings.Builder, m *value.Map, path []string, opts formats.Options) error {
	keys := m.Keys()
	if opts.SortKeys {
		sort.Strings(keys)
	}

	var sections []string
	for _, k := range keys {
		entry, _ := m.Get(k)
		if isSection(entry) {
			sections = append(sections, k)
			continue
		}
		rendered, err := h.inlineValue(entry)
		if err != nil {
			return fmt.Errorf("key %q: %w", strings.Join(append(path, k), "."), err)
		}
		fmt.Fprintf(b, "%s = %s\n", encodeKey(k), rendered)
	}

	for _, k := range sections {
		entry, _ := m.Get(k)
		header := headerPath(append(path, k))
		if entry.Kind() == value.KindMap {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(b, "[%s]\n", header)
			if err := h.writeTable(b, entry.Map(), append(path, k), opts); err != nil {
				return err
			}
			continue
		}
		// Array of tables.
		for _, elem := range entry.Seq() {
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(b, "[[%s]]\n", header)
			if err := h.writeTable(b, elem.Map(), append(path, k), opts); err != nil {
				return err
			}
		}
	}
	return nil
}

// isSection reports whether a value renders as a header rather than an
// inline pair: tables always do, and so do non-empty arrays that hold
// only tables.
func isSection(v *value.Value) bool {
	if v == nil {
		return false
	}
	switch v.Kind() {
	case value.KindMap:
		return true
	case value.KindSeq:
		items := v.Seq()
		if len(items) == 0 {
			return false
		}
		for _, item := range items {
			if item == nil || item.Kind() != value.KindMap {
				return false
			}
		}
		return true
	}
	return false
}

// inlineValue renders a value in inline position (right of an equals
// sign or inside an array).
func (h *Handler) inlineValue(v *value.Value) (string, error) {
	if v == nil || v.Kind() == value.KindNull {
		return "", fmt.Errorf("TOML cannot represent null values")
	}
	switch v.Kind() {
	case value.KindBool:
		return strconv.FormatBool(v.Bool()), nil
	case value.KindInt:
		return strconv.FormatInt(v.Int(), 10), nil
	case value.KindFloat:
		return floatLexeme(v.Float()), nil
	case value.KindString:
		return quoteString(v.Str()), nil
	case value.KindTime:
		return v.Time().Format("2006-01-02T15:04:05Z07:00"), nil
	case value.KindSeq:
		parts := make([]string, 0, len(v.Seq()))
		for _, item := range v.Seq() {
			p, err := h.inlineValue(item)
			if err != nil {
				return "", err
			}
			parts = append(parts, p)
		}
		return "[" + strings.Join(parts, ", ") + "]", nil
	case value.KindMap:
		m := v.Map()
		parts := make([]string, 0, m.Len())
		for _, k := range m.Keys() {
			entry, _ := m.Get(k)
			p, err := h.inlineValue(entry)
			if err != nil {
				return "", err
			}
			parts = append(parts, fmt.Sprintf("%s = %s", encodeKey(k), p))
		}
		return "{" + strings.Join(parts, ", ") + "}", nil
	}
	return "", fmt.Errorf("cannot render %s value", v.Kind())
}

// floatLexeme keeps a decimal point or exponent so floats survive a
// round-trip; TOML requires one anyway.
func floatLexeme(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// quoteString renders a TOML basic string.
func quoteString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\f':
			b.WriteString(`\f`)
		case '\r':
			b.WriteString(`\r`)
		default:
			if r < 0x20 {
				fmt.Fprintf(&b, `\u%04X`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// encodeKey renders a key bare when possible and quoted otherwise.
func encodeKey(k string) string {
	if bareKeyRe.MatchString(k) {
		return k
	}
	return quoteString(k)
}

// headerPath joins path segments into a section header.
func headerPath(path []string) string {
	parts := make([]string, len(path))
	for i, p := range path {
		parts[i] = encodeKey(p)
	}
	return strings.Join(parts, ".")
}

// BuildStructure implements formats.Handler.BuildStructure.
// TOML metadata carries no per-key positions, so lines are resolved by
// scanning the source for each key or header in document order.
func (h *Handler) BuildStructure(content string) formats.StructureResult {
	res := formats.StructureResult{Format: h.Name(), Nodes: []*formats.StructureNode{}}
	v, err := h.Parse(content)
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	cursor := 0
	res.Nodes = append(res.Nodes, h.structureNode(v, "root", 0, content, &cursor))
	return res
}

func (h *Handler) structureNode(v *value.Value, label string, depth int, content string, cursor *int) *formats.StructureNode {
	node := &formats.StructureNode{
		Label: label,
		Type:  v.Kind().String(),
		Depth: depth,
	}
	if depth == 0 {
		node.Line = 1
	} else if !strings.HasPrefix(label, "[") {
		node.Line = findKeyLine(content, cursor, label)
	} else {
		node.Line, _ = formats.LineCol(content, *cursor)
	}
	switch v.Kind() {
	case value.KindMap:
		for _, k := range v.Map().Keys() {
			child, _ := v.Map().Get(k)
			node.Children = append(node.Children, h.structureNode(child, k, depth+1, content, cursor))
		}
	case value.KindSeq:
		for i, item := range v.Seq() {
			node.Children = append(node.Children, h.structureNode(item, fmt.Sprintf("[%d]", i), depth+1, content, cursor))
		}
	}
	return node
}

// findKeyLine locates the first plausible occurrence of a key at or
// after the cursor. Best effort.
func findKeyLine(content string, cursor *int, key string) int {
	sub := content[*cursor:]
	best := -1
	for _, pat := range []string{key + " =", key + "=", "[" + key + "]", "[[" + key + "]]", "." + key + "]"} {
		if idx := strings.Index(sub, pat); idx >= 0 && (best < 0 || idx < best) {
			best = idx
		}
	}
	if best < 0 {
		return 0
	}
	pos := *cursor + best
	*cursor = pos + 1
	line, _ := formats.LineCol(content, pos)
	return line
}
