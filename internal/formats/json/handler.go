// Package json implements the JSON format handler. Parsing is a
// token-level walk over encoding/json so that object key order and the
// integer/float distinction survive into the intermediate model;
// formatting and minification reuse tidwall/pretty.
package json

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Handler implements formats.Handler for JSON.
type Handler struct{}

// init automatically registers this handler when the package is imported.
func init() {
	formats.Register(&Handler{})
}

// Name implements formats.Handler.Name.
func (h *Handler) Name() string { return formats.FormatJSON }

// Extensions implements formats.Handler.Extensions.
func (h *Handler) Extensions() []string { return []string{".json"} }

// Detect implements formats.Handler.Detect.
// Signals: balanced brace/bracket envelope, a successful lenient parse,
// and quoted-key syntax. Empty content never matches.
func (h *Handler) Detect(content string) formats.DetectResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return formats.DetectResult{}
	}

	conf := 0.0
	first, last := trimmed[0], trimmed[len(trimmed)-1]
	enveloped := (first == '{' && last == '}') || (first == '[' && last == ']')
	if enveloped {
		conf += 0.4
	}
	if gjson.Valid(trimmed) {
		if enveloped {
			conf += 0.5
		} else {
			// Bare scalars are valid JSON but weak evidence.
			conf += 0.3
		}
	}
	if strings.Contains(trimmed, `":`) || strings.Contains(trimmed, `" :`) {
		conf += 0.1
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
	if vr := h.Validate(content); !vr.Valid {
		res.Errors = vr.Errors
		return res
	}
	out := pretty.PrettyOptions([]byte(content), &pretty.Options{
		Width:    80,
		Indent:   opts.Indent(),
		SortKeys: opts.SortKeys,
	})
	res.Output = string(out)
	return res
}

// Minify implements formats.Handler.Minify.
func (h *Handler) Minify(content string) formats.FormatResult {
	res := formats.FormatResult{Format: h.Name()}
	if vr := h.Validate(content); !vr.Valid {
		res.Errors = vr.Errors
		return res
	}
	res.Output = string(pretty.Ugly([]byte(content)))
	return res
}

// BuildStructure implements formats.Handler.BuildStructure.
// Line numbers come from decoder offsets and are exact.
func (h *Handler) BuildStructure(content string) formats.StructureResult {
	res := formats.StructureResult{Format: h.Name(), Nodes: []*formats.StructureNode{}}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	node, err := h.structValue(dec, content, "root", 0)
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	res.Nodes = append(res.Nodes, node)
	return res
}

// Parse implements formats.Handler.Parse.
func (h *Handler) Parse(content string) (*value.Value, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.NewSyntax(h.Name(), 1, 1, "empty document")
	}
	dec := json.NewDecoder(strings.NewReader(content))
	dec.UseNumber()
	v, err := h.decodeValue(dec, content)
	if err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			line, col := formats.LineCol(content, int(dec.InputOffset())-1)
			return nil, errors.NewSyntax(h.Name(), line, col, fmt.Sprintf("unexpected content after document: %v", tok))
		}
		return nil, h.syntaxError(content, err)
	}
	return v, nil
}

// decodeValue reads exactly one JSON value from the decoder.
func (h *Handler) decodeValue(dec *json.Decoder, content string) (*value.Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, h.syntaxError(content, err)
	}
	return h.tokenValue(dec, content, tok)
}

// tokenValue converts a lead token, consuming the rest of a composite.
func (h *Handler) tokenValue(dec *json.Decoder, content string, tok json.Token) (*value.Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			m := value.NewMap()
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, h.syntaxError(content, err)
				}
				key, ok := keyTok.(string)
				if !ok {
					line, col := formats.LineCol(content, int(dec.InputOffset())-1)
					return nil, errors.NewSyntax(h.Name(), line, col, fmt.Sprintf("object key must be a string, got %v", keyTok))
				}
				val, err := h.decodeValue(dec, content)
				if err != nil {
					return nil, err
				}
				m.Set(key, val)
			}
			if _, err := dec.Token(); err != nil { // closing '}'
				return nil, h.syntaxError(content, err)
			}
			return value.NewMapValue(m), nil
		case '[':
			var items []*value.Value
			for dec.More() {
				item, err := h.decodeValue(dec, content)
				if err != nil {
					return nil, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil { // closing ']'
				return nil, h.syntaxError(content, err)
			}
			return value.NewSeq(items...), nil
		}
		return nil, errors.NewSyntax(h.Name(), 0, 0, fmt.Sprintf("unexpected delimiter %v", t))
	case string:
		return value.NewString(t), nil
	case bool:
		return value.NewBool(t), nil
	case json.Number:
		return numberValue(t), nil
	case nil:
		return value.NewNull(), nil
	}
	return nil, errors.NewSyntax(h.Name(), 0, 0, fmt.Sprintf("unexpected token %v", tok))
}

// numberValue keeps the integer/float distinction from the lexeme.
func numberValue(n json.Number) *value.Value {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.NewInt(i)
		}
	}
	f, _ := n.Float64()
	return value.NewFloat(f)
}

// syntaxError converts decoder errors into positioned SyntaxErrors.
func (h *Handler) syntaxError(content string, err error) error {
	var se *json.SyntaxError
	if errors.As(err, &se) {
		line, col := formats.LineCol(content, int(se.Offset)-1)
		return errors.NewSyntax(h.Name(), line, col, se.Error())
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		line, col := formats.LineCol(content, len(content))
		return errors.NewSyntax(h.Name(), line, col, "unexpected end of input")
	}
	return errors.NewSyntax(h.Name(), 0, 0, err.Error())
}

// Stringify implements formats.Handler.Stringify.
func (h *Handler) Stringify(v *value.Value, opts formats.Options) (string, error) {
	var b strings.Builder
	if err := h.writeValue(&b, v, opts, 0); err != nil {
		return "", err
	}
	b.WriteByte('\n')
	return b.String(), nil
}

func (h *Handler) writeValue(b *strings.Builder, v *value.Value, opts formats.Options, depth int) error {
	if v == nil {
		b.WriteString("null")
		return nil
	}
	switch v.Kind() {
	case value.KindNull:
		b.WriteString("null")
	case value.KindBool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case value.KindInt:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
	case value.KindFloat:
		s, err := formatFloat(v.Float())
		if err != nil {
			return err
		}
		b.WriteString(s)
	case value.KindString:
		b.WriteString(encodeString(v.Str()))
	case value.KindTime:
		b.WriteString(encodeString(v.Time().Format("2006-01-02T15:04:05Z07:00")))
	case value.KindSeq:
		items := v.Seq()
		if len(items) == 0 {
			b.WriteString("[]")
			return nil
		}
		b.WriteString("[\n")
		for i, item := range items {
			b.WriteString(strings.Repeat(opts.Indent(), depth+1))
			if err := h.writeValue(b, item, opts, depth+1); err != nil {
				return err
			}
			if i < len(items)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(opts.Indent(), depth))
		b.WriteByte(']')
	case value.KindMap:
		m := v.Map()
		if m.Len() == 0 {
			b.WriteString("{}")
			return nil
		}
		keys := m.Keys()
		if opts.SortKeys {
			sort.Strings(keys)
		}
		b.WriteString("{\n")
		for i, k := range keys {
			b.WriteString(strings.Repeat(opts.Indent(), depth+1))
			b.WriteString(encodeString(k))
			b.WriteString(": ")
			entry, _ := m.Get(k)
			if err := h.writeValue(b, entry, opts, depth+1); err != nil {
				return err
			}
			if i < len(keys)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(opts.Indent(), depth))
		b.WriteByte('}')
	default:
		return fmt.Errorf("cannot serialize %s value to JSON", v.Kind())
	}
	return nil
}

// formatFloat renders a float with a decimal point or exponent so the
// integer/float distinction survives a round-trip.
func formatFloat(f float64) (string, error) {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, "NI") { // NaN, Inf
		return "", fmt.Errorf("cannot represent non-finite number %s in JSON", s)
	}
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s, nil
}

// encodeString renders s as a quoted JSON string.
func encodeString(s string) string {
	out, err := json.Marshal(s)
	if err != nil {
		// Marshal of a string cannot fail; fall back to a bare quote.
		return strconv.Quote(s)
	}
	return string(out)
}

// structValue builds one structure node, mirroring tokenValue.
func (h *Handler) structValue(dec *json.Decoder, content string, label string, depth int) (*formats.StructureNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, h.syntaxError(content, err)
	}
	line, _ := formats.LineCol(content, int(dec.InputOffset())-1)
	return h.structToken(dec, content, tok, label, depth, line)
}

func (h *Handler) structToken(dec *json.Decoder, content string, tok json.Token, label string, depth, line int) (*formats.StructureNode, error) {
	node := &formats.StructureNode{Label: label, Depth: depth, Line: line}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			node.Type = "object"
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, h.syntaxError(content, err)
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, errors.NewSyntax(h.Name(), line, 0, "object key must be a string")
				}
				keyLine, _ := formats.LineCol(content, int(dec.InputOffset())-1)
				child, err := h.structValue(dec, content, key, depth+1)
				if err != nil {
					return nil, err
				}
				child.Line = keyLine
				node.Children = append(node.Children, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, h.syntaxError(content, err)
			}
		case '[':
			node.Type = "array"
			for i := 0; dec.More(); i++ {
				child, err := h.structValue(dec, content, fmt.Sprintf("[%d]", i), depth+1)
				if err != nil {
					return nil, err
				}
				node.Children = append(node.Children, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, h.syntaxError(content, err)
			}
		}
	case string:
		node.Type = "string"
	case bool:
		node.Type = "boolean"
	case json.Number:
		if numberValue(t).Kind() == value.KindInt {
			node.Type = "integer"
		} else {
			node.Type = "float"
		}
	case nil:
		node.Type = "null"
	default:
		return nil, errors.NewSyntax(h.Name(), line, 0, fmt.Sprintf("unexpected token %v", tok))
	}
	return node, nil
}
