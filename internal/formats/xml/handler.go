// Package xml implements the XML format handler on top of
// antchfx/xmlquery, with a strict encoding/xml token pass for
// validation line numbers.
//
// Elements map onto the intermediate model using two reserved keys:
// "@attributes" holds the attribute mapping and "#text" holds trailing
// text content. An element with only text and no attributes collapses
// to a bare string, and repeated siblings with one tag collapse into a
// sequence. The document root element is unwrapped on parse; stringify
// re-wraps single-key mappings and synthesizes a root otherwise.
//
// Security: XXE (external entity) attacks are mitigated because Go's
// xml.Decoder does not fetch external entities, and entity expansion is
// explicitly disabled during validation.
package xml

import (
	"encoding/xml"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Handler implements formats.Handler for XML.
type Handler struct{}

// init automatically registers this handler when the package is imported.
func init() {
	formats.Register(&Handler{})
}

// Name implements formats.Handler.Name.
func (h *Handler) Name() string { return formats.FormatXML }

// Extensions implements formats.Handler.Extensions.
func (h *Handler) Extensions() []string { return []string{".xml"} }

// elementNameRe matches names legal as XML elements. The reserved
// "xml" prefix is a conversion concern, not a structural one.
var elementNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9._-]*$`)

// rootItemName names the child elements a root-level sequence renders as.
const rootItemName = "item"

// openTagRe captures the first element name for detection.
var openTagRe = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9._:-]*)[\s>/]`)

// Detect implements formats.Handler.Detect.
func (h *Handler) Detect(content string) formats.DetectResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || trimmed[0] != '<' {
		return formats.DetectResult{}
	}

	conf := 0.3
	if strings.HasPrefix(trimmed, "<?xml") {
		conf += 0.3
	}
	if m := openTagRe.FindStringSubmatch(trimmed); m != nil {
		name := m[1]
		if strings.Contains(trimmed, "</"+name) || strings.Contains(trimmed, "/>") {
			conf += 0.3
		}
	}
	if strings.HasSuffix(trimmed, ">") {
		conf += 0.1
	}
	if conf > 1 {
		conf = 1
	}
	return formats.DetectResult{Match: true, Confidence: conf}
}

// Validate implements formats.Handler.Validate.
// It runs a strict token pass so errors carry decoder positions, and
// rejects documents with zero or multiple root elements.
func (h *Handler) Validate(content string) formats.ValidationResult {
	res := formats.ValidationResult{Format: h.Name()}
	if err := h.checkTokens(content); err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	res.Valid = true
	return res
}

// checkTokens walks the document with a strict decoder.
func (h *Handler) checkTokens(content string) error {
	if strings.TrimSpace(content) == "" {
		return errors.NewSyntax(h.Name(), 1, 1, "empty document")
	}

	dec := xml.NewDecoder(strings.NewReader(content))
	// Disable custom entity expansion; predefined entities still work.
	dec.Entity = map[string]string{}

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return h.syntaxError(content, dec, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
				if roots > 1 {
					line, col := formats.LineCol(content, int(dec.InputOffset())-1)
					return errors.NewSyntax(h.Name(), line, col, "multiple root elements")
				}
			}
			depth++
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(t)) != "" {
				line, col := formats.LineCol(content, int(dec.InputOffset())-1)
				return errors.NewSyntax(h.Name(), line, col, "text content outside root element")
			}
		}
	}
	if roots == 0 {
		return errors.NewSyntax(h.Name(), 1, 1, "no root element")
	}
	return nil
}

// syntaxError converts decoder errors into positioned SyntaxErrors.
func (h *Handler) syntaxError(content string, dec *xml.Decoder, err error) error {
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		_, col := formats.LineCol(content, int(dec.InputOffset())-1)
		return errors.NewSyntax(h.Name(), se.Line, col, se.Msg)
	}
	line, col := formats.LineCol(content, int(dec.InputOffset())-1)
	return errors.NewSyntax(h.Name(), line, col, err.Error())
}

// Format implements formats.Handler.Format.
func (h *Handler) Format(content string, opts formats.Options) formats.FormatResult {
	res := formats.FormatResult{Format: h.Name()}
	if err := h.checkTokens(content); err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	var b strings.Builder
	formatNode(&b, doc, 0, opts.Indent())
	res.Output = b.String()
	return res
}

// formatNode recursively pretty-prints an XML node tree.
func formatNode(b *strings.Builder, n *xmlquery.Node, depth int, indent string) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			formatNode(b, child, depth, indent)
		}

	case xmlquery.DeclarationNode:
		b.WriteString("<?xml")
		for _, attr := range n.Attr {
			b.WriteString(" ")
			b.WriteString(attr.Name.Local)
			b.WriteString(`="`)
			b.WriteString(escapeAttr(attr.Value))
			b.WriteString(`"`)
		}
		b.WriteString("?>\n")

	case xmlquery.ElementNode:
		writeIndent(b, depth, indent)
		b.WriteString("<")
		b.WriteString(nodeTag(n))
		for _, attr := range n.Attr {
			b.WriteString(" ")
			b.WriteString(attrTag(attr))
			b.WriteString(`="`)
			b.WriteString(escapeAttr(attr.Value))
			b.WriteString(`"`)
		}

		text, elems := elementContent(n)
		if text == "" && len(elems) == 0 {
			b.WriteString("/>\n")
			return
		}
		b.WriteString(">")
		if len(elems) == 0 {
			b.WriteString(escapeText(text))
			b.WriteString("</")
			b.WriteString(nodeTag(n))
			b.WriteString(">\n")
			return
		}
		b.WriteString("\n")
		if text != "" {
			writeIndent(b, depth+1, indent)
			b.WriteString(escapeText(text))
			b.WriteString("\n")
		}
		for _, child := range elems {
			formatNode(b, child, depth+1, indent)
		}
		writeIndent(b, depth, indent)
		b.WriteString("</")
		b.WriteString(nodeTag(n))
		b.WriteString(">\n")

	case xmlquery.CommentNode:
		writeIndent(b, depth, indent)
		b.WriteString("<!--")
		b.WriteString(n.Data)
		b.WriteString("-->\n")
	}
}

// elementContent splits an element's children into trimmed text and
// element nodes.
func elementContent(n *xmlquery.Node) (string, []*xmlquery.Node) {
	var parts []string
	var elems []*xmlquery.Node
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			elems = append(elems, child)
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if t := strings.TrimSpace(child.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " "), elems
}

func writeIndent(b *strings.Builder, depth int, indent string) {
	for i := 0; i < depth; i++ {
		b.WriteString(indent)
	}
}

// nodeTag returns the element tag with its namespace prefix.
func nodeTag(n *xmlquery.Node) string {
	if n.Prefix != "" {
		return n.Prefix + ":" + n.Data
	}
	return n.Data
}

// attrTag returns the attribute name with its namespace prefix.
func attrTag(a xmlquery.Attr) string {
	if a.Name.Space != "" {
		return a.Name.Space + ":" + a.Name.Local
	}
	return a.Name.Local
}

// Minify implements formats.Handler.Minify.
func (h *Handler) Minify(content string) formats.FormatResult {
	res := formats.FormatResult{Format: h.Name()}
	if err := h.checkTokens(content); err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	var b strings.Builder
	minifyNode(&b, doc)
	res.Output = b.String()
	return res
}

// minifyNode writes a node tree with all inter-element whitespace
// removed.
func minifyNode(b *strings.Builder, n *xmlquery.Node) {
	switch n.Type {
	case xmlquery.DocumentNode:
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			minifyNode(b, child)
		}

	case xmlquery.DeclarationNode:
		b.WriteString("<?xml")
		for _, attr := range n.Attr {
			fmt.Fprintf(b, ` %s="%s"`, attr.Name.Local, escapeAttr(attr.Value))
		}
		b.WriteString("?>")

	case xmlquery.ElementNode:
		b.WriteString("<")
		b.WriteString(nodeTag(n))
		for _, attr := range n.Attr {
			fmt.Fprintf(b, ` %s="%s"`, attrTag(attr), escapeAttr(attr.Value))
		}
		text, elems := elementContent(n)
		if text == "" && len(elems) == 0 {
			b.WriteString("/>")
			return
		}
		b.WriteString(">")
		b.WriteString(escapeText(text))
		for _, child := range elems {
			minifyNode(b, child)
		}
		b.WriteString("</")
		b.WriteString(nodeTag(n))
		b.WriteString(">")
	}
}

// BuildStructure implements formats.Handler.BuildStructure.
// Line numbers are resolved by scanning the source for each opening
// tag in document order, which is best-effort.
func (h *Handler) BuildStructure(content string) formats.StructureResult {
	res := formats.StructureResult{Format: h.Name(), Nodes: []*formats.StructureNode{}}
	if err := h.checkTokens(content); err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}

	cursor := 0
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			res.Nodes = append(res.Nodes, structureNode(child, 0, content, &cursor))
		}
	}
	return res
}

// structureNode builds one node, advancing the scan cursor.
func structureNode(n *xmlquery.Node, depth int, content string, cursor *int) *formats.StructureNode {
	node := &formats.StructureNode{
		Label: nodeTag(n),
		Type:  "element",
		Depth: depth,
	}
	if idx := strings.Index(content[*cursor:], "<"+nodeTag(n)); idx >= 0 {
		pos := *cursor + idx
		line, _ := formats.LineCol(content, pos)
		node.Line = line
		*cursor = pos + 1
	}
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			node.Children = append(node.Children, structureNode(child, depth+1, content, cursor))
		}
	}
	return node
}

// Parse implements formats.Handler.Parse. The root element itself is
// unwrapped: its content becomes the document value and the root tag
// is not preserved.
func (h *Handler) Parse(content string) (*value.Value, error) {
	if err := h.checkTokens(content); err != nil {
		return nil, err
	}

	doc, err := xmlquery.Parse(strings.NewReader(content))
	if err != nil {
		return nil, errors.NewSyntax(h.Name(), 0, 0, err.Error())
	}
	for child := doc.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == xmlquery.ElementNode {
			return elementToValue(child), nil
		}
	}
	return nil, errors.NewSyntax(h.Name(), 1, 1, "no root element")
}

// elementToValue converts one element per the encoding convention.
func elementToValue(n *xmlquery.Node) *value.Value {
	m := value.NewMap()
	if len(n.Attr) > 0 {
		attrs := value.NewMap()
		for _, a := range n.Attr {
			attrs.Set(attrTag(a), value.NewString(a.Value))
		}
		m.Set(formats.AttrsKey, value.NewMapValue(attrs))
	}

	elemCount := 0
	var textParts []string
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		switch child.Type {
		case xmlquery.ElementNode:
			elemCount++
			key := nodeTag(child)
			childVal := elementToValue(child)
			if existing, ok := m.Get(key); ok {
				if existing.Kind() == value.KindSeq {
					m.Set(key, value.NewSeq(append(existing.Seq(), childVal)...))
				} else {
					m.Set(key, value.NewSeq(existing, childVal))
				}
			} else {
				m.Set(key, childVal)
			}
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if t := strings.TrimSpace(child.Data); t != "" {
				textParts = append(textParts, t)
			}
		}
	}

	text := strings.Join(textParts, " ")
	if len(n.Attr) == 0 && elemCount == 0 {
		return value.NewString(text)
	}
	if text != "" {
		m.Set(formats.TextKey, value.NewString(text))
	}
	return value.NewMapValue(m)
}

// Stringify implements formats.Handler.Stringify.
func (h *Handler) Stringify(v *value.Value, opts formats.Options) (string, error) {
	var b strings.Builder
	if opts.Declaration {
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	}

	rootName := opts.RootName
	if rootName == "" {
		rootName = "root"
	}
	content := v
	if v != nil && v.Kind() == value.KindMap && v.Map().Len() == 1 {
		key := v.Map().Keys()[0]
		inner, _ := v.Map().Get(key)
		seqInner := inner != nil && inner.Kind() == value.KindSeq
		if key != formats.AttrsKey && key != formats.TextKey && elementNameRe.MatchString(key) && !seqInner {
			rootName = key
			content = inner
		}
	}

	// A sequence cannot be the document root. Its items render as
	// repeated child elements of the root instead.
	if content != nil && content.Kind() == value.KindSeq {
		wrapped := value.NewMap()
		wrapped.Set(rootItemName, content)
		content = value.NewMapValue(wrapped)
	}

	if err := h.writeElement(&b, rootName, content, 0, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

// writeElement serializes one value as an element named name. Sequence
// values render as repeated siblings; a sequence nested directly inside
// a sequence flattens into more siblings of the same name.
func (h *Handler) writeElement(b *strings.Builder, name string, v *value.Value, depth int, opts formats.Options) error {
	if !elementNameRe.MatchString(name) {
		return fmt.Errorf("invalid element name %q", name)
	}

	if v != nil && v.Kind() == value.KindSeq {
		for _, item := range v.Seq() {
			if err := h.writeElement(b, name, item, depth, opts); err != nil {
				return err
			}
		}
		return nil
	}

	writeIndent(b, depth, opts.Indent())
	if v == nil || v.Kind() == value.KindNull {
		fmt.Fprintf(b, "<%s/>\n", name)
		return nil
	}

	if v.Kind() != value.KindMap {
		s, err := scalarString(v)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "<%s>%s</%s>\n", name, escapeText(s), name)
		return nil
	}

	m := v.Map()
	b.WriteString("<")
	b.WriteString(name)
	if attrs, ok := m.Get(formats.AttrsKey); ok {
		if attrs.Kind() != value.KindMap {
			return fmt.Errorf("%s must be a mapping", formats.AttrsKey)
		}
		keys := attrs.Map().Keys()
		if opts.SortKeys {
			sort.Strings(keys)
		}
		for _, k := range keys {
			av, _ := attrs.Map().Get(k)
			s, err := scalarString(av)
			if err != nil {
				return fmt.Errorf("attribute %q: %w", k, err)
			}
			fmt.Fprintf(b, ` %s="%s"`, k, escapeAttr(s))
		}
	}

	text := ""
	if tv, ok := m.Get(formats.TextKey); ok {
		s, err := scalarString(tv)
		if err != nil {
			return fmt.Errorf("%s: %w", formats.TextKey, err)
		}
		text = s
	}

	var childKeys []string
	for _, k := range m.Keys() {
		if k != formats.AttrsKey && k != formats.TextKey {
			childKeys = append(childKeys, k)
		}
	}
	if opts.SortKeys {
		sort.Strings(childKeys)
	}

	if len(childKeys) == 0 && text == "" {
		b.WriteString("/>\n")
		return nil
	}
	b.WriteString(">")
	if len(childKeys) == 0 {
		b.WriteString(escapeText(text))
		fmt.Fprintf(b, "</%s>\n", name)
		return nil
	}
	b.WriteString("\n")
	if text != "" {
		writeIndent(b, depth+1, opts.Indent())
		b.WriteString(escapeText(text))
		b.WriteString("\n")
	}
	for _, k := range childKeys {
		child, _ := m.Get(k)
		if err := h.writeElement(b, k, child, depth+1, opts); err != nil {
			return err
		}
	}
	writeIndent(b, depth, opts.Indent())
	fmt.Fprintf(b, "</%s>\n", name)
	return nil
}

// scalarString renders a scalar value as element or attribute text.
func scalarString(v *value.Value) (string, error) {
	if v == nil {
		return "", nil
	}
	switch v.Kind() {
	case value.KindNull:
		return "", nil
	case value.KindBool:
		return strconv.FormatBool(v.Bool()), nil
	case value.KindInt:
		return strconv.FormatInt(v.Int(), 10), nil
	case value.KindFloat:
		return strconv.FormatFloat(v.Float(), 'g', -1, 64), nil
	case value.KindString:
		return v.Str(), nil
	case value.KindTime:
		return v.Time().Format("2006-01-02T15:04:05Z07:00"), nil
	}
	return "", fmt.Errorf("cannot render %s value as text", v.Kind())
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")
)

func escapeText(s string) string { return textEscaper.Replace(s) }
func escapeAttr(s string) string { return attrEscaper.Replace(s) }
