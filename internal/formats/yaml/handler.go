// Package yaml implements the YAML format handler on top of
// gopkg.in/yaml.v3 working at the yaml.Node level, which preserves key
// order and source line numbers. Anchors and aliases are expanded on
// parse and never emitted: serialization always builds a fresh node
// tree in block style.
package yaml

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/core/value"
	"github.com/polyform-dev/polyform/internal/formats"
)

// Handler implements formats.Handler for YAML.
type Handler struct{}

// init automatically registers this handler when the package is imported.
func init() {
	formats.Register(&Handler{})
}

// Name implements formats.Handler.Name.
func (h *Handler) Name() string { return formats.FormatYAML }

// Extensions implements formats.Handler.Extensions.
func (h *Handler) Extensions() []string { return []string{".yaml", ".yml"} }

var (
	keyLineRe  = regexp.MustCompile(`(?m)^\s*[^\s#&*\[{][^:\n]*:(\s|$)`)
	listLineRe = regexp.MustCompile(`(?m)^\s*- \S`)
	errLineRe  = regexp.MustCompile(`line (\d+):`)
)

// Detect implements formats.Handler.Detect.
// Content that parses as JSON is rejected outright: JSON is a YAML
// subset, and the JSON handler owns it.
func (h *Handler) Detect(content string) formats.DetectResult {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return formats.DetectResult{}
	}
	if gjson.Valid(trimmed) {
		return formats.DetectResult{}
	}

	conf := 0.0
	if strings.HasPrefix(trimmed, "---") {
		conf += 0.3
	}
	if keyLineRe.MatchString(content) {
		conf += 0.3
	}
	if listLineRe.MatchString(content) {
		conf += 0.2
	}
	if conf > 0 {
		var node yaml.Node
		if yaml.Unmarshal([]byte(content), &node) == nil {
			conf += 0.2
		}
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
// YAML has no compact form: indentation is syntax.
func (h *Handler) Minify(content string) formats.FormatResult {
	err := errors.NewUnsupportedOperation("minify", h.Name(), "whitespace is significant")
	return formats.FormatResult{
		Format: h.Name(),
		Errors: []formats.Issue{{Format: h.Name(), Message: err.Error()}},
	}
}

// BuildStructure implements formats.Handler.BuildStructure.
// Line numbers come straight from the parsed node tree.
func (h *Handler) BuildStructure(content string) formats.StructureResult {
	res := formats.StructureResult{Format: h.Name(), Nodes: []*formats.StructureNode{}}
	root, err := h.parseNode(content)
	if err != nil {
		res.Errors = append(res.Errors, formats.IssueFromError(h.Name(), err))
		return res
	}
	res.Nodes = append(res.Nodes, h.structureNode(root, "root", 0))
	return res
}

func (h *Handler) structureNode(n *yaml.Node, label string, depth int) *formats.StructureNode {
	for n.Kind == yaml.DocumentNode && len(n.Content) > 0 {
		n = n.Content[0]
	}
	if n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	node := &formats.StructureNode{
		Label: label,
		Type:  nodeTypeName(n),
		Depth: depth,
		Line:  n.Line,
	}
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			child := h.structureNode(n.Content[i+1], n.Content[i].Value, depth+1)
			child.Line = n.Content[i].Line
			node.Children = append(node.Children, child)
		}
	case yaml.SequenceNode:
		for i, item := range n.Content {
			node.Children = append(node.Children, h.structureNode(item, fmt.Sprintf("[%d]", i), depth+1))
		}
	}
	return node
}

// nodeTypeName maps a yaml node onto the shared type vocabulary.
func nodeTypeName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.SequenceNode:
		return "array"
	}
	switch n.Tag {
	case "!!int":
		return "integer"
	case "!!float":
		return "float"
	case "!!bool":
		return "boolean"
	case "!!null":
		return "null"
	default:
		return "string"
	}
}

// parseNode unmarshals into a node tree, normalizing errors.
func (h *Handler) parseNode(content string) (*yaml.Node, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(content), &root); err != nil {
		line := 0
		if m := errLineRe.FindStringSubmatch(err.Error()); m != nil {
			line, _ = strconv.Atoi(m[1])
		}
		msg := strings.TrimPrefix(err.Error(), "yaml: ")
		return nil, errors.NewSyntax(h.Name(), line, 0, msg)
	}
	return &root, nil
}

// Parse implements formats.Handler.Parse.
func (h *Handler) Parse(content string) (*value.Value, error) {
	root, err := h.parseNode(content)
	if err != nil {
		return nil, err
	}
	return h.nodeToValue(root)
}

// nodeToValue converts a yaml node into the intermediate model,
// expanding aliases.
func (h *Handler) nodeToValue(n *yaml.Node) (*value.Value, error) {
	switch n.Kind {
	case 0:
		// Empty document.
		return value.NewNull(), nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.NewNull(), nil
		}
		return h.nodeToValue(n.Content[0])
	case yaml.AliasNode:
		if n.Alias == nil {
			return nil, errors.NewSyntax(h.Name(), n.Line, n.Column, "unresolved alias")
		}
		return h.nodeToValue(n.Alias)
	case yaml.MappingNode:
		m := value.NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			keyNode := n.Content[i]
			if keyNode.Kind == yaml.AliasNode && keyNode.Alias != nil {
				keyNode = keyNode.Alias
			}
			val, err := h.nodeToValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(keyNode.Value, val)
		}
		return value.NewMapValue(m), nil
	case yaml.SequenceNode:
		items := make([]*value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			item, err := h.nodeToValue(c)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return value.NewSeq(items...), nil
	case yaml.ScalarNode:
		return h.scalarValue(n)
	}
	return nil, errors.NewSyntax(h.Name(), n.Line, n.Column, fmt.Sprintf("unsupported node kind %d", n.Kind))
}

// scalarValue resolves a scalar node by its tag. Timestamps stay
// strings: the temporal kind is reserved for TOML sources.
func (h *Handler) scalarValue(n *yaml.Node) (*value.Value, error) {
	switch n.Tag {
	case "!!null":
		return value.NewNull(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errors.NewSyntax(h.Name(), n.Line, n.Column, err.Error())
		}
		return value.NewBool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errors.NewSyntax(h.Name(), n.Line, n.Column, err.Error())
		}
		return value.NewInt(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, errors.NewSyntax(h.Name(), n.Line, n.Column, err.Error())
		}
		return value.NewFloat(f), nil
	default:
		return value.NewString(n.Value), nil
	}
}

// Stringify implements formats.Handler.Stringify.
func (h *Handler) Stringify(v *value.Value, opts formats.Options) (string, error) {
	node, err := h.valueToNode(v, opts)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(opts.Width())
	if err := enc.Encode(node); err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding yaml: %w", err)
	}
	return buf.String(), nil
}

// valueToNode builds a fresh block-style node tree. No anchors are
// ever produced: shared values are expanded.
func (h *Handler) valueToNode(v *value.Value, opts formats.Options) (*yaml.Node, error) {
	if v == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	switch v.Kind() {
	case value.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	case value.KindBool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(v.Bool())}, nil
	case value.KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.Int(), 10)}, nil
	case value.KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: floatLexeme(v.Float())}, nil
	case value.KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Str()}, nil
	case value.KindTime:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Time().Format("2006-01-02T15:04:05Z07:00")}, nil
	case value.KindSeq:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.Seq() {
			c, err := h.valueToNode(item, opts)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, c)
		}
		return node, nil
	case value.KindMap:
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		keys := v.Map().Keys()
		if opts.SortKeys {
			sort.Strings(keys)
		}
		for _, k := range keys {
			entry, _ := v.Map().Get(k)
			c, err := h.valueToNode(entry, opts)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}, c)
		}
		return node, nil
	}
	return nil, fmt.Errorf("cannot serialize %s value to YAML", v.Kind())
}

// floatLexeme keeps a decimal point so floats stay floats on re-parse.
// Non-finite values use the YAML core-schema spellings.
func floatLexeme(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
