// Command polyform is the CLI front end for the structured-data
// engine. It provides format detection, validation, pretty-printing,
// minification, structure views, and cross-format conversion for
// JSON, XML, YAML, and TOML documents.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/polyform-dev/polyform/internal/convert"
	"github.com/polyform-dev/polyform/internal/formats"
	"github.com/polyform-dev/polyform/internal/logging"
	"github.com/polyform-dev/polyform/internal/service"
)

const version = "0.1.0"

// CLI defines the command-line interface for polyform.
var CLI struct {
	// Global flags
	Verbose bool `short:"v" help:"Enable debug logging."`
	JSON    bool `name:"json" help:"Emit machine-readable JSON output."`

	Detect    DetectCmd    `cmd:"" help:"Detect the format of a document."`
	Validate  ValidateCmd  `cmd:"" help:"Validate a document."`
	Fmt       FmtCmd       `cmd:"" help:"Pretty-print a document."`
	Minify    MinifyCmd    `cmd:"" help:"Minify a document (json and xml only)."`
	Structure StructureCmd `cmd:"" help:"Print the structure tree of a document."`
	Convert   ConvertCmd   `cmd:"" help:"Convert a document to another format."`
	Targets   TargetsCmd   `cmd:"" help:"List conversion targets and warnings for a format."`
	Version   VersionCmd   `cmd:"" help:"Print version information."`
}

// readInput reads the document from a path, or stdin when the path is
// "-" or empty. The returned name feeds extension-based detection.
func readInput(path string) (content, filename string, err error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), filepath.Base(path), nil
}

// emitJSON marshals v to stdout.
func emitJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// printIssues renders issues to stderr in red.
func printIssues(issues []formats.Issue) {
	red := color.New(color.FgRed)
	for _, issue := range issues {
		if issue.Line > 0 {
			red.Fprintf(os.Stderr, "error: %s (line %d, column %d)\n", issue.Message, issue.Line, issue.Column)
		} else {
			red.Fprintf(os.Stderr, "error: %s\n", issue.Message)
		}
	}
}

// DetectCmd detects the format of a document.
type DetectCmd struct {
	Path string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
}

// Run implements the detect command.
func (c *DetectCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Detect(content, filename)
	if CLI.JSON {
		return emitJSON(res)
	}
	if res.Format == "" {
		fmt.Println("format: unknown")
		return nil
	}
	fmt.Printf("format: %s (confidence %.2f, via %s)\n", res.Format, res.Confidence, res.Method)
	return nil
}

// ValidateCmd validates a document.
type ValidateCmd struct {
	Path   string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
	Format string `short:"f" help:"Format name; detected when omitted."`
}

// Run implements the validate command.
func (c *ValidateCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Validate(content, c.Format, filename)
	if CLI.JSON {
		return emitJSON(res)
	}
	if !res.Valid {
		printIssues(res.Errors)
		return fmt.Errorf("invalid %s", res.Format)
	}
	color.Green("valid %s", res.Format)
	return nil
}

// FmtCmd pretty-prints a document.
type FmtCmd struct {
	Path     string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
	Format   string `short:"f" help:"Format name; detected when omitted."`
	Indent   int    `short:"i" default:"2" help:"Indent width in spaces."`
	SortKeys bool   `help:"Sort mapping keys."`
}

// Run implements the fmt command.
func (c *FmtCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Format(content, c.Format, filename, formats.Options{
		IndentWidth: c.Indent,
		SortKeys:    c.SortKeys,
	})
	if CLI.JSON {
		return emitJSON(res)
	}
	if len(res.Errors) > 0 {
		printIssues(res.Errors)
		return fmt.Errorf("format failed")
	}
	fmt.Print(res.Output)
	return nil
}

// MinifyCmd minifies a document.
type MinifyCmd struct {
	Path   string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
	Format string `short:"f" help:"Format name; detected when omitted."`
}

// Run implements the minify command.
func (c *MinifyCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Minify(content, c.Format, filename)
	if CLI.JSON {
		return emitJSON(res)
	}
	if len(res.Errors) > 0 {
		printIssues(res.Errors)
		return fmt.Errorf("minify failed")
	}
	fmt.Println(res.Output)
	return nil
}

// StructureCmd prints the navigation tree of a document.
type StructureCmd struct {
	Path   string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
	Format string `short:"f" help:"Format name; detected when omitted."`
}

// Run implements the structure command.
func (c *StructureCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Structure(content, c.Format, filename)
	if CLI.JSON {
		return emitJSON(res)
	}
	if len(res.Errors) > 0 {
		printIssues(res.Errors)
		return fmt.Errorf("structure failed")
	}
	for _, node := range res.Nodes {
		printNode(node)
	}
	return nil
}

// printNode renders one structure node and its children.
func printNode(n *formats.StructureNode) {
	indent := strings.Repeat("  ", n.Depth)
	line := ""
	if n.Line > 0 {
		line = fmt.Sprintf("  (line %d)", n.Line)
	}
	fmt.Printf("%s%s: %s%s\n", indent, n.Label, n.Type, line)
	for _, child := range n.Children {
		printNode(child)
	}
}

// ConvertCmd converts a document to another format.
type ConvertCmd struct {
	Path     string `arg:"" optional:"" help:"Input file (defaults to stdin)."`
	From     string `help:"Source format; detected when omitted."`
	To       string `required:"" help:"Target format."`
	Out      string `short:"o" help:"Output file (defaults to stdout)."`
	Indent   int    `short:"i" default:"2" help:"Indent width in spaces."`
	SortKeys bool   `help:"Sort mapping keys."`
	Root     string `help:"Root element name for XML output."`
	Declare  bool   `help:"Emit an XML declaration."`
}

// Run implements the convert command.
func (c *ConvertCmd) Run(svc *service.Service) error {
	content, filename, err := readInput(c.Path)
	if err != nil {
		return err
	}
	res := svc.Convert(content, c.From, c.To, filename, formats.Options{
		IndentWidth: c.Indent,
		SortKeys:    c.SortKeys,
		RootName:    c.Root,
		Declaration: c.Declare,
	})
	if CLI.JSON {
		return emitJSON(res)
	}
	if len(res.Errors) > 0 {
		printIssues(res.Errors)
		return fmt.Errorf("conversion failed")
	}
	printAdjustments(res.Adjustments)
	if c.Out != "" {
		if err := os.WriteFile(c.Out, []byte(res.Converted), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", c.Out, err)
		}
		return nil
	}
	fmt.Print(res.Converted)
	return nil
}

// printAdjustments renders recorded repairs to stderr in yellow.
func printAdjustments(adjs []convert.Adjustment) {
	yellow := color.New(color.FgYellow)
	for _, a := range adjs {
		if a.Line > 0 {
			yellow.Fprintf(os.Stderr, "adjusted [%s] %s (output line %d)\n", a.Type, a.Message, a.Line)
		} else {
			yellow.Fprintf(os.Stderr, "adjusted [%s] %s\n", a.Type, a.Message)
		}
	}
}

// TargetsCmd lists conversion targets and static warnings.
type TargetsCmd struct {
	From string `arg:"" help:"Source format."`
}

// Run implements the targets command.
func (c *TargetsCmd) Run(svc *service.Service) error {
	targets := svc.ConversionTargets(c.From)
	if CLI.JSON {
		out := make(map[string][]string, len(targets))
		for _, t := range targets {
			warnings := svc.ConversionWarnings(c.From, t)
			if warnings == nil {
				warnings = []string{}
			}
			out[t] = warnings
		}
		return emitJSON(out)
	}
	for _, t := range targets {
		fmt.Println(t)
		for _, w := range svc.ConversionWarnings(c.From, t) {
			fmt.Printf("  warning: %s\n", w)
		}
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

// Run implements the version command.
func (c *VersionCmd) Run(svc *service.Service) error {
	fmt.Printf("polyform %s\n", version)
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("polyform"),
		kong.Description("Multi-format structured-data engine: detect, validate, format, and convert JSON, XML, YAML, and TOML."),
		kong.UsageOnError(),
	)

	level := logging.LevelWarn
	if CLI.Verbose {
		level = logging.LevelDebug
	}
	logging.InitLogger(level, logging.FormatText)

	err := ctx.Run(service.New())
	ctx.FatalIfErrorf(err)
}
