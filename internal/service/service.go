// Package service is the facade the engine is consumed through. It
// resolves the format of incoming text (explicit name, then filename
// extension, then content sniffing), delegates to the matching handler
// or to the converter, and tags every result with the resolved format
// name so callers can label output without re-detecting.
//
// Handlers hold no mutable state and the converter threads its
// adjustment log explicitly, so a single Service is safe for
// concurrent use.
package service

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/polyform-dev/polyform/core/errors"
	"github.com/polyform-dev/polyform/internal/convert"
	"github.com/polyform-dev/polyform/internal/detect"
	"github.com/polyform-dev/polyform/internal/formats"
	"github.com/polyform-dev/polyform/internal/logging"

	// Register all built-in handlers.
	_ "github.com/polyform-dev/polyform/internal/formats/all"
)

// Service exposes detection, validation, formatting, minification,
// structure building, and conversion behind one entry point.
type Service struct{}

// New returns a ready Service. All handlers register themselves at
// import time.
func New() *Service {
	return &Service{}
}

// Detect sniffs the format of content, trusting a filename extension
// over content when one is supplied.
func (s *Service) Detect(content, filename string) detect.Result {
	defer s.observe("detect", "", content, time.Now())
	return detect.Detect(content, filename)
}

// Validate checks content against a format, resolving the format first
// when the name is empty.
func (s *Service) Validate(content, format, filename string) formats.ValidationResult {
	h, err := s.resolve(content, format, filename)
	if err != nil {
		return formats.ValidationResult{
			Errors: []formats.Issue{formats.IssueFromError(format, err)},
		}
	}
	defer s.observe("validate", h.Name(), content, time.Now())
	return h.Validate(content)
}

// Format pretty-prints content in its format.
func (s *Service) Format(content, format, filename string, opts formats.Options) formats.FormatResult {
	h, err := s.resolve(content, format, filename)
	if err != nil {
		return formats.FormatResult{
			Errors: []formats.Issue{formats.IssueFromError(format, err)},
		}
	}
	defer s.observe("format", h.Name(), content, time.Now())
	return h.Format(content, opts)
}

// Minify produces the compact form of content. Whitespace-significant
// formats report an unsupported-operation error.
func (s *Service) Minify(content, format, filename string) formats.FormatResult {
	h, err := s.resolve(content, format, filename)
	if err != nil {
		return formats.FormatResult{
			Errors: []formats.Issue{formats.IssueFromError(format, err)},
		}
	}
	defer s.observe("minify", h.Name(), content, time.Now())
	return h.Minify(content)
}

// Structure builds the navigation tree for content.
func (s *Service) Structure(content, format, filename string) formats.StructureResult {
	h, err := s.resolve(content, format, filename)
	if err != nil {
		return formats.StructureResult{
			Nodes:  []*formats.StructureNode{},
			Errors: []formats.Issue{formats.IssueFromError(format, err)},
		}
	}
	defer s.observe("structure", h.Name(), content, time.Now())
	return h.BuildStructure(content)
}

// Convert converts content from one format to another. An empty source
// format is resolved by detection; the target must be named.
func (s *Service) Convert(content, from, to, filename string, opts formats.Options) convert.Result {
	if from == "" {
		h, err := s.resolve(content, "", filename)
		if err != nil {
			return convert.Result{
				Format:      to,
				Errors:      []formats.Issue{formats.IssueFromError("", err)},
				Adjustments: []convert.Adjustment{},
			}
		}
		from = h.Name()
	}
	defer s.observe("convert", from+"->"+to, content, time.Now())
	return convert.Convert(content, from, to, opts)
}

// ConversionTargets returns every format content in from can convert to.
func (s *Service) ConversionTargets(from string) []string {
	return convert.Targets(from)
}

// IsConversionSupported reports whether both formats are registered.
func (s *Service) IsConversionSupported(from, to string) bool {
	return convert.Supported(from, to)
}

// ConversionWarnings returns static advisories for a conversion pair.
func (s *Service) ConversionWarnings(from, to string) []string {
	return convert.Warnings(from, to)
}

// CanMinify reports whether a format has a compact form.
func (s *Service) CanMinify(format string) bool {
	return format == formats.FormatJSON || format == formats.FormatXML
}

// MinifyFormats lists the formats supporting minification.
func (s *Service) MinifyFormats() []string {
	return []string{formats.FormatJSON, formats.FormatXML}
}

// CanStructure reports whether a format supports the structure view.
// All registered formats do.
func (s *Service) CanStructure(format string) bool {
	return formats.IsRegistered(format)
}

// Formats lists all registered format names.
func (s *Service) Formats() []string {
	return formats.Names()
}

// resolve picks the handler for an operation: an explicit format name
// wins, then the filename extension, then content detection.
func (s *Service) resolve(content, format, filename string) (formats.Handler, error) {
	if format != "" {
		h, ok := formats.Get(format)
		if !ok {
			return nil, errors.NewUnsupportedFormat(format)
		}
		return h, nil
	}
	r := detect.Detect(content, filename)
	if r.Format == "" {
		return nil, errors.Wrap(errors.ErrNoMatch, "unable to detect format")
	}
	h, ok := formats.Get(r.Format)
	if !ok {
		return nil, errors.NewUnsupportedFormat(r.Format)
	}
	return h, nil
}

// observe logs one completed operation with a fresh operation ID and a
// content fingerprint, so repeated work on one document can be
// correlated across log lines.
func (s *Service) observe(operation, format, content string, start time.Time) {
	sum := blake3.Sum256([]byte(content))
	logging.Operation(operation, format, time.Since(start),
		"operation_id", uuid.NewString(),
		"fingerprint", hex.EncodeToString(sum[:8]),
	)
}
