package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/aretw0/weft/pkg/graph"
	"github.com/aretw0/weft/pkg/registry"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Format selects the byte encoding of a record.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFromPath infers the format from a file extension. Unknown extensions default to JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Marshal encodes rec in the given format.
func Marshal(rec *Record, format Format) ([]byte, error) {
	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("failed to encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		return json.MarshalIndent(rec, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

// Unmarshal parses a record from JSON or YAML bytes.
func Unmarshal(data []byte) (*Record, error) {
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &rec, nil
}

// DecodeMap converts a generic payload (as produced by a JSON decoder) into a record.
// Unknown keys are rejected.
func DecodeMap(m map[string]any) (*Record, error) {
	var rec Record
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      &rec,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return &rec, nil
}

// Dump encodes def and marshals it in one step.
func Dump(def *graph.Definition, reg *registry.Registry, format Format) ([]byte, error) {
	rec, err := Encode(def, reg)
	if err != nil {
		return nil, err
	}
	return Marshal(rec, format)
}

// Load unmarshals and decodes data in one step.
func Load(data []byte, reg *registry.Registry, logger *slog.Logger) (*graph.Definition, []Warning, error) {
	rec, err := Unmarshal(data)
	if err != nil {
		return nil, nil, err
	}
	return Decode(rec, reg, logger)
}
