package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Overrides are command-line adjustments applied after parsing but before
// validation and inference.
type Overrides struct {
	// Seed replaces the config seed when non-nil.
	Seed *int64
	// InferAttrs force-enables attribute inference.
	InferAttrs bool
}

// Load reads, parses and validates a config file. The format is chosen by
// extension: .yaml/.yml, .json, or .cue. The returned model has already
// passed Validate and attribute inference.
func Load(path string) (*Model, error) {
	return LoadWith(path, Overrides{})
}

// LoadWith is Load with command-line overrides.
func LoadWith(path string, ov Overrides) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var m *Model
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err = parseYAML(data)
	case ".json":
		m, err = parseJSON(data)
	case ".cue":
		m, err = parseCUE(path, data)
	default:
		return nil, Errf("", "", "unsupported config file type %q (want .yaml, .json or .cue)", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", filepath.Base(path), err)
	}

	if ov.Seed != nil {
		m.Config.Seed = *ov.Seed
	}
	if ov.InferAttrs {
		m.Config.InferAttrs = true
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := m.inferAttributes(); err != nil {
		return nil, err
	}
	return m, nil
}

// parseYAML decodes with strict field checking so a typo like
// "null_percent:" fails loudly instead of silently defaulting.
func parseYAML(data []byte) (*Model, error) {
	var m Model
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return &m, nil
}

func parseJSON(data []byte) (*Model, error) {
	var m Model
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	return &m, nil
}

// parseCUE compiles a CUE config and decodes it into the model. CUE configs
// get constraint checking for free (the CUE evaluator rejects values that
// violate declared bounds before we ever see them).
func parseCUE(path string, data []byte) (*Model, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile cue: %w", err)
	}
	var m Model
	if err := v.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode cue: %w", err)
	}
	return &m, nil
}
