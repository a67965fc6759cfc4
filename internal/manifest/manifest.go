// Package manifest loads YAML pipeline definitions and registers their
// stages on an orchestrator.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"surplus/internal/pipeline"
	"surplus/internal/services"
	"surplus/internal/stage"
)

// Manifest is a named, ordered list of stage definitions.
type Manifest struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Stages      []StageEntry `yaml:"stages"`
}

// StageEntry declares one stage. Handler defaults to Name.
type StageEntry struct {
	Name        string               `yaml:"name"`
	Handler     string               `yaml:"handler,omitempty"`
	Description string               `yaml:"description,omitempty"`
	Required    bool                 `yaml:"required"`
	External    bool                 `yaml:"external,omitempty"`
	Retry       pipeline.RetryPolicy `yaml:"retry,omitempty"`
	Params      map[string]any       `yaml:"params,omitempty"`
}

// HandlerName returns the handler this entry resolves to.
func (e StageEntry) HandlerName() string {
	if handler := strings.TrimSpace(e.Handler); handler != "" {
		return handler
	}
	return strings.TrimSpace(e.Name)
}

// Resolver builds stage handlers by name.
type Resolver interface {
	Resolve(handler string, params map[string]any) (stage.Handler, error)
}

// Registrar accepts stage registrations; *pipeline.Orchestrator satisfies it.
type Registrar interface {
	Register(pipeline.Stage) error
}

// Load reads and validates the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", fmt.Sprintf("manifest not found: %s", path), err)
		}
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "load", fmt.Sprintf("read %s", path), err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes a manifest, rejecting unknown keys, and validates it.
func Parse(data []byte) (*Manifest, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	var m Manifest
	if err := decoder.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, services.Wrap(services.ErrConfiguration, "manifest", "parse", "manifest is empty", nil)
		}
		return nil, services.Wrap(services.ErrConfiguration, "manifest", "parse", "invalid YAML", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks names and retry policies before any registration happens,
// so a bad manifest never leaves a half-built orchestrator.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return services.Wrap(services.ErrConfiguration, "manifest", "validate", "name is required", nil)
	}
	seen := make(map[string]struct{}, len(m.Stages))
	var problems []string
	for i, entry := range m.Stages {
		name := strings.TrimSpace(entry.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("stages[%d]: name is required", i))
			continue
		case entry.Retry.Enabled && entry.Retry.MaxAttempts < 1:
			problems = append(problems, fmt.Sprintf("stage %s: retry.max_attempts must be >= 1 when retry is enabled", name))
		}
		if _, dup := seen[name]; dup {
			problems = append(problems, fmt.Sprintf("stage %s: duplicate name", name))
		}
		seen[name] = struct{}{}
	}
	if len(problems) > 0 {
		return services.Wrap(services.ErrConfiguration, "manifest", "validate", strings.Join(problems, "; "), nil)
	}
	return nil
}

// Build resolves every handler first and then registers the stages in order.
func (m *Manifest) Build(reg Registrar, resolver Resolver) error {
	if reg == nil || resolver == nil {
		return services.Wrap(services.ErrConfiguration, "manifest", "build", "registrar and resolver are required", nil)
	}
	stages := make([]pipeline.Stage, 0, len(m.Stages))
	for _, entry := range m.Stages {
		handler, err := resolver.Resolve(entry.HandlerName(), entry.Params)
		if err != nil {
			return fmt.Errorf("stage %s: %w", entry.Name, err)
		}
		stages = append(stages, pipeline.Stage{
			Name:        strings.TrimSpace(entry.Name),
			Description: entry.Description,
			Handler:     handler,
			Required:    entry.Required,
			External:    entry.External,
			Retry:       entry.Retry,
		})
	}
	for _, st := range stages {
		if err := reg.Register(st); err != nil {
			return err
		}
	}
	return nil
}
