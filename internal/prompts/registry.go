// Package prompts holds the fixed set of named generation templates. Each
// template binds an input schema, an output schema, an instruction body and
// generation parameters. Templates are built once and never change afterwards.
package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"artyats/internal/errors"

	"google.golang.org/genai"
)

// Template names.
const (
	NameScore     = "score"
	NameSuggest   = "suggest"
	NameRationale = "rationale"
	NameChat      = "chat"
	NameFeedback  = "feedback"
	NameRevise    = "revise"
)

// Template is one named prompt definition. Values returned by the Registry are
// copies, so callers cannot alter what other callers see.
type Template struct {
	Name         string
	Description  string
	InputSchema  *genai.Schema
	OutputSchema *genai.Schema
	Instructions string
	SystemPrompt string
	// Temperature overrides the operation's configured temperature when set.
	Temperature    *float32
	SafetySettings []*genai.SafetySetting

	body *template.Template
}

// Render fills the instruction body with the input fields, addressed by their
// JSON names. A field referenced by the body but absent from input is an error.
func (t Template) Render(input map[string]any) (string, error) {
	if t.body == nil {
		return "", errors.NewInternalError(errors.ErrCodeTemplateNotFound,
			fmt.Sprintf("template %q has no compiled body", t.Name), nil)
	}
	var buf bytes.Buffer
	if err := t.body.Execute(&buf, input); err != nil {
		return "", errors.NewValidationError(errors.ErrCodeInvalidInput,
			fmt.Sprintf("failed to render template %q", t.Name), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Override replaces built-in prompt text at construction time. Empty fields
// keep the built-in text.
type Override struct {
	Name         string
	Instructions string
	SystemPrompt string
}

// Registry is a read-only lookup of templates by name.
type Registry struct {
	templates map[string]Template
}

// NewRegistry registers the built-in templates and applies overrides.
func NewRegistry(overrides ...Override) (*Registry, error) {
	defs := builtinTemplates()
	byName := make(map[string]Template, len(defs))
	for _, def := range defs {
		byName[def.Name] = def
	}

	for _, o := range overrides {
		def, ok := byName[o.Name]
		if !ok {
			return nil, errors.NewConfigError(errors.ErrCodeTemplateNotFound,
				fmt.Sprintf("prompt override for unknown template %q", o.Name), nil)
		}
		if o.Instructions != "" {
			def.Instructions = o.Instructions
		}
		if o.SystemPrompt != "" {
			def.SystemPrompt = o.SystemPrompt
		}
		byName[o.Name] = def
	}

	for name, def := range byName {
		body, err := template.New(name).Option("missingkey=error").Parse(def.Instructions)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig,
				fmt.Sprintf("template %q does not parse", name), err)
		}
		def.body = body
		byName[name] = def
	}

	return &Registry{templates: byName}, nil
}

// Get returns a copy of the named template.
func (r *Registry) Get(name string) (Template, error) {
	def, ok := r.templates[name]
	if !ok {
		return Template{}, errors.NewNotFoundError(errors.ErrCodeTemplateNotFound,
			fmt.Sprintf("no prompt template named %q", name), nil)
	}
	def.InputSchema = cloneSchema(def.InputSchema, true)
	def.OutputSchema = cloneSchema(def.OutputSchema, true)
	def.SafetySettings = append([]*genai.SafetySetting(nil), def.SafetySettings...)
	if def.Temperature != nil {
		temp := *def.Temperature
		def.Temperature = &temp
	}
	return def, nil
}

// Names lists the registered template names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResponseSchema returns the output schema in the form sent to the backend.
// Length constraints are enforced locally and are not part of the request.
func (t Template) ResponseSchema() *genai.Schema {
	return cloneSchema(t.OutputSchema, false)
}

func cloneSchema(s *genai.Schema, keepLengths bool) *genai.Schema {
	if s == nil {
		return nil
	}
	out := *s
	if !keepLengths {
		out.MinLength = nil
		out.MaxLength = nil
	}
	out.Enum = append([]string(nil), s.Enum...)
	out.Required = append([]string(nil), s.Required...)
	out.PropertyOrdering = append([]string(nil), s.PropertyOrdering...)
	out.Items = cloneSchema(s.Items, keepLengths)
	if s.Properties != nil {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for k, v := range s.Properties {
			out.Properties[k] = cloneSchema(v, keepLengths)
		}
	}
	return &out
}
