package prompts

import (
	"embed"
	"fmt"
	"text/template"

	"commerce-agent/internal/domain/entity"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

//go:embed components.yaml
var componentsYAML []byte

const (
	PageStateTemplate  = "page_state.tmpl"
	NextActionTemplate = "next_action.tmpl"
	EndStateTemplate   = "end_state.tmpl"
	ComponentTemplate  = "component.tmpl"
)

type Field struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

type ComponentSchema struct {
	Description string  `yaml:"description"`
	Fields      []Field `yaml:"fields"`
}

type componentFile struct {
	Components map[entity.ComponentName]ComponentSchema `yaml:"components"`
}

// LoadTemplates parses every embedded prompt template.
func LoadTemplates() (*template.Template, error) {
	tmpl, err := template.New("prompts").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	return tmpl, nil
}

// LoadComponentSchemas decodes the embedded component schema file.
func LoadComponentSchemas() (map[entity.ComponentName]ComponentSchema, error) {
	return ParseComponentSchemas(componentsYAML)
}

func ParseComponentSchemas(data []byte) (map[entity.ComponentName]ComponentSchema, error) {
	var f componentFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode component schemas: %w", err)
	}
	if len(f.Components) == 0 {
		return nil, fmt.Errorf("decode component schemas: no components defined")
	}
	return f.Components, nil
}
