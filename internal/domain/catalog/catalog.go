package catalog

import (
	"fmt"

	"github.com/shopspring/decimal"

	"parley-server/internal/utils/functional"
)

// ===============================================
// Model Catalog Types
// ===============================================

// VariableType defines how a model variable is rendered and validated.
type VariableType string

const (
	VariableTypeString  VariableType = "string"
	VariableTypeBoolean VariableType = "boolean"
	VariableTypeRange   VariableType = "range"
)

// Variable is a tunable parameter declared by a model: a name, a type, a
// default, and for range types the numeric bounds.
type Variable struct {
	Name    string           `json:"name"`
	Type    VariableType     `json:"type"`
	Default any              `json:"default"`
	Min     *decimal.Decimal `json:"min,omitempty"`
	Max     *decimal.Decimal `json:"max,omitempty"`
	Step    *decimal.Decimal `json:"step,omitempty"`
}

// Param is a concrete name/type/value triple produced by resolving a model's
// variables against persisted overrides. Params travel with a conversation's
// chat payload.
type Param struct {
	Name  string       `json:"name"`
	Type  VariableType `json:"type"`
	Value any          `json:"value"`
}

// Model is one provider/model combination offered by the catalog.
type Model struct {
	Provider     string     `json:"provider"`
	Name         string     `json:"name"`
	DisplayName  string     `json:"display_name"`
	Description  string     `json:"description,omitempty"`
	SystemPrompt string     `json:"system_prompt,omitempty"`
	TokenLimit   int        `json:"token_limit"`
	AllowedRoles []string   `json:"allowed_roles,omitempty"`
	Variables    []Variable `json:"variables"`
	Default      bool       `json:"default,omitempty"`

	// Provider connection details, consumed by the completion client
	// registry. Not part of the catalog surface exposed to callers.
	Endpoint   string `json:"-"`
	Deployment string `json:"-"`
}

// VisibleTo reports whether a user holding the given roles may use the model.
// An empty allowed-role list means the model is open to everyone.
func (m Model) VisibleTo(roles []string) bool {
	if len(m.AllowedRoles) == 0 {
		return true
	}
	for _, allowed := range m.AllowedRoles {
		for _, role := range roles {
			if allowed == role {
				return true
			}
		}
	}
	return false
}

// ===============================================
// Catalog
// ===============================================

// Catalog is the static, configuration-derived list of available chat models.
// Built once at startup and shared read-only across requests.
type Catalog struct {
	models []Model
}

// New validates the model list and builds a catalog.
func New(models []Model) (*Catalog, error) {
	if len(models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	defaults := 0
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		key := m.Provider + "/" + m.Name
		if seen[key] {
			return nil, fmt.Errorf("duplicate model %s", key)
		}
		seen[key] = true

		if m.Default {
			defaults++
		}
		if err := validateVariables(m); err != nil {
			return nil, err
		}
	}
	if defaults > 1 {
		return nil, fmt.Errorf("more than one model is flagged default")
	}

	return &Catalog{models: models}, nil
}

func validateVariables(m Model) error {
	names := make(map[string]bool, len(m.Variables))
	for _, v := range m.Variables {
		if v.Name == "" {
			return fmt.Errorf("model %s/%s has a variable without a name", m.Provider, m.Name)
		}
		if names[v.Name] {
			return fmt.Errorf("model %s/%s declares variable %q twice", m.Provider, m.Name, v.Name)
		}
		names[v.Name] = true

		switch v.Type {
		case VariableTypeString, VariableTypeBoolean:
		case VariableTypeRange:
			if v.Min == nil || v.Max == nil {
				return fmt.Errorf("model %s/%s range variable %q is missing min/max", m.Provider, m.Name, v.Name)
			}
			if v.Max.LessThan(*v.Min) {
				return fmt.Errorf("model %s/%s range variable %q has max < min", m.Provider, m.Name, v.Name)
			}
		default:
			return fmt.Errorf("model %s/%s variable %q has unsupported type %q", m.Provider, m.Name, v.Name, v.Type)
		}
	}
	return nil
}

// Models returns every catalog entry.
func (c *Catalog) Models() []Model {
	return c.models
}

// VisibleTo returns the catalog entries a user holding the given roles may use.
func (c *Catalog) VisibleTo(roles []string) []Model {
	return functional.Filter(c.models, func(m Model) bool {
		return m.VisibleTo(roles)
	})
}

// Find looks up a model by provider and name.
func (c *Catalog) Find(provider, name string) (Model, bool) {
	return functional.Find(c.models, func(m Model) bool {
		return m.Provider == provider && m.Name == name
	})
}

// Select picks the model for a new session among the entries visible to the
// caller. Precedence: explicit provider+name, then the default-flagged entry,
// then the first visible entry.
func (c *Catalog) Select(provider, name string, roles []string) (Model, bool) {
	visible := c.VisibleTo(roles)
	if len(visible) == 0 {
		return Model{}, false
	}

	if provider != "" && name != "" {
		if m, ok := functional.Find(visible, func(m Model) bool {
			return m.Provider == provider && m.Name == name
		}); ok {
			return m, true
		}
	}

	if m, ok := functional.Find(visible, func(m Model) bool {
		return m.Default
	}); ok {
		return m, true
	}

	return visible[0], true
}
