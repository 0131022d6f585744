package config

import (
	"fmt"
	"os"
	"sort"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/infrastructure/provider"
)

// Settings is the YAML model catalog: which providers exist, which models
// they expose, and which one is the default. Credentials are referenced by
// environment variable name, never stored in the file.
type Settings struct {
	Chat ChatSettings `yaml:"chat"`
}

type ChatSettings struct {
	Default   DefaultRef                  `yaml:"default"`
	Providers map[string]ProviderSettings `yaml:"providers"`
	LLMs      map[string]ModelGroup       `yaml:"llms"`
}

// DefaultRef names the catalog's default model.
type DefaultRef struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
}

type ProviderSettings struct {
	Kind       string `yaml:"kind"`
	Endpoint   string `yaml:"endpoint"`
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
	APIKeyEnv  string `yaml:"api_key_env"`
}

type ModelGroup struct {
	Models map[string]ModelSettings `yaml:"models"`
}

type ModelSettings struct {
	DisplayName  string             `yaml:"display_name"`
	Description  string             `yaml:"description"`
	SystemPrompt string             `yaml:"system_prompt"`
	TokenLimit   int                `yaml:"token_limit"`
	Deployment   string             `yaml:"deployment"`
	AllowedRoles []string           `yaml:"allowed_roles"`
	Variables    []VariableSettings `yaml:"variables"`
}

type VariableSettings struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Default any      `yaml:"default"`
	Min     *float64 `yaml:"min"`
	Max     *float64 `yaml:"max"`
	Step    *float64 `yaml:"step"`
}

// LoadSettings reads and parses the settings file.
func LoadSettings(path string) (*Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return ParseSettings(raw)
}

// ParseSettings parses settings YAML and checks the cross references the
// catalog relies on.
func ParseSettings(raw []byte) (*Settings, error) {
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}

	if len(s.Chat.LLMs) == 0 {
		return nil, fmt.Errorf("settings declare no models")
	}
	for providerID := range s.Chat.LLMs {
		if _, ok := s.Chat.Providers[providerID]; !ok {
			return nil, fmt.Errorf("models declared for unknown provider %q", providerID)
		}
	}
	if d := s.Chat.Default; d.Provider != "" {
		group, ok := s.Chat.LLMs[d.Provider]
		if !ok {
			return nil, fmt.Errorf("default model references unknown provider %q", d.Provider)
		}
		if _, ok := group.Models[d.Model]; !ok {
			return nil, fmt.Errorf("default model %q not declared under provider %q", d.Model, d.Provider)
		}
	}

	return &s, nil
}

// CatalogModels flattens the settings into catalog models, in a stable
// provider/name order, with the default flag applied.
func (s *Settings) CatalogModels() ([]catalog.Model, error) {
	providers := sortedKeys(s.Chat.LLMs)

	var models []catalog.Model
	for _, providerID := range providers {
		group := s.Chat.LLMs[providerID]
		endpoint := s.Chat.Providers[providerID].Endpoint

		for _, name := range sortedKeys(group.Models) {
			m := group.Models[name]

			variables, err := toVariables(providerID, name, m.Variables)
			if err != nil {
				return nil, err
			}

			models = append(models, catalog.Model{
				Provider:     providerID,
				Name:         name,
				DisplayName:  m.DisplayName,
				Description:  m.Description,
				SystemPrompt: m.SystemPrompt,
				TokenLimit:   m.TokenLimit,
				AllowedRoles: m.AllowedRoles,
				Variables:    variables,
				Default:      s.Chat.Default.Provider == providerID && s.Chat.Default.Model == name,
				Endpoint:     endpoint,
				Deployment:   m.Deployment,
			})
		}
	}
	return models, nil
}

// ProviderConfigs resolves provider credentials from the environment.
func (s *Settings) ProviderConfigs(lookupEnv func(string) string) ([]provider.Config, error) {
	var configs []provider.Config
	for _, id := range sortedKeys(s.Chat.Providers) {
		p := s.Chat.Providers[id]
		if p.APIKeyEnv == "" {
			return nil, fmt.Errorf("provider %q declares no api_key_env", id)
		}
		apiKey := lookupEnv(p.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("provider %q: environment variable %s is empty", id, p.APIKeyEnv)
		}

		configs = append(configs, provider.Config{
			ID:         id,
			Kind:       provider.Kind(p.Kind),
			APIKey:     apiKey,
			BaseURL:    p.BaseURL,
			Endpoint:   p.Endpoint,
			APIVersion: p.APIVersion,
		})
	}
	return configs, nil
}

func toVariables(providerID, model string, specs []VariableSettings) ([]catalog.Variable, error) {
	variables := make([]catalog.Variable, 0, len(specs))
	for _, v := range specs {
		if v.Name == "" {
			return nil, fmt.Errorf("model %s/%s has a variable with no name", providerID, model)
		}
		variables = append(variables, catalog.Variable{
			Name:    v.Name,
			Type:    catalog.VariableType(v.Type),
			Default: v.Default,
			Min:     toDecimal(v.Min),
			Max:     toDecimal(v.Max),
			Step:    toDecimal(v.Step),
		})
	}
	return variables, nil
}

func toDecimal(f *float64) *decimal.Decimal {
	if f == nil {
		return nil
	}
	d := decimal.NewFromFloat(*f)
	return &d
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
