package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testModels() []Model {
	return []Model{
		{
			Provider:    "openai",
			Name:        "gpt-4o-mini",
			DisplayName: "GPT-4o mini",
			TokenLimit:  128000,
			Variables:   []Variable{temperatureVariable()},
		},
		{
			Provider:     "openai",
			Name:         "gpt-4o",
			DisplayName:  "GPT-4o",
			TokenLimit:   128000,
			AllowedRoles: []string{"power-user"},
			Default:      true,
			Variables:    []Variable{temperatureVariable(), topPVariable()},
		},
		{
			Provider:     "azure-openai",
			Name:         "gpt-35-turbo",
			DisplayName:  "GPT-3.5 Turbo (Azure)",
			TokenLimit:   16384,
			AllowedRoles: []string{"admin", "power-user"},
			Variables:    []Variable{temperatureVariable()},
		},
	}
}

func TestCatalogVisibleTo(t *testing.T) {
	c, err := New(testModels())
	require.NoError(t, err)

	t.Run("empty allowed roles means visible to all", func(t *testing.T) {
		visible := c.VisibleTo(nil)
		require.Len(t, visible, 1)
		assert.Equal(t, "gpt-4o-mini", visible[0].Name)
	})

	t.Run("role intersection grants access", func(t *testing.T) {
		visible := c.VisibleTo([]string{"power-user"})
		require.Len(t, visible, 3)
	})

	t.Run("non-matching roles are filtered", func(t *testing.T) {
		visible := c.VisibleTo([]string{"guest"})
		require.Len(t, visible, 1)
		assert.Equal(t, "gpt-4o-mini", visible[0].Name)
	})
}

func TestCatalogSelect(t *testing.T) {
	c, err := New(testModels())
	require.NoError(t, err)

	t.Run("explicit provider and name take precedence", func(t *testing.T) {
		m, ok := c.Select("azure-openai", "gpt-35-turbo", []string{"admin"})
		require.True(t, ok)
		assert.Equal(t, "azure-openai", m.Provider)
		assert.Equal(t, "gpt-35-turbo", m.Name)
	})

	t.Run("default flag wins when no explicit selection", func(t *testing.T) {
		m, ok := c.Select("", "", []string{"power-user"})
		require.True(t, ok)
		assert.Equal(t, "gpt-4o", m.Name)
	})

	t.Run("first visible entry when no default is reachable", func(t *testing.T) {
		m, ok := c.Select("", "", nil)
		require.True(t, ok)
		assert.Equal(t, "gpt-4o-mini", m.Name)
	})

	t.Run("explicit selection invisible to caller falls through", func(t *testing.T) {
		m, ok := c.Select("azure-openai", "gpt-35-turbo", nil)
		require.True(t, ok)
		assert.Equal(t, "gpt-4o-mini", m.Name)
	})
}

func TestCatalogValidation(t *testing.T) {
	t.Run("rejects empty catalog", func(t *testing.T) {
		_, err := New(nil)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate models", func(t *testing.T) {
		models := testModels()
		models = append(models, models[0])
		_, err := New(models)
		assert.Error(t, err)
	})

	t.Run("rejects duplicate variable names", func(t *testing.T) {
		models := testModels()
		models[0].Variables = []Variable{temperatureVariable(), temperatureVariable()}
		_, err := New(models)
		assert.Error(t, err)
	})

	t.Run("rejects multiple defaults", func(t *testing.T) {
		models := testModels()
		models[0].Default = true
		_, err := New(models)
		assert.Error(t, err)
	})

	t.Run("rejects range variable without bounds", func(t *testing.T) {
		models := testModels()
		models[0].Variables = []Variable{{Name: "temperature", Type: VariableTypeRange, Default: 1.0}}
		_, err := New(models)
		assert.Error(t, err)
	})

	t.Run("rejects inverted range bounds", func(t *testing.T) {
		models := testModels()
		models[0].Variables = []Variable{{
			Name: "temperature", Type: VariableTypeRange, Default: 1.0,
			Min: dec("2"), Max: dec("0"),
		}}
		_, err := New(models)
		assert.Error(t, err)
	})
}
