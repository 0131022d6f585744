package catalog

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func temperatureVariable() Variable {
	return Variable{
		Name:    "temperature",
		Type:    VariableTypeRange,
		Default: 1.0,
		Min:     dec("0"),
		Max:     dec("2"),
		Step:    dec("0.1"),
	}
}

func topPVariable() Variable {
	return Variable{
		Name:    "top_p",
		Type:    VariableTypeRange,
		Default: 1.0,
		Min:     dec("0"),
		Max:     dec("1"),
		Step:    dec("0.05"),
	}
}

func TestResolveParams(t *testing.T) {
	variables := []Variable{temperatureVariable(), topPVariable()}

	t.Run("persisted value wins on name match", func(t *testing.T) {
		persisted := []Param{{Name: "temperature", Type: VariableTypeRange, Value: 0.3}}

		params := ResolveParams(variables, persisted)
		require.Len(t, params, 2)

		assert.Equal(t, "temperature", params[0].Name)
		assert.True(t, decimal.NewFromFloat(0.3).Equal(params[0].Value.(decimal.Decimal)))

		// top_p is absent from the persisted set and falls back to its default.
		assert.Equal(t, "top_p", params[1].Name)
		assert.True(t, decimal.NewFromInt(1).Equal(params[1].Value.(decimal.Decimal)))
	})

	t.Run("undeclared persisted names are dropped", func(t *testing.T) {
		persisted := []Param{
			{Name: "temperature", Type: VariableTypeRange, Value: 0.5},
			{Name: "max_tokens", Type: VariableTypeRange, Value: 500},
		}

		params := ResolveParams(variables, persisted)
		require.Len(t, params, 2)
		for _, p := range params {
			assert.NotEqual(t, "max_tokens", p.Name)
		}
	})

	t.Run("nil persisted set yields all defaults", func(t *testing.T) {
		params := ResolveParams(variables, nil)
		require.Len(t, params, 2)
		assert.True(t, decimal.NewFromInt(1).Equal(params[0].Value.(decimal.Decimal)))
		assert.True(t, decimal.NewFromInt(1).Equal(params[1].Value.(decimal.Decimal)))
	})

	t.Run("malformed persisted value falls back to default", func(t *testing.T) {
		persisted := []Param{{Name: "temperature", Type: VariableTypeRange, Value: "warm"}}

		params := ResolveParams(variables, persisted)
		require.Len(t, params, 2)
		assert.True(t, decimal.NewFromInt(1).Equal(params[0].Value.(decimal.Decimal)))
	})

	t.Run("range values clamped to declared bounds", func(t *testing.T) {
		persisted := []Param{
			{Name: "temperature", Type: VariableTypeRange, Value: 9.5},
			{Name: "top_p", Type: VariableTypeRange, Value: -3},
		}

		params := ResolveParams(variables, persisted)
		require.Len(t, params, 2)
		assert.True(t, decimal.NewFromInt(2).Equal(params[0].Value.(decimal.Decimal)))
		assert.True(t, decimal.Zero.Equal(params[1].Value.(decimal.Decimal)))
	})

	t.Run("string values from range sliders are accepted", func(t *testing.T) {
		persisted := []Param{{Name: "temperature", Type: VariableTypeRange, Value: "0.7"}}

		params := ResolveParams(variables, persisted)
		require.Len(t, params, 2)
		assert.True(t, decimal.NewFromFloat(0.7).Equal(params[0].Value.(decimal.Decimal)))
	})

	t.Run("string and boolean variables pass through", func(t *testing.T) {
		vars := []Variable{
			{Name: "style", Type: VariableTypeString, Default: "formal"},
			{Name: "stream_usage", Type: VariableTypeBoolean, Default: false},
		}
		persisted := []Param{
			{Name: "style", Type: VariableTypeString, Value: "casual"},
			{Name: "stream_usage", Type: VariableTypeBoolean, Value: "yes"}, // wrong type
		}

		params := ResolveParams(vars, persisted)
		require.Len(t, params, 2)
		assert.Equal(t, "casual", params[0].Value)
		assert.Equal(t, false, params[1].Value)
	})
}

func TestParamFloat64(t *testing.T) {
	f, ok := ParamFloat64(Param{Name: "temperature", Type: VariableTypeRange, Value: decimal.NewFromFloat(0.3)})
	require.True(t, ok)
	assert.InDelta(t, 0.3, f, 1e-9)

	_, ok = ParamFloat64(Param{Name: "style", Type: VariableTypeString, Value: "casual"})
	assert.False(t, ok)
}
