package catalog

import (
	"encoding/json"
	"strconv"

	"github.com/shopspring/decimal"
)

// ResolveParams merges a model's declared variables with a previously
// persisted parameter set into a concrete parameter list. Each declared
// variable yields exactly one entry: the persisted value when one matches by
// name and satisfies the variable's type, otherwise the declared default.
// Persisted names the model does not declare are dropped. Pure function;
// malformed persisted values fall back to the default instead of failing.
func ResolveParams(variables []Variable, persisted []Param) []Param {
	byName := make(map[string]Param, len(persisted))
	for _, p := range persisted {
		byName[p.Name] = p
	}

	params := make([]Param, 0, len(variables))
	for _, v := range variables {
		value := v.Default
		if p, ok := byName[v.Name]; ok {
			if coerced, ok := coerceValue(v, p.Value); ok {
				value = coerced
			}
		}
		params = append(params, Param{
			Name:  v.Name,
			Type:  v.Type,
			Value: constrainValue(v, value),
		})
	}
	return params
}

// coerceValue converts a persisted value to the variable's declared type.
// Returns false when the value cannot represent the type at all.
func coerceValue(v Variable, raw any) (any, bool) {
	switch v.Type {
	case VariableTypeString:
		s, ok := raw.(string)
		return s, ok
	case VariableTypeBoolean:
		b, ok := raw.(bool)
		return b, ok
	case VariableTypeRange:
		d, ok := toDecimal(raw)
		if !ok {
			return nil, false
		}
		return d, true
	default:
		return nil, false
	}
}

// constrainValue enforces the declared type's constraints on the final value.
// Range values are clamped to [min,max]; defaults go through the same path so
// a misconfigured default can never escape the declared bounds.
func constrainValue(v Variable, value any) any {
	if v.Type != VariableTypeRange {
		return value
	}
	d, ok := toDecimal(value)
	if !ok {
		// Unusable default; pin to the lower bound.
		if v.Min != nil {
			return *v.Min
		}
		return decimal.Zero
	}
	if v.Min != nil && d.LessThan(*v.Min) {
		return *v.Min
	}
	if v.Max != nil && d.GreaterThan(*v.Max) {
		return *v.Max
	}
	return d
}

// toDecimal accepts the numeric shapes a value may arrive in after a YAML or
// JSON round trip.
func toDecimal(raw any) (decimal.Decimal, bool) {
	switch n := raw.(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case float32:
		return decimal.NewFromFloat32(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		// Range sliders submit string values in the original UI; accept them
		// when they parse as numbers.
		if _, err := strconv.ParseFloat(n, 64); err != nil {
			return decimal.Decimal{}, false
		}
		d, err := decimal.NewFromString(n)
		return d, err == nil
	default:
		return decimal.Decimal{}, false
	}
}

// ParamFloat64 extracts a numeric parameter value, reporting false for
// non-numeric params.
func ParamFloat64(p Param) (float64, bool) {
	d, ok := toDecimal(p.Value)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
