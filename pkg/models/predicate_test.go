package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPredicate_Evaluate_Comparisons(t *testing.T) {
	ctx := map[string]float64{
		"risk_score":  8,
		"usage_score": 35,
	}

	tests := []struct {
		name      string
		predicate *Predicate
		expected  bool
	}{
		{
			name:      "gte holds",
			predicate: &Predicate{Op: OpGte, Field: "risk_score", Value: 7},
			expected:  true,
		},
		{
			name:      "gte fails",
			predicate: &Predicate{Op: OpGte, Field: "risk_score", Value: 9},
			expected:  false,
		},
		{
			name:      "eq holds",
			predicate: &Predicate{Op: OpEq, Field: "usage_score", Value: 35},
			expected:  true,
		},
		{
			name:      "ne holds",
			predicate: &Predicate{Op: OpNe, Field: "usage_score", Value: 36},
			expected:  true,
		},
		{
			name:      "lt holds",
			predicate: &Predicate{Op: OpLt, Field: "usage_score", Value: 40},
			expected:  true,
		},
		{
			name:      "lte boundary",
			predicate: &Predicate{Op: OpLte, Field: "usage_score", Value: 35},
			expected:  true,
		},
		{
			name:      "gt fails on boundary",
			predicate: &Predicate{Op: OpGt, Field: "risk_score", Value: 8},
			expected:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.predicate.Evaluate(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPredicate_Evaluate_Combinators(t *testing.T) {
	ctx := map[string]float64{"a": 1, "b": 2}

	and := &Predicate{Op: OpAnd, Args: []*Predicate{
		{Op: OpEq, Field: "a", Value: 1},
		{Op: OpEq, Field: "b", Value: 2},
	}}
	result, err := and.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, result)

	or := &Predicate{Op: OpOr, Args: []*Predicate{
		{Op: OpEq, Field: "a", Value: 99},
		{Op: OpEq, Field: "b", Value: 2},
	}}
	result, err = or.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, result)

	not := &Predicate{Op: OpNot, Args: []*Predicate{
		{Op: OpEq, Field: "a", Value: 99},
	}}
	result, err = not.Evaluate(ctx)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestPredicate_Evaluate_NilHoldsVacuously(t *testing.T) {
	var p *Predicate

	result, err := p.Evaluate(nil)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestPredicate_Evaluate_MissingMetric(t *testing.T) {
	p := &Predicate{Op: OpGt, Field: "absent", Value: 1}

	_, err := p.Evaluate(map[string]float64{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingMetric)
}

func TestPredicate_Evaluate_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		predicate *Predicate
	}{
		{
			name:      "unknown operator",
			predicate: &Predicate{Op: "matches", Field: "a", Value: 1},
		},
		{
			name:      "comparison without field",
			predicate: &Predicate{Op: OpGt, Value: 1},
		},
		{
			name:      "empty and",
			predicate: &Predicate{Op: OpAnd},
		},
		{
			name: "not with two operands",
			predicate: &Predicate{Op: OpNot, Args: []*Predicate{
				{Op: OpEq, Field: "a", Value: 1},
				{Op: OpEq, Field: "a", Value: 2},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.predicate.Evaluate(map[string]float64{"a": 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedPredicate)
		})
	}
}

func TestParsePredicate(t *testing.T) {
	raw := []byte(`{"op":"and","args":[{"op":"gte","field":"risk_score","value":7},{"op":"lt","field":"usage_score","value":40}]}`)

	p, err := ParsePredicate(raw)
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, OpAnd, p.Op)
	assert.Len(t, p.Args, 2)

	result, err := p.Evaluate(map[string]float64{"risk_score": 8, "usage_score": 35})
	require.NoError(t, err)
	assert.True(t, result)
}

func TestParsePredicate_Empty(t *testing.T) {
	p, err := ParsePredicate(nil)
	require.NoError(t, err)
	assert.Nil(t, p)
}
