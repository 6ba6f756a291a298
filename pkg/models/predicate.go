package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Predicate is a tagged-variant boolean expression tree evaluated over a
// typed metric context. Conditions are interpreted, never executed as
// templates, so evaluation is side-effect-free.
//
// Comparison nodes carry Field and Value; combinator nodes carry Args.
// JSON form:
//
//	{"op": "and", "args": [
//	  {"op": "gte", "field": "risk_score", "value": 7},
//	  {"op": "lt", "field": "usage_score", "value": 40}
//	]}
type Predicate struct {
	Op    PredicateOp  `json:"op"`
	Field string       `json:"field,omitempty"`
	Value float64      `json:"value,omitempty"`
	Args  []*Predicate `json:"args,omitempty"`
}

type PredicateOp string

const (
	OpEq  PredicateOp = "eq"
	OpNe  PredicateOp = "ne"
	OpGt  PredicateOp = "gt"
	OpGte PredicateOp = "gte"
	OpLt  PredicateOp = "lt"
	OpLte PredicateOp = "lte"
	OpAnd PredicateOp = "and"
	OpOr  PredicateOp = "or"
	OpNot PredicateOp = "not"
)

var (
	// ErrMalformedPredicate indicates a structurally invalid expression.
	ErrMalformedPredicate = errors.New("malformed predicate")

	// ErrMissingMetric indicates a referenced metric is absent from the context.
	ErrMissingMetric = errors.New("missing metric")
)

// Evaluate interprets the predicate against the metric context. A nil
// predicate holds vacuously. Referencing an absent metric is an error so
// callers can skip the definition instead of silently matching.
func (p *Predicate) Evaluate(ctx map[string]float64) (bool, error) {
	if p == nil {
		return true, nil
	}

	switch p.Op {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		return p.compare(ctx)
	case OpAnd:
		if len(p.Args) == 0 {
			return false, fmt.Errorf("%w: and requires operands", ErrMalformedPredicate)
		}

		for _, arg := range p.Args {
			ok, err := arg.Evaluate(ctx)
			if err != nil {
				return false, err
			}

			if !ok {
				return false, nil
			}
		}

		return true, nil
	case OpOr:
		if len(p.Args) == 0 {
			return false, fmt.Errorf("%w: or requires operands", ErrMalformedPredicate)
		}

		for _, arg := range p.Args {
			ok, err := arg.Evaluate(ctx)
			if err != nil {
				return false, err
			}

			if ok {
				return true, nil
			}
		}

		return false, nil
	case OpNot:
		if len(p.Args) != 1 {
			return false, fmt.Errorf("%w: not requires exactly one operand", ErrMalformedPredicate)
		}

		ok, err := p.Args[0].Evaluate(ctx)
		if err != nil {
			return false, err
		}

		return !ok, nil
	default:
		return false, fmt.Errorf("%w: unknown operator %q", ErrMalformedPredicate, p.Op)
	}
}

func (p *Predicate) compare(ctx map[string]float64) (bool, error) {
	if p.Field == "" {
		return false, fmt.Errorf("%w: comparison requires a field", ErrMalformedPredicate)
	}

	actual, ok := ctx[p.Field]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrMissingMetric, p.Field)
	}

	switch p.Op {
	case OpEq:
		return actual == p.Value, nil
	case OpNe:
		return actual != p.Value, nil
	case OpGt:
		return actual > p.Value, nil
	case OpGte:
		return actual >= p.Value, nil
	case OpLt:
		return actual < p.Value, nil
	case OpLte:
		return actual <= p.Value, nil
	default:
		return false, fmt.Errorf("%w: unknown comparison %q", ErrMalformedPredicate, p.Op)
	}
}

// ParsePredicate decodes a predicate from its JSON form.
func ParsePredicate(raw []byte) (*Predicate, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var p Predicate

	err := json.Unmarshal(raw, &p)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPredicate, err)
	}

	return &p, nil
}
