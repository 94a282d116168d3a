package query

import (
	"fmt"
	"math"
	"strings"
)

// Operator is a comparison operator.
type Operator string

const (
	OpEq       Operator = "=="
	OpNeq      Operator = "!="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
	OpContains Operator = "contains"
	OpMatches  Operator = "matches"
	OpIn       Operator = "in"
)

func (c *Compare) apply(left any) (bool, error) {
	switch c.Op {
	case OpEq:
		return equal(left, c.Value.V), nil
	case OpNeq:
		return !equal(left, c.Value.V), nil
	case OpGt, OpGte, OpLt, OpLte:
		return ordered(c.Op, left, c.Value.V)
	case OpContains:
		s, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("query: contains needs a string field, got %T", left)
		}
		return strings.Contains(s, fmt.Sprint(c.Value.V)), nil
	case OpMatches:
		s, ok := left.(string)
		if !ok {
			return false, fmt.Errorf("query: matches needs a string field, got %T", left)
		}
		return c.re.MatchString(s), nil
	case OpIn:
		items, _ := c.Value.V.([]any)
		for _, item := range items {
			if equal(left, item) {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("query: unknown operator %q", c.Op)
}

// equal compares numbers by value and everything else by its printed form.
func equal(a, b any) bool {
	af, aok := number(a)
	bf, bok := number(b)
	if aok && bok {
		return math.Abs(af-bf) < 1e-9
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func ordered(op Operator, a, b any) (bool, error) {
	af, aok := number(a)
	bf, bok := number(b)
	if !aok || !bok {
		// created_at and other timestamps order lexically in TimeLayout.
		as, sok := a.(string)
		bs, tok := b.(string)
		if !sok || !tok {
			return false, fmt.Errorf("query: %s needs two numbers or two strings, got %T and %T", op, a, b)
		}
		af, bf = float64(strings.Compare(as, bs)), 0
	}
	switch op {
	case OpGt:
		return af > bf, nil
	case OpGte:
		return af >= bf, nil
	case OpLt:
		return af < bf, nil
	case OpLte:
		return af <= bf, nil
	}
	return false, nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
