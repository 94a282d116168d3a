package query

import (
	"fmt"
	"strings"

	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
)

var topLevelFields = map[string]bool{
	"mandate_id":   true,
	"mandate_type": true,
	"amount":       true,
	"currency":     true,
	"created_at":   true,
	"issued_by":    true,
	"status":       true,
}

func checkField(path []string) error {
	if path[0] == "meta" {
		if len(path) < 2 || path[1] == "" {
			return fmt.Errorf("query: meta needs a key, e.g. meta.agent")
		}
		return nil
	}
	if len(path) == 1 && topLevelFields[path[0]] {
		return nil
	}
	return fmt.Errorf("query: unknown field %q", strings.Join(path, "."))
}

// Match evaluates the query against m. A comparison on a meta key the
// mandate does not carry is false.
func (q *Query) Match(m *mandate.Mandate) (bool, error) {
	return eval(q.root, m)
}

func eval(n Node, m *mandate.Mandate) (bool, error) {
	switch n := n.(type) {
	case *Logical:
		left, err := eval(n.Left, m)
		if err != nil {
			return false, err
		}
		if n.Op == "AND" && !left {
			return false, nil
		}
		if n.Op == "OR" && left {
			return true, nil
		}
		return eval(n.Right, m)
	case *Not:
		v, err := eval(n.Operand, m)
		return !v, err
	case *Compare:
		left, ok := resolve(m, n.Field)
		if !ok {
			return false, nil
		}
		return n.apply(left)
	}
	return false, fmt.Errorf("query: unknown node %T", n)
}

func resolve(m *mandate.Mandate, path []string) (any, bool) {
	switch path[0] {
	case "mandate_id":
		return m.MandateID, true
	case "mandate_type":
		return string(m.MandateType), true
	case "amount":
		return m.Amount, true
	case "currency":
		return string(m.Currency), true
	case "created_at":
		return m.CreatedAt, true
	case "issued_by":
		return m.IssuedBy, true
	case "status":
		return string(m.Status), true
	case "meta":
		var cur any = m.Meta
		for _, key := range path[1:] {
			obj, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			if cur, ok = obj[key]; !ok {
				return nil, false
			}
		}
		return cur, true
	}
	return nil, false
}
