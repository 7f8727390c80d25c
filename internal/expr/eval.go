// Package expr implements the restricted condition language used by
// workflow transitions. Expressions are parsed into a closed AST and
// interpreted directly against a flat variable map; there is no path to
// arbitrary host code execution.
//
// Grammar: equality (== !=), ordering (< <= > >=), membership (in),
// boolean composition (and, or, not), parentheses, and atoms: string,
// number, and bool literals, list literals, and identifiers.
package expr

import (
	"fmt"
	"reflect"
	"strings"
)

// undefinedValue is the resolution of a missing identifier. It is falsy
// in boolean context and equal only to itself.
type undefinedValue struct{}

// Undefined is the sentinel for missing identifiers.
var Undefined = undefinedValue{}

// Evaluate parses and interprets expression against variables, returning
// the truthiness of the result. An empty expression is vacuously true.
// Syntax errors and disallowed constructs return a *Error.
func Evaluate(expression string, variables map[string]any) (bool, error) {
	if strings.TrimSpace(expression) == "" {
		return true, nil
	}
	root, err := parse(expression)
	if err != nil {
		return false, err
	}
	v, err := eval(root, expression, variables)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

// Check parses expression without evaluating it, so workflow loaders
// can reject malformed conditions at setup time.
func Check(expression string) error {
	if strings.TrimSpace(expression) == "" {
		return nil
	}
	_, err := parse(expression)
	return err
}

func eval(n node, src string, vars map[string]any) (any, error) {
	switch t := n.(type) {
	case *literalNode:
		return t.value, nil
	case *identNode:
		if v, ok := vars[t.name]; ok {
			return normalize(v), nil
		}
		return Undefined, nil
	case *listNode:
		items := make([]any, 0, len(t.items))
		for _, item := range t.items {
			v, err := eval(item, src, vars)
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		return items, nil
	case *notNode:
		v, err := eval(t.operand, src, vars)
		if err != nil {
			return nil, err
		}
		return !truthy(v), nil
	case *binaryNode:
		return evalBinary(t, src, vars)
	}
	// Fail closed: anything outside the whitelist is rejected, never
	// silently passed.
	return nil, &Error{Expr: src, Msg: fmt.Sprintf("disallowed node type %T", n)}
}

func evalBinary(n *binaryNode, src string, vars map[string]any) (any, error) {
	// and/or short-circuit and return booleans, not operands.
	if n.op == tokAnd || n.op == tokOr {
		left, err := eval(n.left, src, vars)
		if err != nil {
			return nil, err
		}
		if n.op == tokAnd && !truthy(left) {
			return false, nil
		}
		if n.op == tokOr && truthy(left) {
			return true, nil
		}
		right, err := eval(n.right, src, vars)
		if err != nil {
			return nil, err
		}
		return truthy(right), nil
	}

	left, err := eval(n.left, src, vars)
	if err != nil {
		return nil, err
	}
	right, err := eval(n.right, src, vars)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokEq:
		return equal(left, right), nil
	case tokNeq:
		return !equal(left, right), nil
	case tokLt, tokLte, tokGt, tokGte:
		return order(n.op, left, right), nil
	case tokIn:
		return member(left, right, src)
	}
	return nil, &Error{Expr: src, Msg: "unsupported operator"}
}

// equal implements loose equality: numbers compare numerically, a string
// against a number compares as strings, and Undefined equals only itself.
func equal(a, b any) bool {
	if _, ok := a.(undefinedValue); ok {
		_, other := b.(undefinedValue)
		return other
	}
	if _, ok := b.(undefinedValue); ok {
		return false
	}
	an, aNum := asNumber(a)
	bn, bNum := asNumber(b)
	if aNum && bNum {
		return an == bn
	}
	_, aStr := a.(string)
	_, bStr := b.(string)
	if aStr || bStr {
		return stringify(a) == stringify(b)
	}
	return reflect.DeepEqual(a, b)
}

// order implements < <= > >=. Both numbers compare numerically; if either
// side is a string the comparison is lexicographic over stringified
// operands. Undefined never orders against anything.
func order(op tokenKind, a, b any) bool {
	if _, ok := a.(undefinedValue); ok {
		return false
	}
	if _, ok := b.(undefinedValue); ok {
		return false
	}

	an, aNum := asNumber(a)
	bn, bNum := asNumber(b)
	if aNum && bNum {
		switch op {
		case tokLt:
			return an < bn
		case tokLte:
			return an <= bn
		case tokGt:
			return an > bn
		case tokGte:
			return an >= bn
		}
	}

	as, bs := stringify(a), stringify(b)
	switch op {
	case tokLt:
		return as < bs
	case tokLte:
		return as <= bs
	case tokGt:
		return as > bs
	case tokGte:
		return as >= bs
	}
	return false
}

// member implements `x in y` for list and string containers.
func member(needle, haystack any, src string) (any, error) {
	switch h := haystack.(type) {
	case []any:
		for _, item := range h {
			if equal(needle, item) {
				return true, nil
			}
		}
		return false, nil
	case string:
		if _, ok := needle.(undefinedValue); ok {
			return false, nil
		}
		return strings.Contains(h, stringify(needle)), nil
	case undefinedValue:
		return false, nil
	}
	return nil, &Error{Expr: src, Msg: fmt.Sprintf("'in' requires a list or string container, got %T", haystack)}
}

func truthy(v any) bool {
	switch t := v.(type) {
	case undefinedValue:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case []any:
		return len(t) > 0
	case nil:
		return false
	}
	if n, ok := asNumber(v); ok {
		return n != 0
	}
	return true
}

// normalize widens variable values so comparisons behave uniformly for
// data that arrived via JSON round-trips or native Go types.
func normalize(v any) any {
	if v == nil {
		return Undefined
	}
	if n, ok := asNumber(v); ok {
		return n
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Slice && !rv.IsNil() {
		items := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = normalize(rv.Index(i).Interface())
		}
		return items
	}
	return v
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if n, ok := asNumber(v); ok {
		// Trim the float formatting for integral values so "42" == 42
		// compares equal as strings.
		if n == float64(int64(n)) {
			return fmt.Sprintf("%d", int64(n))
		}
		return fmt.Sprintf("%g", n)
	}
	return fmt.Sprintf("%v", v)
}
