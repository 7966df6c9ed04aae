package statemachine

import (
	"fmt"
	"strconv"
	"strings"
)

// Vars is a ready-made context of named integer variables. Guards and actions
// for it can be written as short expressions, see ParseGuard and ParseAction.
type Vars map[string]int

var comparisonOperators = []string{"==", "!=", ">=", "<=", ">", "<"} // longest first

// ParseGuard compiles a guard expression over Vars. Supported forms:
//
//	power >= 90    (==, !=, >=, <=, >, <)
//	armed          (non-zero)
//	!armed         (zero or missing)
func ParseGuard(expr string) (Guard[Vars], error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty guard", ErrInvalidExpression)
	}

	for _, op := range comparisonOperators {
		left, right, found := strings.Cut(expr, op)
		if !found {
			continue
		}

		name := strings.TrimSpace(left)
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
		}

		value, err := strconv.Atoi(strings.TrimSpace(right))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
		}

		return &exprGuard{expr: expr, eval: comparison(name, op, value)}, nil
	}

	if after, ok := strings.CutPrefix(expr, "!"); ok {
		name := strings.TrimSpace(after)
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
		}

		return &exprGuard{expr: expr, eval: func(v Vars) bool { return v[name] == 0 }}, nil
	}

	if isIdentifier(expr) {
		return &exprGuard{expr: expr, eval: func(v Vars) bool { return v[expr] != 0 }}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedExpression, expr)
}

// ParseAction compiles a ';'-separated list of assignments over Vars:
//
//	power = 0; power += 10; power -= 5; errors++; retries--
func ParseAction(expr string) (Action[Vars], error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty action", ErrInvalidExpression)
	}

	var steps []func(Vars)

	for stmt := range strings.SplitSeq(expr, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		step, err := parseStatement(stmt)
		if err != nil {
			return nil, err
		}

		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, expr)
	}

	return &exprAction{expr: expr, steps: steps}, nil
}

// ParseHandler compiles an action expression into an exit handler. The event
// is ignored.
func ParseHandler(expr string) (Handler[Vars], error) {
	action, err := ParseAction(expr)
	if err != nil {
		return nil, err
	}

	return &exprHandler{action: action.(*exprAction)}, nil //nolint:forcetypeassert // ParseAction only returns *exprAction
}

func parseStatement(stmt string) (func(Vars), error) {
	if name, ok := strings.CutSuffix(stmt, "++"); ok {
		name = strings.TrimSpace(name)
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, stmt)
		}

		return func(v Vars) { v[name]++ }, nil
	}

	if name, ok := strings.CutSuffix(stmt, "--"); ok {
		name = strings.TrimSpace(name)
		if !isIdentifier(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, stmt)
		}

		return func(v Vars) { v[name]-- }, nil
	}

	for _, op := range []string{"+=", "-=", "="} {
		left, right, found := strings.Cut(stmt, op)
		if !found {
			continue
		}

		name := strings.TrimSpace(left)

		value, err := strconv.Atoi(strings.TrimSpace(right))
		if err != nil || !isIdentifier(name) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, stmt)
		}

		switch op {
		case "+=":
			return func(v Vars) { v[name] += value }, nil
		case "-=":
			return func(v Vars) { v[name] -= value }, nil
		default:
			return func(v Vars) { v[name] = value }, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedExpression, stmt)
}

func comparison(name, op string, value int) func(Vars) bool {
	switch op {
	case "==":
		return func(v Vars) bool { return v[name] == value }
	case "!=":
		return func(v Vars) bool { return v[name] != value }
	case ">=":
		return func(v Vars) bool { return v[name] >= value }
	case "<=":
		return func(v Vars) bool { return v[name] <= value }
	case ">":
		return func(v Vars) bool { return v[name] > value }
	default:
		return func(v Vars) bool { return v[name] < value }
	}
}

// IsVariableName reports whether s can name a variable in an expression.
func IsVariableName(s string) bool { return isIdentifier(s) }

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}

	return true
}

type exprGuard struct {
	expr string
	eval func(Vars) bool
}

func (g *exprGuard) Allow(v Vars) bool { return g.eval(v) }
func (g *exprGuard) Name() string      { return g.expr }

type exprAction struct {
	expr  string
	steps []func(Vars)
}

func (a *exprAction) Apply(v Vars) {
	for _, step := range a.steps {
		step(v)
	}
}

func (a *exprAction) Name() string { return a.expr }

type exprHandler struct {
	action *exprAction
}

func (h *exprHandler) Observe(v Vars, _ Event) { h.action.Apply(v) }
func (h *exprHandler) Name() string            { return h.action.expr }
