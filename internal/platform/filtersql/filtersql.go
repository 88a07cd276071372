// Package filtersql translates parsed AIP-160 filter expressions into SQL
// WHERE clause fragments with positional parameters.
package filtersql

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// Condition represents a SQL WHERE clause fragment with parameters.
type Condition struct {
	// Clause is the SQL WHERE clause (e.g., "subject = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Parse parses a filter expression against the given declarations and
// translates it to SQL. Columns maps filter field names to SQL column names;
// fields outside the map are rejected. An empty filter string yields an empty
// condition.
func Parse(filterStr string, decls *filtering.Declarations, columns map[string]string) (Condition, error) {
	if strings.TrimSpace(filterStr) == "" {
		return Condition{}, nil
	}

	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return Condition{}, fmt.Errorf("parse filter: %w", err)
	}

	translator := translator{columns: columns}
	return translator.expr(parsed.CheckedExpr.Expr)
}

type translator struct {
	columns map[string]string
}

func (t translator) expr(e *expr.Expr) (Condition, error) {
	if e == nil {
		return Condition{}, nil
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_CallExpr:
		return t.call(kind.CallExpr)
	default:
		return Condition{}, fmt.Errorf("unsupported expression type: %T", kind)
	}
}

func (t translator) call(call *expr.Expr_Call) (Condition, error) {
	switch call.Function {
	case "_&&_", "AND":
		return t.logical(call.Args, "AND")
	case "_||_", "OR":
		return t.logical(call.Args, "OR")
	case "_==_", "=":
		return t.comparison(call.Args, "=")
	case "_!=_", "!=":
		return t.comparison(call.Args, "!=")
	case "_<_", "<":
		return t.comparison(call.Args, "<")
	case "_<=_", "<=":
		return t.comparison(call.Args, "<=")
	case "_>_", ">":
		return t.comparison(call.Args, ">")
	case "_>=_", ">=":
		return t.comparison(call.Args, ">=")
	default:
		return Condition{}, fmt.Errorf("unsupported function: %s", call.Function)
	}
}

func (t translator) logical(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("%s requires 2 arguments", op)
	}

	left, err := t.expr(args[0])
	if err != nil {
		return Condition{}, err
	}
	right, err := t.expr(args[1])
	if err != nil {
		return Condition{}, err
	}

	return Condition{
		Clause: fmt.Sprintf("(%s %s %s)", left.Clause, op, right.Clause),
		Params: append(left.Params, right.Params...),
	}, nil
}

func (t translator) comparison(args []*expr.Expr, op string) (Condition, error) {
	if len(args) != 2 {
		return Condition{}, fmt.Errorf("comparison requires 2 arguments")
	}

	field, err := extractFieldName(args[0])
	if err != nil {
		return Condition{}, err
	}

	column, ok := t.columns[field]
	if !ok {
		return Condition{}, fmt.Errorf("unknown field: %s", field)
	}

	value, err := extractValue(args[1])
	if err != nil {
		return Condition{}, err
	}

	return Condition{
		Clause: fmt.Sprintf("%s %s ?", column, op),
		Params: []any{value},
	}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_IdentExpr:
		return kind.IdentExpr.Name, nil
	default:
		return "", fmt.Errorf("expected identifier, got %T", kind)
	}
}

func extractValue(e *expr.Expr) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return extractConstValue(kind.ConstExpr)
	case *expr.Expr_CallExpr:
		// Handle timestamp("...") function calls
		if kind.CallExpr.Function == "timestamp" && len(kind.CallExpr.Args) == 1 {
			return extractTimestampValue(kind.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", kind.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", kind)
	}
}

func extractConstValue(c *expr.Constant) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}

	switch kind := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		return kind.StringValue, nil
	case *expr.Constant_Int64Value:
		return kind.Int64Value, nil
	case *expr.Constant_Uint64Value:
		return kind.Uint64Value, nil
	case *expr.Constant_DoubleValue:
		return kind.DoubleValue, nil
	case *expr.Constant_BoolValue:
		return kind.BoolValue, nil
	default:
		return nil, fmt.Errorf("unsupported constant type: %T", kind)
	}
}

// extractTimestampValue converts timestamp literals to the millisecond
// integers timestamp columns store.
func extractTimestampValue(e *expr.Expr) (int64, error) {
	if e == nil {
		return 0, fmt.Errorf("nil timestamp argument")
	}

	switch kind := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		if strVal, ok := kind.ConstExpr.ConstantKind.(*expr.Constant_StringValue); ok {
			t, err := time.Parse(time.RFC3339, strVal.StringValue)
			if err != nil {
				t, err = time.Parse(time.RFC3339Nano, strVal.StringValue)
				if err != nil {
					return 0, fmt.Errorf("invalid timestamp format: %s", strVal.StringValue)
				}
			}
			return t.UTC().UnixMilli(), nil
		}
		return 0, fmt.Errorf("timestamp argument must be a string")
	default:
		return 0, fmt.Errorf("timestamp argument must be a constant string")
	}
}
