package mathexpr

import (
	"math"
	"math/bits"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

// arithmetic maps the binary operators to the checked functions
// that replace them in the compiled program.
var arithmetic = map[string]string{
	"+": "$add",
	"-": "$sub",
	"*": "$mul",
	"/": "$div",
	"%": "$mod",
}

// arithmeticPatcher rewrites a + b into $add(a, b), so integer overflow
// and division by zero are detected instead of wrapping or folding.
type arithmeticPatcher struct{}

func (arithmeticPatcher) Visit(node *ast.Node) {
	n, ok := (*node).(*ast.BinaryNode)
	if !ok {
		return
	}
	name, ok := arithmetic[n.Operator]
	if !ok {
		return
	}
	ast.Patch(node, &ast.CallNode{
		Callee:    &ast.IdentifierNode{Value: name},
		Arguments: []ast.Node{n.Left, n.Right},
	})
}

func arithmeticOptions() []expr.Option {
	return []expr.Option{
		expr.Patch(arithmeticPatcher{}),
		expr.Function("$add", operands("+", addInt, func(a, b float64) float64 { return a + b })),
		expr.Function("$sub", operands("-", subInt, func(a, b float64) float64 { return a - b })),
		expr.Function("$mul", operands("*", mulInt, func(a, b float64) float64 { return a * b })),
		expr.Function("$div", divCall),
		expr.Function("$mod", modCall),
	}
}

// operands calls the int function when both operands are int,
// the float function otherwise or when the int result overflows.
func operands(op string, intFn func(a, b int) (int, bool), floatFn func(a, b float64) float64) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		if a, ok := params[0].(int); ok {
			if b, ok := params[1].(int); ok {
				if res, ok := intFn(a, b); ok {
					return res, nil
				}
				return floatFn(float64(a), float64(b)), nil
			}
		}
		a, b, err := floatOperands(op, params)
		if err != nil {
			return nil, err
		}
		return floatFn(a, b), nil
	}
}

func floatOperands(op string, params []any) (float64, float64, error) {
	a, ok := toFloat(params[0])
	if !ok {
		return 0, 0, errors.Wrapf(ErrInvalidArgument, "%s: left operand is %T, not a number", op, params[0])
	}
	b, ok := toFloat(params[1])
	if !ok {
		return 0, 0, errors.Wrapf(ErrInvalidArgument, "%s: right operand is %T, not a number", op, params[1])
	}
	return a, b, nil
}

func addInt(a, b int) (int, bool) {
	c := a + b
	return c, (c > a) == (b > 0)
}

func subInt(a, b int) (int, bool) {
	c := a - b
	return c, (c < a) == (b > 0)
}

func mulInt(a, b int) (int, bool) {
	c, ok := mulInt64(int64(a), int64(b))
	return int(c), ok
}

// mulInt64 returns a*b, ok is false when the product overflows int64.
func mulInt64(a, b int64) (int64, bool) {
	neg := (a < 0) != (b < 0)
	hi, lo := bits.Mul64(absUint64(a), absUint64(b))
	if hi != 0 {
		return 0, false
	}
	if neg {
		if lo > 1<<63 {
			return 0, false
		}
		return -int64(lo), true
	}
	if lo > math.MaxInt64 {
		return 0, false
	}
	return int64(lo), true
}

func absUint64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}

// divCall is a true division, int operands give a float64.
func divCall(params ...any) (any, error) {
	a, b, err := floatOperands("/", params)
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, ErrDivisionByZero
	}
	return a / b, nil
}

func modCall(params ...any) (any, error) {
	if a, ok := params[0].(int); ok {
		if b, ok := params[1].(int); ok {
			if b == 0 {
				return nil, ErrDivisionByZero
			}
			return a % b, nil
		}
	}
	a, b, err := floatOperands("%", params)
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, ErrDivisionByZero
	}
	return math.Mod(a, b), nil
}
