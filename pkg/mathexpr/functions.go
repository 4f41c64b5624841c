package mathexpr

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
)

var constants = map[string]any{
	"pi":  math.Pi,
	"e":   math.E,
	"phi": math.Phi,
}

type unaryFunc func(float64) float64

var unary = map[string]unaryFunc{
	"sqrt":  math.Sqrt,
	"cbrt":  math.Cbrt,
	"exp":   math.Exp,
	"log10": math.Log10,
	"log2":  math.Log2,
	"ln":    math.Log,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"asin":  math.Asin,
	"acos":  math.Acos,
	"atan":  math.Atan,
	"sinh":  math.Sinh,
	"cosh":  math.Cosh,
	"tanh":  math.Tanh,
	"abs":   math.Abs,
	"floor": math.Floor,
	"ceil":  math.Ceil,
	"round": math.Round,
	"trunc": math.Trunc,
}

type binaryFunc func(float64, float64) float64

var binary = map[string]binaryFunc{
	"pow":   math.Pow,
	"atan2": math.Atan2,
	"hypot": math.Hypot,
}

func options() []expr.Option {
	opts := []expr.Option{
		expr.Env(constants),
		expr.DisableAllBuiltins(),
	}
	opts = append(opts, arithmeticOptions()...)
	for name, fn := range unary {
		opts = append(opts, expr.Function(name, unaryCall(name, fn)))
	}
	for name, fn := range binary {
		opts = append(opts, expr.Function(name, binaryCall(name, fn)))
	}
	opts = append(opts,
		expr.Function("log", logCall),
		expr.Function("min", reduceCall("min", math.Min)),
		expr.Function("max", reduceCall("max", math.Max)),
		expr.Function("factorial", factorialCall),
		expr.Function("gcd", intReduceCall("gcd", gcd)),
		expr.Function("lcm", intReduceCall("lcm", lcm)),
	)
	return opts
}

func unaryCall(name string, fn unaryFunc) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		args, err := floatArgs(name, params, 1, 1)
		if err != nil {
			return nil, err
		}
		return fn(args[0]), nil
	}
}

func binaryCall(name string, fn binaryFunc) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		args, err := floatArgs(name, params, 2, 2)
		if err != nil {
			return nil, err
		}
		return fn(args[0], args[1]), nil
	}
}

// logCall is the natural logarithm, log(x, base) uses the given base.
func logCall(params ...any) (any, error) {
	args, err := floatArgs("log", params, 1, 2)
	if err != nil {
		return nil, err
	}
	if len(args) == 2 {
		return math.Log(args[0]) / math.Log(args[1]), nil
	}
	return math.Log(args[0]), nil
}

func reduceCall(name string, fn binaryFunc) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		args, err := floatArgs(name, params, 1, -1)
		if err != nil {
			return nil, err
		}
		res := args[0]
		for _, a := range args[1:] {
			res = fn(res, a)
		}
		return res, nil
	}
}

func intReduceCall(name string, fn func(a, b int64) (int64, error)) func(params ...any) (any, error) {
	return func(params ...any) (any, error) {
		args, err := intArgs(name, params, 2, -1)
		if err != nil {
			return nil, err
		}
		res := args[0]
		for _, a := range args[1:] {
			if res, err = fn(res, a); err != nil {
				return nil, errors.WithMessage(err, name)
			}
		}
		return int(res), nil
	}
}

// maxFactorial is the largest n with n! representable as float64.
const maxFactorial = 170

func factorialCall(params ...any) (any, error) {
	args, err := intArgs("factorial", params, 1, 1)
	if err != nil {
		return nil, err
	}
	n := args[0]
	if n < 0 || n > maxFactorial {
		return nil, errors.Wrapf(ErrInvalidArgument, "factorial: %d is out of range [0, %d]", n, maxFactorial)
	}
	if n <= 20 {
		res := int64(1)
		for i := int64(2); i <= n; i++ {
			res *= i
		}
		return int(res), nil
	}
	res := 1.0
	for i := 2; i <= int(n); i++ {
		res *= float64(i)
	}
	return res, nil
}

func gcd(a, b int64) (int64, error) {
	return gcdInt64(a, b), nil
}

func gcdInt64(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	l, ok := mulInt64(a/gcdInt64(a, b), b)
	if !ok {
		return 0, errors.Wrapf(ErrOverflow, "%d and %d", a, b)
	}
	if l < 0 {
		return -l, nil
	}
	return l, nil
}

func floatArgs(name string, params []any, minArgs, maxArgs int) ([]float64, error) {
	if err := checkArgCount(name, len(params), minArgs, maxArgs); err != nil {
		return nil, err
	}
	res := make([]float64, len(params))
	for i, p := range params {
		f, ok := toFloat(p)
		if !ok {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s: argument %d is %T, not a number", name, i+1, p)
		}
		res[i] = f
	}
	return res, nil
}

func intArgs(name string, params []any, minArgs, maxArgs int) ([]int64, error) {
	if err := checkArgCount(name, len(params), minArgs, maxArgs); err != nil {
		return nil, err
	}
	res := make([]int64, len(params))
	for i, p := range params {
		f, ok := toFloat(p)
		if !ok || f != math.Trunc(f) || math.Abs(f) > math.MaxInt64/2 {
			return nil, errors.Wrapf(ErrInvalidArgument, "%s: argument %d must be an integer", name, i+1)
		}
		res[i] = int64(f)
	}
	return res, nil
}

func checkArgCount(name string, n, minArgs, maxArgs int) error {
	if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		switch {
		case minArgs == maxArgs:
			return errors.Wrapf(ErrInvalidArgument, "%s: expected %d arguments, got %d", name, minArgs, n)
		case maxArgs < 0:
			return errors.Wrapf(ErrInvalidArgument, "%s: expected at least %d arguments, got %d", name, minArgs, n)
		default:
			return errors.Wrapf(ErrInvalidArgument, "%s: expected %d to %d arguments, got %d", name, minArgs, maxArgs, n)
		}
	}
	return nil
}

func toFloat(v any) (float64, bool) {
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
	default:
		return 0, false
	}
}
