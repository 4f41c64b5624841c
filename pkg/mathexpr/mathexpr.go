package mathexpr

import (
	"math"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/file"
	"github.com/expr-lang/expr/vm"
)

var (
	// ErrEmptyExpression is returned for an empty or whitespace-only expression.
	ErrEmptyExpression = errors.New("empty expression")
	// ErrDivisionByZero is returned when the expression divides by zero.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrNotFinite is returned when the result is NaN or infinite.
	ErrNotFinite = errors.New("result is not a finite number")
	// ErrNotNumeric is returned when the result is not a number or a boolean.
	ErrNotNumeric = errors.New("result is not numeric")
	// ErrInvalidArgument is returned when a function is called with bad arguments.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrOverflow is returned when an integer function result does not fit in int64.
	ErrOverflow = errors.New("integer overflow")
)

// evalErrors are returned as is when a function of the program fails with them.
var evalErrors = []error{ErrInvalidArgument, ErrDivisionByZero, ErrOverflow}

// Program is a compiled expression.
type Program struct {
	source  string
	program *vm.Program
}

// String returns the normalized source of the program.
func (p *Program) String() string {
	return p.source
}

// Compile normalizes and compiles the expression.
func Compile(expression string) (*Program, error) {
	normalized := Normalize(expression)
	if normalized == "" {
		return nil, ErrEmptyExpression
	}
	program, err := expr.Compile(normalized, options()...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to compile %q", normalized)
	}
	return &Program{source: normalized, program: program}, nil
}

// Run runs the compiled program.
func (p *Program) Run() (any, error) {
	out, err := expr.Run(p.program, constants)
	if err != nil {
		// the VM wraps the error of a failed function
		var fe *file.Error
		if errors.As(err, &fe) && fe.Prev != nil {
			for _, target := range evalErrors {
				if errors.Is(fe.Prev, target) {
					return nil, errors.Wrapf(fe.Prev, "%s", p.source)
				}
			}
		}
		return nil, errors.Wrapf(err, "failed to evaluate %q", p.source)
	}
	return checkResult(p.source, out)
}

// Evaluate evaluates the expression and returns int, float64 or bool.
// Integral results of float arithmetic are returned as float64,
// use Format to render them.
func Evaluate(expression string) (any, error) {
	program, err := Compile(expression)
	if err != nil {
		return nil, err
	}
	return program.Run()
}

// Calculate evaluates the expression and returns the formatted result.
func Calculate(expression string) (string, error) {
	v, err := Evaluate(expression)
	if err != nil {
		return "", err
	}
	return Format(v), nil
}

func checkResult(source string, out any) (any, error) {
	switch v := out.(type) {
	case bool:
		return v, nil
	case int:
		return v, nil
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errors.Wrapf(ErrNotFinite, "%s", source)
		}
		return v, nil
	default:
		if f, ok := toFloat(out); ok {
			return checkResult(source, f)
		}
		return nil, errors.Wrapf(ErrNotNumeric, "%T", out)
	}
}

// maxExactFloat is the magnitude from which float64 can not hold every integer.
const maxExactFloat = 1 << 53

// Format renders the value: integers without decimals,
// floats with up to 10 decimals and trailing zeros trimmed.
// Floats beyond the exact integer range use the exponent form.
func Format(v any) string {
	switch n := v.(type) {
	case bool:
		return strconv.FormatBool(n)
	case int:
		return strconv.Itoa(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1e15 {
			return strconv.FormatFloat(n, 'f', 0, 64)
		}
		if math.Abs(n) >= maxExactFloat {
			return strconv.FormatFloat(n, 'g', -1, 64)
		}
		s := strconv.FormatFloat(n, 'f', 10, 64)
		s = strings.TrimRight(s, "0")
		s = strings.TrimSuffix(s, ".")
		if s == "-0" || s == "" {
			return "0"
		}
		return s
	default:
		if f, ok := toFloat(v); ok {
			return Format(f)
		}
		return ""
	}
}
