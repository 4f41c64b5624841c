package mathexpr_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/mathexpr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCalculate(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		expr string
		exp  string
	}{
		{"2+2", "4"},
		{"2 + 2 * 3", "8"},
		{"(2 + 2) * 3", "12"},
		{"37593 * 67", "2518731"},
		{"37593**(1/5)", "8.2228316142"},
		{"2^10", "1024"},
		{"2**10", "1024"},
		{"7/2", "3.5"},
		{"10 % 3", "1"},
		{"-3 + 1", "-2"},
		{"0.1 + 0.2", "0.3"},
		{"1/3", "0.3333333333"},
		{"sqrt(16)", "4"},
		{"sqrt(2)", "1.4142135624"},
		{"cbrt(27)", "3"},
		{"pow(2, 8)", "256"},
		{"pi", "3.1415926536"},
		{"e", "2.7182818285"},
		{"sin(pi/6)", "0.5"},
		{"cos(0)", "1"},
		{"hypot(3, 4)", "5"},
		{"log10(1000)", "3"},
		{"log2(8)", "3"},
		{"ln(e)", "1"},
		{"log(e)", "1"},
		{"log(8, 2)", "3"},
		{"abs(-5.5)", "5.5"},
		{"floor(2.7)", "2"},
		{"ceil(2.1)", "3"},
		{"round(2.5)", "3"},
		{"trunc(-2.7)", "-2"},
		{"min(3, 1, 2)", "1"},
		{"max(3, 1, 2)", "3"},
		{"factorial(5)", "120"},
		{"factorial(0)", "1"},
		{"gcd(12, 18)", "6"},
		{"gcd(12, 18, 8)", "2"},
		{"lcm(4, 6)", "12"},
		{"2 > 1", "true"},
		{"2 + 2 == 5", "false"},
		// normalization
		{"1,000 + 1", "1001"},
		{"1,234,567 * 2", "2469134"},
		{"(1,000 + 24) / 2", "512"},
		{"3 × 4", "12"},
		{"10 ÷ 4", "2.5"},
		{"5 − 7", "-2"},
		{"5²", "25"},
		{"2³", "8"},
		{"2 * π", "6.2831853072"},
		{"2+2=", "4"},
		{"2+2 = ?", "4"},
		{" `6*7` ", "42"},
		// int64 overflow continues in float64
		{"99999999999 * 99999999999", "9.9999999998e+21"},
		{"-99999999999 * 99999999999", "-9.9999999998e+21"},
		{"factorial(20) * 21", "5.109094217170944e+19"},
		{"9223372036854775807 + 1", "9.223372036854776e+18"},
		{"-9223372036854775807 - 2", "-9.223372036854776e+18"},
		{"3037000499 * 3037000499", "9223372030926249001"},
		{"7.5 % 2", "1.5"},
	}

	for _, tc := range tcases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := mathexpr.Calculate(tc.expr)
			require.NoError(t, err)
			assert.Equal(t, tc.exp, got)
		})
	}
}

func TestEvaluateTypes(t *testing.T) {
	v, err := mathexpr.Evaluate("2+2")
	require.NoError(t, err)
	assert.Equal(t, 4, v)

	v, err = mathexpr.Evaluate("7/2")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = mathexpr.Evaluate("factorial(20) * 21")
	require.NoError(t, err)
	assert.IsType(t, float64(0), v)

	v, err = mathexpr.Evaluate("1 < 2")
	require.NoError(t, err)
	assert.Equal(t, true, v)
}

func TestEvaluateErrors(t *testing.T) {
	t.Parallel()

	tcases := []struct {
		expr string
		is   error
		msg  string
	}{
		{expr: "", is: mathexpr.ErrEmptyExpression},
		{expr: "  = ", is: mathexpr.ErrEmptyExpression},
		{expr: "1/0", is: mathexpr.ErrDivisionByZero},
		{expr: "0/0", is: mathexpr.ErrDivisionByZero},
		{expr: "5 % 0", is: mathexpr.ErrDivisionByZero},
		{expr: "sqrt(-1)", is: mathexpr.ErrNotFinite},
		{expr: "exp(1000)", is: mathexpr.ErrNotFinite},
		{expr: "exp(1000) / 2", is: mathexpr.ErrNotFinite},
		{expr: "1 / (2 - 2)", is: mathexpr.ErrDivisionByZero},
		{expr: "1.5 % 0", is: mathexpr.ErrDivisionByZero},
		{expr: "lcm(2**40, 3**30)", is: mathexpr.ErrOverflow},
		{expr: `"a" + 1`, is: mathexpr.ErrInvalidArgument},
		{expr: `"abc"`, is: mathexpr.ErrNotNumeric},
		{expr: "factorial(-1)", is: mathexpr.ErrInvalidArgument},
		{expr: "factorial(2.5)", is: mathexpr.ErrInvalidArgument},
		{expr: "sqrt(1, 2)", is: mathexpr.ErrInvalidArgument},
		{expr: "gcd(4)", is: mathexpr.ErrInvalidArgument},
		{expr: "2 +", msg: "failed to compile"},
		{expr: "what is 2+2", msg: "failed to compile"},
		{expr: "os.Exit(1)", msg: "failed to compile"},
		{expr: "len([1,2])", msg: "failed to compile"},
	}

	for _, tc := range tcases {
		t.Run(tc.expr, func(t *testing.T) {
			_, err := mathexpr.Evaluate(tc.expr)
			require.Error(t, err)
			if tc.is != nil {
				assert.True(t, errors.Is(err, tc.is), "expected %v, got: %v", tc.is, err)
			}
			if tc.msg != "" {
				assert.Contains(t, err.Error(), tc.msg)
			}
		})
	}
}

func TestCompile(t *testing.T) {
	p, err := mathexpr.Compile("1,000 × 2 =")
	require.NoError(t, err)
	assert.Equal(t, "1000 * 2", p.String())

	// programs can be run many times
	for range 3 {
		v, err := p.Run()
		require.NoError(t, err)
		assert.Equal(t, 2000, v)
	}
}

func TestNormalize(t *testing.T) {
	tcases := []struct {
		in  string
		exp string
	}{
		{"2+2", "2+2"},
		{"  2 × 3 = ", "2 * 3"},
		{"1,000,000 / 4", "1000000 / 4"},
		{"pow(2,100)", "pow(2,100)"},
		{"max(1,000, 2)", "max(1,000, 2)"},
		{"(1,500 + x1,000)", "(1500 + x1,000)"},
		{"12,34 + 1", "12,34 + 1"},
		{"1,000,", "1000,"},
		{"3.141,592", "3.141,592"},
		{"what?", "what"},
	}
	for _, tc := range tcases {
		assert.Equal(t, tc.exp, mathexpr.Normalize(tc.in), tc.in)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "42", mathexpr.Format(42))
	assert.Equal(t, "42", mathexpr.Format(42.0))
	assert.Equal(t, "-0.5", mathexpr.Format(-0.5))
	assert.Equal(t, "0", mathexpr.Format(1e-12))
	assert.Equal(t, "0", mathexpr.Format(-1e-12))
	assert.Equal(t, "0.5", mathexpr.Format(0.49999999999999994))
	assert.Equal(t, "3", mathexpr.Format(2.9999999999999996))
	assert.Equal(t, "1000000000000000", mathexpr.Format(1e15))
	assert.Equal(t, "1e+20", mathexpr.Format(1e20))
	assert.Equal(t, "7", mathexpr.Format(int64(7)))
	assert.Equal(t, "true", mathexpr.Format(true))
	assert.Equal(t, "", mathexpr.Format("x"))
}
