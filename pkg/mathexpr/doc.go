// Package mathexpr evaluates single-line math expressions, the kind an LLM
// produces when asked to translate a word problem into arithmetic.
//
// Expressions are compiled with github.com/expr-lang/expr, builtins are disabled
// and replaced by a fixed table of math functions and constants, so an
// expression can not reach anything outside this package. Integer arithmetic
// that overflows int64 continues in float64, and division by zero is an error.
//
//	v, err := mathexpr.Evaluate("37593**(1/5)")
//	fmt.Println(mathexpr.Format(v)) // 8.2228316142
package mathexpr
