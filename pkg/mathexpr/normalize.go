package mathexpr

import (
	"strings"
	"unicode"
)

var replacer = strings.NewReplacer(
	"×", "*",
	"·", "*",
	"÷", "/",
	"−", "-",
	"–", "-",
	"²", "**2",
	"³", "**3",
	"π", "pi",
)

// Normalize rewrites common notations into the expression syntax:
// unicode operators, thousands separators in numbers
// and a trailing "=" or "?" are handled.
func Normalize(expression string) string {
	s := strings.TrimSpace(expression)
	s = strings.Trim(s, "`")
	s = replacer.Replace(s)
	s = strings.TrimSpace(s)
	for {
		trimmed := strings.TrimSpace(strings.TrimRight(s, "=?"))
		if trimmed == s {
			break
		}
		s = trimmed
	}
	return stripThousands(s)
}

// stripThousands removes commas from numbers like 1,234,567,
// except inside function call arguments where a comma separates arguments.
func stripThousands(s string) string {
	if !strings.Contains(s, ",") {
		return s
	}

	var buf strings.Builder
	// calls tracks for each open parenthesis if it starts a function call
	var calls []bool
	inCall := func() bool {
		return len(calls) > 0 && calls[len(calls)-1]
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '(':
			calls = append(calls, i > 0 && isIdent(runes[i-1]))
			buf.WriteRune(r)
		case r == ')':
			if len(calls) > 0 {
				calls = calls[:len(calls)-1]
			}
			buf.WriteRune(r)
		case unicode.IsDigit(r) && (i == 0 || !isIdent(runes[i-1]) && runes[i-1] != '.'):
			end := numberEnd(runes, i)
			num := string(runes[i:end])
			if !inCall() && isGrouped(num) {
				num = strings.ReplaceAll(num, ",", "")
			}
			buf.WriteString(num)
			i = end - 1
		default:
			buf.WriteRune(r)
		}
	}
	return buf.String()
}

// numberEnd returns the end of the digits and commas run starting at i,
// a trailing comma is not part of the number.
func numberEnd(runes []rune, i int) int {
	j := i
	for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == ',') {
		j++
	}
	for j > i && runes[j-1] == ',' {
		j--
	}
	return j
}

// isGrouped returns true for 1-3 digits followed by groups of exactly 3 digits.
func isGrouped(num string) bool {
	parts := strings.Split(num, ",")
	if len(parts) < 2 || len(parts[0]) == 0 || len(parts[0]) > 3 {
		return false
	}
	for _, p := range parts[1:] {
		if len(p) != 3 {
			return false
		}
	}
	return true
}

func isIdent(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
