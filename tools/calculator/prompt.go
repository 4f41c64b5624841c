package calculator

// Prompt asks the model to translate a question into a single line expression.
// The reply is cut at StopWord, before the model writes the evaluation output.
const Prompt = "Translate a math problem into a single line expression that can be evaluated by a calculator.\n" +
	"The calculator supports the operators + - * / % ^ and **, parentheses and comparisons,\n" +
	"the functions sqrt, cbrt, pow, exp, log, log10, log2, ln, sin, cos, tan, asin, acos, atan, atan2,\n" +
	"sinh, cosh, tanh, abs, floor, ceil, round, trunc, min, max, hypot, factorial, gcd and lcm,\n" +
	"and the constants pi, e and phi. Angles are in radians.\n" +
	"Use the output of the evaluation to answer the question.\n" +
	"\n" +
	"Question: <question with a math problem>\n" +
	"```text\n" +
	"<single line expression that solves the problem>\n" +
	"```\n" +
	"...evaluate(text)...\n" +
	"```output\n" +
	"<output of the evaluation>\n" +
	"```\n" +
	"Answer: <answer>\n" +
	"\n" +
	"Begin.\n" +
	"\n" +
	"Question: What is 37593 * 67?\n" +
	"```text\n" +
	"37593 * 67\n" +
	"```\n" +
	"...evaluate(\"37593 * 67\")...\n" +
	"```output\n" +
	"2518731\n" +
	"```\n" +
	"Answer: 2518731\n" +
	"\n" +
	"Question: 37593^(1/5)\n" +
	"```text\n" +
	"37593^(1/5)\n" +
	"```\n" +
	"...evaluate(\"37593^(1/5)\")...\n" +
	"```output\n" +
	"8.2228316142\n" +
	"```\n" +
	"Answer: 8.2228316142\n" +
	"\n" +
	"Question: {question}\n"
