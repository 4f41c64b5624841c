// Command mathagent answers math questions with the math assistant.
//
//	mathagent ask --id 1223 "what is 2+2?"
//	mathagent eval "2^10"
//	mathagent chat < questions.txt
package main

import (
	"os"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
)

type cli struct {
	Globals

	Ask  AskCmd  `cmd:"" help:"Ask the math assistant a question."`
	Eval EvalCmd `cmd:"" help:"Evaluate an expression with the Calculator, without a model."`
	Chat ChatCmd `cmd:"" help:"Ask questions read from stdin, one per line, in one chat."`
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	var c cli
	c.out = os.Stdout
	c.errOut = os.Stderr
	c.in = os.Stdin

	ctx := kong.Parse(&c,
		kong.Name("mathagent"),
		kong.Description("Math assistant on the Typhoon API, with the Calculator tool."),
		kong.UsageOnError(),
	)
	ctx.FatalIfErrorf(ctx.Run(&c.Globals))
}
