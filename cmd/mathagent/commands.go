package main

import (
	"bufio"
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/tools/calculator"
	"github.com/effective-security/xlog"
)

// AskCmd asks one question.
type AskCmd struct {
	ID       string   `help:"ID of the request, rendered in the prompt." default:"1"`
	Question []string `arg:"" help:"The question."`
}

// Run executes the command
func (a *AskCmd) Run(g *Globals) error {
	g.setupLogger()

	question := strings.Join(a.Question, " ")
	ma, err := g.newAssistant()
	if err != nil {
		return err
	}
	return g.ask(context.Background(), ma, a.ID, question)
}

// EvalCmd evaluates an expression.
type EvalCmd struct {
	Expression []string `arg:"" help:"The expression, e.g. 37593 * 67 or sqrt(2)."`
}

// Run executes the command
func (a *EvalCmd) Run(g *Globals) error {
	g.setupLogger()

	// without a model only expressions are answered
	calc, err := calculator.New(nil)
	if err != nil {
		return err
	}
	out, err := calc.Run(context.Background(), &calculator.Input{Question: strings.Join(a.Expression, " ")})
	if err != nil {
		return err
	}
	if g.JSON {
		fmt.Fprintln(g.out, llmutils.ToJSON(map[string]any{
			"expression": out.Expression,
			"value":      out.Value(),
		}))
		return nil
	}
	fmt.Fprintln(g.out, out.Value())
	return nil
}

// ChatCmd asks the questions of stdin in one chat.
type ChatCmd struct {
	ChatID string `help:"ID of the chat to continue, a new chat is started by default."`
	Reset  bool   `help:"Clear the chat history before the first question."`
}

// Run executes the command
func (a *ChatCmd) Run(g *Globals) error {
	g.setupLogger()

	ctx := chatmodel.WithChatContext(context.Background(), chatmodel.NewChatContext(cliTenantID, a.ChatID, nil))

	st, err := g.messageStore(ctx)
	if err != nil {
		return err
	}
	if a.Reset {
		if err = st.Reset(ctx); err != nil {
			return err
		}
	}

	ma, err := g.newAssistant(assistants.WithStore(st))
	if err != nil {
		return err
	}

	chatCtx := chatmodel.GetChatContext(ctx)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "chat_started",
		"chat_id", chatCtx.GetChatID(),
		"history", len(st.Messages(ctx)),
	)

	scanner := bufio.NewScanner(g.in)
	count := 0
	for scanner.Scan() {
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}
		count++
		if err = g.ask(ctx, ma, strconv.Itoa(count), question); err != nil {
			// the chat goes on with the next question
			fmt.Fprintf(g.errOut, "Error: %s\n", err.Error())
			logger.ContextKV(ctx, xlog.ERROR,
				"status", "failed_to_answer",
				"question", question,
				"err", err.Error(),
			)
		}
	}
	if err = scanner.Err(); err != nil {
		return errors.Wrap(err, "failed to read questions")
	}

	if err = st.UpdateChat(ctx, "mathagent chat", map[string]any{"questions": count}); err != nil {
		return err
	}
	if !g.JSON {
		fmt.Fprintf(g.errOut, "Chat ID: %s\n", chatCtx.GetChatID())
	}
	return nil
}
