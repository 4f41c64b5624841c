// Package calculator provides the Calculator tool: an LLM translates a math question
// into an expression, and the expression is evaluated by pkg/mathexpr.
package calculator

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/encoding"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/pkg/mathexpr"
	"github.com/effective-security/mathagent/pkg/metricskey"
	"github.com/effective-security/mathagent/pkg/prompts"
	"github.com/effective-security/mathagent/tools"
	"github.com/effective-security/x/slices"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent/tools", "calculator")

const (
	// ToolName is the name of the tool given to the model.
	ToolName = "Calculator"
	// ToolDescription is the description of the tool given to the model.
	ToolDescription = "This tool is only for math questions, A tool for performing mathematical calculations using an LLM. It can solve equations"

	// StopWord ends the model reply before it makes up the evaluation output.
	StopWord = "```output"

	answerPrefix = "Answer:"

	sourceDirect = "direct"
	sourceLLM    = "llm"
)

var (
	// ErrUnknownFormat is returned when the model reply has neither an expression nor an answer.
	ErrUnknownFormat = errors.New("unknown format from LLM")
	// ErrNoModel is returned when the question is not an expression and there is no model to translate it.
	ErrNoModel = errors.New("the question is not an expression and no model is configured")
)

// Input is the input of the Calculator.
type Input struct {
	Question string `json:"question" yaml:"question" validate:"required" jsonschema:"title=Question,description=The math question or expression to calculate"`
}

// Output is the result of the Calculator.
type Output struct {
	Question   string `json:"question" yaml:"question"`
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
	// Answer is in the form "Answer: <value>"
	Answer string `json:"answer" yaml:"answer"`
}

// GetContent returns the answer for the tool response.
func (o Output) GetContent() string {
	return o.Answer
}

// Value returns the answer without the "Answer:" prefix.
func (o Output) Value() string {
	return strings.TrimSpace(strings.TrimPrefix(o.Answer, answerPrefix))
}

// Calculator is the Calculator tool.
type Calculator struct {
	*tools.FuncTool[Input, Output]

	llm      llms.Model
	prompt   prompts.PromptTemplate
	parser   chatmodel.OutputParser[chatmodel.String]
	callOpts []llms.CallOption
}

var _ tools.Tool[Input, Output] = (*Calculator)(nil)

// Option configures the Calculator.
type Option func(*Calculator)

// WithPrompt replaces the prompt used to translate questions,
// the template must have the `question` input variable.
func WithPrompt(prompt prompts.PromptTemplate) Option {
	return func(c *Calculator) {
		c.prompt = prompt
	}
}

// WithCallOptions adds options to the LLM call.
func WithCallOptions(opts ...llms.CallOption) Option {
	return func(c *Calculator) {
		c.callOpts = append(c.callOpts, opts...)
	}
}

// New returns the Calculator tool.
// The model may be nil, then only questions that are expressions can be answered.
func New(model llms.Model, opts ...Option) (*Calculator, error) {
	c := &Calculator{
		llm:    model,
		prompt: prompts.NewPromptTemplate(Prompt, []string{"question"}),
		parser: encoding.NewTextOutputParser(),
		callOpts: []llms.CallOption{
			llms.WithTemperature(0),
			llms.WithStopWords([]string{StopWord}),
		},
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.prompt.Validate(); err != nil {
		return nil, errors.WithMessage(err, "invalid calculator prompt")
	}

	ft, err := tools.FromFunction(ToolName, ToolDescription, c.calculate)
	if err != nil {
		return nil, err
	}
	c.FuncTool = ft
	return c, nil
}

func (c *Calculator) calculate(ctx context.Context, in *Input) (*Output, error) {
	question := strings.TrimSpace(in.Question)

	program, err := mathexpr.Compile(question)
	switch {
	case err == nil:
		return c.evaluate(ctx, question, program, sourceDirect)
	case errors.Is(err, mathexpr.ErrDivisionByZero):
		metricskey.StatsCalculatorErrors.IncrCounter(1, sourceDirect)
		return nil, err
	}

	if c.llm == nil {
		metricskey.StatsCalculatorErrors.IncrCounter(1, sourceDirect)
		return nil, errors.Wrapf(ErrNoModel, "%q", slices.StringUpto(question, 64))
	}

	text, err := c.translate(ctx, question)
	if err != nil {
		metricskey.StatsCalculatorErrors.IncrCounter(1, sourceLLM)
		return nil, err
	}

	out, err := c.processReply(ctx, question, text)
	if err != nil {
		metricskey.StatsCalculatorErrors.IncrCounter(1, sourceLLM)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "failed_to_process_reply",
			"question", slices.StringUpto(question, 64),
			"reply", slices.StringUpto(text, 256),
			"err", err.Error(),
		)
		return nil, err
	}
	return out, nil
}

// translate asks the model for the expression of the question.
func (c *Calculator) translate(ctx context.Context, question string) (string, error) {
	prompt, err := c.prompt.Format(map[string]any{"question": question})
	if err != nil {
		return "", errors.WithMessage(err, "failed to format calculator prompt")
	}

	resp, err := c.llm.GenerateContent(ctx,
		[]llms.Message{llms.MessageFromTextParts(llms.RoleHuman, prompt)},
		c.callOpts...,
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to translate the question")
	}
	if len(resp.Choices) == 0 {
		return "", errors.WithMessage(ErrUnknownFormat, "empty response")
	}
	reply, err := c.parser.Parse(resp.Choices[0].Content)
	if err != nil {
		return "", err
	}
	return reply.String(), nil
}

func (c *Calculator) processReply(ctx context.Context, question, text string) (*Output, error) {
	if expression, ok := llmutils.FencedBlock(text, "text"); ok {
		program, err := mathexpr.Compile(expression)
		if err != nil {
			return nil, err
		}
		return c.evaluate(ctx, question, program, sourceLLM)
	}

	if strings.HasPrefix(text, answerPrefix) {
		return &Output{Question: question, Answer: text}, nil
	}
	if idx := strings.LastIndex(text, answerPrefix); idx >= 0 {
		return &Output{
			Question: question,
			Answer:   answerPrefix + " " + strings.TrimSpace(text[idx+len(answerPrefix):]),
		}, nil
	}
	return nil, errors.Wrapf(ErrUnknownFormat, "%s", slices.StringUpto(text, 256))
}

func (c *Calculator) evaluate(ctx context.Context, question string, program *mathexpr.Program, source string) (*Output, error) {
	started := time.Now()
	v, err := program.Run()
	metricskey.PerfCalculatorEval.MeasureSince(started, source)
	if err != nil {
		if source == sourceDirect {
			metricskey.StatsCalculatorErrors.IncrCounter(1, source)
		}
		return nil, err
	}
	metricskey.StatsCalculatorEvaluations.IncrCounter(1, source)

	value := mathexpr.Format(v)
	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "evaluated",
		"source", source,
		"expression", program.String(),
		"value", value,
	)

	return &Output{
		Question:   question,
		Expression: program.String(),
		Answer:     answerPrefix + " " + value,
	}, nil
}
