package calculator_test

import (
	"context"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/mocks/mockllms"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/mathexpr"
	"github.com/effective-security/mathagent/pkg/prompts"
	"github.com/effective-security/mathagent/tools/calculator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func reply(content string) *llms.ContentResponse {
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: content}},
	}
}

func TestNew(t *testing.T) {
	c, err := calculator.New(nil)
	require.NoError(t, err)
	assert.Equal(t, "Calculator", c.Name())
	assert.Equal(t, calculator.ToolDescription, c.Description())
	require.NotNil(t, c.Parameters())
	assert.Equal(t, []string{"question"}, c.Parameters().Required)

	_, err = calculator.New(nil, calculator.WithPrompt(prompts.NewPromptTemplate("{expression}", []string{"question"})))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid calculator prompt")
}

func TestCalculator_Direct(t *testing.T) {
	ctrl := gomock.NewController(t)
	// the model is not called for expressions
	mockLLM := mockllms.NewMockModel(ctrl)

	c, err := calculator.New(mockLLM)
	require.NoError(t, err)

	ctx := context.Background()
	tcases := []struct {
		input string
		exp   string
	}{
		{`{"question":"2+2"}`, "Answer: 4"},
		{"2^10", "Answer: 1024"},
		{`{"question":"1,000 × 3 ="}`, "Answer: 3000"},
		{`{"question":"sqrt(16) + 0.5"}`, "Answer: 4.5"},
	}
	for _, tc := range tcases {
		res, err := c.Call(ctx, tc.input)
		require.NoError(t, err, tc.input)
		assert.Equal(t, tc.exp, res, tc.input)
	}

	out, err := c.Run(ctx, &calculator.Input{Question: "7 * 6"})
	require.NoError(t, err)
	assert.Equal(t, "7 * 6", out.Expression)
	assert.Equal(t, "Answer: 42", out.GetContent())
	assert.Equal(t, "42", out.Value())

	_, err = c.Call(ctx, `{"question":"1/0"}`)
	assert.True(t, errors.Is(err, mathexpr.ErrDivisionByZero))

	res, err := c.Call(ctx, `{"question":"99999999999 * 99999999999"}`)
	require.NoError(t, err)
	assert.Equal(t, "Answer: 9.9999999998e+21", res)

	_, err = c.Call(ctx, `{"question":"sqrt(-1)"}`)
	assert.True(t, errors.Is(err, mathexpr.ErrNotFinite))

	_, err = c.Call(ctx, `{"question":""}`)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))
}

func TestCalculator_NoModel(t *testing.T) {
	c, err := calculator.New(nil)
	require.NoError(t, err)

	res, err := c.Call(context.Background(), "3*3")
	require.NoError(t, err)
	assert.Equal(t, "Answer: 9", res)

	_, err = c.Call(context.Background(), "what is two plus two?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, calculator.ErrNoModel))
}

func TestCalculator_LLM(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mockllms.NewMockModel(ctrl)

	c, err := calculator.New(mockLLM, calculator.WithCallOptions(llms.WithMaxTokens(128)))
	require.NoError(t, err)

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, msgs []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
			require.Len(t, msgs, 1)
			assert.Equal(t, llms.RoleHuman, msgs[0].Role)
			prompt := msgs[0].GetText()
			assert.True(t, strings.HasSuffix(prompt, "Question: what is two times three?\n"))
			assert.Contains(t, prompt, "Answer: 2518731")

			opts := llms.NewCallOptions(options...)
			require.NotNil(t, opts.Temperature)
			assert.Equal(t, 0.0, *opts.Temperature)
			assert.Equal(t, []string{"```output"}, opts.StopWords)
			assert.Equal(t, 128, opts.MaxTokens)

			return reply("```text\n2 * 3\n```\n...evaluate(\"2 * 3\")...\n"), nil
		})

	out, err := c.Run(context.Background(), &calculator.Input{Question: "what is two times three?"})
	require.NoError(t, err)
	assert.Equal(t, "2 * 3", out.Expression)
	assert.Equal(t, "Answer: 6", out.Answer)
	assert.Equal(t, "what is two times three?", out.Question)
}

func TestCalculator_Replies(t *testing.T) {
	tcases := []struct {
		name  string
		reply string
		exp   string
		err   error
		msg   string
	}{
		{name: "unclosed block", reply: "```text\n37593^(1/5)\n", exp: "Answer: 8.2228316142"},
		{name: "answer", reply: "Answer: 42", exp: "Answer: 42"},
		{name: "answer after text", reply: "The number of sides of a hexagon.\nAnswer:  6 ", exp: "Answer: 6"},
		{name: "unknown", reply: "I can not help with that", err: calculator.ErrUnknownFormat, msg: "I can not help with that"},
		{name: "empty", reply: "", err: calculator.ErrUnknownFormat},
		{name: "bad expression", reply: "```text\nx + 1\n```", msg: "failed to compile"},
		{name: "division by zero", reply: "```text\n10 / (5 - 5)\n```", err: mathexpr.ErrDivisionByZero},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockLLM := mockllms.NewMockModel(ctrl)
			mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(reply(tc.reply), nil)

			c, err := calculator.New(mockLLM)
			require.NoError(t, err)

			res, err := c.Call(context.Background(), `{"question":"a math question"}`)
			if tc.err != nil || tc.msg != "" {
				require.Error(t, err)
				if tc.err != nil {
					assert.True(t, errors.Is(err, tc.err), "unexpected error: %v", err)
				}
				if tc.msg != "" {
					assert.Contains(t, err.Error(), tc.msg)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.exp, res)
		})
	}
}

func TestCalculator_ModelErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockLLM := mockllms.NewMockModel(ctrl)

	c, err := calculator.New(mockLLM)
	require.NoError(t, err)

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, errors.New("connection refused"))
	_, err = c.Call(context.Background(), "how many legs do three spiders have?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to translate the question: connection refused")

	mockLLM.EXPECT().GenerateContent(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(&llms.ContentResponse{}, nil)
	_, err = c.Call(context.Background(), "how many legs do three spiders have?")
	assert.True(t, errors.Is(err, calculator.ErrUnknownFormat))
}
