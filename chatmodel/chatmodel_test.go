package chatmodel_test

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/invopop/jsonschema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ChatContext(t *testing.T) {
	t.Parallel()

	cc := chatmodel.NewChatContext("cli", "chat1", "app")
	assert.Equal(t, "cli", cc.GetTenantID())
	assert.Equal(t, "chat1", cc.GetChatID())
	assert.Equal(t, "app", cc.AppData())

	gen := chatmodel.NewChatContext("", "", nil)
	assert.NotEmpty(t, gen.GetTenantID())
	assert.NotEmpty(t, gen.GetChatID())
	assert.NotEqual(t, cc.RunID(), gen.RunID())

	_, ok := cc.GetMetadata("questions")
	assert.False(t, ok)
	cc.SetMetadata("questions", 2)
	v, ok := cc.GetMetadata("questions")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func Test_ChatContext_InContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	assert.Nil(t, chatmodel.GetChatContext(ctx))

	_, _, err := chatmodel.GetTenantAndChatID(ctx)
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)
	_, err = chatmodel.SetChatID(ctx, "chat2")
	assert.ErrorIs(t, err, chatmodel.ErrInvalidChatContext)

	cc := chatmodel.NewChatContext("cli", "chat1", nil)
	ctx = chatmodel.WithChatContext(ctx, cc)

	ctx, err = chatmodel.SetChatID(ctx, "chat2")
	require.NoError(t, err)
	tenant, chat, err := chatmodel.GetTenantAndChatID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cli", tenant)
	assert.Equal(t, "chat2", chat)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	detached := chatmodel.NewFromContext(cancelled)
	require.NoError(t, detached.Err())
	assert.Equal(t, cc, chatmodel.GetChatContext(detached))
	assert.Nil(t, chatmodel.GetChatContext(chatmodel.NewFromContext(context.Background())))
}

func Test_String(t *testing.T) {
	t.Parallel()

	s := chatmodel.NewString("Answer: 4")
	assert.Equal(t, "Answer: 4", s.GetContent())
	assert.Equal(t, []byte("Answer: 4"), s.Bytes())

	require.NoError(t, s.ParseInput("2+2"))
	assert.Equal(t, "2+2", s.String())

	tcases := []struct {
		in  string
		exp string
	}{
		{in: `42`, exp: "42"},
		{in: `"42"`, exp: "42"},
		{in: ``, exp: ""},
	}
	for _, tc := range tcases {
		var v chatmodel.String
		require.NoError(t, v.Unmarshal([]byte(tc.in)))
		assert.Equal(t, tc.exp, v.String())
	}
}

func Test_InputRequest(t *testing.T) {
	t.Parallel()

	var r chatmodel.InputRequest
	require.NoError(t, r.ParseInput(`{"input":"what is 2+2?"}`))
	assert.Equal(t, "what is 2+2?", r.GetContent())
	assert.Equal(t, "sqrt(2)", chatmodel.NewInputRequest("sqrt(2)").Input)

	err := r.ParseInput(`what is 2+2?`)
	require.Error(t, err)
	assert.True(t, errors.Is(err, chatmodel.ErrFailedUnmarshalInput))

	s := &jsonschema.Schema{}
	r.JSONSchemaExtend(s)
	assert.Equal(t, "Input Request", s.Title)

	assert.Equal(t, "4", chatmodel.NewOutputResult("4").GetContent())
}

func Test_Stringify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "4", chatmodel.Stringify(chatmodel.NewOutputResult("4")))
	assert.Equal(t, "2^10", chatmodel.Stringify(chatmodel.NewString("2^10")))
	assert.Equal(t, "1024", chatmodel.Stringify("1024"))
	assert.Equal(t, `{"answer":"4"}`, chatmodel.Stringify(map[string]string{"answer": "4"}))
	assert.Equal(t, "12", chatmodel.Stringify(12))

	wrapped := errors.WithMessage(chatmodel.ErrFailedUnmarshalInput, "Calculator")
	assert.True(t, errors.Is(wrapped, chatmodel.ErrFailedUnmarshalInput))
	assert.False(t, errors.Is(wrapped, chatmodel.ErrInvalidChatContext))
}
