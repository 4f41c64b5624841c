package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/assistants"
	"github.com/effective-security/mathagent/assistants/mathassistant"
	"github.com/effective-security/mathagent/callbacks"
	"github.com/effective-security/mathagent/pkg/llmfactory"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llmutils"
	"github.com/effective-security/mathagent/store"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent", "cmd")

const (
	// DefaultTyphoonBaseURL is the endpoint of the Typhoon API.
	DefaultTyphoonBaseURL = "https://api.opentyphoon.ai/v1"
	// DefaultTyphoonModel is the model used when no config is given.
	DefaultTyphoonModel = "typhoon-v2.1-12b-instruct"
	// DefaultOpenAIModel is the model used with OPENAI_API_KEY when no config is given.
	DefaultOpenAIModel = "gpt-4o-mini"

	redisPrefix = "mathagent"
	cliTenantID = "cli"
)

// Globals are the flags of all commands.
type Globals struct {
	Config   string `help:"Path to the LLM factory config, by default the providers are configured from the environment." env:"MATHAGENT_CONFIG" type:"path"`
	LogLevel string `help:"Log level." enum:"trace,debug,info,notice,warning,error" default:"error"`
	JSON     bool   `help:"Print the answers as JSON."`
	Verbose  bool   `short:"v" help:"Print the assistant steps to stderr."`
	Stats    bool   `help:"Print the run trace and stats to stderr."`
	Redis    string `help:"Redis URL to keep the chat history, by default the history is in memory." env:"MATHAGENT_REDIS"`

	out    io.Writer `kong:"-"`
	errOut io.Writer `kong:"-"`
	in     io.Reader `kong:"-"`

	// llmFactory is set by tests
	llmFactory llmfactory.Factory `kong:"-"`
}

var logLevels = map[string]xlog.LogLevel{
	"trace":   xlog.TRACE,
	"debug":   xlog.DEBUG,
	"info":    xlog.INFO,
	"notice":  xlog.NOTICE,
	"warning": xlog.WARNING,
	"error":   xlog.ERROR,
}

func (g *Globals) setupLogger() {
	xlog.SetFormatter(xlog.NewStringFormatter(g.errOut))
	level, ok := logLevels[strings.ToLower(g.LogLevel)]
	if !ok {
		level = xlog.ERROR
	}
	xlog.SetGlobalLogLevel(level)
}

func (g *Globals) factory() (llmfactory.Factory, error) {
	if g.llmFactory != nil {
		return g.llmFactory, nil
	}
	if g.Config != "" {
		f, err := llmfactory.Load(g.Config)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to load config %s", g.Config)
		}
		return f, nil
	}
	cfg, err := DefaultConfig(os.Getenv)
	if err != nil {
		return nil, err
	}
	return llmfactory.New(cfg), nil
}

// DefaultConfig returns the factory config for the API keys found by getenv:
// TYPHOON_API_KEY and OPENAI_API_KEY.
// TYPHOON_BASE_URL and TYPHOON_MODEL override the Typhoon defaults.
func DefaultConfig(getenv func(string) string) (*llmfactory.Config, error) {
	temperature := 0.0
	cfg := &llmfactory.Config{}

	if token := getenv("TYPHOON_API_KEY"); token != "" {
		model := values.StringsCoalesce(getenv("TYPHOON_MODEL"), DefaultTyphoonModel)
		cfg.Providers = append(cfg.Providers, &llmfactory.ProviderConfig{
			Name:            "typhoon",
			Token:           token,
			DefaultModel:    model,
			AvailableModels: []string{model},
			Temperature:     &temperature,
			OpenAI: llmfactory.OpenAIConfig{
				APIType: string(llms.ProviderTyphoon),
				BaseURL: values.StringsCoalesce(getenv("TYPHOON_BASE_URL"), DefaultTyphoonBaseURL),
			},
		})
	}
	if token := getenv("OPENAI_API_KEY"); token != "" {
		cfg.Providers = append(cfg.Providers, &llmfactory.ProviderConfig{
			Name:            "openai",
			Token:           token,
			DefaultModel:    DefaultOpenAIModel,
			AvailableModels: []string{DefaultOpenAIModel},
			Temperature:     &temperature,
			OpenAI: llmfactory.OpenAIConfig{
				APIType: string(llms.ProviderOpenAI),
			},
		})
	}

	if len(cfg.Providers) == 0 {
		return nil, errors.New("no LLM provider: set TYPHOON_API_KEY or OPENAI_API_KEY, or use --config")
	}
	cfg.DefaultProvider = cfg.Providers[0].Name
	return cfg, nil
}

func (g *Globals) messageStore(ctx context.Context) (store.MessageStoreManager, error) {
	if g.Redis == "" {
		return store.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(g.Redis)
	if err != nil {
		return nil, errors.Wrap(err, "invalid Redis URL")
	}
	client := redis.NewClient(opts)
	if err = client.Ping(ctx).Err(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}
	return store.NewRedisStore(client, redisPrefix), nil
}

func (g *Globals) callback() assistants.Callback {
	cb := callbacks.NewFanout(callbacks.NewPackageLogger(logger))
	if g.Verbose {
		cb.Add(callbacks.NewPrinter(g.errOut, callbacks.ModeVerbose))
	}
	return cb
}

func (g *Globals) newAssistant(opts ...assistants.Option) (*mathassistant.MathAssistant, error) {
	f, err := g.factory()
	if err != nil {
		return nil, err
	}
	opts = append([]assistants.Option{assistants.WithCallback(g.callback())}, opts...)
	return mathassistant.NewFromFactory(f, mathassistant.WithAssistantOptions(opts...))
}

// ask runs one question, and prints the answer.
func (g *Globals) ask(ctx context.Context, ma *mathassistant.MathAssistant, id, question string, opts ...assistants.Option) error {
	var sp *callbacks.Scratchpad
	if g.Stats {
		mode := callbacks.ModeDefault
		if g.Verbose {
			mode = callbacks.ModeVerbose
		}
		sp = callbacks.NewScratchpad(mode)
		ctx = sp.StartRun(ctx)
		opts = append(opts, assistants.WithCallback(callbacks.NewFanout(ma.GetCallback(), sp)))
	}

	answer, err := ma.Ask(ctx, id, question, opts...)

	if sp != nil {
		_, trace := sp.EndRun(ctx)
		_, _ = g.errOut.Write(trace)
	}
	if err != nil {
		return err
	}
	g.printAnswer(id, answer)
	return nil
}

func (g *Globals) printAnswer(id string, answer *mathassistant.Answer) {
	if g.JSON {
		fmt.Fprintln(g.out, llmutils.ToJSON(map[string]any{
			"id":     id,
			"answer": answer.Answer,
			"reason": answer.Reason,
		}))
		return
	}
	fmt.Fprintf(g.out, "Answer: %s\nReason: %s\n", answer.Answer, answer.Reason)
}
