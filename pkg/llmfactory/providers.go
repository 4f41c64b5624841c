package llmfactory

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/llms/anthropic"
	"github.com/effective-security/mathagent/pkg/llms/googleai"
	"github.com/effective-security/mathagent/pkg/llms/openai"
)

// CreateLLM returns the model of the provider,
// the first of preferredModels the provider has, or its default model.
func CreateLLM(cfg *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	model := cfg.FindModel(preferredModels...)

	switch apiType := strings.ToUpper(cfg.OpenAI.APIType); apiType {
	case "OPENAI", "OPEN_AI":
		return newOpenAI(cfg, llms.ProviderOpenAI, model)
	case string(llms.ProviderTyphoon), string(llms.ProviderOpenAICompatible):
		return newOpenAI(cfg, llms.ProviderType(apiType), model)
	case string(llms.ProviderAnthropic):
		return newAnthropic(cfg, model)
	case string(llms.ProviderGoogleAI):
		return newGoogleAI(cfg, model)
	default:
		return nil, errors.Errorf("unsupported provider type: %s", apiType)
	}
}

func newOpenAI(cfg *ProviderConfig, provider llms.ProviderType, model string) (llms.Model, error) {
	opts := []openai.Option{openai.WithProvider(provider)}
	if model != "" {
		opts = append(opts, openai.WithModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, openai.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.OpenAI.OrgID != "" {
		opts = append(opts, openai.WithOrganization(cfg.OpenAI.OrgID))
	}
	if cfg.Temperature != nil {
		opts = append(opts, openai.WithTemperature(*cfg.Temperature))
	}
	return openai.New(opts...)
}

func newAnthropic(cfg *ProviderConfig, model string) (llms.Model, error) {
	opts := []anthropic.Option{anthropic.WithModel(model)}
	if cfg.Token != "" {
		opts = append(opts, anthropic.WithToken(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.Temperature != nil {
		opts = append(opts, anthropic.WithTemperature(*cfg.Temperature))
	}
	return anthropic.New(opts...)
}

func newGoogleAI(cfg *ProviderConfig, model string) (llms.Model, error) {
	var opts []googleai.Option
	if model != "" {
		opts = append(opts, googleai.WithDefaultModel(model))
	}
	if cfg.Token != "" {
		opts = append(opts, googleai.WithAPIKey(cfg.Token))
	}
	if cfg.OpenAI.BaseURL != "" {
		opts = append(opts, googleai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	if cfg.Temperature != nil {
		opts = append(opts, googleai.WithDefaultTemperature(*cfg.Temperature))
	}
	return googleai.New(context.Background(), opts...)
}
