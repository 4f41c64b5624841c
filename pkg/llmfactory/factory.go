package llmfactory

import (
	"slices"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent", "llmfactory")

// NewLLM creates the models of the factory, tests replace it.
var NewLLM = CreateLLM

// defaultMapping is the key of ToolModels and AssistantModels
// used for names without their own entry.
const defaultMapping = "default"

// Factory creates the models of the assistants and tools.
type Factory interface {
	// DefaultModel returns the default model of the default provider.
	DefaultModel() (llms.Model, error)
	// ModelByType returns the model of the first provider with the API type,
	// e.g. TYPHOON or OPENAI.
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns the model of the first available name,
	// or the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// ToolModel returns the model configured for the tool.
	ToolModel(toolName string, preferredModels ...string) (llms.Model, error)
	// AssistantModel returns the model configured for the assistant.
	AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error)
}

// Load returns the factory of the config file.
func Load(location string) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg), nil
}

type factory struct {
	providers       []*ProviderConfig
	defaultProvider *ProviderConfig
	toolModels      map[string][]string
	assistantModels map[string][]string

	lock   sync.Mutex
	byType map[string]llms.Model
	byName map[string]llms.Model
}

// New returns the factory, models are created on first use and cached.
func New(cfg *Config) Factory {
	f := &factory{
		providers:       cfg.Providers,
		toolModels:      cloneMapping(cfg.ToolModels),
		assistantModels: cloneMapping(cfg.AssistantModels),
		byType:          map[string]llms.Model{},
		byName:          map[string]llms.Model{},
	}

	idx := slices.IndexFunc(cfg.Providers, func(p *ProviderConfig) bool {
		return p.Name == cfg.DefaultProvider
	})
	switch {
	case idx >= 0:
		f.defaultProvider = cfg.Providers[idx]
	case len(cfg.Providers) > 0:
		f.defaultProvider = cfg.Providers[0]
	}
	return f
}

func cloneMapping(m map[string][]string) map[string][]string {
	res := make(map[string][]string, len(m))
	for k, v := range m {
		res[k] = slices.Clone(v)
	}
	return res
}

func (f *factory) DefaultModel() (llms.Model, error) {
	if f.defaultProvider == nil {
		return nil, errors.New("no providers configured")
	}
	return NewLLM(f.defaultProvider, f.defaultProvider.DefaultModel)
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	if m, ok := f.byType[providerType]; ok {
		return m, nil
	}

	idx := slices.IndexFunc(f.providers, func(p *ProviderConfig) bool {
		return strings.EqualFold(p.OpenAI.APIType, providerType)
	})
	if idx < 0 {
		return nil, errors.Errorf("provider not found for type: %s", providerType)
	}

	m, err := f.create(f.providers[idx])
	if err != nil {
		return nil, err
	}
	f.byType[providerType] = m
	return m, nil
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	if m := f.findByName(modelNames); m != nil {
		return m, nil
	}
	return f.DefaultModel()
}

func (f *factory) findByName(modelNames []string) llms.Model {
	f.lock.Lock()
	defer f.lock.Unlock()

	for _, name := range modelNames {
		if m, ok := f.byName[name]; ok {
			return m
		}
		for _, p := range f.providers {
			if !slices.Contains(p.AvailableModels, name) {
				continue
			}
			m, err := f.create(p, modelNames...)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "create_llm",
					"provider", p.Name,
					"models", modelNames,
					"err", err.Error(),
				)
				continue
			}
			f.byName[name] = m
			return m
		}
	}
	return nil
}

func (f *factory) create(p *ProviderConfig, preferredModels ...string) (llms.Model, error) {
	m, err := NewLLM(p, preferredModels...)
	if err != nil {
		return nil, err
	}
	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"provider", p.Name,
		"type", p.OpenAI.APIType,
		"model", m.GetName(),
	)
	return m, nil
}

func (f *factory) ToolModel(toolName string, preferredModels ...string) (llms.Model, error) {
	return f.ModelByName(mapped(f.toolModels, toolName, preferredModels)...)
}

func (f *factory) AssistantModel(assistantName string, preferredModels ...string) (llms.Model, error) {
	return f.ModelByName(mapped(f.assistantModels, assistantName, preferredModels)...)
}

// mapped returns the models of name, of the default entry, or the preferred models.
func mapped(mapping map[string][]string, name string, preferred []string) []string {
	if models, ok := mapping[name]; ok {
		return models
	}
	if models, ok := mapping[defaultMapping]; ok {
		return models
	}
	return preferred
}
