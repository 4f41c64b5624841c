package openai

import (
	"net/http"
	"os"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/mathagent/pkg/schema"
	"github.com/effective-security/x/values"
)

const (
	tokenEnvVarName        = "OPENAI_API_KEY"      //nolint:gosec
	modelEnvVarName        = "OPENAI_MODEL"        //nolint:gosec
	baseURLEnvVarName      = "OPENAI_BASE_URL"     //nolint:gosec
	organizationEnvVarName = "OPENAI_ORGANIZATION" //nolint:gosec

	typhoonTokenEnvVarName = "TYPHOON_API_KEY" //nolint:gosec
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultChatModel = "gpt-4o-mini"

	TyphoonBaseURL   = "https://api.opentyphoon.ai/v1"
	TyphoonChatModel = "typhoon-v2.1-12b-instruct"
)

type options struct {
	token        string
	model        string
	baseURL      string
	organization string
	provider     llms.ProviderType
	httpClient   *http.Client
	temperature  *float64
	maxRetries   int

	responseFormat *schema.ResponseFormat
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithToken passes the API token to the client. If not set, the token
// is read from the OPENAI_API_KEY environment variable,
// or TYPHOON_API_KEY for the Typhoon provider.
func WithToken(token string) Option {
	return func(opts *options) {
		opts.token = token
	}
}

// WithModel passes the default model to the client. If not set, the model
// is read from the OPENAI_MODEL environment variable.
func WithModel(model string) Option {
	return func(opts *options) {
		opts.model = model
	}
}

// WithBaseURL passes the base url to the client. If not set, the base url
// is read from the OPENAI_BASE_URL environment variable, then the provider default.
func WithBaseURL(baseURL string) Option {
	return func(opts *options) {
		opts.baseURL = baseURL
	}
}

// WithOrganization passes the OpenAI organization to the client. If not set, the
// organization is read from the OPENAI_ORGANIZATION.
func WithOrganization(organization string) Option {
	return func(opts *options) {
		opts.organization = organization
	}
}

// WithProvider sets the provider type. If not set, the default value
// is llms.ProviderOpenAI.
func WithProvider(provider llms.ProviderType) Option {
	return func(opts *options) {
		opts.provider = provider
	}
}

// WithTemperature sets the default sampling temperature,
// a call option overrides it.
func WithTemperature(temperature float64) Option {
	return func(opts *options) {
		opts.temperature = &temperature
	}
}

// WithHTTPClient allows setting a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithMaxRetries sets the number of retries on transient errors, 2 by default.
func WithMaxRetries(n int) Option {
	return func(opts *options) {
		opts.maxRetries = n
	}
}

// WithResponseFormat allows setting a custom response format
// for every request of the client.
func WithResponseFormat(responseFormat *schema.ResponseFormat) Option {
	return func(opts *options) {
		opts.responseFormat = responseFormat
	}
}

func newOptions(opts ...Option) *options {
	o := &options{
		provider:   llms.ProviderOpenAI,
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(o)
	}

	switch o.provider {
	case llms.ProviderTyphoon:
		o.token = values.StringsCoalesce(o.token, os.Getenv(typhoonTokenEnvVarName))
		o.model = values.StringsCoalesce(o.model, TyphoonChatModel)
		o.baseURL = values.StringsCoalesce(o.baseURL, TyphoonBaseURL)
	default:
		o.token = values.StringsCoalesce(o.token, os.Getenv(tokenEnvVarName))
		o.model = values.StringsCoalesce(o.model, os.Getenv(modelEnvVarName), DefaultChatModel)
		o.baseURL = values.StringsCoalesce(o.baseURL, os.Getenv(baseURLEnvVarName), DefaultBaseURL)
		o.organization = values.StringsCoalesce(o.organization, os.Getenv(organizationEnvVarName))
	}
	return o
}
