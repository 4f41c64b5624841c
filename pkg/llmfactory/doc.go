// Package llmfactory creates LLM models from configuration, supporting multiple providers (OpenAI, Typhoon, Anthropic, Gemini) and per-tool and per-assistant model selection.
package llmfactory
