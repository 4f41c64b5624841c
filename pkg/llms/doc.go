// Package llms provides the provider neutral types for talking to chat models:
// messages and their parts, tool definitions and tool calls, call options and
// provider capabilities.
//
// Provider implementations live in the subpackages (openai, anthropic, googleai),
// each of them implements the Model interface.
package llms
