// Package assistants runs LLM assistants: the system prompt, the chat history
// and the user message are sent to the model, the tools it asks for are called
// and the final answer is parsed into the output type.
//
// NewReactAgent builds an assistant from a prompt template and a list of tools,
// and NewAssistantTool exposes an assistant as a tool of another assistant.
package assistants
