// Package tools defines the Tool interface for LLM agents, the parameter schema
// the model is given for each tool, and helpers to build tools from plain Go functions.
package tools
