// Package llmutils has helpers for model replies and message lists.
package llmutils
