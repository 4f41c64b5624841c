// Package store keeps the chat history of the assistants,
// keyed by the tenant and chat IDs of chatmodel.ChatContext.
package store

import (
	"context"
	"time"

	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/mathagent", "store")

// MaxMessages is the number of the last messages kept per chat.
const MaxMessages = 50

// MessageStore is the chat history of the chat in the context.
type MessageStore interface {
	// Messages returns the history, oldest first.
	Messages(ctx context.Context) []llms.Message
	// Add appends the messages to the history.
	Add(ctx context.Context, msgs ...llms.Message) error
	// Reset deletes the chat.
	Reset(ctx context.Context) error
}

// MessageStoreManager manages the chats of the tenants.
type MessageStoreManager interface {
	MessageStore
	// UpdateChat creates or updates the chat in the context with the title and metadata.
	UpdateChat(ctx context.Context, title string, metadata map[string]any) error
	// ListChats returns the chat IDs of the tenant in the context.
	ListChats(ctx context.Context) ([]string, error)
	// GetChatInfo returns the chat with its messages, an empty id is the chat in the context.
	GetChatInfo(ctx context.Context, id string) (*ChatInfo, error)
	// GetChatTitle returns the title of the chat, or empty if the chat does not exist.
	GetChatTitle(ctx context.Context, id string) (string, error)
	// ListTenants returns the tenants with chats.
	ListTenants(ctx context.Context) ([]string, error)
	// Cleanup deletes the chats of the tenant not updated within olderThan,
	// and returns the number of deleted chats.
	Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error)
}

// ChatInfo describes a chat.
type ChatInfo struct {
	TenantID  string         `json:"tenant_id"`
	ChatID    string         `json:"chat_id"`
	Title     string         `json:"title"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	Messages []llms.Message `json:"-"`
}

const defaultChatTitle = "New Chat"

func newChatInfo(tenantID, chatID string) *ChatInfo {
	now := time.Now()
	return &ChatInfo{
		TenantID:  tenantID,
		ChatID:    chatID,
		Title:     defaultChatTitle,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata:  make(map[string]any),
	}
}

func (c *ChatInfo) update(title string, metadata map[string]any) {
	if title != "" {
		c.Title = title
	}
	if len(metadata) > 0 {
		if c.Metadata == nil {
			c.Metadata = make(map[string]any, len(metadata))
		}
		for k, v := range metadata {
			c.Metadata[k] = v
		}
	}
	c.UpdatedAt = time.Now()
}

// lastMessages returns at most MaxMessages of the history.
// A trimmed history starts at a human message, so a tool response
// is never kept without the AI message that called the tool.
func lastMessages(msgs []llms.Message) []llms.Message {
	if len(msgs) <= MaxMessages {
		return msgs
	}
	return trimToQuestion(msgs[len(msgs)-MaxMessages:])
}

// trimToQuestion drops the messages before the first human message.
// Without a human message only the leading tool calls and responses are dropped.
func trimToQuestion(msgs []llms.Message) []llms.Message {
	for i, msg := range msgs {
		if msg.Role == llms.RoleHuman {
			return msgs[i:]
		}
	}
	for len(msgs) > 0 && (msgs[0].Role == llms.RoleTool || len(msgs[0].ToolCalls()) > 0) {
		msgs = msgs[1:]
	}
	return msgs
}
