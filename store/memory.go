package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
)

type memoryChat struct {
	info     ChatInfo
	messages []llms.Message
}

type inMemory struct {
	mu sync.RWMutex
	// tenant ID -> chat ID -> chat
	tenants map[string]map[string]*memoryChat
}

// NewMemoryStore returns a store kept in memory.
func NewMemoryStore() MessageStoreManager {
	return &inMemory{
		tenants: make(map[string]map[string]*memoryChat),
	}
}

func (m *inMemory) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	chat := m.tenants[tenantID][chatID]
	if chat == nil {
		return nil
	}
	return slices.Clone(chat.messages)
}

func (m *inMemory) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chat(tenantID, chatID)
	chat.messages = lastMessages(append(chat.messages, msgs...))
	chat.info.update("", nil)
	return nil
}

func (m *inMemory) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenants[tenantID], chatID)
	return nil
}

func (m *inMemory) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.chat(tenantID, chatID).info.update(title, metadata)
	return nil
}

func (m *inMemory) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]string, 0, len(m.tenants[tenantID]))
	for id := range m.tenants[tenantID] {
		list = append(list, id)
	}
	slices.Sort(list)
	return list, nil
}

func (m *inMemory) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	chat := m.chat(tenantID, id)
	info := chat.info
	info.Metadata = make(map[string]any, len(chat.info.Metadata))
	for k, v := range chat.info.Metadata {
		info.Metadata[k] = v
	}
	info.Messages = slices.Clone(chat.messages)
	return &info, nil
}

func (m *inMemory) GetChatTitle(ctx context.Context, id string) (string, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = chatID
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if chat := m.tenants[tenantID][id]; chat != nil {
		return chat.info.Title, nil
	}
	return "", nil
}

func (m *inMemory) ListTenants(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]string, 0, len(m.tenants))
	for id, chats := range m.tenants {
		if len(chats) > 0 {
			list = append(list, id)
		}
	}
	slices.Sort(list)
	return list, nil
}

func (m *inMemory) Cleanup(_ context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	cutoff := time.Now().Add(-olderThan)

	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := uint32(0)
	for id, chat := range m.tenants[tenantID] {
		if chat.info.UpdatedAt.Before(cutoff) {
			delete(m.tenants[tenantID], id)
			deleted++
		}
	}
	return deleted, nil
}

// chat returns the chat, created when missing. The caller holds the write lock.
func (m *inMemory) chat(tenantID, chatID string) *memoryChat {
	chats := m.tenants[tenantID]
	if chats == nil {
		chats = make(map[string]*memoryChat)
		m.tenants[tenantID] = chats
	}
	chat := chats[chatID]
	if chat == nil {
		chat = &memoryChat{info: *newChatInfo(tenantID, chatID)}
		chats[chatID] = chat
	}
	return chat
}
