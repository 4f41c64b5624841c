package store

import (
	"context"
	"encoding/json"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/mathagent/chatmodel"
	"github.com/effective-security/mathagent/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/redis/go-redis/v9"
)

// The keys namespace of the Redis store:
// - `<prefix>/chatstore/<tenantID>/messages/<chatID>` list of the chat messages
// - `<prefix>/chatstore/<tenantID>/info/<chatID>` chat info JSON
// - `<prefix>/chatstore/<tenantID>/chats` set of the tenant chat IDs

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore returns a store in Redis, the keys start with the prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) MessageStoreManager {
	return &redisStore{
		client: client,
		prefix: prefix,
	}
}

func (m *redisStore) messagesKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "messages", chatID)
}

func (m *redisStore) chatInfoKey(tenantID, chatID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "info", chatID)
}

func (m *redisStore) chatListKey(tenantID string) string {
	return path.Join(m.prefix, "chatstore", tenantID, "chats")
}

func (m *redisStore) Messages(ctx context.Context) []llms.Message {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "status", "invalid_chat_context", "err", err.Error())
		return nil
	}
	return m.messages(ctx, tenantID, chatID)
}

func (m *redisStore) messages(ctx context.Context, tenantID, chatID string) []llms.Message {
	data, err := m.client.LRange(ctx, m.messagesKey(tenantID, chatID), 0, -1).Result()
	if err != nil {
		logger.ContextKV(ctx, xlog.ERROR, "status", "failed_to_get_messages", "err", err.Error())
		return nil
	}

	messages := make([]llms.Message, 0, len(data))
	for _, item := range data {
		var msg llms.Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			logger.ContextKV(ctx, xlog.ERROR, "status", "failed_to_unmarshal_message", "err", err.Error())
			continue
		}
		messages = append(messages, msg)
	}
	// the list is trimmed by count on Add
	if len(data) >= MaxMessages {
		return trimToQuestion(messages)
	}
	return messages
}

func (m *redisStore) Add(ctx context.Context, msgs ...llms.Message) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}

	items := make([]any, 0, len(msgs))
	for _, msg := range msgs {
		data, err := json.Marshal(msg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal message")
		}
		items = append(items, data)
	}

	key := m.messagesKey(tenantID, chatID)
	pipe := m.client.TxPipeline()
	pipe.RPush(ctx, key, items...)
	pipe.LTrim(ctx, key, -MaxMessages, -1)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store message in Redis")
	}

	return m.UpdateChat(ctx, "", nil)
}

func (m *redisStore) Reset(ctx context.Context) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	pipe := m.client.TxPipeline()
	pipe.Del(ctx, m.messagesKey(tenantID, chatID))
	pipe.Del(ctx, m.chatInfoKey(tenantID, chatID))
	pipe.SRem(ctx, m.chatListKey(tenantID), chatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to reset chat in Redis")
	}
	return nil
}

func (m *redisStore) UpdateChat(ctx context.Context, title string, metadata map[string]any) error {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return err
	}

	chat, _, err := m.getChatInfo(ctx, tenantID, chatID)
	if err != nil {
		return err
	}
	if chat == nil {
		chat = newChatInfo(tenantID, chatID)
	}
	chat.update(title, metadata)
	return m.putChatInfo(ctx, chat)
}

func (m *redisStore) putChatInfo(ctx context.Context, chat *ChatInfo) error {
	data, err := json.Marshal(chat)
	if err != nil {
		return errors.Wrap(err, "failed to marshal chat info")
	}

	pipe := m.client.TxPipeline()
	pipe.Set(ctx, m.chatInfoKey(chat.TenantID, chat.ChatID), data, 0)
	pipe.SAdd(ctx, m.chatListKey(chat.TenantID), chat.ChatID)
	if _, err = pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "failed to store chat info in Redis")
	}
	return nil
}

func (m *redisStore) ListChats(ctx context.Context) ([]string, error) {
	tenantID, _, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}

	chatIDs, err := m.client.SMembers(ctx, m.chatListKey(tenantID)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, errors.Wrap(err, "failed to list chats from Redis")
	}
	return chatIDs, nil
}

func (m *redisStore) GetChatInfo(ctx context.Context, id string) (*ChatInfo, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = chatID
	}

	chat, _, err := m.getChatInfo(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if chat == nil {
		chat = newChatInfo(tenantID, id)
		if err = m.putChatInfo(ctx, chat); err != nil {
			return nil, errors.WithMessage(err, "failed to initialize new chat info")
		}
	}
	chat.Messages = m.messages(ctx, tenantID, id)
	return chat, nil
}

func (m *redisStore) GetChatTitle(ctx context.Context, id string) (string, error) {
	tenantID, chatID, err := chatmodel.GetTenantAndChatID(ctx)
	if err != nil {
		return "", err
	}
	if id == "" {
		id = chatID
	}

	chat, _, err := m.getChatInfo(ctx, tenantID, id)
	if err != nil || chat == nil {
		return "", err
	}
	return chat.Title, nil
}

// getChatInfo returns the chat info without messages, nil if it does not exist.
func (m *redisStore) getChatInfo(ctx context.Context, tenantID, chatID string) (*ChatInfo, bool, error) {
	data, err := m.client.Get(ctx, m.chatInfoKey(tenantID, chatID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "failed to get chat info from Redis")
	}

	chat := new(ChatInfo)
	if err = json.Unmarshal([]byte(data), chat); err != nil {
		return nil, false, errors.Wrap(err, "failed to unmarshal chat info")
	}
	return chat, true, nil
}

func (m *redisStore) ListTenants(ctx context.Context) ([]string, error) {
	root := path.Join(m.prefix, "chatstore")
	iter := m.client.Scan(ctx, 0, root+"/*/chats", 0).Iterator()

	var result []string
	// SCAN may return a key more than once
	seen := map[string]bool{}
	for iter.Next(ctx) {
		parts := strings.Split(strings.TrimPrefix(iter.Val(), root+"/"), "/")
		if len(parts) > 0 && parts[0] != "" && !seen[parts[0]] {
			seen[parts[0]] = true
			result = append(result, parts[0])
		}
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to scan tenants from Redis")
	}
	return result, nil
}

func (m *redisStore) Cleanup(ctx context.Context, tenantID string, olderThan time.Duration) (uint32, error) {
	listKey := m.chatListKey(tenantID)
	chatIDs, err := m.client.SMembers(ctx, listKey).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to list chats from Redis")
	}

	deleted := uint32(0)
	cutoff := time.Now().Add(-olderThan)
	for _, chatID := range chatIDs {
		chat, found, err := m.getChatInfo(ctx, tenantID, chatID)
		if err != nil {
			return deleted, err
		}
		if found && !chat.UpdatedAt.Before(cutoff) {
			continue
		}

		pipe := m.client.TxPipeline()
		pipe.Del(ctx, m.chatInfoKey(tenantID, chatID))
		pipe.Del(ctx, m.messagesKey(tenantID, chatID))
		pipe.SRem(ctx, listKey, chatID)
		if _, err = pipe.Exec(ctx); err != nil {
			return deleted, errors.Wrap(err, "failed to delete chat from Redis")
		}
		deleted++
	}

	logger.ContextKV(ctx, xlog.DEBUG,
		"status", "cleanup",
		"tenant", tenantID,
		"deleted", deleted,
	)
	return deleted, nil
}
