package chatmodel

import (
	"context"
	"strconv"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xdb/pkg/flake"
)

// ErrInvalidChatContext is returned when the context has no ChatContext.
var ErrInvalidChatContext = errors.New("invalid chat context")

// ChatContext identifies the conversation a run belongs to:
// the tenant, the chat, and the run within the chat.
type ChatContext interface {
	GetTenantID() string
	GetChatID() string
	SetChatID(chatID string)
	// RunID is unique for each ChatContext
	RunID() string
	// AppData returns immutable app data
	AppData() any
	// GetMetadata retrieves metadata by key
	GetMetadata(key string) (value any, ok bool)
	// SetMetadata sets metadata by key
	SetMetadata(key string, value any)
}

type chatContext struct {
	lock     sync.RWMutex
	tenantID string
	chatID   string
	runID    string
	metadata sync.Map
	appData  any
}

// NewChatContext returns a ChatContext, empty IDs are generated.
func NewChatContext(tenantID, chatID string, appData any) ChatContext {
	return &chatContext{
		tenantID: values.StringsCoalesce(tenantID, NewChatID()),
		chatID:   values.StringsCoalesce(chatID, NewChatID()),
		runID:    NewChatID(),
		appData:  appData,
	}
}

func (c *chatContext) GetTenantID() string {
	return c.tenantID
}

func (c *chatContext) GetChatID() string {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.chatID
}

func (c *chatContext) SetChatID(chatID string) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.chatID = chatID
}

func (c *chatContext) RunID() string {
	return c.runID
}

func (c *chatContext) AppData() any {
	return c.appData
}

func (c *chatContext) GetMetadata(key string) (value any, ok bool) {
	return c.metadata.Load(key)
}

func (c *chatContext) SetMetadata(key string, value any) {
	c.metadata.Store(key, value)
}

type contextKey int

const (
	keyContext contextKey = iota
)

// WithChatContext returns a new context with ChatContext value
func WithChatContext(ctx context.Context, chatCtx ChatContext) context.Context {
	return context.WithValue(ctx, keyContext, chatCtx)
}

// GetChatContext retrieves the ChatContext from the context
func GetChatContext(ctx context.Context) ChatContext {
	if v, ok := ctx.Value(keyContext).(ChatContext); ok {
		return v
	}
	return nil
}

// NewFromContext returns a new background context carrying the ChatContext of ctx,
// it is not cancelled when ctx is.
func NewFromContext(ctx context.Context) context.Context {
	nctx := context.Background()
	if cc := GetChatContext(ctx); cc != nil {
		nctx = WithChatContext(nctx, cc)
	}
	return nctx
}

// SetChatID updates the chat ID of the ChatContext in ctx.
func SetChatID(ctx context.Context, chatID string) (context.Context, error) {
	cc := GetChatContext(ctx)
	if cc == nil {
		return ctx, ErrInvalidChatContext
	}
	cc.SetChatID(chatID)
	return ctx, nil
}

// GetTenantAndChatID returns the tenant and chat IDs from ctx.
func GetTenantAndChatID(ctx context.Context) (tenantID string, chatID string, err error) {
	cc := GetChatContext(ctx)
	if cc == nil {
		return "", "", ErrInvalidChatContext
	}
	return cc.GetTenantID(), cc.GetChatID(), nil
}

// NewChatID generates a new chat ID using the flake ID generator.
func NewChatID() string {
	return strconv.FormatUint(flake.DefaultIDGenerator.NextID(), 10)
}
