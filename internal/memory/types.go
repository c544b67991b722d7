package memory

import (
	"context"
	"time"

	"github.com/ent0n29/fundora/internal/persona"
)

// MaxConversationEntries bounds the persisted conversation log. The oldest
// entries are evicted first.
const MaxConversationEntries = 50

// ConversationEntry is one recorded user/assistant exchange. Entries are
// appended and never edited.
type ConversationEntry struct {
	Timestamp   time.Time       `json:"timestamp"`
	UserInput   string          `json:"userInput"`
	BotResponse string          `json:"botResponse"`
	Persona     persona.Persona `json:"persona"`
}

// UserProfile is a free-form bag of facts learned about the user.
type UserProfile map[string]any

// Substrate is the string-keyed persistence layer underneath Store. A missing
// key reads as the empty string.
type Substrate interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}
