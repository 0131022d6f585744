package conversation

import (
	"context"
	"time"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/query"
	"parley-server/internal/utils/stringutils"
)

// TitleMaxLength bounds derived conversation titles.
const TitleMaxLength = 50

// ===============================================
// Message Types
// ===============================================

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Valid reports whether the role is one of the supported chat roles.
func (r MessageRole) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message is one role-tagged entry in a conversation. Ordering is significant
// and insertion-order-preserving. Content may grow incrementally while an
// assistant reply streams.
type Message struct {
	ID      string      `json:"id,omitempty"`
	Role    MessageRole `json:"role"`
	Content string      `json:"content"`
	// Failed marks an assistant placeholder whose provider call errored.
	// Failed messages stay visible in the session but are never persisted
	// as part of a completed turn.
	Failed bool `json:"failed,omitempty"`
}

// ===============================================
// Conversation
// ===============================================

// Conversation is the durable record uniting identity and ownership with the
// chat payload. The public id is assigned by the service at creation, never
// by the database, and is immutable afterwards.
type Conversation struct {
	ID       uint   `json:"-"`
	PublicID string `json:"id"`
	UserID   string `json:"-"`
	Title    string `json:"title"`

	// Payload is nil for a conversation row that has no chat payload yet
	// (the FoundEmpty state).
	Payload *ChatPayload `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Draft carries the fields of one persist call: everything the store needs to
// create or fully replace a conversation's chat payload.
type Draft struct {
	Title     string
	Provider  string
	ModelName string
	Params    []catalog.Param
	Messages  []Message
}

// DeriveTitle picks a title for a new conversation: the first user message,
// else the first assistant message, else "Untitled", truncated to
// TitleMaxLength characters.
func DeriveTitle(messages []Message) string {
	for _, role := range []MessageRole{RoleUser, RoleAssistant} {
		for _, m := range messages {
			if m.Role == role && m.Content != "" {
				if title := stringutils.GenerateTitle(m.Content, TitleMaxLength); title != "" {
					return title
				}
			}
		}
	}
	return "Untitled"
}

// ===============================================
// Repository
// ===============================================

// Filter narrows repository lookups. Ownership checks are expressed through
// the filter so a conversation owned by someone else is indistinguishable
// from a missing one.
type Filter struct {
	PublicID *string
	UserID   *string
}

// Repository exposes CRUD operations for conversations and their chat
// payloads.
type Repository interface {
	Create(ctx context.Context, conversation *Conversation) error
	FindOne(ctx context.Context, filter Filter) (*Conversation, error)
	FindByFilter(ctx context.Context, filter Filter, pagination query.Pagination) ([]*Conversation, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	// SavePayload upserts the 1:1 chat payload row for the conversation.
	SavePayload(ctx context.Context, conversationID uint, payload *ChatPayload) error
	Delete(ctx context.Context, conversationID uint) error
}
