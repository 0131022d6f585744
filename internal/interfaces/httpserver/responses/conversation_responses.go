package responses

import (
	"time"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/conversation"
)

// Conversation is the wire representation of a conversation. Summary
// responses carry only identity fields; detail responses add the chat
// payload.
type Conversation struct {
	ID        string                 `json:"id"`
	Title     string                 `json:"title"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
	Provider  string                 `json:"provider,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Params    []catalog.Param        `json:"params,omitempty"`
	Messages  []conversation.Message `json:"messages,omitempty"`
}

// NewConversationSummary maps identity fields only.
func NewConversationSummary(c *conversation.Conversation) Conversation {
	return Conversation{
		ID:        c.PublicID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

// NewConversationDetail includes the chat payload when one exists.
func NewConversationDetail(c *conversation.Conversation) Conversation {
	out := NewConversationSummary(c)
	if c.Payload != nil {
		out.Provider = c.Payload.Provider
		out.Name = c.Payload.ModelName
		out.Params = c.Payload.Params
		out.Messages = c.Payload.Messages
	}
	return out
}

// NewConversationList maps a listing page.
func NewConversationList(items []*conversation.Conversation) []Conversation {
	out := make([]Conversation, 0, len(items))
	for _, c := range items {
		out = append(out, NewConversationSummary(c))
	}
	return out
}
