package requests

import (
	"fmt"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/conversation"
)

// ChatMessage is one role-tagged message as sent by clients.
type ChatMessage struct {
	ID      string `json:"id"`
	Role    string `json:"role" binding:"required"`
	Content string `json:"content"`
}

// ChatParam is one persisted parameter override sent by clients.
type ChatParam struct {
	Name  string `json:"name" binding:"required"`
	Type  string `json:"type"`
	Value any    `json:"value"`
}

// ChatRequest is the body of POST /api/chat/:provider. The trailing message
// must be the new user submission; everything before it is session history.
type ChatRequest struct {
	ID       string        `json:"id"`
	Name     string        `json:"name" binding:"required"`
	Params   []ChatParam   `json:"params"`
	Messages []ChatMessage `json:"messages" binding:"required,min=1"`
}

// Split separates the request messages into history and the new user
// submission.
func (r ChatRequest) Split() (history []conversation.Message, content string, err error) {
	messages, err := ToDomainMessages(r.Messages)
	if err != nil {
		return nil, "", err
	}

	last := messages[len(messages)-1]
	if last.Role != conversation.RoleUser {
		return nil, "", fmt.Errorf("last message must be a user submission, got role %q", last.Role)
	}
	if last.Content == "" {
		return nil, "", fmt.Errorf("user submission is empty")
	}
	return messages[:len(messages)-1], last.Content, nil
}

// ToDomainMessages maps and validates client messages.
func ToDomainMessages(in []ChatMessage) ([]conversation.Message, error) {
	out := make([]conversation.Message, 0, len(in))
	for i, m := range in {
		role := conversation.MessageRole(m.Role)
		if !role.Valid() {
			return nil, fmt.Errorf("message %d has invalid role %q", i, m.Role)
		}
		if role == conversation.RoleSystem && i > 0 {
			return nil, fmt.Errorf("system message is only allowed in first position")
		}
		out = append(out, conversation.Message{
			ID:      m.ID,
			Role:    role,
			Content: m.Content,
		})
	}
	return out, nil
}

// ToDomainParams maps client parameter overrides.
func ToDomainParams(in []ChatParam) []catalog.Param {
	out := make([]catalog.Param, 0, len(in))
	for _, p := range in {
		out = append(out, catalog.Param{
			Name:  p.Name,
			Type:  catalog.VariableType(p.Type),
			Value: p.Value,
		})
	}
	return out
}
