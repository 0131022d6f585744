package requests

import (
	"parley-server/internal/domain/conversation"
	"parley-server/internal/domain/query"
)

// CreateConversationRequest is the body of POST /api/conversation.
type CreateConversationRequest struct {
	Title    string        `json:"title"`
	Provider string        `json:"provider" binding:"required"`
	Name     string        `json:"name" binding:"required"`
	Params   []ChatParam   `json:"params"`
	Messages []ChatMessage `json:"messages"`
}

// ToDraft maps the request to a store draft.
func (r CreateConversationRequest) ToDraft() (conversation.Draft, error) {
	messages, err := ToDomainMessages(r.Messages)
	if err != nil {
		return conversation.Draft{}, err
	}
	return conversation.Draft{
		Title:     r.Title,
		Provider:  r.Provider,
		ModelName: r.Name,
		Params:    ToDomainParams(r.Params),
		Messages:  messages,
	}, nil
}

// UpdateConversationRequest is the body of POST /api/conversation/:id. It
// fully replaces the chat payload; the title is never carried on update.
type UpdateConversationRequest struct {
	Provider string        `json:"provider" binding:"required"`
	Name     string        `json:"name" binding:"required"`
	Params   []ChatParam   `json:"params"`
	Messages []ChatMessage `json:"messages"`
}

// ToDraft maps the request to a store draft.
func (r UpdateConversationRequest) ToDraft() (conversation.Draft, error) {
	messages, err := ToDomainMessages(r.Messages)
	if err != nil {
		return conversation.Draft{}, err
	}
	return conversation.Draft{
		Provider:  r.Provider,
		ModelName: r.Name,
		Params:    ToDomainParams(r.Params),
		Messages:  messages,
	}, nil
}

// ListConversationsQuery carries the pagination query of
// GET /api/conversation.
type ListConversationsQuery struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Pagination returns the clamped pagination values.
func (q ListConversationsQuery) Pagination() query.Pagination {
	return query.Pagination{Page: q.Page, Limit: q.Limit}.Normalized()
}
