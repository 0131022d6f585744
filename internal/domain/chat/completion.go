package chat

import (
	"context"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/conversation"
)

// CompletionRequest carries everything a provider needs for one turn: the
// full ordered message history (system prompt first when present), the model,
// and the resolved parameter list.
type CompletionRequest struct {
	Model    catalog.Model
	Params   []catalog.Param
	Messages []conversation.Message
}

// StreamEvent is one element of a completion stream. Either Delta is set, or
// Terminal is true and Message carries the complete assistant reply. The
// terminal event is the authoritative turn-complete signal.
type StreamEvent struct {
	Delta    string
	Terminal bool
	Message  conversation.Message
}

// CompletionStream is a lazy, finite, non-restartable sequence of completion
// events. Recv returns io.EOF after the terminal event; any other error
// means the provider call failed mid-stream.
type CompletionStream interface {
	Recv() (StreamEvent, error)
	Close() error
}

// Completer opens a streaming completion against one provider backend.
type Completer interface {
	StreamCompletion(ctx context.Context, req CompletionRequest) (CompletionStream, error)
}

// ProviderResolver looks up the completion client for a provider id. Built
// once at startup and injected; there is no ambient client state.
type ProviderResolver interface {
	Completer(provider string) (Completer, error)
}

// Persister issues the create or update call that makes a completed turn
// durable. Satisfied by the conversation service.
type Persister interface {
	Create(ctx context.Context, userID string, draft conversation.Draft) (*conversation.Conversation, error)
	Update(ctx context.Context, publicID, userID string, draft conversation.Draft) (*conversation.Conversation, error)
}
