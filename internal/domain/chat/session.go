package chat

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"parley-server/internal/domain/catalog"
	"parley-server/internal/domain/conversation"
	"parley-server/internal/utils/idgen"
	"parley-server/internal/utils/platformerrors"
)

// State is the session state machine position. Transitions are driven by
// user submission, the provider's terminal event, and persist settlement.
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateAwaitingPersist
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateAwaitingPersist:
		return "awaiting_persist"
	}
	return "unknown"
}

// TurnSink receives the observable output of one turn: content deltas while
// the assistant reply streams, the completed message on the terminal event,
// and the persist outcome once the store call settles.
type TurnSink interface {
	OnDelta(delta string) error
	OnComplete(message conversation.Message) error
	OnPersisted(conversationID string, err error)
}

// Engine coordinates chat sessions: it owns the provider registry and the
// store client, and hands out Sessions that run the per-turn state machine.
type Engine struct {
	providers ProviderResolver
	store     Persister
	log       zerolog.Logger
}

// NewEngine builds a chat engine.
func NewEngine(providers ProviderResolver, store Persister, log zerolog.Logger) *Engine {
	return &Engine{
		providers: providers,
		store:     store,
		log:       log.With().Str("component", "chat-engine").Logger(),
	}
}

// StartSession opens a fresh session for one chat view. History seeds the
// in-memory sequence; when history is empty and the model declares a system
// prompt, the sequence starts with that system message. A non-empty
// conversationID binds the session to an existing conversation, so completed
// turns update it instead of creating a new one.
func (e *Engine) StartSession(owner string, model catalog.Model, params []catalog.Param, history []conversation.Message, conversationID string) *Session {
	messages := make([]conversation.Message, 0, len(history)+2)
	if len(history) == 0 && model.SystemPrompt != "" {
		messages = append(messages, conversation.Message{
			Role:    conversation.RoleSystem,
			Content: model.SystemPrompt,
		})
	}
	messages = append(messages, history...)

	return &Session{
		engine:         e,
		owner:          owner,
		model:          model,
		params:         params,
		messages:       messages,
		conversationID: conversationID,
		log:            e.log.With().Str("owner", owner).Str("model", model.Provider+"/"+model.Name).Logger(),
	}
}

// Session holds the authoritative in-memory message sequence for one active
// chat view and runs the turn state machine over it. A session is owned by a
// single caller; its methods are safe for the concurrent access that the
// async persist path introduces.
type Session struct {
	engine *Engine
	owner  string
	model  catalog.Model
	params []catalog.Param
	log    zerolog.Logger

	mu             sync.Mutex
	state          State
	ended          bool
	messages       []conversation.Message
	conversationID string
}

// State reports the current state machine position.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ConversationID returns the bound conversation id, empty until the first
// successful create.
func (s *Session) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

// Messages returns a snapshot of the live message sequence.
func (s *Session) Messages() []conversation.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]conversation.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// End discards the session's in-memory state. There is no join against an
// in-flight stream; an already-launched persist still settles on its own.
func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
	s.messages = nil
}

// Submit runs one turn: append the user message, stream the assistant reply
// through the sink, and on the terminal event fire the persist decision
// exactly once. It rejects when a turn is already streaming or a prior
// turn's persist has not settled yet. Submit returns once the stream is
// drained; the persist outcome arrives through sink.OnPersisted.
func (s *Session) Submit(ctx context.Context, content string, sink TurnSink) error {
	userID, err := idgen.GenerateCaseInsensitiveID(idgen.MessageIDLength)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}
	assistantID, err := idgen.GenerateCaseInsensitiveID(idgen.MessageIDLength)
	if err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate message id")
	}

	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "session has ended", nil, "")
	}
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeConflict, "turn rejected while session is "+state.String(), nil, "")
	}
	s.state = StateStreaming
	s.messages = append(s.messages,
		conversation.Message{ID: userID, Role: conversation.RoleUser, Content: content},
		conversation.Message{ID: assistantID, Role: conversation.RoleAssistant},
	)
	// Request history excludes the empty assistant placeholder.
	history := make([]conversation.Message, len(s.messages)-1)
	copy(history, s.messages[:len(s.messages)-1])
	s.mu.Unlock()

	req := CompletionRequest{Model: s.model, Params: s.params, Messages: history}

	completer, err := s.engine.providers.Completer(s.model.Provider)
	if err != nil {
		s.failTurn()
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "no completion client for provider "+s.model.Provider)
	}

	stream, err := completer.StreamCompletion(ctx, req)
	if err != nil {
		s.failTurn()
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "provider call failed", err, "")
	}
	defer stream.Close()

	for {
		event, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.failTurn()
			return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "provider stream failed", err, "")
		}

		if event.Terminal {
			s.finishTurn(ctx, event.Message, sink)
			continue
		}

		s.applyDelta(event.Delta)
		if err := sink.OnDelta(event.Delta); err != nil {
			s.failTurn()
			return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "turn sink rejected delta")
		}
	}

	// A stream that ends without a matching terminal event never completed
	// the turn.
	s.mu.Lock()
	interrupted := s.state == StateStreaming
	s.mu.Unlock()
	if interrupted {
		s.failTurn()
		return platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeExternal, "provider stream ended without completion", nil, "")
	}
	return nil
}

// applyDelta grows the trailing assistant message in place. Display-only
// mutation, not yet eligible for persistence.
func (s *Session) applyDelta(delta string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming || len(s.messages) == 0 {
		return
	}
	s.messages[len(s.messages)-1].Content += delta
}

// finishTurn handles the terminal event. A turn is durably complete exactly
// when the live sequence's tail agrees with the terminal message on role and
// content; only then does the persist decision fire, and only once. A
// duplicate terminal delivery finds the state already moved on and is a
// no-op.
func (s *Session) finishTurn(ctx context.Context, final conversation.Message, sink TurnSink) {
	s.mu.Lock()
	if s.state != StateStreaming || len(s.messages) == 0 {
		s.mu.Unlock()
		return
	}
	tail := s.messages[len(s.messages)-1]
	if tail.Role != final.Role || tail.Content != final.Content {
		s.log.Warn().Msg("terminal event disagrees with live sequence tail, holding persist")
		s.mu.Unlock()
		return
	}

	s.state = StateAwaitingPersist
	conversationID := s.conversationID
	snapshot := make([]conversation.Message, len(s.messages))
	copy(snapshot, s.messages)
	s.mu.Unlock()

	if err := sink.OnComplete(tail); err != nil {
		s.log.Warn().Err(err).Msg("turn sink rejected completion event")
	}

	draft := conversation.Draft{
		Provider:  s.model.Provider,
		ModelName: s.model.Name,
		Params:    s.params,
		Messages:  snapshot,
	}

	// The persist call must outlive the request that triggered it.
	persistCtx := context.WithoutCancel(ctx)
	go s.persist(persistCtx, conversationID, draft, sink)
}

// persist issues the create or update for one completed turn, then returns
// the session to idle. A store failure leaves the in-memory sequence intact;
// the next completed turn carries the full history again.
func (s *Session) persist(ctx context.Context, conversationID string, draft conversation.Draft, sink TurnSink) {
	var (
		persisted *conversation.Conversation
		err       error
	)
	if conversationID == "" {
		persisted, err = s.engine.store.Create(ctx, s.owner, draft)
	} else {
		persisted, err = s.engine.store.Update(ctx, conversationID, s.owner, draft)
	}

	s.mu.Lock()
	if err == nil && s.conversationID == "" {
		s.conversationID = persisted.PublicID
	}
	boundID := s.conversationID
	s.state = StateIdle
	s.mu.Unlock()

	if err != nil {
		s.log.Error().Err(err).Str("conversation_id", conversationID).Msg("persist failed, exchange remains in memory only")
		sink.OnPersisted(boundID, err)
		return
	}
	sink.OnPersisted(boundID, nil)
}

// failTurn marks the current assistant placeholder failed and returns the
// session to idle. The placeholder stays in the sequence so the failure is
// visible, but a failed turn is never persisted.
func (s *Session) failTurn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateStreaming {
		return
	}
	if n := len(s.messages); n > 0 && s.messages[n-1].Role == conversation.RoleAssistant {
		s.messages[n-1].Failed = true
	}
	s.state = StateIdle
}
