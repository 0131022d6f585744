package conversation

import (
	"context"

	"github.com/rs/zerolog"

	"parley-server/internal/domain/query"
	"parley-server/internal/utils/idgen"
	"parley-server/internal/utils/platformerrors"
)

// GetResult is the explicit tri-state outcome of a by-id lookup. A
// conversation row that exists but carries no chat payload yet is a distinct
// state, not a not-found and not a full hit.
type GetResult int

const (
	GetNotFound GetResult = iota
	GetFoundEmpty
	GetFound
)

// Service implements the conversation store semantics: id generation,
// ownership enforcement, create/update/get/list/delete, and listing cache
// invalidation after every mutation.
type Service struct {
	repo  Repository
	cache *ListingCache
	log   zerolog.Logger
}

// NewService builds a conversation service.
func NewService(repo Repository, cache *ListingCache, log zerolog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log.With().Str("component", "conversation-service").Logger(),
	}
}

// Create persists a new conversation for the owner. The id is generated
// here — never by the database — so it is opaque, case-insensitive
// alphanumeric, and unguessable. Generated ids never collide in practice, so
// create has no duplicate failure mode.
func (s *Service) Create(ctx context.Context, userID string, draft Draft) (*Conversation, error) {
	if userID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "no authenticated owner for conversation", nil, "")
	}

	publicID, err := idgen.GenerateCaseInsensitiveID(idgen.ConversationIDLength)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to generate conversation id")
	}

	title := draft.Title
	if title == "" {
		title = DeriveTitle(draft.Messages)
	}

	conv := &Conversation{
		PublicID: publicID,
		UserID:   userID,
		Title:    title,
		Payload: &ChatPayload{
			Version:   PayloadVersion,
			Provider:  draft.Provider,
			ModelName: draft.ModelName,
			Params:    draft.Params,
			Messages:  draft.Messages,
		},
	}

	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to create conversation")
	}

	s.cache.Invalidate(userID)
	s.log.Info().Str("conversation_id", conv.PublicID).Msg("conversation created")
	return conv, nil
}

// Update fully replaces the chat payload of an existing conversation. The
// title is never recomputed on update. Fails with NotFound when the id does
// not exist for this owner; a conversation is only mutable by its creator.
// Concurrent updates to the same id are last-write-wins.
func (s *Service) Update(ctx context.Context, publicID, userID string, draft Draft) (*Conversation, error) {
	conv, err := s.findOwned(ctx, publicID, userID)
	if err != nil {
		return nil, err
	}

	payload := &ChatPayload{
		Version:   PayloadVersion,
		Provider:  draft.Provider,
		ModelName: draft.ModelName,
		Params:    draft.Params,
		Messages:  draft.Messages,
	}
	if err := s.repo.SavePayload(ctx, conv.ID, payload); err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to update conversation")
	}
	conv.Payload = payload

	s.cache.Invalidate(userID)
	return conv, nil
}

// Get fetches a conversation by id for the owner, reporting the explicit
// tri-state: Found with a payload, FoundEmpty for an identity row that has
// no chat payload yet, NotFound otherwise.
func (s *Service) Get(ctx context.Context, publicID, userID string) (*Conversation, GetResult, error) {
	if userID == "" {
		return nil, GetNotFound, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "no authenticated owner for conversation", nil, "")
	}

	conv, err := s.repo.FindOne(ctx, Filter{PublicID: &publicID, UserID: &userID})
	if err != nil {
		if platformerrors.IsErrorType(err, platformerrors.ErrorTypeNotFound) {
			return nil, GetNotFound, nil
		}
		return nil, GetNotFound, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to fetch conversation")
	}

	if conv.Payload == nil {
		return conv, GetFoundEmpty, nil
	}
	return conv, GetFound, nil
}

// List returns one page of the owner's conversations, newest first, along
// with the owner's total conversation count so clients can render page
// controls. Pages are served from the listing cache when fresh.
func (s *Service) List(ctx context.Context, userID string, p query.Pagination) ([]*Conversation, int64, error) {
	if userID == "" {
		return nil, 0, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "no authenticated owner for conversation listing", nil, "")
	}

	p = p.Normalized()
	if cached, total, ok := s.cache.Get(userID, p); ok {
		return cached, total, nil
	}

	filter := Filter{UserID: &userID}
	conversations, err := s.repo.FindByFilter(ctx, filter, p)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to list conversations")
	}
	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to count conversations")
	}

	s.cache.Put(userID, p, conversations, total)
	return conversations, total, nil
}

// Delete removes a conversation owned by the caller.
func (s *Service) Delete(ctx context.Context, publicID, userID string) error {
	conv, err := s.findOwned(ctx, publicID, userID)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, conv.ID); err != nil {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "failed to delete conversation")
	}

	s.cache.Invalidate(userID)
	s.log.Info().Str("conversation_id", publicID).Msg("conversation deleted")
	return nil
}

func (s *Service) findOwned(ctx context.Context, publicID, userID string) (*Conversation, error) {
	if userID == "" {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerDomain, platformerrors.ErrorTypeUnauthorized, "no authenticated owner for conversation", nil, "")
	}

	conv, err := s.repo.FindOne(ctx, Filter{PublicID: &publicID, UserID: &userID})
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "conversation lookup failed")
	}
	return conv, nil
}
