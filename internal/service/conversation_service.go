package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/metrics"
	"github.com/vedran77/pulse/internal/repository"
	"golang.org/x/sync/singleflight"
)

// resolveTimeout bounds a shared resolution, which no longer follows any
// single caller's context.
const resolveTimeout = 10 * time.Second

type ConversationService struct {
	conversationRepo repository.ConversationRepository
	userRepo         repository.UserRepository
	metrics          *metrics.Metrics
	log              *slog.Logger
	now              func() time.Time
	resolveTimeout   time.Duration

	// inflight collapses concurrent resolutions of the same pair within
	// this process. Across processes the pair_key index decides.
	inflight singleflight.Group
}

func NewConversationService(
	conversationRepo repository.ConversationRepository,
	userRepo repository.UserRepository,
	m *metrics.Metrics,
	log *slog.Logger,
) *ConversationService {
	return &ConversationService{
		conversationRepo: conversationRepo,
		userRepo:         userRepo,
		metrics:          m,
		log:              log,
		now:              func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		resolveTimeout:   resolveTimeout,
	}
}

// ResolveDirect returns the direct conversation between the two users,
// creating it when none exists. Concurrent calls for the same pair, from
// either side, all return the same conversation.
func (s *ConversationService) ResolveDirect(ctx context.Context, currentUserID, counterpartID uuid.UUID) (*domain.Conversation, error) {
	if currentUserID == counterpartID {
		return nil, ErrCannotResolveSelf
	}

	counterpart, err := s.userRepo.GetByID(ctx, counterpartID)
	if err != nil {
		return nil, storageErr("conversationService.ResolveDirect.User", err)
	}
	if counterpart == nil {
		return nil, ErrUserNotFound
	}

	pairKey := domain.PairKey(currentUserID, counterpartID)
	// Callers share the result, so one caller going away must not fail the
	// others. Each caller still stops waiting when its own ctx ends.
	ch := s.inflight.DoChan(pairKey, func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.resolveTimeout)
		defer cancel()
		return s.resolve(shared, currentUserID, counterpartID, pairKey)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		// Shared callers must not alias one value.
		return cloneConversation(res.Val.(*domain.Conversation)), nil
	}
}

func (s *ConversationService) resolve(ctx context.Context, currentUserID, counterpartID uuid.UUID, pairKey string) (*domain.Conversation, error) {
	existing, err := s.conversationRepo.FindDirectBetween(ctx, currentUserID, counterpartID)
	if err != nil {
		return nil, storageErr("conversationService.ResolveDirect.Find", err)
	}
	if existing != nil {
		s.metrics.ConversationResolve.WithLabelValues(metrics.ResolveExisting).Inc()
		return existing, nil
	}

	now := s.now()
	id := uuid.New()
	conv := &domain.Conversation{
		ID:        id,
		Type:      domain.ConversationTypeDirect,
		CreatedBy: currentUserID,
		CreatedAt: now,
		Participants: []domain.Participant{
			{ConversationID: id, UserID: currentUserID, JoinedAt: now},
			{ConversationID: id, UserID: counterpartID, JoinedAt: now},
		},
	}

	err = s.conversationRepo.CreateDirect(ctx, conv, pairKey)
	switch {
	case err == nil:
		s.metrics.ConversationResolve.WithLabelValues(metrics.ResolveCreated).Inc()
		return conv, nil
	case errors.Is(err, repository.ErrReferenceMissing):
		return nil, ErrUserNotFound
	case !errors.Is(err, repository.ErrConflict):
		return nil, storageErr("conversationService.ResolveDirect.Create", err)
	}

	// The pair already has a conversation: another resolver won the insert,
	// or one side had left it.
	winner, err := s.conversationRepo.GetByPairKey(ctx, pairKey)
	if err != nil {
		return nil, storageErr("conversationService.ResolveDirect.Winner", err)
	}
	if winner == nil {
		return nil, storageErr("conversationService.ResolveDirect.Winner", errors.New("conflicting conversation vanished"))
	}

	if !winner.HasActive(currentUserID) || !winner.HasActive(counterpartID) {
		if err := s.conversationRepo.ReactivateParticipants(ctx, winner.ID); err != nil {
			return nil, storageErr("conversationService.ResolveDirect.Reactivate", err)
		}
		if winner, err = s.conversationRepo.GetByID(ctx, winner.ID); err != nil || winner == nil {
			return nil, storageErr("conversationService.ResolveDirect.Reload", err)
		}
	}

	s.log.DebugContext(ctx, "direct conversation insert lost to existing pair", "conversation_id", winner.ID)
	s.metrics.ConversationResolve.WithLabelValues(metrics.ResolveRaceLost).Inc()
	return winner, nil
}

// ListContacts returns every other user with their direct conversation, if
// any. Users with message activity come first, most recent first; the rest
// follow alphabetically by display name.
func (s *ConversationService) ListContacts(ctx context.Context, currentUserID uuid.UUID) ([]domain.Contact, error) {
	users, err := s.userRepo.ListExcept(ctx, currentUserID)
	if err != nil {
		return nil, storageErr("conversationService.ListContacts.Users", err)
	}
	convs, err := s.conversationRepo.ListDirectForUser(ctx, currentUserID)
	if err != nil {
		return nil, storageErr("conversationService.ListContacts.Conversations", err)
	}

	// convs arrive newest first, so the first hit per counterpart wins.
	byCounterpart := make(map[uuid.UUID]*domain.Conversation, len(convs))
	for i := range convs {
		c := &convs[i]
		for _, p := range c.Participants {
			if p.UserID == currentUserID || !p.Active() {
				continue
			}
			if _, seen := byCounterpart[p.UserID]; !seen {
				byCounterpart[p.UserID] = c
			}
		}
	}

	contacts := make([]domain.Contact, 0, len(users))
	for _, u := range users {
		contact := domain.Contact{User: u}
		if c, ok := byCounterpart[u.ID]; ok {
			contact.Conversation = c
			contact.LastMessageAt = c.LastMessageAt
		}
		contacts = append(contacts, contact)
	}

	sort.SliceStable(contacts, func(i, j int) bool {
		a, b := contacts[i], contacts[j]
		switch {
		case a.LastMessageAt != nil && b.LastMessageAt != nil:
			if !a.LastMessageAt.Equal(*b.LastMessageAt) {
				return a.LastMessageAt.After(*b.LastMessageAt)
			}
		case a.LastMessageAt != nil:
			return true
		case b.LastMessageAt != nil:
			return false
		}
		na, nb := strings.ToLower(a.User.DisplayName()), strings.ToLower(b.User.DisplayName())
		if na != nb {
			return na < nb
		}
		return a.User.ID.String() < b.User.ID.String()
	})

	return contacts, nil
}

func cloneConversation(c *domain.Conversation) *domain.Conversation {
	out := *c
	out.Participants = append([]domain.Participant(nil), c.Participants...)
	if c.LastMessageAt != nil {
		t := *c.LastMessageAt
		out.LastMessageAt = &t
	}
	return &out
}
