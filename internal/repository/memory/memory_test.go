package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/repository"
)

func seedUser(s *Store, first string) uuid.UUID {
	id := uuid.New()
	s.AddUser(domain.UserSnapshot{ID: id, Email: first + "@example.com", FirstName: &first})
	return id
}

func newDirect(a, b uuid.UUID) *domain.Conversation {
	id := uuid.New()
	now := time.Now().UTC()
	return &domain.Conversation{
		ID:        id,
		Type:      domain.ConversationTypeDirect,
		CreatedBy: a,
		CreatedAt: now,
		Participants: []domain.Participant{
			{ConversationID: id, UserID: a, JoinedAt: now},
			{ConversationID: id, UserID: b, JoinedAt: now},
		},
	}
}

func channelMessage(ch, author uuid.UUID, at time.Time) *domain.Message {
	return &domain.Message{
		ID:             uuid.New(),
		ChannelID:      &ch,
		AuthorID:       author,
		Content:        "hi",
		Status:         domain.MessageStatusApproved,
		EncryptionType: domain.EncryptionNone,
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func TestMessageRepo_ListOrderAndCursor(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	author := seedUser(s, "ana")
	ch := uuid.New()
	s.AddChannel(domain.Channel{ID: ch, Name: "general"})
	repo := s.Messages()

	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		// Two pairs of equal timestamps; seq breaks the tie.
		m := channelMessage(ch, author, at.Add(time.Duration(i/2)*time.Minute))
		require.NoError(t, repo.Create(ctx, m))
		ids = append(ids, m.ID)
	}

	all, err := repo.ListByScope(ctx, domain.ChannelScope(ch), nil, 10)
	require.NoError(t, err)
	require.Len(t, all, 4)
	for i, m := range all {
		assert.Equal(t, ids[i], m.ID)
	}

	page, err := repo.ListByScope(ctx, domain.ChannelScope(ch), &ids[3], 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[1], page[0].ID)
	assert.Equal(t, ids[2], page[1].ID)
}

func TestMessageRepo_RejectsBadScopeAndMissingReferences(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch, conv := uuid.New(), uuid.New()
	s.AddChannel(domain.Channel{ID: ch})

	both := channelMessage(ch, uuid.New(), time.Now())
	both.ConversationID = &conv
	assert.Error(t, s.Messages().Create(ctx, both))

	missing := channelMessage(uuid.New(), uuid.New(), time.Now())
	assert.ErrorIs(t, s.Messages().Create(ctx, missing), repository.ErrReferenceMissing)
}

func TestMessageRepo_DeleteWinsOverEdit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	ch := uuid.New()
	s.AddChannel(domain.Channel{ID: ch})
	author := uuid.New()
	m := channelMessage(ch, author, time.Now())
	require.NoError(t, s.Messages().Create(ctx, m))

	require.NoError(t, s.Messages().SoftDelete(ctx, m.ID, author, time.Now()))
	assert.ErrorIs(t, s.Messages().SoftDelete(ctx, m.ID, author, time.Now()), repository.ErrNotApplied)

	m.Content = "late edit"
	assert.ErrorIs(t, s.Messages().Update(ctx, m), repository.ErrNotApplied)

	stored, ok := s.StoredMessage(m.ID)
	require.True(t, ok)
	assert.Equal(t, "hi", stored.Content)
	assert.Equal(t, domain.MessageStatusDeleted, stored.Status)
}

func TestConversationRepo_PairKeyUnique(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, b := seedUser(s, "a"), seedUser(s, "b")
	repo := s.Conversations()

	require.NoError(t, repo.CreateDirect(ctx, newDirect(a, b), domain.PairKey(a, b)))
	err := repo.CreateDirect(ctx, newDirect(b, a), domain.PairKey(b, a))
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 1, s.ConversationCount())
}

func TestConversationRepo_LastMessageAtAndReactivate(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	a, b := seedUser(s, "a"), seedUser(s, "b")
	conv := newDirect(a, b)
	require.NoError(t, s.Conversations().CreateDirect(ctx, conv, domain.PairKey(a, b)))

	later := time.Now().UTC().Add(time.Hour)
	earlier := later.Add(-30 * time.Minute)
	for _, at := range []time.Time{later, earlier} {
		m := &domain.Message{
			ID: uuid.New(), ConversationID: &conv.ID, AuthorID: a, Content: "x",
			Status: domain.MessageStatusApproved, EncryptionType: domain.EncryptionNone,
			CreatedAt: at, UpdatedAt: at,
		}
		require.NoError(t, s.Messages().Create(ctx, m))
	}

	got, err := s.Conversations().GetByID(ctx, conv.ID)
	require.NoError(t, err)
	require.NotNil(t, got.LastMessageAt)
	assert.True(t, got.LastMessageAt.Equal(later))

	require.True(t, s.LeaveConversation(conv.ID, b, time.Now()))
	found, err := s.Conversations().FindDirectBetween(ctx, a, b)
	require.NoError(t, err)
	assert.Nil(t, found)

	require.NoError(t, s.Conversations().ReactivateParticipants(ctx, conv.ID))
	found, err = s.Conversations().FindDirectBetween(ctx, a, b)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, conv.ID, found.ID)
}

func TestSettingsRepo_UpsertAndDeactivate(t *testing.T) {
	ctx := context.Background()
	repo := NewStore().Settings()

	st := &domain.Setting{Key: "k", ScopeType: domain.ScopeGlobal, Value: domain.BoolValue(true)}
	require.NoError(t, repo.Upsert(ctx, st))
	st.Value = domain.StringValue("second")
	require.NoError(t, repo.Upsert(ctx, st))

	got, err := repo.Get(ctx, "k", domain.ScopeGlobal, uuid.Nil)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.StringValue("second"), got.Value)

	require.NoError(t, repo.Deactivate(ctx, "k", domain.ScopeGlobal, uuid.Nil))
	got, err = repo.Get(ctx, "k", domain.ScopeGlobal, uuid.Nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.ErrorIs(t, repo.Deactivate(ctx, "k", domain.ScopeGlobal, uuid.Nil), repository.ErrNotApplied)
}
