package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/logging"
	"github.com/vedran77/pulse/internal/metrics"
	"github.com/vedran77/pulse/internal/repository"
)

func TestConversationService_ResolveIsSymmetric(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	first, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	require.NoError(t, err)
	assert.Equal(t, domain.ConversationTypeDirect, first.Type)
	assert.Equal(t, f.alice, first.CreatedBy)
	require.Len(t, first.Participants, 2)
	assert.True(t, first.HasActive(f.alice))
	assert.True(t, first.HasActive(f.bob))

	second, err := f.convs.ResolveDirect(ctx, f.bob, f.alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, f.store.ConversationCount())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConversationResolve.WithLabelValues(metrics.ResolveCreated)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConversationResolve.WithLabelValues(metrics.ResolveExisting)))
}

func TestConversationService_ResolveRejects(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	_, err := f.convs.ResolveDirect(ctx, f.alice, f.alice)
	assert.ErrorIs(t, err, ErrCannotResolveSelf)

	_, err = f.convs.ResolveDirect(ctx, f.alice, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
	assert.Equal(t, 0, f.store.ConversationCount())
}

// Two services over one store stand in for two server processes: their
// singleflight groups are independent, so only the pair_key constraint keeps
// the pair unique.
func TestConversationService_ConcurrentResolveYieldsOne(t *testing.T) {
	f := newFixture(t, false)
	other := NewConversationService(f.store.Conversations(), f.store.Users(), f.metrics, logging.Discard())
	services := []*ConversationService{f.convs, other}

	var (
		mu  sync.Mutex
		ids = map[uuid.UUID]int{}
	)
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < 32; i++ {
		svc := services[i%2]
		me, them := f.alice, f.bob
		if i%3 == 0 {
			me, them = them, me
		}
		g.Go(func() error {
			conv, err := svc.ResolveDirect(ctx, me, them)
			if err != nil {
				return err
			}
			mu.Lock()
			ids[conv.ID]++
			mu.Unlock()
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Len(t, ids, 1)
	assert.Equal(t, 1, f.store.ConversationCount())
}

func TestConversationService_ResolveReactivatesDepartedParticipant(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	conv, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	require.NoError(t, err)
	require.True(t, f.store.LeaveConversation(conv.ID, f.bob, f.clock.Now()))

	again, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	assert.True(t, again.HasActive(f.bob))
	assert.Equal(t, 1, f.store.ConversationCount())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ConversationResolve.WithLabelValues(metrics.ResolveRaceLost)))
}

func TestConversationService_ResolveReturnsCopies(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	require.NoError(t, err)
	a.Participants[0].UserID = uuid.Nil

	b, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	require.NoError(t, err)
	assert.True(t, b.HasActive(f.alice))
}

func TestConversationService_ListContactsOrdering(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	zed := f.addUser("Zed", "")
	amy := f.addUser("amy", "")
	nameless := f.addUser("", "")
	byLast := f.addUser("", "Dunn")

	send := func(with uuid.UUID) {
		conv, err := f.convs.ResolveDirect(ctx, f.alice, with)
		require.NoError(t, err)
		_, err = f.messages.Create(ctx, with, CreateMessageInput{ConversationID: &conv.ID, Content: "hey"})
		require.NoError(t, err)
	}
	send(zed)
	send(f.carol)

	// A conversation with no messages sorts with the idle contacts.
	idle, err := f.convs.ResolveDirect(ctx, f.alice, amy)
	require.NoError(t, err)

	contacts, err := f.convs.ListContacts(ctx, f.alice)
	require.NoError(t, err)

	var order []uuid.UUID
	for _, c := range contacts {
		order = append(order, c.User.ID)
	}
	// carol, zed by recency; then amy, Bob, Dunn, Unknown User by name.
	assert.Equal(t, []uuid.UUID{f.carol, zed, amy, f.bob, byLast, nameless}, order)

	require.NotNil(t, contacts[0].LastMessageAt)
	require.NotNil(t, contacts[2].Conversation)
	assert.Equal(t, idle.ID, contacts[2].Conversation.ID)
	assert.Nil(t, contacts[2].LastMessageAt)
	assert.Nil(t, contacts[3].Conversation)
	assert.Equal(t, "Unknown User", contacts[5].User.DisplayName())
}

func TestConversationService_ResolveHonoursCancellation(t *testing.T) {
	f := newFixture(t, false)
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	_, err := f.convs.ResolveDirect(ctx, f.alice, f.bob)
	assert.Error(t, err)
}

// gatedConversations holds the first FindDirectBetween until release is
// closed, so other callers can join the resolution in flight.
type gatedConversations struct {
	repository.ConversationRepository
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	finds   atomic.Int32
}

func (g *gatedConversations) FindDirectBetween(ctx context.Context, a, b uuid.UUID) (*domain.Conversation, error) {
	g.finds.Add(1)
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.entered)
		<-g.release
	}
	return g.ConversationRepository.FindDirectBetween(ctx, a, b)
}

func TestConversationService_LeaderCancelDoesNotFailFollowers(t *testing.T) {
	f := newFixture(t, false)
	gated := &gatedConversations{
		ConversationRepository: f.store.Conversations(),
		entered:                make(chan struct{}),
		release:                make(chan struct{}),
	}
	svc := NewConversationService(gated, f.store.Users(), f.metrics, logging.Discard())

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := svc.ResolveDirect(leaderCtx, f.alice, f.bob)
		leaderErr <- err
	}()
	<-gated.entered

	type result struct {
		conv *domain.Conversation
		err  error
	}
	follower := make(chan result, 1)
	go func() {
		conv, err := svc.ResolveDirect(context.Background(), f.bob, f.alice)
		follower <- result{conv, err}
	}()
	// Give the follower time to join the resolution in flight.
	time.Sleep(50 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(gated.release)
	res := <-follower
	require.NoError(t, res.err)
	assert.True(t, res.conv.HasActive(f.alice))
	assert.True(t, res.conv.HasActive(f.bob))
	assert.Equal(t, 1, f.store.ConversationCount())
	assert.Equal(t, int32(1), gated.finds.Load(), "follower shared the leader's resolution")
}
