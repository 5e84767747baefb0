package service

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/vedran77/pulse/internal/domain"
	"github.com/vedran77/pulse/internal/encryption"
	"github.com/vedran77/pulse/internal/logging"
	"github.com/vedran77/pulse/internal/metrics"
	"github.com/vedran77/pulse/internal/repository/memory"
)

// fakeClock advances one second per reading so timestamps are distinct and
// predictable.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	store    *memory.Store
	metrics  *metrics.Metrics
	cipher   *encryption.Cipher
	settings *SettingsService
	messages *MessageService
	convs    *ConversationService
	clock    *fakeClock

	alice, bob, carol uuid.UUID
	channel           uuid.UUID
}

func newFixture(t *testing.T, encryptionRequired bool) *fixture {
	t.Helper()

	cipher, err := encryption.New("test-instance-secret")
	require.NoError(t, err)

	f := &fixture{
		store:   memory.NewStore(),
		metrics: metrics.NewNop(),
		cipher:  cipher,
		clock:   newFakeClock(),
	}
	log := logging.Discard()

	f.alice = f.addUser("Alice", "")
	f.bob = f.addUser("Bob", "")
	f.carol = f.addUser("Carol", "")
	f.channel = uuid.New()
	f.store.AddChannel(domain.Channel{ID: f.channel, Name: "general", CreatedAt: f.clock.Now()})

	f.settings = NewSettingsService(f.store.Settings(), encryptionRequired, log)
	f.settings.now = f.clock.Now
	f.messages = NewMessageService(f.store.Messages(), f.store.Channels(), f.store.Conversations(), cipher, f.settings, f.metrics, log)
	f.messages.now = f.clock.Now
	f.convs = NewConversationService(f.store.Conversations(), f.store.Users(), f.metrics, log)
	f.convs.now = f.clock.Now
	return f
}

func (f *fixture) addUser(first, last string) uuid.UUID {
	u := domain.UserSnapshot{ID: uuid.New(), Email: uuid.NewString() + "@example.com"}
	if first != "" {
		u.FirstName = &first
	}
	if last != "" {
		u.LastName = &last
	}
	f.store.AddUser(u)
	return u.ID
}

func ptr[T any](v T) *T { return &v }
