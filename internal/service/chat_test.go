package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"securechat/internal/domain"
	"securechat/internal/feed"
	"securechat/internal/security"
	"securechat/internal/service"
	"securechat/internal/store/sqlite"
)

type chatFixture struct {
	auth     *service.AuthService
	contacts *service.ContactService
	messages *service.MessageService
	groups   *service.GroupService
	broker   *feed.MemoryBroker
	users    *sqlite.UserRepo
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db, err := sqlite.Open(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() { db.Close() })

	enc, err := security.NewEncryptor([]byte("test-encryption-key"), nil)
	require.NoError(t, err)
	broker := feed.NewMemoryBroker()
	t.Cleanup(func() { broker.Close() })

	users := sqlite.NewUserRepo(db)
	return &chatFixture{
		auth:     newAuthService(t, users),
		contacts: service.NewContactService(users, sqlite.NewContactRepo(db)),
		messages: service.NewMessageService(users, sqlite.NewMessageRepo(db), enc, broker),
		groups: service.NewGroupService(users, sqlite.NewGroupRepo(db),
			sqlite.NewGroupMessageRepo(db), enc, broker),
		broker: broker,
		users:  users,
	}
}

func (f *chatFixture) register(t *testing.T, name, password string) *domain.User {
	t.Helper()
	u, err := f.auth.Register(context.Background(), service.RegisterInput{
		Username: name,
		Email:    name + "@x.com",
		Password: password,
	})
	require.NoError(t, err)
	return u
}

func TestDirectMessagingScenario(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")

	_, err := f.contacts.AddEdge(ctx, alice.ID, "bob")
	require.NoError(t, err)

	rec, err := f.messages.Send(ctx, alice.ID, bob.ID, "hi")
	require.NoError(t, err)
	assert.Equal(t, "hi", rec.Content)
	assert.Equal(t, "alice", rec.SenderUsername)
	assert.Equal(t, "bob", rec.ReceiverUsername)
	_, err = time.Parse(time.RFC3339Nano, rec.Timestamp)
	assert.NoError(t, err)

	history, err := f.messages.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
	assert.Equal(t, "alice", history[0].SenderUsername)
}

func TestRegisterDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	f.register(t, "alice", "secret1")

	_, err := f.auth.Register(ctx, service.RegisterInput{Username: "alice", Email: "other@x.com", Password: "p"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)

	_, err = f.auth.Register(ctx, service.RegisterInput{Username: "other", Email: "alice@x.com", Password: "p"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestRegisterEmailIgnoresCase(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	bob, err := f.auth.Register(ctx, service.RegisterInput{Username: "bob", Email: " Bob@X.com ", Password: "p"})
	require.NoError(t, err)
	assert.Equal(t, "bob@x.com", bob.Email)

	_, err = f.auth.Register(ctx, service.RegisterInput{Username: "bobby", Email: "bob@x.com", Password: "p"})
	assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
}

func TestRegisterRejectsOversizedFields(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	tests := []struct {
		name string
		in   service.RegisterInput
	}{
		{"Password", service.RegisterInput{Username: "long", Email: "long@x.com", Password: strings.Repeat("p", 100)}},
		{"Username", service.RegisterInput{Username: strings.Repeat("u", 51), Email: "u@x.com", Password: "p"}},
		{"Email", service.RegisterInput{Username: "mail", Email: strings.Repeat("e", 95) + "@x.com", Password: "p"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.auth.Register(ctx, tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	t.Run("LimitsAreInclusive", func(t *testing.T) {
		_, err := f.auth.Register(ctx, service.RegisterInput{
			Username: strings.Repeat("u", 50),
			Email:    "edge@x.com",
			Password: strings.Repeat("p", 72),
		})
		assert.NoError(t, err)
	})

	_, err := f.auth.Authenticate(ctx, service.LoginInput{Username: "long", Password: strings.Repeat("p", 100)})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestConcurrentRegisterYieldsOneUser(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.auth.Register(ctx, service.RegisterInput{
				Username: "racer",
				Email:    fmt.Sprintf("racer%d@x.com", i),
				Password: "p",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateIdentity)
	}
	assert.Equal(t, 1, ok)
}

func TestAuthenticateRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")

	user, err := f.auth.Authenticate(ctx, service.LoginInput{
		Username: "alice",
		Password: "secret1",
		Client:   domain.ClientMeta{Address: "203.0.113.7"},
	})
	require.NoError(t, err)
	assert.Equal(t, alice.ID, user.ID)

	stored, err := f.users.GetByID(ctx, alice.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	require.NotNil(t, stored.AddressHash)
	assert.NotEqual(t, "203.0.113.7", *stored.AddressHash)

	_, err = f.auth.Authenticate(ctx, service.LoginInput{Username: "alice", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	_, err = f.auth.Authenticate(ctx, service.LoginInput{Username: "nobody", Password: "secret1"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestContactGraph(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")

	edges, err := f.contacts.ListEdges(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, edges)
	assert.Empty(t, edges)

	_, err = f.contacts.AddEdge(ctx, alice.ID, "bob")
	require.NoError(t, err)

	_, err = f.contacts.AddEdge(ctx, alice.ID, "bob")
	assert.ErrorIs(t, err, domain.ErrDuplicateEdge)
	_, err = f.contacts.AddEdge(ctx, alice.ID, "carol")
	assert.ErrorIs(t, err, domain.ErrTargetNotFound)
	_, err = f.contacts.AddEdge(ctx, alice.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	edges, err = f.contacts.ListEdges(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []service.ContactRecord{{Username: "bob", UserID: bob.ID}}, edges)

	// no reciprocal edge
	edges, err = f.contacts.ListEdges(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, edges)

	require.NoError(t, f.contacts.RemoveEdge(ctx, alice.ID, bob.ID))
	assert.ErrorIs(t, f.contacts.RemoveEdge(ctx, alice.ID, bob.ID), domain.ErrEdgeNotFound)
}

func TestHistoryIsSymmetricAndOrdered(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")
	carol := f.register(t, "carol", "secret3")

	for i := 0; i < 6; i++ {
		from, to := alice, bob
		if i%2 == 1 {
			from, to = bob, alice
		}
		_, err := f.messages.Send(ctx, from.ID, to.ID, fmt.Sprintf("m%d", i))
		require.NoError(t, err)
	}
	_, err := f.messages.Send(ctx, alice.ID, carol.ID, "other")
	require.NoError(t, err)

	ab, err := f.messages.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	ba, err := f.messages.History(ctx, bob.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, ab, ba)
	require.Len(t, ab, 6)

	for i, rec := range ab {
		assert.Equal(t, fmt.Sprintf("m%d", i), rec.Content)
		if i > 0 {
			prev, _ := time.Parse(time.RFC3339Nano, ab[i-1].Timestamp)
			cur, _ := time.Parse(time.RFC3339Nano, rec.Timestamp)
			assert.False(t, cur.Before(prev))
		}
	}

	empty, err := f.messages.History(ctx, bob.ID, carol.ID)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSendValidation(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")

	_, err := f.messages.Send(ctx, alice.ID, "missing", "hi")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	_, err = f.messages.Send(ctx, "missing", alice.ID, "hi")
	assert.ErrorIs(t, err, domain.ErrParticipantNotFound)
	_, err = f.messages.Send(ctx, alice.ID, alice.ID, "  ")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGroupScenario(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")
	carol := f.register(t, "carol", "secret3")

	team, err := f.groups.CreateGroup(ctx, service.GroupCreateInput{Name: "team"})
	require.NoError(t, err)

	require.NoError(t, f.groups.AddMembers(ctx, team.ID, []string{alice.ID, bob.ID}))

	rec, err := f.groups.SendGroupMessage(ctx, team.ID, alice.ID, "hello team")
	require.NoError(t, err)
	assert.Equal(t, "alice", rec.SenderUsername)
	assert.Equal(t, "hello team", rec.Content)

	groups, err := f.groups.ListGroupsForUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.Contains(t, groups, service.GroupRecord{GroupID: team.ID, Name: "team"})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := f.groups.CreateGroup(ctx, service.GroupCreateInput{Name: "team"})
		assert.ErrorIs(t, err, domain.ErrDuplicateName)
	})

	t.Run("NameTooLong", func(t *testing.T) {
		_, err := f.groups.CreateGroup(ctx, service.GroupCreateInput{Name: strings.Repeat("g", 101)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("NonMemberCannotSend", func(t *testing.T) {
		_, err := f.groups.SendGroupMessage(ctx, team.ID, carol.ID, "let me in")
		assert.ErrorIs(t, err, domain.ErrNotGroupMember)
		_, err = f.groups.GroupHistory(ctx, team.ID, carol.ID)
		assert.ErrorIs(t, err, domain.ErrNotGroupMember)
	})

	t.Run("UnknownGroup", func(t *testing.T) {
		_, err := f.groups.SendGroupMessage(ctx, 9999, alice.ID, "x")
		assert.ErrorIs(t, err, domain.ErrGroupNotFound)
		assert.ErrorIs(t, f.groups.AddMembers(ctx, 9999, []string{alice.ID}), domain.ErrGroupNotFound)
	})

	t.Run("AddMembersDeduplicates", func(t *testing.T) {
		require.NoError(t, f.groups.AddMembers(ctx, team.ID, []string{carol.ID, carol.ID, alice.ID}))
		members, err := f.groups.ListMembers(ctx, team.ID)
		require.NoError(t, err)
		assert.Len(t, members, 3)
	})

	t.Run("AddMembersIsAllOrNothing", func(t *testing.T) {
		solo, err := f.groups.CreateGroup(ctx, service.GroupCreateInput{Name: "solo", CreatorID: alice.ID})
		require.NoError(t, err)

		err = f.groups.AddMembers(ctx, solo.ID, []string{bob.ID, "missing"})
		assert.ErrorIs(t, err, domain.ErrParticipantNotFound)

		members, err := f.groups.ListMembers(ctx, solo.ID)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, alice.ID, members[0].UserID)
	})

	t.Run("History", func(t *testing.T) {
		history, err := f.groups.GroupHistory(ctx, team.ID, bob.ID)
		require.NoError(t, err)
		require.NotEmpty(t, history)
		assert.Equal(t, "hello team", history[0].Content)
		assert.Equal(t, "alice", history[0].SenderUsername)
	})
}

func TestSendPublishesToFeed(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")

	sub, err := f.broker.Subscribe(ctx, feed.DirectTopic(bob.ID, alice.ID))
	require.NoError(t, err)
	defer sub.Close()

	rec, err := f.messages.Send(ctx, alice.ID, bob.ID, "ping")
	require.NoError(t, err)

	select {
	case ev := <-sub.C:
		assert.Equal(t, feed.TypeDirectMessage, ev.Type)
		assert.Contains(t, string(ev.Payload), `"content":"ping"`)
		assert.Contains(t, string(ev.Payload), fmt.Sprintf(`"id":%d`, rec.ID))
	case <-time.After(time.Second):
		t.Fatal("no feed event")
	}
}

func TestSendSurvivesClosedFeed(t *testing.T) {
	ctx := context.Background()
	f := newChatFixture(t)
	alice := f.register(t, "alice", "secret1")
	bob := f.register(t, "bob", "secret2")
	require.NoError(t, f.broker.Close())

	_, err := f.messages.Send(ctx, alice.ID, bob.ID, "still stored")
	require.NoError(t, err)

	history, err := f.messages.History(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
