package runtime

import (
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"study-hub/domain"
)

func newTestRegistry() *MembershipRegistry {
	return NewMembershipRegistry(logs.GetLoggerFromLevel(slog.LevelDebug))
}

func TestMembershipRegistry_First_Join_Only_Once_Across_Tabs(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(1)
	user := uuid.NewString()

	// Given a user opening two tabs, each with its own connection
	tab1 := domain.ConnectionID(uuid.NewString())
	tab2 := domain.ConnectionID(uuid.NewString())

	// When both tabs subscribe the chat feed of the same room
	first := registry.Subscribe(tab1, "sub-1", roomID, user, domain.ChatFeed)
	second := registry.Subscribe(tab2, "sub-2", roomID, user, domain.ChatFeed)

	// Then only the first subscription reports a join
	req.True(first)
	req.False(second)
	req.EqualValues(2, registry.Count(roomID, user, domain.ChatFeed))
}

func TestMembershipRegistry_Last_Leave_Only_On_Final_Tab(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(1)
	user := uuid.NewString()
	tab1 := domain.ConnectionID(uuid.NewString())
	tab2 := domain.ConnectionID(uuid.NewString())

	// Given two live connections of the same user on one feed
	registry.Subscribe(tab1, "sub-1", roomID, user, domain.ChatFeed)
	registry.Subscribe(tab2, "sub-2", roomID, user, domain.ChatFeed)

	// When the first tab closes
	res := registry.Unsubscribe(tab1, "sub-1")

	// Then the user has not left yet
	req.NotNil(res)
	req.False(res.LastInFeed)
	req.True(res.ConnectionDone)

	// When the second tab closes
	res = registry.Unsubscribe(tab2, "sub-2")

	// Then the user's membership reaches zero exactly once
	req.NotNil(res)
	req.True(res.LastInFeed)
	req.Equal(roomID, res.Room)
	req.Equal(user, res.User)
	req.EqualValues(0, registry.Count(roomID, user, domain.ChatFeed))
}

func TestMembershipRegistry_Feed_Classes_Counted_Independently(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(7)
	user := uuid.NewString()
	conn := domain.ConnectionID(uuid.NewString())

	// When one connection subscribes both feeds of a room
	chatFirst := registry.Subscribe(conn, "sub-chat", roomID, user, domain.ChatFeed)
	presenceFirst := registry.Subscribe(conn, "sub-presence", roomID, user, domain.PresenceFeed)

	// Then each feed class sees its own first join
	req.True(chatFirst)
	req.True(presenceFirst)

	// And tearing down the chat feed does not touch the presence feed
	res := registry.Unsubscribe(conn, "sub-chat")
	req.True(res.LastInFeed)
	req.EqualValues(1, registry.Count(roomID, user, domain.PresenceFeed))
}

func TestMembershipRegistry_Duplicate_Subscription_Frame_Ignored(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(1)
	user := uuid.NewString()
	conn := domain.ConnectionID(uuid.NewString())

	// Given a held subscription
	req.True(registry.Subscribe(conn, "sub-1", roomID, user, domain.ChatFeed))

	// When the transport re-sends the exact same frame
	replayed := registry.Subscribe(conn, "sub-1", roomID, user, domain.ChatFeed)

	// Then nothing is counted twice
	req.False(replayed)
	req.EqualValues(1, registry.Count(roomID, user, domain.ChatFeed))

	// And a single unsubscribe fully releases the membership
	res := registry.Unsubscribe(conn, "sub-1")
	req.True(res.LastInFeed)
}

func TestMembershipRegistry_Unsubscribe_Unknown_And_Twice_Is_Nil(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	conn := domain.ConnectionID(uuid.NewString())

	// Given an unknown subscription id
	req.Nil(registry.Unsubscribe(conn, "never-seen"))

	// Given a held subscription torn down once
	registry.Subscribe(conn, "sub-1", domain.RoomID(1), uuid.NewString(), domain.ChatFeed)
	req.NotNil(registry.Unsubscribe(conn, "sub-1"))

	// When the same frame arrives again
	// Then the duplicate resolves to nil instead of a second leave
	req.Nil(registry.Unsubscribe(conn, "sub-1"))
}

func TestMembershipRegistry_Malformed_Input_Is_Absorbed(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()

	req.False(registry.Subscribe("", "sub", 1, "user", domain.ChatFeed))
	req.False(registry.Subscribe("conn", "", 1, "user", domain.ChatFeed))
	req.False(registry.Subscribe("conn", "sub", 0, "user", domain.ChatFeed))
	req.False(registry.Subscribe("conn", "sub", 1, "", domain.ChatFeed))
	req.False(registry.Subscribe("conn", "sub", 1, "user", domain.FeedClass("video")))
	req.Nil(registry.Unsubscribe("", "sub"))
	req.Nil(registry.Disconnect(""))
}

func TestMembershipRegistry_Disconnect_Acts_As_Batched_Unsubscribe(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(3)
	user := uuid.NewString()
	dying := domain.ConnectionID(uuid.NewString())
	surviving := domain.ConnectionID(uuid.NewString())

	// Given one connection on both feeds and a second one on chat only
	registry.Subscribe(dying, "sub-chat", roomID, user, domain.ChatFeed)
	registry.Subscribe(dying, "sub-presence", roomID, user, domain.PresenceFeed)
	registry.Subscribe(surviving, "sub-chat-2", roomID, user, domain.ChatFeed)

	// When the first connection dies abruptly
	results := registry.Disconnect(dying)

	// Then one result per (room, feed) pair is produced
	req.Len(results, 2)
	byFeed := make(map[domain.FeedClass]bool)
	for _, res := range results {
		req.Equal(roomID, res.Room)
		req.Equal(user, res.User)
		req.True(res.ConnectionDone)
		byFeed[res.Feed] = res.LastInFeed
	}
	// The surviving chat tab keeps the user in the room
	req.False(byFeed[domain.ChatFeed])
	// Nobody holds the presence feed anymore
	req.True(byFeed[domain.PresenceFeed])

	// And a second disconnect of the same connection yields nothing
	req.Nil(registry.Disconnect(dying))
}

func TestMembershipRegistry_Concurrent_Storm_Conserves_Counts(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(42)
	user := uuid.NewString()
	const connections = 64

	// When many connections of the same user subscribe concurrently
	var wg sync.WaitGroup
	firsts := make(chan bool, connections)
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := domain.ConnectionID(fmt.Sprintf("conn-%d", i))
			firsts <- registry.Subscribe(conn, "sub", roomID, user, domain.ChatFeed)
		}(i)
	}
	wg.Wait()
	close(firsts)

	// Then exactly one of them observed the 0→1 transition
	joinCount := 0
	for first := range firsts {
		if first {
			joinCount++
		}
	}
	req.Equal(1, joinCount)
	req.EqualValues(connections, registry.Count(roomID, user, domain.ChatFeed))

	// When all of them disconnect concurrently
	leaves := make(chan bool, connections)
	for i := 0; i < connections; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := domain.ConnectionID(fmt.Sprintf("conn-%d", i))
			for _, res := range registry.Disconnect(conn) {
				leaves <- res.LastInFeed
			}
		}(i)
	}
	wg.Wait()
	close(leaves)

	// Then exactly one observed the 1→0 transition and the count is conserved
	leaveCount := 0
	for last := range leaves {
		if last {
			leaveCount++
		}
	}
	req.Equal(1, leaveCount)
	req.EqualValues(0, registry.Count(roomID, user, domain.ChatFeed))
}

func TestMembershipRegistry_Occupancy_Lists_Active_Users_Only(t *testing.T) {
	req := require.New(t)
	registry := newTestRegistry()
	roomID := domain.RoomID(5)

	// Given two users in the room and one who already left
	registry.Subscribe("conn-a", "sub-a", roomID, "alice", domain.ChatFeed)
	registry.Subscribe("conn-b", "sub-b", roomID, "bob", domain.ChatFeed)
	registry.Subscribe("conn-c", "sub-c", roomID, "chloe", domain.ChatFeed)
	registry.Unsubscribe("conn-c", "sub-c")

	// When occupancy is queried
	occupancy := registry.Occupancy(roomID, domain.ChatFeed)

	// Then only users with a live connection appear
	req.Len(occupancy, 2)
	req.EqualValues(1, occupancy["alice"])
	req.EqualValues(1, occupancy["bob"])
	req.NotContains(occupancy, "chloe")
}
