package repositories

import (
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"study-hub/domain"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Store_And_List_Multiple_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	room := int64(1)
	at := time.Now().UTC()

	messages := []domain.Message{
		{ID: uuid.New(), Room: room, SenderID: "alice", Kind: domain.KindChat, Content: "hello", CreatedAt: at},
		{ID: uuid.New(), Room: room, SenderID: "bob", Kind: domain.KindChat, Content: "hi", CreatedAt: at.Add(1 * time.Minute)},
		{ID: uuid.New(), Room: room, SenderID: "system", Kind: domain.KindSystem, Content: "Clara joined the room", CreatedAt: at.Add(2 * time.Minute)},
	}
	for _, m := range messages {
		req.NoError(repository.Store(m))
	}

	fetched, _, err := repository.List(room, nil)
	req.NoError(err)
	req.Len(fetched, len(messages))

	// Newest first thanks to the reverse prefix scan
	req.Equal("Clara joined the room", fetched[0].Content)
	req.Equal(domain.KindSystem, fetched[0].Kind)
	req.Equal("hello", fetched[2].Content)
}

func Test_List_Respects_Limit_And_Cursor(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openTestDB(t), slog.Default(), &limit)
	room := int64(1)
	at := time.Now().UTC()

	for i := 0; i < 5; i++ {
		req.NoError(repository.Store(domain.Message{
			ID:        uuid.New(),
			Room:      room,
			SenderID:  "alice",
			Kind:      domain.KindChat,
			Content:   fmt.Sprintf("message %d", i),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}

	// First page holds the two newest messages
	page1, cursor, err := repository.List(room, nil)
	req.NoError(err)
	req.Len(page1, limit)
	req.Equal("message 4", page1[0].Content)
	req.Equal("message 3", page1[1].Content)
	req.NotNil(cursor)

	// Second page continues where the first one stopped
	page2, _, err := repository.List(room, cursor)
	req.NoError(err)
	req.Len(page2, limit)
	req.Equal("message 2", page2[0].Content)
	req.Equal("message 1", page2[1].Content)
}

func Test_List_Isolates_Rooms(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	req.NoError(repository.Store(domain.Message{ID: uuid.New(), Room: 1, SenderID: "alice", Kind: domain.KindChat, Content: "room one", CreatedAt: at}))
	req.NoError(repository.Store(domain.Message{ID: uuid.New(), Room: 2, SenderID: "bob", Kind: domain.KindChat, Content: "room two", CreatedAt: at}))

	fetched, _, err := repository.List(1, nil)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("room one", fetched[0].Content)
}

func Test_List_Empty_Room_Returns_Nothing(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default(), nil)

	fetched, cursor, err := repository.List(99, nil)
	req.NoError(err)
	req.Empty(fetched)
	req.Nil(cursor)
}
