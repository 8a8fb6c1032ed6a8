//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"study-hub/domain"
)

type IMessageRepository interface {
	Store(message domain.Message) error
	List(room int64, cursor *string) ([]domain.Message, *string, error)
}

// MessageRepository persists room messages (chat lines and system notices)
// in BadgerDB.
type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// diskMessage is the stored shape; kept separate from domain.Message so the
// persisted format can evolve without touching the domain.
type diskMessage struct {
	ID      uuid.UUID `json:"id"`
	Room    int64     `json:"room"`
	Sender  string    `json:"sender"`
	Kind    string    `json:"kind"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Store persists a message. The key is formatted as
// "msg:{room_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding
//     (lexicographical order).
//  2. Prevent data loss by using the UUID as a collision disconnector if
//     two messages arrive at the same nanosecond.
func (m MessageRepository) Store(message domain.Message) error {
	key := fmt.Sprintf("msg:%d:%019d:%s",
		message.Room,
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(toDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// List retrieves messages for a room using a reverse prefix scan, newest
// first. Thanks to the padded timestamp in the key, ordering comes for
// free. It stops once the configured limit is reached and returns a cursor
// for the next page.
func (m MessageRepository) List(room int64, cursor *string) ([]domain.Message, *string, error) {
	var rawMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("msg:%d:", room)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Seek past every possible timestamp, then walk backwards.
			seekKey = append(prefix, []byte("9999999999999999999")...)
		default:
			seekKey = append(prefix, []byte(*cursor)...)
		}

		it.Seek(seekKey)

		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(rawMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", *m.limitMessages))
				break
			}
			item := it.Item()
			// Memorize the cursor part of the actual key
			lastKey = string(item.Key()[prefixLen:])
			err := item.Value(func(value []byte) error {
				rawMessages = append(rawMessages, append([]byte(nil), value...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	var messages []domain.Message
	for _, raw := range rawMessages {
		var dm diskMessage
		if err = json.Unmarshal(raw, &dm); err != nil {
			return nil, nil, err
		}
		messages = append(messages, fromDiskMessage(dm))
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, lo.ToPtr(lastKey), nil
}

func toDiskMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:      message.ID,
		Room:    message.Room,
		Sender:  message.SenderID,
		Kind:    string(message.Kind),
		Content: message.Content,
		At:      message.CreatedAt,
	}
}

func fromDiskMessage(dm diskMessage) domain.Message {
	return domain.Message{
		ID:        dm.ID,
		Room:      dm.Room,
		SenderID:  dm.Sender,
		Kind:      domain.MessageKind(dm.Kind),
		Content:   dm.Content,
		CreatedAt: dm.At,
	}
}
