package domain

// ConnectionID identifies one transport-level session. A browser opens one
// per tab, so a single user routinely owns several live connections.
type ConnectionID string

// SubscriptionID identifies one feed attached to a connection. It is only
// unique within its connection; (ConnectionID, SubscriptionID) is the key.
type SubscriptionID string

// FeedClass distinguishes the chat feed of a room from its presence feed.
// The two are subscribed and torn down independently, so membership is
// counted per class: closing the chat panel must not flip a user offline.
type FeedClass string

const (
	ChatFeed     FeedClass = "chat"
	PresenceFeed FeedClass = "presence"
)

func (f FeedClass) Valid() bool {
	return f == ChatFeed || f == PresenceFeed
}
