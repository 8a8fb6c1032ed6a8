//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_directory.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"study-hub/auth"
	"study-hub/errors"
)

type IUserDirectory interface {
	Create(providerID, email, nickname, password string) (User, error)
	FindByProviderID(providerID string) (User, error)
	DisplayName(providerID string) (string, error)
}

// UserDirectory is the identity collaborator of the coordination core: it
// resolves the stable subject identifier carried by transport events
// (the JWT subject) to a profile. The core itself never reads profiles.
type UserDirectory struct {
	db *badger.DB
}

func NewUserDirectory(db *badger.DB) IUserDirectory {
	return &UserDirectory{db: db}
}

// User is the repository-layer representation of an account.
type User struct {
	ID           string    `json:"id"`
	ProviderID   string    `json:"provider_id"`
	Email        string    `json:"email"`
	Nickname     string    `json:"nickname"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// Create validates and persists a new account keyed by providerID.
// The password is hashed with Argon2id before it reaches storage.
func (u *UserDirectory) Create(providerID, email, nickname, password string) (User, error) {
	if err := auth.ValidateRegister(auth.RegisterRequest{
		Email:    email,
		Nickname: nickname,
		Password: password,
	}); err != nil {
		return User{}, err
	}

	hashed, err := auth.HashPassword(password)
	if err != nil {
		return User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user := User{
		ID:           uuid.NewString(),
		ProviderID:   providerID,
		Email:        email,
		Nickname:     nickname,
		PasswordHash: hashed,
		CreatedAt:    time.Now().UTC(),
	}
	bytes, err := json.Marshal(user)
	if err != nil {
		return User{}, err
	}

	key := userKey(providerID)
	err = u.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, bytes)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

func (u *UserDirectory) FindByProviderID(providerID string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(userKey(providerID))
		if err == badger.ErrKeyNotFound {
			return errors.ErrUserNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(value []byte) error {
			return json.Unmarshal(value, &user)
		})
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// DisplayName implements contract.IIdentity.
func (u *UserDirectory) DisplayName(providerID string) (string, error) {
	user, err := u.FindByProviderID(providerID)
	if err != nil {
		return "", err
	}
	return user.Nickname, nil
}

func userKey(providerID string) []byte {
	return []byte("user:" + providerID)
}
