package services

import (
	"study-hub/auth"
	"study-hub/errors"
	"study-hub/repositories"
)

type IAccountService interface {
	Register(providerID, email, nickname, password string) (Token, error)
	Login(providerID, password string) (Token, error)
}

// AccountService sits between a transport and the user directory: it turns
// a successful registration or login into a signed session token whose
// subject is the providerId, the identifier every core component keys on.
type AccountService struct {
	directory repositories.IUserDirectory
	tokens    *auth.TokenIssuer
}

type Token string

func NewAccountService(directory repositories.IUserDirectory, tokens *auth.TokenIssuer) IAccountService {
	return &AccountService{directory: directory, tokens: tokens}
}

func (s *AccountService) Register(providerID, email, nickname, password string) (Token, error) {
	// Validation and Argon2id hashing happen inside the directory; a plain
	// password never reaches storage.
	user, err := s.directory.Create(providerID, email, nickname, password)
	if err != nil {
		return "", err // Propagates ErrUserAlreadyExists if the id is taken
	}

	token, err := s.tokens.Issue(user.ProviderID, user.Nickname, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AccountService) Login(providerID, password string) (Token, error) {
	user, err := s.directory.FindByProviderID(providerID)
	if err != nil {
		// Generic error to prevent user enumeration attacks
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user.ProviderID, user.Nickname, []string{"user"})
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
