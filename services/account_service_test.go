package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"study-hub/auth"
	"study-hub/errors"
	"study-hub/mocks"
	"study-hub/repositories"
)

func newAccountFixture(t *testing.T) (IAccountService, *mocks.MockIUserDirectory, *auth.TokenIssuer) {
	ctrl := gomock.NewController(t)
	directory := mocks.NewMockIUserDirectory(ctrl)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)
	return NewAccountService(directory, issuer), directory, issuer
}

func TestAccountService_Register_Issues_Token_For_Subject(t *testing.T) {
	req := require.New(t)
	service, directory, issuer := newAccountFixture(t)

	directory.EXPECT().
		Create("google|123", "alice@example.com", "Alice", "ComplexPass123!#").
		Return(repositories.User{ProviderID: "google|123", Nickname: "Alice"}, nil)

	// When registration succeeds
	token, err := service.Register("google|123", "alice@example.com", "Alice", "ComplexPass123!#")
	req.NoError(err)

	// Then the token's subject is the providerId the core keys on
	claims, err := issuer.Validate(string(token))
	req.NoError(err)
	req.Equal("google|123", claims.Subject)
	req.Equal("Alice", claims.Nickname)
}

func TestAccountService_Register_Propagates_Directory_Errors(t *testing.T) {
	req := require.New(t)
	service, directory, _ := newAccountFixture(t)

	directory.EXPECT().
		Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).
		Return(repositories.User{}, errors.ErrUserAlreadyExists)

	_, err := service.Register("google|123", "alice@example.com", "Alice", "ComplexPass123!#")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestAccountService_Login_Succeeds_With_Correct_Password(t *testing.T) {
	req := require.New(t)
	service, directory, issuer := newAccountFixture(t)

	hash, err := auth.HashPassword("ComplexPass123!#")
	req.NoError(err)
	directory.EXPECT().
		FindByProviderID("google|123").
		Return(repositories.User{ProviderID: "google|123", Nickname: "Alice", PasswordHash: hash}, nil)

	token, err := service.Login("google|123", "ComplexPass123!#")
	req.NoError(err)

	claims, err := issuer.Validate(string(token))
	req.NoError(err)
	req.Equal("google|123", claims.Subject)
}

func TestAccountService_Login_Hides_Failure_Cause(t *testing.T) {
	req := require.New(t)
	service, directory, _ := newAccountFixture(t)

	hash, err := auth.HashPassword("ComplexPass123!#")
	req.NoError(err)

	// Unknown subject and wrong password must be indistinguishable
	directory.EXPECT().
		FindByProviderID("google|missing").
		Return(repositories.User{}, errors.ErrUserNotFound)
	_, err = service.Login("google|missing", "whatever")
	req.ErrorIs(err, errors.ErrInvalidCredentials)

	directory.EXPECT().
		FindByProviderID("google|123").
		Return(repositories.User{ProviderID: "google|123", PasswordHash: hash}, nil)
	_, err = service.Login("google|123", "WrongPassword1!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}
