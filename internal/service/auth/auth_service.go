package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/nvoronina/flightbooking/internal/domain"
	"github.com/nvoronina/flightbooking/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const MinPasswordLength = 4

type AuthUseCase interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	Login(ctx context.Context, username, password string) (*domain.User, error)
}

type AuthService struct {
	users      repository.UserRepository
	bcryptCost int
}

func NewAuthService(users repository.UserRepository, bcryptCost int) *AuthService {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: users, bcryptCost: bcryptCost}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrUsernameRequired
	}
	if len(password) < MinPasswordLength {
		return nil, domain.ErrPasswordTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, err
	}
	return s.users.Create(ctx, username, string(hash))
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, domain.ErrInvalidCredentials
	}
	return user, nil
}

var _ AuthUseCase = (*AuthService)(nil)
