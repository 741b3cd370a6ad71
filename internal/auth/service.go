// Package auth registers and authenticates users and guards endpoints
// against credential guessing.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"github.com/imrishuroy/go-storefront/internal/users"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// UserStore is the persistence the auth service needs.
type UserStore interface {
	Create(ctx context.Context, u users.User) (*users.User, error)
	Get(ctx context.Context, id string) (*users.User, error)
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

// Session is a signed-in user and their access token.
type Session struct {
	User  *users.User `json:"user"`
	Token string      `json:"token"`
}

type Service struct {
	users      UserStore
	tokens     *Tokens
	log        logrus.FieldLogger
	bcryptCost int
}

func NewService(store UserStore, tokens *Tokens, log logrus.FieldLogger, bcryptCost int) *Service {
	if bcryptCost == 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &Service{users: store, tokens: tokens, log: log, bcryptCost: bcryptCost}
}

// Register creates a user with role. Returns users.ErrUsernameTaken when
// the name is in use.
func (s *Service) Register(ctx context.Context, username, password string, role users.Role) (*Session, error) {
	s.log.WithField("username", username).Info("registration attempt")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, users.User{Username: username, PasswordHash: string(hash), Role: role})
	if err != nil {
		if errors.Is(err, users.ErrUsernameTaken) {
			s.log.WithField("username", username).Warn("registration failed - username taken")
		}
		return nil, err
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return &Session{User: u, Token: token}, nil
}

// Login checks the password and issues a token. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	log := s.log.WithField("username", username)

	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, users.ErrNotFound) {
		log.Warn("login failed - user not found")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		log.Warn("login failed - wrong password")
		return nil, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	log.WithField("user_id", u.ID).Info("user logged in")
	return &Session{User: u, Token: token}, nil
}

// Authenticate resolves a bearer token to its current user.
func (s *Service) Authenticate(ctx context.Context, token string) (*users.User, error) {
	id, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Get(ctx, id)
	if errors.Is(err, users.ErrNotFound) {
		s.log.WithField("user_id", id).Warn("authentication failed - user not found")
		return nil, ErrInvalidToken
	}
	return u, err
}
