package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/masig/pricebook/internal/rbac"
	"github.com/masig/pricebook/internal/shared"
)

// SessionListener observes sign-in and sign-out.
type SessionListener func(ctx context.Context, event SessionEvent, sess *shared.Session)

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	sessions  *shared.SessionManager
	validate  *validator.Validate
	mu        sync.RWMutex
	listeners []SessionListener
}

// NewService constructs a new Service.
func NewService(repo Repository, sessions *shared.SessionManager) *Service {
	return &Service{repo: repo, sessions: sessions, validate: validator.New()}
}

// OnSessionChange registers a listener for session transitions.
func (s *Service) OnSessionChange(fn SessionListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SignUp creates an account. callerIsAdmin allows an admin to create
// further admins.
func (s *Service) SignUp(ctx context.Context, in SignUpInput, callerIsAdmin bool) (User, rbac.Role, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := s.validate.Struct(in); err != nil {
		return User{}, "", fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", err
	}
	return s.repo.CreateUser(ctx, User{
		Email:        in.Email,
		PasswordHash: string(hash),
		FirstName:    in.FirstName,
		LastName:     in.LastName,
	}, in.IsAdmin && callerIsAdmin)
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// SignIn authenticates and issues a session token.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (string, shared.Session, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", shared.Session{}, fmt.Errorf("%w: %w", shared.ErrValidation, err)
	}
	user, err := s.Authenticate(ctx, in.Email, in.Password)
	if err != nil {
		return "", shared.Session{}, err
	}
	token, sess, err := s.sessions.Issue(ctx, shared.Session{
		UserID:    user.ID,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	})
	if err != nil {
		return "", shared.Session{}, err
	}
	s.notify(ctx, EventSignedIn, &sess)
	return token, sess, nil
}

// SignOut revokes the session.
func (s *Service) SignOut(ctx context.Context, sess *shared.Session) error {
	if sess == nil {
		return nil
	}
	if err := s.sessions.Revoke(ctx, sess); err != nil {
		return err
	}
	s.notify(ctx, EventSignedOut, sess)
	return nil
}

func (s *Service) notify(ctx context.Context, event SessionEvent, sess *shared.Session) {
	s.mu.RLock()
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, event, sess)
	}
}
