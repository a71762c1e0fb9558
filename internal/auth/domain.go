package auth

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account that can sign in.
type User struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// SignUpInput registers a new account.
type SignUpInput struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
	// IsAdmin requests the admin role; honoured only for the first account
	// or when an admin creates the account.
	IsAdmin bool `json:"is_admin"`
}

// SignInInput carries credentials.
type SignInInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionEvent names a session transition.
type SessionEvent string

const (
	EventSignedIn  SessionEvent = "signed_in"
	EventSignedOut SessionEvent = "signed_out"
)
