package users

import (
	"errors"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

var (
	ErrNotFound      = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already exists")
)

// User is the item stored in the users table.
type User struct {
	ID           string    `dynamodbav:"user_id" json:"id"` // PK
	Username     string    `dynamodbav:"username" json:"username"`
	PasswordHash string    `dynamodbav:"password_hash" json:"-"`
	Role         Role      `dynamodbav:"role" json:"role"`
	CreatedAt    time.Time `dynamodbav:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `dynamodbav:"updated_at" json:"updatedAt"`
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// usernameGuard reserves a username inside the users table. It shares the
// partition key so the reservation and the user are written in one
// transaction.
type usernameGuard struct {
	Key     string `dynamodbav:"user_id"`
	OwnerID string `dynamodbav:"owner_id"`
}
