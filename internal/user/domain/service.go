package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/aula/pkg/db/pagination"
)

type CreateUserRequest struct {
	Email    string
	FullName string
	Password string
	Role     Role
}

type UpdateUserRequest struct {
	FullName *string
	Role     *Role
	IsActive *bool
	Password *string
}

type ListUserResponse struct {
	pagination.PageInfo
	Items []User `json:"items"`
}

type Service interface {
	Create(context.Context, CreateUserRequest) (User, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateUserRequest) (User, error)
	GetByID(ctx context.Context, id snowflake.ID) (User, error)
	List(ctx context.Context, page pagination.Pagination) (ListUserResponse, error)

	// Login verifies credentials and opens a session, returning the
	// opaque token the cookie carries.
	Login(ctx context.Context, email, plaintext string) (User, Session, error)
	Logout(ctx context.Context, token string) error
	// Authenticate resolves a session token to its active user.
	Authenticate(ctx context.Context, token string) (User, error)
}

var (
	ErrNotFound           = errors.New("user_not_found")
	ErrEmailExists        = errors.New("user_email_conflict")
	ErrInvalidEmail       = errors.New("invalid_user_email")
	ErrInvalidName        = errors.New("invalid_user_name")
	ErrInvalidRole        = errors.New("invalid_user_role")
	ErrWeakPassword       = errors.New("weak_password")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSessionExpired     = errors.New("session_expired")
	ErrUserInactive       = errors.New("user_inactive")
)
