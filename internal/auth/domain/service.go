package domain

import (
	"context"
	"time"
)

type Service interface {
	Login(ctx context.Context, req LoginRequest) (*LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	Authenticate(ctx context.Context, rawToken string) (*Principal, error)
	ChangePassword(ctx context.Context, adminID int64, current, next string) error
	PurgeExpired(ctx context.Context) (int64, error)
}

type LoginRequest struct {
	Username  string
	Password  string
	UserAgent string
	IPAddress string
}

type LoginResult struct {
	Username  string
	RawToken  string
	ExpiresAt time.Time
	SessionID int64
}
