package domain

import (
	"context"
	"time"
)

type Repository interface {
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, admin *Admin) error
	FindByUsername(ctx context.Context, username string) (*Admin, error)
	FindByID(ctx context.Context, id int64) (*Admin, error)
	UpdatePassword(ctx context.Context, id int64, hash string, now time.Time) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	UpdateLastSeen(ctx context.Context, sessionID int64, lastSeen time.Time) error
	RevokeSession(ctx context.Context, sessionID int64, revokedAt time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
