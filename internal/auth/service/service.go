package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/auth/domain"
	"github.com/smallbiznis/atelier/internal/auth/password"
	"github.com/smallbiznis/atelier/internal/clock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SessionTTL is the lifetime of an admin session. It is not extended on use.
const SessionTTL = 7 * 24 * time.Hour

const (
	tokenBytes   = 32
	maxUserAgent = 512
	maxIP        = 64
)

type Params struct {
	fx.In

	Log         *zap.Logger
	Repo        domain.Repository
	SessionRepo domain.SessionRepository
	GenID       *snowflake.Node
	Clock       clock.Clock
}

// Service authenticates shop administrators. Only the sha256 of a session
// token is stored; the raw token lives in the admin's cookie.
type Service struct {
	log      *zap.Logger
	admins   domain.Repository
	sessions domain.SessionRepository
	genID    *snowflake.Node
	clock    clock.Clock
}

func New(p Params) domain.Service {
	return &Service{
		log:      p.Log.Named("auth"),
		admins:   p.Repo,
		sessions: p.SessionRepo,
		genID:    p.GenID,
		clock:    p.Clock,
	}
}

func (s *Service) Login(ctx context.Context, req domain.LoginRequest) (*domain.LoginResult, error) {
	admin, err := s.checkCredentials(ctx, strings.TrimSpace(req.Username), req.Password)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	s.upgradeHash(ctx, admin, req.Password, now)

	token, err := newToken()
	if err != nil {
		return nil, fmt.Errorf("session token: %w", err)
	}
	session := &domain.Session{
		ID:               s.genID.Generate().Int64(),
		AdminID:          admin.ID,
		SessionTokenHash: digest(token),
		UserAgent:        clip(req.UserAgent, maxUserAgent),
		IP:               clip(req.IPAddress, maxIP),
		ExpiresAt:        now.Add(SessionTTL),
		CreatedAt:        now,
		LastSeenAt:       now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, err
	}

	s.log.Info("admin signed in",
		zap.String("username", admin.Username),
		zap.Int64("session_id", session.ID),
	)
	return &domain.LoginResult{
		Username:  admin.Username,
		RawToken:  token,
		ExpiresAt: session.ExpiresAt,
		SessionID: session.ID,
	}, nil
}

// checkCredentials folds unknown usernames into ErrInvalidCredentials so a
// failed login does not reveal which admins exist.
func (s *Service) checkCredentials(ctx context.Context, username, plain string) (*domain.Admin, error) {
	if username == "" || plain == "" {
		return nil, domain.ErrInvalidCredentials
	}
	admin, err := s.admins.FindByUsername(ctx, username)
	switch {
	case errors.Is(err, domain.ErrAdminNotFound):
		return nil, domain.ErrInvalidCredentials
	case err != nil:
		return nil, err
	case !password.Verify(plain, admin.PasswordHash):
		return nil, domain.ErrInvalidCredentials
	}
	return admin, nil
}

// upgradeHash re-hashes a password stored with an outdated cost. Failures
// only cost a warning since the login itself already succeeded.
func (s *Service) upgradeHash(ctx context.Context, admin *domain.Admin, plain string, now time.Time) {
	if !password.NeedsRehash(admin.PasswordHash) {
		return
	}
	hash, err := password.Hash(plain)
	if err == nil {
		err = s.admins.UpdatePassword(ctx, admin.ID, hash, now)
	}
	if err != nil {
		s.log.Warn("password rehash failed", zap.Int64("admin_id", admin.ID), zap.Error(err))
	}
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	session, err := s.lookup(ctx, rawToken)
	if err != nil {
		return err
	}
	return s.sessions.RevokeSession(ctx, session.ID, s.clock.Now())
}

func (s *Service) Authenticate(ctx context.Context, rawToken string) (*domain.Principal, error) {
	session, err := s.lookup(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	switch {
	case session.RevokedAt != nil:
		return nil, domain.ErrSessionRevoked
	case now.After(session.ExpiresAt):
		return nil, domain.ErrSessionExpired
	}

	admin, err := s.admins.FindByID(ctx, session.AdminID)
	if errors.Is(err, domain.ErrAdminNotFound) {
		return nil, domain.ErrInvalidSession
	}
	if err != nil {
		return nil, err
	}
	if err := s.sessions.UpdateLastSeen(ctx, session.ID, now); err != nil {
		return nil, err
	}
	return &domain.Principal{AdminID: admin.ID, Username: admin.Username, SessionID: session.ID}, nil
}

func (s *Service) lookup(ctx context.Context, rawToken string) (*domain.Session, error) {
	token := strings.TrimSpace(rawToken)
	if token == "" {
		return nil, domain.ErrInvalidSession
	}
	session, err := s.sessions.GetSessionByTokenHash(ctx, digest(token))
	if errors.Is(err, domain.ErrSessionNotFound) {
		return nil, domain.ErrInvalidSession
	}
	return session, err
}

func (s *Service) ChangePassword(ctx context.Context, adminID int64, current, next string) error {
	if err := password.Validate(next); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrWeakPassword, err)
	}
	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		return err
	}
	if !password.Verify(current, admin.PasswordHash) {
		return domain.ErrInvalidCredentials
	}

	hash, err := password.Hash(next)
	if err != nil {
		return err
	}
	if err := s.admins.UpdatePassword(ctx, admin.ID, hash, s.clock.Now()); err != nil {
		return err
	}
	s.log.Info("admin password changed", zap.String("username", admin.Username))
	return nil
}

// PurgeExpired deletes expired and revoked sessions.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	return s.sessions.DeleteExpired(ctx, s.clock.Now())
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func digest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func clip(v string, n int) string {
	v = strings.TrimSpace(v)
	if len(v) > n {
		return v[:n]
	}
	return v
}
