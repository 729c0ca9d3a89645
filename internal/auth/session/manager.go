// Package session carries the admin session token in a cookie.
package session

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/atelier/internal/config"
)

const (
	CookieName = "_sid"

	// Every admin endpoint lives under /api; storefront pages never need the cookie.
	cookiePath = "/api"
)

type Manager struct {
	secure bool
}

func NewManager(cfg config.Config) *Manager {
	return &Manager{secure: cfg.AuthCookieSecure}
}

// Token returns the raw session token sent by the browser, if any.
func (m *Manager) Token(c *gin.Context) (string, bool) {
	raw, err := c.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

// Issue stores token until expiresAt. An already expired session clears the cookie.
func (m *Manager) Issue(c *gin.Context, token string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		m.Clear(c)
		return
	}
	m.write(c, token, int(ttl/time.Second))
}

func (m *Manager) Clear(c *gin.Context) {
	m.write(c, "", -1)
}

func (m *Manager) write(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(CookieName, value, maxAge, cookiePath, "", m.secure, true)
}
