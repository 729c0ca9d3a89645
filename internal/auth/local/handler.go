package local

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/atelier/internal/auth/domain"
	"github.com/smallbiznis/atelier/internal/auth/password"
	"github.com/smallbiznis/atelier/internal/auth/session"
	"go.uber.org/zap"
)

const principalKey = "admin_principal"

// Handler manages back office login endpoints.
type Handler struct {
	authsvc  authdomain.Service
	sessions *session.Manager
	log      *zap.Logger
}

func NewHandler(authsvc authdomain.Service, sessions *session.Manager, log *zap.Logger) *Handler {
	return &Handler{
		authsvc:  authsvc,
		sessions: sessions,
		log:      log.Named("auth.local.handler"),
	}
}

// RegisterRoutes mounts the session endpoints; loginGuard runs before Login.
func RegisterRoutes(r gin.IRouter, h *Handler, loginGuard ...gin.HandlerFunc) {
	group := r.Group("/api/admin")
	group.POST("/login", append(loginGuard, h.Login)...)
	group.POST("/logout", h.Logout)
	group.GET("/check-auth", h.CheckAuth)
	group.POST("/password", h.RequireAdmin(), h.ChangePassword)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeLocalError(c, http.StatusBadRequest, "Requête invalide")
		return
	}

	result, err := h.authsvc.Login(c.Request.Context(), authdomain.LoginRequest{
		Username:  req.Username,
		Password:  req.Password,
		UserAgent: c.Request.UserAgent(),
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		if !errors.Is(err, authdomain.ErrInvalidCredentials) {
			h.log.Error("login failed", zap.String("request_id", requestID(c)), zap.Error(err))
			writeLocalError(c, http.StatusInternalServerError, "Erreur serveur")
			return
		}
		writeLocalError(c, http.StatusUnauthorized, "Identifiants incorrects")
		return
	}

	h.sessions.Issue(c, result.RawToken, result.ExpiresAt)

	h.log.Info("local login created session",
		zap.String("request_id", requestID(c)),
		zap.Int64("session_id", result.SessionID),
	)

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Connexion réussie",
		"username": result.Username,
	})
}

// Logout always clears the cookie; an unknown token is not an error.
func (h *Handler) Logout(c *gin.Context) {
	if token, ok := h.sessions.Token(c); ok {
		err := h.authsvc.Logout(c.Request.Context(), token)
		if err != nil && !errors.Is(err, authdomain.ErrInvalidSession) {
			h.log.Error("logout failed", zap.String("request_id", requestID(c)), zap.Error(err))
			writeLocalError(c, http.StatusInternalServerError, "Erreur lors de la déconnexion")
			return
		}
	}

	h.sessions.Clear(c)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *Handler) CheckAuth(c *gin.Context) {
	principal, ok := h.authenticate(c)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "username": principal.Username})
}

func (h *Handler) ChangePassword(c *gin.Context) {
	principal, _ := Principal(c)
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeLocalError(c, http.StatusBadRequest, "Requête invalide")
		return
	}

	err := h.authsvc.ChangePassword(c.Request.Context(), principal.AdminID, req.CurrentPassword, req.NewPassword)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, password.ErrTooLong):
		writeLocalError(c, http.StatusBadRequest, fmt.Sprintf("Le mot de passe ne doit pas dépasser %d caractères", password.MaxLength))
	case errors.Is(err, authdomain.ErrWeakPassword):
		writeLocalError(c, http.StatusBadRequest, fmt.Sprintf("Le mot de passe doit contenir au moins %d caractères", password.MinLength))
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		writeLocalError(c, http.StatusUnauthorized, "Mot de passe actuel incorrect")
	default:
		h.log.Error("change password failed", zap.String("request_id", requestID(c)), zap.Error(err))
		writeLocalError(c, http.StatusInternalServerError, "Erreur serveur")
	}
}

// RequireAdmin rejects requests without a live admin session.
func (h *Handler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := h.authenticate(c)
		if !ok {
			writeLocalError(c, http.StatusUnauthorized, "Non authentifié")
			c.Abort()
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

// Principal returns the admin set by RequireAdmin.
func Principal(c *gin.Context) (*authdomain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*authdomain.Principal)
	return p, ok
}

func (h *Handler) authenticate(c *gin.Context) (*authdomain.Principal, bool) {
	token, ok := h.sessions.Token(c)
	if !ok {
		return nil, false
	}
	principal, err := h.authsvc.Authenticate(c.Request.Context(), token)
	if err != nil {
		switch {
		case errors.Is(err, authdomain.ErrInvalidSession),
			errors.Is(err, authdomain.ErrSessionExpired),
			errors.Is(err, authdomain.ErrSessionRevoked):
		default:
			h.log.Warn("session lookup failed", zap.String("request_id", requestID(c)), zap.Error(err))
		}
		return nil, false
	}
	return principal, true
}

func writeLocalError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

func requestID(c *gin.Context) string {
	if v := strings.TrimSpace(c.GetHeader("X-Request-Id")); v != "" {
		return v
	}
	if v := strings.TrimSpace(c.GetString("request_id")); v != "" {
		return v
	}
	return ""
}
