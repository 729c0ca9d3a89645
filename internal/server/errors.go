package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/atelier/internal/auth/domain"
	boutiquedomain "github.com/smallbiznis/atelier/internal/boutique/domain"
	catalogdomain "github.com/smallbiznis/atelier/internal/catalog/domain"
	"github.com/smallbiznis/atelier/internal/imageorder"
	inboxdomain "github.com/smallbiznis/atelier/internal/inbox/domain"
	"github.com/smallbiznis/atelier/internal/media"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	settingsdomain "github.com/smallbiznis/atelier/internal/settings/domain"
	"github.com/smallbiznis/atelier/internal/workflow"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// errorRule maps one sentinel to its HTTP rendering. Rules are checked in
// order with errors.Is.
type errorRule struct {
	err     error
	status  int
	typ     string
	message string
}

var errorRules = []errorRule{
	// auth
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Non authentifié"},
	{authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "Identifiants incorrects"},
	{authdomain.ErrInvalidSession, http.StatusUnauthorized, "unauthorized", "Non authentifié"},
	{authdomain.ErrSessionExpired, http.StatusUnauthorized, "unauthorized", "Session expirée"},
	{authdomain.ErrSessionRevoked, http.StatusUnauthorized, "unauthorized", "Non authentifié"},

	// generic
	{ErrInvalidRequest, http.StatusBadRequest, "invalid_request", "Requête invalide"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited", "Trop de requêtes, veuillez réessayer plus tard"},
	{ErrServiceUnavailable, http.StatusServiceUnavailable, "service_unavailable", "Service indisponible"},

	// catalog
	{catalogdomain.ErrInvalidName, http.StatusBadRequest, "invalid_request", "Le nom est requis"},
	{catalogdomain.ErrInvalidCategory, http.StatusBadRequest, "invalid_request", "La catégorie est requise"},
	{catalogdomain.ErrInvalidPrice, http.StatusBadRequest, "invalid_request", "Prix invalide"},
	{catalogdomain.ErrInvalidStock, http.StatusBadRequest, "invalid_request", "Stock invalide"},
	{catalogdomain.ErrInvalidStone, http.StatusBadRequest, "invalid_request", "Pierre inconnue"},
	{catalogdomain.ErrInvalidColor, http.StatusBadRequest, "invalid_request", "Couleur inconnue"},
	{catalogdomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{catalogdomain.ErrInvalidReorder, http.StatusBadRequest, "invalid_request", "Données invalides"},
	{catalogdomain.ErrNotFound, http.StatusNotFound, "not_found", "Produit non trouvé"},
	{catalogdomain.ErrImageNotFound, http.StatusNotFound, "not_found", "Image non trouvée"},
	{imageorder.ErrTooManyImages, http.StatusBadRequest, "invalid_request", "Maximum 10 images par produit"},
	{imageorder.ErrUnknownImage, http.StatusBadRequest, "invalid_request", "Image inconnue"},
	{imageorder.ErrInvalidPlan, http.StatusBadRequest, "invalid_request", "Ordre des images invalide"},

	// media
	{media.ErrTooLarge, http.StatusRequestEntityTooLarge, "invalid_request", "Image trop volumineuse (5 Mo maximum)"},
	{media.ErrUnsupportedType, http.StatusBadRequest, "invalid_request", "Seules les images sont autorisées (jpeg, jpg, png, gif, webp)"},
	{media.ErrCorruptImage, http.StatusBadRequest, "invalid_request", "Image illisible"},

	// order
	{orderdomain.ErrInvalidCustomer, http.StatusBadRequest, "invalid_request", "Informations client incomplètes"},
	{orderdomain.ErrInvalidItems, http.StatusBadRequest, "invalid_request", "Le panier est vide ou invalide"},
	{orderdomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{orderdomain.ErrInvalidPaymentStatus, http.StatusBadRequest, "invalid_request", "Statut de paiement invalide"},
	{orderdomain.ErrNotFound, http.StatusNotFound, "not_found", "Commande non trouvée"},
	{workflow.ErrInvalidStatus, http.StatusBadRequest, "invalid_request", "Statut invalide"},
	{workflow.ErrStatusUnchanged, http.StatusBadRequest, "invalid_request", "Le statut est déjà appliqué"},

	// settings
	{settingsdomain.ErrInvalidTheme, http.StatusBadRequest, "invalid_request", "Thème invalide"},
	{settingsdomain.ErrInvalidKey, http.StatusBadRequest, "invalid_request", "Clé invalide"},
	{settingsdomain.ErrInvalidName, http.StatusBadRequest, "invalid_request", "Le nom est requis"},
	{settingsdomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{settingsdomain.ErrInvalidKind, http.StatusBadRequest, "invalid_request", "Type invalide"},
	{settingsdomain.ErrNotFound, http.StatusNotFound, "not_found", "Élément non trouvé"},
	{settingsdomain.ErrCategoryExists, http.StatusConflict, "conflict", "Cette catégorie existe déjà"},
	{settingsdomain.ErrStoneExists, http.StatusConflict, "conflict", "Cette pierre existe déjà"},
	{settingsdomain.ErrColorExists, http.StatusConflict, "conflict", "Cette couleur existe déjà"},

	// inbox
	{inboxdomain.ErrMissingFields, http.StatusBadRequest, "invalid_request", "Tous les champs sont requis"},
	{inboxdomain.ErrInvalidEmail, http.StatusBadRequest, "invalid_request", "Adresse email invalide"},
	{inboxdomain.ErrInvalidStatus, http.StatusBadRequest, "invalid_request", "Statut invalide"},
	{inboxdomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{inboxdomain.ErrEmptyReply, http.StatusBadRequest, "invalid_request", "Le message est vide"},
	{inboxdomain.ErrThreadClosed, http.StatusConflict, "conflict", "La conversation est close"},
	{inboxdomain.ErrTooManyAttachments, http.StatusBadRequest, "invalid_request", "Trop de pièces jointes"},
	{inboxdomain.ErrNotFound, http.StatusNotFound, "not_found", "Message non trouvé"},

	// boutique
	{boutiquedomain.ErrMissingImage, http.StatusBadRequest, "invalid_request", "Aucune image fournie"},
	{boutiquedomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{boutiquedomain.ErrInvalidFormat, http.StatusBadRequest, "invalid_request", "Format invalide"},
	{boutiquedomain.ErrNotFound, http.StatusNotFound, "not_found", "Image non trouvée"},

	// payment
	{paymentdomain.ErrNotConfigured, http.StatusServiceUnavailable, "service_unavailable", "Paiement indisponible"},
	{paymentdomain.ErrInvalidAmount, http.StatusBadRequest, "invalid_request", "Montant invalide"},
	{paymentdomain.ErrInvalidSignature, http.StatusBadRequest, "invalid_request", "Signature invalide"},
	{paymentdomain.ErrInvalidPayload, http.StatusBadRequest, "invalid_request", "Requête invalide"},
	{paymentdomain.ErrInvalidEvent, http.StatusBadRequest, "invalid_request", "Événement invalide"},
	// unknown intent: answer non-2xx so the provider retries once the order exists
	{paymentdomain.ErrOrderNotFound, http.StatusNotFound, "not_found", "Commande non trouvée"},

	// outbox
	{outboxdomain.ErrInvalidStatus, http.StatusBadRequest, "invalid_request", "Statut invalide"},
	{outboxdomain.ErrInvalidID, http.StatusBadRequest, "invalid_request", "Identifiant invalide"},
	{outboxdomain.ErrNotRetryable, http.StatusConflict, "conflict", "Ce message ne peut pas être renvoyé"},
	{outboxdomain.ErrNotFound, http.StatusNotFound, "not_found", "Message non trouvé"},

	{ErrNotFound, http.StatusNotFound, "not_found", "Ressource non trouvée"},
	{gorm.ErrRecordNotFound, http.StatusNotFound, "not_found", "Ressource non trouvée"},
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "Requête invalide")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "Erreur serveur",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: firstMessage(vErr.Errors, "Requête invalide"),
			Errors:  vErr.Errors,
		}
	}

	var stockErr *orderdomain.StockError
	if errors.As(err, &stockErr) {
		return http.StatusBadRequest, errorPayload{
			Type:    "insufficient_stock",
			Message: stockErr.Error(),
		}
	}

	var fieldErr *orderdomain.FieldError
	if errors.As(err, &fieldErr) {
		rule, _ := findRule(fieldErr.Err)
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: rule.message,
			Errors: []ValidationError{{
				Field:   fieldErr.Field,
				Code:    fieldErr.Err.Error(),
				Message: rule.message,
			}},
		}
	}

	if rule, ok := findRule(err); ok {
		payload := errorPayload{Type: rule.typ, Message: rule.message}
		if rule.status == http.StatusBadRequest && rule.typ == "invalid_request" {
			payload.Errors = []ValidationError{{Code: rule.err.Error(), Message: rule.message}}
		}
		return rule.status, payload
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "Erreur serveur",
	}
}

func findRule(err error) (errorRule, bool) {
	for _, rule := range errorRules {
		if errors.Is(err, rule.err) {
			return rule, true
		}
	}
	return errorRule{message: "Requête invalide"}, false
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func firstMessage(errs []ValidationError, fallback string) string {
	for _, e := range errs {
		if e.Message != "" {
			return e.Message
		}
	}
	return fallback
}

// classifyErrorForLog feeds the request logger a low-cardinality type and
// the sentinel code of the error.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, ""
	}
	if rule, ok := findRule(err); ok {
		return payload.Type, rule.err.Error()
	}
	return payload.Type, ""
}
