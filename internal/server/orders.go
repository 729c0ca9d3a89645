package server

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	orderdomain "github.com/smallbiznis/atelier/internal/order/domain"
	paymentdomain "github.com/smallbiznis/atelier/internal/payment/domain"
	"github.com/smallbiznis/atelier/internal/shipping"
	"go.uber.org/zap"
)

// maxWebhookBody matches the payload ceiling Stripe documents for events.
const maxWebhookBody = 1 << 16

func (s *Server) Checkout(c *gin.Context) {
	var req orderdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.orderSvc.Checkout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetOrder(c *gin.Context) {
	order, err := s.orderSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) AdminListOrders(c *gin.Context) {
	orders, err := s.orderSvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// UpdateOrderStatus answers 200 in both cases: with the prompt when the
// change still needs confirmation, with the updated order once applied.
func (s *Server) UpdateOrderStatus(c *gin.Context) {
	var req orderdomain.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	req.ID = c.Param("id")

	resp, err := s.orderSvc.UpdateStatus(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) OrderPackingSlip(c *gin.Context) {
	id := c.Param("id")
	doc, err := s.orderSvc.PackingSlip(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="bon-de-livraison-%s.pdf"`, id))
	c.DataFromReader(http.StatusOK, -1, "application/pdf", doc, nil)
}

func (s *Server) Stats(c *gin.Context) {
	stats, err := s.orderSvc.Stats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) CreatePaymentIntent(c *gin.Context) {
	var req paymentdomain.CreateIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidAmount)
		return
	}
	resp, err := s.paymentSvc.CreateIntent(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) StripePublicKey(c *gin.Context) {
	resp, err := s.paymentSvc.PublicKey(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil || len(payload) > maxWebhookBody {
		AbortWithError(c, paymentdomain.ErrInvalidPayload)
		return
	}

	err = s.paymentSvc.IngestWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.log.Warn("stripe webhook rejected",
			zap.String("request_id", c.GetString("request_id")),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) CalculateShipping(c *gin.Context) {
	raw := strings.TrimSpace(strings.Replace(c.Query("subtotal"), ",", ".", 1))
	subtotal, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
		AbortWithError(c, newValidationError("subtotal", "invalid_subtotal", "Sous-total invalide"))
		return
	}
	c.JSON(http.StatusOK, shipping.QuoteFor(subtotal))
}

type shippingQuoteRequest struct {
	Items []shipping.Line `json:"items"`
}

func (s *Server) QuoteShipping(c *gin.Context) {
	var req shippingQuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.JSON(http.StatusOK, shipping.QuoteCart(req.Items))
}
