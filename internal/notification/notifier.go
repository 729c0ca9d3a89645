// Package notification renders customer and operator emails into outbox
// messages and pushes optional operator alerts.
package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/providers/alert"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

var labels = map[string]string{
	"pending":   "En attente",
	"confirmed": "Confirmée",
	"shipped":   "Expédiée",
	"delivered": "Livrée",
}

var subjects = map[string]string{
	"pending":   "Votre commande est bien enregistrée",
	"confirmed": "Votre commande est confirmée",
	"shipped":   "Votre commande a été expédiée",
	"delivered": "Votre commande a été livrée",
}

type OrderLine struct {
	Name     string
	Quantity int
	Price    float64
}

type Order struct {
	ID              string
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	CustomerAddress string
	Subtotal        float64
	ShippingCost    float64
	Total           float64
	Items           []OrderLine
	CreatedAt       time.Time
}

type Contact struct {
	Name    string
	Email   string
	Phone   string
	Message string
}

type Reply struct {
	ThreadID      string
	Subject       string
	CustomerName  string
	CustomerEmail string
	Body          string
}

type Params struct {
	fx.In

	Storefront *config.StorefrontHolder
	Alert      alert.Provider
	Log        *zap.Logger
}

type Notifier struct {
	storefront *config.StorefrontHolder
	alert      alert.Provider
	log        *zap.Logger
	templates  map[string]*template.Template
}

func New(p Params) (*Notifier, error) {
	funcs := template.FuncMap{
		"euro":      Euro,
		"lineTotal": func(l OrderLine) float64 { return l.Price * float64(l.Quantity) },
	}
	templates := make(map[string]*template.Template)
	for _, name := range []string{"order_status", "seller_order", "contact", "thread_reply"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		templates[name] = t
	}
	return &Notifier{
		storefront: p.Storefront,
		alert:      p.Alert,
		log:        p.Log.Named("notification"),
		templates:  templates,
	}, nil
}

// Euro formats an amount the French way: "25,00 €".
func Euro(v float64) string {
	return strings.Replace(fmt.Sprintf("%.2f €", v), ".", ",", 1)
}

// StatusSubject is the customer email subject for an order status.
func StatusSubject(status string) string {
	if s, ok := subjects[status]; ok {
		return s
	}
	return "Mise à jour de votre commande"
}

// StatusLabel is the French display name of an order status.
func StatusLabel(status string) string {
	if l, ok := labels[status]; ok {
		return l
	}
	return status
}

func (n *Notifier) render(name string, data map[string]any) (string, error) {
	data["Shop"] = n.storefront.Get()
	var buf bytes.Buffer
	if err := n.templates[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// OrderStatus builds the customer email for status.
func (n *Notifier) OrderStatus(o Order, status string) (outboxdomain.Message, error) {
	subject := fmt.Sprintf("%s - commande n°%s", StatusSubject(status), o.ID)
	body, err := n.render("order_status", map[string]any{"Subject": subject, "Order": o, "Status": status})
	if err != nil {
		return outboxdomain.Message{}, err
	}
	return outboxdomain.Message{
		Kind:      outboxdomain.KindOrderStatus,
		Recipient: o.CustomerEmail,
		Subject:   subject,
		HTMLBody:  body,
		Payload:   map[string]any{"order_id": o.ID, "status": status},
	}, nil
}

// SellerNewOrder builds the seller notification. ok is false when no seller
// address is configured.
func (n *Notifier) SellerNewOrder(o Order) (msg outboxdomain.Message, ok bool, err error) {
	seller := n.storefront.Get().SellerEmail
	if seller == "" {
		return msg, false, nil
	}
	subject := fmt.Sprintf("Nouvelle commande n°%s - %s", o.ID, Euro(o.Total))
	body, err := n.render("seller_order", map[string]any{"Subject": subject, "Order": o})
	if err != nil {
		return msg, false, err
	}
	return outboxdomain.Message{
		Kind:      outboxdomain.KindSellerOrder,
		Recipient: seller,
		Subject:   subject,
		HTMLBody:  body,
		Payload:   map[string]any{"order_id": o.ID},
	}, true, nil
}

// NewContact builds the operator notification for a contact form message.
func (n *Notifier) NewContact(c Contact) (msg outboxdomain.Message, ok bool, err error) {
	seller := n.storefront.Get().SellerEmail
	if seller == "" {
		return msg, false, nil
	}
	subject := fmt.Sprintf("Nouveau message de %s", c.Name)
	body, err := n.render("contact", map[string]any{"Subject": subject, "Contact": c})
	if err != nil {
		return msg, false, err
	}
	return outboxdomain.Message{
		Kind:      outboxdomain.KindContactNotice,
		Recipient: seller,
		Subject:   subject,
		HTMLBody:  body,
		Payload:   map[string]any{"email": c.Email},
	}, true, nil
}

// ThreadReply builds the customer email for an admin reply.
func (n *Notifier) ThreadReply(r Reply) (outboxdomain.Message, error) {
	subject := fmt.Sprintf("Re: %s", r.Subject)
	body, err := n.render("thread_reply", map[string]any{"Subject": subject, "Reply": r})
	if err != nil {
		return outboxdomain.Message{}, err
	}
	return outboxdomain.Message{
		Kind:      outboxdomain.KindThreadReply,
		Recipient: r.CustomerEmail,
		Subject:   subject,
		HTMLBody:  body,
		Payload:   map[string]any{"thread_id": r.ThreadID},
	}, nil
}

// Alert publishes an operator alert. Failures are logged only.
func (n *Notifier) Alert(ctx context.Context, subject, message string) {
	if n.alert == nil {
		return
	}
	if err := n.alert.Publish(ctx, subject, message); err != nil {
		obslogger.WithContext(ctx, n.log).Warn("operator alert failed", zap.String("subject", subject), zap.Error(err))
	}
}
