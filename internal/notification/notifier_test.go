package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/notification"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeAlert struct {
	subjects []string
	err      error
}

func (f *fakeAlert) Publish(ctx context.Context, subject, message string) error {
	f.subjects = append(f.subjects, subject)
	return f.err
}

func newNotifier(t *testing.T, seller string, a *fakeAlert) *notification.Notifier {
	t.Helper()
	shop := config.DefaultStorefront()
	shop.SellerEmail = seller
	p := notification.Params{
		Storefront: config.NewStaticStorefront(shop),
		Log:        zap.NewNop(),
	}
	if a != nil {
		p.Alert = a
	}
	n, err := notification.New(p)
	require.NoError(t, err)
	return n
}

func sampleOrder() notification.Order {
	return notification.Order{
		ID:              "1789",
		CustomerName:    "Camille",
		CustomerEmail:   "camille@example.com",
		CustomerAddress: "3 rue des Lilas, Lyon",
		Subtotal:        43,
		ShippingCost:    5.9,
		Total:           48.9,
		Items: []notification.OrderLine{
			{Name: "Bracelet Sérénité", Quantity: 1, Price: 25},
			{Name: "Boucles d'oreilles Papillon", Quantity: 1, Price: 18},
		},
		CreatedAt: time.Date(2026, 4, 3, 14, 30, 0, 0, time.UTC),
	}
}

func TestOrderStatusEmail(t *testing.T) {
	n := newNotifier(t, "", nil)

	cases := map[string]string{
		"pending":   "en attente de préparation",
		"confirmed": "est confirmée",
		"shipped":   "vient d'être expédiée",
		"delivered": "a été livrée",
	}
	for status, phrase := range cases {
		t.Run(status, func(t *testing.T) {
			msg, err := n.OrderStatus(sampleOrder(), status)
			require.NoError(t, err)
			assert.Equal(t, outboxdomain.KindOrderStatus, msg.Kind)
			assert.Equal(t, "camille@example.com", msg.Recipient)
			assert.Contains(t, msg.Subject, "n°1789")
			assert.Contains(t, msg.HTMLBody, phrase)
			assert.Contains(t, msg.HTMLBody, "48,90 €")
			assert.Contains(t, msg.HTMLBody, "Bracelet Sérénité")
			assert.Equal(t, status, msg.Payload["status"])
		})
	}
}

func TestOrderStatusEscapesCustomerInput(t *testing.T) {
	n := newNotifier(t, "", nil)
	o := sampleOrder()
	o.CustomerName = "<script>alert(1)</script>"
	msg, err := n.OrderStatus(o, "pending")
	require.NoError(t, err)
	assert.NotContains(t, msg.HTMLBody, "<script>")
}

func TestSellerNotificationsNeedSellerEmail(t *testing.T) {
	n := newNotifier(t, "", nil)
	_, ok, err := n.SellerNewOrder(sampleOrder())
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = n.NewContact(notification.Contact{Name: "Léa", Email: "lea@example.com", Message: "Bonjour"})
	require.NoError(t, err)
	assert.False(t, ok)

	n = newNotifier(t, "atelier@example.com", nil)
	msg, ok, err := n.SellerNewOrder(sampleOrder())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "atelier@example.com", msg.Recipient)
	assert.Equal(t, "Nouvelle commande n°1789 - 48,90 €", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "03/04/2026 à 14:30")

	msg, ok, err = n.NewContact(notification.Contact{Name: "Léa", Email: "lea@example.com", Message: "Bonjour"})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Nouveau message de Léa", msg.Subject)
	assert.Contains(t, msg.HTMLBody, "lea@example.com")
}

func TestThreadReply(t *testing.T) {
	n := newNotifier(t, "", nil)
	msg, err := n.ThreadReply(notification.Reply{
		ThreadID:      "55",
		Subject:       "Message de Léa",
		CustomerName:  "Léa",
		CustomerEmail: "lea@example.com",
		Body:          "Merci pour votre message !",
	})
	require.NoError(t, err)
	assert.Equal(t, "Re: Message de Léa", msg.Subject)
	assert.Equal(t, outboxdomain.KindThreadReply, msg.Kind)
	assert.Contains(t, msg.HTMLBody, "Merci pour votre message !")
}

func TestAlertSwallowsErrors(t *testing.T) {
	a := &fakeAlert{err: errors.New("sns down")}
	n := newNotifier(t, "", a)
	n.Alert(context.Background(), "Nouvelle commande", "48,90 €")
	assert.Equal(t, []string{"Nouvelle commande"}, a.subjects)
}

func TestEuro(t *testing.T) {
	assert.Equal(t, "25,00 €", notification.Euro(25))
	assert.Equal(t, "3,90 €", notification.Euro(3.9))
}
