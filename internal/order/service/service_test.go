package service_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/notification"
	"github.com/smallbiznis/atelier/internal/order/domain"
	"github.com/smallbiznis/atelier/internal/order/repository"
	"github.com/smallbiznis/atelier/internal/order/service"
	outboxrepo "github.com/smallbiznis/atelier/internal/outbox/repository"
	outboxservice "github.com/smallbiznis/atelier/internal/outbox/service"
	"github.com/smallbiznis/atelier/internal/providers/email"
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/internal/workflow"
	"github.com/smallbiznis/atelier/pkg/db/dbtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	db  *gorm.DB
	svc domain.Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	db := dbtest.New(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))

	shop := config.DefaultStorefront()
	shop.SellerEmail = "atelier@example.com"
	storefront := config.NewStaticStorefront(shop)
	notifier, err := notification.New(notification.Params{Storefront: storefront, Log: zap.NewNop()})
	require.NoError(t, err)

	outbox := outboxservice.New(outboxservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
		Repo:  outboxrepo.Provide(),
		Email: &email.NoOpProvider{},
	})

	now := clk.Now()
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, name, category, price, stock, created_at, updated_at) VALUES
		 (11, 'Bracelet Sérénité', 'Bracelets', 25.00, 3, ?, ?),
		 (12, 'Collier Lune', 'Colliers', 18.50, 1, ?, ?),
		 (13, 'Bague Soleil', 'Bagues', 40.00, 0, ?, ?)`,
		now, now, now, now, now, now,
	).Error)

	svc := service.New(service.Params{
		DB:         db,
		Log:        zap.NewNop(),
		GenID:      node,
		Clock:      clk,
		Repo:       repository.Provide(),
		Outbox:     outbox,
		Notifier:   notifier,
		PDF:        pdf.New(),
		Storefront: storefront,
	})
	return fixture{db: db, svc: svc}
}

func customer() domain.Customer {
	return domain.Customer{
		Name:    "Camille Martin",
		Email:   "camille@example.com",
		Phone:   "06 12 34 56 78",
		Address: "3 rue des Lilas, 69003 Lyon",
	}
}

func stockOf(t *testing.T, db *gorm.DB, id int64) int64 {
	return dbtest.Count(t, db, `SELECT stock FROM products WHERE id = ?`, id)
}

func TestCheckoutCreatesOrderAtomically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer: customer(),
		Items: []domain.CheckoutItem{
			{ProductID: "11", Quantity: 1},
			{ProductID: "12", Quantity: 1},
			{ProductID: "11", Quantity: 1},
		},
		PaymentReference: "pi_123",
	})
	require.NoError(t, err)

	assert.True(t, got.Success)
	assert.Equal(t, 68.5, got.Order.Subtotal)
	assert.Equal(t, 0.0, got.Order.ShippingCost)
	assert.Equal(t, 68.5, got.Order.Total)
	assert.Equal(t, domain.StatusPending, got.Order.Status)
	assert.Equal(t, domain.PaymentUnpaid, got.Order.PaymentStatus)
	require.Len(t, got.Order.Items, 2)
	assert.Equal(t, 2, got.Order.Items[0].Quantity)
	assert.Equal(t, "Bracelet Sérénité", got.Order.Items[0].ProductName)

	assert.Equal(t, int64(1), stockOf(t, f.db, 11))
	assert.Equal(t, int64(0), stockOf(t, f.db, 12))
	dbtest.AssertCount(t, f.db, 2, `SELECT COUNT(*) FROM outbox_messages WHERE status = 'pending'`)
	dbtest.AssertCount(t, f.db, 1, `SELECT COUNT(*) FROM outbox_messages WHERE recipient = 'camille@example.com'`)
}

func TestCheckoutAppliesShippingTier(t *testing.T) {
	f := newFixture(t)

	got, err := f.svc.Checkout(context.Background(), domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "11", Quantity: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Order.Subtotal)
	assert.Equal(t, 3.9, got.Order.ShippingCost)
	assert.Equal(t, 28.9, got.Order.Total)
}

func TestCheckoutRejectsWholeCartOnShortStock(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Checkout(context.Background(), domain.CheckoutRequest{
		Customer: customer(),
		Items: []domain.CheckoutItem{
			{ProductID: "11", Quantity: 1},
			{ProductID: "12", Quantity: 2},
		},
	})
	require.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.EqualError(t, err, "Stock insuffisant pour Collier Lune")

	_, err = f.svc.Checkout(context.Background(), domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "999", Name: "Broche", Quantity: 1}},
	})
	assert.EqualError(t, err, "Stock insuffisant pour Broche")

	assert.Equal(t, int64(3), stockOf(t, f.db, 11))
	assert.Equal(t, int64(1), stockOf(t, f.db, 12))
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM orders`)
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM order_items`)
	dbtest.AssertCount(t, f.db, 0, `SELECT COUNT(*) FROM outbox_messages`)
}

func TestCheckoutValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c := customer()
	c.Email = "pas-un-email"
	_, err := f.svc.Checkout(ctx, domain.CheckoutRequest{Customer: c, Items: []domain.CheckoutItem{{ProductID: "11", Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	c = customer()
	c.Address = "   "
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{Customer: c, Items: []domain.CheckoutItem{{ProductID: "11", Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidCustomer)

	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{Customer: customer()})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)

	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{Customer: customer(), Items: []domain.CheckoutItem{{ProductID: "11", Quantity: 0}}})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)

	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{Customer: customer(), Items: []domain.CheckoutItem{{ProductID: "abc", Quantity: 1}}})
	assert.ErrorIs(t, err, domain.ErrInvalidItems)
}

func TestItemSnapshotsSurvivePriceChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "11", Quantity: 1}},
	})
	require.NoError(t, err)
	require.NoError(t, f.db.Exec(`UPDATE products SET price = 99, name = 'Renommé' WHERE id = 11`).Error)

	got, err := f.svc.Get(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got.Items[0].Price)
	assert.Equal(t, "Bracelet Sérénité", got.Items[0].ProductName)
	assert.InDelta(t, got.Subtotal+got.ShippingCost, got.Total, 0.001)

	_, err = f.svc.Get(ctx, "42")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateStatusRequiresConfirmation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "11", Quantity: 1}},
	})
	require.NoError(t, err)
	before := dbtest.Count(t, f.db, `SELECT COUNT(*) FROM outbox_messages`)

	resp, err := f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: created.OrderID, Status: domain.StatusShipped})
	require.NoError(t, err)
	assert.True(t, resp.ConfirmationRequired)
	assert.Contains(t, resp.Prompt, "expédiée")
	assert.Nil(t, resp.Order)

	got, err := f.svc.Get(ctx, created.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, got.Status)
	dbtest.AssertCount(t, f.db, before, `SELECT COUNT(*) FROM outbox_messages`)

	resp, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: created.OrderID, Status: domain.StatusShipped, Confirmed: true})
	require.NoError(t, err)
	assert.False(t, resp.ConfirmationRequired)
	assert.Equal(t, domain.StatusPending, resp.From)
	require.NotNil(t, resp.Order)
	assert.Equal(t, domain.StatusShipped, resp.Order.Status)
	dbtest.AssertCount(t, f.db, before+1, `SELECT COUNT(*) FROM outbox_messages`)

	resp, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: created.OrderID, Status: domain.StatusPending, Confirmed: true})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, resp.Order.Status)

	_, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: created.OrderID, Status: domain.StatusPending, Confirmed: true})
	assert.ErrorIs(t, err, workflow.ErrStatusUnchanged)

	_, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: created.OrderID, Status: "lost", Confirmed: true})
	assert.ErrorIs(t, err, workflow.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: "77", Status: domain.StatusShipped, Confirmed: true})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStatsAndPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer:         customer(),
		Items:            []domain.CheckoutItem{{ProductID: "11", Quantity: 2}},
		PaymentReference: "pi_abc",
	})
	require.NoError(t, err)
	_, err = f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "12", Quantity: 1}},
	})
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, domain.StatusRequest{ID: first.OrderID, Status: domain.StatusDelivered, Confirmed: true})
	require.NoError(t, err)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stats{TotalProducts: 3, OngoingOrders: 1, TotalRevenue: 50, OutOfStock: 2}, stats)

	require.NoError(t, f.svc.MarkPayment(ctx, "pi_abc", domain.PaymentPaid))
	got, err := f.svc.Get(ctx, first.OrderID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentPaid, got.PaymentStatus)

	assert.ErrorIs(t, f.svc.MarkPayment(ctx, "pi_unknown", domain.PaymentPaid), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.MarkPayment(ctx, "pi_abc", "refunded"), domain.ErrInvalidPaymentStatus)

	list, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Len(t, list[0].Items, 1)
}

func TestPackingSlip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Checkout(ctx, domain.CheckoutRequest{
		Customer: customer(),
		Items:    []domain.CheckoutItem{{ProductID: "11", Quantity: 1}},
	})
	require.NoError(t, err)

	r, err := f.svc.PackingSlip(ctx, created.OrderID)
	require.NoError(t, err)
	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(body[:4]))

	_, err = f.svc.PackingSlip(ctx, "404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
