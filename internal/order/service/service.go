package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/atelier/internal/cache"
	"github.com/smallbiznis/atelier/internal/clock"
	"github.com/smallbiznis/atelier/internal/config"
	"github.com/smallbiznis/atelier/internal/notification"
	obslogger "github.com/smallbiznis/atelier/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/atelier/internal/observability/metrics"
	"github.com/smallbiznis/atelier/internal/order/domain"
	outboxdomain "github.com/smallbiznis/atelier/internal/outbox/domain"
	"github.com/smallbiznis/atelier/internal/providers/pdf"
	"github.com/smallbiznis/atelier/internal/shipping"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// catalogNamespace is invalidated after checkout since stock is part of
// every cached product.
const catalogNamespace = "catalog"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Outbox     outboxdomain.Service
	Notifier   *notification.Notifier
	PDF        pdf.Provider
	Storefront *config.StorefrontHolder
	Metrics    *obsmetrics.Metrics `optional:"true"`
	Cache      *cache.Loader       `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	outbox     outboxdomain.Service
	notifier   *notification.Notifier
	pdf        pdf.Provider
	storefront *config.StorefrontHolder
	metrics    *obsmetrics.Metrics
	cache      *cache.Loader
	validate   *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("order.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		outbox:     p.Outbox,
		notifier:   p.Notifier,
		pdf:        p.PDF,
		storefront: p.Storefront,
		metrics:    p.Metrics,
		cache:      p.Cache,
		validate:   validator.New(),
	}
}

type line struct {
	productID int64
	name      string
	quantity  int
}

// Checkout creates the order in one transaction: stock is checked for every
// line before anything is written, each decrement is guarded and the
// customer and seller emails are queued with the order.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (*domain.CheckoutResponse, error) {
	req = normalizeCheckout(req)
	if err := s.validateCheckout(req); err != nil {
		return nil, err
	}
	lines, err := mergeLines(req.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := domain.Order{
		ID:              s.genID.Generate().Int64(),
		CustomerName:    req.Customer.Name,
		CustomerEmail:   req.Customer.Email,
		CustomerAddress: req.Customer.Address,
		Status:          domain.StatusPending,
		PaymentStatus:   domain.PaymentUnpaid,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if req.Customer.Phone != "" {
		phone := req.Customer.Phone
		order.CustomerPhone = &phone
	}
	if req.PaymentReference != "" {
		ref := req.PaymentReference
		order.PaymentReference = &ref
	}

	var items []domain.OrderItem
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids := make([]int64, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.productID)
		}
		rows, err := s.repo.ProductsForCheckout(ctx, tx, ids)
		if err != nil {
			return err
		}
		byID := make(map[int64]domain.StockRow, len(rows))
		for _, row := range rows {
			byID[row.ID] = row
		}

		quoteLines := make([]shipping.Line, 0, len(lines))
		for _, l := range lines {
			row, ok := byID[l.productID]
			if !ok || row.Stock < l.quantity {
				return &domain.StockError{ProductName: stockName(row, l)}
			}
			quoteLines = append(quoteLines, shipping.Line{Price: row.Price, Quantity: l.quantity})
			items = append(items, domain.OrderItem{
				ID:          s.genID.Generate().Int64(),
				OrderID:     order.ID,
				ProductID:   row.ID,
				ProductName: row.Name,
				Quantity:    l.quantity,
				Price:       shipping.Round2(row.Price),
			})
		}

		quote := shipping.QuoteCart(quoteLines)
		order.Subtotal = quote.Subtotal
		order.ShippingCost = quote.ShippingCost
		order.Total = quote.Total

		if err := s.repo.Insert(ctx, tx, &order); err != nil {
			return err
		}
		for i := range items {
			if err := s.repo.InsertItem(ctx, tx, &items[i]); err != nil {
				return err
			}
			ok, err := s.repo.DecrementStock(ctx, tx, items[i].ProductID, items[i].Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return &domain.StockError{ProductName: items[i].ProductName}
			}
		}

		msgs, err := s.checkoutMessages(order, items)
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, msgs...)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientStock) {
			s.metrics.RecordCheckoutRejected(ctx, "insufficient_stock")
		}
		return nil, err
	}

	s.cache.Invalidate(ctx, catalogNamespace)
	s.metrics.RecordOrderCreated(ctx, order.Total)
	obslogger.WithContext(ctx, s.log).Info("order created",
		zap.Int64("order_id", order.ID),
		zap.Int("items", len(items)),
		zap.Float64("total", order.Total),
	)
	s.notifier.Alert(ctx, "Nouvelle commande",
		fmt.Sprintf("Commande n°%d de %s : %s", order.ID, order.CustomerName, notification.Euro(order.Total)))

	resp := toResponse(&order, items)
	return &domain.CheckoutResponse{
		Success: true,
		OrderID: resp.ID,
		Message: "Commande créée avec succès",
		Order:   resp,
	}, nil
}

func (s *Service) checkoutMessages(order domain.Order, items []domain.OrderItem) ([]outboxdomain.Message, error) {
	view := notificationView(&order, items)
	msgs := make([]outboxdomain.Message, 0, 2)
	seller, ok, err := s.notifier.SellerNewOrder(view)
	if err != nil {
		return nil, err
	}
	if ok {
		msgs = append(msgs, seller)
	}
	customer, err := s.notifier.OrderStatus(view, domain.StatusPending)
	if err != nil {
		return nil, err
	}
	return append(msgs, customer), nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	orderID, err := parseID(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return s.load(ctx, s.db, orderID)
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	orders, err := s.repo.List(ctx, s.db)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	items, err := s.repo.Items(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byOrder := make(map[int64][]domain.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	resp := make([]domain.Response, 0, len(orders))
	for i := range orders {
		resp = append(resp, toResponse(&orders[i], byOrder[orders[i].ID]))
	}
	return resp, nil
}

// UpdateStatus runs the confirmation gate. Unconfirmed requests return the
// prompt and write nothing; confirmed ones persist the status together with
// the customer email.
func (s *Service) UpdateStatus(ctx context.Context, req domain.StatusRequest) (*domain.StatusResponse, error) {
	orderID, err := parseID(req.ID)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	target := strings.TrimSpace(req.Status)

	current, err := s.repo.FindByID(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}

	decision, err := domain.Gate.Decide(current.Status, target, req.Confirmed)
	if err != nil {
		return nil, err
	}
	if !decision.Apply {
		return &domain.StatusResponse{
			ConfirmationRequired: true,
			Prompt:               decision.Prompt,
			From:                 decision.From,
			To:                   decision.To,
		}, nil
	}

	now := s.clock.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.UpdateStatus(ctx, tx, orderID, target, now); err != nil {
			return err
		}
		items, err := s.repo.Items(ctx, tx, []int64{orderID})
		if err != nil {
			return err
		}
		msg, err := s.notifier.OrderStatus(notificationView(current, items), target)
		if err != nil {
			return err
		}
		return s.outbox.Enqueue(ctx, tx, msg)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordStatusChange(ctx, "order", target)
	obslogger.WithContext(ctx, s.log).Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", decision.From),
		zap.String("to", decision.To),
	)

	updated, err := s.load(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}
	return &domain.StatusResponse{From: decision.From, To: decision.To, Order: updated}, nil
}

// MarkPayment records the payment outcome on the order carrying reference.
func (s *Service) MarkPayment(ctx context.Context, reference, status string) error {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return domain.ErrInvalidID
	}
	switch status {
	case domain.PaymentUnpaid, domain.PaymentPaid, domain.PaymentFailed:
	default:
		return domain.ErrInvalidPaymentStatus
	}

	n, err := s.repo.UpdatePaymentStatus(ctx, s.db, reference, status, s.clock.Now())
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	obslogger.WithContext(ctx, s.log).Info("order payment updated",
		zap.String("payment_reference", reference),
		zap.String("payment_status", status),
	)
	return nil
}

func (s *Service) Stats(ctx context.Context) (domain.Stats, error) {
	stats, err := s.repo.Stats(ctx, s.db)
	if err != nil {
		return domain.Stats{}, err
	}
	stats.TotalRevenue = shipping.Round2(stats.TotalRevenue)
	return stats, nil
}

func (s *Service) PackingSlip(ctx context.Context, id string) (io.Reader, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	shop := s.storefront.Get()
	slip := pdf.PackingSlipData{
		ShopName:        shop.ShopName,
		ShopURL:         shop.PublicURL,
		SellerEmail:     shop.SellerEmail,
		OrderID:         order.ID,
		OrderDate:       order.CreatedAt,
		Status:          notification.StatusLabel(order.Status),
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		CustomerPhone:   order.CustomerPhone,
		CustomerAddress: order.CustomerAddress,
		Subtotal:        notification.Euro(order.Subtotal),
		ShippingCost:    notification.Euro(order.ShippingCost),
		Total:           notification.Euro(order.Total),
	}
	for _, item := range order.Items {
		slip.Items = append(slip.Items, pdf.PackingSlipItem{
			Name:      item.ProductName,
			Quantity:  item.Quantity,
			UnitPrice: notification.Euro(item.Price),
			Amount:    notification.Euro(shipping.Round2(item.Price * float64(item.Quantity))),
		})
	}
	return s.pdf.PackingSlip(ctx, slip)
}

func (s *Service) load(ctx context.Context, db *gorm.DB, id int64) (*domain.Response, error) {
	order, err := s.repo.FindByID(ctx, db, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, domain.ErrNotFound
	}
	items, err := s.repo.Items(ctx, db, []int64{id})
	if err != nil {
		return nil, err
	}
	resp := toResponse(order, items)
	return &resp, nil
}

func (s *Service) validateCheckout(req domain.CheckoutRequest) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	ns := fe.StructNamespace()
	switch {
	case strings.Contains(ns, ".Customer."):
		return &domain.FieldError{Field: "customer." + strings.ToLower(fe.Field()), Err: domain.ErrInvalidCustomer}
	case strings.Contains(ns, ".Items"):
		return &domain.FieldError{Field: "items", Err: domain.ErrInvalidItems}
	default:
		return &domain.FieldError{Field: strings.ToLower(fe.Field()), Err: domain.ErrInvalidCustomer}
	}
}

func normalizeCheckout(req domain.CheckoutRequest) domain.CheckoutRequest {
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Email = strings.TrimSpace(req.Customer.Email)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	req.Customer.Address = strings.TrimSpace(req.Customer.Address)
	req.PaymentReference = strings.TrimSpace(req.PaymentReference)
	return req
}

// mergeLines folds repeated products into one line keeping cart order.
func mergeLines(items []domain.CheckoutItem) ([]line, error) {
	out := make([]line, 0, len(items))
	index := make(map[int64]int, len(items))
	for _, item := range items {
		id, err := parseID(item.ProductID)
		if err != nil {
			return nil, &domain.FieldError{Field: "items.id", Err: domain.ErrInvalidItems}
		}
		if i, ok := index[id]; ok {
			out[i].quantity += item.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, line{productID: id, name: strings.TrimSpace(item.Name), quantity: item.Quantity})
	}
	return out, nil
}

func stockName(row domain.StockRow, l line) string {
	switch {
	case row.Name != "":
		return row.Name
	case l.name != "":
		return l.name
	default:
		return strconv.FormatInt(l.productID, 10)
	}
}

func notificationView(o *domain.Order, items []domain.OrderItem) notification.Order {
	view := notification.Order{
		ID:              strconv.FormatInt(o.ID, 10),
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerAddress: o.CustomerAddress,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		CreatedAt:       o.CreatedAt,
	}
	if o.CustomerPhone != nil {
		view.CustomerPhone = *o.CustomerPhone
	}
	for _, item := range items {
		view.Items = append(view.Items, notification.OrderLine{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return view
}

func toResponse(o *domain.Order, items []domain.OrderItem) domain.Response {
	resp := domain.Response{
		ID:              strconv.FormatInt(o.ID, 10),
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerAddress: o.CustomerAddress,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		Items:           make([]domain.ItemResponse, 0, len(items)),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
	if o.CustomerPhone != nil {
		resp.CustomerPhone = *o.CustomerPhone
	}
	if o.PaymentReference != nil {
		resp.PaymentReference = *o.PaymentReference
	}
	for _, item := range items {
		resp.Items = append(resp.Items, domain.ItemResponse{
			ID:          strconv.FormatInt(item.ID, 10),
			ProductID:   strconv.FormatInt(item.ProductID, 10),
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return resp
}

func parseID(value string) (int64, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id.Int64() <= 0 {
		return 0, domain.ErrInvalidID
	}
	return id.Int64(), nil
}
