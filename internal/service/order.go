package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/enum"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/invoice"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/obs"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/pricing"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/ws"
)

// maxInvoiceRetries is the number of allocate+insert attempts before a
// duplicate invoice number is surfaced as a persistence failure.
const maxInvoiceRetries = 2

const defaultStoreTimeout = 5 * time.Second

// Errors returned by the order service.
var (
	ErrMissingBranch        = errors.New("branch is required")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrInvalidContact       = errors.New("phone number must be exactly 10 digits")
	ErrPersistence          = errors.New("order could not be saved")
	ErrSequencingRace       = errors.New("invoice number already taken")

	ErrInvalidCart         = pricing.ErrInvalidCart
	ErrInvalidDiscount     = pricing.ErrInvalidDiscount
	ErrInvalidCharge       = pricing.ErrInvalidCharge
	ErrInvalidCash         = pricing.ErrInvalidCash
	ErrInsufficientPayment = pricing.ErrInsufficientPayment
	ErrBranchNotFound      = invoice.ErrBranchNotFound
)

var validate = validator.New()

// validPhone reports whether phone is exactly ten ASCII digits.
func validPhone(phone string) bool {
	return validate.Var(phone, "len=10,number") == nil
}

// PersistenceError is a failed or timed out store call. It matches both
// ErrPersistence and the underlying cause.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrPersistence, e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error { return []error{ErrPersistence, e.Err} }

// OrderStore defines the store methods needed by the order service.
// Satisfied by store.Store implementations; narrow interface for testability.
type OrderStore interface {
	InsertOrder(ctx context.Context, o store.Order) (store.Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error)
	ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error)
}

// InvoiceAllocator hands out invoice numbers. Satisfied by *invoice.Allocator.
type InvoiceAllocator interface {
	Allocate(ctx context.Context, branchID uuid.UUID) (invoice.Number, error)
}

// Publisher pushes events to live screens. Satisfied by *ws.Hub.
type Publisher interface {
	Publish(branchID uuid.UUID, eventType string, payload any)
}

// CartItem is a product as the client captured it: the unit price and name
// at the time of sale are kept on the order regardless of later catalog edits.
type CartItem struct {
	ProductID    uuid.UUID
	ProductName  string
	UnitPrice    decimal.Decimal
	Quantity     int32
	LineDiscount decimal.Decimal
}

// Cart is the priced part of a submission.
type Cart struct {
	Items       []CartItem
	Delivery    bool
	Packaging   bool
	OtherCharge decimal.Decimal
	Discount    pricing.Discount
	CouponCode  string
}

// CreateOrderRequest is the input for creating an order.
type CreateOrderRequest struct {
	BranchID          uuid.UUID
	CreatedBy         auth.Identity
	Cart              Cart
	PaymentMethod     string
	CashGiven         decimal.NullDecimal
	CustomerName      string
	CustomerPhone     string
	AggregatorOrderID string
	Notes             string
}

// CreateOrderResult is the persisted order with its invoice.
type CreateOrderResult struct {
	Order   store.Order
	Invoice invoice.View
}

// Quote is a priced cart that has not been submitted.
type Quote struct {
	pricing.Result
	TaxPercent decimal.Decimal  `json:"tax_percent"`
	ChangeDue  *decimal.Decimal `json:"change_due,omitempty"`
}

// OrderCreatedEvent is published to the branch feed after an order is saved.
type OrderCreatedEvent struct {
	ID            uuid.UUID       `json:"id"`
	BranchID      uuid.UUID       `json:"branch_id"`
	InvoiceID     string          `json:"invoice_id"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CreatedBy     string          `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// OrderService handles order business logic.
type OrderService struct {
	orders       OrderStore
	allocator    InvoiceAllocator
	policy       pricing.Policy
	publisher    Publisher
	metrics      *obs.OrderMetrics
	storeTimeout time.Duration
	now          func() time.Time
	logger       zerolog.Logger
}

type Option func(*OrderService)

func WithPublisher(p Publisher) Option {
	return func(s *OrderService) { s.publisher = p }
}

func WithMetrics(m *obs.OrderMetrics) Option {
	return func(s *OrderService) { s.metrics = m }
}

// WithStoreTimeout bounds every store call made by the service.
func WithStoreTimeout(d time.Duration) Option {
	return func(s *OrderService) {
		if d > 0 {
			s.storeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *OrderService) { s.now = now }
}

// NewOrderService creates a new OrderService.
func NewOrderService(orders OrderStore, allocator InvoiceAllocator, policy pricing.Policy, logger zerolog.Logger, opts ...Option) *OrderService {
	s := &OrderService{
		orders:       orders,
		allocator:    allocator,
		policy:       policy,
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
		logger:       logger.With().Str("component", "order_service").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Quote prices a cart. When cashGiven is set the change due is included,
// and a short payment is an ErrInsufficientPayment.
func (s *OrderService) Quote(cart Cart, cashGiven decimal.NullDecimal) (*Quote, error) {
	res, err := s.price(cart)
	if err != nil {
		return nil, err
	}
	q := &Quote{Result: res, TaxPercent: s.policy.TaxPercent()}
	if cashGiven.Valid {
		change, err := pricing.ChangeDue(res.Total, cashGiven.Decimal)
		if err != nil {
			return nil, err
		}
		q.ChangeDue = &change
	}
	return q, nil
}

func (s *OrderService) price(cart Cart) (pricing.Result, error) {
	lines := make([]pricing.CartLine, len(cart.Items))
	for i, it := range cart.Items {
		lines[i] = pricing.CartLine{
			ProductID:    it.ProductID.String(),
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			LineDiscount: it.LineDiscount,
		}
	}
	mods := pricing.Modifiers{
		Charges:    s.policy.ChargesFor(cart.Delivery, cart.Packaging, cart.OtherCharge),
		Discount:   cart.Discount,
		CouponCode: cart.CouponCode,
	}
	return pricing.ComputeTotals(lines, mods, s.policy)
}

// CreateOrder validates and prices the submission, allocates an invoice
// number and persists the order with its payment, charges, tax and coupon.
// A duplicate invoice number is retried with a fresh allocation up to
// maxInvoiceRetries attempts.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*CreateOrderResult, error) {
	order, err := s.assemble(req)
	if err != nil {
		s.recordFailure("validation")
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= maxInvoiceRetries; attempt++ {
		num, err := s.allocate(ctx, req.BranchID)
		if err != nil {
			s.recordFailure("persistence")
			return nil, err
		}
		order.InvoicePrefix = num.Prefix
		order.InvoiceNumber = num.Value

		saved, err := s.insert(ctx, order)
		if err == nil {
			s.afterCreate(saved, req.CreatedBy)
			return &CreateOrderResult{Order: saved, Invoice: invoice.Render(saved)}, nil
		}
		if !errors.Is(err, store.ErrInvoiceConflict) {
			s.logger.Error().Err(err).
				Str("branch_id", req.BranchID.String()).
				Str("invoice_id", num.String()).
				Msg("insert order failed")
			s.recordFailure("persistence")
			return nil, &PersistenceError{Op: "insert order", Err: err}
		}

		lastErr = fmt.Errorf("%w: %s", ErrSequencingRace, num)
		s.logger.Warn().
			Str("invoice_id", num.String()).
			Int("attempt", attempt).
			Msg("invoice number taken, reallocating")
		if s.metrics != nil && attempt < maxInvoiceRetries {
			s.metrics.InvoiceRetries.Inc()
		}
	}

	s.logger.Error().Err(lastErr).Str("branch_id", req.BranchID.String()).Msg("invoice allocation kept colliding")
	s.recordFailure("sequencing")
	return nil, &PersistenceError{Op: "allocate invoice number", Err: lastErr}
}

// assemble runs every validation and builds the order without an invoice
// number. Nothing is persisted.
func (s *OrderService) assemble(req CreateOrderRequest) (store.Order, error) {
	if req.BranchID == uuid.Nil {
		return store.Order{}, ErrMissingBranch
	}

	res, err := s.price(req.Cart)
	if err != nil {
		return store.Order{}, err
	}

	if !enum.IsPaymentMethod(req.PaymentMethod) {
		return store.Order{}, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.PaymentMethod)
	}

	phone := strings.TrimSpace(req.CustomerPhone)
	if phone != "" && !validPhone(phone) {
		return store.Order{}, ErrInvalidContact
	}

	payment := store.Payment{
		Method: req.PaymentMethod,
		Amount: res.Total,
		Status: enum.PaymentStatusPaid,
		PaidAt: s.now(),
	}
	if req.PaymentMethod == enum.PaymentMethodCash {
		cash := req.CashGiven.Decimal
		change, err := pricing.ChangeDue(res.Total, cash)
		if err != nil {
			return store.Order{}, fmt.Errorf("%w: total %s, cash given %s", err, res.Total, cash)
		}
		payment.CashGiven = decimal.NewNullDecimal(cash)
		payment.ChangeGiven = decimal.NewNullDecimal(change)
	}

	items := make([]store.OrderItem, len(req.Cart.Items))
	for i, it := range req.Cart.Items {
		items[i] = store.OrderItem{
			ProductID:    it.ProductID,
			ProductName:  it.ProductName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineDiscount: it.LineDiscount,
		}
	}

	var charges []store.OrderCharge
	for _, c := range s.policy.ChargesFor(req.Cart.Delivery, req.Cart.Packaging, req.Cart.OtherCharge) {
		if c.Amount.IsZero() {
			continue
		}
		charges = append(charges, store.OrderCharge{Kind: string(c.Kind), Amount: c.Amount})
	}

	var tax *store.OrderTax
	if res.TaxAmount.IsPositive() {
		tax = &store.OrderTax{Type: enum.TaxTypeGST, Percent: s.policy.TaxPercent(), Amount: res.TaxAmount}
	}

	var coupon *store.OrderCoupon
	code := strings.TrimSpace(req.Cart.CouponCode)
	if code != "" || req.Cart.Discount.Value.IsPositive() {
		coupon = &store.OrderCoupon{
			Code:         code,
			DiscountType: string(req.Cart.Discount.Type),
			Value:        req.Cart.Discount.Value,
			Amount:       res.Discount,
		}
	}

	createdBy := uuid.NullUUID{}
	if req.CreatedBy.UserID != uuid.Nil {
		createdBy = uuid.NullUUID{UUID: req.CreatedBy.UserID, Valid: true}
	}

	return store.Order{
		BranchID:          req.BranchID,
		Source:            enum.OrderSourceInStore,
		Status:            enum.OrderStatusCompleted,
		CustomerName:      strings.TrimSpace(req.CustomerName),
		CustomerPhone:     phone,
		AggregatorOrderID: strings.TrimSpace(req.AggregatorOrderID),
		Notes:             strings.TrimSpace(req.Notes),
		Subtotal:          res.Subtotal,
		ChargesTotal:      res.Charges,
		DiscountTotal:     res.Discount,
		TaxTotal:          res.TaxAmount,
		Total:             res.Total,
		CreatedBy:         createdBy,
		Items:             items,
		Payment:           payment,
		Charges:           charges,
		Tax:               tax,
		Coupon:            coupon,
	}, nil
}

func (s *OrderService) allocate(ctx context.Context, branchID uuid.UUID) (invoice.Number, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	num, err := s.allocator.Allocate(ctx, branchID)
	if err != nil {
		return invoice.Number{}, &PersistenceError{Op: "allocate invoice number", Err: err}
	}
	return num, nil
}

func (s *OrderService) insert(ctx context.Context, o store.Order) (store.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return s.orders.InsertOrder(ctx, o)
}

func (s *OrderService) afterCreate(o store.Order, by auth.Identity) {
	id := invoice.FormatID(o.InvoicePrefix, o.InvoiceNumber)
	s.logger.Info().
		Str("order_id", o.ID.String()).
		Str("invoice_id", id).
		Str("total", o.Total.StringFixed(2)).
		Str("payment_method", o.Payment.Method).
		Msg("order created")

	if s.metrics != nil {
		s.metrics.Created.WithLabelValues(o.InvoicePrefix, o.Payment.Method).Inc()
		s.metrics.Revenue.WithLabelValues(o.InvoicePrefix).Add(o.Total.InexactFloat64())
	}
	if s.publisher != nil {
		s.publisher.Publish(o.BranchID, ws.EventOrderCreated, OrderCreatedEvent{
			ID:            o.ID,
			BranchID:      o.BranchID,
			InvoiceID:     id,
			Total:         o.Total,
			PaymentMethod: o.Payment.Method,
			CreatedBy:     by.Name,
			CreatedAt:     o.CreatedAt,
		})
	}
}

func (s *OrderService) recordFailure(reason string) {
	if s.metrics != nil {
		s.metrics.Failed.WithLabelValues(reason).Inc()
	}
}

// GetOrder loads an order and renders its invoice.
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*CreateOrderResult, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	o, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, &PersistenceError{Op: "get order", Err: err}
	}
	return &CreateOrderResult{Order: o, Invoice: invoice.Render(o)}, nil
}

// ListOrders returns order summaries, newest first.
func (s *OrderService) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	orders, err := s.orders.ListOrders(ctx, params)
	if err != nil {
		return nil, &PersistenceError{Op: "list orders", Err: err}
	}
	return orders, nil
}
