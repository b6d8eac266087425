package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/invoice"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/obs"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/pricing"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

// --- Mock implementations ---

type mockOrderStore struct {
	insertOrderFn func(ctx context.Context, o store.Order) (store.Order, error)
	getOrderFn    func(ctx context.Context, id uuid.UUID) (store.Order, error)
	listOrdersFn  func(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error)
}

func (m *mockOrderStore) InsertOrder(ctx context.Context, o store.Order) (store.Order, error) {
	return m.insertOrderFn(ctx, o)
}
func (m *mockOrderStore) GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error) {
	return m.getOrderFn(ctx, id)
}
func (m *mockOrderStore) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
	return m.listOrdersFn(ctx, params)
}

type mockAllocator struct {
	allocateFn func(ctx context.Context, branchID uuid.UUID) (invoice.Number, error)
	calls      int
}

func (m *mockAllocator) Allocate(ctx context.Context, branchID uuid.UUID) (invoice.Number, error) {
	m.calls++
	return m.allocateFn(ctx, branchID)
}

type publishedEvent struct {
	branchID  uuid.UUID
	eventType string
	payload   any
}

type mockPublisher struct {
	events []publishedEvent
}

func (m *mockPublisher) Publish(branchID uuid.UUID, eventType string, payload any) {
	m.events = append(m.events, publishedEvent{branchID, eventType, payload})
}

// --- Test helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var fixedNow = time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC)

// sequentialAllocator hands out KK-JUB-1, KK-JUB-2, ...
func sequentialAllocator() *mockAllocator {
	n := int64(0)
	return &mockAllocator{allocateFn: func(ctx context.Context, branchID uuid.UUID) (invoice.Number, error) {
		n++
		return invoice.Number{Prefix: "KK-JUB", Value: n}, nil
	}}
}

// echoStore saves whatever it is given.
func echoStore() *mockOrderStore {
	return &mockOrderStore{
		insertOrderFn: func(ctx context.Context, o store.Order) (store.Order, error) {
			o.ID = uuid.New()
			o.CreatedAt = fixedNow
			o.BranchName = "Jubilee Hills"
			return o, nil
		},
	}
}

func newTestService(orders OrderStore, alloc InvoiceAllocator, opts ...Option) *OrderService {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewOrderService(orders, alloc, pricing.DefaultPolicy(), zerolog.Nop(), opts...)
}

// baseRequest is the worked example: ₹1000 of kunafa, delivery and
// packaging, 10% off, paid in cash.
func baseRequest() CreateOrderRequest {
	return CreateOrderRequest{
		BranchID:  uuid.New(),
		CreatedBy: auth.Identity{UserID: uuid.New(), Name: "Ravi", Role: "helper"},
		Cart: Cart{
			Items: []CartItem{{
				ProductID:   uuid.New(),
				ProductName: "Nutella Kunafa",
				UnitPrice:   dec("500"),
				Quantity:    2,
			}},
			Delivery:  true,
			Packaging: true,
			Discount:  pricing.Discount{Type: pricing.DiscountPercent, Value: dec("10")},
		},
		PaymentMethod: "Cash",
		CashGiven:     decimal.NewNullDecimal(dec("1200")),
		CustomerName:  "Aisha",
		CustomerPhone: "9876543210",
	}
}

// --- Tests ---

func TestCreateOrder_Success(t *testing.T) {
	pub := &mockPublisher{}
	svc := newTestService(echoStore(), sequentialAllocator(), WithPublisher(pub))

	res, err := svc.CreateOrder(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := res.Order

	if !o.Subtotal.Equal(dec("1000")) {
		t.Errorf("subtotal: got %s, want 1000", o.Subtotal)
	}
	if !o.DiscountTotal.Equal(dec("100")) {
		t.Errorf("discount: got %s, want 100", o.DiscountTotal)
	}
	if !o.TaxTotal.Equal(dec("162")) {
		t.Errorf("tax: got %s, want 162", o.TaxTotal)
	}
	if !o.Total.Equal(dec("1112")) {
		t.Errorf("total: got %s, want 1112", o.Total)
	}
	if o.InvoicePrefix != "KK-JUB" || o.InvoiceNumber != 1 {
		t.Errorf("invoice: got %s-%d", o.InvoicePrefix, o.InvoiceNumber)
	}
	if o.Status != "completed" || o.Source != "in_store" {
		t.Errorf("status/source: got %s/%s", o.Status, o.Source)
	}
	if !o.CreatedBy.Valid {
		t.Error("created_by should be set from the identity")
	}

	// payment
	if o.Payment.Method != "Cash" || o.Payment.Status != "paid" {
		t.Errorf("payment: got %+v", o.Payment)
	}
	if !o.Payment.Amount.Equal(dec("1112")) {
		t.Errorf("payment amount: got %s", o.Payment.Amount)
	}
	if !o.Payment.ChangeGiven.Valid || !o.Payment.ChangeGiven.Decimal.Equal(dec("88")) {
		t.Errorf("change: got %+v, want 88", o.Payment.ChangeGiven)
	}
	if !o.Payment.PaidAt.Equal(fixedNow) {
		t.Errorf("paid_at: got %v", o.Payment.PaidAt)
	}

	// charges, tax, coupon
	if len(o.Charges) != 2 {
		t.Fatalf("charges: got %d, want 2", len(o.Charges))
	}
	if o.Charges[0].Kind != "delivery" || !o.Charges[0].Amount.Equal(dec("30")) {
		t.Errorf("delivery charge: got %+v", o.Charges[0])
	}
	if o.Charges[1].Kind != "packaging" || !o.Charges[1].Amount.Equal(dec("20")) {
		t.Errorf("packaging charge: got %+v", o.Charges[1])
	}
	if o.Tax == nil || o.Tax.Type != "GST" || !o.Tax.Percent.Equal(dec("18")) {
		t.Errorf("tax row: got %+v", o.Tax)
	}
	if o.Coupon == nil || !o.Coupon.Amount.Equal(dec("100")) || o.Coupon.DiscountType != "percent" {
		t.Errorf("coupon row: got %+v", o.Coupon)
	}

	// items keep the captured price
	if len(o.Items) != 1 || o.Items[0].ProductName != "Nutella Kunafa" || !o.Items[0].UnitPrice.Equal(dec("500")) {
		t.Errorf("items: got %+v", o.Items)
	}

	// invoice view
	if res.Invoice.InvoiceID != "KK-JUB-00001" {
		t.Errorf("invoice id: got %s", res.Invoice.InvoiceID)
	}
	if !res.Invoice.CGST.Equal(dec("81")) || !res.Invoice.SGST.Equal(dec("81")) {
		t.Errorf("gst split: got %s/%s", res.Invoice.CGST, res.Invoice.SGST)
	}
	if res.Invoice.AmountInWords != "One Thousand One Hundred Twelve Rupees Only" {
		t.Errorf("words: got %q", res.Invoice.AmountInWords)
	}

	// event
	if len(pub.events) != 1 {
		t.Fatalf("events: got %d, want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.eventType != "order.created" || ev.branchID != o.BranchID {
		t.Errorf("event: got %+v", ev)
	}
	payload, ok := ev.payload.(OrderCreatedEvent)
	if !ok || payload.InvoiceID != "KK-JUB-00001" || payload.CreatedBy != "Ravi" {
		t.Errorf("event payload: got %+v", ev.payload)
	}
}

func TestCreateOrder_InsufficientCash(t *testing.T) {
	orders := &mockOrderStore{insertOrderFn: func(ctx context.Context, o store.Order) (store.Order, error) {
		t.Fatal("store should not be called")
		return store.Order{}, nil
	}}
	alloc := sequentialAllocator()
	svc := newTestService(orders, alloc)

	req := baseRequest()
	req.CashGiven = decimal.NewNullDecimal(dec("1000"))

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
	if alloc.calls != 0 {
		t.Errorf("allocator called %d times, want 0", alloc.calls)
	}
}

func TestCreateOrder_CashMissingIsInsufficient(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	req := baseRequest()
	req.CashGiven = decimal.NullDecimal{}

	_, err := svc.CreateOrder(context.Background(), req)
	if !errors.Is(err, ErrInsufficientPayment) {
		t.Fatalf("expected ErrInsufficientPayment, got %v", err)
	}
}

func TestCreateOrder_NonCashHasNoChange(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	req := baseRequest()
	req.PaymentMethod = "Swiggy"
	req.CashGiven = decimal.NullDecimal{}
	req.AggregatorOrderID = " SWG-7781 "

	res, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Payment.CashGiven.Valid || res.Order.Payment.ChangeGiven.Valid {
		t.Errorf("non-cash payment should have no cash fields: %+v", res.Order.Payment)
	}
	if res.Order.AggregatorOrderID != "SWG-7781" {
		t.Errorf("aggregator id: got %q", res.Order.AggregatorOrderID)
	}
}

func TestCreateOrder_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CreateOrderRequest)
		wantErr error
	}{
		{"missing branch", func(r *CreateOrderRequest) { r.BranchID = uuid.Nil }, ErrMissingBranch},
		{"empty cart", func(r *CreateOrderRequest) { r.Cart.Items = nil }, ErrInvalidCart},
		{"zero quantity", func(r *CreateOrderRequest) { r.Cart.Items[0].Quantity = 0 }, ErrInvalidCart},
		{"negative price", func(r *CreateOrderRequest) { r.Cart.Items[0].UnitPrice = dec("-1") }, ErrInvalidCart},
		{"unknown payment method", func(r *CreateOrderRequest) { r.PaymentMethod = "Cheque" }, ErrInvalidPaymentMethod},
		{"short phone", func(r *CreateOrderRequest) { r.CustomerPhone = "98765" }, ErrInvalidContact},
		{"phone with letters", func(r *CreateOrderRequest) { r.CustomerPhone = "98765abcde" }, ErrInvalidContact},
		{"phone with sign", func(r *CreateOrderRequest) { r.CustomerPhone = "-987654321" }, ErrInvalidContact},
		{"phone with spaces", func(r *CreateOrderRequest) { r.CustomerPhone = "98765 4321" }, ErrInvalidContact},
		{"negative percent", func(r *CreateOrderRequest) {
			r.Cart.Discount = pricing.Discount{Type: pricing.DiscountPercent, Value: dec("-5")}
		}, ErrInvalidDiscount},
		{"price with three decimals", func(r *CreateOrderRequest) { r.Cart.Items[0].UnitPrice = dec("10.005") }, ErrInvalidCart},
		{"oversized other charge", func(r *CreateOrderRequest) { r.Cart.OtherCharge = dec("100000000") }, ErrInvalidCharge},
		{"negative other charge", func(r *CreateOrderRequest) { r.Cart.OtherCharge = dec("-5") }, ErrInvalidCharge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alloc := sequentialAllocator()
			svc := newTestService(echoStore(), alloc)
			req := baseRequest()
			tt.mutate(&req)

			_, err := svc.CreateOrder(context.Background(), req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if errors.Is(err, ErrPersistence) {
				t.Errorf("validation error should not be a persistence error: %v", err)
			}
			if alloc.calls != 0 {
				t.Errorf("allocator called on invalid input")
			}
		})
	}
}

func TestCreateOrder_InvalidCartIndex(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	req := baseRequest()
	req.Cart.Items = append(req.Cart.Items, CartItem{ProductID: uuid.New(), UnitPrice: dec("10"), Quantity: 0})

	_, err := svc.CreateOrder(context.Background(), req)
	var cartErr *pricing.InvalidCartError
	if !errors.As(err, &cartErr) {
		t.Fatalf("expected InvalidCartError, got %v", err)
	}
	if cartErr.Index != 1 {
		t.Errorf("index: got %d, want 1", cartErr.Index)
	}
}

func TestCreateOrder_EmptyPhoneAllowed(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	req := baseRequest()
	req.CustomerPhone = "  "

	res, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.CustomerPhone != "" {
		t.Errorf("phone: got %q", res.Order.CustomerPhone)
	}
}

func TestCreateOrder_NoDiscountNoCoupon(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	req := baseRequest()
	req.Cart.Discount = pricing.Discount{}
	req.Cart.Delivery = false
	req.Cart.Packaging = false

	res, err := svc.CreateOrder(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Order.Coupon != nil {
		t.Errorf("coupon: got %+v, want nil", res.Order.Coupon)
	}
	if len(res.Order.Charges) != 0 {
		t.Errorf("charges: got %+v, want none", res.Order.Charges)
	}
	// 1000 + 180 GST
	if !res.Order.Total.Equal(dec("1180")) {
		t.Errorf("total: got %s, want 1180", res.Order.Total)
	}
}

func TestCreateOrder_RetriesOnInvoiceConflict(t *testing.T) {
	inserts := 0
	orders := echoStore()
	echo := orders.insertOrderFn
	orders.insertOrderFn = func(ctx context.Context, o store.Order) (store.Order, error) {
		inserts++
		if inserts == 1 {
			return store.Order{}, store.ErrInvoiceConflict
		}
		return echo(ctx, o)
	}

	reg := prometheus.NewRegistry()
	metrics := obs.NewOrderMetrics("pos", reg)
	alloc := sequentialAllocator()
	svc := newTestService(orders, alloc, WithMetrics(metrics))

	res, err := svc.CreateOrder(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if alloc.calls != 2 {
		t.Errorf("allocate calls: got %d, want 2", alloc.calls)
	}
	if res.Order.InvoiceNumber != 2 {
		t.Errorf("invoice number: got %d, want 2", res.Order.InvoiceNumber)
	}
	if got := testutil.ToFloat64(metrics.InvoiceRetries); got != 1 {
		t.Errorf("retries metric: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Created.WithLabelValues("KK-JUB", "Cash")); got != 1 {
		t.Errorf("created metric: got %v, want 1", got)
	}
}

func TestCreateOrder_ConflictExhausted(t *testing.T) {
	orders := &mockOrderStore{insertOrderFn: func(ctx context.Context, o store.Order) (store.Order, error) {
		return store.Order{}, store.ErrInvoiceConflict
	}}
	alloc := sequentialAllocator()
	pub := &mockPublisher{}
	svc := newTestService(orders, alloc, WithPublisher(pub))

	_, err := svc.CreateOrder(context.Background(), baseRequest())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, ErrSequencingRace) {
		t.Errorf("expected ErrSequencingRace in chain, got %v", err)
	}
	if alloc.calls != maxInvoiceRetries {
		t.Errorf("allocate calls: got %d, want %d", alloc.calls, maxInvoiceRetries)
	}
	if len(pub.events) != 0 {
		t.Error("no event should be published for a failed order")
	}
}

func TestCreateOrder_StoreFailure(t *testing.T) {
	dbErr := errors.New("connection reset")
	orders := &mockOrderStore{insertOrderFn: func(ctx context.Context, o store.Order) (store.Order, error) {
		return store.Order{}, dbErr
	}}
	alloc := sequentialAllocator()
	svc := newTestService(orders, alloc)

	_, err := svc.CreateOrder(context.Background(), baseRequest())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, dbErr) {
		t.Errorf("expected cause in chain, got %v", err)
	}
	if errors.Is(err, ErrSequencingRace) {
		t.Error("plain store failure is not a sequencing race")
	}
	if alloc.calls != 1 {
		t.Errorf("non-conflict failures should not retry, allocate calls: %d", alloc.calls)
	}
	var pe *PersistenceError
	if !errors.As(err, &pe) || pe.Op != "insert order" {
		t.Errorf("expected PersistenceError for insert, got %#v", err)
	}
}

func TestCreateOrder_StoreTimeout(t *testing.T) {
	orders := &mockOrderStore{insertOrderFn: func(ctx context.Context, o store.Order) (store.Order, error) {
		<-ctx.Done()
		return store.Order{}, ctx.Err()
	}}
	svc := newTestService(orders, sequentialAllocator(), WithStoreTimeout(20*time.Millisecond))

	start := time.Now()
	_, err := svc.CreateOrder(context.Background(), baseRequest())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded in chain, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("store call was not bounded: %v", elapsed)
	}
}

func TestCreateOrder_AllocatorFailure(t *testing.T) {
	alloc := &mockAllocator{allocateFn: func(ctx context.Context, branchID uuid.UUID) (invoice.Number, error) {
		return invoice.Number{}, errors.New("sequence table locked")
	}}
	svc := newTestService(echoStore(), alloc)

	_, err := svc.CreateOrder(context.Background(), baseRequest())
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
	if !strings.Contains(err.Error(), "allocate invoice number") {
		t.Errorf("error should name the step: %v", err)
	}
}

func TestQuote(t *testing.T) {
	svc := newTestService(echoStore(), sequentialAllocator())
	cart := baseRequest().Cart

	q, err := svc.Quote(cart, decimal.NewNullDecimal(dec("1200")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Total.Equal(dec("1112")) {
		t.Errorf("total: got %s, want 1112", q.Total)
	}
	if !q.Charges.Equal(dec("50")) {
		t.Errorf("charges: got %s, want 50", q.Charges)
	}
	if q.ChangeDue == nil || !q.ChangeDue.Equal(dec("88")) {
		t.Errorf("change: got %v, want 88", q.ChangeDue)
	}
	if !q.TaxPercent.Equal(dec("18")) {
		t.Errorf("tax percent: got %s", q.TaxPercent)
	}

	again, err := svc.Quote(cart, decimal.NewNullDecimal(dec("1200")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Total.String() != q.Total.String() || again.TaxAmount.String() != q.TaxAmount.String() {
		t.Error("quote is not idempotent")
	}

	if _, err := svc.Quote(cart, decimal.NewNullDecimal(dec("1000"))); !errors.Is(err, ErrInsufficientPayment) {
		t.Errorf("expected ErrInsufficientPayment, got %v", err)
	}

	noCash, err := svc.Quote(cart, decimal.NullDecimal{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if noCash.ChangeDue != nil {
		t.Errorf("change should be omitted without cash given")
	}
}

func TestGetOrder(t *testing.T) {
	id := uuid.New()
	orders := &mockOrderStore{getOrderFn: func(ctx context.Context, got uuid.UUID) (store.Order, error) {
		if got != id {
			return store.Order{}, store.ErrNotFound
		}
		return store.Order{
			ID:            id,
			InvoicePrefix: "KK-GAC",
			InvoiceNumber: 42,
			Total:         dec("590"),
			TaxTotal:      dec("90"),
		}, nil
	}}
	svc := newTestService(orders, sequentialAllocator())

	res, err := svc.GetOrder(context.Background(), id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Invoice.InvoiceID != "KK-GAC-00042" {
		t.Errorf("invoice id: got %s", res.Invoice.InvoiceID)
	}

	_, err = svc.GetOrder(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if errors.Is(err, ErrPersistence) {
		t.Error("not found should not be reported as a persistence failure")
	}
}

func TestListOrders(t *testing.T) {
	branchID := uuid.New()
	orders := &mockOrderStore{listOrdersFn: func(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
		if params.BranchID != branchID || params.Limit != 20 {
			t.Errorf("params: got %+v", params)
		}
		return []store.OrderSummary{{InvoicePrefix: "KK-JUB", InvoiceNumber: 3}}, nil
	}}
	svc := newTestService(orders, sequentialAllocator())

	got, err := svc.ListOrders(context.Background(), store.ListOrdersParams{BranchID: branchID, Limit: 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("orders: got %d, want 1", len(got))
	}

	failing := &mockOrderStore{listOrdersFn: func(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
		return nil, errors.New("boom")
	}}
	svc = newTestService(failing, sequentialAllocator())
	if _, err := svc.ListOrders(context.Background(), store.ListOrdersParams{}); !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence, got %v", err)
	}
}
