package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/invoice"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/middleware"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/pricing"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/service"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	Quote(cart service.Cart, cashGiven decimal.NullDecimal) (*service.Quote, error)
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*service.CreateOrderResult, error)
	ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	logger zerolog.Logger
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, logger: logger.With().Str("component", "order_handler").Logger()}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted at /api/orders behind middleware.Authenticate.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Post("/quote", h.Quote)
	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
}

// --- Request / Response types ---

type orderItemRequest struct {
	ProductID    string          `json:"product_id" validate:"required,uuid"`
	Name         string          `json:"name" validate:"max=120"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Quantity     int32           `json:"quantity"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

type cartRequest struct {
	Items         []orderItemRequest `json:"items" validate:"dive"`
	Delivery      bool               `json:"delivery"`
	Packaging     bool               `json:"packaging"`
	OtherCharge   decimal.Decimal    `json:"other_charge"`
	DiscountType  string             `json:"discount_type" validate:"omitempty,oneof=percent absolute"`
	DiscountValue decimal.Decimal    `json:"discount_value"`
	CouponCode    string             `json:"coupon_code" validate:"max=40"`
}

type quoteRequest struct {
	cartRequest
	CashGiven decimal.NullDecimal `json:"cash_given"`
}

type createOrderRequest struct {
	cartRequest
	BranchID          string              `json:"branch_id" validate:"required,uuid"`
	PaymentMethod     string              `json:"payment_method" validate:"required"`
	CashGiven         decimal.NullDecimal `json:"cash_given"`
	CustomerName      string              `json:"customer_name" validate:"max=100"`
	CustomerPhone     string              `json:"customer_phone"`
	AggregatorOrderID string              `json:"aggregator_order_id" validate:"max=64"`
	Notes             string              `json:"notes" validate:"max=500"`
}

type orderItemResponse struct {
	ID           uuid.UUID       `json:"id"`
	ProductID    uuid.UUID       `json:"product_id"`
	Name         string          `json:"name"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

type paymentResponse struct {
	Method      string              `json:"method"`
	Amount      decimal.Decimal     `json:"amount"`
	Status      string              `json:"status"`
	PaidAt      time.Time           `json:"paid_at"`
	CashGiven   decimal.NullDecimal `json:"cash_given"`
	ChangeGiven decimal.NullDecimal `json:"change_given"`
}

type chargeResponse struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type taxResponse struct {
	Type    string          `json:"type"`
	Percent decimal.Decimal `json:"percent"`
	Amount  decimal.Decimal `json:"amount"`
}

type couponResponse struct {
	Code         string          `json:"code"`
	DiscountType string          `json:"discount_type"`
	Value        decimal.Decimal `json:"value"`
	Amount       decimal.Decimal `json:"amount"`
}

type orderResponse struct {
	ID                uuid.UUID           `json:"id"`
	BranchID          uuid.UUID           `json:"branch_id"`
	BranchName        string              `json:"branch_name"`
	InvoiceID         string              `json:"invoice_id"`
	InvoicePrefix     string              `json:"invoice_prefix"`
	InvoiceNumber     int64               `json:"invoice_number"`
	Source            string              `json:"source"`
	Status            string              `json:"status"`
	CustomerName      *string             `json:"customer_name"`
	CustomerPhone     *string             `json:"customer_phone"`
	AggregatorOrderID *string             `json:"aggregator_order_id"`
	Notes             *string             `json:"notes"`
	Subtotal          decimal.Decimal     `json:"subtotal"`
	ChargesTotal      decimal.Decimal     `json:"charges_total"`
	DiscountTotal     decimal.Decimal     `json:"discount_total"`
	TaxTotal          decimal.Decimal     `json:"tax_total"`
	Total             decimal.Decimal     `json:"total"`
	CreatedBy         *uuid.UUID          `json:"created_by"`
	CreatedAt         time.Time           `json:"created_at"`
	Items             []orderItemResponse `json:"items"`
	Payment           paymentResponse     `json:"payment"`
	Charges           []chargeResponse    `json:"charges"`
	Tax               *taxResponse        `json:"tax"`
	Coupon            *couponResponse     `json:"coupon"`
}

// orderDetailResponse pairs an order with its printable invoice.
type orderDetailResponse struct {
	Order   orderResponse `json:"order"`
	Invoice invoice.View  `json:"invoice"`
}

// orderListResponse wraps a list of orders with pagination metadata.
type orderListResponse struct {
	Orders []store.OrderSummary `json:"orders"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// --- Handlers ---

// Quote handles POST /api/orders/quote. It prices a cart without saving it.
func (h *OrderHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	q, err := h.svc.Quote(req.cart(), req.CashGiven)
	if err != nil {
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Msg("quote")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, q)
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	branchID, err := uuid.Parse(req.BranchID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch_id"})
		return
	}

	result, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		BranchID:          branchID,
		CreatedBy:         id,
		Cart:              req.cart(),
		PaymentMethod:     req.PaymentMethod,
		CashGiven:         req.CashGiven,
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		AggregatorOrderID: req.AggregatorOrderID,
		Notes:             req.Notes,
	})
	if err != nil {
		// Map known service errors to appropriate HTTP status codes.
		if isValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		h.logger.Error().Err(err).Str("branch_id", branchID.String()).Msg("create order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "order could not be saved, please retry"})
		return
	}

	writeJSON(w, http.StatusCreated, toOrderDetail(result))
}

// List handles GET /api/orders?branch_id=&limit=&offset=.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	// Parse pagination
	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	offset := 0
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	params := store.ListOrdersParams{Limit: int32(limit), Offset: int32(offset)}
	if s := r.URL.Query().Get("branch_id"); s != "" {
		branchID, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch_id"})
			return
		}
		params.BranchID = branchID
	}

	orders, err := h.svc.ListOrders(r.Context(), params)
	if err != nil {
		h.logger.Error().Err(err).Msg("list orders")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: nonNil(orders),
		Limit:  limit,
		Offset: offset,
	})
}

// Get handles GET /api/orders/{id}. The response carries the rendered invoice.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	result, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		h.logger.Error().Err(err).Str("order_id", orderID.String()).Msg("get order")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderDetail(result))
}

// --- Helpers ---

func (c cartRequest) cart() service.Cart {
	items := make([]service.CartItem, len(c.Items))
	for i, it := range c.Items {
		// product_id is validated as a uuid before this runs
		pid, _ := uuid.Parse(it.ProductID)
		items[i] = service.CartItem{
			ProductID:    pid,
			ProductName:  it.Name,
			UnitPrice:    it.UnitPrice,
			Quantity:     it.Quantity,
			LineDiscount: it.LineDiscount,
		}
	}
	return service.Cart{
		Items:       items,
		Delivery:    c.Delivery,
		Packaging:   c.Packaging,
		OtherCharge: c.OtherCharge,
		Discount:    pricing.Discount{Type: pricing.DiscountType(c.DiscountType), Value: c.DiscountValue},
		CouponCode:  c.CouponCode,
	}
}

// isValidationError reports whether the error is a client-side problem with
// the submission rather than a server failure.
func isValidationError(err error) bool {
	validationErrors := []error{
		service.ErrMissingBranch,
		service.ErrInvalidCart,
		service.ErrInvalidDiscount,
		service.ErrInvalidCharge,
		service.ErrInvalidPaymentMethod,
		service.ErrInvalidContact,
		service.ErrInvalidCash,
		service.ErrInsufficientPayment,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func toOrderDetail(res *service.CreateOrderResult) orderDetailResponse {
	return orderDetailResponse{Order: toOrderResponse(res.Order), Invoice: res.Invoice}
}

func toOrderResponse(o store.Order) orderResponse {
	resp := orderResponse{
		ID:                o.ID,
		BranchID:          o.BranchID,
		BranchName:        o.BranchName,
		InvoiceID:         invoice.FormatID(o.InvoicePrefix, o.InvoiceNumber),
		InvoicePrefix:     o.InvoicePrefix,
		InvoiceNumber:     o.InvoiceNumber,
		Source:            o.Source,
		Status:            o.Status,
		CustomerName:      optionalString(o.CustomerName),
		CustomerPhone:     optionalString(o.CustomerPhone),
		AggregatorOrderID: optionalString(o.AggregatorOrderID),
		Notes:             optionalString(o.Notes),
		Subtotal:          o.Subtotal,
		ChargesTotal:      o.ChargesTotal,
		DiscountTotal:     o.DiscountTotal,
		TaxTotal:          o.TaxTotal,
		Total:             o.Total,
		CreatedAt:         o.CreatedAt,
		Items:             make([]orderItemResponse, len(o.Items)),
		Charges:           make([]chargeResponse, len(o.Charges)),
		Payment: paymentResponse{
			Method:      o.Payment.Method,
			Amount:      o.Payment.Amount,
			Status:      o.Payment.Status,
			PaidAt:      o.Payment.PaidAt,
			CashGiven:   o.Payment.CashGiven,
			ChangeGiven: o.Payment.ChangeGiven,
		},
	}
	if o.CreatedBy.Valid {
		by := o.CreatedBy.UUID
		resp.CreatedBy = &by
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			ID:           it.ID,
			ProductID:    it.ProductID,
			Name:         it.ProductName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineDiscount: it.LineDiscount,
		}
	}
	for i, c := range o.Charges {
		resp.Charges[i] = chargeResponse{Type: c.Kind, Amount: c.Amount}
	}
	if o.Tax != nil {
		resp.Tax = &taxResponse{Type: o.Tax.Type, Percent: o.Tax.Percent, Amount: o.Tax.Amount}
	}
	if o.Coupon != nil {
		resp.Coupon = &couponResponse{
			Code:         o.Coupon.Code,
			DiscountType: o.Coupon.DiscountType,
			Value:        o.Coupon.Value,
			Amount:       o.Coupon.Amount,
		}
	}
	return resp
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
