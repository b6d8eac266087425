// Package store defines the persisted records of the POS and the interfaces
// the services read and write them through. Implementations live in the
// memory and postgres subpackages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvoiceConflict is returned by InsertOrder when another order already
	// holds the same (branch, prefix, number).
	ErrInvoiceConflict = errors.New("invoice number already taken")
)

type Branch struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	Phone     string    `json:"phone"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

type Category struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SortOrder int32     `json:"sort_order"`
}

type Product struct {
	ID          uuid.UUID       `json:"id"`
	CategoryID  uuid.UUID       `json:"category_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BranchCharge is a flat charge a branch offers at checkout.
type BranchCharge struct {
	ID       uuid.UUID       `json:"id"`
	BranchID uuid.UUID       `json:"branch_id"`
	Kind     string          `json:"type"`
	Amount   decimal.Decimal `json:"amount"`
	IsActive bool            `json:"is_active"`
}

type User struct {
	ID       uuid.UUID
	Name     string
	Email    string
	Role     string
	PinHash  string
	IsActive bool
}

type OrderItem struct {
	ID           uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	Quantity     int32
	UnitPrice    decimal.Decimal
	LineDiscount decimal.Decimal
}

// LineTotal is unit price × quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt32(i.Quantity))
}

type Payment struct {
	Method      string
	Amount      decimal.Decimal
	Status      string
	PaidAt      time.Time
	CashGiven   decimal.NullDecimal
	ChangeGiven decimal.NullDecimal
}

type OrderCharge struct {
	Kind   string
	Amount decimal.Decimal
}

type OrderTax struct {
	Type    string
	Percent decimal.Decimal
	Amount  decimal.Decimal
}

type OrderCoupon struct {
	Code         string
	DiscountType string
	Value        decimal.Decimal
	Amount       decimal.Decimal
}

// Order is the persisted aggregate. It is written once and never updated.
type Order struct {
	ID                uuid.UUID
	BranchID          uuid.UUID
	BranchName        string
	InvoicePrefix     string
	InvoiceNumber     int64
	Source            string
	Status            string
	CustomerName      string
	CustomerPhone     string
	AggregatorOrderID string
	Notes             string
	Subtotal          decimal.Decimal
	ChargesTotal      decimal.Decimal
	DiscountTotal     decimal.Decimal
	TaxTotal          decimal.Decimal
	Total             decimal.Decimal
	CreatedBy         uuid.NullUUID
	CreatedAt         time.Time

	Items   []OrderItem
	Payment Payment
	Charges []OrderCharge
	Tax     *OrderTax
	Coupon  *OrderCoupon
}

// OrderSummary is the list view of an order.
type OrderSummary struct {
	ID            uuid.UUID       `json:"id"`
	BranchID      uuid.UUID       `json:"branch_id"`
	InvoicePrefix string          `json:"invoice_prefix"`
	InvoiceNumber int64           `json:"invoice_number"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"payment_method"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// DefaultListLimit applies when ListOrdersParams.Limit is not positive.
const DefaultListLimit = 50

type ListOrdersParams struct {
	BranchID uuid.UUID
	Limit    int32
	Offset   int32
}

// Catalog reads branches, products and their charges.
type Catalog interface {
	ListBranches(ctx context.Context) ([]Branch, error)
	GetBranch(ctx context.Context, id uuid.UUID) (Branch, error)
	ListCategories(ctx context.Context) ([]Category, error)
	ListProducts(ctx context.Context) ([]Product, error)
	CreateProduct(ctx context.Context, p Product) (Product, error)
	ListBranchCharges(ctx context.Context, branchID uuid.UUID) ([]BranchCharge, error)
}

// Orders persists orders and hands out invoice numbers.
type Orders interface {
	// FindLastOrder returns the highest invoice number issued for the
	// branch and prefix, or 0 when there is none.
	FindLastOrder(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error)
	// NextInvoiceNumber atomically increments and returns the counter for
	// the branch and prefix.
	NextInvoiceNumber(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error)
	InsertOrder(ctx context.Context, o Order) (Order, error)
	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, params ListOrdersParams) ([]OrderSummary, error)
}

// Users reads staff accounts for PIN login.
type Users interface {
	ListActiveUsers(ctx context.Context) ([]User, error)
}

// Store is everything the server needs from a backend.
type Store interface {
	Catalog
	Orders
	Users
	Ping(ctx context.Context) error
	Close()
}
