// Package pricing turns a cart and its modifiers into a totals breakdown.
//
// Everything here is pure: no I/O, no shared state. The same inputs always
// produce the same Result.
package pricing

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/enum"
)

// Errors returned by the calculator.
var (
	ErrInvalidCart         = errors.New("invalid cart")
	ErrInvalidDiscount     = errors.New("invalid discount")
	ErrInvalidCharge       = errors.New("invalid charge")
	ErrInvalidCash         = errors.New("invalid cash amount")
	ErrInsufficientPayment = errors.New("cash given is less than total")
)

var hundred = decimal.NewFromInt(100)

// MaxAmount is the largest money value accepted, matching NUMERIC(12,2).
var MaxAmount = decimal.RequireFromString("99999999.99")

// checkAmount returns why v is not a storable money value, or "" if it is.
func checkAmount(v decimal.Decimal) string {
	switch {
	case v.IsNegative():
		return "must be >= 0"
	case !v.Equal(v.Round(2)):
		return "must have at most 2 decimal places"
	case v.GreaterThan(MaxAmount):
		return "must be at most " + MaxAmount.StringFixed(2)
	}
	return ""
}

// InvalidCartError describes why a cart was rejected. Index is the offending
// line, or -1 when the cart as a whole is invalid.
type InvalidCartError struct {
	Index  int
	Reason string
}

func (e *InvalidCartError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid cart: %s", e.Reason)
	}
	return fmt.Sprintf("invalid cart: item[%d]: %s", e.Index, e.Reason)
}

func (e *InvalidCartError) Unwrap() error { return ErrInvalidCart }

// ChargeKind is the closed set of flat charges an order can carry.
type ChargeKind string

const (
	ChargeDelivery  ChargeKind = enum.ChargeDelivery
	ChargePackaging ChargeKind = enum.ChargePackaging
	ChargeOther     ChargeKind = enum.ChargeOther
)

// Valid reports whether k is one of the known charge kinds.
func (k ChargeKind) Valid() bool {
	switch k {
	case ChargeDelivery, ChargePackaging, ChargeOther:
		return true
	}
	return false
}

// DiscountType selects how Discount.Value is interpreted.
type DiscountType string

const (
	DiscountNone     DiscountType = ""
	DiscountPercent  DiscountType = enum.DiscountTypePercent
	DiscountAbsolute DiscountType = enum.DiscountTypeAbsolute
)

// CartLine is a product captured into the cart at selection time.
// LineDiscount is recorded on the order item; it does not reduce the subtotal.
type CartLine struct {
	ProductID    string
	UnitPrice    decimal.Decimal
	Quantity     int32
	LineDiscount decimal.Decimal
}

// Charge is a flat fee added on top of the subtotal.
type Charge struct {
	Kind   ChargeKind
	Amount decimal.Decimal
}

// Discount is an order-level reduction of the subtotal.
type Discount struct {
	Type  DiscountType
	Value decimal.Decimal
}

// Modifiers are the order-level adjustments applied to a cart.
type Modifiers struct {
	Charges    []Charge
	Discount   Discount
	CouponCode string
}

// Result is the totals breakdown for a cart.
type Result struct {
	Subtotal  decimal.Decimal `json:"subtotal"`
	Charges   decimal.Decimal `json:"charges"`
	Discount  decimal.Decimal `json:"discount"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
	Total     decimal.Decimal `json:"total"`
}

// ComputeTotals prices the cart under the given policy.
//
//	subtotal = Σ unit_price × quantity
//	discount = min(percent ? round(subtotal × value / 100) : value, subtotal)
//	tax      = round((subtotal − discount [+ charges]) × tax_rate)
//	total    = max(0, subtotal + charges − discount + tax)
func ComputeTotals(lines []CartLine, mods Modifiers, p Policy) (Result, error) {
	subtotal, err := Subtotal(lines)
	if err != nil {
		return Result{}, err
	}

	charges := decimal.Zero
	for i, c := range mods.Charges {
		if !c.Kind.Valid() {
			return Result{}, errors.Wrapf(ErrInvalidCharge, "charge[%d]: unknown kind %q", i, c.Kind)
		}
		if reason := checkAmount(c.Amount); reason != "" {
			return Result{}, errors.Wrapf(ErrInvalidCharge, "charge[%d]: amount %s", i, reason)
		}
		charges = charges.Add(c.Amount)
	}
	if charges.GreaterThan(MaxAmount) {
		return Result{}, errors.Wrap(ErrInvalidCharge, "charges exceed maximum amount")
	}

	discount, err := discountAmount(subtotal, mods.Discount, p.DiscountRounding)
	if err != nil {
		return Result{}, err
	}

	taxBase := subtotal.Sub(discount)
	if p.TaxAppliesToCharges {
		taxBase = taxBase.Add(charges)
	}
	tax := roundHalfUp(taxBase.Mul(p.TaxRate))

	total := subtotal.Add(charges).Sub(discount).Add(tax)
	if total.IsNegative() {
		total = decimal.Zero
	}

	return Result{
		Subtotal:  subtotal,
		Charges:   charges,
		Discount:  discount,
		TaxAmount: tax,
		Total:     total,
	}, nil
}

// Subtotal validates the cart lines and sums unit_price × quantity.
func Subtotal(lines []CartLine) (decimal.Decimal, error) {
	if len(lines) == 0 {
		return decimal.Zero, &InvalidCartError{Index: -1, Reason: "items are required"}
	}
	sum := decimal.Zero
	for i, l := range lines {
		if l.Quantity < 1 {
			return decimal.Zero, &InvalidCartError{Index: i, Reason: "quantity must be >= 1"}
		}
		if reason := checkAmount(l.UnitPrice); reason != "" {
			return decimal.Zero, &InvalidCartError{Index: i, Reason: "unit price " + reason}
		}
		if reason := checkAmount(l.LineDiscount); reason != "" {
			return decimal.Zero, &InvalidCartError{Index: i, Reason: "line discount " + reason}
		}
		sum = sum.Add(l.UnitPrice.Mul(decimal.NewFromInt32(l.Quantity)))
	}
	if sum.GreaterThan(MaxAmount) {
		return decimal.Zero, &InvalidCartError{Index: -1, Reason: "subtotal exceeds maximum amount"}
	}
	return sum, nil
}

func discountAmount(subtotal decimal.Decimal, d Discount, mode RoundingMode) (decimal.Decimal, error) {
	if reason := checkAmount(d.Value); reason != "" {
		return decimal.Zero, errors.Wrap(ErrInvalidDiscount, "value "+reason)
	}

	var amount decimal.Decimal
	switch d.Type {
	case DiscountNone:
		if !d.Value.IsZero() {
			return decimal.Zero, errors.Wrap(ErrInvalidDiscount, "discount type is required")
		}
		return decimal.Zero, nil
	case DiscountPercent:
		amount = mode.round(subtotal.Mul(d.Value).Div(hundred))
	case DiscountAbsolute:
		amount = d.Value
	default:
		return decimal.Zero, errors.Wrapf(ErrInvalidDiscount, "unknown type %q", d.Type)
	}

	return decimal.Min(amount, subtotal), nil
}

// ChangeDue returns the change owed for a cash payment.
func ChangeDue(total, cashGiven decimal.Decimal) (decimal.Decimal, error) {
	if reason := checkAmount(cashGiven); reason != "" {
		return decimal.Zero, errors.Wrap(ErrInvalidCash, "cash given "+reason)
	}
	if cashGiven.LessThan(total) {
		return decimal.Zero, ErrInsufficientPayment
	}
	return cashGiven.Sub(total), nil
}
