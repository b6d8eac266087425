package pricing

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// RoundingMode controls how percent discounts are rounded to whole units.
type RoundingMode int

const (
	RoundHalfUp RoundingMode = iota
	RoundHalfEven
	RoundDown
)

// ParseRoundingMode maps a config value to a RoundingMode.
func ParseRoundingMode(s string) (RoundingMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "half_up":
		return RoundHalfUp, nil
	case "half_even":
		return RoundHalfEven, nil
	case "down":
		return RoundDown, nil
	}
	return RoundHalfUp, errors.Errorf("unknown rounding mode %q", s)
}

func (m RoundingMode) String() string {
	switch m {
	case RoundHalfEven:
		return "half_even"
	case RoundDown:
		return "down"
	default:
		return "half_up"
	}
}

func (m RoundingMode) round(d decimal.Decimal) decimal.Decimal {
	switch m {
	case RoundHalfEven:
		return d.RoundBank(0)
	case RoundDown:
		return d.RoundFloor(0)
	default:
		return roundHalfUp(d)
	}
}

// roundHalfUp rounds to whole currency units, halves away from zero.
// Amounts reaching it are never negative, so this matches half-up.
func roundHalfUp(d decimal.Decimal) decimal.Decimal {
	return d.Round(0)
}

// Policy holds the business rules the calculator applies.
type Policy struct {
	TaxRate             decimal.Decimal
	TaxAppliesToCharges bool
	DiscountRounding    RoundingMode
	DeliveryFee         decimal.Decimal
	PackagingFee        decimal.Decimal
}

// DefaultPolicy is 18% GST on the discounted subtotal only, half-up
// discount rounding, ₹30 delivery and ₹20 packaging.
func DefaultPolicy() Policy {
	return Policy{
		TaxRate:          decimal.RequireFromString("0.18"),
		DiscountRounding: RoundHalfUp,
		DeliveryFee:      decimal.NewFromInt(30),
		PackagingFee:     decimal.NewFromInt(20),
	}
}

// Validate checks the policy values are usable.
func (p Policy) Validate() error {
	if p.TaxRate.IsNegative() || p.TaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.Errorf("tax rate %s outside [0,1]", p.TaxRate)
	}
	if p.DeliveryFee.IsNegative() || p.PackagingFee.IsNegative() {
		return errors.New("flat fees must be >= 0")
	}
	return nil
}

// ChargesFor builds the charge list for the delivery and packaging flags,
// plus an optional other charge.
func (p Policy) ChargesFor(delivery, packaging bool, other decimal.Decimal) []Charge {
	var charges []Charge
	if delivery {
		charges = append(charges, Charge{Kind: ChargeDelivery, Amount: p.DeliveryFee})
	}
	if packaging {
		charges = append(charges, Charge{Kind: ChargePackaging, Amount: p.PackagingFee})
	}
	if !other.IsZero() {
		charges = append(charges, Charge{Kind: ChargeOther, Amount: other})
	}
	return charges
}

// TaxPercent is the tax rate expressed as a percentage, e.g. 18.
func (p Policy) TaxPercent() decimal.Decimal {
	return p.TaxRate.Mul(hundred)
}
