package enum

// ── Group A: Persisted state (CHECK constrained in DB) ──

const (
	OrderStatusCompleted = "completed"
)

const (
	OrderSourceInStore = "in_store"
)

const (
	PaymentStatusPaid = "paid"
)

const (
	ChargeDelivery  = "delivery"
	ChargePackaging = "packaging"
	ChargeOther     = "other"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin  = "admin"
	UserRoleHelper = "helper"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash   = "Cash"
	PaymentMethodCard   = "Card"
	PaymentMethodUpi    = "Upi"
	PaymentMethodSwiggy = "Swiggy"
	PaymentMethodZomato = "Zomato"
)

const (
	DiscountTypePercent  = "percent"
	DiscountTypeAbsolute = "absolute"
)

const (
	TaxTypeGST = "GST"
)

// PaymentMethods lists the accepted payment methods in display order.
var PaymentMethods = []string{
	PaymentMethodCash,
	PaymentMethodCard,
	PaymentMethodUpi,
	PaymentMethodSwiggy,
	PaymentMethodZomato,
}

// IsPaymentMethod reports whether s is an accepted payment method.
func IsPaymentMethod(s string) bool {
	for _, m := range PaymentMethods {
		if m == s {
			return true
		}
	}
	return false
}

// IsAggregator reports whether the payment method is a third-party delivery
// platform whose orders carry an external order id.
func IsAggregator(method string) bool {
	return method == PaymentMethodSwiggy || method == PaymentMethodZomato
}
