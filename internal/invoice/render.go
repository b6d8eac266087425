package invoice

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

var two = decimal.NewFromInt(2)

type LineView struct {
	Name         string          `json:"name"`
	Quantity     int32           `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineDiscount decimal.Decimal `json:"line_discount"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

type ChargeView struct {
	Kind   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type PaymentView struct {
	Method      string           `json:"method"`
	Amount      decimal.Decimal  `json:"amount"`
	CashGiven   *decimal.Decimal `json:"cash_given,omitempty"`
	ChangeGiven *decimal.Decimal `json:"change_given,omitempty"`
}

// View is the printable form of an order. It is derived data only.
type View struct {
	InvoiceID         string          `json:"invoice_id"`
	BranchName        string          `json:"branch_name"`
	IssuedAt          time.Time       `json:"issued_at"`
	CustomerName      string          `json:"customer_name,omitempty"`
	CustomerPhone     string          `json:"customer_phone,omitempty"`
	AggregatorOrderID string          `json:"aggregator_order_id,omitempty"`
	Notes             string          `json:"notes,omitempty"`
	Lines             []LineView      `json:"lines"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	Charges           []ChargeView    `json:"charges"`
	CouponCode        string          `json:"coupon_code,omitempty"`
	Discount          decimal.Decimal `json:"discount"`
	TaxPercent        decimal.Decimal `json:"tax_percent"`
	CGST              decimal.Decimal `json:"cgst"`
	SGST              decimal.Decimal `json:"sgst"`
	TaxTotal          decimal.Decimal `json:"tax_total"`
	Total             decimal.Decimal `json:"total"`
	AmountInWords     string          `json:"amount_in_words"`
	Payment           PaymentView     `json:"payment"`
}

// Render builds the invoice view of an order. The tax recorded on the order
// is split into equal CGST and SGST halves.
func Render(o store.Order) View {
	v := View{
		InvoiceID:         FormatID(o.InvoicePrefix, o.InvoiceNumber),
		BranchName:        o.BranchName,
		IssuedAt:          o.CreatedAt,
		CustomerName:      o.CustomerName,
		CustomerPhone:     o.CustomerPhone,
		AggregatorOrderID: o.AggregatorOrderID,
		Notes:             o.Notes,
		Subtotal:          o.Subtotal,
		Discount:          o.DiscountTotal,
		Total:             o.Total,
		AmountInWords:     AmountInWords(o.Total),
		Lines:             make([]LineView, 0, len(o.Items)),
		Charges:           make([]ChargeView, 0, len(o.Charges)),
	}

	for _, it := range o.Items {
		v.Lines = append(v.Lines, LineView{
			Name:         it.ProductName,
			Quantity:     it.Quantity,
			UnitPrice:    it.UnitPrice,
			LineDiscount: it.LineDiscount,
			LineTotal:    it.LineTotal(),
		})
	}

	for _, c := range o.Charges {
		v.Charges = append(v.Charges, ChargeView{Kind: c.Kind, Amount: c.Amount})
	}

	tax := o.TaxTotal
	if o.Tax != nil {
		tax = o.Tax.Amount
		v.TaxPercent = o.Tax.Percent
	}
	v.TaxTotal = tax
	v.CGST = tax.Div(two)
	v.SGST = tax.Div(two)

	if o.Coupon != nil {
		v.CouponCode = o.Coupon.Code
	}

	v.Payment = PaymentView{Method: o.Payment.Method, Amount: o.Payment.Amount}
	if o.Payment.CashGiven.Valid {
		cash := o.Payment.CashGiven.Decimal
		v.Payment.CashGiven = &cash
	}
	if o.Payment.ChangeGiven.Valid {
		change := o.Payment.ChangeGiven.Decimal
		v.Payment.ChangeGiven = &change
	}

	return v
}
