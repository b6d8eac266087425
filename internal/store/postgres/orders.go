package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

func (s *Store) FindLastOrder(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error) {
	var last int64
	err := s.pool.QueryRow(ctx, `
		SELECT invoice_number
		FROM orders
		WHERE branch_id = $1 AND invoice_prefix = $2
		ORDER BY invoice_number DESC
		LIMIT 1
	`, branchID, prefix).Scan(&last)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "find last order")
	}
	return last, nil
}

// NextInvoiceNumber bumps the (branch, prefix) counter in one statement.
// A new counter starts after the highest number already on an order so
// rows written before the counter existed keep their sequence.
func (s *Store) NextInvoiceNumber(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO invoice_sequences (branch_id, prefix, last_number)
		VALUES ($1, $2, COALESCE(
			(SELECT MAX(invoice_number) FROM orders WHERE branch_id = $1 AND invoice_prefix = $2), 0
		) + 1)
		ON CONFLICT (branch_id, prefix)
		DO UPDATE SET last_number = invoice_sequences.last_number + 1, updated_at = now()
		RETURNING last_number
	`, branchID, prefix).Scan(&n)
	if err != nil {
		return 0, errors.Wrap(err, "next invoice number")
	}
	return n, nil
}

// InsertOrder writes the order and all of its child rows in one transaction.
func (s *Store) InsertOrder(ctx context.Context, o store.Order) (store.Order, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return store.Order{}, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO orders (
			id, branch_id, invoice_prefix, invoice_number, source, status,
			customer_name, customer_phone, aggregator_order_id, notes,
			subtotal, charges_total, discount_total, tax_total, total, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`,
		o.ID, o.BranchID, o.InvoicePrefix, o.InvoiceNumber, o.Source, o.Status,
		o.CustomerName, o.CustomerPhone, o.AggregatorOrderID, o.Notes,
		o.Subtotal, o.ChargesTotal, o.DiscountTotal, o.TaxTotal, o.Total, o.CreatedBy,
	).Scan(&o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err, invoiceConstraint) {
			return store.Order{}, store.ErrInvoiceConflict
		}
		if isForeignKeyViolation(err) {
			return store.Order{}, errors.Wrap(store.ErrNotFound, "insert order: branch or user")
		}
		return store.Order{}, errors.Wrap(err, "insert order")
	}

	batch := &pgx.Batch{}
	o.Items = append([]store.OrderItem(nil), o.Items...)
	for i := range o.Items {
		if o.Items[i].ID == uuid.Nil {
			o.Items[i].ID = uuid.New()
		}
		it := o.Items[i]
		batch.Queue(`
			INSERT INTO order_items (id, order_id, product_id, product_name, quantity, unit_price, line_discount)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, it.ID, o.ID, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice, it.LineDiscount)
	}

	p := o.Payment
	batch.Queue(`
		INSERT INTO payments (order_id, method, amount, status, paid_at, cash_given, change_given)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, p.Method, p.Amount, p.Status, p.PaidAt, p.CashGiven, p.ChangeGiven)

	for _, c := range o.Charges {
		batch.Queue(`
			INSERT INTO order_charges (order_id, type, amount)
			VALUES ($1, $2, $3)
		`, o.ID, c.Kind, c.Amount)
	}

	if o.Tax != nil {
		batch.Queue(`
			INSERT INTO order_taxes (order_id, type, percent, amount)
			VALUES ($1, $2, $3, $4)
		`, o.ID, o.Tax.Type, o.Tax.Percent, o.Tax.Amount)
	}

	if o.Coupon != nil {
		batch.Queue(`
			INSERT INTO order_coupons (order_id, code, discount_type, value, amount)
			VALUES ($1, $2, $3, $4, $5)
		`, o.ID, o.Coupon.Code, o.Coupon.DiscountType, o.Coupon.Value, o.Coupon.Amount)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		if isForeignKeyViolation(err) {
			return store.Order{}, errors.Wrap(store.ErrNotFound, "insert order lines: product")
		}
		return store.Order{}, errors.Wrap(err, "insert order lines")
	}

	if err := tx.QueryRow(ctx, `SELECT name FROM branches WHERE id = $1`, o.BranchID).Scan(&o.BranchName); err != nil {
		return store.Order{}, errors.Wrap(err, "load branch name")
	}

	if err := tx.Commit(ctx); err != nil {
		return store.Order{}, errors.Wrap(err, "commit order")
	}
	return o, nil
}

func (s *Store) GetOrder(ctx context.Context, id uuid.UUID) (store.Order, error) {
	var o store.Order
	err := s.pool.QueryRow(ctx, `
		SELECT o.id, o.branch_id, b.name, o.invoice_prefix, o.invoice_number, o.source, o.status,
			o.customer_name, o.customer_phone, o.aggregator_order_id, o.notes,
			o.subtotal, o.charges_total, o.discount_total, o.tax_total, o.total,
			o.created_by, o.created_at
		FROM orders o
		JOIN branches b ON b.id = o.branch_id
		WHERE o.id = $1
	`, id).Scan(
		&o.ID, &o.BranchID, &o.BranchName, &o.InvoicePrefix, &o.InvoiceNumber, &o.Source, &o.Status,
		&o.CustomerName, &o.CustomerPhone, &o.AggregatorOrderID, &o.Notes,
		&o.Subtotal, &o.ChargesTotal, &o.DiscountTotal, &o.TaxTotal, &o.Total,
		&o.CreatedBy, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Order{}, store.ErrNotFound
		}
		return store.Order{}, errors.Wrap(err, "get order")
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, product_name, quantity, unit_price, line_discount
		FROM order_items
		WHERE order_id = $1
	`, id)
	if err != nil {
		return store.Order{}, errors.Wrap(err, "get order items")
	}
	o.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.OrderItem, error) {
		var it store.OrderItem
		err := row.Scan(&it.ID, &it.ProductID, &it.ProductName, &it.Quantity, &it.UnitPrice, &it.LineDiscount)
		return it, err
	})
	if err != nil {
		return store.Order{}, errors.Wrap(err, "scan order items")
	}

	p := &o.Payment
	err = s.pool.QueryRow(ctx, `
		SELECT method, amount, status, paid_at, cash_given, change_given
		FROM payments
		WHERE order_id = $1
	`, id).Scan(&p.Method, &p.Amount, &p.Status, &p.PaidAt, &p.CashGiven, &p.ChangeGiven)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return store.Order{}, errors.Wrap(err, "get payment")
	}

	rows, err = s.pool.Query(ctx, `
		SELECT type, amount
		FROM order_charges
		WHERE order_id = $1
		ORDER BY type
	`, id)
	if err != nil {
		return store.Order{}, errors.Wrap(err, "get order charges")
	}
	o.Charges, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.OrderCharge, error) {
		var c store.OrderCharge
		err := row.Scan(&c.Kind, &c.Amount)
		return c, err
	})
	if err != nil {
		return store.Order{}, errors.Wrap(err, "scan order charges")
	}

	var tax store.OrderTax
	err = s.pool.QueryRow(ctx, `
		SELECT type, percent, amount FROM order_taxes WHERE order_id = $1
	`, id).Scan(&tax.Type, &tax.Percent, &tax.Amount)
	switch {
	case err == nil:
		o.Tax = &tax
	case !errors.Is(err, pgx.ErrNoRows):
		return store.Order{}, errors.Wrap(err, "get order tax")
	}

	var coupon store.OrderCoupon
	err = s.pool.QueryRow(ctx, `
		SELECT code, discount_type, value, amount FROM order_coupons WHERE order_id = $1
	`, id).Scan(&coupon.Code, &coupon.DiscountType, &coupon.Value, &coupon.Amount)
	switch {
	case err == nil:
		o.Coupon = &coupon
	case !errors.Is(err, pgx.ErrNoRows):
		return store.Order{}, errors.Wrap(err, "get order coupon")
	}

	return o, nil
}

func (s *Store) ListOrders(ctx context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT o.id, o.branch_id, o.invoice_prefix, o.invoice_number, o.total,
			COALESCE(p.method, ''), o.customer_name, o.created_at
		FROM orders o
		LEFT JOIN payments p ON p.order_id = o.id
		WHERE ($1::uuid IS NULL OR o.branch_id = $1)
		ORDER BY o.created_at DESC, o.invoice_number DESC
		LIMIT $2 OFFSET $3
	`, uuid.NullUUID{UUID: params.BranchID, Valid: params.BranchID != uuid.Nil}, limit, params.Offset)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.OrderSummary, error) {
		var o store.OrderSummary
		err := row.Scan(&o.ID, &o.BranchID, &o.InvoicePrefix, &o.InvoiceNumber, &o.Total,
			&o.PaymentMethod, &o.CustomerName, &o.CreatedAt)
		return o, err
	})
}
