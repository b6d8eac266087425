package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/seed"
)

// SeedResult counts the rows a Seed call inserted. Rows that already
// existed are skipped.
type SeedResult struct {
	Branches   int64
	Categories int64
	Products   int64
	Charges    int64
	Users      int64
}

// Seed loads a dataset in a single transaction. It is safe to run twice.
func (s *Store) Seed(ctx context.Context, data seed.Dataset, pinCost int) (SeedResult, error) {
	var res SeedResult

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return res, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback(ctx)

	exec := func(counter *int64, sql string, args ...any) error {
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return err
		}
		*counter += tag.RowsAffected()
		return nil
	}

	for _, b := range data.Branches {
		if err := exec(&res.Branches, `
			INSERT INTO branches (id, name, address, phone, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, b.ID, b.Name, b.Address, b.Phone, b.IsActive); err != nil {
			return res, errors.Wrapf(err, "seed branch %q", b.Name)
		}
	}

	for _, c := range data.Categories {
		if err := exec(&res.Categories, `
			INSERT INTO categories (id, name, sort_order)
			VALUES ($1, $2, $3)
			ON CONFLICT DO NOTHING
		`, c.ID, c.Name, c.SortOrder); err != nil {
			return res, errors.Wrapf(err, "seed category %q", c.Name)
		}
	}

	for _, p := range data.Products {
		if err := exec(&res.Products, `
			INSERT INTO products (id, category_id, name, description, price, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.IsActive); err != nil {
			return res, errors.Wrapf(err, "seed product %q", p.Name)
		}
	}

	for _, c := range data.Charges {
		if err := exec(&res.Charges, `
			INSERT INTO branch_charges (id, branch_id, type, amount, is_active)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, c.BranchID, c.Kind, c.Amount, c.IsActive); err != nil {
			return res, errors.Wrapf(err, "seed charge %s", c.Kind)
		}
	}

	for _, st := range data.Staff {
		if err := seedUser(ctx, tx, st, pinCost, &res.Users); err != nil {
			return res, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return res, errors.Wrap(err, "commit seed")
	}
	return res, nil
}

func seedUser(ctx context.Context, tx pgx.Tx, st seed.Staff, pinCost int, counter *int64) error {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, st.User.Email).Scan(&exists)
	if err != nil {
		return errors.Wrapf(err, "check user %q", st.User.Email)
	}
	if exists {
		return nil
	}

	hash, err := auth.HashPIN(st.PIN, pinCost)
	if err != nil {
		return errors.Wrapf(err, "hash pin for %q", st.User.Email)
	}

	u := st.User
	_, err = tx.Exec(ctx, `
		INSERT INTO users (id, name, email, role, pin_hash, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, u.ID, u.Name, u.Email, u.Role, hash, u.IsActive)
	if err != nil {
		return errors.Wrapf(err, "insert user %q", u.Email)
	}
	*counter++
	return nil
}
