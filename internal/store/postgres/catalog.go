package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

func (s *Store) ListBranches(ctx context.Context) ([]store.Branch, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, address, phone, is_active, created_at
		FROM branches
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list branches")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Branch, error) {
		var b store.Branch
		err := row.Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.IsActive, &b.CreatedAt)
		return b, err
	})
}

func (s *Store) GetBranch(ctx context.Context, id uuid.UUID) (store.Branch, error) {
	var b store.Branch
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, address, phone, is_active, created_at
		FROM branches
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Name, &b.Address, &b.Phone, &b.IsActive, &b.CreatedAt)
	if err != nil {
		return store.Branch{}, notFound(err)
	}
	return b, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]store.Category, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, sort_order
		FROM categories
		ORDER BY sort_order, name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.Category, error) {
		var c store.Category
		err := row.Scan(&c.ID, &c.Name, &c.SortOrder)
		return c, err
	})
}

func (s *Store) ListProducts(ctx context.Context) ([]store.Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, category_id, name, description, price, is_active, created_at
		FROM products
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

func scanProduct(row pgx.CollectableRow) (store.Product, error) {
	var p store.Product
	err := row.Scan(&p.ID, &p.CategoryID, &p.Name, &p.Description, &p.Price, &p.IsActive, &p.CreatedAt)
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, p store.Product) (store.Product, error) {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO products (id, category_id, name, description, price, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, p.ID, p.CategoryID, p.Name, p.Description, p.Price, p.IsActive).Scan(&p.CreatedAt)
	if err != nil {
		if isForeignKeyViolation(err) {
			return store.Product{}, store.ErrNotFound
		}
		return store.Product{}, errors.Wrap(err, "insert product")
	}
	return p, nil
}

func (s *Store) ListBranchCharges(ctx context.Context, branchID uuid.UUID) ([]store.BranchCharge, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, branch_id, type, amount, is_active
		FROM branch_charges
		WHERE branch_id = $1 AND is_active = true
		ORDER BY type
	`, branchID)
	if err != nil {
		return nil, errors.Wrap(err, "list branch charges")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.BranchCharge, error) {
		var c store.BranchCharge
		err := row.Scan(&c.ID, &c.BranchID, &c.Kind, &c.Amount, &c.IsActive)
		return c, err
	})
}

func (s *Store) ListActiveUsers(ctx context.Context) ([]store.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, email, role, pin_hash, is_active
		FROM users
		WHERE is_active = true
		ORDER BY name
	`)
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.User, error) {
		var u store.User
		err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.PinHash, &u.IsActive)
		return u, err
	})
}
