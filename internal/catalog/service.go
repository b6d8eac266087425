// Package catalog serves branches, categories, products and branch charges,
// with an optional Redis read-through cache in front of the store.
package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

const (
	keyBranches   = "branches"
	keyCategories = "categories"
	keyProducts   = "products"
)

func keyBranch(id uuid.UUID) string  { return "branch:" + id.String() }
func keyCharges(id uuid.UUID) string { return "charges:" + id.String() }

type Service struct {
	store  store.Catalog
	cache  *Cache
	logger zerolog.Logger
}

func NewService(s store.Catalog, cache *Cache, logger zerolog.Logger) *Service {
	return &Service{
		store:  s,
		cache:  cache,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// cached returns the value under key, loading and caching it on a miss.
// Cache failures are logged and never fail the read.
func cached[T any](ctx context.Context, s *Service, key string, load func() (T, error)) (T, error) {
	var v T
	hit, err := s.cache.GetJSON(ctx, key, &v)
	if err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache read failed")
	}
	if hit {
		return v, nil
	}

	v, err = load()
	if err != nil {
		return v, err
	}
	if err := s.cache.SetJSON(ctx, key, v); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
	return v, nil
}

func (s *Service) ListBranches(ctx context.Context) ([]store.Branch, error) {
	return cached(ctx, s, keyBranches, func() ([]store.Branch, error) {
		return s.store.ListBranches(ctx)
	})
}

func (s *Service) GetBranch(ctx context.Context, id uuid.UUID) (store.Branch, error) {
	return cached(ctx, s, keyBranch(id), func() (store.Branch, error) {
		return s.store.GetBranch(ctx, id)
	})
}

func (s *Service) ListCategories(ctx context.Context) ([]store.Category, error) {
	return cached(ctx, s, keyCategories, func() ([]store.Category, error) {
		return s.store.ListCategories(ctx)
	})
}

func (s *Service) ListProducts(ctx context.Context) ([]store.Product, error) {
	return cached(ctx, s, keyProducts, func() ([]store.Product, error) {
		return s.store.ListProducts(ctx)
	})
}

func (s *Service) ListBranchCharges(ctx context.Context, branchID uuid.UUID) ([]store.BranchCharge, error) {
	return cached(ctx, s, keyCharges(branchID), func() ([]store.BranchCharge, error) {
		return s.store.ListBranchCharges(ctx, branchID)
	})
}

func (s *Service) CreateProduct(ctx context.Context, p store.Product) (store.Product, error) {
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return store.Product{}, fmt.Errorf("create product: %w", err)
	}
	if err := s.cache.Delete(ctx, keyProducts); err != nil {
		s.logger.Warn().Err(err).Msg("catalog cache invalidation failed")
	}
	return created, nil
}
