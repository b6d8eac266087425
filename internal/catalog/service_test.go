package catalog_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/catalog"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store/memory"
)

// countingCatalog counts store reads so tests can tell hits from misses.
type countingCatalog struct {
	store.Catalog
	products int
	branch   int
}

func (c *countingCatalog) ListProducts(ctx context.Context) ([]store.Product, error) {
	c.products++
	return c.Catalog.ListProducts(ctx)
}

func (c *countingCatalog) GetBranch(ctx context.Context, id uuid.UUID) (store.Branch, error) {
	c.branch++
	return c.Catalog.GetBranch(ctx, id)
}

func setup(t *testing.T) (*catalog.Service, *countingCatalog, *memory.Store, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	mem := memory.New()
	counting := &countingCatalog{Catalog: mem}
	svc := catalog.NewService(counting, catalog.NewCache(client, time.Minute), zerolog.Nop())
	return svc, counting, mem, mr
}

func TestListProducts_ReadThrough(t *testing.T) {
	svc, counting, mem, mr := setup(t)
	ctx := context.Background()
	catID := uuid.New()
	mem.AddCategory(store.Category{ID: catID, Name: "Kunafa"})
	_, err := mem.CreateProduct(ctx, store.Product{CategoryID: catID, Name: "Nutella Kunafa", Price: decimal.NewFromInt(500), IsActive: true})
	require.NoError(t, err)

	first, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, mr.Exists("pos:catalog:products"))

	second, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].Price.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, counting.products, "second read should be served from cache")

	mr.FastForward(2 * time.Minute)
	_, err = svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.products, "expired entry should reload")
}

func TestCreateProduct_InvalidatesList(t *testing.T) {
	svc, counting, mem, mr := setup(t)
	ctx := context.Background()
	catID := uuid.New()
	mem.AddCategory(store.Category{ID: catID, Name: "Kunafa"})

	_, err := svc.ListProducts(ctx)
	require.NoError(t, err)

	_, err = svc.CreateProduct(ctx, store.Product{CategoryID: catID, Name: "Pistachio Kunafa", Price: decimal.NewFromInt(550), IsActive: true})
	require.NoError(t, err)
	assert.False(t, mr.Exists("pos:catalog:products"))

	products, err := svc.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 1)
	assert.Equal(t, 2, counting.products)
}

func TestCreateProduct_UnknownCategory(t *testing.T) {
	svc, _, _, _ := setup(t)
	_, err := svc.CreateProduct(context.Background(), store.Product{CategoryID: uuid.New(), Name: "Orphan"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetBranch_ErrorsNotCached(t *testing.T) {
	svc, counting, mem, _ := setup(t)
	ctx := context.Background()
	id := uuid.New()

	_, err := svc.GetBranch(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)

	mem.AddBranch(store.Branch{ID: id, Name: "Jubilee Hills", IsActive: true})
	b, err := svc.GetBranch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Jubilee Hills", b.Name)

	_, err = svc.GetBranch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, counting.branch)
}

func TestService_RedisDown(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mem := memory.New()
	id := uuid.New()
	mem.AddBranch(store.Branch{ID: id, Name: "Gachibowli", IsActive: true})

	svc := catalog.NewService(mem, catalog.NewCache(client, time.Minute), zerolog.Nop())
	branches, err := svc.ListBranches(context.Background())
	require.NoError(t, err)
	assert.Len(t, branches, 1)
}

func TestService_NoCache(t *testing.T) {
	mem := memory.New()
	id := uuid.New()
	mem.AddBranchCharge(store.BranchCharge{BranchID: id, Kind: "delivery", Amount: decimal.NewFromInt(30), IsActive: true})
	mem.AddBranchCharge(store.BranchCharge{BranchID: id, Kind: "other", Amount: decimal.NewFromInt(5), IsActive: false})

	svc := catalog.NewService(mem, nil, zerolog.Nop())
	charges, err := svc.ListBranchCharges(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, charges, 1)
	assert.Equal(t, "delivery", charges[0].Kind)
}
