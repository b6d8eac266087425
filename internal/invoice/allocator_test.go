package invoice_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/invoice"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store/memory"
)

type branchLookupFunc func(ctx context.Context, id uuid.UUID) (store.Branch, error)

func (f branchLookupFunc) GetBranch(ctx context.Context, id uuid.UUID) (store.Branch, error) {
	return f(ctx, id)
}

func newBranchStore(t *testing.T, name string) (*memory.Store, uuid.UUID) {
	t.Helper()
	s := memory.New()
	id := uuid.New()
	s.AddBranch(store.Branch{ID: id, Name: name, IsActive: true})
	return s, id
}

func TestBranchCode(t *testing.T) {
	tests := map[string]string{
		"Xyz Mall":      "XYZ",
		"jubilee hills": "JUB",
		"A B C D":       "ABC",
		"Go":            "GO",
		"12 Main St":    "MAI",
		"123":           "UNK",
		"":              "UNK",
	}
	for in, want := range tests {
		if got := invoice.BranchCode(in); got != want {
			t.Errorf("BranchCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestResolvePrefix(t *testing.T) {
	s, branchID := newBranchStore(t, "Xyz Mall")
	staticID := uuid.New()
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{
		Codes: map[uuid.UUID]string{staticID: "hq"},
	}, zerolog.Nop())

	prefix, err := a.ResolvePrefix(context.Background(), branchID)
	require.NoError(t, err)
	assert.Equal(t, "KK-XYZ", prefix)

	prefix, err = a.ResolvePrefix(context.Background(), staticID)
	require.NoError(t, err)
	assert.Equal(t, "KK-HQ", prefix)

	prefix, err = a.ResolvePrefix(context.Background(), uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, "KK-UNK", prefix)

	prefix, err = a.ResolvePrefix(context.Background(), uuid.New())
	assert.ErrorIs(t, err, invoice.ErrBranchNotFound)
	assert.Equal(t, "KK-UNK", prefix)
}

func TestResolvePrefix_CustomOrgTag(t *testing.T) {
	s, branchID := newBranchStore(t, "Gachibowli")
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{OrgTag: "kq"}, zerolog.Nop())

	prefix, err := a.ResolvePrefix(context.Background(), branchID)
	require.NoError(t, err)
	assert.Equal(t, "KQ-GAC", prefix)
	assert.Equal(t, "KQ-UNK", a.DefaultPrefix())
}

func TestAllocate_FirstThenNext(t *testing.T) {
	s, branchID := newBranchStore(t, "Xyz Mall")
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{}, zerolog.Nop())
	ctx := context.Background()

	first, err := a.Allocate(ctx, branchID)
	require.NoError(t, err)
	assert.Equal(t, invoice.Number{Prefix: "KK-XYZ", Value: 1}, first)
	assert.Equal(t, "KK-XYZ-00001", first.String())

	_, err = s.InsertOrder(ctx, store.Order{BranchID: branchID, InvoicePrefix: first.Prefix, InvoiceNumber: first.Value})
	require.NoError(t, err)

	second, err := a.Allocate(ctx, branchID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Value)
}

func TestAllocate_LookupFailureDegrades(t *testing.T) {
	s := memory.New()
	lookup := branchLookupFunc(func(context.Context, uuid.UUID) (store.Branch, error) {
		return store.Branch{}, errors.New("connection refused")
	})
	a := invoice.NewAllocator(lookup, s, invoice.AllocatorConfig{}, zerolog.Nop())

	n, err := a.Allocate(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, "KK-UNK", n.Prefix)
	assert.Equal(t, int64(1), n.Value)
}

func TestAllocateNaive_LastPlusOne(t *testing.T) {
	s, branchID := newBranchStore(t, "Xyz Mall")
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{}, zerolog.Nop())
	ctx := context.Background()

	n, err := a.AllocateNaive(ctx, branchID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Value)

	_, err = s.InsertOrder(ctx, store.Order{BranchID: branchID, InvoicePrefix: "KK-XYZ", InvoiceNumber: 7})
	require.NoError(t, err)

	n, err = a.AllocateNaive(ctx, branchID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n.Value)
}

// Two naive allocations that both run before either order is written get
// the same number. The unique constraint rejects the second insert.
func TestAllocateNaive_DuplicatesWithoutInsertBetween(t *testing.T) {
	s, branchID := newBranchStore(t, "Xyz Mall")
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{}, zerolog.Nop())
	ctx := context.Background()

	first, err := a.AllocateNaive(ctx, branchID)
	require.NoError(t, err)
	second, err := a.AllocateNaive(ctx, branchID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	_, err = s.InsertOrder(ctx, store.Order{BranchID: branchID, InvoicePrefix: first.Prefix, InvoiceNumber: first.Value})
	require.NoError(t, err)
	_, err = s.InsertOrder(ctx, store.Order{BranchID: branchID, InvoicePrefix: second.Prefix, InvoiceNumber: second.Value})
	assert.ErrorIs(t, err, store.ErrInvoiceConflict)
}

func TestAllocate_ConcurrentDistinct(t *testing.T) {
	s, branchID := newBranchStore(t, "Xyz Mall")
	a := invoice.NewAllocator(s, s, invoice.AllocatorConfig{}, zerolog.Nop())
	ctx := context.Background()

	const workers = 64
	var wg sync.WaitGroup
	numbers := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := a.Allocate(ctx, branchID)
			assert.NoError(t, err)
			numbers <- n.Value
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[int64]bool, workers)
	for n := range numbers {
		assert.False(t, seen[n], "number %d allocated twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, workers)
}
