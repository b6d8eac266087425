// Package memory is an in-process store used for local runs without
// Postgres and for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/auth"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/seed"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

type seqKey struct {
	branchID uuid.UUID
	prefix   string
}

type Store struct {
	mu         sync.RWMutex
	branches   map[uuid.UUID]store.Branch
	categories map[uuid.UUID]store.Category
	products   map[uuid.UUID]store.Product
	charges    []store.BranchCharge
	users      []store.User
	orders     map[uuid.UUID]store.Order
	sequences  map[seqKey]int64
	now        func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		branches:   make(map[uuid.UUID]store.Branch),
		categories: make(map[uuid.UUID]store.Category),
		products:   make(map[uuid.UUID]store.Product),
		orders:     make(map[uuid.UUID]store.Order),
		sequences:  make(map[seqKey]int64),
		now:        time.Now,
	}
}

// NewSeeded returns a store loaded with the demo dataset. PINs are hashed
// with the given bcrypt cost.
func NewSeeded(pinCost int) (*Store, error) {
	s := New()
	data := seed.Demo()
	for _, b := range data.Branches {
		s.AddBranch(b)
	}
	for _, c := range data.Categories {
		s.AddCategory(c)
	}
	for _, p := range data.Products {
		s.products[p.ID] = p
	}
	for _, c := range data.Charges {
		s.AddBranchCharge(c)
	}
	for _, st := range data.Staff {
		hash, err := auth.HashPIN(st.PIN, pinCost)
		if err != nil {
			return nil, err
		}
		u := st.User
		u.PinHash = hash
		s.AddUser(u)
	}
	return s, nil
}

func (s *Store) AddBranch(b store.Branch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	s.branches[b.ID] = b
}

func (s *Store) AddCategory(c store.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *Store) AddBranchCharge(c store.BranchCharge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.charges = append(s.charges, c)
}

func (s *Store) AddUser(u store.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = append(s.users, u)
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() {}

// --- Catalog ---

func (s *Store) ListBranches(_ context.Context) ([]store.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Branch, 0, len(s.branches))
	for _, b := range s.branches {
		if b.IsActive {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) GetBranch(_ context.Context, id uuid.UUID) (store.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.branches[id]
	if !ok {
		return store.Branch{}, store.ErrNotFound
	}
	return b, nil
}

func (s *Store) ListCategories(_ context.Context) ([]store.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]store.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Product, 0, len(s.products))
	for _, p := range s.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, p store.Product) (store.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[p.CategoryID]; !ok {
		return store.Product{}, store.ErrNotFound
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = s.now()
	s.products[p.ID] = p
	return p, nil
}

func (s *Store) ListBranchCharges(_ context.Context, branchID uuid.UUID) ([]store.BranchCharge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.BranchCharge
	for _, c := range s.charges {
		if c.BranchID == branchID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

// --- Orders ---

func (s *Store) FindLastOrder(_ context.Context, branchID uuid.UUID, prefix string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastNumber(branchID, prefix), nil
}

func (s *Store) lastNumber(branchID uuid.UUID, prefix string) int64 {
	var last int64
	for _, o := range s.orders {
		if o.BranchID == branchID && o.InvoicePrefix == prefix && o.InvoiceNumber > last {
			last = o.InvoiceNumber
		}
	}
	return last
}

func (s *Store) NextInvoiceNumber(_ context.Context, branchID uuid.UUID, prefix string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seqKey{branchID, prefix}
	n, ok := s.sequences[k]
	if !ok {
		n = s.lastNumber(branchID, prefix)
	}
	n++
	s.sequences[k] = n
	return n, nil
}

func (s *Store) InsertOrder(_ context.Context, o store.Order) (store.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.orders {
		if existing.BranchID == o.BranchID &&
			existing.InvoicePrefix == o.InvoicePrefix &&
			existing.InvoiceNumber == o.InvoiceNumber {
			return store.Order{}, store.ErrInvoiceConflict
		}
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	o.Items = append([]store.OrderItem(nil), o.Items...)
	for i := range o.Items {
		if o.Items[i].ID == uuid.Nil {
			o.Items[i].ID = uuid.New()
		}
	}
	if b, ok := s.branches[o.BranchID]; ok {
		o.BranchName = b.Name
	}
	s.orders[o.ID] = o
	return o, nil
}

func (s *Store) GetOrder(_ context.Context, id uuid.UUID) (store.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return store.Order{}, store.ErrNotFound
	}
	return o, nil
}

func (s *Store) ListOrders(_ context.Context, params store.ListOrdersParams) ([]store.OrderSummary, error) {
	s.mu.RLock()
	var matched []store.Order
	for _, o := range s.orders {
		if params.BranchID == uuid.Nil || o.BranchID == params.BranchID {
			matched = append(matched, o)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].InvoiceNumber > matched[j].InvoiceNumber
	})

	start := int(params.Offset)
	if start > len(matched) {
		start = len(matched)
	}
	limit := int(params.Limit)
	if limit <= 0 {
		limit = store.DefaultListLimit
	}
	end := len(matched)
	if start+limit < end {
		end = start + limit
	}

	out := make([]store.OrderSummary, 0, end-start)
	for _, o := range matched[start:end] {
		out = append(out, store.OrderSummary{
			ID:            o.ID,
			BranchID:      o.BranchID,
			InvoicePrefix: o.InvoicePrefix,
			InvoiceNumber: o.InvoiceNumber,
			Total:         o.Total,
			PaymentMethod: o.Payment.Method,
			CustomerName:  o.CustomerName,
			CreatedAt:     o.CreatedAt,
		})
	}
	return out, nil
}

// --- Users ---

func (s *Store) ListActiveUsers(_ context.Context) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.User
	for _, u := range s.users {
		if u.IsActive {
			out = append(out, u)
		}
	}
	return out, nil
}
