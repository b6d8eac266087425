// Package invoice allocates per-branch invoice numbers and renders
// persisted orders into printable invoices.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

const (
	DefaultOrgTag = "KK"
	unknownCode   = "UNK"
)

// ErrBranchNotFound means the branch lookup for prefix derivation failed.
// Allocation still succeeds with the default prefix.
var ErrBranchNotFound = errors.New("branch not found")

// BranchLookup resolves a branch for prefix derivation.
type BranchLookup interface {
	GetBranch(ctx context.Context, id uuid.UUID) (store.Branch, error)
}

// Sequencer is the part of the order store that hands out numbers.
type Sequencer interface {
	FindLastOrder(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error)
	NextInvoiceNumber(ctx context.Context, branchID uuid.UUID, prefix string) (int64, error)
}

// Number is an allocated invoice number.
type Number struct {
	Prefix string `json:"prefix"`
	Value  int64  `json:"number"`
}

// String formats the number as PREFIX-00042.
func (n Number) String() string {
	return FormatID(n.Prefix, n.Value)
}

// FormatID formats an invoice id with the number zero padded to five digits.
func FormatID(prefix string, number int64) string {
	return fmt.Sprintf("%s-%05d", prefix, number)
}

type AllocatorConfig struct {
	// OrgTag is prepended to every branch code. Defaults to KK.
	OrgTag string
	// Codes maps a branch id to a fixed branch code, overriding the code
	// derived from the branch name.
	Codes map[uuid.UUID]string
}

type Allocator struct {
	branches BranchLookup
	seq      Sequencer
	orgTag   string
	codes    map[uuid.UUID]string
	logger   zerolog.Logger
}

func NewAllocator(branches BranchLookup, seq Sequencer, cfg AllocatorConfig, logger zerolog.Logger) *Allocator {
	tag := strings.ToUpper(strings.TrimSpace(cfg.OrgTag))
	if tag == "" {
		tag = DefaultOrgTag
	}
	codes := make(map[uuid.UUID]string, len(cfg.Codes))
	for id, code := range cfg.Codes {
		codes[id] = strings.ToUpper(strings.TrimSpace(code))
	}
	return &Allocator{
		branches: branches,
		seq:      seq,
		orgTag:   tag,
		codes:    codes,
		logger:   logger.With().Str("component", "invoice_allocator").Logger(),
	}
}

// DefaultPrefix is the prefix used when the branch cannot be identified.
func (a *Allocator) DefaultPrefix() string {
	return a.orgTag + "-" + unknownCode
}

// ResolvePrefix returns the invoice prefix for a branch. On a lookup failure
// it returns the default prefix together with an error wrapping
// ErrBranchNotFound.
func (a *Allocator) ResolvePrefix(ctx context.Context, branchID uuid.UUID) (string, error) {
	if branchID == uuid.Nil {
		return a.DefaultPrefix(), nil
	}
	if code, ok := a.codes[branchID]; ok && code != "" {
		return a.orgTag + "-" + code, nil
	}

	b, err := a.branches.GetBranch(ctx, branchID)
	if err != nil {
		return a.DefaultPrefix(), fmt.Errorf("%w: %s: %v", ErrBranchNotFound, branchID, err)
	}
	return a.orgTag + "-" + BranchCode(b.Name), nil
}

// BranchCode derives a branch code from the first three letters of its name.
func BranchCode(name string) string {
	code := make([]rune, 0, 3)
	for _, r := range name {
		if !unicode.IsLetter(r) {
			continue
		}
		code = append(code, unicode.ToUpper(r))
		if len(code) == 3 {
			break
		}
	}
	if len(code) == 0 {
		return unknownCode
	}
	return string(code)
}

// Allocate resolves the branch prefix and takes the next number from the
// atomic per-prefix counter.
func (a *Allocator) Allocate(ctx context.Context, branchID uuid.UUID) (Number, error) {
	prefix := a.prefix(ctx, branchID)
	n, err := a.seq.NextInvoiceNumber(ctx, branchID, prefix)
	if err != nil {
		return Number{}, fmt.Errorf("next invoice number: %w", err)
	}
	return Number{Prefix: prefix, Value: n}, nil
}

// AllocateNaive reads the highest existing number and adds one. Two
// concurrent callers can both observe the same last number, so the result
// is only safe behind the orders unique constraint.
func (a *Allocator) AllocateNaive(ctx context.Context, branchID uuid.UUID) (Number, error) {
	prefix := a.prefix(ctx, branchID)
	last, err := a.seq.FindLastOrder(ctx, branchID, prefix)
	if err != nil {
		return Number{}, fmt.Errorf("find last order: %w", err)
	}
	return Number{Prefix: prefix, Value: last + 1}, nil
}

func (a *Allocator) prefix(ctx context.Context, branchID uuid.UUID) string {
	prefix, err := a.ResolvePrefix(ctx, branchID)
	if err != nil {
		a.logger.Warn().Err(err).
			Str("branch_id", branchID.String()).
			Str("prefix", prefix).
			Msg("branch lookup failed, using default invoice prefix")
	}
	return prefix
}
