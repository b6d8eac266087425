package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/enum"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/middleware"
	"github.com/Santosh-Nagh/Kunafakingdom-POS/internal/store"
)

// CatalogServicer defines the catalog reads and writes needed by the
// catalog handlers. Satisfied by *catalog.Service and by store.Catalog.
type CatalogServicer interface {
	ListBranches(ctx context.Context) ([]store.Branch, error)
	ListCategories(ctx context.Context) ([]store.Category, error)
	ListProducts(ctx context.Context) ([]store.Product, error)
	CreateProduct(ctx context.Context, p store.Product) (store.Product, error)
	ListBranchCharges(ctx context.Context, branchID uuid.UUID) ([]store.BranchCharge, error)
}

// CatalogHandler serves branches, categories, products and branch charges.
type CatalogHandler struct {
	svc    CatalogServicer
	logger zerolog.Logger
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(svc CatalogServicer, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{svc: svc, logger: logger.With().Str("component", "catalog_handler").Logger()}
}

// RegisterRoutes registers catalog endpoints. Expected to be mounted behind
// middleware.Authenticate.
func (h *CatalogHandler) RegisterRoutes(r chi.Router) {
	r.Get("/branches", h.ListBranches)
	r.Get("/categories", h.ListCategories)
	r.Get("/products", h.ListProducts)
	r.With(middleware.RequireRole(enum.UserRoleAdmin)).Post("/products", h.CreateProduct)
	r.Get("/charges", h.ListCharges)
}

// --- Request types ---

type createProductRequest struct {
	CategoryID  string `json:"category_id" validate:"required,uuid"`
	Name        string `json:"name" validate:"required,max=120"`
	Description string `json:"description" validate:"max=500"`
	Price       string `json:"price" validate:"required"`
	IsActive    *bool  `json:"is_active"`
}

// --- Handlers ---

// ListBranches handles GET /api/branches.
func (h *CatalogHandler) ListBranches(w http.ResponseWriter, r *http.Request) {
	branches, err := h.svc.ListBranches(r.Context())
	if err != nil {
		h.internalError(w, err, "list branches")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(branches))
}

// ListCategories handles GET /api/categories.
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.internalError(w, err, "list categories")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(categories))
}

// ListProducts handles GET /api/products. Only active products are listed.
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.internalError(w, err, "list products")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(products))
}

// CreateProduct handles POST /api/products (admin only).
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid category_id"})
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid price"})
		return
	}
	if price.IsNegative() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "price must be >= 0"})
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	product, err := h.svc.CreateProduct(r.Context(), store.Product{
		CategoryID:  categoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       price.Round(2),
		IsActive:    active,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "category not found"})
			return
		}
		h.internalError(w, err, "create product")
		return
	}

	writeJSON(w, http.StatusCreated, product)
}

// ListCharges handles GET /api/charges?branch_id=. Returns the active flat
// charges of the branch.
func (h *CatalogHandler) ListCharges(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("branch_id")
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "branch_id is required"})
		return
	}
	branchID, err := uuid.Parse(raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid branch_id"})
		return
	}

	charges, err := h.svc.ListBranchCharges(r.Context(), branchID)
	if err != nil {
		h.internalError(w, err, "list branch charges")
		return
	}
	writeJSON(w, http.StatusOK, nonNil(charges))
}

func (h *CatalogHandler) internalError(w http.ResponseWriter, err error, op string) {
	h.logger.Error().Err(err).Msg(op)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
