package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/spendlens/internal/api/middleware"
	"github.com/dvloznov/spendlens/internal/domain"
	"github.com/dvloznov/spendlens/internal/history"
	"github.com/dvloznov/spendlens/internal/service"
	"github.com/dvloznov/spendlens/internal/store"
)

// writeServiceError maps engine errors onto HTTP statuses. Writes during a
// reconciliation merge come back 409, unknown rows 404.
func writeServiceError(w http.ResponseWriter, log zerolog.Logger, err error, message string) {
	switch {
	case errors.Is(err, service.ErrReconciling):
		middleware.WriteError(w, http.StatusConflict, service.ErrReconciling.Error())
	case errors.Is(err, store.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, message+": not found")
	case errors.Is(err, store.ErrExists):
		middleware.WriteError(w, http.StatusConflict, message+": already exists")
	default:
		log.Error().Err(err).Msg(message)
		middleware.WriteError(w, http.StatusInternalServerError, message)
	}
}

// TransactionsHandler handles transaction-related endpoints.
type TransactionsHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(svc *service.Service, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{svc: svc, log: log}
}

// ListTransactions handles GET /api/transactions
func (h *TransactionsHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	txns, err := h.svc.Transactions(ctx)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list transactions")
		return
	}

	// Optional date-range and month filters
	query := r.URL.Query()
	var start, end *civil.Date
	if s := query.Get("start_date"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid start_date format")
			return
		}
		start = &d
	}
	if s := query.Get("end_date"); s != "" {
		d, err := civil.ParseDate(s)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid end_date format")
			return
		}
		end = &d
	}
	month := query.Get("month")

	filtered := txns[:0:0]
	for _, t := range txns {
		if start != nil && t.Date.Before(*start) {
			continue
		}
		if end != nil && t.Date.After(*end) {
			continue
		}
		if month != "" && t.Month != month {
			continue
		}
		filtered = append(filtered, t)
	}
	if filtered == nil {
		filtered = []domain.Transaction{}
	}

	// Return array directly for frontend compatibility
	middleware.WriteJSON(w, http.StatusOK, filtered)
}

type createTransactionRequest struct {
	Date          string `json:"date"`
	Description   string `json:"description"`
	Amount        string `json:"amount"`
	AccountTypeID string `json:"account_type_id"`
	Bank          string `json:"bank"`
}

// CreateTransactions handles POST /api/transactions
// The batch is deduplicated against the dataset; rejected entries come back
// in the duplicates list with the reason they matched.
func (h *TransactionsHandler) CreateTransactions(w http.ResponseWriter, r *http.Request) {
	var reqs []createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(reqs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one transaction is required")
		return
	}

	txns := make([]domain.Transaction, 0, len(reqs))
	for _, req := range reqs {
		date, err := civil.ParseDate(req.Date)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid date: "+req.Date)
			return
		}
		amount, err := decimal.NewFromString(req.Amount)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid amount: "+req.Amount)
			return
		}
		txn, err := domain.NewTransaction(date, req.Description, amount)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		txn.AccountTypeID = req.AccountTypeID
		txn.Bank = req.Bank
		txns = append(txns, *txn)
	}

	result, err := h.svc.AddTransactions(r.Context(), txns)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, result)
}

type updateTransactionRequest struct {
	Date          *string `json:"date"`
	Description   *string `json:"description"`
	Amount        *string `json:"amount"`
	Category      *string `json:"category"`
	CostType      *string `json:"cost_type"`
	ClearCostType bool    `json:"clear_cost_type"`
	AccountTypeID *string `json:"account_type_id"`
	Bank          *string `json:"bank"`
}

func (req *updateTransactionRequest) patch() (history.TransactionPatch, error) {
	var p history.TransactionPatch
	if req.Date != nil {
		d, err := civil.ParseDate(*req.Date)
		if err != nil {
			return p, errors.New("invalid date: " + *req.Date)
		}
		p.Date = &d
	}
	if req.Amount != nil {
		a, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return p, errors.New("invalid amount: " + *req.Amount)
		}
		p.Amount = &a
	}
	if req.CostType != nil {
		switch ct := domain.CostType(*req.CostType); ct {
		case domain.CostTypeFixed, domain.CostTypeVariable:
			p.CostType = &ct
		default:
			return p, errors.New("invalid cost_type: " + *req.CostType)
		}
	}
	p.Description = req.Description
	p.Category = req.Category
	p.ClearCostType = req.ClearCostType
	p.AccountTypeID = req.AccountTypeID
	p.Bank = req.Bank
	return p, nil
}

// UpdateTransaction handles PATCH /api/transactions/{id}
func (h *TransactionsHandler) UpdateTransaction(w http.ResponseWriter, r *http.Request, id string) {
	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch, err := req.patch()
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	txn, err := h.svc.UpdateTransaction(r.Context(), id, patch)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, txn)
}

// DeleteTransactions handles DELETE /api/transactions
// Accepts a JSON body {"ids": [...]}; unknown ids are skipped.
func (h *TransactionsHandler) DeleteTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "ids is required")
		return
	}

	deleted, err := h.svc.DeleteTransactions(r.Context(), req.IDs)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to delete transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

// CategorizeTransactions handles POST /api/transactions/categorize
// Manual bulk assignment of one category to a set of transactions.
func (h *TransactionsHandler) CategorizeTransactions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs      []string `json:"ids"`
		Category string   `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if len(req.IDs) == 0 || strings.TrimSpace(req.Category) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "ids and category are required")
		return
	}

	if err := h.svc.CategorizeTransactions(r.Context(), req.IDs, req.Category); err != nil {
		writeServiceError(w, h.log, err, "Failed to categorize transactions")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "categorized"})
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler.
func NewCategoriesHandler(svc *service.Service, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{svc: svc, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.svc.Categories(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list categories")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// CreateCategory handles POST /api/categories
func (h *CategoriesHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		CostType string `json:"cost_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}

	c := domain.Category{Name: strings.TrimSpace(req.Name)}
	if req.CostType != "" {
		switch ct := domain.CostType(req.CostType); ct {
		case domain.CostTypeFixed, domain.CostTypeVariable:
			c.CostType = &ct
		default:
			middleware.WriteError(w, http.StatusBadRequest, "invalid cost_type: "+req.CostType)
			return
		}
	}

	if err := h.svc.AddCategory(r.Context(), c); err != nil {
		writeServiceError(w, h.log, err, "Failed to create category")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, c)
}

// RenameCategory handles POST /api/categories/rename
// Transactions and learned vendor mappings follow the rename.
func (h *CategoriesHandler) RenameCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.From) == "" || strings.TrimSpace(req.To) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "from and to are required")
		return
	}

	if err := h.svc.RenameCategory(r.Context(), req.From, req.To); err != nil {
		writeServiceError(w, h.log, err, "Failed to rename category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "renamed"})
}

// DeleteCategory handles DELETE /api/categories/{name}
// Transactions in the category fall back to Unassigned.
func (h *CategoriesHandler) DeleteCategory(w http.ResponseWriter, r *http.Request, name string) {
	if err := h.svc.DeleteCategory(r.Context(), name); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete category")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// AccountTypesHandler handles account type endpoints.
type AccountTypesHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewAccountTypesHandler creates a new account types handler.
func NewAccountTypesHandler(svc *service.Service, log zerolog.Logger) *AccountTypesHandler {
	return &AccountTypesHandler{svc: svc, log: log}
}

// ListAccountTypes handles GET /api/account-types
func (h *AccountTypesHandler) ListAccountTypes(w http.ResponseWriter, r *http.Request) {
	accountTypes, err := h.svc.AccountTypes(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list account types")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"account_types": accountTypes,
		"count":         len(accountTypes),
	})
}

type createAccountTypeRequest struct {
	Name string `json:"name"`
	Flag string `json:"type_flag"`
}

// CreateAccountType handles POST /api/account-types
func (h *AccountTypesHandler) CreateAccountType(w http.ResponseWriter, r *http.Request) {
	var req createAccountTypeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "name is required")
		return
	}
	if !domain.ValidAccountFlag(req.Flag) {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid type_flag: "+req.Flag)
		return
	}

	at := domain.AccountType{
		ID:   uuid.NewString(),
		Name: strings.TrimSpace(req.Name),
		Flag: domain.AccountFlag(req.Flag),
	}
	if err := h.svc.AddAccountType(r.Context(), at); err != nil {
		writeServiceError(w, h.log, err, "Failed to create account type")
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, at)
}

// VendorsHandler handles vendor mapping endpoints.
type VendorsHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewVendorsHandler creates a new vendors handler.
func NewVendorsHandler(svc *service.Service, log zerolog.Logger) *VendorsHandler {
	return &VendorsHandler{svc: svc, log: log}
}

// ListVendors handles GET /api/vendors
func (h *VendorsHandler) ListVendors(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.svc.Vendors(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list vendors")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"vendors": vendors,
		"count":   len(vendors),
	})
}

// PutVendor handles PUT /api/vendors
// Keys are normalized before storage, so "spotify " and "SPOTIFY" collapse
// to the same mapping.
func (h *VendorsHandler) PutVendor(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vendor   string `json:"vendor"`
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Vendor) == "" || strings.TrimSpace(req.Category) == "" {
		middleware.WriteError(w, http.StatusBadRequest, "vendor and category are required")
		return
	}

	if err := h.svc.PutVendor(r.Context(), req.Vendor, req.Category); err != nil {
		writeServiceError(w, h.log, err, "Failed to store vendor mapping")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"vendor":   domain.NormalizeVendorKey(req.Vendor),
		"category": req.Category,
	})
}
