// Package api assembles the HTTP surface: routing plus the middleware chain.
package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/api/handlers"
	"github.com/dvloznov/spendlens/internal/api/middleware"
)

// Handlers bundles the per-resource handlers the router dispatches to.
type Handlers struct {
	Transactions *handlers.TransactionsHandler
	Categories   *handlers.CategoriesHandler
	AccountTypes *handlers.AccountTypesHandler
	Vendors      *handlers.VendorsHandler
	Engine       *handlers.EngineHandler
	Session      *handlers.SessionHandler
	Statements   *handlers.StatementsHandler
	Jobs         *handlers.JobsHandler
}

// NewRouter builds the route table and wraps it in the middleware chain.
func NewRouter(h Handlers, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()

	// Transactions endpoints
	mux.HandleFunc("/api/transactions", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Transactions.ListTransactions(w, r)
		case http.MethodPost:
			h.Transactions.CreateTransactions(w, r)
		case http.MethodDelete:
			h.Transactions.DeleteTransactions(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/categorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Transactions.CategorizeTransactions(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPatch || r.Method == http.MethodPut {
			id := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
			if id == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Transaction ID is required")
				return
			}
			h.Transactions.UpdateTransaction(w, r, id)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Categories endpoints
	mux.HandleFunc("/api/categories", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Categories.ListCategories(w, r)
		case http.MethodPost:
			h.Categories.CreateCategory(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/rename", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Categories.RenameCategory(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categories/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			name := strings.TrimPrefix(r.URL.Path, "/api/categories/")
			if name == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Category name is required")
				return
			}
			h.Categories.DeleteCategory(w, r, name)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Account type endpoints
	mux.HandleFunc("/api/account-types", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.AccountTypes.ListAccountTypes(w, r)
		case http.MethodPost:
			h.AccountTypes.CreateAccountType(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Vendor mapping endpoints
	mux.HandleFunc("/api/vendors", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.Vendors.ListVendors(w, r)
		case http.MethodPut, http.MethodPost:
			h.Vendors.PutVendor(w, r)
		default:
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Engine endpoints
	mux.HandleFunc("/api/duplicates", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Engine.ListDuplicates(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/recurring", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Engine.ListRecurring(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/categorize", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Engine.AutoCategorize(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/undo", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Engine.Undo(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Session endpoints
	mux.HandleFunc("/api/session/login", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Session.Login(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/session/logout", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Session.Logout(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Statement ingestion endpoints
	mux.HandleFunc("/api/statements", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			h.Statements.UploadStatement(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Jobs endpoints
	mux.HandleFunc("/api/jobs", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			h.Jobs.ListJobs(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/jobs/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			jobID := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
			if jobID == "" {
				middleware.WriteError(w, http.StatusBadRequest, "Job ID is required")
				return
			}
			h.Jobs.GetJob(w, r, jobID)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	// Apply middleware
	return middleware.Recovery(log)(
		middleware.Logger(log)(
			middleware.RequestID(
				middleware.CORS(
					middleware.UserID(mux),
				),
			),
		),
	)
}
