package handlers

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dvloznov/spendlens/internal/api/middleware"
	"github.com/dvloznov/spendlens/internal/service"
	"github.com/dvloznov/spendlens/internal/store"
)

// EngineHandler exposes the analysis and correction commands: duplicate
// scan, recurring scan, auto-categorization and undo.
type EngineHandler struct {
	svc *service.Service
	log zerolog.Logger
}

// NewEngineHandler creates a new engine handler.
func NewEngineHandler(svc *service.Service, log zerolog.Logger) *EngineHandler {
	return &EngineHandler{svc: svc, log: log}
}

// ListDuplicates handles GET /api/duplicates
func (h *EngineHandler) ListDuplicates(w http.ResponseWriter, r *http.Request) {
	groups, err := h.svc.Duplicates(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to scan for duplicates")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"duplicates": groups,
		"count":      len(groups),
	})
}

// ListRecurring handles GET /api/recurring
func (h *EngineHandler) ListRecurring(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.svc.Recurring(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to scan for recurring charges")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"recurring": patterns,
		"count":     len(patterns),
	})
}

// AutoCategorize handles POST /api/categorize
// Runs the vendor-map-then-classifier pipeline over every unassigned
// transaction. Classifier failures degrade rather than abort, so a partial
// result still comes back with 200 alongside a warning in the payload.
func (h *EngineHandler) AutoCategorize(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.AutoCategorize(r.Context())
	if err != nil && result == nil {
		writeServiceError(w, h.log, err, "Failed to categorize transactions")
		return
	}

	payload := map[string]interface{}{
		"results":         result.Results,
		"assigned":        result.Assigned,
		"learned_vendors": result.LearnedVendors,
	}
	if err != nil {
		h.log.Warn().Err(err).Msg("Auto-categorization degraded")
		payload["warning"] = err.Error()
	}

	middleware.WriteJSON(w, http.StatusOK, payload)
}

// Undo handles POST /api/undo
// Reverts the most recent destructive operation. Returns 200 with
// reverted=false when the history is empty.
func (h *EngineHandler) Undo(w http.ResponseWriter, r *http.Request) {
	reverted, err := h.svc.Undo(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to undo")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"reverted":  reverted,
		"remaining": h.svc.HistoryLen(),
	})
}

// RemoteStoreFactory builds the per-user remote store on login.
type RemoteStoreFactory func(ctx context.Context, userID string) (store.Store, error)

// SessionHandler handles the login/logout transitions between local-only and
// remote storage.
type SessionHandler struct {
	svc     *service.Service
	remotes RemoteStoreFactory
	log     zerolog.Logger
}

// NewSessionHandler creates a new session handler. The factory may be nil
// when no remote backend is configured; login then returns 503.
func NewSessionHandler(svc *service.Service, remotes RemoteStoreFactory, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{svc: svc, remotes: remotes, log: log}
}

// Login handles POST /api/session/login
// Opens the caller's remote store, merges the local dataset into it and
// switches the engine over. The user comes from the X-User-ID header.
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h.remotes == nil {
		middleware.WriteError(w, http.StatusServiceUnavailable, "Remote storage is not configured")
		return
	}

	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return
	}

	remote, err := h.remotes(ctx, userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to open remote store")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to open remote store")
		return
	}

	summary, err := h.svc.Login(ctx, remote)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to reconcile local data")
		return
	}

	h.log.Info().
		Str("user_id", userID).
		Int("transactions_inserted", summary.TransactionsInserted).
		Int("transactions_skipped", summary.TransactionsSkipped).
		Msg("Login reconciliation completed")

	middleware.WriteJSON(w, http.StatusOK, summary)
}

// Logout handles POST /api/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.svc.Logout()
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
