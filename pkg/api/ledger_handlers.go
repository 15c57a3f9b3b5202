package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/rbac"
)

// LedgerHandlers serves tenant accounting data behind permission checks
type LedgerHandlers struct {
	ledger LedgerService
	perms  *rbac.PermissionMiddleware
}

// NewLedgerHandlers creates a new LedgerHandlers
func NewLedgerHandlers(ledger LedgerService, perms *rbac.PermissionMiddleware) *LedgerHandlers {
	return &LedgerHandlers{ledger: ledger, perms: perms}
}

// RegisterRoutes registers ledger routes
func (h *LedgerHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/ledger/chart-of-accounts",
		h.perms.RequirePermission("chart_of_accounts", rbac.ActionRead)(http.HandlerFunc(h.ChartOfAccounts)),
	).Methods(http.MethodGet)
}

// ChartOfAccounts handles GET /api/ledger/chart-of-accounts
func (h *LedgerHandlers) ChartOfAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.ChartOfAccounts(r.Context(), middleware.GetIdentity(r).Company)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, accounts)
}
