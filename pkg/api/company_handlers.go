package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
	"github.com/platinummonkey/cashpro/pkg/subscriptions"
)

// CompanyHandlers handles company onboarding: creating the company and
// activating its subscription.
type CompanyHandlers struct {
	companies     CompanyService
	subscriptions SubscriptionService
}

// NewCompanyHandlers creates a new CompanyHandlers
func NewCompanyHandlers(companies CompanyService, subscriptions SubscriptionService) *CompanyHandlers {
	return &CompanyHandlers{companies: companies, subscriptions: subscriptions}
}

// RegisterRoutes registers company routes
func (h *CompanyHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/companies", h.CreateCompany).Methods(http.MethodPost)
	router.HandleFunc("/subscriptions", h.CreateSubscription).Methods(http.MethodPost)
}

// CreateCompany handles POST /api/companies
func (h *CompanyHandlers) CreateCompany(w http.ResponseWriter, r *http.Request) {
	var req companies.CreateCompanyInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity := middleware.GetIdentity(r)
	company, err := h.companies.CreateCompany(r.Context(), identity.Person.ID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventCompanyCreate,
		CompanyID:    audit.Int64(company.ID),
		ResourceType: audit.ResourceCompany,
		ResourceID:   strconv.FormatInt(company.ID, 10),
		Metadata:     map[string]interface{}{"slug": company.Slug},
	})
	httputil.WriteSuccess(w, company)
}

// CreateSubscription handles POST /api/subscriptions
func (h *CompanyHandlers) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req subscriptions.CreateInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	identity := middleware.GetIdentity(r)
	sub, err := h.subscriptions.Create(r.Context(), identity.Person.ID, req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventSubscriptionCreate,
		CompanyID:    audit.Int64(sub.CompanyID),
		ResourceType: audit.ResourceSubscription,
		ResourceID:   strconv.FormatInt(sub.ID, 10),
		Metadata: map[string]interface{}{
			"plan_tier":     sub.PlanTier,
			"billing_cycle": sub.BillingCycle,
		},
	})
	httputil.WriteSuccess(w, sub)
}
