package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/admin"
	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/httputil"
)

// AdminHandlers handles super-admin requests. The routes must be mounted
// behind middleware.RequireSuperAdmin.
type AdminHandlers struct {
	service  AdminService
	auditLog AuditSearcher
}

// NewAdminHandlers creates a new AdminHandlers
func NewAdminHandlers(service AdminService, auditLog AuditSearcher) *AdminHandlers {
	return &AdminHandlers{service: service, auditLog: auditLog}
}

// RegisterRoutes registers admin routes relative to the /api/admin prefix
func (h *AdminHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/users", h.ListUsers).Methods(http.MethodGet)
	router.HandleFunc("/users", h.CreateUser).Methods(http.MethodPost)
	router.HandleFunc("/companies", h.ListCompanies).Methods(http.MethodGet)
	router.HandleFunc("/companies/{company_id}/create-db", h.CreateDatabase).Methods(http.MethodPost)
	router.HandleFunc("/audit-events", h.SearchAuditEvents).Methods(http.MethodGet)
}

// ListUsers handles GET /api/admin/users
func (h *AdminHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// CreateUser handles POST /api/admin/users
func (h *AdminHandlers) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req admin.CreateUserInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	person, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventUserCreate,
		ResourceType: audit.ResourceUser,
		ResourceID:   strconv.FormatInt(person.ID, 10),
		Metadata:     map[string]interface{}{"is_super_admin": person.IsSuperAdmin},
	})
	httputil.WriteCreated(w, person)
}

// ListCompanies handles GET /api/admin/companies
func (h *AdminHandlers) ListCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListCompanies(r.Context())
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, list)
}

// CreateDatabase handles POST /api/admin/companies/{company_id}/create-db
func (h *AdminHandlers) CreateDatabase(w http.ResponseWriter, r *http.Request) {
	companyID, ok := httputil.ParsePathInt64OrError(w, r, "company_id")
	if !ok {
		return
	}

	result, err := h.service.CreateDatabase(r.Context(), companyID)
	if err != nil {
		audit.Record(r.Context(), &audit.Event{
			EventType:    audit.EventTenantProvision,
			Status:       audit.StatusFailure,
			CompanyID:    audit.Int64(companyID),
			ResourceType: audit.ResourceDatabase,
		})
		httputil.WriteAppError(w, r, err)
		return
	}

	if result.Created {
		audit.Record(r.Context(), &audit.Event{
			EventType:    audit.EventTenantProvision,
			CompanyID:    audit.Int64(companyID),
			ResourceType: audit.ResourceDatabase,
			ResourceID:   result.DatabaseName,
		})
	}
	httputil.WriteSuccess(w, result)
}

type auditEventsResponse struct {
	Events []*audit.Event `json:"events"`
	Count  int            `json:"count"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// SearchAuditEvents handles GET /api/admin/audit-events
func (h *AdminHandlers) SearchAuditEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	events, err := h.auditLog.Search(r.Context(), filter)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, auditEventsResponse{
		Events: events,
		Count:  len(events),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

func parseAuditFilter(r *http.Request) (audit.SearchFilter, error) {
	q := r.URL.Query()
	var filter audit.SearchFilter

	var err error
	if filter.CompanyID, err = queryInt64(q.Get("company_id"), "company_id"); err != nil {
		return filter, err
	}
	if filter.ActorID, err = queryInt64(q.Get("actor_id"), "actor_id"); err != nil {
		return filter, err
	}
	for _, v := range q["event_type"] {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter.EventTypes = append(filter.EventTypes, audit.EventType(t))
			}
		}
	}
	if s := q.Get("status"); s != "" {
		status := audit.EventStatus(s)
		filter.Status = &status
	}
	if filter.Limit, err = queryInt(q.Get("limit"), "limit"); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(q.Get("offset"), "offset"); err != nil {
		return filter, err
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = audit.DefaultSearchLimit
	case filter.Limit > audit.MaxSearchLimit:
		filter.Limit = audit.MaxSearchLimit
	}
	return filter, nil
}

func queryInt64(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid integer for %s", name)
	}
	return &v, nil
}

func queryInt(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid integer for %s", name)
	}
	return v, nil
}
