package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/cashpro/pkg/audit"
	"github.com/platinummonkey/cashpro/pkg/auth"
	"github.com/platinummonkey/cashpro/pkg/httputil"
	"github.com/platinummonkey/cashpro/pkg/middleware"
)

// AuthHandlers handles session-related HTTP requests
type AuthHandlers struct {
	service      AuthService
	cookieSecure bool
}

// NewAuthHandlers creates a new auth handlers instance
func NewAuthHandlers(service AuthService, cookieSecure bool) *AuthHandlers {
	return &AuthHandlers{service: service, cookieSecure: cookieSecure}
}

// RegisterPublicRoutes registers the routes that work without a session.
// limiter, when set, throttles login per client IP.
func (h *AuthHandlers) RegisterPublicRoutes(router *mux.Router, limiter *middleware.RateLimitMiddleware) {
	router.HandleFunc("/auth/register", h.Register).Methods(http.MethodPost)

	var login http.Handler = http.HandlerFunc(h.Login)
	if limiter != nil {
		login = limiter.Handler(login)
	}
	router.Handle("/auth/login", login).Methods(http.MethodPost)

	router.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
}

// RegisterRoutes registers the routes that need a session
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/me", h.Me).Methods(http.MethodGet)
	router.HandleFunc("/auth/switch-company", h.SwitchCompany).Methods(http.MethodPost)
}

// RegisterAdminRoutes registers the super-admin session routes
func (h *AuthHandlers) RegisterAdminRoutes(router *mux.Router) {
	router.HandleFunc("/impersonate/{user_id}", h.Impersonate).Methods(http.MethodPost)
}

type loginRequest struct {
	EmailOrUsername string `json:"email_or_username"`
	Password        string `json:"password"`
}

type switchCompanyRequest struct {
	CompanyID int64 `json:"company_id"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type personMessageResponse struct {
	Message string       `json:"message"`
	User    *auth.Person `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterInput
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, token, err := h.service.Register(r.Context(), req)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.service.SessionTTL(), h.cookieSecure)
	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventRegister,
		ActorID:      audit.Int64(result.Person.ID),
		ResourceType: audit.ResourceUser,
		ResourceID:   strconv.FormatInt(result.Person.ID, 10),
	})
	httputil.WriteSuccess(w, result)
}

// Login handles POST /api/auth/login
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	result, token, err := h.service.Login(r.Context(), req.EmailOrUsername, req.Password)
	if err != nil {
		audit.Record(r.Context(), &audit.Event{
			EventType: audit.EventLoginFailed,
			Status:    audit.StatusFailure,
			Message:   err.Error(),
			Metadata:  map[string]interface{}{"identifier": req.EmailOrUsername},
		})
		httputil.WriteAppError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.service.SessionTTL(), h.cookieSecure)
	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventLogin,
		ActorID:      audit.Int64(result.Person.ID),
		CompanyID:    result.CurrentCompanyID,
		ResourceType: audit.ResourceUser,
		ResourceID:   strconv.FormatInt(result.Person.ID, 10),
	})
	httputil.WriteSuccess(w, result)
}

// Logout handles POST /api/auth/logout. Unknown or missing sessions still
// answer 200 and clear the cookie.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.SessionToken(r)); err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	middleware.ClearSessionCookie(w, h.cookieSecure)
	if middleware.GetIdentity(r) != nil {
		audit.Record(r.Context(), &audit.Event{EventType: audit.EventLogout, ResourceType: audit.ResourceSession})
	}
	httputil.WriteSuccess(w, messageResponse{Message: "Logged out successfully"})
}

// Me handles GET /api/auth/me
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Me(r.Context(), middleware.GetIdentity(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, result)
}

// SwitchCompany handles POST /api/auth/switch-company
func (h *AuthHandlers) SwitchCompany(w http.ResponseWriter, r *http.Request) {
	var req switchCompanyRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.CompanyID <= 0 {
		httputil.WriteBadRequest(w, "company_id is required")
		return
	}

	identity := middleware.GetIdentity(r)
	if err := h.service.SwitchCompany(r.Context(), identity, req.CompanyID); err != nil {
		audit.Record(r.Context(), &audit.Event{
			EventType: audit.EventSwitchCompany,
			Status:    audit.StatusDenied,
			CompanyID: audit.Int64(req.CompanyID),
		})
		httputil.WriteAppError(w, r, err)
		return
	}

	audit.Record(r.Context(), &audit.Event{
		EventType: audit.EventSwitchCompany,
		CompanyID: audit.Int64(req.CompanyID),
	})
	httputil.WriteSuccess(w, map[string]interface{}{
		"message":    "Company switched successfully",
		"company_id": req.CompanyID,
	})
}

// Impersonate handles POST /api/admin/impersonate/{user_id}
func (h *AuthHandlers) Impersonate(w http.ResponseWriter, r *http.Request) {
	targetID, ok := httputil.ParsePathInt64OrError(w, r, "user_id")
	if !ok {
		return
	}

	identity := middleware.GetIdentity(r)
	target, token, err := h.service.Impersonate(r.Context(), identity.Person, targetID)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.service.SessionTTL(), h.cookieSecure)
	message := fmt.Sprintf("Impersonating user %s", target.Email)
	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventImpersonate,
		ResourceType: audit.ResourceUser,
		ResourceID:   strconv.FormatInt(target.ID, 10),
		Message:      message,
	})
	httputil.WriteSuccess(w, personMessageResponse{Message: message, User: target})
}

// StopImpersonate handles POST /api/admin/stop-impersonate
func (h *AuthHandlers) StopImpersonate(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r)
	admin, token, err := h.service.StopImpersonate(r.Context(), identity)
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}

	middleware.SetSessionCookie(w, token, h.service.SessionTTL(), h.cookieSecure)
	audit.Record(r.Context(), &audit.Event{
		EventType:    audit.EventStopImpersonate,
		ResourceType: audit.ResourceUser,
		ResourceID:   strconv.FormatInt(identity.Person.ID, 10),
	})
	httputil.WriteSuccess(w, personMessageResponse{Message: "Stopped impersonating", User: admin})
}
