package rbac

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// Engine evaluates permission checks. It never returns errors: anything
// that goes wrong denies.
type Engine struct {
	members MembershipReader
	graphs  GraphOpener
	timeout time.Duration
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewEngine creates an engine. timeout bounds each tenant lookup, opening
// the tenant connection included; zero means no extra bound beyond the
// caller's context.
func NewEngine(members MembershipReader, graphs GraphOpener, timeout time.Duration, metrics *observability.Metrics, logger *observability.Logger) *Engine {
	if logger == nil {
		logger = observability.NewDiscardLogger()
	}
	return &Engine{
		members: members,
		graphs:  graphs,
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// CheckPermission reports whether person may perform action on
// resourceType within company.
func (e *Engine) CheckPermission(ctx context.Context, personID, companyID int64, resourceType, action string) bool {
	return e.Explain(ctx, personID, companyID, resourceType, action).Allowed()
}

// Explain runs the check and returns the rule that decided it.
func (e *Engine) Explain(ctx context.Context, personID, companyID int64, resourceType, action string) Decision {
	ctx, span := observability.StartSpan(ctx, "rbac.check_permission",
		attribute.Int64("person_id", personID),
		attribute.Int64("company_id", companyID),
		attribute.String("permission", resourceType+":"+action),
	)
	defer span.End()

	d, err := e.decide(ctx, personID, companyID, resourceType, action)
	if err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"person_id":  personID,
			"company_id": companyID,
			"permission": resourceType + ":" + action,
		}).Warn("Permission check failed, denying")
		d = DecisionError
	}
	span.SetAttributes(attribute.String("decision", string(d)))
	e.metrics.PermissionCheck(string(d))
	return d
}

func (e *Engine) decide(ctx context.Context, personID, companyID int64, resourceType, action string) (Decision, error) {
	company, err := e.members.GetByID(ctx, companyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return DecisionNoTenantDB, nil
	}
	if err != nil {
		return "", err
	}
	if !company.HasDatabase() {
		return DecisionNoTenantDB, nil
	}

	membership, err := e.members.GetMembership(ctx, personID, companyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return DecisionNoMembership, nil
	}
	if err != nil {
		return "", err
	}
	if membership.Role.IsManager() {
		return DecisionCoarseRole, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	graph, err := e.graphs.OpenGraph(ctx, company)
	if err != nil {
		return "", err
	}

	ok, err := graph.HasRolePermission(ctx, personID, companyID, resourceType, action)
	if err != nil {
		return "", err
	}
	if ok {
		return DecisionRolePermission, nil
	}

	ok, err = graph.HasResourceGrant(ctx, personID, resourceType, action)
	if err != nil {
		return "", err
	}
	if ok {
		return DecisionResourceGrant, nil
	}

	if (membership.Role == companies.RoleMember || membership.Role == companies.RoleViewer) && action == ActionRead {
		return DecisionReadFallback, nil
	}
	return DecisionDenied, nil
}

// ListPermissions returns the sorted, de-duplicated permissions a person
// holds in a company through tenant roles and direct grants. Coarse roles
// and the read fallback are not included. Any failure yields an empty list.
func (e *Engine) ListPermissions(ctx context.Context, personID, companyID int64) []string {
	perms, err := e.listPermissions(ctx, personID, companyID)
	if err != nil {
		e.logger.WithError(err).WithFields(map[string]interface{}{
			"person_id":  personID,
			"company_id": companyID,
		}).Warn("Listing permissions failed")
		return []string{}
	}
	return perms
}

func (e *Engine) listPermissions(ctx context.Context, personID, companyID int64) ([]string, error) {
	company, err := e.members.GetByID(ctx, companyID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if !company.HasDatabase() {
		return []string{}, nil
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	graph, err := e.graphs.OpenGraph(ctx, company)
	if err != nil {
		return nil, err
	}

	raw, err := graph.PermissionStrings(ctx, personID, companyID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out, nil
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}
