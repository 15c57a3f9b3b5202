package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/cashpro/pkg/apperrors"
	"github.com/platinummonkey/cashpro/pkg/companies"
	"github.com/platinummonkey/cashpro/pkg/database"
)

// ChartAccount is one row of a company's chart of accounts.
type ChartAccount struct {
	ID              int64  `json:"id"`
	Code            string `json:"account_code"`
	Name            string `json:"account_name"`
	Type            string `json:"account_type"`
	ParentAccountID *int64 `json:"parent_account_id"`
	IsActive        bool   `json:"is_active"`
	CompanyID       int64  `json:"company_id"`
}

// ListChartOfAccounts returns the company's accounts ordered by code.
func ListChartOfAccounts(ctx context.Context, q database.Querier, companyID int64) ([]ChartAccount, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, account_code, account_name, account_type, parent_account_id, is_active, company_id
		FROM chart_of_accounts
		WHERE company_id = $1
		ORDER BY account_code`, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chart of accounts: %w", err)
	}
	defer rows.Close()

	accounts := []ChartAccount{}
	for rows.Next() {
		var a ChartAccount
		var parent sql.NullInt64
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &parent, &a.IsActive, &a.CompanyID); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		if parent.Valid {
			a.ParentAccountID = &parent.Int64
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Ledger reads accounting data from tenant databases through pooled
// connections.
type Ledger struct {
	pools   Pools
	timeout time.Duration
}

// NewLedger creates a Ledger. A zero timeout means no per-call deadline.
func NewLedger(pools Pools, timeout time.Duration) *Ledger {
	return &Ledger{pools: pools, timeout: timeout}
}

// ChartOfAccounts lists company's accounts from its tenant database.
func (l *Ledger) ChartOfAccounts(ctx context.Context, company *companies.Company) ([]ChartAccount, error) {
	if company == nil || !company.HasDatabase() {
		return nil, apperrors.New(apperrors.ErrTenantUnavailable, "Company database not found")
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}
	db, err := l.pools.DB(ctx, *company.DatabaseName)
	if err != nil {
		return nil, err
	}
	return ListChartOfAccounts(ctx, db, company.ID)
}
