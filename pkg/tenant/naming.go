package tenant

import (
	"fmt"
	"strings"
)

// DatabaseName derives the tenant database name for a company.
// Example: slug "Acme Co-op", id 7 -> "tenant_acme_co_op_7".
func DatabaseName(slug string, companyID int64) string {
	s := strings.ToLower(slug)
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	return fmt.Sprintf("tenant_%s_%d", s, companyID)
}
