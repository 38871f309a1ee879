package shared

// Finance permissions declared for RBAC.
const (
	PermFinanceReports = "finance_reports"
	PermAnalyticsView  = "analytics_view"
	PermPayoutsView    = "payouts_view"
)

// FinanceScopes lists all permissions related to the finance module.
func FinanceScopes() []string {
	return []string{
		PermFinanceReports,
		PermAnalyticsView,
		PermPayoutsView,
	}
}
