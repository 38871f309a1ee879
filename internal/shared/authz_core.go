package shared

// Core back-office permissions.
const (
	PermDashboardView = "dashboard_view"

	PermStaffManage = "staff_manage"
	PermRolesManage = "roles_manage"
	PermUsersManage = "users_manage"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermDashboardView,
		PermStaffManage,
		PermRolesManage,
		PermUsersManage,
	}
}
