// Package plans maps subscription tiers to the permissions they grant store owners.
package plans

import (
	"strings"

	"github.com/storecraft/backoffice/internal/perm"
	"github.com/storecraft/backoffice/internal/shared"
)

// Type identifies a subscription plan.
type Type string

// Known plan types.
const (
	Free       Type = "free"
	Basic      Type = "basic"
	Pro        Type = "pro"
	Enterprise Type = "enterprise"
)

var table = buildTable()

func buildTable() map[Type]perm.Set {
	free := []string{
		shared.PermDashboardView,
		shared.PermOrderView,
		shared.PermProductView,
		shared.PermProductEdit,
		shared.PermCustomerView,
		shared.PermSiteBuilder,
		shared.PermSettingsGeneral,
	}
	basic := append(clone(free),
		shared.PermOrderEdit,
		shared.PermInventoryView,
		shared.PermSitePublish,
		shared.PermSettingsPayments,
		shared.PermSettingsShipping,
	)
	pro := append(clone(basic),
		shared.PermOrderRefund,
		shared.PermPOSView,
		shared.PermMarketingView,
		shared.PermDiscountManage,
		shared.PermAnalyticsView,
		shared.PermSettingsDomains,
		shared.PermStaffManage,
	)
	enterprise := append(clone(pro),
		shared.PermFinanceReports,
		shared.PermPayoutsView,
		shared.PermRolesManage,
		shared.PermUsersManage,
	)
	return map[Type]perm.Set{
		Free:       perm.NewSet(free...),
		Basic:      perm.NewSet(basic...),
		Pro:        perm.NewSet(pro...),
		Enterprise: perm.NewSet(enterprise...),
	}
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func normalize(planType string) Type {
	return Type(strings.ToLower(strings.TrimSpace(planType)))
}

// Known reports whether planType names a plan in the table.
func Known(planType string) bool {
	_, ok := table[normalize(planType)]
	return ok
}

// Permissions returns the sorted permission keys granted by planType. Unknown plans grant nothing.
func Permissions(planType string) []string {
	set, ok := table[normalize(planType)]
	if !ok {
		return []string{}
	}
	return set.Keys()
}

// HasPermission reports whether planType grants key.
func HasPermission(planType, key string) bool {
	return table[normalize(planType)].Has(key)
}

// HasAnyPermission reports whether planType grants at least one of keys.
func HasAnyPermission(planType string, keys []string) bool {
	return table[normalize(planType)].HasAny(keys)
}

// HasAllPermissions reports whether planType grants every key.
func HasAllPermissions(planType string, keys []string) bool {
	set, ok := table[normalize(planType)]
	if !ok {
		return false
	}
	return set.HasAll(keys)
}

// Satisfies evaluates q against planType.
func Satisfies(planType string, q perm.Query) bool {
	set, ok := table[normalize(planType)]
	if !ok {
		return false
	}
	return set.Satisfies(q)
}
