package shared

// Site builder permissions.
const (
	PermSiteBuilder = "site_builder"
	PermSitePublish = "site_publish"
)

// SiteScopes lists permissions for the visual site builder.
func SiteScopes() []string {
	return []string{PermSiteBuilder, PermSitePublish}
}

// AllScopes returns every permission key known to the back-office, grouped by module order.
func AllScopes() []string {
	var all []string
	all = append(all, CoreScopes()...)
	all = append(all, CommerceScopes()...)
	all = append(all, FinanceScopes()...)
	all = append(all, SettingsScopes()...)
	all = append(all, SiteScopes()...)
	return all
}
