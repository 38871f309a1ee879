package shared

// Store settings permissions.
const (
	PermSettingsGeneral  = "settings_general"
	PermSettingsPayments = "settings_payments"
	PermSettingsShipping = "settings_shipping"
	PermSettingsDomains  = "settings_domains"
)

// SettingsScopes lists all settings page permissions.
func SettingsScopes() []string {
	return []string{
		PermSettingsGeneral,
		PermSettingsPayments,
		PermSettingsShipping,
		PermSettingsDomains,
	}
}
