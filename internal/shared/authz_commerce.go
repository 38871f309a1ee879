package shared

// Commerce permissions declared for RBAC.
const (
	// Order permissions
	PermOrderView   = "order_view"
	PermOrderEdit   = "order_edit"
	PermOrderRefund = "order_refund"

	// Point of sale
	PermPOSView = "pos_view"

	// Catalog permissions
	PermProductView   = "product_view"
	PermProductEdit   = "product_edit"
	PermInventoryView = "inventory_view"

	// Customers & marketing
	PermCustomerView   = "customer_view"
	PermMarketingView  = "marketing_view"
	PermDiscountManage = "discount_manage"
)

// CommerceScopes lists all permissions related to selling.
func CommerceScopes() []string {
	return []string{
		PermOrderView,
		PermOrderEdit,
		PermOrderRefund,
		PermPOSView,
		PermProductView,
		PermProductEdit,
		PermInventoryView,
		PermCustomerView,
		PermMarketingView,
		PermDiscountManage,
	}
}
