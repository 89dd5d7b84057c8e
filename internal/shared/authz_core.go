package shared

// Warehouse permissions declared for RBAC.
const (
	PermDashboardView = "dashboard.view"

	PermProductsView = "products.view"
	PermProductsEdit = "products.edit"

	PermTransactionsView = "transactions.view"
	PermTransactionsEdit = "transactions.edit"

	PermOrdersCreate = "orders.create"

	PermBillingsView = "billings.view"
	PermBillingsEdit = "billings.edit"

	PermReportsView = "reports.view"

	PermUsersView = "users.view"
	PermUsersEdit = "users.edit"
)

// Role names.
const (
	RoleAdmin  = "admin"
	RoleStaff  = "staff"
	RoleVendor = "vendor"
)

// CoreScopes lists every permission known to the service.
func CoreScopes() []string {
	return []string{
		PermDashboardView,
		PermProductsView,
		PermProductsEdit,
		PermTransactionsView,
		PermTransactionsEdit,
		PermOrdersCreate,
		PermBillingsView,
		PermBillingsEdit,
		PermReportsView,
		PermUsersView,
		PermUsersEdit,
	}
}

// RoleScopes returns the permissions granted to a role. Unknown roles get none.
func RoleScopes(role string) []string {
	switch role {
	case RoleAdmin:
		return CoreScopes()
	case RoleStaff:
		return []string{
			PermDashboardView,
			PermProductsView,
			PermProductsEdit,
			PermTransactionsView,
			PermTransactionsEdit,
			PermOrdersCreate,
			PermBillingsView,
			PermBillingsEdit,
			PermReportsView,
		}
	case RoleVendor:
		return []string{
			PermDashboardView,
			PermProductsView,
			PermOrdersCreate,
			PermBillingsView,
		}
	default:
		return nil
	}
}
