package users

import (
	"github.com/sevensea/warehouse/internal/platform/export"
)

const lastLoginLayout = "2006-01-02 15:04"

// ExportTable lists users for the CSV or XLSX download.
func ExportTable(users []User) export.Table {
	t := export.Table{Sheet: "Users", Headers: []string{"Name", "Email", "Role", "Vendor Number", "Status", "Last Login"}}
	for _, u := range users {
		lastLogin := "Never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(lastLoginLayout)
		}
		t.Rows = append(t.Rows, []string{u.Name, u.Email, u.Role, u.VendorNumber, u.Status(), lastLogin})
	}
	return t
}
