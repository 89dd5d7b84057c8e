package shared

import "strings"

// AllVendorsMarker grants access to every vendor number.
const AllVendorsMarker = "ALL"

// VendorScope lists the vendor numbers a caller may see. An empty scope sees nothing.
type VendorScope []string

// AllVendors is the unrestricted scope used by admin and staff.
var AllVendors = VendorScope{AllVendorsMarker}

// Allows reports whether vendorNumber is visible within the scope.
func (s VendorScope) Allows(vendorNumber string) bool {
	for _, v := range s {
		if v == AllVendorsMarker || strings.EqualFold(v, vendorNumber) {
			return true
		}
	}
	return false
}

// Unrestricted reports whether the scope covers every vendor.
func (s VendorScope) Unrestricted() bool {
	for _, v := range s {
		if v == AllVendorsMarker {
			return true
		}
	}
	return false
}

// String is used as a cache key for scoped projections.
func (s VendorScope) String() string {
	return strings.Join(s, ",")
}

// ScopeFor derives the vendor scope of a role: admin and staff see all
// vendors, a vendor sees ALL or only its own number.
func ScopeFor(role, vendorNumber string) VendorScope {
	switch role {
	case RoleAdmin, RoleStaff:
		return AllVendors
	case RoleVendor:
		if vendorNumber == AllVendorsMarker {
			return AllVendors
		}
		if vendorNumber != "" {
			return VendorScope{vendorNumber}
		}
	}
	return VendorScope{}
}
