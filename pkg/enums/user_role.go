package enums

import "slices"

// UserRole is the closed set of account roles.
type UserRole string

const (
	UserRoleAdmin    UserRole = "admin"
	UserRoleCustomer UserRole = "customer"
	UserRoleFarmer   UserRole = "farmer"
)

var userRoles = []UserRole{UserRoleAdmin, UserRoleCustomer, UserRoleFarmer}

func (r UserRole) String() string { return string(r) }

func (r UserRole) IsValid() bool { return slices.Contains(userRoles, r) }

func ParseUserRole(value string) (UserRole, error) {
	return parse("user role", value, userRoles)
}
