// Package authz holds the capability checks shared by the catalog, order and payment services.
package authz

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
)

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Role   enums.UserRole
}

// IsAdmin reports whether the actor carries the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == enums.UserRoleAdmin
}

func (a Actor) valid() bool {
	return a.UserID != uuid.Nil && a.Role.IsValid()
}

// CanCreateProduct allows farmers to list products.
func CanCreateProduct(actor Actor) error {
	if !actor.valid() {
		return unauthenticated()
	}
	if actor.Role != enums.UserRoleFarmer {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can create products")
	}
	return nil
}

// CanManageProduct allows the owning farmer to update or delete a product.
func CanManageProduct(actor Actor, farmerID uuid.UUID) error {
	if !actor.valid() {
		return unauthenticated()
	}
	if actor.Role != enums.UserRoleFarmer || actor.UserID != farmerID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only the owning farmer can modify this product")
	}
	return nil
}

// CanPlaceOrder allows customers to place orders for themselves.
func CanPlaceOrder(actor Actor) error {
	if !actor.valid() {
		return unauthenticated()
	}
	if actor.Role != enums.UserRoleCustomer {
		return pkgerrors.New(pkgerrors.CodeForbidden, "only customers can place orders")
	}
	return nil
}

// CanViewOrder allows the ordering customer, a farmer with a product in the order, or an admin.
func CanViewOrder(actor Actor, customerID uuid.UUID, farmerIDs []uuid.UUID) error {
	if !actor.valid() {
		return unauthenticated()
	}
	switch actor.Role {
	case enums.UserRoleAdmin:
		return nil
	case enums.UserRoleCustomer:
		if actor.UserID == customerID {
			return nil
		}
	case enums.UserRoleFarmer:
		if containsID(farmerIDs, actor.UserID) {
			return nil
		}
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "order access denied")
}

// CanUpdateOrderStatus allows admins and farmers who own a product in the order.
func CanUpdateOrderStatus(actor Actor, farmerIDs []uuid.UUID) error {
	if !actor.valid() {
		return unauthenticated()
	}
	if actor.IsAdmin() {
		return nil
	}
	if actor.Role == enums.UserRoleFarmer && containsID(farmerIDs, actor.UserID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to update this order")
}

// CanInitiatePayment allows the ordering customer or an admin.
func CanInitiatePayment(actor Actor, customerID uuid.UUID) error {
	if !actor.valid() {
		return unauthenticated()
	}
	if actor.IsAdmin() || (actor.Role == enums.UserRoleCustomer && actor.UserID == customerID) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "not allowed to pay for this order")
}

func unauthenticated() error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
}

func containsID(ids []uuid.UUID, target uuid.UUID) bool {
	for _, id := range ids {
		if id == target {
			return true
		}
	}
	return false
}
