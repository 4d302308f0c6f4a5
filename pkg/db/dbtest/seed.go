package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

// SeedUser inserts an active user with a unique contact number.
func SeedUser(t testing.TB, client *db.Client, role enums.UserRole, name string) *models.User {
	t.Helper()
	email := uuid.NewString() + "@farmlink.test"
	address := "12 Temple Road, Kandy"
	user := &models.User{
		ID:            uuid.New(),
		Name:          name,
		ContactNumber: "07" + uuid.NewString()[:8],
		Email:         &email,
		Address:       &address,
		Role:          role,
		PasswordHash:  "hash",
		IsActive:      true,
	}
	if err := client.DB().Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

// SeedProduct inserts an active product owned by farmerID.
func SeedProduct(t testing.TB, client *db.Client, farmerID uuid.UUID, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		ID:       uuid.New(),
		FarmerID: farmerID,
		Name:     "Produce " + uuid.NewString()[:4],
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := client.DB().Create(product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// SeedOrder inserts a placed order with one line per product at quantity 1 and no payment.
func SeedOrder(t testing.TB, client *db.Client, customerID uuid.UUID, products ...*models.Product) *models.Order {
	t.Helper()
	order := &models.Order{ID: uuid.New(), CustomerID: customerID, Status: enums.OrderStatusPlaced}
	for _, product := range products {
		order.Items = append(order.Items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: product.ID,
			Quantity:  1,
			UnitPrice: product.Price,
			LineTotal: product.Price,
		})
		order.TotalAmount = order.TotalAmount.Add(product.Price)
	}
	if err := client.DB().Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}
