package db_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
)

func TestApplySQLiteSchemaIsRepeatable(t *testing.T) {
	client := dbtest.Open(t)
	require.NoError(t, client.ApplySQLiteSchema(context.Background()))
}

func TestSQLiteSchemaRejectsNegativeStock(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()

	farmer := models.User{ID: uuid.New(), Name: "Farmer", ContactNumber: "0770000001", Role: enums.UserRoleFarmer, PasswordHash: "x", IsActive: true}
	require.NoError(t, conn.Create(&farmer).Error)

	product := models.Product{ID: uuid.New(), FarmerID: farmer.ID, Name: "Carrots", Price: decimal.RequireFromString("120.00"), Stock: -1, IsActive: true}
	err := conn.Create(&product).Error
	require.Error(t, err)
	require.True(t, db.IsCheckViolation(err), "unexpected error %v", err)
}

func TestSQLiteSchemaEnforcesSinglePaymentPerOrder(t *testing.T) {
	client := dbtest.Open(t)
	conn := client.DB()

	customer := models.User{ID: uuid.New(), Name: "Customer", ContactNumber: "0770000002", Role: enums.UserRoleCustomer, PasswordHash: "x", IsActive: true}
	require.NoError(t, conn.Create(&customer).Error)
	order := models.Order{ID: uuid.New(), CustomerID: customer.ID, Status: enums.OrderStatusPlaced, TotalAmount: decimal.NewFromInt(10)}
	require.NoError(t, conn.Create(&order).Error)

	first := models.Payment{ID: uuid.New(), OrderID: order.ID, Status: enums.PaymentStatusPending, Method: enums.PaymentMethodCard, Amount: order.TotalAmount, Currency: "LKR"}
	require.NoError(t, conn.Create(&first).Error)

	second := models.Payment{ID: uuid.New(), OrderID: order.ID, Status: enums.PaymentStatusPending, Method: enums.PaymentMethodCard, Amount: order.TotalAmount, Currency: "LKR"}
	err := conn.Create(&second).Error
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err, ""), "unexpected error %v", err)
}
