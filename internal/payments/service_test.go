package payments

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/authz"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/payhere"
)

func testPayHereConfig() config.PayHereConfig {
	return config.PayHereConfig{
		MerchantID:     "1211149",
		MerchantSecret: "secret",
		Currency:       "LKR",
		Country:        "Sri Lanka",
		CheckoutURL:    "https://sandbox.payhere.lk/pay/checkout",
		ReturnURL:      "https://farmlink.test/return",
		CancelURL:      "https://farmlink.test/cancel",
		NotifyURL:      "https://api.farmlink.test/api/v1/payments/webhook",
	}
}

func newTestService(t *testing.T) (Service, *db.Client) {
	t.Helper()
	client := dbtest.Open(t)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		TxRunner: client,
		PayHere:  testPayHereConfig(),
		Logger:   logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, client
}

func seedOrder(t *testing.T, client *db.Client) (*models.User, *models.Order) {
	t.Helper()
	farmer := dbtest.SeedUser(t, client, enums.UserRoleFarmer, "Farmer")
	customer := dbtest.SeedUser(t, client, enums.UserRoleCustomer, "Nimal Perera Silva")
	product := dbtest.SeedProduct(t, client, farmer.ID, "12.50", 10)
	return customer, dbtest.SeedOrder(t, client, customer.ID, product, product)
}

func TestEnsurePaymentIsIdempotent(t *testing.T) {
	svc, client := newTestService(t)
	_, order := seedOrder(t, client)
	ctx := context.Background()

	var first, second *models.Payment
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		first, err = svc.EnsurePayment(ctx, tx, order, "")
		return err
	}))
	require.Equal(t, enums.PaymentStatusPending, first.Status)
	require.Equal(t, enums.PaymentMethodCard, first.Method)
	require.Equal(t, "25.00", first.Amount.StringFixed(2))
	require.Equal(t, "LKR", first.Currency)

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		second, err = svc.EnsurePayment(ctx, tx, order, enums.PaymentMethodPayPal)
		return err
	}))
	require.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, client.DB().Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestDuplicatePaymentCreateIsUniqueViolation(t *testing.T) {
	_, client := newTestService(t)
	_, order := seedOrder(t, client)
	repo := NewRepository(client.DB())
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Payment{OrderID: order.ID, Status: enums.PaymentStatusPending, Method: enums.PaymentMethodCard, Amount: order.TotalAmount, Currency: "LKR"}))
	err := repo.Create(ctx, &models.Payment{OrderID: order.ID, Status: enums.PaymentStatusPending, Method: enums.PaymentMethodCard, Amount: order.TotalAmount, Currency: "LKR"})
	require.Error(t, err)
	require.True(t, db.IsUniqueViolation(err, ""))
}

func TestEnsurePaymentRejectsUnknownMethod(t *testing.T) {
	svc, client := newTestService(t)
	_, order := seedOrder(t, client)

	_, err := svc.EnsurePayment(context.Background(), client.DB(), order, enums.PaymentMethod("cash"))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestInitiateCheckoutBuildsSignedContext(t *testing.T) {
	svc, client := newTestService(t)
	customer, order := seedOrder(t, client)
	ctx := context.Background()
	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		payment, err := svc.EnsurePayment(ctx, tx, order, enums.PaymentMethodCard)
		if err != nil {
			return err
		}
		return NewRepository(tx).UpdateStatus(ctx, payment.ID, enums.PaymentStatusFailed, nil)
	}))

	out, err := svc.InitiateCheckout(ctx, authz.Actor{UserID: customer.ID, Role: enums.UserRoleCustomer}, order.ID)
	require.NoError(t, err)

	cfg := testPayHereConfig()
	require.Equal(t, "25.00", out.Amount)
	require.Equal(t, order.ID.String(), out.OrderID)
	require.Equal(t, "Order #"+order.ID.String(), out.Items)
	require.Equal(t, "Nimal", out.FirstName)
	require.Equal(t, "Perera Silva", out.LastName)
	require.Equal(t, "12 Temple Road, Kandy", out.Address)
	require.Equal(t, "12 Temple Road", out.City)
	require.Equal(t, customer.ContactNumber, out.Phone)
	require.Equal(t, cfg.NotifyURL, out.NotifyURL)
	require.Equal(t, "Sri Lanka", out.Country)
	require.Equal(t, payhere.CheckoutHash(cfg.MerchantID, order.ID.String(), "25.00", "LKR", cfg.MerchantSecret), out.Hash)

	payment, err := NewRepository(client.DB()).FindByOrderID(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, enums.PaymentStatusPending, payment.Status)
}

func TestInitiateCheckoutErrors(t *testing.T) {
	svc, client := newTestService(t)
	customer, order := seedOrder(t, client)
	stranger := dbtest.SeedUser(t, client, enums.UserRoleCustomer, "Other")
	ctx := context.Background()

	_, err := svc.InitiateCheckout(ctx, authz.Actor{UserID: customer.ID, Role: enums.UserRoleCustomer}, uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
	require.Equal(t, "Order does not exist", pkgerrors.As(err).Message())

	_, err = svc.InitiateCheckout(ctx, authz.Actor{UserID: stranger.ID, Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	admin := authz.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	_, err = svc.InitiateCheckout(ctx, admin, order.ID)
	require.NoError(t, err, "admins may initiate and a missing payment is created")

	require.NoError(t, client.DB().Model(&models.Payment{}).Where("order_id = ?", order.ID).Update("status", enums.PaymentStatusCompleted).Error)
	_, err = svc.InitiateCheckout(ctx, admin, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestInitiateCheckoutRejectsClosedOrders(t *testing.T) {
	svc, client := newTestService(t)
	customer, order := seedOrder(t, client)
	actor := authz.Actor{UserID: customer.ID, Role: enums.UserRoleCustomer}
	ctx := context.Background()

	for _, status := range []enums.OrderStatus{enums.OrderStatusCancelled, enums.OrderStatusDelivered} {
		require.NoError(t, client.DB().Model(&models.Order{}).Where("id = ?", order.ID).Update("status", status).Error)

		_, err := svc.InitiateCheckout(ctx, actor, order.ID)
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), string(status))
		details := pkgerrors.As(err).Details().(map[string]any)
		require.Equal(t, status, details["order_status"])
	}

	var count int64
	require.NoError(t, client.DB().Model(&models.Payment{}).Where("order_id = ?", order.ID).Count(&count).Error)
	require.Zero(t, count, "no payment is opened for a closed order")
}

func TestInitiateCheckoutHidesStorageFailures(t *testing.T) {
	svc, client := newTestService(t)
	customer, order := seedOrder(t, client)
	require.NoError(t, client.Close())

	_, err := svc.InitiateCheckout(context.Background(), authz.Actor{UserID: customer.ID, Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInternal))
	require.Equal(t, "Payment processing failed", pkgerrors.As(err).Message())
}

func TestNameAndCityHelpers(t *testing.T) {
	first, last := splitName("  Kamala  ")
	require.Equal(t, "Kamala", first)
	require.Empty(t, last)
	require.Empty(t, cityFromAddress("no comma here"))
}
