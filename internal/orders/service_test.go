package orders

import (
	"context"
	"io"
	"math"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/farmlink-backend/internal/authz"
	"github.com/angelmondragon/farmlink-backend/internal/payments"
	"github.com/angelmondragon/farmlink-backend/internal/stock"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

type harness struct {
	svc      Service
	client   *db.Client
	farmer   *models.User
	customer *models.User
}

func newHarness(t *testing.T, client *db.Client) *harness {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	adjuster, err := stock.NewAdjuster(client, nil)
	require.NoError(t, err)
	paymentSvc, err := payments.NewService(payments.ServiceParams{
		Repo:     payments.NewRepository(client.DB()),
		TxRunner: client,
		PayHere:  config.PayHereConfig{MerchantID: "1211149", MerchantSecret: "secret", Currency: "LKR"},
		Logger:   logg,
	})
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(client.DB()),
		TxRunner: client,
		Stock:    adjuster,
		Payments: paymentSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(client.DB()), logg),
		Logger:   logg,
	})
	require.NoError(t, err)
	return &harness{
		svc:      svc,
		client:   client,
		farmer:   dbtest.SeedUser(t, client, enums.UserRoleFarmer, "Farmer"),
		customer: dbtest.SeedUser(t, client, enums.UserRoleCustomer, "Customer"),
	}
}

func (h *harness) customerActor() authz.Actor {
	return authz.Actor{UserID: h.customer.ID, Role: enums.UserRoleCustomer}
}

func (h *harness) farmerActor() authz.Actor {
	return authz.Actor{UserID: h.farmer.ID, Role: enums.UserRoleFarmer}
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.client.DB().Model(model).Count(&n).Error)
	return n
}

func (h *harness) stockOf(t *testing.T, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	require.NoError(t, h.client.DB().First(&product, "id = ?", productID).Error)
	return product.Stock
}

func TestPlaceOrderComputesTotalAndPayment(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "12.50", 5)

	order, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: h.customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, "25.00", order.TotalAmount)
	require.Equal(t, enums.OrderStatusPlaced, order.Status)
	require.Len(t, order.Items, 1)
	require.Equal(t, "12.50", order.Items[0].UnitPrice)
	require.Equal(t, "25.00", order.Items[0].LineTotal)
	require.NotNil(t, order.Payment)
	require.Equal(t, "25.00", order.Payment.Amount)
	require.Equal(t, enums.PaymentStatusPending, order.Payment.Status)
	require.Equal(t, enums.PaymentMethodCard, order.Payment.Method)

	require.Equal(t, 3, h.stockOf(t, product.ID))
	require.EqualValues(t, 1, h.count(t, &models.Payment{}))

	var event models.OutboxEvent
	require.NoError(t, h.client.DB().First(&event).Error)
	require.Equal(t, enums.EventOrderPlaced, event.EventType)
	require.Equal(t, order.ID, event.AggregateID)
}

func TestPlaceOrderMergesDuplicateProducts(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	carrots := dbtest.SeedProduct(t, h.client, h.farmer.ID, "100", 10)
	leeks := dbtest.SeedProduct(t, h.client, h.farmer.ID, "40.25", 10)

	order, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:    h.customer.ID,
		PaymentMethod: enums.PaymentMethodPayPal,
		Items: []ItemInput{
			{ProductID: carrots.ID, Quantity: 1},
			{ProductID: leeks.ID, Quantity: 2},
			{ProductID: carrots.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	require.Equal(t, "380.50", order.TotalAmount)
	require.Equal(t, enums.PaymentMethodPayPal, order.Payment.Method)
	require.Equal(t, 7, h.stockOf(t, carrots.ID))
	require.Equal(t, 8, h.stockOf(t, leeks.ID))
}

func TestPlaceOrderValidation(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 5)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{CustomerID: h.customer.ID})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: h.customer.ID,
		Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}, {ProductID: product.ID, Quantity: 0}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details, ok := pkgerrors.As(err).Details().(map[string]any)
	require.True(t, ok)
	require.Contains(t, details, "items[1].quantity")

	_, err = h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID:    h.customer.ID,
		PaymentMethod: enums.PaymentMethod("cash"),
		Items:         []ItemInput{{ProductID: product.ID, Quantity: 1}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.EqualValues(t, 0, h.count(t, &models.Order{}))
}

func TestPlaceOrderBoundsQuantities(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 5)
	ctx := context.Background()

	for _, tc := range []struct {
		name  string
		items []ItemInput
		field string
	}{
		{
			name:  "single line above column range",
			items: []ItemInput{{ProductID: product.ID, Quantity: math.MaxInt}},
			field: "items[0].quantity",
		},
		{
			name:  "merged lines overflow",
			items: []ItemInput{{ProductID: product.ID, Quantity: MaxLineQuantity}, {ProductID: product.ID, Quantity: 1}},
			field: "items[1].quantity",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: h.customer.ID, Items: tc.items})
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "%v", err)
			details, ok := pkgerrors.As(err).Details().(map[string]any)
			require.True(t, ok)
			require.Contains(t, details, tc.field)
		})
	}

	require.Equal(t, 5, h.stockOf(t, product.ID))
	require.EqualValues(t, 0, h.count(t, &models.Order{}))
}

func TestPlaceOrderUnknownProductIsFieldScoped(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 5)
	inactive := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 5)
	require.NoError(t, h.client.DB().Model(&models.Product{}).Where("id = ?", inactive.ID).Update("is_active", false).Error)

	for _, missing := range []uuid.UUID{uuid.New(), inactive.ID} {
		_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
			CustomerID: h.customer.ID,
			Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}, {ProductID: missing, Quantity: 1}},
		})
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeReferenceNotFound), "got %v", err)
		details := pkgerrors.As(err).Details().(map[string]any)
		require.Contains(t, details, "items[1].product_id")
	}
	require.Equal(t, 5, h.stockOf(t, product.ID))
	require.EqualValues(t, 0, h.count(t, &models.Order{}))
}

func TestPlaceOrderRollsBackOnInsufficientStock(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	plenty := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 10)
	scarce := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 1)

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		CustomerID: h.customer.ID,
		Items:      []ItemInput{{ProductID: plenty.ID, Quantity: 4}, {ProductID: scarce.ID, Quantity: 2}},
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock))

	require.Equal(t, 10, h.stockOf(t, plenty.ID))
	require.Equal(t, 1, h.stockOf(t, scarce.ID))
	require.EqualValues(t, 0, h.count(t, &models.Order{}))
	require.EqualValues(t, 0, h.count(t, &models.OrderItem{}))
	require.EqualValues(t, 0, h.count(t, &models.Payment{}))
	require.EqualValues(t, 0, h.count(t, &models.OutboxEvent{}))
}

func TestPlaceOrderRequiresCustomer(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "10", 5)
	items := []ItemInput{{ProductID: product.ID, Quantity: 1}}

	_, err := h.svc.PlaceOrder(context.Background(), PlaceOrderInput{CustomerID: h.farmer.ID, Items: items})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.PlaceOrder(context.Background(), PlaceOrderInput{CustomerID: uuid.New(), Items: items})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestConcurrentOrdersForLastUnit(t *testing.T) {
	h := newHarness(t, dbtest.OpenFile(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "50", 1)
	other := dbtest.SeedUser(t, h.client, enums.UserRoleCustomer, "Second")

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, customerID := range []uuid.UUID{h.customer.ID, other.ID} {
		wg.Add(1)
		go func(i int, customerID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = h.svc.PlaceOrder(context.Background(), PlaceOrderInput{
				CustomerID: customerID,
				Items:      []ItemInput{{ProductID: product.ID, Quantity: 1}},
			})
		}(i, customerID)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientStock), "unexpected error %v", err)
	}
	require.Equal(t, 1, succeeded)
	require.Equal(t, 0, h.stockOf(t, product.ID))
	require.EqualValues(t, 1, h.count(t, &models.Order{}))
}

func TestUpdateStatusLifecycle(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "20", 5)
	ctx := context.Background()
	order, err := h.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: h.customer.ID, Items: []ItemInput{{ProductID: product.ID, Quantity: 3}}})
	require.NoError(t, err)

	_, err = h.svc.UpdateStatus(ctx, h.farmerActor(), order.ID, "shipped")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Equal(t, "Invalid status", pkgerrors.As(err).Message())

	stranger := dbtest.SeedUser(t, h.client, enums.UserRoleFarmer, "Stranger")
	_, err = h.svc.UpdateStatus(ctx, authz.Actor{UserID: stranger.ID, Role: enums.UserRoleFarmer}, order.ID, "confirmed")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	_, err = h.svc.UpdateStatus(ctx, h.customerActor(), order.ID, "confirmed")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))

	result, err := h.svc.UpdateStatus(ctx, h.farmerActor(), order.ID, "picked")
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.Equal(t, enums.OrderStatusPicked, result.Status)

	result, err = h.svc.UpdateStatus(ctx, h.farmerActor(), order.ID, "picked")
	require.NoError(t, err)
	require.False(t, result.Changed)

	_, err = h.svc.UpdateStatus(ctx, h.farmerActor(), order.ID, "confirmed")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	admin := authz.Actor{UserID: uuid.New(), Role: enums.UserRoleAdmin}
	result, err = h.svc.UpdateStatus(ctx, admin, order.ID, "cancelled")
	require.NoError(t, err)
	require.True(t, result.StockRestored)
	require.Equal(t, 5, h.stockOf(t, product.ID))

	_, err = h.svc.UpdateStatus(ctx, admin, order.ID, "delivered")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	_, err = h.svc.UpdateStatus(ctx, admin, uuid.New(), "confirmed")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	require.EqualValues(t, 3, h.count(t, &models.OutboxEvent{}))
}

func TestGetOrderAccess(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	product := dbtest.SeedProduct(t, h.client, h.farmer.ID, "20", 5)
	ctx := context.Background()
	order, err := h.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: h.customer.ID, Items: []ItemInput{{ProductID: product.ID, Quantity: 1}}})
	require.NoError(t, err)

	got, err := h.svc.GetOrder(ctx, h.customerActor(), order.ID)
	require.NoError(t, err)
	require.Equal(t, product.Name, got.Items[0].ProductName)

	_, err = h.svc.GetOrder(ctx, h.farmerActor(), order.ID)
	require.NoError(t, err)

	other := dbtest.SeedUser(t, h.client, enums.UserRoleCustomer, "Other")
	_, err = h.svc.GetOrder(ctx, authz.Actor{UserID: other.ID, Role: enums.UserRoleCustomer}, order.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestListOrdersByCustomerAndFarmer(t *testing.T) {
	h := newHarness(t, dbtest.Open(t))
	mine := dbtest.SeedProduct(t, h.client, h.farmer.ID, "20", 50)
	otherFarmer := dbtest.SeedUser(t, h.client, enums.UserRoleFarmer, "Other farmer")
	theirs := dbtest.SeedProduct(t, h.client, otherFarmer.ID, "20", 50)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := h.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: h.customer.ID, Items: []ItemInput{{ProductID: mine.ID, Quantity: 1}}})
		require.NoError(t, err)
	}
	_, err := h.svc.PlaceOrder(ctx, PlaceOrderInput{CustomerID: h.customer.ID, Items: []ItemInput{{ProductID: theirs.ID, Quantity: 1}}})
	require.NoError(t, err)

	page, err := h.svc.ListCustomerOrders(ctx, h.customerActor(), pagination.Params{Limit: 3})
	require.NoError(t, err)
	require.Len(t, page.Items, 3)
	require.NotEmpty(t, page.NextCursor)

	rest, err := h.svc.ListCustomerOrders(ctx, h.customerActor(), pagination.Params{Limit: 3, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Items, 1)
	require.Empty(t, rest.NextCursor)

	farmerPage, err := h.svc.ListFarmerOrders(ctx, h.farmerActor(), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, farmerPage.Items, 3)

	_, err = h.svc.ListFarmerOrders(ctx, h.customerActor(), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	_, err = h.svc.ListCustomerOrders(ctx, h.farmerActor(), pagination.Params{})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}
