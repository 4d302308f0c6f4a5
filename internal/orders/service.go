package orders

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/authz"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockAdjuster applies a signed stock delta inside the caller's transaction.
type StockAdjuster interface {
	Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (*models.Product, error)
}

type paymentEnsurer interface {
	EnsurePayment(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*models.Payment, error)
}

// Service defines order placement, lifecycle updates and order reads.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, actor authz.Actor, orderID uuid.UUID, status string) (*StatusUpdateResult, error)
	GetOrder(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*OrderDTO, error)
	ListCustomerOrders(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderList, error)
	ListFarmerOrders(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderList, error)
}

type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Stock    StockAdjuster
	Payments paymentEnsurer
	Outbox   outbox.Emitter
	Metrics  *metrics.CommerceMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	stock    StockAdjuster
	payments paymentEnsurer
	outbox   outbox.Emitter
	metrics  *metrics.CommerceMetrics
	logg     *logger.Logger
}

// NewService builds the order service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.TxRunner,
		stock:    params.Stock,
		payments: params.Payments,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// MaxLineQuantity bounds a single order line, matching the integer quantity column.
const MaxLineQuantity = math.MaxInt32

// requestedLine is a merged item together with the index of its first occurrence in the request.
type requestedLine struct {
	index     int
	productID uuid.UUID
	quantity  int
}

func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*OrderDTO, error) {
	order, err := s.placeOrder(ctx, input)
	if err != nil {
		s.metrics.IncOrderPlaced(outcomeFor(err))
		return nil, err
	}
	s.metrics.IncOrderPlaced("success")

	hydrated, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load placed order")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"order_id":     hydrated.ID.String(),
		"customer_id":  hydrated.CustomerID.String(),
		"total_amount": hydrated.TotalAmount.StringFixed(2),
	})
	s.logg.Info(ctx, "order placed")
	return NewOrderDTO(hydrated), nil
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*models.Order, error) {
	lines, err := mergeItems(input.Items)
	if err != nil {
		return nil, err
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method").WithDetails(map[string]any{
			"payment_method": "must be card or paypal",
		})
	}

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		customer, err := repo.FindCustomer(ctx, input.CustomerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "customer not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer")
		}
		if err := authz.CanPlaceOrder(authz.Actor{UserID: customer.ID, Role: customer.Role}); err != nil {
			return err
		}
		if !customer.IsActive {
			return pkgerrors.New(pkgerrors.CodeForbidden, "customer account is inactive")
		}

		ids := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			ids = append(ids, line.productID)
		}
		products, err := repo.FindProducts(ctx, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
		}
		for _, line := range lines {
			if product, ok := products[line.productID]; !ok || !product.IsActive {
				return productReferenceError(line)
			}
		}

		order := &models.Order{
			ID:          uuid.New(),
			CustomerID:  customer.ID,
			Status:      enums.OrderStatusPlaced,
			TotalAmount: decimal.Zero,
		}
		if err := repo.CreateOrder(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}

		items := make([]models.OrderItem, 0, len(lines))
		eventLines := make([]payloads.OrderLine, 0, len(lines))
		total := decimal.Zero
		for _, line := range lines {
			product, err := s.stock.Adjust(ctx, tx, line.productID, -line.quantity)
			if err != nil {
				return err
			}
			lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.quantity))).Round(2)
			items = append(items, models.OrderItem{
				ID:        uuid.New(),
				OrderID:   order.ID,
				ProductID: product.ID,
				Quantity:  line.quantity,
				UnitPrice: product.Price,
				LineTotal: lineTotal,
			})
			eventLines = append(eventLines, payloads.OrderLine{
				ProductID: product.ID,
				FarmerID:  product.FarmerID,
				Quantity:  line.quantity,
				UnitPrice: product.Price,
				LineTotal: lineTotal,
			})
			total = total.Add(lineTotal)
		}
		if err := repo.CreateItems(ctx, items); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
		}
		if err := repo.UpdateTotal(ctx, order.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store order total")
		}
		order.TotalAmount = total
		order.Items = items

		payment, err := s.payments.EnsurePayment(ctx, tx, order, method)
		if err != nil {
			return err
		}
		order.Payment = payment

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: customer.ID, Role: customer.Role},
			Data: payloads.OrderPlacedEvent{
				OrderID:     order.ID,
				CustomerID:  customer.ID,
				PaymentID:   payment.ID,
				TotalAmount: total,
				Items:       eventLines,
				PlacedAt:    order.CreatedAt,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order placed event")
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

func (s *service) UpdateStatus(ctx context.Context, actor authz.Actor, orderID uuid.UUID, raw string) (*StatusUpdateResult, error) {
	next, err := enums.ParseOrderStatus(strings.TrimSpace(raw))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid status")
	}

	var result *StatusUpdateResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindForUpdate(ctx, orderID)
		if err != nil {
			return mapOrderLookup(err)
		}
		if err := authz.CanUpdateOrderStatus(actor, FarmerIDs(order)); err != nil {
			return err
		}

		result = &StatusUpdateResult{OrderID: order.ID, Status: order.Status}
		if order.Status == next {
			return nil
		}
		if !order.Status.CanTransitionTo(next) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot move order from %s to %s", order.Status, next).WithDetails(map[string]any{
				"from": order.Status,
				"to":   next,
			})
		}

		if next == enums.OrderStatusCancelled {
			if err := RestoreStock(ctx, tx, s.stock, order); err != nil {
				return err
			}
			result.StockRestored = true
		}
		if err := repo.UpdateStatus(ctx, order.ID, next); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actor.UserID, Role: actor.Role},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				From:          order.Status,
				To:            next,
				StockRestored: result.StockRestored,
				Source:        payloads.SourceStaff,
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue order status event")
		}
		result.Status = next
		result.Changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Changed {
		ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{"status": result.Status})
		s.logg.Info(ctx, "order status updated")
	}
	return result, nil
}

func (s *service) GetOrder(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderLookup(err)
	}
	if err := authz.CanViewOrder(actor, order.CustomerID, FarmerIDs(order)); err != nil {
		return nil, err
	}
	return NewOrderDTO(order), nil
}

func (s *service) ListCustomerOrders(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if actor.Role != enums.UserRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers have order history")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByCustomer(ctx, actor.UserID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list customer orders")
	}
	return toPage(rows, params.Limit), nil
}

func (s *service) ListFarmerOrders(ctx context.Context, actor authz.Actor, params pagination.Params) (*OrderList, error) {
	if actor.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if actor.Role != enums.UserRoleFarmer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only farmers can list farmer orders")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByFarmer(ctx, actor.UserID, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list farmer orders")
	}
	return toPage(rows, params.Limit), nil
}

// RestoreStock puts every line's quantity back on its product inside tx.
func RestoreStock(ctx context.Context, tx *gorm.DB, stock StockAdjuster, order *models.Order) error {
	for _, item := range order.Items {
		if _, err := stock.Adjust(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func mergeItems(items []ItemInput) ([]requestedLine, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required").WithDetails(map[string]any{
			"items": "must not be empty",
		})
	}
	details := map[string]any{}
	merged := make([]requestedLine, 0, len(items))
	positions := make(map[uuid.UUID]int, len(items))
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			details[fmt.Sprintf("items[%d].product_id", i)] = "is required"
		}
		switch {
		case item.Quantity <= 0:
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than zero"
		case item.Quantity > MaxLineQuantity:
			details[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must not exceed %d", MaxLineQuantity)
		}
		if len(details) > 0 {
			continue
		}
		if pos, ok := positions[item.ProductID]; ok {
			if merged[pos].quantity > MaxLineQuantity-item.Quantity {
				details[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("combined quantity for product must not exceed %d", MaxLineQuantity)
				continue
			}
			merged[pos].quantity += item.Quantity
			continue
		}
		positions[item.ProductID] = len(merged)
		merged = append(merged, requestedLine{index: i, productID: item.ProductID, quantity: item.Quantity})
	}
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order items").WithDetails(details)
	}
	return merged, nil
}

func productReferenceError(line requestedLine) error {
	field := fmt.Sprintf("items[%d].product_id", line.index)
	return pkgerrors.Newf(pkgerrors.CodeReferenceNotFound, "product %s not found", line.productID).WithDetails(map[string]any{
		field: fmt.Sprintf("product %s does not exist or is not available", line.productID),
	})
}

func mapOrderLookup(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

func toPage(rows []models.Order, limit int) *OrderList {
	page := pagination.Trim(rows, limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	items := make([]OrderDTO, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *NewOrderDTO(&page.Items[i]))
	}
	return &OrderList{Items: items, NextCursor: page.NextCursor}
}

func outcomeFor(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return "error"
}
