package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/authz"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/payhere"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages the payment bound to each order.
type Service interface {
	EnsurePayment(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*models.Payment, error)
	InitiateCheckout(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*CheckoutContext, error)
}

type ServiceParams struct {
	Repo     *Repository
	TxRunner txRunner
	PayHere  config.PayHereConfig
	Logger   *logger.Logger
}

type service struct {
	repo    *Repository
	tx      txRunner
	payhere config.PayHereConfig
	logg    *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.PayHere.MerchantID == "" || params.PayHere.MerchantSecret == "" {
		return nil, fmt.Errorf("payhere merchant credentials required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TxRunner,
		payhere: params.PayHere,
		logg:    params.Logger,
	}, nil
}

// EnsurePayment returns the order's payment, creating a pending one for the order total when absent.
func (s *service) EnsurePayment(ctx context.Context, tx *gorm.DB, order *models.Order, method enums.PaymentMethod) (*models.Payment, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	if method == "" {
		method = enums.PaymentMethodCard
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByOrderID(ctx, order.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}

	payment := &models.Payment{
		ID:       uuid.New(),
		OrderID:  order.ID,
		Status:   enums.PaymentStatusPending,
		Method:   method,
		Amount:   order.TotalAmount,
		Currency: s.payhere.Currency,
	}
	if err := repo.Create(ctx, payment); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already exists for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment")
	}
	return payment, nil
}

// InitiateCheckout signs the PayHere checkout for the order and resets its payment to pending.
func (s *service) InitiateCheckout(ctx context.Context, actor authz.Actor, orderID uuid.UUID) (*CheckoutContext, error) {
	ctx = s.logg.WithOrderID(ctx, orderID)

	var out *CheckoutContext
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindOrderForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Order does not exist")
			}
			return err
		}
		if err := authz.CanInitiatePayment(actor, order.CustomerID); err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order is %s", order.Status).WithDetails(map[string]any{
				"order_status": order.Status,
			})
		}
		if order.Customer == nil {
			return fmt.Errorf("order %s has no customer", order.ID)
		}

		payment, err := repo.FindByOrderIDForUpdate(ctx, order.ID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			payment, err = s.EnsurePayment(ctx, tx, order, enums.PaymentMethodCard)
			if err != nil {
				return err
			}
		case err != nil:
			return err
		}
		if payment.Status.IsSettled() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payment already settled").WithDetails(map[string]any{
				"payment_status": payment.Status,
			})
		}
		if payment.Status != enums.PaymentStatusPending {
			if err := repo.UpdateStatus(ctx, payment.ID, enums.PaymentStatusPending, nil); err != nil {
				return err
			}
		}

		out = s.buildContext(order)
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() != pkgerrors.CodeInternal && typed.Code() != pkgerrors.CodeDependency {
			return nil, err
		}
		s.logg.Error(ctx, "payment processing error", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Payment processing failed")
	}
	s.logg.Info(ctx, "payment checkout initiated")
	return out, nil
}

func (s *service) buildContext(order *models.Order) *CheckoutContext {
	customer := order.Customer
	amount := payhere.FormatAmount(order.TotalAmount)
	orderID := order.ID.String()
	firstName, lastName := splitName(customer.Name)

	var email, address string
	if customer.Email != nil {
		email = *customer.Email
	}
	if customer.Address != nil {
		address = *customer.Address
	}

	return &CheckoutContext{
		ActionURL:  s.payhere.CheckoutURL,
		MerchantID: s.payhere.MerchantID,
		ReturnURL:  s.payhere.ReturnURL,
		CancelURL:  s.payhere.CancelURL,
		NotifyURL:  s.payhere.NotifyURL,
		OrderID:    orderID,
		Items:      "Order #" + orderID,
		Amount:     amount,
		Currency:   s.payhere.Currency,
		FirstName:  firstName,
		LastName:   lastName,
		Email:      email,
		Phone:      customer.ContactNumber,
		Address:    address,
		City:       cityFromAddress(address),
		Country:    s.payhere.Country,
		Hash:       payhere.CheckoutHash(s.payhere.MerchantID, orderID, amount, s.payhere.Currency, s.payhere.MerchantSecret),
	}
}

func splitName(name string) (string, string) {
	name = strings.TrimSpace(name)
	idx := strings.IndexFunc(name, unicode.IsSpace)
	if idx < 0 {
		return name, ""
	}
	return name[:idx], strings.TrimSpace(name[idx:])
}

// cityFromAddress takes the text before the first comma; addresses without one have no city.
func cityFromAddress(address string) string {
	idx := strings.Index(address, ",")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(address[:idx])
}
