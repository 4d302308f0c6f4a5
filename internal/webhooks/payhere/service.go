// Package payherewebhook reconciles PayHere payment notifications against orders and payments.
package payherewebhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/internal/orders"
	"github.com/angelmondragon/farmlink-backend/internal/payments"
	"github.com/angelmondragon/farmlink-backend/pkg/config"
	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	"github.com/angelmondragon/farmlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/logger"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox"
	"github.com/angelmondragon/farmlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/farmlink-backend/pkg/payhere"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type deduper interface {
	Claim(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
}

// ReconciliationResult is the outcome returned to PayHere. Applied is false for replays and ignored transitions.
type ReconciliationResult struct {
	Message        string              `json:"message"`
	OrderID        uuid.UUID           `json:"order_id"`
	PaymentID      uuid.UUID           `json:"payment_id"`
	PaymentStatus  enums.PaymentStatus `json:"payment_status"`
	OrderStatus    enums.OrderStatus   `json:"order_status"`
	Applied        bool                `json:"applied"`
	// RefundRequired marks money captured for an order that was already cancelled.
	RefundRequired bool                `json:"refund_required,omitempty"`
}

type ServiceParams struct {
	TxRunner    txRunner
	OrderRepo   orders.Repository
	PaymentRepo *payments.Repository
	Stock       orders.StockAdjuster
	Outbox      outbox.Emitter
	Dedupe      deduper
	PayHere     config.PayHereConfig
	Metrics     *metrics.CommerceMetrics
	Logger      *logger.Logger
}

type Service struct {
	tx          txRunner
	orderRepo   orders.Repository
	paymentRepo *payments.Repository
	stock       orders.StockAdjuster
	outbox      outbox.Emitter
	dedupe      deduper
	merchantID  string
	secret      string
	metrics     *metrics.CommerceMetrics
	logg        *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.OrderRepo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.PaymentRepo == nil {
		return nil, fmt.Errorf("payment repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock adjuster required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Dedupe == nil {
		return nil, fmt.Errorf("notification deduper required")
	}
	if params.PayHere.MerchantSecret == "" {
		return nil, fmt.Errorf("payhere merchant secret required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		tx:          params.TxRunner,
		orderRepo:   params.OrderRepo,
		paymentRepo: params.PaymentRepo,
		stock:       params.Stock,
		outbox:      params.Outbox,
		dedupe:      params.Dedupe,
		merchantID:  params.PayHere.MerchantID,
		secret:      params.PayHere.MerchantSecret,
		metrics:     params.Metrics,
		logg:        params.Logger,
	}, nil
}

// HandleCallback verifies a notification and applies the payment and order transitions it implies.
func (s *Service) HandleCallback(ctx context.Context, n Notification) (*ReconciliationResult, error) {
	started := time.Now()
	n = n.Normalize()

	if missing := n.missingFields(); len(missing) > 0 {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification fields missing").WithDetails(map[string]any{
			"missing": missing,
		})
	}
	if !s.signatureValid(n) {
		s.metrics.IncWebhook("rejected")
		s.logg.Warn(s.logg.WithField(ctx, "order_ref", n.OrderID), "payhere notification signature mismatch")
		return nil, pkgerrors.New(pkgerrors.CodeSignature, "Invalid signature")
	}

	orderID, ok := n.orderUUID()
	if !ok {
		s.metrics.IncWebhook("rejected")
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
	}
	ctx = s.logg.WithFields(s.logg.WithOrderID(ctx, orderID), map[string]any{"status_code": n.StatusCode})

	replay, err := s.dedupe.Claim(ctx, n.IdempotencyKey())
	if err != nil {
		s.metrics.IncWebhook("failed")
		s.logg.Error(ctx, "payhere notification claim failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Callback processing failed")
	}
	if replay {
		result, err := s.currentState(ctx, orderID)
		if err != nil {
			return nil, err
		}
		s.metrics.IncWebhook("replayed")
		s.logg.Info(ctx, "payhere notification replay skipped")
		return result, nil
	}

	result, err := s.reconcile(ctx, orderID, n)
	if err != nil {
		if delErr := s.dedupe.Release(ctx, n.IdempotencyKey()); delErr != nil {
			s.logg.Error(ctx, "payhere.dedupe_release_failed", delErr)
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			s.metrics.IncWebhook("rejected")
			return nil, err
		}
		s.metrics.IncWebhook("failed")
		s.logg.Error(ctx, "callback processing error", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Callback processing failed")
	}

	outcome := "ignored"
	if result.Applied {
		outcome = "applied"
	}
	s.metrics.IncWebhook(outcome)
	s.metrics.ObserveReconcile(string(result.PaymentStatus), time.Since(started))
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"payment_status": result.PaymentStatus,
		"order_status":   result.OrderStatus,
		"applied":        result.Applied,
	}), "payhere notification reconciled")
	return result, nil
}

func (s *Service) signatureValid(n Notification) bool {
	if s.merchantID != "" && n.MerchantID != s.merchantID {
		return false
	}
	expected := payhere.NotificationSignature(n.MerchantID, n.OrderID, n.PayHereAmount, n.PayHereCurrency, n.StatusCode, s.secret)
	return payhere.VerifySignature(expected, n.MD5Sig)
}

func (s *Service) reconcile(ctx context.Context, orderID uuid.UUID, n Notification) (*ReconciliationResult, error) {
	target := payhere.MapStatusCode(n.StatusCode)

	var result *ReconciliationResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		orderRepo := s.orderRepo.WithTx(tx)
		paymentRepo := s.paymentRepo.WithTx(tx)

		order, err := orderRepo.FindForUpdate(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
			}
			return fmt.Errorf("load order: %w", err)
		}
		payment, err := paymentRepo.FindByOrderIDForUpdate(ctx, order.ID)
		if err != nil {
			return fmt.Errorf("load payment: %w", err)
		}

		result = newResult(order.ID, payment.ID, payment.Status, order.Status)
		if payment.Status == target {
			return nil
		}
		if !payment.Status.CanTransitionTo(target) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"payment_status": payment.Status,
				"target_status":  target,
			}), "payment transition ignored")
			return nil
		}
		s.checkAmount(ctx, payment, n)

		var transactionID *string
		if target == enums.PaymentStatusCompleted && n.PaymentID != "" {
			transactionID = &n.PaymentID
		}
		if err := paymentRepo.UpdateStatus(ctx, payment.ID, target, transactionID); err != nil {
			return fmt.Errorf("update payment: %w", err)
		}

		nextOrder := order.Status
		stockRestored := false
		refundRequired := false
		switch {
		case target == enums.PaymentStatusCompleted && order.Status == enums.OrderStatusPlaced:
			nextOrder = enums.OrderStatusConfirmed
		case target == enums.PaymentStatusCompleted && order.Status == enums.OrderStatusCancelled:
			refundRequired = true
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"payment_id":   payment.ID.String(),
				"order_status": order.Status,
			}), "payhere payment completed on cancelled order, refund required")
		case target == enums.PaymentStatusCancelled && !order.Status.IsTerminal():
			if err := orders.RestoreStock(ctx, tx, s.stock, order); err != nil {
				return err
			}
			nextOrder = enums.OrderStatusCancelled
			stockRestored = true
		}
		if nextOrder != order.Status {
			if err := orderRepo.UpdateStatus(ctx, order.ID, nextOrder); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderStatusChanged,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data: payloads.OrderStatusChangedEvent{
					OrderID:       order.ID,
					From:          order.Status,
					To:            nextOrder,
					StockRestored: stockRestored,
					Source:        payloads.SourceWebhook,
				},
			}); err != nil {
				return err
			}
		}

		event := payloads.PaymentReconciledEvent{
			PaymentID:      payment.ID,
			OrderID:        order.ID,
			From:           payment.Status,
			To:             target,
			OrderStatus:    nextOrder,
			StatusCode:     n.StatusCode,
			RefundRequired: refundRequired,
		}
		if transactionID != nil {
			event.TransactionID = *transactionID
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentReconciled,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Data:          event,
		}); err != nil {
			return err
		}

		result = newResult(order.ID, payment.ID, target, nextOrder)
		result.Applied = true
		result.RefundRequired = refundRequired
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// checkAmount logs notifications whose amount or currency differ from the stored payment.
func (s *Service) checkAmount(ctx context.Context, payment *models.Payment, n Notification) {
	amount, err := decimal.NewFromString(n.PayHereAmount)
	if err == nil && amount.Equal(payment.Amount) && strings.EqualFold(n.PayHereCurrency, payment.Currency) {
		return
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"expected_amount":   payment.Amount.StringFixed(2),
		"expected_currency": payment.Currency,
		"payhere_amount":    n.PayHereAmount,
		"payhere_currency":  n.PayHereCurrency,
	}), "payhere notification amount mismatch")
}

func (s *Service) currentState(ctx context.Context, orderID uuid.UUID) (*ReconciliationResult, error) {
	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "Callback processing failed")
	}
	if order.Payment == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "Callback processing failed")
	}
	return newResult(order.ID, order.Payment.ID, order.Payment.Status, order.Status), nil
}

func newResult(orderID, paymentID uuid.UUID, paymentStatus enums.PaymentStatus, orderStatus enums.OrderStatus) *ReconciliationResult {
	return &ReconciliationResult{
		Message:       fmt.Sprintf("Payment status updated to %s", paymentStatus),
		OrderID:       orderID,
		PaymentID:     paymentID,
		PaymentStatus: paymentStatus,
		OrderStatus:   orderStatus,
	}
}
