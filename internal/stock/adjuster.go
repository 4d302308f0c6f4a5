package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/farmlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/farmlink-backend/pkg/errors"
	"github.com/angelmondragon/farmlink-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Adjuster applies conditional stock deltas so a product's stock never drops below zero.
type Adjuster struct {
	tx      txRunner
	metrics *metrics.CommerceMetrics
}

// NewAdjuster builds an adjuster. The runner is used only when Adjust is called without a transaction.
func NewAdjuster(tx txRunner, m *metrics.CommerceMetrics) (*Adjuster, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &Adjuster{tx: tx, metrics: m}, nil
}

// Adjust adds delta to the product's stock inside tx and returns the updated row.
func (a *Adjuster) Adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (*models.Product, error) {
	if delta == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock delta must be non-zero")
	}
	if tx == nil {
		var product *models.Product
		err := a.tx.WithTx(ctx, func(own *gorm.DB) error {
			var err error
			product, err = a.adjust(ctx, own, productID, delta)
			return err
		})
		return product, err
	}
	return a.adjust(ctx, tx, productID, delta)
}

func (a *Adjuster) adjust(ctx context.Context, tx *gorm.DB, productID uuid.UUID, delta int) (*models.Product, error) {
	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND stock + ? >= 0", productID, delta).
		Updates(map[string]any{
			"stock":      gorm.Expr("stock + ?", delta),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust stock")
	}

	var product models.Product
	if err := tx.WithContext(ctx).First(&product, "id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if res.RowsAffected == 0 {
		a.metrics.IncStockRejection()
		return nil, InsufficientStock(product.ID, -delta, product.Stock)
	}
	return &product, nil
}

// InsufficientStock builds the typed error returned when a decrement would go negative.
func InsufficientStock(productID uuid.UUID, requested, available int) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").WithDetails(map[string]any{
		"product_id": productID.String(),
		"requested":  requested,
		"available":  available,
	})
}
