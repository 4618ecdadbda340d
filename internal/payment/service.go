package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avolkov/storefront-backend/internal/cart"
	"github.com/avolkov/storefront-backend/internal/orders"
	"github.com/avolkov/storefront-backend/internal/products"
	"github.com/avolkov/storefront-backend/pkg/db/models"
	"github.com/avolkov/storefront-backend/pkg/enums"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
	"github.com/avolkov/storefront-backend/pkg/metrics"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service settles the buyer's awaiting_payment orders.
type Service interface {
	Settle(ctx context.Context, buyerID uuid.UUID, sessionID string, cardNumber string) ([]models.Order, error)
}

type service struct {
	orders   orders.Repository
	products products.Repository
	carts    cart.Store
	tx       txRunner
	logg     *logger.Logger
	metrics  *metrics.SettlementMetrics
}

// NewService builds the payment service.
func NewService(ordersRepo orders.Repository, productsRepo products.Repository, carts cart.Store, tx txRunner, logg *logger.Logger, settlementMetrics *metrics.SettlementMetrics) (Service, error) {
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if productsRepo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart store required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		orders:   ordersRepo,
		products: productsRepo,
		carts:    carts,
		tx:       tx,
		logg:     logg,
		metrics:  settlementMetrics,
	}, nil
}

// Settle charges the whole awaiting_payment batch at once. Stock for
// every line item across every order in the batch must be available or
// nothing is written; partial settlement is never allowed.
func (s *service) Settle(ctx context.Context, buyerID uuid.UUID, sessionID string, cardNumber string) ([]models.Order, error) {
	started := time.Now()

	settled, err := s.settle(ctx, buyerID, cardNumber)
	if err != nil {
		reason := "internal"
		if typed := pkgerrors.As(err); typed != nil {
			reason = string(typed.Code())
		}
		s.metrics.ObserveDuration("failure", time.Since(started))
		s.metrics.IncFailure(reason)
		return nil, err
	}
	s.metrics.ObserveDuration("success", time.Since(started))
	s.metrics.IncSuccess()

	// The cart lives outside the DB tx; a failed clear leaves stale
	// lines behind but never un-pays an order.
	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logg.Error(ctx, "settlement committed but cart clear failed", err)
	}
	return settled, nil
}

func (s *service) settle(ctx context.Context, buyerID uuid.UUID, cardNumber string) ([]models.Order, error) {
	if err := ValidateCardNumber(cardNumber); err != nil {
		return nil, err
	}

	var settled []models.Order
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ordersRepo := s.orders.WithTx(tx)
		productsRepo := s.products.WithTx(tx)

		batch, err := ordersRepo.FindAwaitingPaymentByBuyer(ctx, buyerID)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound, "no orders awaiting payment")
		}

		items := collectItems(batch)
		shortages, err := s.checkStock(ctx, productsRepo, items)
		if err != nil {
			return err
		}
		if len(shortages) > 0 {
			return pkgerrors.New(pkgerrors.CodeStockShortage, "insufficient stock for order batch").
				WithDetails(shortages)
		}

		for _, item := range items {
			ok, err := productsRepo.DecrementStock(ctx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				// Stock moved between the check and the decrement.
				return pkgerrors.Newf(pkgerrors.CodeConflict, "stock changed while settling product %s", item.ProductID)
			}
		}

		ids := make([]uuid.UUID, 0, len(batch))
		for _, order := range batch {
			ids = append(ids, order.ID)
		}
		if err := ordersRepo.UpdateStatusBulk(ctx, ids, enums.OrderStatusPaid); err != nil {
			return err
		}

		for i := range batch {
			batch[i].Status = enums.OrderStatusPaid
		}
		settled = batch
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return settled, nil
}

func collectItems(batch []models.Order) []models.OrderItem {
	var items []models.OrderItem
	for _, order := range batch {
		items = append(items, order.Items...)
	}
	return items
}

// checkStock reports every shortage in the batch rather than stopping
// at the first one, so the buyer sees the full picture in one response.
func (s *service) checkStock(ctx context.Context, productsRepo products.Repository, items []models.OrderItem) ([]string, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := map[uuid.UUID]bool{}
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	found, err := s.lookupProducts(ctx, productsRepo, ids)
	if err != nil {
		return nil, err
	}

	// Aggregate per product first so two lines of the same product in
	// one batch are checked against the combined demand.
	requested := map[uuid.UUID]int{}
	for _, item := range items {
		requested[item.ProductID] += item.Quantity
	}

	var shortages []string
	for _, id := range ids {
		product, ok := found[id]
		if !ok {
			shortages = append(shortages, fmt.Sprintf("product %s is no longer available", id))
			continue
		}
		if product.Stock < requested[id] {
			shortages = append(shortages, fmt.Sprintf(
				"not enough stock of %q: requested %d, available %d",
				product.Title, requested[id], product.Stock,
			))
		}
	}
	return shortages, nil
}

func (s *service) lookupProducts(ctx context.Context, productsRepo products.Repository, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	rows, err := productsRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	found := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		found[row.ID] = row
	}
	return found, nil
}
