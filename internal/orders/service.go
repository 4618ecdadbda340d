package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/avolkov/storefront-backend/internal/cart"
	"github.com/avolkov/storefront-backend/pkg/db"
	"github.com/avolkov/storefront-backend/pkg/db/models"
	"github.com/avolkov/storefront-backend/pkg/enums"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
	"github.com/avolkov/storefront-backend/pkg/logger"
)

// acceptedOrderConstraint is the partial unique index guaranteeing a
// single accepted order per buyer.
const acceptedOrderConstraint = "orders_one_accepted_per_buyer"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// DraftLine is one requested order line. The unit price is always
// re-derived server-side, so the line carries only product and count.
type DraftLine struct {
	ProductID uuid.UUID
	Count     int
}

// ConfirmInput carries the checkout fields applied to the draft order.
type ConfirmInput struct {
	Address      string
	City         string
	DeliveryKind enums.DeliveryKind
	PaymentType  enums.PaymentType
}

// Service drives the order lifecycle up to payment.
type Service interface {
	CreateDraft(ctx context.Context, buyerID uuid.UUID, sessionID string, lines []DraftLine) (*models.Order, bool, error)
	GetActive(ctx context.Context, buyerID uuid.UUID) (*models.Order, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	Confirm(ctx context.Context, buyerID uuid.UUID, input ConfirmInput) (*models.Order, error)
	TotalCost(order *models.Order) decimal.Decimal
}

type service struct {
	repo              Repository
	products          productFinder
	carts             cart.Store
	tx                txRunner
	logg              *logger.Logger
	freeDeliveryAbove decimal.Decimal
}

// NewService builds the order service.
func NewService(repo Repository, products productFinder, carts cart.Store, tx txRunner, logg *logger.Logger, freeDeliveryAbove decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product finder required")
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
		repo:              repo,
		products:          products,
		carts:             carts,
		tx:                tx,
		logg:              logg,
		freeDeliveryAbove: freeDeliveryAbove,
	}, nil
}

// CreateDraft returns the buyer's accepted order, creating it from the
// requested lines when none exists. The returned bool reports whether a
// new order was created. Creation also clears the session cart, since
// its lines have been snapshotted into order items.
func (s *service) CreateDraft(ctx context.Context, buyerID uuid.UUID, sessionID string, lines []DraftLine) (*models.Order, bool, error) {
	existing, err := s.repo.FindActiveByBuyer(ctx, buyerID)
	if err == nil {
		return existing, false, nil
	}
	if coded := pkgerrors.As(err); coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		return nil, false, err
	}

	if len(lines) == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeValidation, "order must contain at least one item")
	}

	items, err := s.snapshotItems(ctx, sessionID, lines)
	if err != nil {
		return nil, false, err
	}

	order := &models.Order{
		ID:      uuid.New(),
		BuyerID: buyerID,
		Status:  enums.OrderStatusAccepted,
	}
	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.CreateOrder(ctx, order); err != nil {
			return err
		}
		for i := range items {
			items[i].OrderID = order.ID
		}
		return repo.CreateOrderItems(ctx, items)
	})
	if txErr != nil {
		// A concurrent request may have created the draft first; the
		// partial unique index turns that into a constraint error.
		if db.IsUniqueViolation(txErr, acceptedOrderConstraint) {
			won, findErr := s.repo.FindActiveByBuyer(ctx, buyerID)
			if findErr != nil {
				return nil, false, findErr
			}
			return won, false, nil
		}
		return nil, false, txErr
	}

	if err := s.carts.Clear(ctx, sessionID); err != nil {
		s.logg.Error(ctx, "order created but cart clear failed", err)
	}

	created, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

// snapshotItems prices each requested line from the session cart entry
// when present, falling back to the current product price. Prices the
// client may have submitted never reach this path.
func (s *service) snapshotItems(ctx context.Context, sessionID string, lines []DraftLine) ([]models.OrderItem, error) {
	contents, err := s.carts.Load(ctx, sessionID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		if line.Count < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "item count must be at least 1")
		}
		var price decimal.Decimal
		if entry, ok := contents[line.ProductID.String()]; ok {
			price = entry.Price
		} else {
			product, err := s.products.FindByID(ctx, line.ProductID)
			if err != nil {
				return nil, err
			}
			price = product.Price
		}
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			Quantity:  line.Count,
			Price:     price,
		})
	}
	return items, nil
}

func (s *service) GetActive(ctx context.Context, buyerID uuid.UUID) (*models.Order, error) {
	return s.repo.FindActiveByBuyer(ctx, buyerID)
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !order.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	return s.repo.ListByBuyer(ctx, buyerID)
}

// Confirm applies checkout fields to the buyer's accepted order and
// moves it to awaiting_payment.
func (s *service) Confirm(ctx context.Context, buyerID uuid.UUID, input ConfirmInput) (*models.Order, error) {
	if !input.DeliveryKind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown delivery kind %q", string(input.DeliveryKind))
	}
	paymentType := input.PaymentType
	if paymentType == "" {
		paymentType = enums.PaymentTypeOwnOnline
	}
	if !paymentType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown payment type %q", string(paymentType))
	}

	order, err := s.repo.FindActiveByBuyer(ctx, buyerID)
	if err != nil {
		return nil, err
	}

	deliveryType, err := s.repo.FindDeliveryTypeByKind(ctx, input.DeliveryKind)
	if err != nil {
		return nil, err
	}

	order.Address = input.Address
	order.City = input.City
	order.DeliveryTypeID = &deliveryType.ID
	order.DeliveryType = deliveryType
	order.PaymentType = paymentType
	order.Status = enums.OrderStatusAwaitingPayment

	if err := s.repo.Save(ctx, order); err != nil {
		return nil, err
	}
	return order, nil
}

// TotalCost returns the order subtotal plus delivery. Regular delivery
// is waived once the subtotal reaches the configured threshold; express
// delivery always charges.
func (s *service) TotalCost(order *models.Order) decimal.Decimal {
	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.TotalCost())
	}
	if order.DeliveryType == nil {
		return subtotal
	}
	if order.DeliveryType.Kind == enums.DeliveryKindRegular && subtotal.GreaterThanOrEqual(s.freeDeliveryAbove) {
		return subtotal
	}
	return subtotal.Add(order.DeliveryType.Cost)
}
