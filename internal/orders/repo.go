package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/avolkov/storefront-backend/pkg/db/models"
	"github.com/avolkov/storefront-backend/pkg/enums"
	pkgerrors "github.com/avolkov/storefront-backend/pkg/errors"
)

// Repository persists order headers, their items and the delivery type
// reference data.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error)
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindActiveByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Order, error)
	FindAwaitingPaymentByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	UpdateStatusBulk(ctx context.Context, orderIDs []uuid.UUID, status enums.OrderStatus) error
	FindDeliveryTypeByKind(ctx context.Context, kind enums.DeliveryKind) (*models.DeliveryType, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("DeliveryType").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, err
	}
	return &order, nil
}

// FindActiveByBuyer returns the buyer's single accepted order, or a
// not-found error when no draft exists.
func (r *repository) FindActiveByBuyer(ctx context.Context, buyerID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("DeliveryType").
		Where("buyer_id = ? AND status = ? AND is_active = ?", buyerID, enums.OrderStatusAccepted, true).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active order")
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindAwaitingPaymentByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var found []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ? AND status = ? AND is_active = ?", buyerID, enums.OrderStatusAwaitingPayment, true).
		Order("created_at ASC").
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) ListByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.Order, error) {
	var found []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("DeliveryType").
		Where("buyer_id = ? AND is_active = ?", buyerID, true).
		Order("created_at DESC").
		Find(&found).Error
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) UpdateStatusBulk(ctx context.Context, orderIDs []uuid.UUID, status enums.OrderStatus) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ?", orderIDs).
		Update("status", status).Error
}

func (r *repository) FindDeliveryTypeByKind(ctx context.Context, kind enums.DeliveryKind) (*models.DeliveryType, error) {
	var deliveryType models.DeliveryType
	err := r.db.WithContext(ctx).
		Where("kind = ? AND is_active = ?", kind, true).
		First(&deliveryType).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "delivery type %s not found", kind)
		}
		return nil, err
	}
	return &deliveryType, nil
}
