package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/storefront-backend/pkg/enums"
)

// Order is the buyer's order header. At most one order per buyer may
// sit in the accepted status; CreateDraft enforces this with
// get-or-create semantics.
type Order struct {
	ID             uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	BuyerID        uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	Status         enums.OrderStatus `gorm:"column:status;not null;default:'accepted'"`
	DeliveryTypeID *uuid.UUID        `gorm:"column:delivery_type_id;type:uuid"`
	DeliveryType   *DeliveryType     `gorm:"foreignKey:DeliveryTypeID"`
	PaymentType    enums.PaymentType `gorm:"column:payment_type;not null;default:'own_online'"`
	City           string            `gorm:"column:city;not null;default:''"`
	Address        string            `gorm:"column:address;not null;default:''"`
	IsActive       bool              `gorm:"column:is_active;not null;default:true"`
	Items          []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
