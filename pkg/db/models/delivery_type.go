package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/avolkov/storefront-backend/pkg/enums"
)

// DeliveryType is immutable reference data seeded by migration.
type DeliveryType struct {
	ID       uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Kind     enums.DeliveryKind `gorm:"column:kind;not null;uniqueIndex"`
	Cost     decimal.Decimal    `gorm:"column:cost;type:numeric(5,2);not null"`
	IsActive bool               `gorm:"column:is_active;not null;default:true"`
}
