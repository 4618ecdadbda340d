package enums

import "fmt"

// DeliveryKind names the available delivery options.
type DeliveryKind string

const (
	DeliveryKindRegular DeliveryKind = "regular"
	DeliveryKindExpress DeliveryKind = "express"
)

var validDeliveryKinds = []DeliveryKind{
	DeliveryKindRegular,
	DeliveryKindExpress,
}

// String implements fmt.Stringer.
func (d DeliveryKind) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DeliveryKind.
func (d DeliveryKind) IsValid() bool {
	for _, candidate := range validDeliveryKinds {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDeliveryKind converts raw input into a DeliveryKind.
func ParseDeliveryKind(value string) (DeliveryKind, error) {
	for _, candidate := range validDeliveryKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid delivery kind %q", value)
}
