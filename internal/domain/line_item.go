package domain

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidItem = errors.New("invalid cart item")

// LineItem is one cart line. Price is in the smallest currency unit.
type LineItem struct {
	ProductID string `json:"id" bson:"product_id"`
	Name      string `json:"name" bson:"name"`
	Price     int64  `json:"price" bson:"price"`
	Quantity  int64  `json:"quantity" bson:"quantity"`
	Variant   string `json:"size,omitempty" bson:"variant,omitempty"`
}

func (i LineItem) Validate() error {
	switch {
	case i.ProductID == "":
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	case i.Name == "":
		return fmt.Errorf("%w: name is required for %s", ErrInvalidItem, i.ProductID)
	case i.Price < 0:
		return fmt.Errorf("%w: price must not be negative for %s", ErrInvalidItem, i.ProductID)
	case i.Quantity < 1:
		return fmt.Errorf("%w: quantity must be at least 1 for %s", ErrInvalidItem, i.ProductID)
	case i.Price > math.MaxInt64/i.Quantity:
		return fmt.Errorf("%w: amount overflows for %s", ErrInvalidItem, i.ProductID)
	}
	return nil
}

func (i LineItem) Amount() int64 {
	return i.Price * i.Quantity
}

func (i LineItem) SameLine(productID, variant string) bool {
	return i.ProductID == productID && i.Variant == variant
}

func Subtotal(items []LineItem) int64 {
	var total int64
	for _, item := range items {
		total += item.Amount()
	}
	return total
}

// CheckedSubtotal sums validated items and fails with ErrInvalidItem when the total
// does not fit in an int64.
func CheckedSubtotal(items []LineItem) (int64, error) {
	var total int64
	for _, item := range items {
		amount := item.Amount()
		if amount > math.MaxInt64-total {
			return 0, fmt.Errorf("%w: cart total overflows", ErrInvalidItem)
		}
		total += amount
	}
	return total, nil
}

// PointsForAmount is the accrual rule: one point per 100 currency units, rounded down.
func PointsForAmount(amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	return amount / 100
}

// ApplicablePoints clamps a requested redemption to [0, min(balance, subtotal)].
func ApplicablePoints(requested, balance, subtotal int64) int64 {
	limit := min(balance, subtotal)
	if limit <= 0 || requested <= 0 {
		return 0
	}
	return min(requested, limit)
}

// PointsFromInput converts a loosely typed client value. NaN, infinities and negative
// values become 0, fractions are dropped.
func PointsFromInput(v float64) int64 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(math.Floor(v))
}
