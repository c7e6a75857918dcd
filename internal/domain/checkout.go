package domain

import "time"

// CheckoutRequest is a cart snapshot submitted for payment.
type CheckoutRequest struct {
	Items             []LineItem
	UserID            string
	ShippingAddressID string
	PointsToUse       int64
}

type CheckoutResult struct {
	URL           string
	SessionID     string
	Subtotal      int64
	PointsApplied int64
	Payable       int64
	OrderNumber   string
}

// StoredCart is the persisted shape of a cart keyed by user or anonymous cart id.
type StoredCart struct {
	Key       string     `json:"key" bson:"cart_key"`
	Items     []LineItem `json:"items" bson:"items"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}
