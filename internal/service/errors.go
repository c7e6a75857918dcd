package service

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart             = errors.New("cart is empty, nothing to checkout")
	ErrMissingRedirectURL    = errors.New("checkout session has no redirect url")
	ErrMissingCustomerFields = errors.New("userId and email are required")
	ErrOrderNumberExhausted  = errors.New("could not allocate a unique order number")
)

// SessionCreationError is a failed attempt to open a hosted checkout session.
type SessionCreationError struct {
	Err error
}

func (e *SessionCreationError) Error() string {
	return fmt.Sprintf("create checkout session: %v", e.Err)
}

func (e *SessionCreationError) Unwrap() error {
	return e.Err
}
