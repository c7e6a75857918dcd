package payment

// Event is a verified provider notification. It is one of CheckoutCompleted,
// CheckoutExpired or Ignored.
type Event interface {
	isEvent()
}

type CheckoutCompleted struct {
	EventID           string
	SessionID         string
	PaymentStatus     string
	AmountTotal       int64
	ClientReferenceID string
}

// Paid reports whether the funds are captured. Delayed methods complete the session
// unpaid and confirm later with an async_payment_succeeded event.
func (e CheckoutCompleted) Paid() bool {
	return e.PaymentStatus == PaymentStatusPaid || e.PaymentStatus == PaymentStatusNoPaymentRequired
}

type CheckoutExpired struct {
	EventID   string
	SessionID string
}

// Ignored is any event kind the storefront does not act on.
type Ignored struct {
	EventID string
	Kind    string
}

func (CheckoutCompleted) isEvent() {}
func (CheckoutExpired) isEvent()   {}
func (Ignored) isEvent()           {}
