package domain

// CheckoutSessionSpec is the payment-session request handed to the gateway:
// a single recurring line item for the fixed subscription price, the
// requester's email as billing contact, and the metadata bag.
type CheckoutSessionSpec struct {
	CustomerEmail string
	PriceID       string
	TrialDays     int64
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the opaque reference returned by the payment provider.
type CheckoutSession struct {
	ID  string
	URL string
}

// CheckoutCompleted is a verified provider event asserting a checkout
// finished. SessionID keys idempotent processing.
type CheckoutCompleted struct {
	SessionID      string
	CustomerEmail  string
	SubscriptionID string
	Metadata       map[string]string
}
