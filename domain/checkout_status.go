package domain

type CheckoutStatus string

const (
	CheckoutStatusCartValidated       CheckoutStatus = "CART_VALIDATED"
	CheckoutStatusAddressSelected     CheckoutStatus = "ADDRESS_SELECTED"
	CheckoutStatusTotalsComputed      CheckoutStatus = "TOTALS_COMPUTED"
	CheckoutStatusPaymentPending      CheckoutStatus = "PAYMENT_PENDING"
	CheckoutStatusConfirming          CheckoutStatus = "CONFIRMING"
	CheckoutStatusPaymentSucceeded    CheckoutStatus = "PAYMENT_SUCCEEDED"
	CheckoutStatusVerificationTimeout CheckoutStatus = "VERIFICATION_TIMEOUT"
	CheckoutStatusCompleted           CheckoutStatus = "COMPLETED"
	CheckoutStatusFailed              CheckoutStatus = "FAILED"
	CheckoutStatusAbandoned           CheckoutStatus = "ABANDONED"
)

var transitions = map[CheckoutStatus][]CheckoutStatus{
	CheckoutStatusCartValidated: {
		CheckoutStatusAddressSelected,
		CheckoutStatusAbandoned,
	},
	CheckoutStatusAddressSelected: {
		CheckoutStatusAddressSelected,
		CheckoutStatusTotalsComputed,
		CheckoutStatusAbandoned,
	},
	CheckoutStatusTotalsComputed: {
		CheckoutStatusAddressSelected,
		CheckoutStatusTotalsComputed,
		CheckoutStatusPaymentPending,
		CheckoutStatusCompleted, // cash on delivery
		CheckoutStatusAbandoned,
	},
	CheckoutStatusPaymentPending: {
		CheckoutStatusTotalsComputed, // intent could not be created
		CheckoutStatusConfirming,
		CheckoutStatusFailed,
		CheckoutStatusAbandoned,
	},
	CheckoutStatusConfirming: {
		CheckoutStatusPaymentPending, // declined or requires action, retry with the same intent
		CheckoutStatusPaymentSucceeded,
		CheckoutStatusVerificationTimeout,
		CheckoutStatusFailed,
	},
	CheckoutStatusPaymentSucceeded: {
		CheckoutStatusCompleted,
	},
	CheckoutStatusVerificationTimeout: {
		CheckoutStatusPaymentPending, // resolved as declined
		CheckoutStatusPaymentSucceeded,
		CheckoutStatusFailed,
	},
}

// CanTransitionTo reports whether a checkout session in status from may move to status to.
func CanTransitionTo(from, to CheckoutStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func (s CheckoutStatus) IsTerminal() bool {
	return s == CheckoutStatusCompleted || s == CheckoutStatusFailed || s == CheckoutStatusAbandoned
}

// Abandonable is true while no charge can be in flight.
func (s CheckoutStatus) Abandonable() bool {
	return CanTransitionTo(s, CheckoutStatusAbandoned)
}

// String representation (for logging)
func (s CheckoutStatus) String() string {
	return string(s)
}
