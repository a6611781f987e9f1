package recurring

import "errors"

var (
	ErrInvalidState         = errors.New("recurring order draft is not in a state that allows this step")
	ErrPaymentMethodMissing = errors.New("a saved payment method is required for a recurring order")
	ErrCancelNotConfirmed   = errors.New("cancellation was not confirmed for this recurring order")
)
