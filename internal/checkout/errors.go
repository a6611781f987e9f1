package checkout

import "errors"

var (
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrCheckoutLocked      = errors.New("checkout is confirming a payment and cannot be changed")
	ErrIllegalTransition   = errors.New("illegal transition of checkout status")
	ErrCheckoutClosed      = errors.New("checkout session is already finished")
	ErrNothingToVerify     = errors.New("checkout has no payment awaiting verification")
	ErrRecurringCardNeeded = errors.New("a card is required to set up a recurring order")
	ErrPaymentCanceled     = errors.New("payment was canceled")
	ErrCartChanged         = errors.New("your cart changed after payment started, please restart checkout")
)
