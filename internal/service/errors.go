package service

import "errors"

var (
	ErrInvalidInput             = errors.New("invalid input")
	ErrInvalidQuantity          = errors.New("quantity must be greater than zero")
	ErrProductRequired          = errors.New("product_id is required")
	ErrEmptyCart                = errors.New("cart is empty")
	ErrShippingAddressRequired  = errors.New("shipping address is required")
	ErrCartChanged              = errors.New("cart changed after payment was started")
	ErrForbidden                = errors.New("permission denied")
	ErrStoreRequired            = errors.New("create a store first")
	ErrQueryRequired            = errors.New("search query is required")
	ErrInvalidCredentials       = errors.New("invalid credentials")
	ErrEmailNotVerified         = errors.New("email is not verified")
	ErrInvalidVerificationToken = errors.New("invalid verification token")
	ErrVerificationTokenExpired = errors.New("verification token has expired")
	ErrAlreadyVerified          = errors.New("email is already verified")
	ErrSessionRequired          = errors.New("session_id is required")
	ErrPaymentNotCompleted      = errors.New("payment not completed")
	ErrPaymentSessionClosed     = errors.New("payment session is no longer open")
)
