package http

import (
	"errors"
	"net/http"

	"github.com/fjod/go_marketplace/internal/auth"
	"github.com/fjod/go_marketplace/internal/domain"
	"github.com/fjod/go_marketplace/internal/payment"
	"github.com/fjod/go_marketplace/internal/repository"
	"github.com/fjod/go_marketplace/internal/service"
	"github.com/rs/zerolog"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// errorMappings is checked in order with errors.Is; the first match wins.
var errorMappings = []errorMapping{
	{service.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{service.ErrInvalidQuantity, http.StatusBadRequest, "invalid_quantity"},
	{service.ErrProductRequired, http.StatusBadRequest, "invalid_product_id"},
	{service.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{service.ErrShippingAddressRequired, http.StatusBadRequest, "shipping_address_required"},
	{service.ErrQueryRequired, http.StatusBadRequest, "query_required"},
	{service.ErrSessionRequired, http.StatusBadRequest, "session_required"},
	{service.ErrPaymentNotCompleted, http.StatusBadRequest, "payment_not_completed"},
	{service.ErrPaymentSessionClosed, http.StatusBadRequest, "payment_session_closed"},
	{service.ErrInvalidVerificationToken, http.StatusBadRequest, "invalid_token"},
	{service.ErrVerificationTokenExpired, http.StatusBadRequest, "token_expired"},
	{service.ErrAlreadyVerified, http.StatusBadRequest, "already_verified"},
	{domain.ErrInvalidOrderStatus, http.StatusBadRequest, "invalid_status"},
	{repository.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},

	{service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "token_expired"},

	{service.ErrEmailNotVerified, http.StatusForbidden, "email_not_verified"},
	{service.ErrForbidden, http.StatusForbidden, "permission_denied"},
	{service.ErrStoreRequired, http.StatusForbidden, "store_required"},

	{repository.ErrProductNotFound, http.StatusNotFound, "product_not_found"},
	{repository.ErrCategoryNotFound, http.StatusNotFound, "category_not_found"},
	{repository.ErrStoreNotFound, http.StatusNotFound, "store_not_found"},
	{repository.ErrUserNotFound, http.StatusNotFound, "user_not_found"},
	{repository.ErrCartNotFound, http.StatusNotFound, "cart_not_found"},
	{repository.ErrItemNotFound, http.StatusNotFound, "item_not_found"},
	{repository.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{repository.ErrPaymentSessionNotFound, http.StatusNotFound, "session_not_found"},

	{repository.ErrDuplicateUser, http.StatusConflict, "already_exists"},
	{repository.ErrDuplicateStore, http.StatusConflict, "already_exists"},
	{repository.ErrDuplicateOrder, http.StatusConflict, "already_exists"},
	{service.ErrCartChanged, http.StatusConflict, "cart_changed"},

	{payment.ErrUnavailable, http.StatusServiceUnavailable, "service_unavailable"},
}

// errorStatus maps a service error to an HTTP status and machine code.
func errorStatus(err error) (int, string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}

// handleError writes err as a JSON error. Unmapped errors are logged and replaced
// with a generic message.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status == http.StatusInternalServerError {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("request failed")
		respondError(w, status, code, "internal server error")
		return
	}
	respondError(w, status, code, err.Error())
}
