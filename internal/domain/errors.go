package domain

import (
	"errors"
	"fmt"
	"net/http"

	apperrors "github.com/utafrali/finsearch/pkg/errors"
)

// Federation and export failure classes.
var (
	ErrTransport         = errors.New("provider transport failure")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrUnresolvedProduct = errors.New("provider product has no catalog match")
	ErrUnknownShopKey    = errors.New("shop key not assigned to any shop")
	ErrMissingSearchTerm = errors.New("search term required")
)

// UnknownShopKey builds the 404 returned for an unmapped shop key.
func UnknownShopKey(shopKey string) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    "UNKNOWN_SHOP_KEY",
		Message: fmt.Sprintf("shop key %q is not assigned to any shop", shopKey),
		Status:  http.StatusNotFound,
		Err:     ErrUnknownShopKey,
	}
}
