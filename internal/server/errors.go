// Package server provides the HTTP API over the matching decision core.
package server

import (
	"errors"
	"net/http"

	"github.com/neurobridge/matchcore/internal/consent"
	"github.com/neurobridge/matchcore/internal/gateway"
	"github.com/neurobridge/matchcore/internal/store"
	"github.com/neurobridge/matchcore/internal/types"
)

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		rateLimitErr  *gateway.RateLimitError
		validationErr *types.ValidationError
		stateErr      *consent.StateTransitionError
		permErr       *consent.PermissionError
		revokedErr    *consent.ConsentRevokedError
	)
	switch {
	case errors.As(err, &rateLimitErr):
		return http.StatusTooManyRequests
	case errors.As(err, &validationErr):
		return http.StatusBadRequest
	case errors.As(err, &stateErr), errors.As(err, &revokedErr):
		return http.StatusConflict
	case errors.As(err, &permErr):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
