package httpclient

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/finsearch/pkg/errors"
)

const maxErrorBody = 1 << 16

// StatusError describes a non-2xx answer from an upstream service.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}

// ParseResponseError drains and closes a non-2xx response and translates it
// into an AppError whose sentinel matches the upstream status. The returned
// error always unwraps to a *StatusError.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("%s returned status %d (failed to read body: %w)", serviceName, resp.StatusCode, err)
	}

	statusErr := &StatusError{
		Service: serviceName,
		Status:  resp.StatusCode,
		Body:    strings.TrimSpace(string(bodyBytes)),
	}
	return mapStatus(statusErr)
}

func mapStatus(se *StatusError) error {
	msg := se.Error()

	switch {
	case se.Status == http.StatusNotFound:
		return &apperrors.AppError{Code: "NOT_FOUND", Message: msg, Status: http.StatusNotFound, Err: fmt.Errorf("%w: %w", apperrors.ErrNotFound, se)}
	case se.Status == http.StatusBadRequest:
		return &apperrors.AppError{Code: "INVALID_INPUT", Message: msg, Status: http.StatusBadRequest, Err: fmt.Errorf("%w: %w", apperrors.ErrInvalidInput, se)}
	case se.Status == http.StatusConflict:
		return &apperrors.AppError{Code: "CONFLICT", Message: msg, Status: http.StatusConflict, Err: fmt.Errorf("%w: %w", apperrors.ErrConflict, se)}
	case se.Status == http.StatusServiceUnavailable:
		return &apperrors.AppError{Code: "SERVICE_UNAVAILABLE", Message: msg, Status: http.StatusServiceUnavailable, Err: fmt.Errorf("%w: %w", apperrors.ErrServiceUnavail, se)}
	case se.Status >= 500:
		return apperrors.BadGateway(msg, se)
	default:
		return &apperrors.AppError{Code: "UPSTREAM_STATUS", Message: msg, Status: se.Status, Err: se}
	}
}

