package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/budget"
	"github.com/tabwise/csv-gateway/internal/extract"
	"github.com/tabwise/csv-gateway/internal/provider"
)

// InputValidationError reports a bad inbound request (missing file, wrong
// extension, oversize buffer, empty question). The reason is surfaced to the
// client verbatim; Field identifies the offending form part.
type InputValidationError struct {
	Field  string
	Reason string
}

func (e *InputValidationError) Error() string { return e.Reason }

// UpstreamError reports a non-success status from the provider. No retry is
// performed; the first failure is terminal for the request.
type UpstreamError struct {
	Provider   provider.ID
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s API error: %d - %s", e.Provider, e.StatusCode, e.Body)
}

// TransportError reports a timeout or connection failure before a status was
// received.
type TransportError struct {
	Provider provider.ID
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// statusFor maps the closed error set to HTTP status codes at the web
// boundary: bad input is 400-class, misconfiguration and upstream failures
// are 500-class.
func statusFor(err error) int {
	var (
		inputErr     *InputValidationError
		decodeErr    *extract.DecodeError
		extractErr   *extract.ExtractionError
		limitErr     *budget.LimitExceededError
		upstreamErr  *UpstreamError
		transportErr *TransportError
		malformedErr *backends.MalformedResponseError
	)
	switch {
	case errors.As(err, &inputErr):
		return http.StatusBadRequest
	case errors.As(err, &decodeErr), errors.As(err, &extractErr):
		return http.StatusBadRequest
	case errors.As(err, &limitErr):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, provider.ErrNoProviderConfigured):
		return http.StatusInternalServerError
	case errors.As(err, &upstreamErr), errors.As(err, &malformedErr):
		return http.StatusBadGateway
	case errors.As(err, &transportErr):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
