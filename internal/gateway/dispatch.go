package gateway

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/metrics"
)

// Dispatcher performs the single outbound HTTP call for a request.
//
// DESIGN: No retries - a failed call surfaces immediately as a terminal
// error for that request. The timeout comes from the backend, and a call in
// flight runs to completion or timeout even if the caller goes away.
type Dispatcher struct {
	client *http.Client
}

// NewDispatcher builds a dispatcher around a shared HTTP client. Deadlines
// are applied per call from each backend's timeout.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{client: &http.Client{}}
}

// Dispatch POSTs the payload body to the backend's endpoint and returns the
// raw response body. Non-2xx statuses become UpstreamError; timeouts and
// connection failures become TransportError.
func (d *Dispatcher) Dispatch(ctx context.Context, b backends.Backend, body []byte) ([]byte, error) {
	endpoint, err := b.Endpoint()
	if err != nil {
		return nil, err
	}

	// Detach from caller cancellation: once dispatched, the call runs to
	// completion or to the backend's timeout.
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Provider: b.Provider(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	b.Authenticate(req)

	start := time.Now()
	resp, err := d.client.Do(req)
	elapsed := time.Since(start)
	metrics.DispatchDuration.WithLabelValues(string(b.Provider())).Observe(elapsed.Seconds())

	if err != nil {
		log.Error().Err(err).Str("provider", string(b.Provider())).Dur("elapsed", elapsed).Msg("upstream call failed")
		return nil, &TransportError{Provider: b.Provider(), Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Provider: b.Provider(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.UpstreamErrors.WithLabelValues(string(b.Provider()), resp.Status).Inc()
		log.Warn().
			Str("provider", string(b.Provider())).
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("upstream returned non-success status")
		return nil, &UpstreamError{Provider: b.Provider(), StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	log.Debug().
		Str("provider", string(b.Provider())).
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int("response_bytes", len(respBody)).
		Msg("upstream call completed")
	return respBody, nil
}
