// Package gateway orchestrates the request pipeline: provider selection,
// content adaptation, token-budget validation, dispatch, and response
// normalization.
//
// DESIGN: Each request is an independent, self-contained unit of work. The
// pipeline is synchronous; the single network call to the backend is the only
// suspension point. No state is shared across requests beyond the immutable
// registry and configuration.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/sjson"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/budget"
	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/metrics"
	"github.com/tabwise/csv-gateway/internal/monitoring"
	"github.com/tabwise/csv-gateway/internal/provider"
)

// ProcessingInfo is the accounting block attached to every answer.
type ProcessingInfo struct {
	Model            string              `json:"model"`
	Provider         provider.ID         `json:"provider"`
	ProcessingMethod string              `json:"processing_method"`
	DataRows         any                 `json:"data_rows"` // row count, or "unknown" on the direct-upload path
	DataColumns      []string            `json:"data_columns"`
	ContentLength    int                 `json:"content_length,omitempty"`
	TokensUsed       *backends.UsageInfo `json:"tokens_used,omitempty"`
}

// Result is the unified answer shape returned for every provider.
type Result struct {
	Answer         string         `json:"answer"`
	ProcessingInfo ProcessingInfo `json:"processing_info"`
}

// Service runs the pipeline for one submission at a time.
type Service struct {
	cfg        *config.Config
	registry   *backends.Registry
	validator  *budget.Validator
	dispatcher *Dispatcher
}

// NewService wires the pipeline components.
func NewService(cfg *config.Config, registry *backends.Registry, validator *budget.Validator, dispatcher *Dispatcher) *Service {
	return &Service{cfg: cfg, registry: registry, validator: validator, dispatcher: dispatcher}
}

// ActiveProvider reports which provider would serve the next request.
func (s *Service) ActiveProvider() (provider.ID, error) {
	return provider.Select(s.cfg)
}

// Answer runs the full pipeline: select provider, adapt content, validate the
// token budget (extraction path only), dispatch once, and normalize the
// response. Every failure returns before any partial side effect.
func (s *Service) Answer(ctx context.Context, sub *backends.Submission) (*Result, error) {
	// Selection is checked at startup too; this guards against credential
	// changes in a live process.
	id, err := provider.Select(s.cfg)
	if err != nil {
		return nil, err
	}
	b, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}

	payload, err := b.BuildPayload(sub)
	if err != nil {
		return nil, err
	}

	// The direct-upload path skips estimation: the provider manages its own
	// context budgeting opaquely.
	if !b.DirectUpload() {
		if err := s.validator.Validate(payload.SystemPrompt, payload.UserContent, b.Model()); err != nil {
			var limitErr *budget.LimitExceededError
			if errors.As(err, &limitErr) {
				metrics.TokenBudgetRejections.WithLabelValues(limitErr.Model).Inc()
			}
			return nil, err
		}
	}

	body := payload.Body
	if s.cfg.MaxResponseTokens > 0 {
		body, err = sjson.SetBytes(body, b.MaxTokensPath(), s.cfg.MaxResponseTokens)
		if err != nil {
			return nil, fmt.Errorf("failed to apply response token override: %w", err)
		}
	}

	respBody, err := s.dispatcher.Dispatch(ctx, b, body)
	if err != nil {
		return nil, err
	}

	answer, err := b.ParseAnswer(respBody)
	if err != nil {
		return nil, err
	}

	info := ProcessingInfo{
		Model:            b.Model(),
		Provider:         id,
		ProcessingMethod: b.ProcessingMethod(),
		DataRows:         "unknown",
	}
	if ex := payload.Extraction; ex != nil {
		info.DataRows = ex.RowCount
		info.DataColumns = ex.Columns
		info.ContentLength = ex.ContentLength()
	}
	if usage, ok := b.ParseUsage(respBody); ok {
		info.TokensUsed = &usage
	}

	log.Info().
		Str("request_id", monitoring.RequestIDFromContext(ctx)).
		Str("provider", string(id)).
		Str("model", b.Model()).
		Str("method", b.ProcessingMethod()).
		Msg("answer produced")

	return &Result{Answer: answer, ProcessingInfo: info}, nil
}
