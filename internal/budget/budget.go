// Package budget estimates the token cost of an assembled prompt and rejects
// requests that cannot fit the target model's context window before any
// network call is made.
//
// DESIGN: Budget checking is a best-effort guard, not a correctness
// requirement. If the tokenizer cannot be constructed (e.g. its encoding data
// is unreachable), validation is skipped with a warning rather than blocking
// requests.
package budget

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

const (
	// messageOverheadTokens accounts for per-message envelope framing.
	messageOverheadTokens = 10

	// ReservedResponseTokens is held back from the context window for the
	// model's answer.
	ReservedResponseTokens = 2000

	// DefaultModelLimit is the conservative context window assumed for
	// models absent from the limits table.
	DefaultModelLimit = 50000
)

// Estimate is the full numeric breakdown of a budget check. Ephemeral:
// computed, attached to a rejection if any, and discarded.
type Estimate struct {
	SystemPromptTokens     int `json:"system_prompt_tokens"`
	UserContentTokens      int `json:"user_content_tokens"`
	OverheadTokens         int `json:"overhead_tokens"`
	ReservedResponseTokens int `json:"reserved_response_tokens"`
	TotalNeeded            int `json:"total_needed"`
	ModelLimit             int `json:"model_limit"`
	Excess                 int `json:"excess"`
}

// LimitExceededError reports that the assembled prompt cannot fit the model's
// context window. Retrying without changing input cannot succeed.
type LimitExceededError struct {
	Model    string
	Estimate Estimate
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("content exceeds token limit for model '%s': needs %d tokens, limit is %d (excess %d)",
		e.Model, e.Estimate.TotalNeeded, e.Estimate.ModelLimit, e.Estimate.Excess)
}

// Validator estimates prompt token cost against per-model limits.
type Validator struct {
	count  func(string) int // nil when estimation is unavailable
	limits map[string]int
}

// NewValidator builds a validator backed by the gpt-4 tiktoken encoding,
// falling back to cl100k_base. When neither can be constructed the validator
// is created in pass-through mode.
func NewValidator(limits map[string]int) *Validator {
	enc, err := tiktoken.EncodingForModel("gpt-4")
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
	}
	if err != nil {
		log.Warn().Err(err).Msg("token estimation unavailable, skipping budget validation")
		return &Validator{limits: limits}
	}
	return &Validator{
		count: func(s string) int {
			return len(enc.Encode(s, nil, nil))
		},
		limits: limits,
	}
}

// NewValidatorWithCounter builds a validator with an explicit token counter.
func NewValidatorWithCounter(count func(string) int, limits map[string]int) *Validator {
	return &Validator{count: count, limits: limits}
}

// Available reports whether token estimation is operational.
func (v *Validator) Available() bool { return v.count != nil }

// Limit returns the context window for a model, defaulting for unknown ones.
func (v *Validator) Limit(model string) int {
	if limit, ok := v.limits[model]; ok {
		return limit
	}
	return DefaultModelLimit
}

// Validate checks that systemPrompt + userContent + overhead + the response
// reserve fit within the model's context window. Returns nil when estimation
// is unavailable.
func (v *Validator) Validate(systemPrompt, userContent, model string) error {
	if v.count == nil {
		log.Debug().Str("model", model).Msg("token estimation unavailable, request passes unchecked")
		return nil
	}

	est := Estimate{
		SystemPromptTokens:     v.count(systemPrompt),
		UserContentTokens:      v.count(userContent),
		OverheadTokens:         messageOverheadTokens,
		ReservedResponseTokens: ReservedResponseTokens,
		ModelLimit:             v.Limit(model),
	}
	est.TotalNeeded = est.SystemPromptTokens + est.UserContentTokens + est.OverheadTokens + est.ReservedResponseTokens

	log.Debug().
		Str("model", model).
		Int("system_tokens", est.SystemPromptTokens).
		Int("user_tokens", est.UserContentTokens).
		Int("total_needed", est.TotalNeeded).
		Int("model_limit", est.ModelLimit).
		Msg("token budget estimated")

	if est.TotalNeeded > est.ModelLimit {
		est.Excess = est.TotalNeeded - est.ModelLimit
		return &LimitExceededError{Model: model, Estimate: est}
	}
	return nil
}
