package provider

import (
	"errors"

	"github.com/tabwise/csv-gateway/internal/config"
)

// ErrNoProviderConfigured means no provider credential is present. This is a
// terminal condition for the service instance: callers must refuse the
// request entirely rather than degrade.
var ErrNoProviderConfigured = errors.New("no supported LLM provider configured")

// Select returns the highest-priority provider with a configured credential.
//
// Priority order:
//  1. Enterprise gateway deployment (requires endpoint AND key)
//  2. Anthropic (direct file upload)
//  3. OpenAI
//  4. Google Gemini
func Select(cfg *config.Config) (ID, error) {
	switch {
	case cfg.AzureAPIKey != "" && cfg.AzureEndpoint != "":
		return AzureOpenAI, nil
	case cfg.AnthropicAPIKey != "":
		return Anthropic, nil
	case cfg.OpenAIAPIKey != "":
		return OpenAI, nil
	case cfg.GoogleAPIKey != "":
		return Google, nil
	default:
		return "", ErrNoProviderConfigured
	}
}
