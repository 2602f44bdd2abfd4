package backends

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/provider"
)

const anthropicAPIVersion = "2023-06-01"

// AnthropicBackend sends the raw file bytes inline as a base64 document
// block. No content is read or summarized locally; the provider performs all
// interpretation. This is the cheapest and most faithful strategy and is
// preferred whenever available.
type AnthropicBackend struct {
	BaseBackend
	BaseURL string
	APIKey  string
}

// NewAnthropicBackend builds the direct-upload backend from configuration.
func NewAnthropicBackend(cfg *config.Config) *AnthropicBackend {
	desc, _ := provider.Describe(provider.Anthropic)
	return &AnthropicBackend{
		BaseBackend: BaseBackend{
			provider: provider.Anthropic,
			model:    cfg.AnthropicModel,
			method:   MethodDirectUpload,
			timeout:  60 * time.Second,
		},
		BaseURL: desc.BaseURL,
		APIKey:  cfg.AnthropicAPIKey,
	}
}

// DirectUpload reports that this backend accepts raw file bytes.
func (b *AnthropicBackend) DirectUpload() bool { return true }

type anthropicDocumentSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type anthropicContentBlock struct {
	Type   string                   `json:"type"`
	Text   string                   `json:"text,omitempty"`
	Source *anthropicDocumentSource `json:"source,omitempty"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

// BuildPayload attaches the base64-encoded file as a document part next to an
// instruction line referencing the filename and the question.
func (b *AnthropicBackend) BuildPayload(sub *Submission) (*Payload, error) {
	req := anthropicRequest{
		Model:     b.model,
		MaxTokens: 1500,
		Messages: []anthropicMessage{{
			Role: "user",
			Content: []anthropicContentBlock{
				{
					Type: "text",
					Text: fmt.Sprintf("I have uploaded a CSV file named '%s'. Please analyze this data and answer the following question: %s", sub.Filename, sub.Question),
				},
				{
					Type: "document",
					Source: &anthropicDocumentSource{
						Type:      "base64",
						MediaType: "text/csv",
						Data:      base64.StdEncoding.EncodeToString(sub.Data),
					},
				},
			},
		}},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}
	return &Payload{Provider: b.provider, Body: body}, nil
}

// Endpoint returns the messages API URL.
func (b *AnthropicBackend) Endpoint() (string, error) {
	return strings.TrimRight(b.BaseURL, "/") + "/v1/messages", nil
}

// Authenticate attaches the x-api-key header scheme.
func (b *AnthropicBackend) Authenticate(req *http.Request) {
	req.Header.Set("x-api-key", b.APIKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

// MaxTokensPath locates the response-token cap in the payload body.
func (b *AnthropicBackend) MaxTokensPath() string { return "max_tokens" }

// ParseAnswer extracts the first text block from the content array.
func (b *AnthropicBackend) ParseAnswer(responseBody []byte) (string, error) {
	answer := gjson.GetBytes(responseBody, "content.0.text")
	if !answer.Exists() {
		return "", &MalformedResponseError{Provider: b.provider, FieldPath: "content.0.text"}
	}
	return answer.String(), nil
}

// ParseUsage reads Anthropic's input/output token counters.
func (b *AnthropicBackend) ParseUsage(responseBody []byte) (UsageInfo, bool) {
	usage := gjson.GetBytes(responseBody, "usage")
	if !usage.Exists() {
		return UsageInfo{}, false
	}
	in := int(usage.Get("input_tokens").Int())
	out := int(usage.Get("output_tokens").Int())
	return UsageInfo{InputTokens: in, OutputTokens: out, TotalTokens: in + out}, true
}

var _ Backend = (*AnthropicBackend)(nil)
