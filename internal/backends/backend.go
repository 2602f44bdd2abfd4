// Package backends provides provider-specific request handling.
//
// DESIGN: The gateway supports four LLM providers with different request
// envelopes, auth schemes, and response shapes. Each implements the Backend
// interface so the pipeline selects one once and invokes it uniformly:
//
//  1. Selector picks a provider from configured credentials
//  2. BuildPayload adapts the file + question to the provider's envelope
//  3. The dispatcher POSTs the body with Endpoint/Authenticate/Timeout
//  4. ParseAnswer/ParseUsage normalize the provider's response shape
//
// Backends are stateless after construction and safe for concurrent use.
package backends

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tabwise/csv-gateway/internal/extract"
	"github.com/tabwise/csv-gateway/internal/provider"
)

// Processing method labels reported to callers.
const (
	MethodDirectUpload     = "direct_file_upload"
	MethodTextExtraction   = "text_extraction"
	MethodExtractedContent = "extracted_content"
)

// Submission is the inbound unit of work: an immutable file buffer, its
// name, and the question to answer. Constructed once per request and
// read-only thereafter.
type Submission struct {
	Data     []byte
	Filename string
	Question string
}

// Payload is an adapted, ready-to-send request body plus the prompt text
// needed for token budgeting. SystemPrompt and UserContent are empty on the
// direct-upload path, which skips budgeting entirely.
type Payload struct {
	Provider     provider.ID
	Body         []byte
	SystemPrompt string
	UserContent  string
	Extraction   *extract.Extraction // nil on the direct-upload path
}

// UsageInfo is the normalized token accounting reported by a provider.
type UsageInfo struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// MalformedResponseError means a provider response is missing an expected
// field path: the backend's response contract changed.
type MalformedResponseError struct {
	Provider  provider.ID
	FieldPath string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: missing '%s'", e.Provider, e.FieldPath)
}

// Backend defines the unified interface for provider-specific handling.
type Backend interface {
	// Provider returns the provider this backend speaks to.
	Provider() provider.ID

	// Model returns the model identifier sent upstream.
	Model() string

	// ProcessingMethod labels how file content reaches the provider.
	ProcessingMethod() string

	// DirectUpload reports whether raw file bytes are sent inline, in which
	// case no local extraction or token budgeting happens.
	DirectUpload() bool

	// Timeout bounds the single upstream call.
	Timeout() time.Duration

	// BuildPayload adapts the submission to the provider's request envelope.
	BuildPayload(sub *Submission) (*Payload, error)

	// Endpoint returns the full request URL.
	Endpoint() (string, error)

	// Authenticate attaches the provider's auth scheme to the request.
	// Backends that carry the credential in the URL leave this a no-op.
	Authenticate(req *http.Request)

	// MaxTokensPath is the JSON path of the response-token cap in the
	// payload body, used when patching a configured override.
	MaxTokensPath() string

	// ParseAnswer extracts the answer text from the provider response.
	ParseAnswer(responseBody []byte) (string, error)

	// ParseUsage extracts token accounting from the provider response.
	// The second return is false when the provider reported none.
	ParseUsage(responseBody []byte) (UsageInfo, bool)
}

// BaseBackend provides the common identity fields for all backends.
type BaseBackend struct {
	provider provider.ID
	model    string
	method   string
	timeout  time.Duration
}

// Provider returns the provider ID.
func (b *BaseBackend) Provider() provider.ID { return b.provider }

// Model returns the upstream model identifier.
func (b *BaseBackend) Model() string { return b.model }

// ProcessingMethod returns the processing method label.
func (b *BaseBackend) ProcessingMethod() string { return b.method }

// Timeout returns the upstream call deadline.
func (b *BaseBackend) Timeout() time.Duration { return b.timeout }
