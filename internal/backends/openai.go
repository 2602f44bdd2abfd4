package backends

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/extract"
	"github.com/tabwise/csv-gateway/internal/provider"
)

const openAISystemPrompt = "You are a helpful assistant that analyzes CSV data and answers questions about it."

// OpenAIBackend sends the decoded file text verbatim in a chat-messages
// envelope with bearer-token auth.
type OpenAIBackend struct {
	BaseBackend
	BaseURL string
	APIKey  string
}

// NewOpenAIBackend builds the OpenAI text backend from configuration.
func NewOpenAIBackend(cfg *config.Config) *OpenAIBackend {
	desc, _ := provider.Describe(provider.OpenAI)
	return &OpenAIBackend{
		BaseBackend: BaseBackend{
			provider: provider.OpenAI,
			model:    cfg.OpenAIModel,
			method:   MethodTextExtraction,
			timeout:  60 * time.Second,
		},
		BaseURL: desc.BaseURL,
		APIKey:  cfg.OpenAIAPIKey,
	}
}

// DirectUpload reports that this backend requires extracted text.
func (b *OpenAIBackend) DirectUpload() bool { return false }

type openAIRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

// BuildPayload embeds the raw decoded text plus the question. The extraction
// pass still runs so row/column metadata is available for the result.
func (b *OpenAIBackend) BuildPayload(sub *Submission) (*Payload, error) {
	ex, err := extract.FromCSV(sub.Data, sub.Filename)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"Here is CSV data from file '%s':\n\n%s\n\nQuestion: %s\n\nPlease analyze the data and provide a comprehensive answer.",
		sub.Filename, ex.RawText, sub.Question)

	req := openAIRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: openAISystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   1500,
		Temperature: 0.7,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}
	return &Payload{
		Provider:     b.provider,
		Body:         body,
		SystemPrompt: openAISystemPrompt,
		UserContent:  userPrompt,
		Extraction:   ex,
	}, nil
}

// Endpoint returns the chat completions URL.
func (b *OpenAIBackend) Endpoint() (string, error) {
	return strings.TrimRight(b.BaseURL, "/") + "/v1/chat/completions", nil
}

// Authenticate attaches the bearer-token scheme.
func (b *OpenAIBackend) Authenticate(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+b.APIKey)
}

// MaxTokensPath locates the response-token cap in the payload body.
func (b *OpenAIBackend) MaxTokensPath() string { return "max_tokens" }

// ParseAnswer extracts the first choice's message content.
func (b *OpenAIBackend) ParseAnswer(responseBody []byte) (string, error) {
	answer := gjson.GetBytes(responseBody, "choices.0.message.content")
	if !answer.Exists() {
		return "", &MalformedResponseError{Provider: b.provider, FieldPath: "choices.0.message.content"}
	}
	return answer.String(), nil
}

// ParseUsage reads the prompt/completion/total counters.
func (b *OpenAIBackend) ParseUsage(responseBody []byte) (UsageInfo, bool) {
	return parseOpenAIUsage(responseBody)
}

var _ Backend = (*OpenAIBackend)(nil)
