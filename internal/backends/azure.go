package backends

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/extract"
	"github.com/tabwise/csv-gateway/internal/provider"
)

const azureSystemPrompt = "You are a helpful assistant that analyzes CSV data and answers questions about it. " +
	"You have been provided with the complete extracted data from a CSV file. " +
	"Provide detailed, accurate analysis based on ALL the data provided."

// AzureBackend targets an enterprise-gateway deployment (Azure OpenAI style):
// model name embedded in the URL path, api-key header auth, and the full
// structured extraction embedded in the prompt. Its timeout is double the
// other backends' because the payload carries every row of the file.
type AzureBackend struct {
	BaseBackend
	EndpointURL string
	APIKey      string
	APIVersion  string
}

// NewAzureBackend builds the enterprise-gateway backend from configuration.
func NewAzureBackend(cfg *config.Config) *AzureBackend {
	return &AzureBackend{
		BaseBackend: BaseBackend{
			provider: provider.AzureOpenAI,
			model:    cfg.AzureDeployment,
			method:   MethodExtractedContent,
			timeout:  120 * time.Second,
		},
		EndpointURL: cfg.AzureEndpoint,
		APIKey:      cfg.AzureAPIKey,
		APIVersion:  cfg.AzureAPIVersion,
	}
}

// DirectUpload reports that this backend requires extracted text.
func (b *AzureBackend) DirectUpload() bool { return false }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type azureRequest struct {
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens"`
	Temperature      float64       `json:"temperature"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

// BuildPayload embeds the complete structured summary (schema, full row dump,
// statistics) plus the question.
func (b *AzureBackend) BuildPayload(sub *Submission) (*Payload, error) {
	ex, err := extract.FromCSV(sub.Data, sub.Filename)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"I have uploaded a CSV file and extracted its COMPLETE contents. Here is the full processed data:\n\n%s\n\nUser Question: %s\n\nPlease analyze ALL the data and provide a comprehensive answer to the user's question.",
		ex.Summary, sub.Question)

	req := azureRequest{
		Messages: []chatMessage{
			{Role: "system", Content: azureSystemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   2000,
		Temperature: 0.3,
		TopP:        0.95,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("azure: marshal request: %w", err)
	}
	return &Payload{
		Provider:     b.provider,
		Body:         body,
		SystemPrompt: azureSystemPrompt,
		UserContent:  userPrompt,
		Extraction:   ex,
	}, nil
}

// Endpoint builds the deployment-scoped chat completions URL with the API
// version in the query string.
func (b *AzureBackend) Endpoint() (string, error) {
	if b.EndpointURL == "" {
		return "", fmt.Errorf("azure: endpoint not configured")
	}
	base := strings.TrimRight(b.EndpointURL, "/")
	return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		base, url.PathEscape(b.model), url.QueryEscape(b.APIVersion)), nil
}

// Authenticate attaches the api-key header scheme.
func (b *AzureBackend) Authenticate(req *http.Request) {
	req.Header.Set("api-key", b.APIKey)
}

// MaxTokensPath locates the response-token cap in the payload body.
func (b *AzureBackend) MaxTokensPath() string { return "max_tokens" }

// ParseAnswer extracts the first choice's message content.
func (b *AzureBackend) ParseAnswer(responseBody []byte) (string, error) {
	answer := gjson.GetBytes(responseBody, "choices.0.message.content")
	if !answer.Exists() {
		return "", &MalformedResponseError{Provider: b.provider, FieldPath: "choices.0.message.content"}
	}
	return answer.String(), nil
}

// ParseUsage reads the OpenAI-style usage counters.
func (b *AzureBackend) ParseUsage(responseBody []byte) (UsageInfo, bool) {
	return parseOpenAIUsage(responseBody)
}

// parseOpenAIUsage handles the prompt/completion/total counter shape shared
// by OpenAI and enterprise-gateway deployments.
func parseOpenAIUsage(responseBody []byte) (UsageInfo, bool) {
	usage := gjson.GetBytes(responseBody, "usage")
	if !usage.Exists() {
		return UsageInfo{}, false
	}
	return UsageInfo{
		InputTokens:  int(usage.Get("prompt_tokens").Int()),
		OutputTokens: int(usage.Get("completion_tokens").Int()),
		TotalTokens:  int(usage.Get("total_tokens").Int()),
	}, true
}

var _ Backend = (*AzureBackend)(nil)
