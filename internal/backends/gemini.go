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

// GeminiBackend sends the decoded file text in a contents/parts envelope with
// the API key carried in the URL query string and the model name embedded in
// the URL path.
type GeminiBackend struct {
	BaseBackend
	BaseURL string
	APIKey  string
}

// NewGeminiBackend builds the Gemini text backend from configuration.
func NewGeminiBackend(cfg *config.Config) *GeminiBackend {
	desc, _ := provider.Describe(provider.Google)
	return &GeminiBackend{
		BaseBackend: BaseBackend{
			provider: provider.Google,
			model:    cfg.GoogleModel,
			method:   MethodTextExtraction,
			timeout:  60 * time.Second,
		},
		BaseURL: desc.BaseURL,
		APIKey:  cfg.GoogleAPIKey,
	}
}

// DirectUpload reports that this backend requires extracted text.
func (b *GeminiBackend) DirectUpload() bool { return false }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

// BuildPayload embeds the raw decoded text plus the question as a single
// text part.
func (b *GeminiBackend) BuildPayload(sub *Submission) (*Payload, error) {
	ex, err := extract.FromCSV(sub.Data, sub.Filename)
	if err != nil {
		return nil, err
	}

	userPrompt := fmt.Sprintf(
		"Analyze this CSV data from file '%s' and answer the question.\n\nCSV Data:\n%s\n\nQuestion: %s\n\nProvide a comprehensive analysis and answer.",
		sub.Filename, ex.RawText, sub.Question)

	req := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: userPrompt}}}},
		GenerationConfig: geminiGenerationConfig{
			MaxOutputTokens: 1500,
			Temperature:     0.7,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshal request: %w", err)
	}
	return &Payload{
		Provider:    b.provider,
		Body:        body,
		UserContent: userPrompt,
		Extraction:  ex,
	}, nil
}

// Endpoint embeds the model in the URL path and the API key in the query
// string.
func (b *GeminiBackend) Endpoint() (string, error) {
	return fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		strings.TrimRight(b.BaseURL, "/"), url.PathEscape(b.model), url.QueryEscape(b.APIKey)), nil
}

// Authenticate is a no-op: the credential rides in the query string.
func (b *GeminiBackend) Authenticate(req *http.Request) {}

// MaxTokensPath locates the response-token cap in the payload body.
func (b *GeminiBackend) MaxTokensPath() string { return "generationConfig.maxOutputTokens" }

// ParseAnswer extracts the first candidate's first text part.
func (b *GeminiBackend) ParseAnswer(responseBody []byte) (string, error) {
	answer := gjson.GetBytes(responseBody, "candidates.0.content.parts.0.text")
	if !answer.Exists() {
		return "", &MalformedResponseError{Provider: b.provider, FieldPath: "candidates.0.content.parts.0.text"}
	}
	return answer.String(), nil
}

// ParseUsage reads Gemini's usageMetadata counters.
func (b *GeminiBackend) ParseUsage(responseBody []byte) (UsageInfo, bool) {
	usage := gjson.GetBytes(responseBody, "usageMetadata")
	if !usage.Exists() {
		return UsageInfo{}, false
	}
	return UsageInfo{
		InputTokens:  int(usage.Get("promptTokenCount").Int()),
		OutputTokens: int(usage.Get("candidatesTokenCount").Int()),
		TotalTokens:  int(usage.Get("totalTokenCount").Int()),
	}, true
}

var _ Backend = (*GeminiBackend)(nil)
