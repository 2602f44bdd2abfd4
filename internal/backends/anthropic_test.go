package backends

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/provider"
)

func anthropicTestConfig() *config.Config {
	return &config.Config{
		AnthropicAPIKey: "ant-key",
		AnthropicModel:  "claude-3-sonnet-20240229",
	}
}

func TestAnthropic_BuildPayload_RoundTrip(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())

	// Bytes that are not valid UTF-8: direct upload must never read or
	// transform content.
	raw := []byte{0x00, 0xff, 0x10, 'a', ',', 'b', '\n'}
	sub := &Submission{Data: raw, Filename: "opaque.csv", Question: "how many rows?"}

	p, err := b.BuildPayload(sub)
	require.NoError(t, err)
	assert.Nil(t, p.Extraction)
	assert.Empty(t, p.SystemPrompt)
	assert.Empty(t, p.UserContent)

	encoded := gjson.GetBytes(p.Body, "messages.0.content.1.source.data")
	require.True(t, encoded.Exists())
	decoded, err := base64.StdEncoding.DecodeString(encoded.String())
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)

	assert.Equal(t, "base64", gjson.GetBytes(p.Body, "messages.0.content.1.source.type").String())
	assert.Equal(t, "text/csv", gjson.GetBytes(p.Body, "messages.0.content.1.source.media_type").String())
	instruction := gjson.GetBytes(p.Body, "messages.0.content.0.text").String()
	assert.Contains(t, instruction, "opaque.csv")
	assert.Contains(t, instruction, "how many rows?")
}

func TestAnthropic_EndpointAndAuth(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())

	endpoint, err := b.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://api.anthropic.com/v1/messages", endpoint)

	req, _ := http.NewRequest(http.MethodPost, endpoint, nil)
	b.Authenticate(req)
	assert.Equal(t, "ant-key", req.Header.Get("x-api-key"))
	assert.Equal(t, "2023-06-01", req.Header.Get("anthropic-version"))
}

func TestAnthropic_ParseAnswer(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())

	answer, err := b.ParseAnswer([]byte(`{"content":[{"type":"text","text":"two rows"}],"usage":{"input_tokens":40,"output_tokens":5}}`))
	require.NoError(t, err)
	assert.Equal(t, "two rows", answer)

	usage, ok := b.ParseUsage([]byte(`{"usage":{"input_tokens":40,"output_tokens":5}}`))
	require.True(t, ok)
	assert.Equal(t, UsageInfo{InputTokens: 40, OutputTokens: 5, TotalTokens: 45}, usage)
}

func TestAnthropic_ParseAnswer_Malformed(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())

	tests := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty content array", `{"content":[]}`},
		{"block without text", `{"content":[{"type":"tool_use"}]}`},
		{"not json", `oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.ParseAnswer([]byte(tt.body))
			var malformed *MalformedResponseError
			require.ErrorAs(t, err, &malformed)
			assert.Equal(t, provider.Anthropic, malformed.Provider)
			assert.Equal(t, "content.0.text", malformed.FieldPath)
		})
	}
}

func TestAnthropic_ParseUsage_Absent(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())
	_, ok := b.ParseUsage([]byte(`{"content":[{"type":"text","text":"hi"}]}`))
	assert.False(t, ok)
}

func TestAnthropic_Identity(t *testing.T) {
	b := NewAnthropicBackend(anthropicTestConfig())
	assert.Equal(t, provider.Anthropic, b.Provider())
	assert.Equal(t, "claude-3-sonnet-20240229", b.Model())
	assert.True(t, b.DirectUpload())
	assert.Equal(t, MethodDirectUpload, b.ProcessingMethod())
}
