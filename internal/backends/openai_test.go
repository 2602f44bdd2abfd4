package backends

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/provider"
)

func openAITestConfig() *config.Config {
	return &config.Config{
		OpenAIAPIKey: "oai-key",
		OpenAIModel:  "gpt-4-turbo-preview",
	}
}

func TestOpenAI_BuildPayload_RawText(t *testing.T) {
	b := NewOpenAIBackend(openAITestConfig())

	csvData := "a,b\n1,2\n3,4\n"
	sub := &Submission{Data: []byte(csvData), Filename: "data.csv", Question: "how many rows?"}

	p, err := b.BuildPayload(sub)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4-turbo-preview", gjson.GetBytes(p.Body, "model").String())
	assert.Equal(t, int64(1500), gjson.GetBytes(p.Body, "max_tokens").Int())
	assert.InDelta(t, 0.7, gjson.GetBytes(p.Body, "temperature").Float(), 1e-9)

	// The decoded text is embedded verbatim, not the structured summary.
	userMsg := gjson.GetBytes(p.Body, "messages.1.content").String()
	assert.Contains(t, userMsg, csvData)
	assert.NotContains(t, userMsg, "COMPLETE DATA CONTENT:")

	// Extraction metadata still rides along for the result.
	require.NotNil(t, p.Extraction)
	assert.Equal(t, 2, p.Extraction.RowCount)
	assert.Equal(t, []string{"a", "b"}, p.Extraction.Columns)
}

func TestOpenAI_EndpointAndAuth(t *testing.T) {
	b := NewOpenAIBackend(openAITestConfig())

	endpoint, err := b.Endpoint()
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1/chat/completions", endpoint)

	req, _ := http.NewRequest(http.MethodPost, endpoint, nil)
	b.Authenticate(req)
	assert.Equal(t, "Bearer oai-key", req.Header.Get("Authorization"))
}

func TestOpenAI_ParseAnswer_Malformed(t *testing.T) {
	b := NewOpenAIBackend(openAITestConfig())

	_, err := b.ParseAnswer([]byte(`{"id":"cmpl-1","choices":[{"message":{}}]}`))

	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, provider.OpenAI, malformed.Provider)
	assert.Equal(t, "choices.0.message.content", malformed.FieldPath)
}

func TestOpenAI_Identity(t *testing.T) {
	b := NewOpenAIBackend(openAITestConfig())
	assert.Equal(t, provider.OpenAI, b.Provider())
	assert.False(t, b.DirectUpload())
	assert.Equal(t, MethodTextExtraction, b.ProcessingMethod())
	assert.Equal(t, 60.0, b.Timeout().Seconds())
}
