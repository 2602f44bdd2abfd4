// Package provider holds the static catalog of LLM backends and the
// credential-driven selection logic.
//
// DESIGN: The catalog is immutable, process-wide data defined at startup.
// Selection scans a fixed priority order and returns the first provider whose
// credential is configured; everything downstream (payload shape, auth,
// timeouts) is keyed off the selected ID.
package provider

// ID identifies an LLM provider.
type ID string

const (
	AzureOpenAI ID = "azure_openai"
	Anthropic   ID = "anthropic"
	OpenAI      ID = "openai"
	Google      ID = "google"
)

// Descriptor describes a backend's static capabilities.
type Descriptor struct {
	ID                   ID
	BaseURL              string
	SupportsDirectUpload bool
	ContentTypes         []string
}

// catalog lists all supported providers in selection priority order.
// The enterprise gateway has no fixed base URL; its endpoint comes from
// configuration.
var catalog = []Descriptor{
	{
		ID:           AzureOpenAI,
		ContentTypes: []string{"text/csv"},
	},
	{
		ID:                   Anthropic,
		BaseURL:              "https://api.anthropic.com",
		SupportsDirectUpload: true,
		ContentTypes:         []string{"text/csv", "application/vnd.ms-excel"},
	},
	{
		ID:           OpenAI,
		BaseURL:      "https://api.openai.com",
		ContentTypes: []string{"text/csv"},
	},
	{
		ID:           Google,
		BaseURL:      "https://generativelanguage.googleapis.com",
		ContentTypes: []string{"text/csv"},
	},
}

// Catalog returns a copy of all provider descriptors in priority order.
func Catalog() []Descriptor {
	out := make([]Descriptor, len(catalog))
	copy(out, catalog)
	return out
}

// Describe returns the descriptor for a provider, or false if unknown.
func Describe(id ID) (Descriptor, bool) {
	for _, d := range catalog {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// IDs returns all known provider IDs in priority order.
func IDs() []ID {
	ids := make([]ID, len(catalog))
	for i, d := range catalog {
		ids[i] = d.ID
	}
	return ids
}
