package constants

import "strings"

// Provider represents an AI provider type
type Provider string

// AI Providers
const (
	ProviderGemini Provider = "gemini"
	ProviderOllama Provider = "ollama"
)

// ProviderInfo contains display information about a provider
type ProviderInfo struct {
	Key         string
	Name        Provider
	Description string
	Streaming   bool
	Embeddings  bool
}

// AllProviders returns all available AI providers in order
var AllProviders = []ProviderInfo{
	{
		Key:         "1",
		Name:        ProviderGemini,
		Description: "Google Gemini — Flash models with text-embedding-004",
		Streaming:   true,
		Embeddings:  true,
	},
	{
		Key:         "2",
		Name:        ProviderOllama,
		Description: "Free, local, private — Llama, Qwen, nomic-embed-text",
		Streaming:   true,
		Embeddings:  true,
	},
}

// ParseProvider normalizes a provider name. Unknown names return false.
func ParseProvider(name string) (Provider, bool) {
	p := Provider(strings.ToLower(strings.TrimSpace(name)))
	for _, info := range AllProviders {
		if info.Name == p {
			return p, true
		}
	}
	return "", false
}

// ProviderDescription returns a description for a provider.
func ProviderDescription(p Provider) string {
	for _, info := range AllProviders {
		if info.Name == p {
			return info.Description
		}
	}
	return ""
}
