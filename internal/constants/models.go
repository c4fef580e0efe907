package constants

// EmbeddingDimensions is the vector width stored for every file summary.
// Both default embedding models produce 768-dimensional vectors.
const EmbeddingDimensions = 768

// ModelConfig holds model configuration for a provider
type ModelConfig struct {
	LLMModel       string
	EmbeddingModel string
	BaseURL        string
}

// DefaultModels contains default model configurations for each provider
var DefaultModels = map[Provider]ModelConfig{
	ProviderGemini: {
		LLMModel:       "gemini-2.5-flash",
		EmbeddingModel: "text-embedding-004",
	},
	ProviderOllama: {
		LLMModel:       "llama3.1",
		EmbeddingModel: "nomic-embed-text",
		BaseURL:        "http://localhost:11434",
	},
}

// ModelOption represents a selectable model with metadata for CLI display
type ModelOption struct {
	ID          string
	Model       string
	Description string
}

// GetLLMModels returns available LLM model options for a provider
func GetLLMModels(provider Provider) []ModelOption {
	return llmModels[provider]
}

var llmModels = map[Provider][]ModelOption{
	ProviderGemini: {
		{ID: "1", Model: "gemini-2.5-flash", Description: "Gemini 2.5 Flash (default, fast)"},
		{ID: "2", Model: "gemini-2.5-pro", Description: "Gemini 2.5 Pro (thinking, slower)"},
		{ID: "3", Model: "gemini-2.0-flash", Description: "Gemini 2.0 Flash"},
	},
	ProviderOllama: {
		{ID: "1", Model: "llama3.1", Description: "Meta Llama 3.1 (default)"},
		{ID: "2", Model: "qwen3-coder", Description: "Qwen3 Coder (coding specialist)"},
		{ID: "3", Model: "gemma3", Description: "Gemma 3"},
	},
}
