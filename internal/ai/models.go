package ai

// Provider identifiers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// DefaultModel is the model used when nothing is configured.
const DefaultModel = "gemini-2.0-flash"

// GeminiModels is the closed set of Gemini model identifiers the product
// supports. Other providers accept any non-empty model name.
var GeminiModels = []string{
	"gemini-2.0-flash",
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.5-flash-pro",
}

var defaultModels = map[string]string{
	ProviderGemini:    DefaultModel,
	ProviderAnthropic: "claude-sonnet-4-5",
	ProviderOpenAI:    "gpt-4o-mini",
	ProviderOllama:    "llama3.2",
}

// Providers lists the supported provider identifiers.
func Providers() []string {
	return []string{ProviderGemini, ProviderAnthropic, ProviderOpenAI, ProviderOllama}
}

// DefaultModelFor returns the default model for a provider, empty when the
// provider is unknown.
func DefaultModelFor(provider string) string {
	return defaultModels[provider]
}

// SupportedModels returns the closed model list for a provider, or nil when
// the provider accepts arbitrary model names.
func SupportedModels(provider string) []string {
	if provider == ProviderGemini {
		out := make([]string, len(GeminiModels))
		copy(out, GeminiModels)
		return out
	}
	return nil
}

// ValidateModel checks a model name against the provider's supported set.
func ValidateModel(provider, model string) error {
	if model == "" {
		return &Error{Kind: KindSessionInit, Provider: provider, Message: "empty model name"}
	}
	supported := SupportedModels(provider)
	if supported == nil {
		return nil
	}
	for _, m := range supported {
		if m == model {
			return nil
		}
	}
	return &Error{Kind: KindSessionInit, Provider: provider, Message: "unknown model " + model}
}
