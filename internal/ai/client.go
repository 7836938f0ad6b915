package ai

import "context"

// NewClient authenticates against the named provider and returns its client.
// Gemini is the default when provider is empty. baseURL is only meaningful
// for Ollama.
func NewClient(ctx context.Context, provider, apiKey, baseURL string) (Client, error) {
	switch provider {
	case "", ProviderGemini:
		return NewGemini(ctx, apiKey)
	case ProviderAnthropic:
		return NewAnthropic(apiKey)
	case ProviderOpenAI:
		return NewOpenAI(apiKey)
	case ProviderOllama:
		return NewOllama(baseURL)
	}
	return nil, &Error{Kind: KindSessionInit, Provider: provider, Message: "unknown provider " + provider}
}
