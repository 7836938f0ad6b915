// Package credential resolves provider API keys: environment variables
// first, then the OS keychain, then the configured fallback.
package credential

import (
	"fmt"
	"os"

	zkr "github.com/zalando/go-keyring"
)

const serviceName = "saga"

// envVars maps a provider to the environment variables consulted, in order.
var envVars = map[string][]string{
	"gemini":    {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"anthropic": {"ANTHROPIC_API_KEY"},
	"openai":    {"OPENAI_API_KEY"},
}

// Resolve returns the API key for a provider. configured is the config-file
// value, used last. Empty when nothing is found.
func Resolve(provider, configured string) string {
	for _, name := range envVars[provider] {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	if Available() {
		if v, err := zkr.Get(serviceName, provider); err == nil && v != "" {
			return v
		}
	}
	return configured
}

// EnvVarInUse returns the name of the environment variable currently
// supplying a provider's key, empty when none is set.
func EnvVarInUse(provider string) string {
	for _, name := range envVars[provider] {
		if os.Getenv(name) != "" {
			return name
		}
	}
	return ""
}

// Get retrieves a provider's key from the OS keychain.
func Get(provider string) (string, error) {
	v, err := zkr.Get(serviceName, provider)
	if err != nil {
		return "", fmt.Errorf("keychain get: %w", err)
	}
	return v, nil
}

// Set stores a provider's key in the OS keychain.
func Set(provider, key string) error {
	return zkr.Set(serviceName, provider, key)
}

// Delete removes a provider's key from the OS keychain.
func Delete(provider string) error {
	return zkr.Delete(serviceName, provider)
}

// Available returns true if the OS keychain is functional.
// Returns false if SAGA_KEYRING_DISABLED=1 is set (for headless/CI/Docker).
// Otherwise probes the keychain with a test write/delete cycle.
func Available() bool {
	if os.Getenv("SAGA_KEYRING_DISABLED") == "1" {
		return false
	}
	testService := "saga-keyring-probe"
	testAccount := "probe"
	if err := zkr.Set(testService, testAccount, "ok"); err != nil {
		return false
	}
	_ = zkr.Delete(testService, testAccount)
	return true
}
