package credential

import "testing"

func TestResolveEnvFirst(t *testing.T) {
	t.Setenv("SAGA_KEYRING_DISABLED", "1")
	t.Setenv("GEMINI_API_KEY", "from-env")

	if got := Resolve("gemini", "from-config"); got != "from-env" {
		t.Errorf("Resolve = %q, want env value", got)
	}
}

func TestResolveEnvAliases(t *testing.T) {
	t.Setenv("SAGA_KEYRING_DISABLED", "1")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "from-google-env")

	if got := Resolve("gemini", ""); got != "from-google-env" {
		t.Errorf("Resolve = %q, want GOOGLE_API_KEY fallback", got)
	}
}

func TestResolveConfigFallback(t *testing.T) {
	t.Setenv("SAGA_KEYRING_DISABLED", "1")
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := Resolve("anthropic", "from-config"); got != "from-config" {
		t.Errorf("Resolve = %q, want config fallback", got)
	}
}

func TestResolveUnknownProvider(t *testing.T) {
	t.Setenv("SAGA_KEYRING_DISABLED", "1")

	if got := Resolve("ollama", ""); got != "" {
		t.Errorf("Resolve = %q, want empty for keyless provider", got)
	}
}

func TestAvailableRespectsDisable(t *testing.T) {
	t.Setenv("SAGA_KEYRING_DISABLED", "1")
	if Available() {
		t.Error("Available() should be false when disabled")
	}
}
