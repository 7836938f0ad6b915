package ai

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limit text", errors.New("Error 429: rate limit exceeded"), KindQuota},
		{"quota text", errors.New("quota exceeded for quota metric"), KindQuota},
		{"resource exhausted text", errors.New("rpc error: resource exhausted"), KindQuota},
		{"unauthorized", errors.New("401 unauthorized"), KindAuth},
		{"bad api key", errors.New("API key not valid"), KindAuth},
		{"permission denied", errors.New("permission denied for project"), KindAuth},
		{"plain failure", errors.New("connection refused"), KindAPI},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("gemini", tt.err)
			if got.Kind != tt.want {
				t.Errorf("Classify(%q) kind = %s, want %s", tt.err, got.Kind, tt.want)
			}
			if got.Provider != "gemini" {
				t.Errorf("Classify provider = %s, want gemini", got.Provider)
			}
		})
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	orig := &Error{Kind: KindSessionInit, Provider: "gemini", Message: "unknown model"}
	got := Classify("gemini", fmt.Errorf("create failed: %w", orig))
	if got != orig {
		t.Errorf("Classify did not pass through the wrapped *Error")
	}
}

func TestClassifyStatus(t *testing.T) {
	tests := []struct {
		code int
		want Kind
	}{
		{429, KindQuota},
		{401, KindAuth},
		{403, KindAuth},
		{500, KindAPI},
		{400, KindAPI},
	}
	for _, tt := range tests {
		got := classifyStatus("openai", tt.code, "", errors.New("upstream"))
		if got.Kind != tt.want {
			t.Errorf("classifyStatus(%d) = %s, want %s", tt.code, got.Kind, tt.want)
		}
		if got.Status != tt.code {
			t.Errorf("classifyStatus(%d) status = %d", tt.code, got.Status)
		}
	}
}

func TestKindHelpers(t *testing.T) {
	quota := &Error{Kind: KindQuota, Provider: "gemini"}
	wrapped := fmt.Errorf("send failed: %w", quota)

	if !IsQuota(wrapped) {
		t.Error("IsQuota should see through wrapping")
	}
	if IsAuth(wrapped) {
		t.Error("IsAuth misclassified a quota error")
	}
	if KindOf(errors.New("anything")) != KindUnexpected {
		t.Error("untyped errors should be KindUnexpected")
	}
}

func TestValidateModel(t *testing.T) {
	if err := ValidateModel(ProviderGemini, "gemini-2.0-flash"); err != nil {
		t.Errorf("supported model rejected: %v", err)
	}
	if err := ValidateModel(ProviderGemini, "gemini-1.0-ultra"); !IsSessionInit(err) {
		t.Errorf("unknown gemini model should fail session init, got %v", err)
	}
	if err := ValidateModel(ProviderOllama, "anything-goes"); err != nil {
		t.Errorf("open-ended provider rejected a model: %v", err)
	}
	if err := ValidateModel(ProviderOpenAI, ""); !IsSessionInit(err) {
		t.Errorf("empty model should fail session init, got %v", err)
	}
}
