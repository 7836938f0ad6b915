package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind places an upstream failure in the recovery taxonomy.
type Kind string

const (
	// KindAuth — invalid or missing credentials. Fatal until they change.
	KindAuth Kind = "auth"
	// KindSessionInit — session construction failed (bad model/config).
	// Fatal for the current operation; consumes no retry budget.
	KindSessionInit Kind = "session_init"
	// KindQuota — transient upstream rate limiting. Recoverable.
	KindQuota Kind = "quota"
	// KindAPI — any other upstream failure. Not recoverable.
	KindAPI Kind = "api"
	// KindUnexpected — catch-all, handled like KindAPI.
	KindUnexpected Kind = "unexpected"
)

// Error is the typed error for the upstream boundary.
type Error struct {
	Kind     Kind
	Provider string
	Status   int // HTTP status when known, 0 otherwise
	Message  string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (%d): %s", e.Provider, e.Kind, e.Status, msg)
	}
	if e.Provider == "" {
		return fmt.Sprintf("%s: %s", e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the taxonomy kind for err, KindUnexpected when untyped.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnexpected
}

// IsQuota reports whether err is upstream rate limiting.
func IsQuota(err error) bool { return KindOf(err) == KindQuota }

// IsAuth reports whether err is a credential failure.
func IsAuth(err error) bool { return KindOf(err) == KindAuth }

// IsSessionInit reports whether err is a session construction failure.
func IsSessionInit(err error) bool { return KindOf(err) == KindSessionInit }

// classifyStatus maps an HTTP status onto the taxonomy.
func classifyStatus(provider string, code int, message string, err error) *Error {
	kind := KindAPI
	switch {
	case code == http.StatusTooManyRequests:
		kind = KindQuota
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		kind = KindAuth
	}
	return &Error{Kind: kind, Provider: provider, Status: code, Message: message, Err: err}
}

// Classify converts an opaque provider error into a typed *Error. Already
// typed errors pass through. gRPC status codes are honored, then the message
// is pattern-matched the way SDKs tend to spell rate limiting and auth
// failures; anything unrecognized becomes KindAPI.
func Classify(provider string, err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.ResourceExhausted:
			return &Error{Kind: KindQuota, Provider: provider, Message: st.Message(), Err: err}
		case codes.Unauthenticated, codes.PermissionDenied:
			return &Error{Kind: KindAuth, Provider: provider, Message: st.Message(), Err: err}
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "resource exhausted"),
		strings.Contains(msg, "resource_exhausted"):
		return &Error{Kind: KindQuota, Provider: provider, Err: err}
	case strings.Contains(msg, "401"),
		strings.Contains(msg, "unauthorized"),
		strings.Contains(msg, "unauthenticated"),
		strings.Contains(msg, "api key"),
		strings.Contains(msg, "permission denied"):
		return &Error{Kind: KindAuth, Provider: provider, Err: err}
	}
	return &Error{Kind: KindAPI, Provider: provider, Err: err}
}
