package llm

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// ErrorType indicates which part of the completion setup caused an error.
type ErrorType string

const (
	ErrorTypeNone     ErrorType = ""
	ErrorTypeEndpoint ErrorType = "endpoint"
	ErrorTypeAuth     ErrorType = "auth"
	ErrorTypeModel    ErrorType = "model"
	ErrorTypeEmpty    ErrorType = "empty_response"
	ErrorTypeUnknown  ErrorType = "unknown"
)

// Error represents a structured completion error with classification.
type Error struct {
	Type       ErrorType // Classification of the error
	Message    string    // Human-readable message
	Retryable  bool      // Whether the operation can be retried
	Cause      error     // Underlying error
	StatusCode int       // HTTP status code if applicable
	Provider   string    // anthropic or openai, if known
	Model      string    // Model name if known
	Endpoint   string    // Endpoint URL if known; only the host is printed
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Type))
	if e.StatusCode > 0 {
		fmt.Fprintf(&b, " HTTP %d", e.StatusCode)
	}
	for _, kv := range [][2]string{
		{"provider", e.Provider},
		{"model", e.Model},
		{"endpoint", endpointHost(e.Endpoint)},
	} {
		if kv[1] != "" {
			fmt.Fprintf(&b, " %s=%s", kv[0], kv[1])
		}
	}
	b.WriteByte(' ')
	b.WriteString(e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// NewError creates a new structured completion error.
func NewError(errType ErrorType, message string, retryable bool, cause error) *Error {
	return &Error{
		Type:      errType,
		Message:   message,
		Retryable: retryable,
		Cause:     cause,
	}
}

// endpointHost reduces an endpoint URL to its host so paths and query
// parameters (which can carry keys) never reach logs.
func endpointHost(endpoint string) string {
	if endpoint == "" {
		return ""
	}
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host
}

var statusPattern = regexp.MustCompile(`\b[45]\d\d\b`)

// classRule maps provider error text onto a classification. A rule matches
// when the status code is one of statuses or the lowered text contains any of
// phrases.
type classRule struct {
	statuses  []int
	phrases   []string
	errType   ErrorType
	message   string
	retryable bool
}

// Order matters: the first matching rule wins.
var classRules = []classRule{
	{statuses: []int{401}, phrases: []string{"unauthorized", "invalid api key", "invalid x-api-key"},
		errType: ErrorTypeAuth, message: "authentication failed"},
	{phrases: []string{"model not found", "does not exist"},
		errType: ErrorTypeModel, message: "model not found"},
	{statuses: []int{404},
		errType: ErrorTypeEndpoint, message: "endpoint not found"},
	{phrases: []string{"connection refused", "no such host"},
		errType: ErrorTypeEndpoint, message: "connection failed", retryable: true},
	{phrases: []string{"timeout", "deadline exceeded", "context canceled"},
		errType: ErrorTypeEndpoint, message: "request timeout", retryable: true},
	{statuses: []int{429}, phrases: []string{"rate limit"},
		errType: ErrorTypeUnknown, message: "rate limited", retryable: true},
	{statuses: []int{529}, phrases: []string{"overloaded"},
		errType: ErrorTypeEndpoint, message: "provider overloaded", retryable: true},
	{statuses: []int{500, 502, 503, 504},
		errType: ErrorTypeEndpoint, message: "server error", retryable: true},
}

func (r classRule) matches(status int, lower string) bool {
	if status != 0 && slices.Contains(r.statuses, status) {
		return true
	}
	for _, p := range r.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// ClassifyError wraps err in an *Error describing what went wrong. An
// *Error already in the chain is returned as is.
func ClassifyError(err error) *Error {
	if err == nil {
		return nil
	}

	var existing *Error
	if errors.As(err, &existing) {
		return existing
	}

	text := err.Error()
	status := 0
	if m := statusPattern.FindString(text); m != "" {
		status, _ = strconv.Atoi(m)
	}

	lower := strings.ToLower(text)
	out := NewError(ErrorTypeUnknown, "llm error", false, err)
	out.StatusCode = status
	for _, rule := range classRules {
		if rule.matches(status, lower) {
			out.Type, out.Message, out.Retryable = rule.errType, rule.message, rule.retryable
			break
		}
	}
	return out
}

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Retryable
	}
	return false
}

// GetErrorType extracts the ErrorType from an error.
func GetErrorType(err error) ErrorType {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}
	return ErrorTypeUnknown
}
