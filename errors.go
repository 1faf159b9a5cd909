package mstranslator

import (
	"fmt"
	"strings"
)

// Exception tags the service embeds in string-typed JSON payloads. The
// values must match the service's wire format exactly.
const (
	argumentOutOfRangePrefix = "ArgumentOutOfRangeException"
	translateAPIPrefix       = "TranslateApiException"
)

// AccessError is returned when the token endpoint rejects a token request.
type AccessError struct {
	StatusCode int
	Message    string
}

func (e *AccessError) Error() string {
	return fmt.Sprintf("token request failed (HTTP %d): %s", e.StatusCode, e.Message)
}

// ArgumentOutOfRangeError is an ArgumentOutOfRangeException reported by the
// translation service, with the exception tag stripped from the message.
type ArgumentOutOfRangeError struct {
	Message string
}

func (e *ArgumentOutOfRangeError) Error() string {
	return e.Message
}

// TranslateAPIError is a TranslateApiException reported by the translation
// service, with the exception tag stripped from the message.
type TranslateAPIError struct {
	Message string
}

func (e *TranslateAPIError) Error() string {
	return e.Message
}

func stripExceptionTag(payload, prefix string) string {
	return strings.TrimPrefix(strings.TrimPrefix(payload, prefix), ": ")
}
