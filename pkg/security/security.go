package security

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/printshop/jobqueue/pkg/core"
)

// Limits enforced on values that end up in the jobs table.
const (
	// MaxQueueNameLength matches the queue_name column size.
	MaxQueueNameLength = 255

	// MaxActorIDLength matches the actor_id column size.
	MaxActorIDLength = 255

	// MaxAttempts is the hard limit for the configurable attempt ceiling.
	MaxAttempts = 100

	// MaxConcurrency is the hard limit for dispatcher slots.
	MaxConcurrency = 1000

	// MaxErrorMessageLength is the maximum length for stored error messages.
	MaxErrorMessageLength = 4096
)

// validQueueName matches alphanumeric, hyphens, underscores, and dots.
// Queue names double as handler identifiers, e.g. "OrderEmailJobHandler".
var validQueueName = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_\-\.]*$`)

// ValidateQueueName validates a queue name.
func ValidateQueueName(name string) error {
	if name == "" {
		return core.ErrInvalidQueueName
	}
	if len(name) > MaxQueueNameLength {
		return core.ErrQueueNameTooLong
	}
	if !validQueueName.MatchString(name) {
		return core.ErrInvalidQueueName
	}
	return nil
}

// ValidateActorID checks the opaque actor reference. The engine never
// interprets it; it only has to fit the column and be non-blank.
func ValidateActorID(id string) error {
	if strings.TrimSpace(id) == "" {
		return core.ErrInvalidActorID
	}
	if len(id) > MaxActorIDLength {
		return core.ErrActorIDTooLong
	}
	if !utf8.ValidString(id) {
		return core.ErrInvalidActorID
	}
	return nil
}

// SanitizeErrorMessage truncates and strips control characters from error
// messages before they are stored in last_error / failure_reason.
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampAttempts keeps the attempt ceiling within [1, MaxAttempts].
func ClampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxAttempts {
		return MaxAttempts
	}
	return n
}

// ClampConcurrency ensures concurrency is within limits.
func ClampConcurrency(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxConcurrency {
		return MaxConcurrency
	}
	return n
}
