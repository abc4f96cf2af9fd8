package validators

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	strictPolicy = bluemonday.StrictPolicy()
	ugcPolicy    = bluemonday.UGCPolicy()
)

// SanitizeString strips all markup from a single-line value such as a title,
// category or join message.
func SanitizeString(input string) string {
	return strings.TrimSpace(strictPolicy.Sanitize(input))
}

// SanitizeRichText keeps user-generated-content markup and drops anything
// executable. Used for study descriptions.
func SanitizeRichText(input string) string {
	return strings.TrimSpace(ugcPolicy.Sanitize(input))
}

// SanitizeOptional applies SanitizeString to a pointer, keeping nil as nil.
func SanitizeOptional(input *string) *string {
	if input == nil {
		return nil
	}
	out := SanitizeString(*input)
	return &out
}
