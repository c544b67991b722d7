package policy

import "regexp"

var (
	emailPattern   = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	panPattern     = regexp.MustCompile(`(?i)\b[a-z]{5}[0-9]{4}[a-z]\b`)
	cardPattern    = regexp.MustCompile(`\b(?:\d[ -]*?){13,19}\b`)
	aadhaarPattern = regexp.MustCompile(`\b\d{4}[ -]?\d{4}[ -]?\d{4}\b`)
	phonePattern   = regexp.MustCompile(`\+?[0-9][0-9\-() ]{7,}[0-9]`)
)

type redaction struct {
	pattern *regexp.Regexp
	marker  string
}

// Order matters: longer digit runs are claimed before the phone pattern can.
var redactions = []redaction{
	{emailPattern, "[REDACTED_EMAIL]"},
	{panPattern, "[REDACTED_PAN]"},
	{cardPattern, "[REDACTED_CARD]"},
	{aadhaarPattern, "[REDACTED_AADHAAR]"},
	{phonePattern, "[REDACTED_PHONE]"},
}

// RedactPII masks identifiers a finance conversation tends to leak: emails,
// PAN and Aadhaar numbers, card numbers and phone numbers.
func RedactPII(input string) (redacted string, changed bool) {
	out := input
	for _, r := range redactions {
		next := r.pattern.ReplaceAllString(out, r.marker)
		changed = changed || next != out
		out = next
	}
	return out, changed
}
