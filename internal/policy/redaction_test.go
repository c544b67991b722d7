package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactPII(t *testing.T) {
	input := "Email me at sam@example.com or +91 98765 43210 and use 4242 4242 4242 4242."
	out, changed := RedactPII(input)
	assert.True(t, changed)
	for _, marker := range []string{"[REDACTED_EMAIL]", "[REDACTED_PHONE]", "[REDACTED_CARD]"} {
		assert.Contains(t, out, marker)
	}
	assert.NotContains(t, out, "4242")
}

func TestRedactPIIIndianIdentifiers(t *testing.T) {
	out, changed := RedactPII("my pan is ABCDE1234F and aadhaar 1234 5678 9012")
	assert.True(t, changed)
	assert.Contains(t, out, "[REDACTED_PAN]")
	assert.Contains(t, out, "[REDACTED_AADHAAR]")
}

func TestRedactPIILeavesPlainTextAlone(t *testing.T) {
	out, changed := RedactPII("How do I create a budget for 45000 a month?")
	assert.False(t, changed)
	assert.Equal(t, "How do I create a budget for 45000 a month?", out)
}
