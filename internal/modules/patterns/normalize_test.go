package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "direct debit marker stripped",
			input:    "DD ACME SERVICES LTD 000012345678",
			expected: "ACME SERVICES",
		},
		{
			name:     "standing order with date",
			input:    "STANDING ORDER 12/06/2025 CITY COUNCIL",
			expected: "CITY COUNCIL",
		},
		{
			name:     "card marker and reference run",
			input:    "CARD TESCO STORES 98765432",
			expected: "TESCO STORES",
		},
		{
			name:     "legal suffix and punctuation",
			input:    "Acme Widgets Ltd.",
			expected: "ACME WIDGETS",
		},
		{
			name:     "iso date token",
			input:    "TFR 2025-06-10 NORTHERN SUPPLIES PLC",
			expected: "NORTHERN SUPPLIES",
		},
		{
			name:     "month name date fragment",
			input:    "BACS SALARY 12 JAN ACME",
			expected: "SALARY ACME",
		},
		{
			name:     "short numbers kept",
			input:    "INV1042 PAYMENT",
			expected: "INV1042 PAYMENT",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   \t  ",
			expected: "",
		},
		{
			name:     "noise only normalizes to empty",
			input:    "DD 123456789 01/02/2025",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalize_Deterministic(t *testing.T) {
	input := "DD Acme Widgets Ltd 000012345678 12/06/2025"
	first := Normalize(input)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Normalize(input))
	}
}

func TestFirstSignificantToken(t *testing.T) {
	assert.Equal(t, "ACME", FirstSignificantToken("ACME WIDGETS"))
	assert.Equal(t, "WIDGETS", FirstSignificantToken("AW1 WIDGETS"))
	assert.Equal(t, "", FirstSignificantToken("AB CD EF"))
	assert.Equal(t, "", FirstSignificantToken(""))
}
