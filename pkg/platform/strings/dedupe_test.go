package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil passes through",
			input:    nil,
			expected: nil,
		},
		{
			name:     "trims and drops empties",
			input:    []string{"  kafka-1:9092 ", "", "   "},
			expected: []string{"kafka-1:9092"},
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"b", "a", "b", "a"},
			expected: []string{"b", "a"},
		},
		{
			name:     "duplicate after trimming",
			input:    []string{"a", " a"},
			expected: []string{"a"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
