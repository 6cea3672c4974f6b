package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagSet_Add(t *testing.T) {
	tests := []struct {
		name     string
		adds     []string
		expected TagSet
	}{
		{
			name:     "distinct tags",
			adds:     []string{"one", "two"},
			expected: TagSet{"one", "two"},
		},
		{
			name:     "exact duplicate ignored",
			adds:     []string{"one", "one"},
			expected: TagSet{"one"},
		},
		{
			name:     "case variant ignored, first casing wins",
			adds:     []string{"Tag One", "tag two", "Tag Two"},
			expected: TagSet{"Tag One", "tag two"},
		},
		{
			name:     "empty and whitespace ignored",
			adds:     []string{"", "   ", "real"},
			expected: TagSet{"real"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var set TagSet
			set.Add(tt.adds...)
			assert.Equal(t, tt.expected, set)
		})
	}
}

func TestTagSet_Contains(t *testing.T) {
	set := TagSet{"Production", "backend"}

	assert.True(t, set.Contains("production"))
	assert.True(t, set.Contains("BACKEND"))
	assert.False(t, set.Contains("frontend"))
}

func TestTagSet_AddReportsChange(t *testing.T) {
	var set TagSet
	assert.True(t, set.Add("one"))
	assert.False(t, set.Add("ONE"))
}
