package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsOptOut(t *testing.T) {
	tests := []struct {
		body string
		want bool
	}{
		{"Please UNSUBSCRIBE me", true},
		{"not interested, thanks", true},
		{"do not email me again", true},
		{"  STOP  ", true},
		{"stop", true},
		{"we run a one-stop shop for plumbing", false},
		{"please stop by our store sometime", false},
		{"what's the price?", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsOptOut(tt.body, nil), "body: %q", tt.body)
	}
}

func TestIsOptOutCustomKeywords(t *testing.T) {
	kw := []string{"abbestellen"}
	assert.True(t, IsOptOut("bitte abbestellen", kw))
	assert.False(t, IsOptOut("not interested", kw), "custom list replaces the default")
}
