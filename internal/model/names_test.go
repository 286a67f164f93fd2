package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalApplicationName(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		domain string
		want   string
	}{
		{"short label", "ivr", "voximplant.com", "ivr.acme.voximplant.com"},
		{"already qualified", "ivr.acme.voximplant.com", "voximplant.com", "ivr.acme.voximplant.com"},
		{"any dot counts", "ivr.other", "voximplant.com", "ivr.other"},
		{"default domain", "ivr", "", "ivr.acme.voximplant.com"},
		{"custom domain", "ivr", "example.net", "ivr.acme.example.net"},
		{"empty", "", "voximplant.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalApplicationName(tt.in, "acme", tt.domain))
		})
	}
}

func TestShortApplicationName(t *testing.T) {
	assert.Equal(t, "ivr", ShortApplicationName("ivr.acme.voximplant.com"))
	assert.Equal(t, "ivr", ShortApplicationName("ivr"))
}

func TestFoldName(t *testing.T) {
	assert.Equal(t, FoldName("greet"), FoldName("Greet"))
	assert.Equal(t, FoldName("GREET"), FoldName("greet"))
	assert.NotEqual(t, FoldName("greet"), FoldName("greeting"))

	// Composed and decomposed forms of "café" fold to the same identity.
	assert.Equal(t, FoldName("cafe\u0301"), FoldName("CAF\u00c9"))
}

func TestContentHash(t *testing.T) {
	// SHA-256 of the empty input.
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ContentHash(nil))
	assert.Equal(t, ContentHash([]byte("a")), ContentHash([]byte("a")))
	assert.NotEqual(t, ContentHash([]byte("a")), ContentHash([]byte("b")))
	assert.Len(t, ContentHash([]byte("script")), 64)
}

func TestRemoteRuleScenarioIDs(t *testing.T) {
	r := RemoteRule{Scenarios: []ScenarioRef{{Name: "b", ID: 2}, {Name: "a", ID: 1}}}
	assert.Equal(t, []int64{2, 1}, r.ScenarioIDs())
}
