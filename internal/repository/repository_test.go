package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewExternalID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewExternalID()

		assert.Len(t, id, ExternalIDLength)
		for _, r := range id {
			assert.Contains(t, externalIDAlphabet, string(r))
		}
		assert.Equal(t, strings.ToLower(id), id)

		assert.False(t, seen[id], "external IDs must not repeat: %s", id)
		seen[id] = true
	}
}
