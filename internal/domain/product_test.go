package domain

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 1000 {
		id := NewID()
		require.Regexp(t, hexID, id)
		_, dup := seen[id]
		require.False(t, dup, "generated IDs should not collide")
		seen[id] = struct{}{}
	}
}

func TestNewProduct(t *testing.T) {
	testCases := []struct {
		name       string
		id         string
		expectedID string
	}{
		{name: "explicit id is kept", id: "abc123", expectedID: "abc123"},
		{name: "empty id is generated", id: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			p := NewProduct("p1", tc.id, "Widget", 9.99, 3, true)

			// then
			assert.Equal(t, "p1", p.PartitionKey)
			assert.Equal(t, "Widget", p.Name)
			assert.Equal(t, 9.99, p.Price)
			assert.Equal(t, int32(3), p.Qty)
			assert.True(t, p.IsBlocked)
			if tc.expectedID != "" {
				assert.Equal(t, tc.expectedID, p.ID)
			} else {
				assert.Regexp(t, hexID, p.ID)
			}
		})
	}
}

func TestNewProduct_DefaultsNeverCollide(t *testing.T) {
	a := NewProduct("p1", "", "A", 0, 0, false)
	b := NewProduct("p1", "", "A", 0, 0, false)
	assert.NotEqual(t, a.ID, b.ID)
}
