package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		p := PageRequest{}
		assert.Equal(t, DefaultMaxResults, p.Limit())
		assert.Equal(t, 0, p.Offset())
	})

	t.Run("clamps", func(t *testing.T) {
		assert.Equal(t, MaxMaxResults, PageRequest{MaxResults: 5000}.Limit())
		assert.Equal(t, 7, PageRequest{MaxResults: 7}.Limit())
	})

	t.Run("token_round_trip", func(t *testing.T) {
		tok := EncodePageToken(40)
		assert.Equal(t, 40, PageRequest{PageToken: tok}.Offset())
	})

	t.Run("garbage_token", func(t *testing.T) {
		assert.Equal(t, 0, PageRequest{PageToken: "%%%"}.Offset())
	})
}

func TestNextPageToken(t *testing.T) {
	assert.Empty(t, NextPageToken(0, 10, 10))
	assert.Empty(t, NextPageToken(0, 10, 3))
	assert.Equal(t, EncodePageToken(10), NextPageToken(0, 10, 11))
}
