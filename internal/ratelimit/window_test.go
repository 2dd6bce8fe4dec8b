package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedWindow_KeyBuckets(t *testing.T) {
	fw := NewFixedWindow(nil, 10, time.Minute)

	base := time.Date(2024, 3, 1, 12, 0, 5, 0, time.UTC)
	fw.now = func() time.Time { return base }
	first := fw.Key("10.0.0.1")

	fw.now = func() time.Time { return base.Add(50 * time.Second) }
	assert.Equal(t, first, fw.Key("10.0.0.1"), "same window")

	fw.now = func() time.Time { return base.Add(time.Minute) }
	assert.NotEqual(t, first, fw.Key("10.0.0.1"), "next window")

	assert.NotEqual(t, fw.Key("10.0.0.1"), fw.Key("10.0.0.2"))
	assert.Contains(t, first, "catalog:ratelimit:10.0.0.1:")
}

func TestFixedWindow_DisabledLimit(t *testing.T) {
	fw := NewFixedWindow(nil, 0, time.Minute)

	allowed, err := fw.Allow(context.Background(), "anyone")
	require.NoError(t, err)
	assert.True(t, allowed)
}
