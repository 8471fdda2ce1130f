package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("key", "value")

	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "value", got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCache_Expiry(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.SetWithTTL("key", "value", 10*time.Millisecond)

	_, ok := c.Get("key")
	assert.True(t, ok)

	time.Sleep(20 * time.Millisecond)

	_, ok = c.Get("key")
	assert.False(t, ok)
}

func TestCache_Delete(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("key", "value")
	c.Delete("key")

	_, ok := c.Get("key")
	assert.False(t, ok)
}

func TestCache_Overwrite(t *testing.T) {
	c := New(time.Minute)
	defer c.Close()

	c.Set("key", "old")
	c.Set("key", "new")

	got, ok := c.Get("key")
	assert.True(t, ok)
	assert.Equal(t, "new", got)
}
