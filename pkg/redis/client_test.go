package redis

import (
	"fmt"
	"testing"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	c := &Client{prefix: keyPrefix}
	assert.Equal(t, "catalog-suggest:title:7:great gatsby", c.Key("title", "7", "great gatsby"))
}

func TestIsNilError(t *testing.T) {
	assert.True(t, IsNilError(goredis.Nil))
	assert.True(t, IsNilError(fmt.Errorf("get: %w", goredis.Nil)))
	assert.False(t, IsNilError(ErrMiss))
}
