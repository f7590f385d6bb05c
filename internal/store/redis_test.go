package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedis_EmptyAddrDisables(t *testing.T) {
	r := NewRedis("", "", 0)

	assert.Nil(t, r)
	assert.False(t, r.Enabled())
	assert.False(t, r.Healthy(context.Background()))
	assert.NoError(t, r.Close())
}

func TestRedis_UnreachableIsUnhealthy(t *testing.T) {
	r := NewRedis("127.0.0.1:1", "", 0)
	defer r.Close()

	assert.True(t, r.Enabled())
	assert.False(t, r.Healthy(context.Background()))
}
