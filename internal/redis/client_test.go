package redisclient

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_AppliesConfiguredOptions(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), ClientOptions{
		Addr:      mr.Addr(),
		OpTimeout: time.Second,
		PoolSize:  4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, time.Second, client.Options().ReadTimeout)
	assert.Equal(t, time.Second, client.Options().WriteTimeout)
	assert.Equal(t, 4, client.Options().PoolSize)
}

func TestNewClient_DefaultsWhenUnset(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), ClientOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 2*time.Second, client.Options().ReadTimeout)
	assert.Equal(t, 10, client.Options().PoolSize)
}

func TestNewClient_FailsWhenUnreachable(t *testing.T) {
	_, err := NewClient(context.Background(), ClientOptions{Addr: "127.0.0.1:1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping redis")
}
