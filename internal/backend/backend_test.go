package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumewell/passkey-backend/pkg/config"
)

func TestNew_Memory(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "memory"}}

	store, err := New(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.NoError(t, store.Ping(context.Background()))
	assert.NoError(t, store.Close())
}

func TestNew_UnknownType(t *testing.T) {
	cfg := &config.Config{Storage: config.StorageConfig{Type: "postgres"}}

	_, err := New(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage type")
}
