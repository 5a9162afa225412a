package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dispatchq/internal/api"
)

func TestRegisterBuiltinTasks(t *testing.T) {
	registry := api.NewRegistry()
	require.NoError(t, registerBuiltinTasks(registry))

	t.Run("echo returns its payload", func(t *testing.T) {
		fn, err := registry.Resolve("echo", json.RawMessage(`{"k":"v"}`))
		require.NoError(t, err)

		result, err := fn(context.Background())
		require.NoError(t, err)
		assert.JSONEq(t, `{"k":"v"}`, string(result.(json.RawMessage)))
	})

	t.Run("sleep validates payload", func(t *testing.T) {
		_, err := registry.Resolve("sleep", json.RawMessage(`{}`))
		assert.Error(t, err)

		_, err = registry.Resolve("sleep", json.RawMessage(`not json`))
		assert.Error(t, err)
	})

	t.Run("sleep honors cancellation", func(t *testing.T) {
		fn, err := registry.Resolve("sleep", json.RawMessage(`{"duration_ms":60000}`))
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		start := time.Now()
		_, err = fn(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), time.Second)
	})
}
