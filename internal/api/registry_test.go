package api

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/dispatchq/internal/task"
)

func echoFactory(payload json.RawMessage) (task.Func, error) {
	return func(ctx context.Context) (any, error) {
		return string(payload), nil
	}, nil
}

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoFactory))

	fn, err := r.Resolve("echo", json.RawMessage(`"hi"`))
	require.NoError(t, err)

	result, err := fn(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `"hi"`, result)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("echo", echoFactory))
	assert.Error(t, r.Register("echo", echoFactory))
}

func TestRegistryRejectsInvalidRegistrations(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register("", echoFactory))
	assert.Error(t, r.Register("broken", nil))
}

func TestRegistryUnknownType(t *testing.T) {
	r := NewRegistry()
	_, err := r.Resolve("nope", nil)
	assert.Error(t, err)
}
