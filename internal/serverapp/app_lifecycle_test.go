package serverapp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"joinwise/internal/logging"
)

func TestNewRequiresConfigAndLogger(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})

	_, err := New(nil, logger)
	assert.Error(t, err)

	_, err = New(testConfig(), nil)
	assert.Error(t, err)

	app, err := New(testConfig(), logger)
	require.NoError(t, err)
	assert.NotNil(t, app)
}

func TestStartBeforeInitFails(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	app, err := New(testConfig(), logger)
	require.NoError(t, err)

	_, err = app.Start()
	assert.Error(t, err)
}

func TestShutdownIsIdempotent(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	app, err := New(testConfig(), logger)
	require.NoError(t, err)

	require.NoError(t, app.Shutdown(context.Background()))
	require.NoError(t, app.Shutdown(context.Background()))
}

func TestCleanupStackRunsInReverseOrder(t *testing.T) {
	var order []string
	stack := cleanupStack{}
	stack.push("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	stack.push("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})
	stack.push("third", func(context.Context) error {
		order = append(order, "third")
		return nil
	})

	stack.run(context.Background(), nil)
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestWaitForStopReturnsOnServerError(t *testing.T) {
	logger := logging.NewLogger(logging.Config{Level: "error", Format: "text"})
	app, err := New(testConfig(), logger)
	require.NoError(t, err)

	serverErrors := make(chan error, 1)
	serverErrors <- assert.AnError

	reason, waitErr := app.WaitForStop(nil, serverErrors)
	assert.Equal(t, "server_error", reason)
	assert.Error(t, waitErr)
}
