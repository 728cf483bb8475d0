package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kc-steward.io/steward/internal/api/handlers"
)

type recordingModule struct {
	name  string
	err   error
	order *[]string
}

func (m recordingModule) Name() string                              { return m.name }
func (m recordingModule) ContributeServerDeps(*handlers.ServerDeps) {}
func (m recordingModule) Shutdown(context.Context) error {
	*m.order = append(*m.order, m.name)
	return m.err
}

func TestShutdownAll_ReverseOrderAndJoinedErrors(t *testing.T) {
	var order []string
	boom := errors.New("boom")
	mods := []Module{
		recordingModule{name: "directory", order: &order},
		nil,
		recordingModule{name: "reconcile", err: boom, order: &order},
	}

	err := ShutdownAll(context.Background(), mods)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "module reconcile")
	assert.Equal(t, []string{"reconcile", "directory"}, order)
}

func TestShutdownAll_Empty(t *testing.T) {
	assert.NoError(t, ShutdownAll(context.Background(), nil))
}
