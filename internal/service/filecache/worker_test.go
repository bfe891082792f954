package filecache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorker_RunOnce(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "T1", "/a.pdf")
	env.register(t, "T1", "/b.pdf")
	env.register(t, "T2", "/c.pdf")

	w, err := NewWorker(env.manager, "*/5 * * * *", 2, discardLogger())
	require.NoError(t, err)

	result, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded+result.Failed, "batch size bounds a pass")

	result, err = w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Succeeded+result.Failed)
}

func TestWorker_StartStop(t *testing.T) {
	env := newTestEnv(t)

	w, err := NewWorker(env.manager, "*/5 * * * *", 10, discardLogger())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	assert.NoError(t, w.Stop())
}

func TestWorker_InvalidSchedule(t *testing.T) {
	env := newTestEnv(t)

	w, err := NewWorker(env.manager, "not a schedule", 10, discardLogger())
	require.NoError(t, err)
	assert.Error(t, w.Start(context.Background()))
	_ = w.Stop()
}
