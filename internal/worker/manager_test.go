package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWorker struct {
	name     string
	startErr error
	started  bool
	stops    *[]string
}

func (f *fakeWorker) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeWorker) Stop() {
	*f.stops = append(*f.stops, f.name)
}

func (f *fakeWorker) Name() string { return f.name }

func TestStartAllStopsStartedWorkersOnFailure(t *testing.T) {
	var stops []string
	first := &fakeWorker{name: "first", stops: &stops}
	second := &fakeWorker{name: "second", startErr: errors.New("boom"), stops: &stops}
	third := &fakeWorker{name: "third", stops: &stops}

	m := NewManager(zap.NewNop())
	m.Register(first)
	m.Register(second)
	m.Register(third)

	err := m.StartAll(context.Background())
	require.Error(t, err)

	assert.True(t, first.started)
	assert.False(t, third.started, "workers after the failure must not start")
	assert.Equal(t, []string{"first"}, stops)
}

func TestStopAllRunsInReverseOrder(t *testing.T) {
	var stops []string
	m := NewManager(zap.NewNop())
	m.Register(&fakeWorker{name: "first", stops: &stops})
	m.Register(&fakeWorker{name: "second", stops: &stops})

	require.NoError(t, m.StartAll(context.Background()))
	m.StopAll()

	assert.Equal(t, []string{"second", "first"}, stops)
}
