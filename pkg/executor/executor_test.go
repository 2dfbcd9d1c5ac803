package executor

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWidthCaps(t *testing.T) {
	assert.Equal(t, 1, Width(0))
	assert.Equal(t, 1, Width(-5))
	assert.Equal(t, 10, Width(10))
	assert.Equal(t, maxWorkers, Width(1000))
}

func TestRunExecutesAllTasks(t *testing.T) {
	var count atomic.Int64
	tasks := make([]Task, 20)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) error {
			count.Add(1)
			return nil
		}
	}

	progress := &Progress{Total: len(tasks)}
	err := Run(context.Background(), tasks, progress)
	assert.NoError(t, err)
	assert.EqualValues(t, 20, count.Load())
	assert.EqualValues(t, 20, progress.Completed())
}

func TestRunReturnsFirstError(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		func(ctx context.Context) error { return nil },
		func(ctx context.Context) error { return boom },
	}
	err := Run(context.Background(), tasks, nil)
	assert.ErrorIs(t, err, boom)
}
