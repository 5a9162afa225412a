package task

import (
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}

func newHeapTask(id string, priority Priority) *Task {
	return &Task{
		id:        id,
		priority:  priority,
		state:     StatePending,
		heapIndex: -1,
		done:      make(chan struct{}),
	}
}

func TestReadyQueueOrdering(t *testing.T) {
	var q readyQueue

	q.push(newHeapTask("low", PriorityLow), 1)
	q.push(newHeapTask("critical", PriorityCritical), 2)
	q.push(newHeapTask("background", PriorityBackground), 3)
	q.push(newHeapTask("normal", PriorityNormal), 4)
	q.push(newHeapTask("high", PriorityHigh), 5)

	var got []string
	for {
		next := q.pop()
		if next == nil {
			break
		}
		got = append(got, next.id)
	}

	assert.Equal(t, []string{"critical", "high", "normal", "low", "background"}, got)
}

func TestReadyQueueTieBreaksBySubmissionOrder(t *testing.T) {
	var q readyQueue

	q.push(newHeapTask("first", PriorityNormal), 10)
	q.push(newHeapTask("second", PriorityNormal), 11)
	q.push(newHeapTask("third", PriorityNormal), 12)

	require.Equal(t, "first", q.pop().id)
	require.Equal(t, "second", q.pop().id)
	require.Equal(t, "third", q.pop().id)
}

func TestReadyQueueRemove(t *testing.T) {
	var q readyQueue

	keep := newHeapTask("keep", PriorityNormal)
	drop := newHeapTask("drop", PriorityCritical)
	q.push(keep, 1)
	q.push(drop, 2)

	q.remove(drop)
	assert.Equal(t, -1, drop.heapIndex)
	assert.Equal(t, 1, q.Len())

	// Removing a detached task is a no-op.
	q.remove(drop)
	assert.Equal(t, 1, q.Len())

	require.Equal(t, "keep", q.pop().id)
	assert.Nil(t, q.pop())
}
