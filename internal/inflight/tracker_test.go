package inflight

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBeginCancelsPrevious(t *testing.T) {
	tr := NewTracker()

	first, doneFirst := tr.Begin(context.Background(), "client-1", "calculate")
	second, doneSecond := tr.Begin(context.Background(), "client-1", "calculate")

	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())
	assert.Equal(t, 1, tr.Len())

	// finishing the superseded one must not drop the live entry
	doneFirst()
	assert.Equal(t, 1, tr.Len())

	doneSecond()
	assert.Equal(t, 0, tr.Len())
	assert.ErrorIs(t, second.Err(), context.Canceled)
}

func TestBeginSeparatesKeys(t *testing.T) {
	tr := NewTracker()

	calc, done1 := tr.Begin(context.Background(), "client-1", "calculate")
	defer done1()
	stats, done2 := tr.Begin(context.Background(), "client-1", "stats")
	defer done2()
	other, done3 := tr.Begin(context.Background(), "client-2", "calculate")
	defer done3()

	assert.NoError(t, calc.Err())
	assert.NoError(t, stats.Err())
	assert.NoError(t, other.Err())
	assert.Equal(t, 3, tr.Len())
}

func TestBeginWithoutClient(t *testing.T) {
	tr := NewTracker()

	a, doneA := tr.Begin(context.Background(), "", "calculate")
	b, doneB := tr.Begin(context.Background(), "", "calculate")
	defer doneB()

	assert.NoError(t, a.Err())
	assert.NoError(t, b.Err())
	assert.Equal(t, 0, tr.Len())
	doneA()
	assert.Error(t, a.Err())
}

func TestBeginFollowsParent(t *testing.T) {
	tr := NewTracker()
	parent, cancel := context.WithCancel(context.Background())

	ctx, done := tr.Begin(parent, "c", "op")
	defer done()
	cancel()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
