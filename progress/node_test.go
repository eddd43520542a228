package progress

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNode_LinearSteps(t *testing.T) {
	var events []Event
	root := NewRoot(NewTracker(func(e Event) { events = append(events, e) }))
	root.SetNumberSteps(4)

	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.NoError(t, root.Done(ctx))
	}

	require.NotEmpty(t, events)
	assert.Equal(t, 100, events[len(events)-1].Percent)
	assert.Equal(t, 25, events[0].Percent)
}

func TestNode_WeightedSteps(t *testing.T) {
	var last int
	root := NewRoot(NewTracker(func(e Event) { last = e.Percent }))
	root.SetSteps([]int{10, 60, 30})

	ctx := context.Background()
	require.NoError(t, root.Done(ctx))
	assert.Equal(t, 10, last)
	require.NoError(t, root.Done(ctx))
	assert.Equal(t, 70, last)
	require.NoError(t, root.Done(ctx))
	assert.Equal(t, 100, last)
}

func TestNode_SetSteps_BadWeightsPanics(t *testing.T) {
	root := NewRoot(Nop)
	assert.Panics(t, func() {
		root.SetSteps([]int{10, 10})
	})
}

func TestNode_DoneBeyondStepsPanics(t *testing.T) {
	root := NewRoot(Nop)
	root.SetNumberSteps(1)
	ctx := context.Background()
	require.NoError(t, root.Done(ctx))
	assert.Panics(t, func() {
		_ = root.Done(ctx)
	})
}

func TestNode_ChildMapsIntoParentSlice(t *testing.T) {
	var last int
	root := NewRoot(NewTracker(func(e Event) { last = e.Percent }))
	root.SetNumberSteps(2) // step 0: [0,50), step 1: [50,100)

	child := root.NewChild()
	child.SetNumberSteps(2)

	ctx := context.Background()
	require.NoError(t, child.Done(ctx))
	assert.Equal(t, 25, last) // 50% of [0,50) == 25

	require.NoError(t, child.Done(ctx))
	assert.Equal(t, 50, last) // child done -> top of the root's step-0 slice; the root stays at step 0 until its own Done
}

func TestNode_CancelledContext(t *testing.T) {
	root := NewRoot(Nop)
	root.SetNumberSteps(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := root.Done(ctx)
	require.Error(t, err)
}

func TestNode_ReleaseBeforeFullStillDetaches(t *testing.T) {
	root := NewRoot(Nop)
	root.SetNumberSteps(4)
	child := root.NewChild()

	reachedFull := child.Release()
	assert.False(t, reachedFull)
}

func TestSpeedWindow_ZeroUntilTwoSamples(t *testing.T) {
	root := NewRoot(Nop)
	assert.Equal(t, float64(0), root.SpeedBytesPerSec())
	root.ReportBytes(1024)
	assert.Equal(t, float64(0), root.SpeedBytesPerSec())
}
