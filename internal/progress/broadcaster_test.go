package progress

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_DeliversOnlyToMatchingRun(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	runA := uuid.NewString()
	runB := uuid.NewString()

	chA, cancelA := b.Subscribe(runA)
	chB, cancelB := b.Subscribe(runB)
	defer cancelA()
	defer cancelB()

	b.Publish(NewEvent(runA, 3, 10, "Optimizing frontier point 3 of 10"))

	ev := <-chA
	assert.Equal(t, runA, ev.RunID)
	assert.Equal(t, 3, ev.CurrentStep)
	assert.Equal(t, 10, ev.TotalSteps)
	assert.InDelta(t, 30.0, ev.Percentage, 1e-9)

	select {
	case ev := <-chB:
		t.Fatalf("run %s received event for run %s", runB, ev.RunID)
	default:
	}
}

func TestBroadcaster_PublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	b.Publish(NewEvent(uuid.NewString(), 1, 2, "halfway"))
}

func TestBroadcaster_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	runID := uuid.NewString()

	ch, cancel := b.Subscribe(runID)
	defer cancel()

	// Overflow the buffer; Publish must return every time.
	for i := 0; i < subscriberBuffer*2; i++ {
		b.Publish(NewEvent(runID, i, subscriberBuffer*2, "step"))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestBroadcaster_CancelIsIdempotentAndPrunes(t *testing.T) {
	b := NewBroadcaster(zerolog.Nop())
	runID := uuid.NewString()

	ch, cancel := b.Subscribe(runID)
	require.Equal(t, 1, b.SubscriberCount(runID))

	cancel()
	cancel()
	assert.Equal(t, 0, b.SubscriberCount(runID))

	_, open := <-ch
	assert.False(t, open)

	b.Publish(NewEvent(runID, 1, 1, "done"))
}

func TestNewEvent_ZeroTotalSteps(t *testing.T) {
	ev := NewEvent("run", 1, 0, "starting")
	assert.Equal(t, 0.0, ev.Percentage)
}
