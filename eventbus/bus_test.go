package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gifcompress/models"
)

func TestSubscribeAndPublishDeliversInOrder(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	bus.PublishJobStatus("job-1", models.JobStatusEvent{JobID: "job-1", Status: models.StatusProcessing, Progress: 10})
	bus.PublishJobStatus("job-1", models.JobStatusEvent{JobID: "job-1", Status: models.StatusProcessing, Progress: 50})

	first, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, 10, first.JobStatus.Progress)

	second, ok := sub.Next()
	require.True(t, ok)
	assert.Equal(t, 50, second.JobStatus.Progress)
}

func TestUnsubscribeClosesSubscriber(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	bus.Unsubscribe(sub)

	_, ok := sub.Next()
	assert.False(t, ok)
}

func TestFullQueueEvictsOldestNonTerminalEntry(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < subscriberQueueSize+1; i++ {
		bus.PublishJobStatus("job-1", models.JobStatusEvent{JobID: "job-1", Status: models.StatusProcessing, Progress: i})
	}

	first, ok := sub.Next()
	require.True(t, ok)
	// The oldest entry (progress 0) should have been evicted to make room
	// for the newest; the queue now starts at progress 1.
	assert.Equal(t, 1, first.JobStatus.Progress)
}

func TestTerminalEventNeverEvictedAndFullQueueOfTerminalsDropsIncomingNonTerminal(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	for i := 0; i < subscriberQueueSize; i++ {
		jobID := "job-terminal"
		bus.PublishJobStatus(jobID, models.JobStatusEvent{JobID: jobID, Status: models.StatusCompleted, Progress: 100})
	}

	// Queue is now full of terminal events; a non-terminal event must be
	// dropped rather than evicting any of them.
	bus.PublishJobStatus("job-late", models.JobStatusEvent{JobID: "job-late", Status: models.StatusProcessing, Progress: 5})

	for i := 0; i < subscriberQueueSize; i++ {
		event, ok := sub.Next()
		require.True(t, ok)
		assert.True(t, event.JobStatus.IsTerminal())
	}
}

func TestPublishFansOutToEverySubscriber(t *testing.T) {
	bus := New()
	subA := bus.Subscribe()
	subB := bus.Subscribe()
	defer bus.Unsubscribe(subA)
	defer bus.Unsubscribe(subB)

	assert.Equal(t, 2, bus.SubscriberCount())

	bus.PublishQueueStatus(models.QueueStatusEvent{Concurrency: 4, Active: 1, Pending: 2})

	eventA, ok := subA.Next()
	require.True(t, ok)
	eventB, ok := subB.Next()
	require.True(t, ok)

	assert.Equal(t, "QUEUE_UPDATE", eventA.Type)
	assert.Equal(t, eventA.QueueStatus, eventB.QueueStatus)
}

func TestNextBlocksUntilEventArrives(t *testing.T) {
	bus := New()
	sub := bus.Subscribe()
	defer bus.Unsubscribe(sub)

	done := make(chan Event, 1)
	go func() {
		event, _ := sub.Next()
		done <- event
	}()

	time.Sleep(20 * time.Millisecond)
	bus.PublishJobStatus("job-async", models.JobStatusEvent{JobID: "job-async", Status: models.StatusQueued})

	select {
	case event := <-done:
		assert.Equal(t, "job-async", event.JobID)
	case <-time.After(time.Second):
		t.Fatal("Next() never returned after publish")
	}
}
