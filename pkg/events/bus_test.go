package events

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan BuildCompletedEvent, 1)

	unsub := bus.Subscribe(func(e BuildCompletedEvent) {
		received <- e
	})
	defer unsub()

	bus.Publish(BuildCompletedEvent{Target: "main", Success: true})

	select {
	case got := <-received:
		assert.Equal(t, "main", got.Target)
		assert.True(t, got.Success)
	case <-time.After(time.Second):
		require.FailNow(t, "event not delivered")
	}
}

func TestBusDeliversInOrder(t *testing.T) {
	bus := New()
	received := make(chan StateChangedEvent, 3)
	defer bus.Subscribe(func(e StateChangedEvent) { received <- e })()

	bus.Publish(StateChangedEvent{From: "no_process", To: "running"})
	bus.Publish(StateChangedEvent{From: "running", To: "terminating"})
	bus.Publish(StateChangedEvent{From: "terminating", To: "running"})

	want := []string{"running", "terminating", "running"}
	for _, to := range want {
		select {
		case got := <-received:
			assert.Equal(t, to, got.To)
		case <-time.After(time.Second):
			require.FailNow(t, "event not delivered")
		}
	}
}

func TestBusUnsubscribe(t *testing.T) {
	bus := New()
	received := make(chan ProcessExitedEvent, 2)

	unsub := bus.Subscribe(func(e ProcessExitedEvent) { received <- e })
	bus.Publish(ProcessExitedEvent{PID: 1})
	<-received
	unsub()

	bus.Publish(ProcessExitedEvent{PID: 2})
	select {
	case <-received:
		assert.Fail(t, "received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNilBusPublishIsNoop(t *testing.T) {
	var bus *Bus
	assert.NotPanics(t, func() { bus.Publish(LaunchFailedEvent{Error: "x"}) })
}

func TestUnknownHandler(t *testing.T) {
	unsub := New().Subscribe(func(string) {})
	assert.NotPanics(t, unsub)
}

func TestBuildCompleted(t *testing.T) {
	ok := BuildCompleted("main", nil, time.Second, "done")
	assert.True(t, ok.Success)
	assert.Empty(t, ok.Error)

	failed := BuildCompleted("renderer", errors.New("exit status 1"), 0, "")
	assert.False(t, failed.Success)
	assert.Equal(t, "exit status 1", failed.Error)
}
