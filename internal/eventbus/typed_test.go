package eventbus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedBusPublishSubscribe(t *testing.T) {
	bus := NewTyped[string]()
	ch := bus.Subscribe()
	bus.Publish("hello")
	assert.Equal(t, "hello", <-ch)
	bus.Unsubscribe(ch)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestTypedBusClose(t *testing.T) {
	bus := NewTyped[int]()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	_, ok := <-ch1
	assert.False(t, ok, "expected ch1 closed")
	_, ok = <-ch2
	assert.False(t, ok, "expected ch2 closed")

	late := bus.Subscribe()
	_, ok = <-late
	assert.False(t, ok, "subscription after close must be closed")
}

func TestTypedBusUnsubscribeAfterClose(t *testing.T) {
	bus := NewTyped[float64]()
	ch := bus.Subscribe()
	bus.Close()
	assert.NotPanics(t, func() { bus.Unsubscribe(ch) })
}

func TestTypedBusDropsWhenFull(t *testing.T) {
	bus := NewTypedWithBuffer[int](1)
	ch := bus.Subscribe()
	bus.Publish(1)
	bus.Publish(2)
	assert.Equal(t, 1, <-ch)
	assert.Equal(t, uint64(1), bus.Dropped())
}

func TestForward(t *testing.T) {
	bus := NewTyped[int]()
	got := make(chan int, 4)
	run := Forward(bus, func(v int) { got <- v })
	assert.Equal(t, 1, bus.Subscribers())

	bus.Publish(7)
	done := make(chan struct{})
	go func() {
		run(context.Background())
		close(done)
	}()
	assert.Equal(t, 7, <-got)
	bus.Close()
	<-done
}

func TestForwardStopsOnCancel(t *testing.T) {
	bus := NewTyped[int]()
	ctx, cancel := context.WithCancel(context.Background())
	run := Forward(bus, func(int) {})
	done := make(chan struct{})
	go func() {
		run(ctx)
		close(done)
	}()
	cancel()
	<-done
	assert.Equal(t, 0, bus.Subscribers())
}

func TestForwardDrainsOnCancel(t *testing.T) {
	bus := NewTyped[int]()
	var got []int
	run := Forward(bus, func(v int) { got = append(got, v) })
	bus.Publish(1)
	bus.Publish(2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	run(ctx)
	assert.Equal(t, []int{1, 2}, got)
}
