package reactor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReactorDispatchesPostedEventsInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []int

	r := New(func(e Event) {
		mu.Lock()
		got = append(got, e.(int))
		mu.Unlock()
	}, 16)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx)
		close(done)
	}()

	for i := 0; i < 5; i++ {
		require.True(t, r.Post(i))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 5
	}, time.Second, time.Millisecond)

	mu.Lock()
	require.Equal(t, []int{0, 1, 2, 3, 4}, got)
	mu.Unlock()

	cancel()
	<-done
}

func TestReactorFiresTimerAfterDelay(t *testing.T) {
	r := New(func(Event) {}, 4)
	fired := make(chan struct{})
	r.Schedule(10*time.Millisecond, func() { close(fired) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestReactorCancelSkipsTimer(t *testing.T) {
	r := New(func(Event) {}, 4)
	fired := false
	id := r.Schedule(5*time.Millisecond, func() { fired = true })
	r.Cancel(id)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()

	require.False(t, fired)
}

func TestReactorPeriodicTimerFiresMultipleTimes(t *testing.T) {
	r := New(func(Event) {}, 4)
	var mu sync.Mutex
	count := 0
	r.SchedulePeriodic(5*time.Millisecond, func() {
		mu.Lock()
		count++
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = r.Run(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count >= 3
	}, time.Second, time.Millisecond)
	cancel()
}

func TestReactorStopEndsRun(t *testing.T) {
	r := New(func(Event) {}, 4)
	done := make(chan struct{})
	go func() {
		_ = r.Run(context.Background())
		close(done)
	}()

	r.Stop()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not exit after Stop")
	}
}
