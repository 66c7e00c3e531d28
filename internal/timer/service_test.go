package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// waitFor polls until cond holds, failing the test after a generous real-time
// deadline. Fake-clock ticks are consumed by the service goroutine, so tests
// must wait for the observable effect before advancing again.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestCountdownFiresExactlyOnce(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	id := uuid.New()

	var fired int32
	svc.Start(id, 5, func() { atomic.AddInt32(&fired, 1) })
	check.Equal(t, 5, svc.Value(id))
	clk.BlockUntil(1)

	for i := 1; i <= 4; i++ {
		want := 5 - i
		clk.Advance(time.Second)
		waitFor(t, func() bool { return svc.Value(id) == want })
	}

	clk.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
	check.Equal(t, 0, svc.Value(id))

	// No further ticks may re-fire the callback.
	clk.Advance(3 * time.Second)
	time.Sleep(10 * time.Millisecond)
	check.Equal(t, int32(1), atomic.LoadInt32(&fired))
}

func TestPauseResumePreservesRemaining(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	id := uuid.New()

	var fired int32
	svc.Start(id, 5, func() { atomic.AddInt32(&fired, 1) })
	clk.BlockUntil(1)

	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(id) == 4 })
	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(id) == 3 })

	svc.Pause(id)
	svc.Pause(id) // idempotent
	time.Sleep(5 * time.Millisecond)

	// Elapsed wall time does not touch a paused countdown.
	clk.Advance(10 * time.Second)
	time.Sleep(5 * time.Millisecond)
	check.Equal(t, 3, svc.Value(id))
	check.Equal(t, int32(0), atomic.LoadInt32(&fired))

	svc.Resume(id)
	svc.Resume(id) // resuming a running countdown must not double-fire
	clk.BlockUntil(1)

	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(id) == 2 })
	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(id) == 1 })
	clk.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt32(&fired) == 1 })
	check.Equal(t, 0, svc.Value(id))
}

func TestResetRewritesExistingOnly(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	id := uuid.New()

	// Reset never creates a countdown.
	svc.Reset(id, 30)
	check.Equal(t, 0, svc.Value(id))

	svc.Start(id, 5, nil)
	svc.Reset(id, 30)
	check.Equal(t, 30, svc.Value(id))

	svc.Stop(id)
	svc.Reset(id, 30)
	check.Equal(t, 0, svc.Value(id))
}

func TestStopIsIdempotentAndSuppressesCallback(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	id := uuid.New()

	var fired int32
	svc.Start(id, 2, func() { atomic.AddInt32(&fired, 1) })
	clk.BlockUntil(1)

	svc.Stop(id)
	svc.Stop(id)
	check.Equal(t, 0, svc.Value(id))

	clk.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	check.Equal(t, int32(0), atomic.LoadInt32(&fired))
}

func TestUnknownAuctionIsNoOp(t *testing.T) {
	svc := NewService(WithClock(clockwork.NewFakeClock()))
	id := uuid.New()

	svc.Stop(id)
	svc.Pause(id)
	svc.Resume(id)
	svc.Reset(id, 10)
	check.Equal(t, 0, svc.Value(id))
}

func TestStartReplacesExistingCountdown(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	id := uuid.New()

	var firstFired, secondFired int32
	svc.Start(id, 3, func() { atomic.AddInt32(&firstFired, 1) })
	clk.BlockUntil(1)

	svc.Start(id, 2, func() { atomic.AddInt32(&secondFired, 1) })
	assert.Equal(t, 2, svc.Value(id))
	time.Sleep(10 * time.Millisecond) // let the replaced goroutine unregister
	clk.BlockUntil(1)

	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(id) == 1 })
	clk.Advance(time.Second)
	waitFor(t, func() bool { return atomic.LoadInt32(&secondFired) == 1 })

	check.Equal(t, int32(0), atomic.LoadInt32(&firstFired))
}

func TestTimersAreIndependentPerAuction(t *testing.T) {
	clk := clockwork.NewFakeClock()
	svc := NewService(WithClock(clk))
	a, b := uuid.New(), uuid.New()

	svc.Start(a, 5, nil)
	svc.Start(b, 9, nil)
	clk.BlockUntil(2)

	svc.Pause(b)
	time.Sleep(5 * time.Millisecond)

	clk.Advance(time.Second)
	waitFor(t, func() bool { return svc.Value(a) == 4 })
	check.Equal(t, 9, svc.Value(b))
}

func TestImmediateCompletionForNonPositiveSeconds(t *testing.T) {
	svc := NewService(WithClock(clockwork.NewFakeClock()))
	id := uuid.New()

	var fired int32
	svc.Start(id, 0, func() { atomic.AddInt32(&fired, 1) })
	check.Equal(t, int32(1), atomic.LoadInt32(&fired))
	check.Equal(t, 0, svc.Value(id))
}
