package activity

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTarget struct {
	active atomic.Bool
	busy   atomic.Bool
}

func (f *fakeTarget) Busy() bool   { return f.busy.Load() }
func (f *fakeTarget) Active() bool { return f.active.Load() }

func TestMonitorFiresWhenIdle(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)

	fired := make(chan struct{}, 1)
	m := NewMonitor(target, func() {
		target.active.Store(false)
		fired <- struct{}{}
	}, WithTimeout(20*time.Millisecond))
	m.Start()
	defer m.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("idle callback did not fire")
	}
}

func TestMonitorFiresWhileBusy(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)
	target.busy.Store(true)

	var calls atomic.Int32
	m := NewMonitor(target, func() {
		calls.Add(1)
		target.active.Store(false)
	}, WithTimeout(10*time.Millisecond))
	m.Start()

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

func TestMonitorIgnoresInactiveTarget(t *testing.T) {
	target := &fakeTarget{}

	var calls atomic.Int32
	m := NewMonitor(target, func() { calls.Add(1) }, WithTimeout(5*time.Millisecond))
	m.Start()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, int32(0), calls.Load())

	// The monitor keeps watching and fires once a session becomes active.
	target.active.Store(true)
	assert.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	m.Stop()
}

func TestTouchPostponesIdle(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)

	var calls atomic.Int32
	m := NewMonitor(target, func() { calls.Add(1) }, WithTimeout(60*time.Millisecond))
	m.Start()
	defer m.Stop()

	for i := 0; i < 5; i++ {
		time.Sleep(20 * time.Millisecond)
		m.Touch()
	}
	assert.Equal(t, int32(0), calls.Load())
	assert.Greater(t, m.Remaining(), time.Duration(0))
}

func TestStopIsIdempotent(t *testing.T) {
	m := NewMonitor(&fakeTarget{}, nil)
	m.Stop()
	m.Start()
	m.Start()
	m.Stop()
	m.Stop()
	m.Touch()
	assert.Equal(t, time.Duration(0), m.Remaining())
	assert.Equal(t, DefaultTimeout, m.Timeout())
}

func TestStopWaitsForCallback(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)

	entered := make(chan struct{})
	var once sync.Once
	var finished atomic.Bool
	m := NewMonitor(target, func() {
		once.Do(func() { close(entered) })
		time.Sleep(30 * time.Millisecond)
		finished.Store(true)
	}, WithTimeout(5*time.Millisecond))
	m.Start()

	<-entered
	m.Stop()
	assert.True(t, finished.Load())
}

func TestTouchDuringCallbackLeavesOneTimer(t *testing.T) {
	target := &fakeTarget{}
	target.active.Store(true)

	const timeout = 100 * time.Millisecond

	var mu sync.Mutex
	var fires []time.Time
	var m *Monitor
	m = NewMonitor(target, func() {
		mu.Lock()
		fires = append(fires, time.Now())
		first := len(fires) == 1
		mu.Unlock()
		if first {
			m.Touch()
		}
	}, WithTimeout(timeout))
	m.Start()
	defer m.Stop()

	time.Sleep(150 * time.Millisecond)
	lastTouch := time.Now()
	m.Touch()
	time.Sleep(60 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, fires)
	for _, at := range fires[1:] {
		assert.GreaterOrEqual(t, at.Sub(lastTouch), timeout, "idle callback fired before the idle window elapsed")
	}
	assert.Len(t, fires, 1)
}
