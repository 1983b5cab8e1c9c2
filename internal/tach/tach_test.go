package tach

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/sched"
)

func TestOnEdgeComputesFrequency(t *testing.T) {
	c := quicktest.New(t)
	sched.SetNow(0)

	tc := New(1000000)
	tc.prevCount = 1000000
	tc.haveEdge = true

	// one edge every 1000000/240 ticks, counting down a free-running counter
	period := uint32(1000000 / 240)
	tc.OnEdge(1000000 - period)

	c.Assert(tc.Alive(), quicktest.IsTrue)
	c.Assert(tc.RawHz(), quicktest.CmpEquals(), float32(1000000)/float32(period))
}

func TestWatchdogKillsStaleReading(t *testing.T) {
	c := quicktest.New(t)
	sched.SetNow(0)

	tc := New(1000000)
	tc.alive = true
	tc.rawHz = 42
	tc.averageHz = 42
	tc.lastEdge = 0

	sched.SetNow(WatchdogTicks + 1)
	result := tc.onWatchdog(&tc.watchdog)

	c.Assert(result, quicktest.Equals, sched.Reschedule)
	c.Assert(tc.Alive(), quicktest.IsFalse)
	c.Assert(tc.RawHz(), quicktest.Equals, float32(0))
}

func TestResetClearsState(t *testing.T) {
	c := quicktest.New(t)

	tc := New(1000000)
	tc.alive = true
	tc.rawHz = 10
	tc.averageHz = 10
	tc.samples[0] = 5
	tc.filled = 1

	tc.Reset()

	c.Assert(tc.Alive(), quicktest.IsFalse)
	c.Assert(tc.RawHz(), quicktest.Equals, float32(0))
	c.Assert(tc.AverageHz(), quicktest.Equals, float32(0))
	c.Assert(tc.samples[0], quicktest.Equals, uint32(0))
}
