package qei

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/hal"
)

type fakeChannel struct {
	velocity uint32
	dir      int8
}

func (f *fakeChannel) Velocity() (uint32, error) { return f.velocity, nil }
func (f *fakeChannel) Direction() (int8, error)   { return f.dir, nil }

func TestRPMForwardDirection(t *testing.T) {
	c := quicktest.New(t)
	fake := &fakeChannel{velocity: EdgesPerRev, dir: 1} // 1 rev in 10ms -> 6000 RPM
	hal.SetQEI("supply", fake)

	ch := NewChannel("supply")
	rpm, err := ch.RPM()
	c.Assert(err, quicktest.IsNil)
	c.Assert(rpm, quicktest.CmpEquals(), float32(6000))
}

func TestRPMReverseDirectionIsNegative(t *testing.T) {
	c := quicktest.New(t)
	fake := &fakeChannel{velocity: EdgesPerRev, dir: -1}
	hal.SetQEI("takeup", fake)

	ch := NewChannel("takeup")
	rpm, err := ch.RPM()
	c.Assert(err, quicktest.IsNil)
	c.Assert(rpm, quicktest.CmpEquals(), float32(-6000))
}

func TestPhaseErrorCounting(t *testing.T) {
	c := quicktest.New(t)
	hal.SetQEI("supply", &fakeChannel{})

	ch := NewChannel("supply")
	ch.OnPhaseError()
	ch.OnPhaseError()
	c.Assert(ch.ErrorCount(), quicktest.Equals, uint32(2))

	ch.Reset()
	c.Assert(ch.ErrorCount(), quicktest.Equals, uint32(0))
}
