package servo

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/hal"
	"dtc1200/internal/motordac"
	"dtc1200/internal/params"
	"dtc1200/internal/qei"
	"dtc1200/internal/tach"
)

type fakeSPI struct{}

func (f *fakeSPI) ConfigureBus(cfg hal.BusConfig) (any, error) { return cfg.Bus, nil }
func (f *fakeSPI) Transfer(bus any, tx, rx []byte) error       { return nil }

type fakeGPIO struct{ state map[hal.Pin]bool }

func newFakeGPIO() *fakeGPIO { return &fakeGPIO{state: map[hal.Pin]bool{}} }

func (g *fakeGPIO) ConfigureOutput(hal.Pin) error        { return nil }
func (g *fakeGPIO) ConfigureInputPullUp(hal.Pin) error   { return nil }
func (g *fakeGPIO) ConfigureInputPullDown(hal.Pin) error { return nil }
func (g *fakeGPIO) SetPin(pin hal.Pin, v bool) error      { g.state[pin] = v; return nil }
func (g *fakeGPIO) ReadPin(pin hal.Pin) (bool, error)     { return g.state[pin], nil }

type fakeQEI struct {
	velocity uint32
	dir      int8
}

func (f *fakeQEI) Velocity() (uint32, error) { return f.velocity, nil }
func (f *fakeQEI) Direction() (int8, error)   { return f.dir, nil }

func newTestState(t *testing.T) *State {
	hal.SetSPI(&fakeSPI{})
	hal.SetGPIO(newFakeGPIO())
	hal.SetQEI("supply-test", &fakeQEI{velocity: qei.EdgesPerRev / 10, dir: 1})
	hal.SetQEI("takeup-test", &fakeQEI{velocity: qei.EdgesPerRev / 10, dir: 1})

	dac, err := motordac.Open(hal.BusConfig{Bus: 0}, hal.ChipSelect{Pin: 1})
	if err != nil {
		t.Fatalf("open dac: %v", err)
	}

	p := params.DefaultParameters1Inch()
	s := New(p, qei.NewChannel("supply-test"), qei.NewChannel("takeup-test"), tach.New(1000000), dac)
	return s
}

func TestHaltWritesHaltLevels(t *testing.T) {
	c := quicktest.New(t)
	s := newTestState(t)
	s.DACHaltSupply = 100
	s.DACHaltTakeup = 200

	err := s.Tick(2047)
	c.Assert(err, quicktest.IsNil)
	c.Assert(s.DACSupply, quicktest.Equals, float32(100))
	c.Assert(s.DACTakeup, quicktest.Equals, float32(200))
}

func TestSetModeLatchesStopBrakeFromMotion(t *testing.T) {
	c := quicktest.New(t)
	s := newTestState(t)

	s.SetMode(ModeFwd)
	s.SetMode(ModeStop)
	c.Assert(s.StopBrakeState, quicktest.Equals, 1)
}

func TestSetModeNoBrakeFromHalt(t *testing.T) {
	c := quicktest.New(t)
	s := newTestState(t)

	s.SetMode(ModeStop)
	c.Assert(s.StopBrakeState, quicktest.Equals, 0)
}

func TestStopModeAppliesTensionWithoutDirection(t *testing.T) {
	c := quicktest.New(t)
	s := newTestState(t)
	hal.SetQEI("supply-idle", &fakeQEI{})
	hal.SetQEI("takeup-idle", &fakeQEI{})
	s.QEISupply = qei.NewChannel("supply-idle")
	s.QEITakeup = qei.NewChannel("takeup-idle")
	s.SetMode(ModeStop)

	err := s.Tick(2047)
	c.Assert(err, quicktest.IsNil)
	c.Assert(s.Direction, quicktest.Equals, DirNone)
	c.Assert(s.DACSupply > 0, quicktest.IsTrue)
	c.Assert(s.DACTakeup > 0, quicktest.IsTrue)
}

func TestPlayModeAppliesBaseTension(t *testing.T) {
	c := quicktest.New(t)
	s := newTestState(t)
	s.SetMode(ModePlay)

	err := s.Tick(2047)
	c.Assert(err, quicktest.IsNil)
	c.Assert(s.DACSupply, quicktest.Equals, float32(s.Params.PlayLoSupplyTension)+s.TSense+s.OffsetSupply)
}
