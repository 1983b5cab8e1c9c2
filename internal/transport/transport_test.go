package transport

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/expander"
	"dtc1200/internal/hal"
	"dtc1200/internal/params"
	"dtc1200/internal/servo"
)

type fakeSPI struct{}

func (f *fakeSPI) ConfigureBus(cfg hal.BusConfig) (any, error) { return cfg.Bus, nil }
func (f *fakeSPI) Transfer(bus any, tx, rx []byte) error {
	if rx != nil {
		rx[0] = 0
	}
	return nil
}

type fakeGPIO struct{ state map[hal.Pin]bool }

func newFakeGPIO() *fakeGPIO { return &fakeGPIO{state: map[hal.Pin]bool{}} }

func (g *fakeGPIO) ConfigureOutput(hal.Pin) error        { return nil }
func (g *fakeGPIO) ConfigureInputPullUp(hal.Pin) error   { return nil }
func (g *fakeGPIO) ConfigureInputPullDown(hal.Pin) error { return nil }
func (g *fakeGPIO) SetPin(pin hal.Pin, v bool) error     { g.state[pin] = v; return nil }
func (g *fakeGPIO) ReadPin(pin hal.Pin) (bool, error)    { return g.state[pin], nil }

func newTestController(t *testing.T) *Controller {
	t.Helper()
	hal.SetSPI(&fakeSPI{})
	hal.SetGPIO(newFakeGPIO())

	banks, err := expander.Init(
		hal.BusConfig{Bus: 1}, hal.BusConfig{Bus: 2},
		hal.ChipSelect{Pin: 1}, hal.ChipSelect{Pin: 2},
	)
	if err != nil {
		t.Fatal(err)
	}

	st := servo.New(params.DefaultParameters1Inch(), nil, nil, nil, nil)
	var sleeps []int32
	c := New(banks, st, func(ms int32) { sleeps = append(sleeps, ms) })
	return c
}

func TestFirstButtonReadingWithTapeInEntersStop(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.HandleButtons(0)
	c.Assert(ctl.Servo.Mode, quicktest.Equals, servo.ModeStop)
	c.Assert(ctl.modePending, quicktest.IsTrue)

	ctl.Poll()
	c.Assert(ctl.lastModeCompleted, quicktest.Equals, servo.ModeStop)
}

func TestTapeOutForcesHalt(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.HandleButtons(0) // settle into stop first
	ctl.HandleButtons(expander.SwitchTapeOut)

	c.Assert(ctl.Servo.Mode, quicktest.Equals, servo.ModeHalt)
	c.Assert(ctl.Banks.GetTransportOut(), quicktest.Equals, uint8(0)) // brake engaged, everything else off
}

func TestStopCompletesOncePollSeesNoMotion(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.HandleButtons(0)
	c.Assert(ctl.modePending, quicktest.IsTrue)

	ctl.Poll()
	c.Assert(ctl.modePending, quicktest.IsFalse)
	c.Assert(ctl.lastModeCompleted, quicktest.Equals, servo.ModeStop)
	c.Assert(ctl.LampMask()&expander.LampStop, quicktest.Equals, uint8(expander.LampStop))
}

func TestPendingStopTimesOutAfter2400Polls(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.modePending = true
	ctl.pendingMode = servo.ModeStop
	ctl.Servo.Motion = true // never completes on its own

	for i := 0; i < pendingStopTimeoutTicks; i++ {
		ctl.Poll()
	}

	c.Assert(ctl.modePending, quicktest.IsFalse)
	c.Assert(ctl.LampMask()&expander.LampStat3, quicktest.Equals, uint8(expander.LampStat3))
}

func TestToggleLifterOnlyValidInHaltStopOrPlay(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.Servo.SetMode(servo.ModeRew)
	ctl.ToggleLifter()
	c.Assert(ctl.Banks.GetTransportOut()&expander.OutTapeLifter, quicktest.Equals, uint8(0))

	ctl.Servo.SetMode(servo.ModeHalt)
	ctl.ToggleLifter()
	c.Assert(ctl.Banks.GetTransportOut()&expander.OutTapeLifter, quicktest.Equals, uint8(expander.OutTapeLifter))
}

func TestStrobeRecordOnlyValidInPlay(t *testing.T) {
	c := quicktest.New(t)
	ctl := newTestController(t)

	ctl.StrobeRecord(RecordPunchIn)
	c.Assert(ctl.Banks.GetTransportOut()&expander.OutRecordHold, quicktest.Equals, uint8(0))

	ctl.Servo.SetMode(servo.ModePlay)
	ctl.StrobeRecord(RecordPunchIn)
	c.Assert(ctl.Banks.GetTransportOut()&expander.OutRecordHold, quicktest.Equals, uint8(expander.OutRecordHold))
}
