package motordac

import (
	"errors"
	"strings"
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/diag"
	"dtc1200/internal/hal"
)

type fakeSPI struct {
	words    []uint16
	failNext bool
}

func (f *fakeSPI) ConfigureBus(cfg hal.BusConfig) (any, error) { return cfg.Bus, nil }

func (f *fakeSPI) Transfer(bus any, tx, rx []byte) error {
	f.words = append(f.words, uint16(tx[0])<<8|uint16(tx[1]))
	if f.failNext {
		f.failNext = false
		return errTransferFailed
	}
	return nil
}

var errTransferFailed = errors.New("fake transfer failure")

type fakeGPIO struct{ state map[hal.Pin]bool }

func newFakeGPIO() *fakeGPIO { return &fakeGPIO{state: map[hal.Pin]bool{}} }

func (g *fakeGPIO) ConfigureOutput(hal.Pin) error        { return nil }
func (g *fakeGPIO) ConfigureInputPullUp(hal.Pin) error   { return nil }
func (g *fakeGPIO) ConfigureInputPullDown(hal.Pin) error { return nil }
func (g *fakeGPIO) SetPin(pin hal.Pin, v bool) error      { g.state[pin] = v; return nil }
func (g *fakeGPIO) ReadPin(pin hal.Pin) (bool, error)     { return g.state[pin], nil }

func TestOpenZeroesTorque(t *testing.T) {
	c := quicktest.New(t)
	spi := &fakeSPI{}
	hal.SetSPI(spi)
	hal.SetGPIO(newFakeGPIO())

	_, err := Open(hal.BusConfig{Bus: 0}, hal.ChipSelect{Pin: 1})
	c.Assert(err, quicktest.IsNil)

	// zero torque inverts to full-scale DAC code on both channels
	c.Assert(spi.words[0], quicktest.Equals, uint16(refWord))
	c.Assert(spi.words[1], quicktest.Equals, uint16(dacBWriteToBuffer|uint16(Max&0x3FF)<<2))
	c.Assert(spi.words[2], quicktest.Equals, uint16(dacAWriteAndLoad|uint16(Max&0x3FF)<<2))
}

func TestWriteFullTorqueIsZeroCode(t *testing.T) {
	c := quicktest.New(t)
	spi := &fakeSPI{}
	hal.SetSPI(spi)
	hal.SetGPIO(newFakeGPIO())

	dac, err := Open(hal.BusConfig{Bus: 0}, hal.ChipSelect{Pin: 1})
	c.Assert(err, quicktest.IsNil)

	c.Assert(dac.Write(Max, Max), quicktest.IsNil)
	last := spi.words[len(spi.words)-2:]
	c.Assert(last[0], quicktest.Equals, uint16(dacBWriteToBuffer))
	c.Assert(last[1], quicktest.Equals, uint16(dacAWriteAndLoad))
}

func TestWriteClampsOverrange(t *testing.T) {
	c := quicktest.New(t)
	spi := &fakeSPI{}
	hal.SetSPI(spi)
	hal.SetGPIO(newFakeGPIO())

	dac, err := Open(hal.BusConfig{Bus: 0}, hal.ChipSelect{Pin: 1})
	c.Assert(err, quicktest.IsNil)

	c.Assert(dac.Write(0xFFFF, 0xFFFF), quicktest.IsNil)
	last := spi.words[len(spi.words)-2:]
	c.Assert(last[0], quicktest.Equals, uint16(dacBWriteToBuffer))
	c.Assert(last[1], quicktest.Equals, uint16(dacAWriteAndLoad))
}

func TestWriteFailureIsReturnedAndRecorded(t *testing.T) {
	c := quicktest.New(t)
	spi := &fakeSPI{}
	hal.SetSPI(spi)
	hal.SetGPIO(newFakeGPIO())

	dac, err := Open(hal.BusConfig{Bus: 0}, hal.ChipSelect{Pin: 1})
	c.Assert(err, quicktest.IsNil)

	diag.Clear()
	spi.failNext = true
	c.Assert(dac.Write(100, 100), quicktest.Equals, errTransferFailed)

	var lines []string
	diag.SetWriter(func(s string) { lines = append(lines, s) })
	diag.Dump()
	c.Assert(strings.Join(lines, "\n"), quicktest.Contains, "DAC_TRANSFER_ERROR")
}
