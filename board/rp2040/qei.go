//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"sync/atomic"

	"machine"
)

// QEIDriver implements hal.QEIChannel in software: the reel encoders'
// A-phase edges are counted by a GPIO interrupt, and a periodic Latch call
// (driven by the main loop's scheduler, once per qei.VelocityPeriodSeconds)
// moves the running count into the value Velocity reports, same windowing
// a hardware QEI peripheral's capture register would give for free.
type QEIDriver struct {
	pinA, pinB machine.Pin

	count  uint32 // edges since last Latch
	window uint32 // edges in the last completed window
	dir    int32  // +1 or -1, updated on every A edge
}

// NewQEIDriver configures both quadrature inputs and arms the A-phase
// rising-edge interrupt.
func NewQEIDriver(pinA, pinB machine.Pin) *QEIDriver {
	d := &QEIDriver{pinA: pinA, pinB: pinB, dir: 1}
	pinA.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pinB.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	pinA.SetInterrupt(machine.PinRising, d.onEdge)
	return d
}

func (d *QEIDriver) onEdge(machine.Pin) {
	atomic.AddUint32(&d.count, 1)
	if d.pinB.Get() {
		atomic.StoreInt32(&d.dir, -1)
	} else {
		atomic.StoreInt32(&d.dir, 1)
	}
}

// Latch moves the edges accumulated since the previous call into the
// window Velocity reports, then resets the running counter to zero.
func (d *QEIDriver) Latch() {
	atomic.StoreUint32(&d.window, atomic.SwapUint32(&d.count, 0))
}

func (d *QEIDriver) Velocity() (uint32, error) {
	return atomic.LoadUint32(&d.window), nil
}

func (d *QEIDriver) Direction() (int8, error) {
	return int8(atomic.LoadInt32(&d.dir)), nil
}
