//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"machine"

	"dtc1200/internal/hal"
	"dtc1200/internal/sched"
	"dtc1200/internal/tach"
)

// PinTach is the tape-roller tachometer pulse input.
const PinTach = machine.GPIO27

// Pin assignments for the DTC-1200 controller board. Transport and
// solenoid expanders each get their own SPI bus and chip-select line so a
// button poll and a solenoid update never contend for the same bus.
const (
	PinTransportCS = machine.GPIO1
	PinSolenoidCS  = machine.GPIO9
	PinDACCS       = machine.GPIO13

	PinSupplyQEIA = machine.GPIO20
	PinSupplyQEIB = machine.GPIO21
	PinTakeupQEIA = machine.GPIO22
	PinTakeupQEIB = machine.GPIO26
)

const (
	transportBus = hal.BusID(0)
	solenoidBus  = hal.BusID(1)
	dacBus       = hal.BusID(2)

	eepromFrequencyHz = 400000
)

// Init configures every peripheral driver and registers it with
// internal/hal, leaving the controller ready for expander.Init, motordac
// setup, and the servo/transport wiring the main loop assembles.
func Init() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	InitClock()

	hal.SetGPIO(NewGPIODriver())
	hal.SetSPI(NewSPIDriver())
	hal.SetADC(NewADCDriver())
	hal.SetUART(NewUARTDriver(machine.Serial, 115200))

	hal.SetQEI("supply", NewQEIDriver(PinSupplyQEIA, PinSupplyQEIB))
	hal.SetQEI("takeup", NewQEIDriver(PinTakeupQEIA, PinTakeupQEIB))

	if nv, err := NewNVStoreDriver(machine.I2C0, eepromFrequencyHz); err == nil {
		hal.SetNVStore(nv)
	}
}

// TransportChipSelect and SolenoidChipSelect are the board's two MCP23S17
// chip-select lines, both active-low like every SPI device on this board.
func TransportChipSelect() hal.ChipSelect { return hal.ChipSelect{Pin: hal.Pin(PinTransportCS)} }
func SolenoidChipSelect() hal.ChipSelect  { return hal.ChipSelect{Pin: hal.Pin(PinSolenoidCS)} }
func DACChipSelect() hal.ChipSelect       { return hal.ChipSelect{Pin: hal.Pin(PinDACCS)} }

// TransportBus, SolenoidBus and DACBus are this board's fixed hal.BusID
// assignments for expander.Init and motordac.Open.
func TransportBus() hal.BusConfig {
	return hal.BusConfig{Bus: transportBus, Mode: 0, Rate: 1000000}
}
func SolenoidBus() hal.BusConfig {
	return hal.BusConfig{Bus: solenoidBus, Mode: 0, Rate: 1000000}
}
func DACBus() hal.BusConfig {
	return hal.BusConfig{Bus: dacBus, Mode: 1, Rate: 1000000}
}

// LatchQEI moves each reel channel's accumulated edge count into its
// reportable window. Call once per qei.VelocityPeriodSeconds from the main
// loop's scheduler.
func LatchQEI(supply, takeup *QEIDriver) {
	supply.Latch()
	takeup.Latch()
}

// WireTach arms the tape-roller tachometer's pulse interrupt, feeding every
// falling edge to tch.OnEdge stamped with the scheduler's own clock so the
// tach's period math and the rest of the controller's timeouts share one
// time base. The clock counts up, so it is inverted into the down-counting
// value OnEdge's prev-minus-current period math expects.
func WireTach(tch *tach.Tach) {
	PinTach.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	PinTach.SetInterrupt(machine.PinFalling, func(machine.Pin) {
		tch.OnEdge(^sched.Now())
	})
}
