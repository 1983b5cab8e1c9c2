// Package motordac drives the TLV5637 dual 10-bit DAC that feeds the reel
// motor torque amplifiers. DAC A sets supply torque, DAC B sets takeup
// torque; the amplifiers deliver maximum torque at the DAC's minimum code,
// so torque level and DAC code are inverted before they go out the wire.
package motordac

import (
	"dtc1200/internal/diag"
	"dtc1200/internal/hal"
	"dtc1200/internal/sched"
)

// Max is the full-scale 10-bit DAC code (D11..D2 of the TLV5637's 12-bit
// register; D0/D1 are tied low).
const Max = 0x3FF

// refWord configures the TLV5637's internal reference to 1.024V.
const refWord = (1 << 15) | (1 << 12) | 0x01

const (
	dacBWriteToBuffer = 1 << 12
	dacAWriteAndLoad  = 1 << 15
)

// DAC is the motor torque DAC driver.
type DAC struct {
	bus any
	cs  hal.ChipSelect
}

// Open configures the SPI bus used by the DAC and zeroes both torque
// channels.
func Open(cfg hal.BusConfig, cs hal.ChipSelect) (*DAC, error) {
	bus, err := hal.MustSPI().ConfigureBus(cfg)
	if err != nil {
		return nil, err
	}
	d := &DAC{bus: bus, cs: cs}
	if err := d.Write(0, 0); err != nil {
		return nil, err
	}
	return d, nil
}

// Write sets the supply and takeup torque levels, each 0..Max. Torque and
// DAC code are inverted: the amplifiers produce maximum torque at the DAC's
// minimum code, so supply/takeup are complemented against Max before they
// reach the part.
func (d *DAC) Write(supply, takeup uint32) error {
	if supply > Max {
		supply = Max
	}
	if takeup > Max {
		takeup = Max
	}
	takeup = Max - takeup
	supply = Max - supply

	if err := d.transfer(refWord); err != nil {
		return err
	}
	if err := d.transfer(dacBWriteToBuffer | uint16(takeup&0x3FF)<<2); err != nil {
		return err
	}
	return d.transfer(dacAWriteAndLoad | uint16(supply&0x3FF)<<2)
}

// transfer writes one 16-bit word to the DAC. A failed transaction is
// recorded to diag and returned to the caller, but never retried here: the
// servo loop's write cadence is what matters, not any single tick's DAC
// update.
func (d *DAC) transfer(word uint16) error {
	spi := hal.MustSPI()
	tx := []byte{byte(word >> 8), byte(word)}
	err := d.cs.Transact(func() error {
		return spi.Transfer(d.bus, tx, make([]byte, 2))
	})
	if err != nil {
		diag.Record(diag.EvtDACTransferError, sched.Now(), uint32(word), 0)
	}
	return err
}
