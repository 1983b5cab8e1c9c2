// Package expander drives the two MCP23S17 SPI I/O-expander banks that
// carry every transport button, lamp, solenoid, and configuration switch.
// Bank 1 reads transport buttons on Port A and drives lamps on Port B.
// Bank 2 drives solenoids on Port A and reads DIP/tape-speed switches on
// Port B. Each bank lives behind its own chip select on its own SPI bus.
package expander

import "dtc1200/internal/hal"

// MCP23S17 register addresses (IOCON configured for byte mode, so BANK=0
// addressing applies throughout).
const (
	regIODirA = 0x00
	regIODirB = 0x01
	regIOPolA = 0x02
	regIOPolB = 0x03
	regIOConA = 0x0A
	regGPIOA  = 0x12
	regGPIOB  = 0x13
)

const (
	opWrite = 0x40
	opRead  = 0x41
)

// seqOp disables the MCP23S17's address-pointer auto-increment, so every
// transfer addresses exactly the register named rather than walking
// forward through the register file.
const seqOp = 0x20

// Bank is one MCP23S17 chip reachable over SPI.
type Bank struct {
	bus BusHandle
	cs  hal.ChipSelect
}

// BusHandle is the opaque SPI bus handle returned by hal.SPIBus.ConfigureBus.
type BusHandle = any

// Buttons bits read from bank 1 Port A (polarity-inverted on bit 0x40, the
// tape-out switch, so a closed tape-out switch reads as a 1 like every
// other momentary button).
const (
	ButtonStop       = 0x01
	ButtonPlay       = 0x02
	ButtonRecord     = 0x04
	ButtonLiftDefeat = 0x08
	ButtonFastFwd    = 0x10
	ButtonRewind     = 0x20
	SwitchTapeOut    = 0x40
)

// Lamp bits written to bank 1 Port B.
const (
	LampFwd   = 0x01
	LampRew   = 0x02
	LampPlay  = 0x04
	LampRec   = 0x08
	LampStop  = 0x10
	LampStat3 = 0x20
	LampStat2 = 0x40
	LampStat1 = 0x80
)

// Transport output bits written to bank 2 Port A.
const (
	OutServo       = 0x01
	OutBrakeRelese = 0x02
	OutTapeLifter  = 0x04
	OutPinchRoller = 0x08
	OutRecordPulse = 0x10
	OutRecordHold  = 0x20
)

// Mode/DIP switch bits read from bank 2 Port B (polarity-inverted on
// 0x8F: the four DIP bits plus the high-speed select).
const (
	SwitchDIP1     = 0x01
	SwitchDIP2     = 0x02
	SwitchDIP3     = 0x04
	SwitchDIP4     = 0x08
	SwitchHighSped = 0x80
)

// Banks holds both expander chips once Init has opened them.
type Banks struct {
	Transport Bank // bank 1: buttons in / lamps out
	Solenoid  Bank // bank 2: solenoids out / DIP+speed switches in

	outMask uint8 // shadow of the solenoid bank's GPIOA output latch
}

// Init configures both MCP23S17 chips over the given SPI buses, applying
// each bank's direction/polarity register layout in one pass per chip.
func Init(transportBus, solenoidBus hal.BusConfig, transportCS, solenoidCS hal.ChipSelect) (*Banks, error) {
	spi := hal.MustSPI()

	transportHandle, err := spi.ConfigureBus(transportBus)
	if err != nil {
		return nil, err
	}
	solenoidHandle, err := spi.ConfigureBus(solenoidBus)
	if err != nil {
		return nil, err
	}

	b := &Banks{
		Transport: Bank{bus: transportHandle, cs: transportCS},
		Solenoid:  Bank{bus: solenoidHandle, cs: solenoidCS},
	}

	transportInit := []regVal{
		{regIOConA, seqOp},
		{regIODirA, 0xFF}, // Port A: buttons, all inputs
		{regIODirB, 0x00}, // Port B: lamps, all outputs
		{regIOPolA, 0x40}, // invert tape-out switch polarity
	}
	solenoidInit := []regVal{
		{regIOConA, seqOp},
		{regIODirA, 0x00}, // Port A: solenoids, all outputs
		{regIODirB, 0xFF}, // Port B: DIP/speed switches, all inputs
		{regIOPolB, 0x8F}, // invert DIP + speed switch polarity
	}

	for _, rv := range transportInit {
		if err := b.Transport.writeReg(rv.reg, rv.val); err != nil {
			return nil, err
		}
	}
	for _, rv := range solenoidInit {
		if err := b.Solenoid.writeReg(rv.reg, rv.val); err != nil {
			return nil, err
		}
	}

	return b, nil
}

type regVal struct {
	reg uint8
	val uint8
}

// writeReg issues the MCP23S17 write-opcode/register/data sequence inside a
// single chip-select bracket.
func (b Bank) writeReg(reg, data uint8) error {
	spi := hal.MustSPI()
	return b.cs.Transact(func() error {
		if err := spi.Transfer(b.bus, []byte{opWrite, reg}, nil); err != nil {
			return err
		}
		return spi.Transfer(b.bus, []byte{data}, nil)
	})
}

// readReg issues the MCP23S17 read-opcode/register/data sequence inside a
// single chip-select bracket.
func (b Bank) readReg(reg uint8) (uint8, error) {
	spi := hal.MustSPI()
	rx := make([]byte, 1)
	err := b.cs.Transact(func() error {
		if err := spi.Transfer(b.bus, []byte{opRead, reg}, nil); err != nil {
			return err
		}
		return spi.Transfer(b.bus, nil, rx)
	})
	return rx[0], err
}

// ReadTransportButtons reads bank 1 Port A.
func (b *Banks) ReadTransportButtons() (uint8, error) {
	return b.Transport.readReg(regGPIOA)
}

// SetLamps writes bank 1 Port B.
func (b *Banks) SetLamps(mask uint8) error {
	return b.Transport.writeReg(regGPIOB, mask)
}

// ReadModeSwitches reads bank 2 Port B.
func (b *Banks) ReadModeSwitches() (uint8, error) {
	return b.Solenoid.readReg(regGPIOB)
}

// SetSolenoids writes bank 2 Port A and updates the output shadow.
func (b *Banks) SetSolenoids(mask uint8) error {
	if err := b.Solenoid.writeReg(regGPIOA, mask); err != nil {
		return err
	}
	b.outMask = mask
	return nil
}

// SetTransportMask sets then clears the given output bits against the
// current shadow, mirroring SetTransportMask's read-modify-write of
// s_ucTransportMask.
func (b *Banks) SetTransportMask(set, clear uint8) error {
	mask := (b.outMask &^ clear) | set
	return b.SetSolenoids(mask)
}

// GetTransportOut returns the shadowed solenoid output state, since the
// MCP23S17's GPIO register only reflects it after a round trip this link
// would rather avoid on every read.
func (b *Banks) GetTransportOut() uint8 {
	return b.outMask
}
