// Package params holds the system configuration block persisted to
// non-volatile storage: global timing/debounce settings plus the three
// per-mode torque/PID parameter groups (stop, shuttle, play). Two
// complete parameter sets are kept, selected by tape width, since a
// 2-inch format needs different tension and boost tuning than 1-inch.
package params

import (
	"bytes"
	"encoding/binary"
	"errors"

	"dtc1200/internal/diag"
	"dtc1200/internal/hal"
	"dtc1200/internal/sched"
)

// ErrShortConfig is returned by Decode when its input is smaller than one
// encoded Parameters block.
var ErrShortConfig = errors.New("params: short config payload")

// Magic and Version identify a valid persisted block and its layout.
const (
	Magic   = 0xCEB0FACE
	Version = 1
)

// SysFlags are bits in Parameters.SysFlags.
type SysFlags uint32

const (
	FlagLifterAtStop     SysFlags = 0x0001 // leave lifter engaged at stop
	FlagBrakesAtStop     SysFlags = 0x0002 // leave brakes engaged at stop
	FlagBrakesStopPlay   SysFlags = 0x0004 // use brakes to stop play mode
	FlagEngagePinchRoll  SysFlags = 0x0008 // engage pinch roller at play
)

// Parameters is one complete tuning set.
type Parameters struct {
	Magic   uint32
	Version uint32

	// Global
	Debug               int32
	VelDetectThreshold  int32
	NullOffsetGain      int32
	ShuttleSlowVelocity int32
	ShuttleSlowOffset   int32
	PinchSettleTime     int32 // ms
	LifterSettleTime    int32 // ms
	BrakeSettleTime     int32 // ms
	PlaySettleTime      int32 // ms
	RecHoldSettleTime   int32 // ms
	RecordPulseTime     int32 // ms
	TensionSensorGain   int32
	DebounceTime        uint32 // ms
	SysFlags            SysFlags

	// Stop servo
	StopSupplyTension int32
	StopTakeupTension int32
	StopMaxTorque     int32
	StopMinTorque     int32
	StopBrakeTorque   int32

	// Shuttle (fwd/rew) servo
	ShuttleSupplyTension int32
	ShuttleTakeupTension int32
	ShuttleMaxTorque     int32
	ShuttleMinTorque     int32
	ShuttleVelocity      int32
	ShuttleLibVelocity   int32 // library-wind speed, selected by the rec+shuttle button combo
	ShuttleServoPGain    int32
	ShuttleServoIGain    int32
	ShuttleServoDGain    int32
	ShuttleHoldbackGain  int32
	ShuttleAutoslowVelocity int32
	ShuttleAutoslowOffset   int32

	// Play servo
	PlayLoSupplyTension int32
	PlayLoTakeupTension int32
	PlayHiSupplyTension int32
	PlayHiTakeupTension int32
	PlayMaxTorque       int32
	PlayMinTorque       int32
	PlayTensionGain     int32
	PlayHiBoostStart    int32
	PlayHiBoostEnd      int32
	PlayLoBoostStart    int32
	PlayLoBoostEnd      int32
	PlayLoBoostTime     int32
	PlayLoBoostStep     int32
	PlayHiBoostTime     int32
	PlayHiBoostStep     int32

	ReelRadiusGain int32
}

// TapeWidth selects one of the two persisted parameter slots.
type TapeWidth uint8

const (
	Width1Inch TapeWidth = 0
	Width2Inch TapeWidth = 1
)

// slotSize is the byte offset between the two persisted tape-width slots.
const slotSize = 256

// DefaultParameters1Inch are factory defaults tuned for 1-inch 8-track
// tape transports.
func DefaultParameters1Inch() Parameters {
	p := defaultCommon()
	p.StopSupplyTension = 110
	p.StopTakeupTension = 110
	p.StopBrakeTorque = 250
	p.ShuttleSupplyTension = 75
	p.ShuttleTakeupTension = 75
	p.PlayLoSupplyTension = 95
	p.PlayLoTakeupTension = 95
	p.PlayHiSupplyTension = 120
	p.PlayHiTakeupTension = 120
	return p
}

// DefaultParameters2Inch are factory defaults tuned for 2-inch 16/24-track
// tape transports, which need more holding torque for the heavier reels.
func DefaultParameters2Inch() Parameters {
	p := defaultCommon()
	p.StopSupplyTension = 220
	p.StopTakeupTension = 220
	p.ShuttleSupplyTension = 150
	p.ShuttleTakeupTension = 150
	p.PlayLoSupplyTension = 190
	p.PlayLoTakeupTension = 190
	p.PlayHiSupplyTension = 240
	p.PlayHiTakeupTension = 240
	return p
}

func defaultCommon() Parameters {
	return Parameters{
		Magic:               Magic,
		Version:             Version,
		VelDetectThreshold:  10,
		NullOffsetGain:      1,
		ShuttleSlowVelocity: 1000,
		ShuttleSlowOffset:   100,
		PinchSettleTime:     100,
		LifterSettleTime:    200,
		BrakeSettleTime:     250,
		PlaySettleTime:      50,
		RecHoldSettleTime:   50,
		RecordPulseTime:     50,
		TensionSensorGain:   1,
		DebounceTime:        15,
		SysFlags:            FlagBrakesAtStop,

		StopMaxTorque:   900,
		StopMinTorque:   0,
		StopBrakeTorque: 500,

		ShuttleMaxTorque:        900,
		ShuttleMinTorque:        0,
		ShuttleVelocity:         4000,
		ShuttleLibVelocity:      6000,
		ShuttleServoPGain:       100,
		ShuttleServoIGain:       10,
		ShuttleServoDGain:       0,
		ShuttleHoldbackGain:     1,
		ShuttleAutoslowVelocity: 2000,
		ShuttleAutoslowOffset:   300,

		PlayMaxTorque:    900,
		PlayMinTorque:    0,
		PlayTensionGain:  1,
		PlayHiBoostStart: 0,
		PlayHiBoostEnd:   4000,
		PlayLoBoostStart: 0,
		PlayLoBoostEnd:   2000,
		PlayLoBoostTime:  50,
		PlayLoBoostStep:  1,
		PlayHiBoostTime:  50,
		PlayHiBoostStep:  1,

		ReelRadiusGain: 1,
	}
}

// Load reads the persisted parameters for the given tape width, falling
// back to factory defaults if the stored block's magic/version don't match
// (first boot, or a format change). Defaults installed this way are
// immediately written back to the slot, so the next Load sees a
// well-formed block instead of re-detecting the mismatch every boot.
func Load(width TapeWidth) (Parameters, error) {
	var p Parameters
	buf := make([]byte, paramsSize)
	if err := hal.MustNVStore().Load(uint32(width)*slotSize, buf); err != nil {
		diag.Record(diag.EvtParamDefaultsLoaded, sched.Now(), uint32(width), 0)
		return defaultsFor(width), err
	}
	decode(buf, &p)
	if p.Magic != Magic || p.Version != Version {
		d := defaultsFor(width)
		diag.Record(diag.EvtParamDefaultsLoaded, sched.Now(), uint32(width), 1)
		if err := Save(width, d); err != nil {
			return d, err
		}
		return d, nil
	}
	return p, nil
}

// Save persists p to the given tape width's slot.
func Save(width TapeWidth, p Parameters) error {
	buf := make([]byte, paramsSize)
	encode(p, buf)
	return hal.MustNVStore().Save(uint32(width)*slotSize, buf)
}

// Defaults returns the factory default parameter set for width, the same
// set Load installs on a mismatch.
func Defaults(width TapeWidth) Parameters {
	return defaultsFor(width)
}

func defaultsFor(width TapeWidth) Parameters {
	if width == Width2Inch {
		return DefaultParameters2Inch()
	}
	return DefaultParameters1Inch()
}

var paramsSize = binary.Size(Parameters{})

func encode(p Parameters, buf []byte) {
	w := bytes.NewBuffer(buf[:0])
	_ = binary.Write(w, binary.LittleEndian, p)
}

func decode(buf []byte, p *Parameters) {
	_ = binary.Read(bytes.NewReader(buf), binary.LittleEndian, p)
}

// Encode serializes p to the same little-endian layout Save persists to
// NV storage, for transfer over the IPC config-get/config-set opcodes.
func Encode(p Parameters) []byte {
	buf := make([]byte, paramsSize)
	encode(p, buf)
	return buf
}

// Decode parses a byte slice produced by Encode (or read from NV storage)
// back into a Parameters value.
func Decode(buf []byte) (Parameters, error) {
	if len(buf) < paramsSize {
		return Parameters{}, ErrShortConfig
	}
	var p Parameters
	decode(buf, &p)
	return p, nil
}
