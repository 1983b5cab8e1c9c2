// Command dtc-firmware is the DTC-1200 transport controller's embedded
// entry point: it brings up every board driver, wires the servo/transport
// state machine, and runs the cooperative main loop that ties button
// polling, the 500Hz servo tick, and the host IPC link together.
//
//go:build tinygo && (rp2040 || rp2350)
package main

import (
	"errors"
	"time"

	"dtc1200/board/rp2040"
	"dtc1200/internal/expander"
	"dtc1200/internal/hal"
	"dtc1200/internal/ipc"
	"dtc1200/internal/motordac"
	"dtc1200/internal/params"
	"dtc1200/internal/qei"
	"dtc1200/internal/sched"
	"dtc1200/internal/servo"
	"dtc1200/internal/tach"
	"dtc1200/internal/transport"
)

// Loop periods, expressed in scheduler ticks (sched.TicksPerSecond == 1MHz).
const (
	servoPeriod = sched.TicksPerSecond / 500 // 500Hz control loop
	qeiPeriod   = sched.TicksPerSecond / 100 // 10ms QEI capture window
	ipcPollMS   = 5
)

// FirmwareVersion/FirmwareBuild answer the IPC VERSION_GET opcode.
const (
	FirmwareVersion uint32 = 1
	FirmwareBuild   uint32 = 1
)

// tensionChannel is the single tension-arm ADC input the servo loop reads
// each tick.
const tensionChannel = hal.ADCChannel(0)

func main() {
	rp2040.Init()

	banks, err := expander.Init(rp2040.TransportBus(), rp2040.SolenoidBus(), rp2040.TransportChipSelect(), rp2040.SolenoidChipSelect())
	if err != nil {
		panic(err)
	}

	dac, err := motordac.Open(rp2040.DACBus(), rp2040.DACChipSelect())
	if err != nil {
		panic(err)
	}

	tapeWidth := params.Width1Inch
	p, _ := params.Load(tapeWidth)

	tch := tach.New(sched.TicksPerSecond)
	tch.Start()
	rp2040.WireTach(tch)

	st := servo.New(p, qei.NewChannel("supply"), qei.NewChannel("takeup"), tch, dac)

	sleep := func(ms int32) { time.Sleep(time.Duration(ms) * time.Millisecond) }
	ctl := transport.New(banks, st, sleep)

	link := ipc.NewLink(hal.MustUART())
	link.Server = newIPCServer(ctl, st, tapeWidth)

	supplyQEI := hal.MustQEI("supply").(*rp2040.QEIDriver)
	takeupQEI := hal.MustQEI("takeup").(*rp2040.QEIDriver)

	// Buttons and mode switches are sampled every 10ms; a reading reaches
	// the controller only when two consecutive samples agree, so a
	// single-sample glitch never produces a command.
	const buttonPeriod = sched.TicksPerSecond / 100
	var prevMask, prevDIP uint8

	nextServo := sched.Now() + servoPeriod
	nextButtons := sched.Now() + buttonPeriod
	nextPoll := sched.Now() + pollPeriodTicks
	nextQEI := sched.Now() + qeiPeriod

	for {
		sched.Dispatch()

		now := sched.Now()
		if int32(now-nextServo) >= 0 {
			tensionRaw, _ := hal.MustADC().Sample(tensionChannel)
			_ = st.Tick(tensionRaw)
			nextServo += servoPeriod
		}
		if int32(now-nextButtons) >= 0 {
			mask, _ := banks.ReadTransportButtons()
			if mask == prevMask {
				ctl.HandleButtons(mask)
			}
			prevMask = mask
			dip, _ := banks.ReadModeSwitches()
			if dip == prevDIP {
				ctl.SetDIPSwitch(dip)
			}
			prevDIP = dip
			nextButtons += buttonPeriod
		}
		if int32(now-nextPoll) >= 0 {
			ctl.Poll()
			nextPoll += pollPeriodTicks
		}
		if int32(now-nextQEI) >= 0 {
			rp2040.LatchQEI(supplyQEI, takeupQEI)
			nextQEI += qeiPeriod
		}

		if err := link.OnReceive(ipcPollMS); err != nil {
			// Timeouts are expected between host commands; anything else
			// the link already recorded to diag.
		}
	}
}

// pollPeriodTicks mirrors internal/transport's documented 25ms contract for
// Controller.Poll.
const pollPeriodTicks = sched.TicksPerSecond / 40

var errUnknownTransportCmd = errors.New("dtc-firmware: unknown transport command")

// newIPCServer builds the opcode handlers the IPC link dispatches
// VERSION_GET/CONFIG_GET/CONFIG_SET/CONFIG_EPROM/TRANSPORT_CMD requests to.
// Config handlers operate on st.Params directly, since that is the live
// parameter record the servo loop reads every tick.
func newIPCServer(ctl *transport.Controller, st *servo.State, width params.TapeWidth) *ipc.Server {
	return &ipc.Server{
		Version: func() (uint32, uint32) {
			return FirmwareVersion, FirmwareBuild
		},
		ConfigGet: func() []byte {
			return params.Encode(st.Params)
		},
		ConfigSet: func(body []byte) error {
			p, err := params.Decode(body)
			if err != nil {
				return err
			}
			st.Params = p
			return nil
		},
		ConfigEPROM: func(store int32) int32 {
			switch store {
			case ipc.EPROMLoad:
				p, err := params.Load(width)
				if err != nil {
					return -1
				}
				st.Params = p
			case ipc.EPROMSave:
				if err := params.Save(width, st.Params); err != nil {
					return -1
				}
			case ipc.EPROMDefault:
				st.Params = params.Defaults(width)
			default:
				return -1
			}
			return 0
		},
		TransportCmd: func(cmd int32, param1, param2 uint16) error {
			switch cmd {
			case ipc.TransportStop:
				ctl.RequestMode(servo.ModeStop, false, false)
			case ipc.TransportPlay:
				ctl.RequestMode(servo.ModePlay, false, param1&ipc.ParamRecord != 0)
			case ipc.TransportFwd:
				ctl.RequestMode(servo.ModeFwd, false, false)
			case ipc.TransportFwdLib:
				ctl.RequestMode(servo.ModeFwd, true, false)
			case ipc.TransportRew:
				ctl.RequestMode(servo.ModeRew, false, false)
			case ipc.TransportRewLib:
				ctl.RequestMode(servo.ModeRew, true, false)
			case ipc.TransportToggleLifter:
				ctl.ToggleLifter()
			case ipc.TransportRecordIn:
				ctl.StrobeRecord(transport.RecordPunchIn)
			case ipc.TransportRecordOut:
				ctl.StrobeRecord(transport.RecordPunchOut)
			case ipc.TransportRecordToggle:
				ctl.StrobeRecord(transport.RecordToggle)
			default:
				return errUnknownTransportCmd
			}
			return nil
		},
	}
}
