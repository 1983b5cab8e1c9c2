package ipc

import (
	"dtc1200/internal/diag"
	"dtc1200/internal/hal"
	"dtc1200/internal/sched"
)

// RetransmitTicks is how long the link waits for an ACK before resending
// the last unacknowledged frame.
const RetransmitTicks = sched.TicksPerSecond / 5 // 200ms

// MaxRetries bounds how many times a frame is resent before the link gives
// up and drops it; the failure is not reported to the caller.
const MaxRetries = 5

// Link manages one side of the IPC connection: outgoing sequence
// numbers, a pending-ACK retransmit timer, and dispatch of received
// messages to a handler.
type Link struct {
	uart hal.UART

	txSeq   uint8
	pending *Frame
	retries int
	timer   sched.Timer

	Handler func(text []byte)

	// Server, when set, makes this Link the companion-protocol server
	// side: MSG_ONLY requests are decoded as an opcode + payload and
	// dispatched through it instead of Handler, replying with a combined
	// MSG+ACK frame or a NAK on an unregistered opcode.
	Server *Server
}

// NewLink wires a Link to a UART. The retransmit timer is added to the
// scheduler by each SendMessage.
func NewLink(u hal.UART) *Link {
	l := &Link{uart: u, txSeq: minSeq}
	l.timer.Handler = l.onRetransmitTimeout
	return l
}

// SendMessage transmits text as a MSG_ONLY frame awaiting ACK. Only one
// frame may be outstanding at a time, matching the single-slot window
// this link actually uses even though the protocol allows up to
// maxWindow.
func (l *Link) SendMessage(text []byte) error {
	f := Frame{Type: MakeType(0, TypeMsgOnly), Seq: l.txSeq, Text: text}
	wire, err := Encode(f)
	if err != nil {
		return err
	}
	if err := l.uart.WriteBytes(wire); err != nil {
		return err
	}

	l.pending = &f
	l.retries = 0
	l.timer.WakeTime = sched.Now() + RetransmitTicks
	sched.Add(&l.timer)
	return nil
}

// OnReceive decodes one frame off the wire and processes it: an ACK
// matching the pending sequence clears the retransmit timer, a message
// frame is handed to Handler and immediately ACKed.
func (l *Link) OnReceive(readTimeoutMS uint32) error {
	f, err := Decode(l.uart, readTimeoutMS)
	if err != nil {
		if err == ErrCRC {
			diag.Record(diag.EvtFrameCRCError, sched.Now(), 0, 0)
		} else if err == ErrSync {
			diag.Record(diag.EvtFrameSyncLost, sched.Now(), 0, 0)
		}
		return err
	}

	typ := f.Type & typeMask
	switch typ {
	case TypeACKOnly:
		if l.pending != nil && f.AckNak == l.pending.Seq {
			l.pending = nil
			l.txSeq = NextSeq(l.txSeq)
		}
	case TypeMsgOnly:
		if l.Server != nil {
			l.dispatchServer(f)
			return nil
		}
		l.sendAck(f.Seq)
		if l.Handler != nil {
			l.Handler(f.Text)
		}
	case TypeMsgACK:
		if l.pending != nil && f.AckNak == l.pending.Seq {
			l.pending = nil
			l.txSeq = NextSeq(l.txSeq)
		}
		l.sendAck(f.Seq)
		if l.Handler != nil {
			l.Handler(f.Text)
		}
	default:
		l.sendAck(f.Seq)
		if l.Handler != nil {
			l.Handler(f.Text)
		}
	}
	return nil
}

// dispatchServer decodes req's text as an opcode request and runs it
// against l.Server, replying with a MSG+ACK frame carrying the handler's
// reply body, or a NAK frame for an unregistered/unknown opcode.
func (l *Link) dispatchServer(req Frame) {
	op, body, err := decodeOpcode(req.Text)
	if err != nil {
		l.sendNak(req.Seq)
		return
	}

	reply, err := l.Server.handle(op, body)
	if err != nil {
		l.sendNak(req.Seq)
		return
	}
	l.sendMsgAck(req.Seq, reply)
}

func (l *Link) sendAck(seq uint8) {
	ack := Frame{Type: MakeType(0, TypeACKOnly), AckNak: seq}
	wire, err := Encode(ack)
	if err != nil {
		return
	}
	_ = l.uart.WriteBytes(wire)
}

func (l *Link) sendNak(seq uint8) {
	nak := Frame{Type: MakeType(0, TypeNAKOnly), AckNak: seq}
	wire, err := Encode(nak)
	if err != nil {
		return
	}
	_ = l.uart.WriteBytes(wire)
}

// sendMsgAck replies to a request with a combined message+ack frame: its
// AckNak field acknowledges the request's Seq, and its Seq is set to the
// same value since this link never retransmits a direct reply.
func (l *Link) sendMsgAck(ackSeq uint8, payload []byte) {
	reply := Frame{Type: MakeType(0, TypeMsgACK), Seq: ackSeq, AckNak: ackSeq, Text: payload}
	wire, err := Encode(reply)
	if err != nil {
		return
	}
	_ = l.uart.WriteBytes(wire)
}

func (l *Link) onRetransmitTimeout(*sched.Timer) sched.Result {
	if l.pending == nil {
		return sched.Done
	}
	if l.retries >= MaxRetries {
		l.pending = nil
		return sched.Done
	}
	l.retries++
	wire, err := Encode(*l.pending)
	if err == nil {
		_ = l.uart.WriteBytes(wire)
	}
	l.timer.WakeTime = sched.Now() + RetransmitTicks
	return sched.Reschedule
}
