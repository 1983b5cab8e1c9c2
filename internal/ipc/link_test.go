package ipc

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/sched"
)

func TestSendMessageAwaitsAckBeforeAdvancingSeq(t *testing.T) {
	c := quicktest.New(t)

	u := &fakeUART{}
	l := NewLink(u)
	startSeq := l.txSeq

	c.Assert(l.SendMessage([]byte("hi")), quicktest.IsNil)
	c.Assert(l.pending, quicktest.Not(quicktest.IsNil))
	c.Assert(l.txSeq, quicktest.Equals, startSeq)

	ack := Frame{Type: MakeType(0, TypeACKOnly), AckNak: startSeq}
	wire, err := Encode(ack)
	c.Assert(err, quicktest.IsNil)

	rx := &fakeUART{}
	rx.WriteBytes(wire)
	l.uart = rx

	c.Assert(l.OnReceive(100), quicktest.IsNil)
	c.Assert(l.pending, quicktest.IsNil)
	c.Assert(l.txSeq, quicktest.Equals, NextSeq(startSeq))
}

func TestOnReceiveDispatchesMessageAndSendsAck(t *testing.T) {
	c := quicktest.New(t)

	f := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 9, Text: []byte("payload")}
	wire, err := Encode(f)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)

	l := NewLink(u)
	var got []byte
	l.Handler = func(text []byte) { got = text }

	c.Assert(l.OnReceive(100), quicktest.IsNil)
	c.Assert(string(got), quicktest.Equals, "payload")

	echoed, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(echoed.Type&typeMask, quicktest.Equals, uint8(TypeACKOnly))
	c.Assert(echoed.AckNak, quicktest.Equals, uint8(9))
}

func TestRetransmitTimeoutResendsThenGivesUp(t *testing.T) {
	c := quicktest.New(t)

	u := &fakeUART{}
	l := NewLink(u)
	c.Assert(l.SendMessage([]byte("x")), quicktest.IsNil)

	for i := 0; i < MaxRetries; i++ {
		res := l.onRetransmitTimeout(&l.timer)
		c.Assert(res, quicktest.Equals, sched.Reschedule)
		c.Assert(l.pending, quicktest.Not(quicktest.IsNil))
	}

	res := l.onRetransmitTimeout(&l.timer)
	c.Assert(res, quicktest.Equals, sched.Done)
	c.Assert(l.pending, quicktest.IsNil)
}
