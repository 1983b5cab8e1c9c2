package ipc

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/frankban/quicktest"
)

func TestServerDispatchesVersionGetWithCombinedAck(t *testing.T) {
	c := quicktest.New(t)

	req := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 5, Text: EncodeRequest(OpVersionGet, nil)}
	wire, err := Encode(req)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)

	l := NewLink(u)
	l.Server = &Server{
		Version: func() (uint32, uint32) { return 1, 42 },
	}

	c.Assert(l.OnReceive(100), quicktest.IsNil)

	reply, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(reply.Type&typeMask, quicktest.Equals, uint8(TypeMsgACK))
	c.Assert(reply.AckNak, quicktest.Equals, uint8(5))
	c.Assert(binary.BigEndian.Uint32(reply.Text[0:4]), quicktest.Equals, uint32(1))
	c.Assert(binary.BigEndian.Uint32(reply.Text[4:8]), quicktest.Equals, uint32(42))
}

func TestServerConfigGetSetRoundTrip(t *testing.T) {
	c := quicktest.New(t)

	var stored []byte
	srv := &Server{
		ConfigGet: func() []byte { return stored },
		ConfigSet: func(body []byte) error { stored = append([]byte(nil), body...); return nil },
	}

	setReq := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 1, Text: EncodeRequest(OpConfigSet, []byte("config-bytes"))}
	wire, err := Encode(setReq)
	c.Assert(err, quicktest.IsNil)
	u := &fakeUART{}
	u.WriteBytes(wire)
	l := NewLink(u)
	l.Server = srv
	c.Assert(l.OnReceive(100), quicktest.IsNil)

	ack, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(ack.Type&typeMask, quicktest.Equals, uint8(TypeMsgACK))
	c.Assert(ack.AckNak, quicktest.Equals, uint8(1))

	getReq := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 2, Text: EncodeRequest(OpConfigGet, nil)}
	wire, err = Encode(getReq)
	c.Assert(err, quicktest.IsNil)
	u2 := &fakeUART{}
	u2.WriteBytes(wire)
	l.uart = u2
	c.Assert(l.OnReceive(100), quicktest.IsNil)

	reply, err := Decode(u2, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(string(reply.Text), quicktest.Equals, "config-bytes")
}

func TestServerNaksUnregisteredOpcode(t *testing.T) {
	c := quicktest.New(t)

	req := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 3, Text: EncodeRequest(OpTransportCmd, make([]byte, 8))}
	wire, err := Encode(req)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)

	l := NewLink(u)
	l.Server = &Server{} // no handlers registered

	c.Assert(l.OnReceive(100), quicktest.IsNil)

	reply, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(reply.Type&typeMask, quicktest.Equals, uint8(TypeNAKOnly))
	c.Assert(reply.AckNak, quicktest.Equals, uint8(3))
}

func TestServerNaksUnknownOpcode(t *testing.T) {
	c := quicktest.New(t)

	req := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 7, Text: EncodeRequest(Opcode(999), nil)}
	wire, err := Encode(req)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)

	l := NewLink(u)
	l.Server = &Server{}

	c.Assert(l.OnReceive(100), quicktest.IsNil)

	reply, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(reply.Type&typeMask, quicktest.Equals, uint8(TypeNAKOnly))
}

func TestServerTransportCmdDecodesParams(t *testing.T) {
	c := quicktest.New(t)

	var gotCmd int32
	var gotP1, gotP2 uint16
	srv := &Server{
		TransportCmd: func(cmd int32, p1, p2 uint16) error {
			gotCmd, gotP1, gotP2 = cmd, p1, p2
			return nil
		},
	}

	body := make([]byte, 8)
	binary.BigEndian.PutUint32(body[0:4], uint32(TransportPlay))
	binary.BigEndian.PutUint16(body[4:6], 0)
	binary.BigEndian.PutUint16(body[6:8], ParamRecord)

	req := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 9, Text: EncodeRequest(OpTransportCmd, body)}
	wire, err := Encode(req)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)
	l := NewLink(u)
	l.Server = srv

	c.Assert(l.OnReceive(100), quicktest.IsNil)
	c.Assert(gotCmd, quicktest.Equals, int32(TransportPlay))
	c.Assert(gotP1, quicktest.Equals, uint16(0))
	c.Assert(gotP2, quicktest.Equals, ParamRecord)
}

func TestServerHandlerErrorNaks(t *testing.T) {
	c := quicktest.New(t)

	srv := &Server{
		ConfigSet: func([]byte) error { return errors.New("boom") },
	}

	req := Frame{Type: MakeType(0, TypeMsgOnly), Seq: 4, Text: EncodeRequest(OpConfigSet, []byte("x"))}
	wire, err := Encode(req)
	c.Assert(err, quicktest.IsNil)

	u := &fakeUART{}
	u.WriteBytes(wire)
	l := NewLink(u)
	l.Server = srv

	c.Assert(l.OnReceive(100), quicktest.IsNil)

	reply, err := Decode(u, 100)
	c.Assert(err, quicktest.IsNil)
	c.Assert(reply.Type&typeMask, quicktest.Equals, uint8(TypeNAKOnly))
}
