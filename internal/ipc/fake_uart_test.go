package ipc

import (
	"errors"
	"time"
)

type fakeUART struct {
	rx  []byte
	pos int
}

func (f *fakeUART) WriteBytes(data []byte) error {
	f.rx = append(f.rx, data...)
	return nil
}

func (f *fakeUART) ReadByte(time.Duration) (byte, error) {
	if f.pos >= len(f.rx) {
		return 0, errors.New("eof")
	}
	b := f.rx[f.pos]
	f.pos++
	return b, nil
}
