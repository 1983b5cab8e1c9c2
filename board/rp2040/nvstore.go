//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"machine"
)

// eepromAddr is the 7-bit I2C address of the 24LC32-class serial EEPROM
// carrying the persisted parameter blocks.
const eepromAddr = 0x50

// pageSize bounds how many bytes go in a single page write; the
// 24LC32 family has a 32-byte page boundary.
const pageSize = 32

// NVStoreDriver implements hal.NVStore over an I2C serial EEPROM.
type NVStoreDriver struct {
	i2c *machine.I2C
}

// NewNVStoreDriver configures the I2C bus carrying the parameter EEPROM.
func NewNVStoreDriver(i2c *machine.I2C, frequencyHz uint32) (*NVStoreDriver, error) {
	if err := i2c.Configure(machine.I2CConfig{Frequency: frequencyHz}); err != nil {
		return nil, err
	}
	return &NVStoreDriver{i2c: i2c}, nil
}

func (d *NVStoreDriver) Load(offset uint32, dst []byte) error {
	addr := []byte{byte(offset >> 8), byte(offset)}
	return d.i2c.Tx(eepromAddr, addr, dst)
}

func (d *NVStoreDriver) Save(offset uint32, src []byte) error {
	for written := 0; written < len(src); {
		n := pageSize - int(offset+uint32(written))%pageSize
		if n > len(src)-written {
			n = len(src) - written
		}

		o := offset + uint32(written)
		buf := make([]byte, 2+n)
		buf[0] = byte(o >> 8)
		buf[1] = byte(o)
		copy(buf[2:], src[written:written+n])

		if err := d.i2c.Tx(eepromAddr, buf, nil); err != nil {
			return err
		}
		written += n
	}
	return nil
}
