package hal

// NVStore is the opaque non-volatile parameter store contract. The
// persistence internals (EEPROM wear levelling, I2C/SPI flash part,
// checksum placement) are deliberately not specified here; internal/params
// only needs Load/Save against a byte-addressed region.
type NVStore interface {
	Load(offset uint32, dst []byte) error
	Save(offset uint32, src []byte) error
}

var nvStoreDriver NVStore

// SetNVStore registers the board's parameter-storage driver.
func SetNVStore(d NVStore) { nvStoreDriver = d }

// MustNVStore returns the registered NV store or panics.
func MustNVStore() NVStore {
	if nvStoreDriver == nil {
		panic("hal: NV store driver not configured")
	}
	return nvStoreDriver
}
