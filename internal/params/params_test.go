package params

import (
	"testing"

	"github.com/frankban/quicktest"

	"dtc1200/internal/hal"
)

type fakeNVStore struct {
	data map[uint32][]byte
}

func newFakeNVStore() *fakeNVStore { return &fakeNVStore{data: map[uint32][]byte{}} }

func (f *fakeNVStore) Load(offset uint32, dst []byte) error {
	src, ok := f.data[offset]
	if !ok {
		return nil // leaves dst zeroed, magic won't match -> defaults
	}
	copy(dst, src)
	return nil
}

func (f *fakeNVStore) Save(offset uint32, src []byte) error {
	cp := make([]byte, len(src))
	copy(cp, src)
	f.data[offset] = cp
	return nil
}

func TestLoadFallsBackToDefaultsWhenUnformatted(t *testing.T) {
	c := quicktest.New(t)
	hal.SetNVStore(newFakeNVStore())

	p, err := Load(Width1Inch)
	c.Assert(err, quicktest.IsNil)
	c.Assert(p, quicktest.DeepEquals, DefaultParameters1Inch())
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	c := quicktest.New(t)
	hal.SetNVStore(newFakeNVStore())

	p := DefaultParameters2Inch()
	p.StopSupplyTension = 777

	c.Assert(Save(Width2Inch, p), quicktest.IsNil)

	got, err := Load(Width2Inch)
	c.Assert(err, quicktest.IsNil)
	c.Assert(got, quicktest.DeepEquals, p)
}

func TestWidthsUseDistinctSlots(t *testing.T) {
	c := quicktest.New(t)
	hal.SetNVStore(newFakeNVStore())

	p1 := DefaultParameters1Inch()
	p1.StopSupplyTension = 111
	c.Assert(Save(Width1Inch, p1), quicktest.IsNil)

	got2, err := Load(Width2Inch)
	c.Assert(err, quicktest.IsNil)
	c.Assert(got2, quicktest.DeepEquals, DefaultParameters2Inch())
}
