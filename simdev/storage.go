package simdev

import (
	"errors"
)

// ErrBeyondCapacity is returned when an access runs past the end of the
// staging buffer.
var ErrBeyondCapacity = errors.New("simdev: access beyond buffer capacity")

const storageUnitSize = 4096

// Storage is the shared staging buffer of a device.
//
// Storage is allocated in units on first touch, so a large buffer costs
// nothing until the channels actually move data through it.
type Storage struct {
	capacity uint64
	units    map[uint64][]byte
}

// NewStorage creates a staging buffer of the given capacity in bytes.
func NewStorage(capacity uint64) *Storage {
	return &Storage{
		capacity: capacity,
		units:    make(map[uint64][]byte),
	}
}

// Capacity returns the size of the buffer in bytes.
func (s *Storage) Capacity() uint64 {
	return s.capacity
}

// AllocatedUnits returns how many units have been touched.
func (s *Storage) AllocatedUnits() int {
	return len(s.units)
}

func (s *Storage) unit(addr uint64) []byte {
	base := addr - addr%storageUnitSize

	u, ok := s.units[base]
	if !ok {
		u = make([]byte, storageUnitSize)
		s.units[base] = u
	}

	return u
}

func (s *Storage) mustBeInRange(addr, length uint64) error {
	if addr+length > s.capacity || addr+length < addr {
		return ErrBeyondCapacity
	}

	return nil
}

// Read returns length bytes starting at addr.
func (s *Storage) Read(addr, length uint64) ([]byte, error) {
	if err := s.mustBeInRange(addr, length); err != nil {
		return nil, err
	}

	res := make([]byte, length)

	for done := uint64(0); done < length; {
		curr := addr + done
		offset := curr % storageUnitSize
		n := min(length-done, storageUnitSize-offset)

		copy(res[done:done+n], s.unit(curr)[offset:offset+n])
		done += n
	}

	return res, nil
}

// Write stores data starting at addr.
func (s *Storage) Write(addr uint64, data []byte) error {
	length := uint64(len(data))
	if err := s.mustBeInRange(addr, length); err != nil {
		return err
	}

	for done := uint64(0); done < length; {
		curr := addr + done
		offset := curr % storageUnitSize
		n := min(length-done, storageUnitSize-offset)

		copy(s.unit(curr)[offset:offset+n], data[done:done+n])
		done += n
	}

	return nil
}
