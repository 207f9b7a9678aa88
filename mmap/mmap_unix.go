//go:build unix

package mmap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// New maps length bytes of fd at offset, which must be a multiple of the
// system page size. The mapping is MAP_SHARED so writes through Data are
// visible to other mappings of the same file and are persisted by Sync.
func New(fd int, offset int64, length int, writable bool) (*Map, error) {
	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE
	}
	data, err := unix.Mmap(fd, offset, length, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &Map{data: data}, nil
}

// Sync flushes the window's dirty pages to the backing file and blocks
// until the write completes.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("msync: %w", err)
	}
	return nil
}

// Close unmaps the window. Calling Close more than once is a no-op.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	if err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	return nil
}
