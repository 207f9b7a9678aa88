//go:build windows

package mmap

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// New maps length bytes of fd at offset via CreateFileMapping /
// MapViewOfFile. offset must be a multiple of the system allocation
// granularity.
func New(fd int, offset int64, length int, writable bool) (*Map, error) {
	handle := windows.Handle(fd)

	prot := uint32(windows.PAGE_READONLY)
	access := uint32(windows.FILE_MAP_READ)
	if writable {
		prot = windows.PAGE_READWRITE
		access = windows.FILE_MAP_WRITE
	}

	// The mapping object must reach the end of the view.
	maxSize := uint64(offset) + uint64(length)
	sizeHigh := uint32(maxSize >> 32)
	sizeLow := uint32(maxSize)
	mapping, err := windows.CreateFileMapping(handle, nil, prot, sizeHigh, sizeLow, nil)
	if err != nil {
		return nil, fmt.Errorf("CreateFileMapping: %w", err)
	}

	offsetHigh := uint32(uint64(offset) >> 32)
	offsetLow := uint32(offset)
	addr, err := windows.MapViewOfFile(mapping, access, offsetHigh, offsetLow, uintptr(length))
	if err != nil {
		windows.CloseHandle(mapping)
		return nil, fmt.Errorf("MapViewOfFile: %w", err)
	}

	var data []byte
	sh := (*struct {
		Data uintptr
		Len  int
		Cap  int
	})(unsafe.Pointer(&data))
	sh.Data = addr
	sh.Len = length
	sh.Cap = length

	return &Map{data: data, handle: uintptr(handle), mapping: uintptr(mapping)}, nil
}

// Sync flushes the window's dirty pages to the backing file.
func (m *Map) Sync() error {
	if m.data == nil {
		return nil
	}
	if err := windows.FlushViewOfFile(uintptr(unsafe.Pointer(&m.data[0])), uintptr(len(m.data))); err != nil {
		return fmt.Errorf("FlushViewOfFile: %w", err)
	}
	return nil
}

// Close unmaps the window and releases the file-mapping handle. Calling
// Close more than once is a no-op.
func (m *Map) Close() error {
	if m.data == nil {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&m.data[0]))
	if err := windows.UnmapViewOfFile(addr); err != nil {
		return fmt.Errorf("UnmapViewOfFile: %w", err)
	}
	if m.mapping != 0 {
		windows.CloseHandle(windows.Handle(m.mapping))
		m.mapping = 0
	}
	m.data = nil
	return nil
}
