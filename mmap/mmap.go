// Package mmap maps fixed-size windows of a database file into memory so
// the page pool (see pagepool.go in the parent package) can read and
// write tree pages in place, without a read/write syscall per page.
package mmap

// Map is one mapped window over an open file descriptor.
type Map struct {
	data []byte

	// handle/mapping back the Windows file-mapping object for this
	// window; always zero on unix builds.
	handle  uintptr
	mapping uintptr
}

// Data returns the window's bytes. The slice is only valid until Close.
func (m *Map) Data() []byte {
	return m.data
}
