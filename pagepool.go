package bptreedb

import (
	"os"

	"github.com/dkristev/bptreedb/mmap"
)

// This file is the mapped file pool: a growing list of fixed-size mmap
// windows over the backing file, mediating reads and writes at PageSize
// granularity and hosting the file header.
//
// A window addresses windowSize/PageSize tree pages; windowSize is the
// OS's mmap granularity (os.Getpagesize()), which on every supported
// platform is itself a multiple of PageSize. PageId 0 always resolves to
// byte 0 of window 0: the file header and tree page 0 share one slot by
// construction, which is why flushed starts at 1.
type window struct {
	m     *mmap.Map
	dirty bool
}

type pagePool struct {
	f              *os.File
	windowSize     int
	pagesPerWindow int
	windows        []*window
}

func openPagePool(path string) (*pagePool, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, wrapError(ErrIo, "open database file", err)
	}

	windowSize := os.Getpagesize()
	if windowSize < PageSize {
		windowSize = PageSize
	}
	windowSize -= windowSize % PageSize

	pool := &pagePool{
		f:              f,
		windowSize:     windowSize,
		pagesPerWindow: windowSize / PageSize,
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, wrapError(ErrIo, "stat database file", err)
	}
	size := fi.Size()
	if size < int64(windowSize) {
		if err := f.Truncate(int64(windowSize)); err != nil {
			f.Close()
			return nil, wrapError(ErrIo, "extend database file", err)
		}
		size = int64(windowSize)
	}

	// Map every window the file already holds, so pages flushed by an
	// earlier session are readable after reopen.
	if err := pool.ensureWindow(int(size/int64(windowSize)) - 1); err != nil {
		pool.close()
		return nil, err
	}
	return pool, nil
}

func (p *pagePool) ensureWindow(idx int) error {
	for len(p.windows) <= idx {
		next := len(p.windows)
		needed := int64(next+1) * int64(p.windowSize)

		fi, err := p.f.Stat()
		if err != nil {
			return wrapError(ErrIo, "stat database file", err)
		}
		if fi.Size() < needed {
			if err := p.f.Truncate(needed); err != nil {
				return wrapError(ErrIo, "grow database file", err)
			}
		}

		m, err := mmap.New(int(p.f.Fd()), int64(next)*int64(p.windowSize), p.windowSize, true)
		if err != nil {
			return wrapError(ErrIo, "map database window", err)
		}
		p.windows = append(p.windows, &window{m: m})
	}
	return nil
}

func (p *pagePool) locate(id PageID) (windowIdx, offset int) {
	windowIdx = int(id) / p.pagesPerWindow
	offset = (int(id) % p.pagesPerWindow) * PageSize
	return
}

// read returns an owned copy of the PageSize bytes at id. Windows are
// mapped when the pool is opened (every window the file holds) and when
// a write grows the file; reading an id beyond the mapped range is a
// corruption, since flushed only ever advances past written pages.
func (p *pagePool) read(id PageID) ([]byte, error) {
	wi, off := p.locate(id)
	if wi >= len(p.windows) {
		return nil, newError(ErrCorruption, "page id beyond mapped file range")
	}
	data := p.windows[wi].m.Data()
	out := make([]byte, PageSize)
	copy(out, data[off:off+PageSize])
	return out, nil
}

// write copies up to PageSize bytes into id's slot and marks the owning
// window dirty, growing the pool first if needed.
func (p *pagePool) write(id PageID, data []byte) error {
	wi, off := p.locate(id)
	if err := p.ensureWindow(wi); err != nil {
		return err
	}
	w := p.windows[wi]
	copy(w.m.Data()[off:off+PageSize], data)
	w.dirty = true
	return nil
}

// header returns the live (not a copy) first headerReservedSize bytes of
// the file, i.e. PageId 0's slot. Callers must only read/write through
// getU64/putU64 etc. and must mark window 0 dirty themselves via
// markHeaderDirty after writing.
func (p *pagePool) header() []byte {
	return p.windows[0].m.Data()[:headerReservedSize]
}

func (p *pagePool) markHeaderDirty() {
	p.windows[0].dirty = true
}

func (p *pagePool) flush() error {
	for _, w := range p.windows {
		if !w.dirty {
			continue
		}
		if err := w.m.Sync(); err != nil {
			return wrapError(ErrIo, "sync mapped window", err)
		}
		w.dirty = false
	}
	return nil
}

func (p *pagePool) close() error {
	var firstErr error
	for _, w := range p.windows {
		if err := w.m.Close(); err != nil && firstErr == nil {
			firstErr = wrapError(ErrIo, "unmap window", err)
		}
	}
	if err := p.f.Close(); err != nil && firstErr == nil {
		firstErr = wrapError(ErrIo, "close database file", err)
	}
	return firstErr
}
