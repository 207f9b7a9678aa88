package bptreedb

import (
	"unsafe"

	"github.com/dkristev/bptreedb/internal/fastmap"
)

// This file is the commit controller: it buffers newly produced pages
// in memory, assigns them tentative ids, and on flush writes them into
// the mapped file pool in order, updates the header's root pointer and
// flushed counter, and syncs.
//
// FilePageStore also keeps a read cache of decoded flushed pages, keyed
// by PageId, using fastmap.Uint64Map instead of a built-in Go map:
// PageIds are sequential, and fastmap's fibonacci hashing spreads
// sequential keys across buckets well.
type FilePageStore struct {
	pool    *pagePool
	flushed PageID
	temp    []*page
	root    PageID
	cache   fastmap.Uint64Map
}

// OpenFilePageStore opens or creates path as a b+tree database file and
// returns the commit controller driving it.
func OpenFilePageStore(path string) (*FilePageStore, error) {
	pool, err := openPagePool(path)
	if err != nil {
		return nil, err
	}

	hdr := pool.header()
	blank := true
	for _, b := range hdr[headerSignatureOffset : headerSignatureOffset+headerSignatureSize] {
		if b != 0 {
			blank = false
			break
		}
	}
	root := getU64(hdr, headerRootOffset)
	flushed := getU64(hdr, headerFlushedOffset)
	if blank && root == 0 && flushed == 0 {
		copy(hdr[headerSignatureOffset:], []byte(signature))
		putU64(hdr, headerRootOffset, 0)
		putU64(hdr, headerFlushedOffset, 0)
		pool.markHeaderDirty()
	} else if string(hdr[headerSignatureOffset:headerSignatureOffset+headerSignatureSize]) != signature {
		pool.close()
		return nil, newError(ErrInvalidFormat, "file signature mismatch")
	}

	if flushed < 1 {
		flushed = 1
		putU64(hdr, headerFlushedOffset, flushed)
		pool.markHeaderDirty()
	}

	return &FilePageStore{
		pool:    pool,
		flushed: PageID(flushed),
		root:    PageID(root),
	}, nil
}

func (s *FilePageStore) Get(id PageID) (*page, error) {
	if id < s.flushed {
		if cached := s.cache.Get(uint64(id)); cached != nil {
			src := (*[]byte)(cached)
			out := make([]byte, len(*src))
			copy(out, *src)
			return newPageFromBytes(out), nil
		}
		data, err := s.pool.read(id)
		if err != nil {
			return nil, err
		}
		p := newPageFromBytes(data)
		if err := p.validate(); err != nil {
			return nil, err
		}
		cached := make([]byte, len(data))
		copy(cached, data)
		s.cache.Set(uint64(id), unsafe.Pointer(&cached))
		return p, nil
	}

	idx := int(id - s.flushed)
	if idx < 0 || idx >= len(s.temp) {
		return nil, newError(ErrCorruption, "page id not yet assigned")
	}
	src := s.temp[idx]
	out := make([]byte, len(src.buf))
	copy(out, src.buf)
	return newPageFromBytes(out), nil
}

func (s *FilePageStore) Allocate(p *page) (PageID, error) {
	if p.nBytes() > PageSize {
		return 0, newError(ErrBadArgument, "page exceeds PageSize")
	}
	id := s.flushed + PageID(len(s.temp))
	cp := newPage(PageSize)
	copy(cp.buf, p.buf)
	s.temp = append(s.temp, cp)
	return id, nil
}

// Release is a no-op: this core keeps no free list, so a flushed page's
// id simply becomes unreachable once nothing routes to it, and an
// unflushed tentative id was never durable in the first place. The read
// cache still drops the entry so it cannot outlive a page it no longer
// owns.
func (s *FilePageStore) Release(id PageID) error {
	s.cache.Delete(uint64(id))
	return nil
}

func (s *FilePageStore) Root() PageID {
	return s.root
}

func (s *FilePageStore) SetRoot(id PageID) {
	s.root = id
}

// Flush writes every buffered page in order, advances flushed, then
// persists the header (root, flushed) and syncs every dirty window.
func (s *FilePageStore) Flush() error {
	for _, p := range s.temp {
		if err := s.pool.write(s.flushed, p.buf); err != nil {
			return err
		}
		s.flushed++
	}
	s.temp = s.temp[:0]

	hdr := s.pool.header()
	putU64(hdr, headerRootOffset, uint64(s.root))
	putU64(hdr, headerFlushedOffset, uint64(s.flushed))
	s.pool.markHeaderDirty()

	return s.pool.flush()
}

// Close flushes outstanding state and releases the underlying mapping.
func (s *FilePageStore) Close() error {
	if err := s.Flush(); err != nil {
		return err
	}
	return s.pool.close()
}

// mark/rollback let a caller discard every tentative page allocated
// since the mutation began when a later step fails partway through.
// Root is never touched mid-mutation (SetRoot is only ever called after
// every recursive step has already succeeded), so rolling back temp
// alone is sufficient to restore the pre-call snapshot.
func (s *FilePageStore) mark() int {
	return len(s.temp)
}

func (s *FilePageStore) rollback(mark int) {
	s.temp = s.temp[:mark]
}
