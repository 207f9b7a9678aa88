package bptreedb

import "iter"

// KV is an embedded, single-writer, persistent ordered key-value store.
// It owns one FilePageStore and drives the B+tree engine (btree.go)
// through it on every call; there is no background writer and no
// internal locking, so concurrent use from multiple goroutines is not
// safe.
type KV struct {
	store *FilePageStore
}

// Open opens or creates the database file at path.
func Open(path string) (*KV, error) {
	store, err := OpenFilePageStore(path)
	if err != nil {
		return nil, err
	}
	return &KV{store: store}, nil
}

// Insert sets key to val, inserting it if absent or overwriting it if
// present.
func (kv *KV) Insert(key, val []byte) error {
	mark := kv.store.mark()
	if err := insertTopLevel(kv.store, key, val); err != nil {
		kv.store.rollback(mark)
		return err
	}
	return nil
}

// Delete removes key if present, reporting whether it was found.
func (kv *KV) Delete(key []byte) (bool, error) {
	mark := kv.store.mark()
	found, err := deleteTopLevel(kv.store, key)
	if err != nil {
		kv.store.rollback(mark)
		return false, err
	}
	return found, nil
}

// Get performs a point lookup.
func (kv *KV) Get(key []byte) ([]byte, bool, error) {
	return lookupTopLevel(kv.store, key)
}

// All returns an in-order iterator over every key currently in the
// store. The iterator reads the root when iteration begins and observes
// the tree as of that moment, since Get on the page store always returns
// owned copies.
func (kv *KV) All() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		root := kv.store.Root()
		_, _ = walkInOrder(kv.store, root, yield)
	}
}

// Flush durably commits all buffered mutations.
func (kv *KV) Flush() error {
	return kv.store.Flush()
}

// Close flushes and releases the backing file.
func (kv *KV) Close() error {
	return kv.store.Close()
}
