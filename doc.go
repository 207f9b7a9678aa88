// Package bptreedb is an embedded, single-writer, persistent ordered
// key-value store built on a copy-on-write B+tree whose pages are laid
// out in a fixed-size on-disk format and accessed through memory-mapped
// file regions.
//
// Keys and values are arbitrary byte strings with bounded lengths
// (KeyMax, ValMax). The store supports point insert, point delete, point
// lookup and ordered traversal. There is no concurrent multi-writer
// control, no MVCC, no compression, no checksums: exactly one writer at
// a time, arranged by a surrounding layer.
//
// Basic usage:
//
//	kv, err := bptreedb.Open("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer kv.Close()
//
//	if err := kv.Insert([]byte("key"), []byte("value")); err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := kv.Flush(); err != nil {
//	    log.Fatal(err)
//	}
package bptreedb
