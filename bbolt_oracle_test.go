package bptreedb

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"
)

// This file cross-checks the engine against go.etcd.io/bbolt, used
// purely as a correctness oracle: a random sequence of insert/delete
// operations is replayed against both stores and the resulting key sets
// and ordered traversals must agree.

var bucketName = []byte("oracle")

func TestOracleAgreesWithBboltOverRandomOps(t *testing.T) {
	dir := t.TempDir()

	kv, err := Open(filepath.Join(dir, "kv.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer kv.Close()

	db, err := bolt.Open(filepath.Join(dir, "bolt.db"), 0600, nil)
	if err != nil {
		t.Fatalf("bolt.Open: %v", err)
	}
	defer db.Close()
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	model := map[string]string{}
	const universe = 40

	for i := 0; i < 500; i++ {
		key := []byte{byte('a' + rng.Intn(universe))}
		if rng.Intn(4) == 0 {
			delete(model, string(key))
			if _, err := kv.Delete(key); err != nil {
				t.Fatalf("kv.Delete: %v", err)
			}
			if err := db.Update(func(tx *bolt.Tx) error {
				return tx.Bucket(bucketName).Delete(key)
			}); err != nil {
				t.Fatalf("bolt delete: %v", err)
			}
			continue
		}

		val := []byte{byte(rng.Intn(256)), byte(rng.Intn(256))}
		model[string(key)] = string(val)
		if err := kv.Insert(key, val); err != nil {
			t.Fatalf("kv.Insert: %v", err)
		}
		if err := db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketName).Put(key, val)
		}); err != nil {
			t.Fatalf("bolt put: %v", err)
		}
	}

	for k, v := range model {
		got, found, err := kv.Get([]byte(k))
		if err != nil {
			t.Fatalf("kv.Get(%q): %v", k, err)
		}
		if !found || !bytes.Equal(got, []byte(v)) {
			t.Fatalf("kv.Get(%q) = (%q, %v), want (%q, true)", k, got, found, v)
		}
	}

	var kvOrder [][]byte
	for k := range kv.All() {
		cp := make([]byte, len(k))
		copy(cp, k)
		kvOrder = append(kvOrder, cp)
	}

	var boltOrder [][]byte
	if err := db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketName).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			cp := make([]byte, len(k))
			copy(cp, k)
			boltOrder = append(boltOrder, cp)
		}
		return nil
	}); err != nil {
		t.Fatalf("bolt cursor: %v", err)
	}

	if len(kvOrder) != len(boltOrder) {
		t.Fatalf("key count mismatch: bptreedb=%d bbolt=%d", len(kvOrder), len(boltOrder))
	}
	for i := range kvOrder {
		if !bytes.Equal(kvOrder[i], boltOrder[i]) {
			t.Fatalf("order mismatch at %d: bptreedb=%q bbolt=%q", i, kvOrder[i], boltOrder[i])
		}
	}
}
