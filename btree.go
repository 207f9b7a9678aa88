package bptreedb

import "bytes"

// This file is the B+tree engine: the recursive copy-on-write insert and
// delete algorithms driven by a PageStore. Every mutation reads pages
// through the store and produces brand new pages bottom-up; it never
// mutates a page fetched from the store in place.

// treeInsert walks down from node along the lookupLE path, rewriting
// every page on the way to produce a new subtree holding key/val.
func treeInsert(store PageStore, node *page, key, val []byte) (*page, error) {
	i := node.lookupLE(key)

	if node.nType() == typeLeaf {
		if bytes.Equal(node.getKey(i), key) {
			return leafUpdate(node, i, key, val), nil
		}
		return leafInsert(node, i+1, key, val), nil
	}

	childID := node.getPtr(i)
	child, err := store.Get(childID)
	if err != nil {
		return nil, err
	}
	if err := store.Release(childID); err != nil {
		return nil, err
	}

	newChild, err := treeInsert(store, child, key, val)
	if err != nil {
		return nil, err
	}
	children := newChild.split()
	return replaceNChildren(store, node, i, children)
}

func leafUpdate(old *page, i int, key, val []byte) *page {
	out := newPage(2 * PageSize)
	out.setHeader(typeLeaf, old.nKeys())
	out.copyRange(old, 0, 0, i)
	out.insertKV(i, 0, key, val)
	out.copyRange(old, i+1, i+1, old.nKeys()-i-1)
	return out
}

func leafInsert(old *page, at int, key, val []byte) *page {
	out := newPage(2 * PageSize)
	out.setHeader(typeLeaf, old.nKeys()+1)
	out.copyRange(old, 0, 0, at)
	out.insertKV(at, 0, key, val)
	out.copyRange(old, at+1, at, old.nKeys()-at)
	return out
}

// replaceNChildren rebuilds an internal page with slot i of parentOld
// replaced by one routing entry per child (each freshly allocated). The
// result has parentOld.nKeys + len(children) - 1 keys.
func replaceNChildren(store PageStore, parentOld *page, i int, children []*page) (*page, error) {
	out := newPage(2 * PageSize)
	out.setHeader(typeInternal, parentOld.nKeys()+len(children)-1)
	out.copyRange(parentOld, 0, 0, i)
	for j, c := range children {
		id, err := store.Allocate(c)
		if err != nil {
			return nil, err
		}
		out.insertKV(i+j, id, c.getKey(0), nil)
	}
	out.copyRange(parentOld, i+len(children), i+1, parentOld.nKeys()-(i+1))
	return out, nil
}

// replace2Children rebuilds an internal page where a single merged child
// replaces a contiguous pair of routing slots (i, i+1).
func replace2Children(parentOld *page, i int, ptr PageID, key []byte) *page {
	out := newPage(PageSize)
	out.setHeader(typeInternal, parentOld.nKeys()-1)
	out.copyRange(parentOld, 0, 0, i)
	out.insertKV(i, ptr, key, nil)
	out.copyRange(parentOld, i+1, i+2, parentOld.nKeys()-(i+2))
	return out
}

// treeDelete walks down from node along the lookupLE path and removes
// key if present. It returns (newNode, found, err); found is false when
// the key was absent, in which case newNode is nil and no store
// mutation has occurred at this level.
func treeDelete(store PageStore, node *page, key []byte) (*page, bool, error) {
	i := node.lookupLE(key)

	if node.nType() == typeLeaf {
		if !bytes.Equal(node.getKey(i), key) {
			return nil, false, nil
		}
		return leafDelete(node, i), true, nil
	}

	childID := node.getPtr(i)
	child, err := store.Get(childID)
	if err != nil {
		return nil, false, err
	}

	updated, found, err := treeDelete(store, child, key)
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	if err := store.Release(childID); err != nil {
		return nil, false, err
	}

	newNode, err := applyMergeDecision(store, node, updated, i)
	if err != nil {
		return nil, false, err
	}
	return newNode, true, nil
}

func leafDelete(old *page, i int) *page {
	out := newPage(PageSize)
	out.setHeader(typeLeaf, old.nKeys()-1)
	out.copyRange(old, 0, 0, i)
	out.copyRange(old, i, i+1, old.nKeys()-i-1)
	return out
}

// applyMergeDecision decides whether the shrunk child at slot i should
// be merged with a sibling, and returns the rebuilt parent page in every
// case (merge-left, merge-right, or no merge).
func applyMergeDecision(store PageStore, parent, child *page, i int) (*page, error) {
	if child.nBytes() > PageSize/4 {
		return replaceNChildren(store, parent, i, []*page{child})
	}

	if i > 0 {
		leftID := parent.getPtr(i - 1)
		sibling, err := store.Get(leftID)
		if err != nil {
			return nil, err
		}
		if sibling.nBytes()+child.nBytes()-HeaderSize <= PageSize {
			if err := store.Release(leftID); err != nil {
				return nil, err
			}
			mergedChild := merge(sibling, child)
			ptr, err := store.Allocate(mergedChild)
			if err != nil {
				return nil, err
			}
			return replace2Children(parent, i-1, ptr, mergedChild.getKey(0)), nil
		}
	}

	if i+1 < parent.nKeys() {
		rightID := parent.getPtr(i + 1)
		sibling, err := store.Get(rightID)
		if err != nil {
			return nil, err
		}
		if child.nBytes()+sibling.nBytes()-HeaderSize <= PageSize {
			if err := store.Release(rightID); err != nil {
				return nil, err
			}
			mergedChild := merge(child, sibling)
			ptr, err := store.Allocate(mergedChild)
			if err != nil {
				return nil, err
			}
			return replace2Children(parent, i, ptr, mergedChild.getKey(0)), nil
		}
	}

	return replaceNChildren(store, parent, i, []*page{child})
}

// validateInsertArgs rejects an out-of-range key or value length before
// any mutation is attempted, so a rejected call has no side effects.
func validateInsertArgs(key, val []byte) error {
	if len(key) < 1 || len(key) > KeyMax {
		return newError(ErrBadArgument, "key length out of range")
	}
	if len(val) > ValMax {
		return newError(ErrBadArgument, "value length out of range")
	}
	return nil
}

func validateKeyArg(key []byte) error {
	if len(key) < 1 || len(key) > KeyMax {
		return newError(ErrBadArgument, "key length out of range")
	}
	return nil
}

// insertTopLevel drives a full insert from the current root: it bootstraps
// an empty tree with a sentinel leaf, otherwise recurses via treeInsert
// and folds any resulting split back into a (possibly taller) root.
func insertTopLevel(store PageStore, key, val []byte) error {
	if err := validateInsertArgs(key, val); err != nil {
		return err
	}

	root := store.Root()
	if root == 0 {
		leaf := newPage(PageSize)
		leaf.setHeader(typeLeaf, 2)
		leaf.insertKV(0, 0, nil, nil) // sentinel: empty key, empty value
		leaf.insertKV(1, 0, key, val)
		id, err := store.Allocate(leaf)
		if err != nil {
			return err
		}
		store.SetRoot(id)
		return nil
	}

	rootPage, err := store.Get(root)
	if err != nil {
		return err
	}
	if err := store.Release(root); err != nil {
		return err
	}

	updated, err := treeInsert(store, rootPage, key, val)
	if err != nil {
		return err
	}
	children := updated.split()

	if len(children) > 1 {
		newRoot := newPage(2 * PageSize)
		newRoot.setHeader(typeInternal, len(children))
		for j, c := range children {
			id, err := store.Allocate(c)
			if err != nil {
				return err
			}
			newRoot.insertKV(j, id, c.getKey(0), nil)
		}
		newRoot.resize(PageSize)
		id, err := store.Allocate(newRoot)
		if err != nil {
			return err
		}
		store.SetRoot(id)
		return nil
	}

	id, err := store.Allocate(children[0])
	if err != nil {
		return err
	}
	store.SetRoot(id)
	return nil
}

// deleteTopLevel drives a full delete from the current root, collapsing
// the tree's height by one level when the new root is an internal page
// holding a single child.
func deleteTopLevel(store PageStore, key []byte) (bool, error) {
	if err := validateKeyArg(key); err != nil {
		return false, err
	}

	root := store.Root()
	if root == 0 {
		return false, nil
	}

	rootPage, err := store.Get(root)
	if err != nil {
		return false, err
	}

	newRoot, found, err := treeDelete(store, rootPage, key)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	if err := store.Release(root); err != nil {
		return false, err
	}

	if newRoot.nType() == typeInternal && newRoot.nKeys() == 1 {
		store.SetRoot(newRoot.getPtr(0))
		return true, nil
	}

	id, err := store.Allocate(newRoot)
	if err != nil {
		return false, err
	}
	store.SetRoot(id)
	return true, nil
}

// lookupTopLevel walks the tree from the root for a single point lookup.
func lookupTopLevel(store PageStore, key []byte) ([]byte, bool, error) {
	if err := validateKeyArg(key); err != nil {
		return nil, false, err
	}

	root := store.Root()
	if root == 0 {
		return nil, false, nil
	}

	node, err := store.Get(root)
	if err != nil {
		return nil, false, err
	}
	for {
		i := node.lookupLE(key)
		if node.nType() == typeLeaf {
			if !bytes.Equal(node.getKey(i), key) {
				return nil, false, nil
			}
			val := node.getVal(i)
			out := make([]byte, len(val))
			copy(out, val)
			return out, true, nil
		}
		childID := node.getPtr(i)
		node, err = store.Get(childID)
		if err != nil {
			return nil, false, err
		}
	}
}

// walkInOrder traverses the tree in ascending key order, skipping the
// sentinel (empty key) entry and invoking fn for every real key; fn
// returning false stops the walk early.
func walkInOrder(store PageStore, id PageID, fn func(key, val []byte) bool) (bool, error) {
	if id == 0 {
		return true, nil
	}
	node, err := store.Get(id)
	if err != nil {
		return false, err
	}
	if node.nType() == typeLeaf {
		for i := 0; i < node.nKeys(); i++ {
			k := node.getKey(i)
			if len(k) == 0 {
				continue // sentinel
			}
			if !fn(k, node.getVal(i)) {
				return false, nil
			}
		}
		return true, nil
	}
	for i := 0; i < node.nKeys(); i++ {
		cont, err := walkInOrder(store, node.getPtr(i), fn)
		if err != nil {
			return false, err
		}
		if !cont {
			return false, nil
		}
	}
	return true, nil
}
