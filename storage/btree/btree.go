package btree

import (
	"github.com/pkg/errors"

	"xbtree/logger"
	"xbtree/storage/bufferpool"
	"xbtree/storage/page"
	"xbtree/storage/pager"
)

// maxBufferCapacity is the safety bound on the page cache.
const maxBufferCapacity = 1000

// BTree is a disk-backed B+ tree index mapping fixed-width keys to
// (rowId, value) payloads. Leaves are chained in key order; internal
// nodes route by separator keys. All page access goes through the
// buffer pool, whose write-back callback is wired to the pager.
//
// The tree is single-caller: operations run to completion and node
// handles are never retained across operations.
type BTree struct {
	path  string
	pager *pager.Pager
	pool  *bufferpool.BufferPool
}

// Open opens or creates the index backed by path with a page cache of
// bufferCapacity pages (0 means the default, values above the safety
// bound are clamped).
func Open(path string, bufferCapacity int) (*BTree, error) {
	if bufferCapacity > maxBufferCapacity {
		logger.Warnf("buffer capacity %d exceeds the bound, clamping to %d", bufferCapacity, maxBufferCapacity)
		bufferCapacity = maxBufferCapacity
	}

	p, err := pager.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open index %s", path)
	}

	t := &BTree{
		path:  path,
		pager: p,
	}
	t.pool = bufferpool.New(bufferCapacity, p.Save)
	return t, nil
}

// Close flushes every dirty page, persists the metadata record, and
// releases the file.
func (t *BTree) Close() {
	if t.pool != nil {
		t.pool.FlushAll()
	}
	if t.pager != nil {
		if err := t.pager.Close(); err != nil {
			logger.Errorf("close index %s: %v", t.path, err)
		}
		t.pager = nil
	}
}

// loadPage fetches a page through the buffer pool, reading from disk
// on a miss.
func (t *BTree) loadPage(pageID int32) *page.Node {
	if pageID == page.InvalidPageID {
		return nil
	}
	return t.pool.Get(pageID, func() *page.Node {
		return t.pager.Load(pageID)
	})
}

// allocatePage creates a page and makes it resident and dirty.
func (t *BTree) allocatePage(isLeaf bool) *page.Node {
	node := t.pager.Allocate(isLeaf)
	if node == nil {
		return nil
	}
	t.pool.Put(node.Header.PageID, node)
	t.pool.MarkDirty(node.Header.PageID)
	return node
}

// touch re-registers a mutated node with the pool and flags it dirty.
// Every mutated node is touched before the operation returns, so even
// if a pool access in between evicted it, the pool ends up holding the
// mutated node marked dirty.
func (t *BTree) touch(node *page.Node) {
	t.pool.Put(node.Header.PageID, node)
	t.pool.MarkDirty(node.Header.PageID)
}

// findLeaf descends from the root to the leaf owning key. An equal
// separator routes right, since separators are the minimum of their
// right subtree. A broken child reference aborts the descent.
func (t *BTree) findLeaf(key string) *page.Node {
	if t.pager.Meta.RootPageID == page.InvalidPageID {
		return nil
	}

	current := t.loadPage(t.pager.Meta.RootPageID)
	for current != nil && !current.Header.IsLeaf {
		pos := current.FindKey(key)
		if pos < int(current.Header.KeyCount) && current.Entries[pos].KeyString() == key {
			pos++
		}

		if len(current.Children) == 0 {
			return nil
		}
		if pos >= len(current.Children) {
			pos = len(current.Children) - 1
		}
		if pos < 0 {
			pos = 0
		}
		if current.Children[pos] == page.InvalidPageID {
			return nil
		}

		current = t.loadPage(current.Children[pos])
	}

	return current
}

// Insert stores (key, value, rowID). An existing key is overwritten
// in place; a leaf that exceeds the fanout is split. Returns false
// only when no page could be allocated or the descent failed.
func (t *BTree) Insert(key, value, rowID string) bool {
	kv := page.NewKeyEntry(key, rowID, value)

	if t.pager.Meta.RootPageID == page.InvalidPageID {
		root := t.allocatePage(true)
		if root == nil {
			return false
		}
		root.InsertEntry(kv, page.InvalidPageID)
		t.pager.Meta.RootPageID = root.Header.PageID
		t.pager.SaveMetadata()
		return true
	}

	leaf := t.findLeaf(key)
	if leaf == nil {
		return false
	}

	pos := leaf.FindKey(key)
	if pos < int(leaf.Header.KeyCount) && leaf.Entries[pos].KeyString() == key {
		leaf.Entries[pos] = kv
		leaf.Dirty = true
		t.touch(leaf)
		return true
	}

	leaf.InsertEntry(kv, page.InvalidPageID)
	t.touch(leaf)

	if leaf.IsOverfull() {
		t.handleOverflow(leaf)
	}

	return true
}

// Get returns the values stored under key, one []string per matching
// entry. The tree keeps a single entry per key (Insert overwrites),
// so the result holds at most one row; the shape leaves room for
// duplicate support.
func (t *BTree) Get(key string) [][]string {
	result := make([][]string, 0)

	leaf := t.findLeaf(key)
	if leaf == nil {
		return result
	}

	for i := 0; i < int(leaf.Header.KeyCount); i++ {
		if leaf.Entries[i].KeyString() == key {
			result = append(result, []string{leaf.Entries[i].ValueString()})
		}
	}

	return result
}

// Remove deletes key and rebalances if the leaf underflows. Returns
// false when the key is absent.
func (t *BTree) Remove(key string) bool {
	leaf := t.findLeaf(key)
	if leaf == nil {
		return false
	}

	pos := leaf.FindKey(key)
	if pos >= int(leaf.Header.KeyCount) || leaf.Entries[pos].KeyString() != key {
		return false
	}

	leaf.RemoveAt(pos)
	t.touch(leaf)

	if int(leaf.Header.KeyCount) < leaf.MinKeys() &&
		leaf.Header.PageID != t.pager.Meta.RootPageID {
		t.handleUnderflow(leaf)
	}

	return true
}

// SetBufferCapacity swaps in a pool of the given capacity, flushing
// the old one first.
func (t *BTree) SetBufferCapacity(n int) {
	if n > maxBufferCapacity {
		n = maxBufferCapacity
	}
	newPool := bufferpool.New(n, t.pager.Save)
	t.pool.FlushAll()
	t.pool = newPool
}

// BufferStats reports the page cache snapshot.
func (t *BTree) BufferStats() bufferpool.Stats {
	return t.pool.Stats()
}

// FlushBuffer writes every dirty page back and returns the count.
func (t *BTree) FlushBuffer() int {
	return t.pool.FlushAll()
}
