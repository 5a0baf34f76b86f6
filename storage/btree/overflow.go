package btree

import (
	"xbtree/storage/page"
)

// handleOverflow splits overfull nodes, walking the cascade up the
// tree with an explicit work stack instead of recursion. An overfull
// image does not fit a page, so the node is pinned until its split
// lands: eviction must never write it back half-serialized.
func (t *BTree) handleOverflow(node *page.Node) {
	stack := []*page.Node{node}

	for len(stack) > 0 {
		current := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if current == nil || !current.IsOverfull() {
			continue
		}

		t.pool.Pin(current.Header.PageID)

		sibling := t.allocatePage(current.Header.IsLeaf)
		if sibling == nil {
			t.pool.Unpin(current.Header.PageID)
			continue
		}

		promoted := current.Split(sibling)
		t.pager.Meta.SplitCount++

		t.touch(current)
		t.touch(sibling)

		// children handed to the sibling still point at current
		if !sibling.Header.IsLeaf {
			for _, childID := range sibling.Children {
				t.reparent(childID, sibling.Header.PageID)
			}
		}

		if current.Header.PageID == t.pager.Meta.RootPageID {
			newRoot := t.allocatePage(false)
			if newRoot == nil {
				t.pool.Unpin(current.Header.PageID)
				continue
			}

			newRoot.Children = append(newRoot.Children, current.Header.PageID, sibling.Header.PageID)
			newRoot.Entries = append(newRoot.Entries, promoted)
			newRoot.Header.KeyCount = 1

			current.Header.ParentID = newRoot.Header.PageID
			sibling.Header.ParentID = newRoot.Header.PageID
			t.touch(current)
			t.touch(sibling)

			t.pager.Meta.RootPageID = newRoot.Header.PageID
			t.pager.SaveMetadata()

			t.touch(newRoot)
		} else {
			parent := t.loadPage(current.Header.ParentID)
			if parent == nil {
				t.pool.Unpin(current.Header.PageID)
				continue
			}

			sibling.Header.ParentID = parent.Header.PageID
			t.touch(sibling)

			t.insertSeparator(parent, promoted, sibling.Header.PageID)

			if parent.IsOverfull() {
				stack = append(stack, parent)
			}
		}

		t.pool.Unpin(current.Header.PageID)
	}
}

// insertSeparator places a promoted key and its right child into an
// internal node. The node may transiently exceed its fanout; the
// caller splits it before the operation returns.
func (t *BTree) insertSeparator(node *page.Node, kv page.KeyEntry, rightChildID int32) {
	if node == nil || node.Header.IsLeaf {
		return
	}

	pos := node.FindKey(kv.KeyString())

	node.Entries = append(node.Entries, page.KeyEntry{})
	copy(node.Entries[pos+1:], node.Entries[pos:])
	node.Entries[pos] = kv
	node.Header.KeyCount++

	if rightChildID != page.InvalidPageID {
		node.Children = append(node.Children, 0)
		copy(node.Children[pos+2:], node.Children[pos+1:])
		node.Children[pos+1] = rightChildID
	}

	node.Dirty = true
	t.touch(node)
}
