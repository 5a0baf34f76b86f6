package btree

import (
	"xbtree/storage/page"
)

// handleUnderflow restores the minimum-occupancy invariant after a
// delete. Borrowing from a sibling is preferred (left first); merging
// is the fallback (left-preferred as well). A merge can underflow the
// parent, so the cascade iterates upward.
func (t *BTree) handleUnderflow(node *page.Node) {
	for node != nil {
		if int(node.Header.KeyCount) >= node.MinKeys() {
			return
		}

		if node.Header.PageID == t.pager.Meta.RootPageID {
			t.collapseRoot(node)
			return
		}

		parent := t.loadPage(node.Header.ParentID)
		if parent == nil {
			return
		}

		nodeIndex := -1
		for i, childID := range parent.Children {
			if childID == node.Header.PageID {
				nodeIndex = i
				break
			}
		}
		if nodeIndex == -1 {
			return
		}

		if nodeIndex > 0 {
			left := t.loadPage(parent.Children[nodeIndex-1])
			if left != nil && int(left.Header.KeyCount) > left.MinKeys() {
				t.redistributeFromLeft(node, left, parent, nodeIndex-1)
				return
			}
		}

		if nodeIndex < len(parent.Children)-1 {
			right := t.loadPage(parent.Children[nodeIndex+1])
			if right != nil && int(right.Header.KeyCount) > right.MinKeys() {
				t.redistributeFromRight(node, right, parent, nodeIndex)
				return
			}
		}

		merged := false
		if nodeIndex > 0 {
			left := t.loadPage(parent.Children[nodeIndex-1])
			if left != nil {
				t.mergeNodes(left, node, parent, nodeIndex-1)
				merged = true
			}
		}
		if !merged && nodeIndex < len(parent.Children)-1 {
			right := t.loadPage(parent.Children[nodeIndex+1])
			if right != nil {
				t.mergeNodes(node, right, parent, nodeIndex)
				merged = true
			}
		}
		if !merged {
			return
		}

		node = parent
	}
}

// collapseRoot replaces an internal root that ran out of keys with
// its only remaining child.
func (t *BTree) collapseRoot(root *page.Node) {
	if root.Header.IsLeaf || root.Header.KeyCount != 0 {
		return
	}
	if len(root.Children) == 0 || root.Children[0] == page.InvalidPageID {
		return
	}

	t.pager.Meta.RootPageID = root.Children[0]
	newRoot := t.loadPage(t.pager.Meta.RootPageID)
	if newRoot != nil {
		newRoot.Header.ParentID = page.InvalidPageID
		t.touch(newRoot)
	}
	t.pager.SaveMetadata()
	t.pager.Meta.PageCount--
}

// redistributeFromLeft borrows the left sibling's greatest entry.
// For leaves the entry moves directly and the separator becomes the
// node's new first key; for internal nodes the separator rotates down
// into the node while the sibling's greatest key rotates up, and the
// sibling's last child migrates along with its parent pointer.
func (t *BTree) redistributeFromLeft(node, left, parent *page.Node, parentKeyIndex int) {
	if node.Header.IsLeaf {
		borrowed := left.Entries[len(left.Entries)-1]
		left.Entries = left.Entries[:len(left.Entries)-1]
		left.Header.KeyCount--

		node.Entries = append(node.Entries, page.KeyEntry{})
		copy(node.Entries[1:], node.Entries[0:])
		node.Entries[0] = borrowed
		node.Header.KeyCount++

		parent.Entries[parentKeyIndex] = node.Entries[0]
	} else {
		node.Entries = append(node.Entries, page.KeyEntry{})
		copy(node.Entries[1:], node.Entries[0:])
		node.Entries[0] = parent.Entries[parentKeyIndex]
		node.Header.KeyCount++

		parent.Entries[parentKeyIndex] = left.Entries[len(left.Entries)-1]
		left.Entries = left.Entries[:len(left.Entries)-1]
		left.Header.KeyCount--

		migrated := left.Children[len(left.Children)-1]
		left.Children = left.Children[:len(left.Children)-1]
		node.Children = append(node.Children, 0)
		copy(node.Children[1:], node.Children[0:])
		node.Children[0] = migrated

		t.reparent(migrated, node.Header.PageID)
	}

	node.Dirty = true
	left.Dirty = true
	parent.Dirty = true
	t.touch(node)
	t.touch(left)
	t.touch(parent)
}

// redistributeFromRight borrows the right sibling's least entry; the
// mirror image of redistributeFromLeft.
func (t *BTree) redistributeFromRight(node, right, parent *page.Node, parentKeyIndex int) {
	if node.Header.IsLeaf {
		node.Entries = append(node.Entries, right.Entries[0])
		node.Header.KeyCount++

		right.Entries = append(right.Entries[:0], right.Entries[1:]...)
		right.Header.KeyCount--

		parent.Entries[parentKeyIndex] = right.Entries[0]
	} else {
		node.Entries = append(node.Entries, parent.Entries[parentKeyIndex])
		node.Header.KeyCount++

		parent.Entries[parentKeyIndex] = right.Entries[0]
		right.Entries = append(right.Entries[:0], right.Entries[1:]...)
		right.Header.KeyCount--

		migrated := right.Children[0]
		right.Children = append(right.Children[:0], right.Children[1:]...)
		node.Children = append(node.Children, migrated)

		t.reparent(migrated, node.Header.PageID)
	}

	node.Dirty = true
	right.Dirty = true
	parent.Dirty = true
	t.touch(node)
	t.touch(right)
	t.touch(parent)
}

// mergeNodes folds right into left and drops the separating key from
// the parent. Leaf merges splice the leaf chain; internal merges pull
// the separator down and adopt right's children.
func (t *BTree) mergeNodes(left, right, parent *page.Node, parentKeyIndex int) {
	if left.Header.IsLeaf {
		left.Entries = append(left.Entries, right.Entries...)
		left.Header.KeyCount += right.Header.KeyCount

		left.Header.NextLeafID = right.Header.NextLeafID
	} else {
		left.Entries = append(left.Entries, parent.Entries[parentKeyIndex])
		left.Header.KeyCount++

		left.Entries = append(left.Entries, right.Entries...)
		left.Header.KeyCount += right.Header.KeyCount

		for _, childID := range right.Children {
			left.Children = append(left.Children, childID)
			if childID != page.InvalidPageID {
				t.reparent(childID, left.Header.PageID)
			}
		}
	}

	parent.RemoveAt(parentKeyIndex)

	left.Dirty = true
	t.touch(left)
	t.touch(parent)

	t.pager.Meta.PageCount--
	t.pager.Meta.MergeCount++
}

// reparent updates a migrated child's parent pointer.
func (t *BTree) reparent(childID, parentID int32) {
	if childID == page.InvalidPageID {
		return
	}
	child := t.loadPage(childID)
	if child == nil {
		return
	}
	child.Header.ParentID = parentID
	t.touch(child)
}
