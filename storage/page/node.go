package page

import (
	"xbtree/logger"
)

// Header is the fixed page header. ParentID is InvalidPageID for the
// root; NextLeafID is InvalidPageID for the last leaf and for
// internal pages.
type Header struct {
	PageID     int32
	ParentID   int32
	IsLeaf     bool
	KeyCount   int32
	NextLeafID int32
}

// Node is the in-memory image of one page: a header, the ordered
// entries, and (for internal nodes) KeyCount+1 child page ids.
// Header.KeyCount always equals len(Entries).
type Node struct {
	Header   Header
	Entries  []KeyEntry
	Children []int32
	Dirty    bool
}

// NewNode returns an empty node for pageID.
func NewNode(pageID int32, isLeaf bool) *Node {
	n := &Node{
		Header: Header{
			PageID:     pageID,
			ParentID:   InvalidPageID,
			IsLeaf:     isLeaf,
			KeyCount:   0,
			NextLeafID: InvalidPageID,
		},
		Entries: make([]KeyEntry, 0, MaxKeysPerPage),
	}
	if !isLeaf {
		n.Children = make([]int32, 0, MaxInternalKeys+1)
	}
	return n
}

// MaxKeys is the fanout for this node's kind. Internal nodes hold
// fewer entries than leaves because the child array shares the page.
func (n *Node) MaxKeys() int {
	if n.Header.IsLeaf {
		return MaxKeysPerPage
	}
	return MaxInternalKeys
}

// MinKeys is the underflow threshold for this node's kind.
func (n *Node) MinKeys() int {
	if n.Header.IsLeaf {
		return MinKeysPerPage
	}
	return MinInternalKeys
}

// IsOverfull reports whether the node exceeded its fanout. Inserts
// admit one entry past MaxKeys; the tree splits the node before the
// operation returns, so pages on disk stay within the fanout.
func (n *Node) IsOverfull() bool {
	return int(n.Header.KeyCount) > n.MaxKeys()
}

// FindKey returns the index of the first entry whose key is >= key.
func (n *Node) FindKey(key string) int {
	left, right := 0, int(n.Header.KeyCount)
	for left < right {
		mid := left + (right-left)/2
		if n.Entries[mid].KeyString() >= key {
			right = mid
		} else {
			left = mid + 1
		}
	}
	return left
}

// InsertEntry places kv at its sorted position. For internal nodes a
// non-invalid childID is inserted to the right of the new key.
func (n *Node) InsertEntry(kv KeyEntry, childID int32) {
	if n.IsOverfull() {
		logger.Warnf("attempt to insert into overfull page %d", n.Header.PageID)
		return
	}

	pos := n.FindKey(kv.KeyString())
	n.Entries = append(n.Entries, KeyEntry{})
	copy(n.Entries[pos+1:], n.Entries[pos:])
	n.Entries[pos] = kv
	n.Header.KeyCount++

	if !n.Header.IsLeaf && childID != InvalidPageID {
		n.Children = append(n.Children, 0)
		copy(n.Children[pos+2:], n.Children[pos+1:])
		n.Children[pos+1] = childID
	}

	n.Dirty = true
}

// RemoveAt deletes the entry at index; for internal nodes the child
// pointer to the right of the key goes with it.
func (n *Node) RemoveAt(index int) {
	if index < 0 || index >= int(n.Header.KeyCount) {
		return
	}

	n.Entries = append(n.Entries[:index], n.Entries[index+1:]...)
	n.Header.KeyCount--

	if !n.Header.IsLeaf && index+1 < len(n.Children) {
		n.Children = append(n.Children[:index+1], n.Children[index+2:]...)
	}

	n.Dirty = true
}

// Split moves the upper half of n into newNode and returns the
// separator to push into the parent.
//
// Leaf split: mid = (keyCount+1)/2, entries [mid, end) move right and
// the separator is a copy of the right node's first key. The new leaf
// takes over n's next-leaf link and n points at the new leaf.
//
// Internal split: mid = keyCount/2, the key at mid is promoted (moved,
// not copied); the right node receives keys (mid, end) and children
// (mid, end].
func (n *Node) Split(newNode *Node) KeyEntry {
	var promoted KeyEntry
	total := int(n.Header.KeyCount)

	if n.Header.IsLeaf {
		mid := (total + 1) / 2

		newNode.Entries = append(newNode.Entries, n.Entries[mid:]...)
		newNode.Header.KeyCount = int32(total - mid)

		newNode.Header.NextLeafID = n.Header.NextLeafID
		n.Header.NextLeafID = newNode.Header.PageID

		if newNode.Header.KeyCount > 0 {
			promoted = newNode.Entries[0]
		}

		n.Entries = n.Entries[:mid]
		n.Header.KeyCount = int32(mid)
	} else {
		mid := total / 2

		promoted = n.Entries[mid]

		newNode.Entries = append(newNode.Entries, n.Entries[mid+1:]...)
		newNode.Header.KeyCount = int32(total - mid - 1)

		if mid+1 < len(n.Children) {
			newNode.Children = append(newNode.Children, n.Children[mid+1:]...)
		}

		n.Entries = n.Entries[:mid]
		n.Header.KeyCount = int32(mid)
		if mid+1 <= len(n.Children) {
			n.Children = n.Children[:mid+1]
		}
	}

	n.Dirty = true
	newNode.Dirty = true
	return promoted
}
