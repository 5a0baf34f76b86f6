package page

import (
	"xbtree/logger"
	"xbtree/util"
)

// Serialized header layout, little-endian:
//
//	offset 0  pageId     int32
//	offset 4  parentId   int32
//	offset 8  isLeaf     1 byte, widened to 4 with zero padding
//	offset 12 keyCount   int32
//	offset 16 nextLeafId int32
//	offset 20 zero padding up to HeaderSize
//
// Entries follow at offset HeaderSize; internal nodes then carry
// keyCount+1 child ids (empty slots are InvalidPageID). The rest of
// the page is zero filled so unwritten tails are deterministic.
//
// A full leaf (MaxKeysPerPage entries) fills the page exactly; a full
// internal node (MaxInternalKeys entries plus children) fits with
// room to spare. Only a transiently overfull node mid-split exceeds
// the page, and the tree pins such nodes until the split lands, so
// the truncation guards below never fire on a reachable page.
const serializedHeaderSize = 20

// Serialize renders n into a zeroed PageSize buffer.
func Serialize(n *Node) []byte {
	buf := make([]byte, 0, PageSize)

	buf = util.WriteInt4(buf, n.Header.PageID)
	buf = util.WriteInt4(buf, n.Header.ParentID)
	buf = util.WriteByte(buf, util.ConvertBool2Byte(n.Header.IsLeaf))
	buf = util.WriteBytes(buf, []byte{0, 0, 0})
	buf = util.WriteInt4(buf, n.Header.KeyCount)
	buf = util.WriteInt4(buf, n.Header.NextLeafID)
	buf = util.WriteBytes(buf, make([]byte, HeaderSize-serializedHeaderSize))

	for i := 0; i < int(n.Header.KeyCount); i++ {
		if len(buf)+EntrySize > PageSize {
			logger.Warnf("page %d entry %d does not fit, truncating", n.Header.PageID, i)
			break
		}
		buf = util.WriteBytes(buf, n.Entries[i].Key[:])
		buf = util.WriteBytes(buf, n.Entries[i].RowID[:])
		buf = util.WriteBytes(buf, n.Entries[i].Value[:])
	}

	if !n.Header.IsLeaf {
		for i := 0; i <= int(n.Header.KeyCount); i++ {
			if len(buf)+4 > PageSize {
				logger.Warnf("page %d child slot %d does not fit, truncating", n.Header.PageID, i)
				break
			}
			childID := int32(InvalidPageID)
			if i < len(n.Children) {
				childID = n.Children[i]
			}
			buf = util.WriteInt4(buf, childID)
		}
	}

	out := make([]byte, PageSize)
	copy(out, buf)
	return out
}

// Deserialize rebuilds a clean node from a PageSize buffer.
func Deserialize(buf []byte) *Node {
	cursor := 0

	var h Header
	cursor, h.PageID = util.ReadInt4(buf, cursor)
	cursor, h.ParentID = util.ReadInt4(buf, cursor)
	cursor, h.IsLeaf = util.ReadBool(buf, cursor)
	cursor += 3
	cursor, h.KeyCount = util.ReadInt4(buf, cursor)
	_, h.NextLeafID = util.ReadInt4(buf, cursor)
	cursor = HeaderSize

	n := NewNode(h.PageID, h.IsLeaf)
	n.Header = h

	keyCount := int(h.KeyCount)
	if keyCount < 0 || keyCount > n.MaxKeys() {
		logger.Warnf("page %d has key count %d, treating as empty", h.PageID, keyCount)
		n.Header.KeyCount = 0
		return n
	}

	for i := 0; i < keyCount; i++ {
		var e KeyEntry
		var raw []byte
		cursor, raw = util.ReadBytes(buf, cursor, KeySize)
		copy(e.Key[:], raw)
		cursor, raw = util.ReadBytes(buf, cursor, RowIDSize)
		copy(e.RowID[:], raw)
		cursor, raw = util.ReadBytes(buf, cursor, ValueSize)
		copy(e.Value[:], raw)
		n.Entries = append(n.Entries, e)
	}

	if !h.IsLeaf {
		for i := 0; i <= keyCount; i++ {
			childID := int32(InvalidPageID)
			if cursor+4 <= len(buf) {
				cursor, childID = util.ReadInt4(buf, cursor)
			}
			n.Children = append(n.Children, childID)
		}
	}

	n.Dirty = false
	return n
}
