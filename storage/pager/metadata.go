package pager

import (
	"xbtree/storage/page"
	"xbtree/util"
)

// Metadata is the tree-level record persisted in the reserved file
// prefix: five little-endian int32 fields followed by zero padding up
// to page.MetadataSize.
type Metadata struct {
	RootPageID int32
	NextPageID int32
	PageCount  int32
	SplitCount int32
	MergeCount int32
}

// NewMetadata returns the record for a freshly created index: no root
// yet, page ids start at 1.
func NewMetadata() Metadata {
	return Metadata{
		RootPageID: page.InvalidPageID,
		NextPageID: 1,
	}
}

func serializeMetadata(m Metadata) []byte {
	buf := make([]byte, 0, page.MetadataSize)
	buf = util.WriteInt4(buf, m.RootPageID)
	buf = util.WriteInt4(buf, m.NextPageID)
	buf = util.WriteInt4(buf, m.PageCount)
	buf = util.WriteInt4(buf, m.SplitCount)
	buf = util.WriteInt4(buf, m.MergeCount)

	out := make([]byte, page.MetadataSize)
	copy(out, buf)
	return out
}

func deserializeMetadata(buf []byte) Metadata {
	var m Metadata
	cursor := 0
	cursor, m.RootPageID = util.ReadInt4(buf, cursor)
	cursor, m.NextPageID = util.ReadInt4(buf, cursor)
	cursor, m.PageCount = util.ReadInt4(buf, cursor)
	cursor, m.SplitCount = util.ReadInt4(buf, cursor)
	_, m.MergeCount = util.ReadInt4(buf, cursor)
	return m
}
