package page

// On-disk layout constants. Every page in the backing file occupies
// offset MetadataSize + pageID*PageSize.
const (
	// PageSize is the size of every data page in bytes.
	PageSize = 4096

	// MetadataSize is the reserved file prefix holding tree metadata.
	MetadataSize = 16384

	// KeySize is the fixed slot for a key, zero padded.
	KeySize = 64

	// RowIDSize is the fixed slot for a row identifier.
	RowIDSize = 32

	// ValueSize is the fixed slot for one payload string.
	ValueSize = 128

	// EntrySize is the serialized size of one KeyEntry.
	EntrySize = KeySize + RowIDSize + ValueSize

	// HeaderSize is the page region reserved for the header. The
	// serialized header fields are smaller (see codec.go); the region
	// is padded with zeros so entries always begin at this offset.
	HeaderSize = 64

	// MaxKeysPerPage is the leaf fanout: the most entries a leaf
	// holds. A full leaf fills the page exactly.
	MaxKeysPerPage = (PageSize - HeaderSize) / EntrySize

	// MaxInternalKeys is the internal fanout. Internal pages also
	// carry keyCount+1 child ids, so each key costs EntrySize+4 bytes
	// and one extra child slot comes off the top. A full internal
	// node must still fit the page.
	MaxInternalKeys = (PageSize - HeaderSize - 4) / (EntrySize + 4)

	// MinKeysPerPage is the underflow threshold for non-root leaves.
	MinKeysPerPage = MaxKeysPerPage / 2

	// MinInternalKeys is the underflow threshold for non-root
	// internal nodes.
	MinInternalKeys = MaxInternalKeys / 2

	// InvalidPageID marks absent page references (no parent, no next
	// leaf, empty child slot).
	InvalidPageID = -1
)
