package page

import "bytes"

// KeyEntry is one (key, rowId, value) triple in its fixed-width,
// NUL-padded on-disk representation. The logical value of each field
// is the prefix up to the first NUL byte.
type KeyEntry struct {
	Key   [KeySize]byte
	RowID [RowIDSize]byte
	Value [ValueSize]byte
}

// NewKeyEntry builds an entry from logical strings. Oversized fields
// are truncated to leave room for the terminating NUL.
func NewKeyEntry(key, rowID, value string) KeyEntry {
	var e KeyEntry
	copyPadded(e.Key[:], key)
	copyPadded(e.RowID[:], rowID)
	copyPadded(e.Value[:], value)
	return e
}

func copyPadded(dst []byte, src string) {
	n := len(src)
	if n > len(dst)-1 {
		n = len(dst) - 1
	}
	copy(dst, src[:n])
}

// KeyString returns the logical key.
func (e *KeyEntry) KeyString() string {
	return cString(e.Key[:])
}

// RowIDString returns the logical row identifier.
func (e *KeyEntry) RowIDString() string {
	return cString(e.RowID[:])
}

// ValueString returns the logical payload.
func (e *KeyEntry) ValueString() string {
	return cString(e.Value[:])
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}
	return string(b)
}
