package pager

import (
	"io"
	"os"

	"github.com/juju/errors"

	"xbtree/logger"
	"xbtree/storage/page"
	"xbtree/util"
)

// maxPageID guards the offset arithmetic against runaway allocators
// and corrupted ids read back from disk.
const maxPageID = 10000000

// Pager owns the backing file: it translates page ids to offsets,
// allocates new ids, and moves pages between their on-disk bytes and
// the in-memory Node form. I/O failures on individual pages are
// logged and absorbed so one bad page does not tear down the caller;
// only Open and Close report errors.
type Pager struct {
	path       string
	file       *os.File
	Meta       Metadata
	writeCount int64
}

// Open opens or creates the index file at path. An existing file has
// its metadata record loaded and validated; a fresh file gets a fresh
// record written.
func Open(path string) (*Pager, error) {
	exists, err := util.PathExists(path)
	if err != nil {
		return nil, errors.Annotatef(err, "stat index file %s", path)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Annotatef(err, "open index file %s", path)
	}

	p := &Pager{
		path: path,
		file: file,
		Meta: NewMetadata(),
	}

	if exists {
		p.LoadMetadata()
	} else {
		p.SaveMetadata()
	}

	return p, nil
}

// Close persists the metadata record and releases the file.
func (p *Pager) Close() error {
	if p.file == nil {
		return nil
	}
	p.SaveMetadata()
	err := p.file.Close()
	p.file = nil
	return errors.Annotatef(err, "close index file %s", p.path)
}

// Offset returns the file position of pageID.
func Offset(pageID int32) int64 {
	return int64(page.MetadataSize) + int64(pageID)*int64(page.PageSize)
}

// Load reads pageID from disk. A read past the end of the file yields
// an empty clean node: unwritten pages are treated as zero filled.
func (p *Pager) Load(pageID int32) *page.Node {
	if pageID < 0 || pageID > maxPageID {
		logger.Errorf("invalid page position: pageId=%d", pageID)
		return nil
	}

	buf := make([]byte, page.PageSize)
	n, err := p.file.ReadAt(buf, Offset(pageID))
	if n == page.PageSize {
		return page.Deserialize(buf)
	}

	if err != nil && err != io.EOF {
		logger.Errorf("failed to read page %d: %v", pageID, err)
	} else if n > 0 {
		logger.Debugf("partial read of page %d: %d bytes", pageID, n)
	}
	return page.NewNode(pageID, true)
}

// Save writes node back to its slot if it is dirty, syncs, and clears
// the dirty flag. Invalid ids are rejected with a log.
func (p *Pager) Save(node *page.Node) {
	if node == nil || !node.Dirty {
		return
	}
	if node.Header.PageID < 0 || node.Header.PageID > maxPageID {
		logger.Errorf("invalid save position: pageId=%d", node.Header.PageID)
		return
	}

	buf := page.Serialize(node)
	if _, err := p.file.WriteAt(buf, Offset(node.Header.PageID)); err != nil {
		logger.Errorf("failed to write page %d: %v", node.Header.PageID, err)
		return
	}
	p.writeCount++

	if err := p.file.Sync(); err != nil {
		logger.Errorf("failed to sync page %d: %v", node.Header.PageID, err)
	}
	node.Dirty = false
}

// Allocate hands out the next page id as a new dirty node.
func (p *Pager) Allocate(isLeaf bool) *page.Node {
	if p.Meta.NextPageID < 0 || p.Meta.NextPageID > maxPageID {
		logger.Errorf("page id overflow: %d", p.Meta.NextPageID)
		return nil
	}

	pageID := p.Meta.NextPageID
	p.Meta.NextPageID++
	p.Meta.PageCount++

	node := page.NewNode(pageID, isLeaf)
	node.Dirty = true
	return node
}

// SaveMetadata writes the metadata record at offset 0 and syncs.
func (p *Pager) SaveMetadata() {
	buf := serializeMetadata(p.Meta)
	if _, err := p.file.WriteAt(buf, 0); err != nil {
		logger.Errorf("failed to write metadata: %v", err)
		return
	}
	if err := p.file.Sync(); err != nil {
		logger.Errorf("failed to sync metadata: %v", err)
	}
}

// LoadMetadata reads the record at offset 0. Implausible values mean
// a torn or foreign file; the record is reinitialized in that case.
func (p *Pager) LoadMetadata() {
	buf := make([]byte, page.MetadataSize)
	n, err := p.file.ReadAt(buf, 0)
	if n < metadataRecordLen {
		if err != nil && err != io.EOF {
			logger.Errorf("failed to read metadata: %v", err)
		}
		logger.Warnf("metadata record too short (%d bytes), reinitializing", n)
		p.Meta = NewMetadata()
		return
	}

	m := deserializeMetadata(buf)
	if m.NextPageID < 0 || m.PageCount < 0 {
		logger.Warnf("invalid metadata detected, reinitializing")
		p.Meta = NewMetadata()
		return
	}
	p.Meta = m
}

// WriteCount reports how many pages have been written since Open.
func (p *Pager) WriteCount() int64 {
	return p.writeCount
}

const metadataRecordLen = 20
