package btree

import (
	"strings"

	"xbtree/logger"
	"xbtree/storage/page"
)

// Stats summarizes the tree shape and the work done so far.
type Stats struct {
	Height         int
	NodeCount      int
	SplitCount     int
	MergeCount     int
	FillFactor     float64
	FileWriteCount int64
}

// Stats computes the current snapshot. Height walks the leftmost
// spine; the fill factor visits every page breadth first.
func (t *BTree) Stats() Stats {
	var stats Stats

	if t.pager.Meta.RootPageID == page.InvalidPageID {
		return stats
	}

	root := t.loadPage(t.pager.Meta.RootPageID)
	if root == nil {
		return stats
	}

	stats.Height = t.height(root)
	stats.NodeCount = int(t.pager.Meta.PageCount)
	stats.SplitCount = int(t.pager.Meta.SplitCount)
	stats.MergeCount = int(t.pager.Meta.MergeCount)
	stats.FillFactor = t.fillFactor()
	stats.FileWriteCount = t.pager.WriteCount()

	return stats
}

func (t *BTree) height(node *page.Node) int {
	height := 0
	current := node

	for current != nil && !current.Header.IsLeaf {
		height++
		if len(current.Children) == 0 || current.Children[0] == page.InvalidPageID {
			break
		}
		current = t.loadPage(current.Children[0])
	}

	return height + 1
}

func (t *BTree) fillFactor() float64 {
	if t.pager.Meta.PageCount == 0 || t.pager.Meta.RootPageID == page.InvalidPageID {
		return 0.0
	}

	totalKeys := 0
	totalCapacity := 0

	queue := []int32{t.pager.Meta.RootPageID}
	for len(queue) > 0 {
		pageID := queue[0]
		queue = queue[1:]

		node := t.loadPage(pageID)
		if node == nil {
			continue
		}

		totalKeys += int(node.Header.KeyCount)
		totalCapacity += page.MaxKeysPerPage

		if !node.Header.IsLeaf {
			for i := 0; i <= int(node.Header.KeyCount) && i < len(node.Children); i++ {
				if node.Children[i] != page.InvalidPageID {
					queue = append(queue, node.Children[i])
				}
			}
		}
	}

	if totalCapacity == 0 {
		return 0.0
	}
	return float64(totalKeys) / float64(totalCapacity)
}

// PrintTree logs the whole tree level by level, for debugging.
func (t *BTree) PrintTree() {
	if t.pager.Meta.RootPageID == page.InvalidPageID {
		logger.Info("empty tree")
		return
	}
	t.printNode(t.loadPage(t.pager.Meta.RootPageID), 0)
}

func (t *BTree) printNode(node *page.Node, level int) {
	if node == nil {
		return
	}

	kind := "internal"
	if node.Header.IsLeaf {
		kind = "leaf"
	}

	keys := make([]string, 0, node.Header.KeyCount)
	for i := 0; i < int(node.Header.KeyCount); i++ {
		keys = append(keys, node.Entries[i].KeyString())
	}
	logger.Infof("%spage %d (%s, keys: %d): %s",
		strings.Repeat("  ", level), node.Header.PageID, kind, node.Header.KeyCount, strings.Join(keys, " "))

	if !node.Header.IsLeaf {
		for i := 0; i <= int(node.Header.KeyCount) && i < len(node.Children); i++ {
			if node.Children[i] != page.InvalidPageID {
				t.printNode(t.loadPage(node.Children[i]), level+1)
			}
		}
	}
}
