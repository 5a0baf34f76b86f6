package btree

import (
	"fmt"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xbtree/storage/page"
)

func openTestTree(t *testing.T, capacity int) (*BTree, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "t.db")
	tree, err := Open(path, capacity)
	require.NoError(t, err)
	return tree, path
}

// checkTree verifies the structural invariants: balanced depth,
// occupancy bounds, strictly ordered keys, child/parent integrity,
// and the leaf chain.
func checkTree(t *testing.T, tree *BTree) {
	t.Helper()

	rootID := tree.pager.Meta.RootPageID
	if rootID == page.InvalidPageID {
		return
	}

	type item struct {
		id    int32
		depth int
	}

	leafDepth := -1
	var leftToRightLeaves []int32

	queue := []item{{rootID, 0}}
	for len(queue) > 0 {
		it := queue[0]
		queue = queue[1:]

		node := tree.loadPage(it.id)
		require.NotNil(t, node, "page %d unreadable", it.id)

		count := int(node.Header.KeyCount)
		require.Equal(t, count, len(node.Entries), "page %d key count out of sync", it.id)
		require.LessOrEqual(t, count, node.MaxKeys(), "page %d overfull", it.id)
		if it.id != rootID {
			require.GreaterOrEqual(t, count, node.MinKeys(), "page %d underfull", it.id)
		}

		for i := 0; i+1 < count; i++ {
			require.Less(t, node.Entries[i].KeyString(), node.Entries[i+1].KeyString(),
				"page %d keys out of order", it.id)
		}

		if node.Header.IsLeaf {
			if leafDepth == -1 {
				leafDepth = it.depth
			}
			require.Equal(t, leafDepth, it.depth, "leaf %d at wrong depth", it.id)
			leftToRightLeaves = append(leftToRightLeaves, it.id)
			continue
		}

		require.Equal(t, count+1, len(node.Children), "page %d child count", it.id)
		for _, childID := range node.Children {
			require.NotEqual(t, int32(page.InvalidPageID), childID, "page %d has a hole", it.id)
			child := tree.loadPage(childID)
			require.NotNil(t, child)
			require.Equal(t, node.Header.PageID, child.Header.ParentID,
				"child %d has stale parent", childID)
			queue = append(queue, item{childID, it.depth + 1})
		}
	}

	// leaf chain mirrors the left-to-right order and ascends by first key
	require.NotEmpty(t, leftToRightLeaves)
	chainID := leftToRightLeaves[0]
	prevFirst := ""
	for i := 0; chainID != page.InvalidPageID; i++ {
		require.Less(t, i, len(leftToRightLeaves), "leaf chain longer than the tree")
		require.Equal(t, leftToRightLeaves[i], chainID, "leaf chain order diverges")

		leaf := tree.loadPage(chainID)
		require.NotNil(t, leaf)
		if leaf.Header.KeyCount > 0 {
			first := leaf.Entries[0].KeyString()
			if prevFirst != "" {
				require.Greater(t, first, prevFirst, "leaf chain keys not ascending")
			}
			prevFirst = first
		}
		chainID = leaf.Header.NextLeafID
	}
}

func TestBasicCRUD(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	assert.True(t, tree.Insert("apple", "red fruit", "r0"))
	assert.True(t, tree.Insert("banana", "yellow", "r1"))

	assert.Equal(t, [][]string{{"red fruit"}}, tree.Get("apple"))

	assert.True(t, tree.Remove("banana"))
	assert.Empty(t, tree.Get("banana"))
	assert.False(t, tree.Remove("banana"))

	stats := tree.Stats()
	assert.Equal(t, 1, stats.Height)
	assert.Equal(t, 1, stats.NodeCount)
}

func TestFirstSplit(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 1; i <= page.MaxKeysPerPage; i++ {
		require.True(t, tree.Insert(fmt.Sprintf("key%04d", i), fmt.Sprintf("v%d", i), fmt.Sprintf("r%d", i)))
	}

	stats := tree.Stats()
	assert.Equal(t, 1, stats.Height)
	assert.Equal(t, 1, stats.NodeCount)
	assert.Equal(t, 0, stats.SplitCount)

	require.True(t, tree.Insert("key0019", "v19", "r19"))

	stats = tree.Stats()
	assert.Equal(t, 2, stats.Height)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 1, stats.SplitCount)

	root := tree.loadPage(tree.pager.Meta.RootPageID)
	require.NotNil(t, root)
	require.False(t, root.Header.IsLeaf)
	require.Len(t, root.Children, 2)

	left := tree.loadPage(root.Children[0])
	right := tree.loadPage(root.Children[1])
	require.NotNil(t, left)
	require.NotNil(t, right)

	assert.GreaterOrEqual(t, int(left.Header.KeyCount), page.MinKeysPerPage)
	assert.GreaterOrEqual(t, int(right.Header.KeyCount), page.MinKeysPerPage)

	assert.Equal(t, right.Header.PageID, left.Header.NextLeafID)
	assert.EqualValues(t, page.InvalidPageID, right.Header.NextLeafID)

	checkTree(t, tree)
}

func TestOverwriteSemantics(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	require.True(t, tree.Insert("k", "v1", "r1"))
	before := tree.Stats().NodeCount

	require.True(t, tree.Insert("k", "v2", "r2"))

	assert.Equal(t, [][]string{{"v2"}}, tree.Get("k"))
	assert.Equal(t, before, tree.Stats().NodeCount)
}

func TestOverwriteIsIdempotent(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%04d", i)
		require.True(t, tree.Insert(key, fmt.Sprintf("v%d", i), "r"))
		require.True(t, tree.Insert(key, fmt.Sprintf("v%d", i), "r"))
	}

	stats := tree.Stats()
	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("key%04d", i)
		assert.Equal(t, [][]string{{fmt.Sprintf("v%d", i)}}, tree.Get(key))
	}
	assert.Equal(t, stats, tree.Stats())
	checkTree(t, tree)
}

func TestUnderflowMergesAndRootCollapse(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 1; i <= 38; i++ {
		require.True(t, tree.Insert(fmt.Sprintf("k%03d", i), fmt.Sprintf("v%d", i), fmt.Sprintf("r%d", i)))
	}
	require.Equal(t, 2, tree.Stats().SplitCount)
	require.Equal(t, 2, tree.Stats().Height)

	for i := 1; i <= 19; i++ {
		require.True(t, tree.Remove(fmt.Sprintf("k%03d", i)), "remove k%03d", i)
		checkTree(t, tree)
	}

	stats := tree.Stats()
	assert.GreaterOrEqual(t, stats.MergeCount, 1)

	for i := 20; i <= 38; i++ {
		require.Equal(t, [][]string{{fmt.Sprintf("v%d", i)}}, tree.Get(fmt.Sprintf("k%03d", i)))
	}

	// keep deleting until everything fits a single leaf again
	for i := 20; i <= 38 && tree.Stats().Height > 1; i++ {
		require.True(t, tree.Remove(fmt.Sprintf("k%03d", i)))
		checkTree(t, tree)
	}
	assert.Equal(t, 1, tree.Stats().Height)
}

func TestBoundedBuffer(t *testing.T) {
	tree, path := openTestTree(t, 20)

	rnd := rand.New(rand.NewSource(42))
	expected := make(map[string]string)

	for i := 0; i < 10000; i++ {
		key := fmt.Sprintf("k%014d", rnd.Intn(1_000_000_000))
		value := fmt.Sprintf("v%d", i)
		require.True(t, tree.Insert(key, value, fmt.Sprintf("r%d", i)))
		expected[key] = value

		if i%500 == 0 {
			require.LessOrEqual(t, tree.BufferStats().TotalPages, 20)
		}
	}
	require.LessOrEqual(t, tree.BufferStats().TotalPages, 20)
	checkTree(t, tree)
	tree.Close()

	reopened, err := Open(path, 20)
	require.NoError(t, err)
	defer reopened.Close()

	for key, value := range expected {
		rows := reopened.Get(key)
		require.Len(t, rows, 1, "key %s lost", key)
		require.Equal(t, value, rows[0][0])
	}
	checkTree(t, reopened)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	tree, path := openTestTree(t, 50)

	for i := 0; i < 1000; i++ {
		require.True(t, tree.Insert(fmt.Sprintf("key%06d", i), fmt.Sprintf("value%d", i), fmt.Sprintf("r%d", i)))
	}

	rootBefore := tree.pager.Meta.RootPageID
	nextBefore := tree.pager.Meta.NextPageID
	tree.Close()

	reopened, err := Open(path, 50)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, rootBefore, reopened.pager.Meta.RootPageID)
	assert.Equal(t, nextBefore, reopened.pager.Meta.NextPageID)

	for i := 0; i < 1000; i++ {
		rows := reopened.Get(fmt.Sprintf("key%06d", i))
		require.Len(t, rows, 1)
		require.Equal(t, fmt.Sprintf("value%d", i), rows[0][0])
	}
	checkTree(t, reopened)
}

func TestGetMissingKey(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	assert.Empty(t, tree.Get("nothing"))

	tree.Insert("a", "1", "r")
	assert.Empty(t, tree.Get("b"))
}

func TestRemoveFromEmptyTree(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()
	assert.False(t, tree.Remove("ghost"))
}

func TestRandomInsertRemoveMix(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	rnd := rand.New(rand.NewSource(7))
	expected := make(map[string]string)

	for round := 0; round < 3000; round++ {
		key := fmt.Sprintf("key%04d", rnd.Intn(500))
		if rnd.Intn(3) == 0 {
			_, present := expected[key]
			assert.Equal(t, present, tree.Remove(key))
			delete(expected, key)
		} else {
			value := fmt.Sprintf("v%d", round)
			require.True(t, tree.Insert(key, value, "r"))
			expected[key] = value
		}

		if round%500 == 0 {
			checkTree(t, tree)
		}
	}
	checkTree(t, tree)

	for key, value := range expected {
		rows := tree.Get(key)
		require.Len(t, rows, 1, "key %s", key)
		require.Equal(t, value, rows[0][0])
	}
}

func TestStatsTracksShape(t *testing.T) {
	tree, _ := openTestTree(t, 100)
	defer tree.Close()

	assert.Equal(t, Stats{}, tree.Stats())

	for i := 0; i < 500; i++ {
		tree.Insert(fmt.Sprintf("key%05d", i), "v", "r")
	}

	stats := tree.Stats()
	assert.GreaterOrEqual(t, stats.Height, 2)
	assert.Greater(t, stats.NodeCount, 1)
	assert.Greater(t, stats.SplitCount, 0)
	assert.Greater(t, stats.FillFactor, 0.0)
	assert.LessOrEqual(t, stats.FillFactor, 1.0)

	tree.FlushBuffer()
	assert.Greater(t, tree.Stats().FileWriteCount, int64(0))
}

func TestBufferStatsAccounting(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 0; i < 50; i++ {
		tree.Insert(fmt.Sprintf("key%04d", i), "v", "r")
	}
	for i := 0; i < 50; i++ {
		tree.Get(fmt.Sprintf("key%04d", i))
	}

	stats := tree.BufferStats()
	assert.Greater(t, stats.HitCount, int64(0))
	assert.Greater(t, stats.MissCount, int64(0))
	assert.InDelta(t, float64(stats.HitCount)/float64(stats.HitCount+stats.MissCount), stats.HitRatio, 1e-9)
}

func TestFlushBufferWritesDirtyPages(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 0; i < 30; i++ {
		tree.Insert(fmt.Sprintf("key%04d", i), "v", "r")
	}

	flushed := tree.FlushBuffer()
	assert.Greater(t, flushed, 0)
	assert.Equal(t, 0, tree.BufferStats().DirtyPages)
	assert.Equal(t, 0, tree.FlushBuffer())
}

func TestSetBufferCapacity(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	for i := 0; i < 100; i++ {
		tree.Insert(fmt.Sprintf("key%04d", i), fmt.Sprintf("v%d", i), "r")
	}

	tree.SetBufferCapacity(10)

	assert.Equal(t, 10, tree.BufferStats().MaxSize)
	assert.Equal(t, 0, tree.BufferStats().TotalPages)

	for i := 0; i < 100; i++ {
		rows := tree.Get(fmt.Sprintf("key%04d", i))
		require.Len(t, rows, 1)
		require.Equal(t, fmt.Sprintf("v%d", i), rows[0][0])
	}
	assert.LessOrEqual(t, tree.BufferStats().TotalPages, 10)
}

func TestCapacityIsClamped(t *testing.T) {
	tree, _ := openTestTree(t, 5000)
	defer tree.Close()
	assert.Equal(t, maxBufferCapacity, tree.BufferStats().MaxSize)

	zero, _ := openTestTree(t, 0)
	defer zero.Close()
	assert.Equal(t, 100, zero.BufferStats().MaxSize)
}

func TestLongKeysAreTruncatedConsistently(t *testing.T) {
	tree, _ := openTestTree(t, 50)
	defer tree.Close()

	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}

	require.True(t, tree.Insert(string(long), "v", "r"))
	rows := tree.Get(string(long[:page.KeySize-1]))
	require.Len(t, rows, 1)
	assert.Equal(t, "v", rows[0][0])
}
