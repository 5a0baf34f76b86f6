package bufferpool

import "fmt"

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	TotalPages  int
	DirtyPages  int
	PinnedPages int
	MaxSize     int
	HitCount    int64
	MissCount   int64
	HitRatio    float64
}

// Stats walks the resident frames and computes the snapshot.
func (bp *BufferPool) Stats() Stats {
	stats := Stats{
		TotalPages: bp.lruList.Len(),
		MaxSize:    bp.maxSize,
		HitCount:   bp.hitCount,
		MissCount:  bp.missCount,
	}

	total := bp.hitCount + bp.missCount
	if total > 0 {
		stats.HitRatio = float64(bp.hitCount) / float64(total)
	}

	for elem := bp.lruList.Front(); elem != nil; elem = elem.Next() {
		frame := elem.Value.(*Frame)
		if frame.Dirty {
			stats.DirtyPages++
		}
		if frame.Pinned {
			stats.PinnedPages++
		}
	}

	return stats
}

func (s Stats) String() string {
	return fmt.Sprintf("pages=%d/%d dirty=%d pinned=%d hits=%d misses=%d hitRatio=%.2f%%",
		s.TotalPages, s.MaxSize, s.DirtyPages, s.PinnedPages, s.HitCount, s.MissCount, s.HitRatio*100)
}
