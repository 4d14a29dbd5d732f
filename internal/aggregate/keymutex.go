package aggregate

import (
	"hash/fnv"
	"sort"
	"sync"

	"github.com/salestream-lab/salestream/internal/core/aggregation"
)

// stripeCount is the fixed number of lock stripes.
// Never changes after startup — it's a contention decision, not a scaling one.
const stripeCount = 256

// keyedMutex serializes writes per bucket key via lock striping: updates to
// different keys almost always proceed in parallel, updates to the same key
// always serialize. Uses FNV-32a (stdlib, fast, well-distributed).
type keyedMutex struct {
	stripes [stripeCount]sync.Mutex
}

func stripeFor(key aggregation.BucketKey) int {
	h := fnv.New32a()
	h.Write([]byte(key.CacheKey()))
	return int(h.Sum32()) % stripeCount
}

// lockAll acquires the stripes covering every given key and returns the
// matching unlock. Stripes are deduplicated and taken in ascending order so
// two writers contending on overlapping key sets cannot deadlock.
func (m *keyedMutex) lockAll(keys []aggregation.BucketKey) (unlock func()) {
	seen := make(map[int]bool, len(keys))
	stripes := make([]int, 0, len(keys))
	for _, key := range keys {
		s := stripeFor(key)
		if !seen[s] {
			seen[s] = true
			stripes = append(stripes, s)
		}
	}
	sort.Ints(stripes)

	for _, s := range stripes {
		m.stripes[s].Lock()
	}
	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			m.stripes[stripes[i]].Unlock()
		}
	}
}
