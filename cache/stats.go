package cache

import "fmt"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Len       int
	Capacity  int
	Hits      uint64
	Misses    uint64
	HitRate   float64
	Evictions uint64
}

func (s Stats) String() string {
	return fmt.Sprintf("len=%d/%d hits=%d misses=%d hit=%.1f%% evictions=%d",
		s.Len, s.Capacity, s.Hits, s.Misses, s.HitRate*100, s.Evictions)
}
