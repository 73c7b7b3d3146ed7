/*
series.go - Dense calendar join over a sparse aggregate

PURPOSE:
  Reporting groups ledger entries into calendar buckets (days or months).
  Grouping alone only yields buckets that had activity; charts want one
  bucket per interval. This file does both halves:

    Aggregate:  points -> sparse buckets (count + exact sum per key)
    Fill:       sparse buckets + period -> dense, ascending series

INVARIANTS:
  1. Fill emits exactly Period.Len() buckets, one per key, ascending
  2. A key absent from the aggregate is emitted as {key, 0, 0}
  3. Fill is idempotent: filling an already dense series changes nothing
  4. Points outside the period are ignored by Fill, never clipped into it

EXAMPLE:
  points: 2024-01-02 25.50
  period: [2024-01-01, 2024-01-03] by day
  fill:   [{01-01 0 0} {01-02 1 25.50} {01-03 0 0}]

SEE ALSO:
  - period.go: the walked range
  - ledger/reports.go: monthly and daily series built on this
*/
package generic

import (
	"sort"
	"time"
)

// Point is one ledger entry as seen by the aggregator.
type Point struct {
	At     time.Time
	Amount Money
}

// Bucket is the computed activity of one calendar interval.
type Bucket struct {
	Key   TimePoint
	Count int
	Sum   Money
}

// Sparse holds the buckets that saw at least one point.
type Sparse struct {
	granularity Granularity
	buckets     map[time.Time]Bucket
}

// Aggregate groups points into buckets of granularity g.
func Aggregate(g Granularity, points []Point) *Sparse {
	s := &Sparse{granularity: g, buckets: make(map[time.Time]Bucket)}
	for _, pt := range points {
		key := g.Of(pt.At)
		b, ok := s.buckets[key.Key()]
		if !ok {
			b = Bucket{Key: key, Sum: Zero}
		}
		b.Count++
		b.Sum = b.Sum.Add(pt.Amount)
		s.buckets[key.Key()] = b
	}
	return s
}

// Granularity of the buckets.
func (s *Sparse) Granularity() Granularity { return s.granularity }

// Len is the number of non-empty buckets.
func (s *Sparse) Len() int { return len(s.buckets) }

// Get returns the bucket of key, if it saw any activity.
func (s *Sparse) Get(key TimePoint) (Bucket, bool) {
	key.Granularity = s.granularity
	b, ok := s.buckets[key.Key()]
	return b, ok
}

// Buckets returns the non-empty buckets, ascending.
func (s *Sparse) Buckets() []Bucket {
	out := make([]Bucket, 0, len(s.buckets))
	for _, b := range s.buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.Before(out[j].Key) })
	return out
}

// Last returns the latest non-empty bucket key.
func (s *Sparse) Last() (TimePoint, bool) {
	var last TimePoint
	found := false
	for _, b := range s.buckets {
		if !found || b.Key.After(last) {
			last, found = b.Key, true
		}
	}
	return last, found
}

// Fill walks every key of p and emits the computed bucket or a zero bucket.
func (s *Sparse) Fill(p Period) []Bucket {
	keys := p.Keys()
	out := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		if b, ok := s.Get(key); ok {
			b.Key = key
			out = append(out, b)
			continue
		}
		out = append(out, Bucket{Key: key, Count: 0, Sum: Zero})
	}
	return out
}
