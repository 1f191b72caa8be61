// Package breadcrumbs implements the bounded, spread-preserving set of
// recent chain points the cursor persists to negotiate resume on restart.
package breadcrumbs

import (
	"encoding/json"

	"github.com/txpipe/chainstream/internal/model"
)

// DefaultCapacity is used when a store is configured without an explicit
// max_breadcrumbs value.
const DefaultCapacity = 20

// Breadcrumbs is a bounded, ordered, duplicate-free sequence of points kept
// oldest-first internally. Eviction prefers dropping an interior point over
// plain FIFO truncation, to keep both a deep anchor and recent history.
type Breadcrumbs struct {
	capacity int
	points   []model.Point
}

// New creates an empty Breadcrumbs with the given capacity. A non-positive
// capacity is replaced with DefaultCapacity.
func New(capacity int) *Breadcrumbs {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Breadcrumbs{capacity: capacity}
}

// Track appends a point, evicting an interior entry if the capacity is
// exceeded. Duplicate (slot, hash) points are ignored.
func (b *Breadcrumbs) Track(p model.Point) {
	for _, existing := range b.points {
		if existing.Equal(p) {
			return
		}
	}
	b.points = append(b.points, p)
	if len(b.points) > b.capacity {
		b.evictOne()
	}
}

// evictOne drops the interior entry whose removal minimizes the variance of
// the remaining inter-point slot gaps. The first and last entries are
// never evicted: they anchor the deepest known history and the most
// recent point.
func (b *Breadcrumbs) evictOne() {
	n := len(b.points)
	if n <= 2 {
		// Nothing interior to drop; fall back to dropping the oldest.
		b.points = b.points[1:]
		return
	}

	bestIdx := 1
	bestVariance := -1.0
	for candidate := 1; candidate < n-1; candidate++ {
		variance := gapVarianceExcluding(b.points, candidate)
		if bestVariance < 0 || variance < bestVariance {
			bestVariance = variance
			bestIdx = candidate
		}
	}

	b.points = append(b.points[:bestIdx], b.points[bestIdx+1:]...)
}

// gapVarianceExcluding computes the variance of inter-point slot gaps of
// points, with the entry at index skip removed. Origin is treated as slot 0
// for gap-arithmetic purposes.
func gapVarianceExcluding(points []model.Point, skip int) float64 {
	slots := make([]float64, 0, len(points)-1)
	for i, p := range points {
		if i == skip {
			continue
		}
		if p.IsOrigin() {
			slots = append(slots, 0)
		} else {
			slots = append(slots, float64(p.Slot))
		}
	}
	if len(slots) < 2 {
		return 0
	}
	gaps := make([]float64, 0, len(slots)-1)
	for i := 1; i < len(slots); i++ {
		gaps = append(gaps, slots[i]-slots[i-1])
	}
	mean := 0.0
	for _, g := range gaps {
		mean += g
	}
	mean /= float64(len(gaps))
	variance := 0.0
	for _, g := range gaps {
		d := g - mean
		variance += d * d
	}
	return variance / float64(len(gaps))
}

// Points returns the tracked points, oldest first. The returned slice is a
// copy; callers must not retain it across further Track calls.
func (b *Breadcrumbs) Points() []model.Point {
	out := make([]model.Point, len(b.points))
	copy(out, b.points)
	return out
}

// MostRecentFirst returns the tracked points newest first, the order
// used when proposing an intersection to the upstream.
func (b *Breadcrumbs) MostRecentFirst() []model.Point {
	pts := b.Points()
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
	return pts
}

// Len returns the number of tracked points.
func (b *Breadcrumbs) Len() int { return len(b.points) }

// Clone returns a deep copy.
func (b *Breadcrumbs) Clone() *Breadcrumbs {
	out := New(b.capacity)
	out.points = b.Points()
	return out
}

// entry is the on-disk/on-wire shape: a [slot, hash_hex] pair.
type entry struct {
	Slot uint64
	Hash string
}

// Save serializes breadcrumbs as a JSON array of [slot, hash_hex] pairs,
// most-recent-first.
func (b *Breadcrumbs) Save() ([]byte, error) {
	recent := b.MostRecentFirst()
	raw := make([][2]any, 0, len(recent))
	for _, p := range recent {
		if p.IsOrigin() {
			continue // Origin never round-trips through the breadcrumb file.
		}
		raw = append(raw, [2]any{p.Slot, p.HashHex()})
	}
	return json.Marshal(raw)
}

// Load parses the breadcrumbs file format produced by Save into a new
// Breadcrumbs with the given capacity; if the loaded set exceeds it, points
// are evicted via the normal Track path (oldest-loaded first, so that
// eviction sees the set build up the same way Track would).
func Load(capacity int, data []byte) (*Breadcrumbs, error) {
	var raw [][2]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	b := New(capacity)
	// raw is most-recent-first; replay oldest-first so Track's ordering
	// invariant (append at tail = newest) holds.
	for i := len(raw) - 1; i >= 0; i-- {
		slot, hashHex, err := decodeEntry(raw[i])
		if err != nil {
			return nil, err
		}
		hash, err := hexDecode(hashHex)
		if err != nil {
			return nil, err
		}
		p, err := model.NewPoint(slot, hash)
		if err != nil {
			return nil, err
		}
		b.Track(p)
	}
	return b, nil
}
