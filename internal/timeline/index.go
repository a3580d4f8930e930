package timeline

import (
	"math"
	"slices"
	"sort"
)

// record is the timing state of one line.
type record struct {
	id    string
	index int

	// baseline the offset is measured against
	baseStart float64
	baseEnd   float64

	// effective interval, t1 <= t2 after every edit
	t1 float64
	t2 float64

	// recency; higher wins inside a bucket
	opID uint64

	// bucket span the record is currently filed under
	bMin, bMax int
	filed      bool
}

func (r *record) normalize() {
	if r.t1 > r.t2 {
		r.t1, r.t2 = r.t2, r.t1
	}
}

func (r *record) offset() Offset {
	return Offset{Start: r.t1 - r.baseStart, End: r.t2 - r.baseEnd}
}

// window is the neighbourhood of the last hit in which lookups cannot change
// their answer.
type window struct {
	lo, hi         float64
	loOpen, hiOpen bool
}

func (w window) contains(t float64) bool {
	if t < w.lo || (w.loOpen && t == w.lo) {
		return false
	}
	if t > w.hi || (w.hiOpen && t == w.hi) {
		return false
	}
	return true
}

// index files every record under each fixed-width time bucket its covered
// interval touches.
type index struct {
	width   float64
	records []*record
	byID    map[string]*record
	buckets map[int][]*record
	nextOp  uint64

	hit    *record
	hitWin window
	backup int
}

func newIndex(width float64) *index {
	switch {
	case width == 0:
		width = DefaultBucketSeconds
	case width < 1:
		width = 1
	}
	return &index{
		width:   width,
		byID:    make(map[string]*record),
		buckets: make(map[int][]*record),
	}
}

func (x *index) reset(recs []*record) {
	x.records = recs
	x.byID = make(map[string]*record, len(recs))
	x.buckets = make(map[int][]*record)
	x.hit = nil
	x.backup = 0
	x.nextOp = 0
	for i, r := range recs {
		r.index = i
		r.normalize()
		r.opID = x.bump()
		r.filed = false
		x.byID[r.id] = r
	}
	for _, r := range recs {
		x.file(r)
	}
}

func (x *index) bump() uint64 {
	op := x.nextOp
	x.nextOp++
	return op
}

func (x *index) get(id string) *record {
	return x.byID[id]
}

func (x *index) bucketOf(t float64) int {
	return int(math.Floor(t / x.width))
}

// nextStart is the effective start of the following line, or of r itself
// when r is last.
func (x *index) nextStart(r *record) float64 {
	next := r.index + 1
	if next >= len(x.records) {
		next = len(x.records) - 1
	}
	return x.records[next].t1
}

// covered extends r to the next line's start so silences belong to the line
// before them.
func (x *index) covered(r *record) (lo, hi float64) {
	ns := x.nextStart(r)
	return math.Min(r.t1, ns), math.Max(r.t2, ns)
}

func (x *index) file(r *record) {
	lo, hi := x.covered(r)
	r.bMin, r.bMax = x.bucketOf(lo), x.bucketOf(hi)
	r.filed = true
	for k := r.bMin; k <= r.bMax; k++ {
		members := x.buckets[k]
		pos := sort.Search(len(members), func(i int) bool {
			return members[i].opID < r.opID
		})
		x.buckets[k] = slices.Insert(members, pos, r)
	}
}

func (x *index) unfile(r *record) {
	if !r.filed {
		return
	}
	for k := r.bMin; k <= r.bMax; k++ {
		members := x.buckets[k]
		if i := slices.Index(members, r); i >= 0 {
			members = slices.Delete(members, i, i+1)
		}
		if len(members) == 0 {
			delete(x.buckets, k)
		} else {
			x.buckets[k] = members
		}
	}
	r.filed = false
}

// edit applies mutate to r and refiles r and its predecessor, the only other
// record whose coverage depends on r's start.
func (x *index) edit(r *record, mutate func(r *record)) {
	var prev *record
	if r.index > 0 {
		prev = x.records[r.index-1]
	}
	x.unfile(r)
	if prev != nil {
		x.unfile(prev)
	}
	mutate(r)
	r.normalize()
	r.opID = x.bump()
	x.file(r)
	if prev != nil {
		x.file(prev)
	}
	x.hit = nil
}

// lookup returns the record current at t. It only returns nil for an empty
// index; when no covered interval contains t it falls back to the last hit.
func (x *index) lookup(t float64) *record {
	if len(x.records) == 0 {
		return nil
	}
	if x.hit != nil && x.hitWin.contains(t) {
		return x.hit
	}

	k := x.bucketOf(t)
	members := x.buckets[k]
	for i, r := range members {
		lo, hi := x.covered(r)
		if t < lo || t > hi {
			continue
		}
		x.hit = r
		x.hitWin = x.stableWindow(k, lo, hi, t, members[:i])
		x.backup = r.index
		return r
	}

	if x.backup >= len(x.records) {
		x.backup = len(x.records) - 1
	}
	return x.records[x.backup]
}

// stableWindow narrows [lo, hi] to the bucket and away from every more
// recent member, none of which contains t.
func (x *index) stableWindow(k int, lo, hi, t float64, newer []*record) window {
	lower := float64(k) * x.width
	upper := float64(k+1) * x.width

	w := window{lo: lo, hi: hi}
	if lower > w.lo {
		w.lo = lower
	}
	if hi >= upper {
		w.hi, w.hiOpen = upper, true
	}
	for _, r := range newer {
		rlo, rhi := x.covered(r)
		if rhi < t && rhi >= w.lo {
			w.lo, w.loOpen = rhi, true
		}
		if rlo > t && rlo <= w.hi {
			w.hi, w.hiOpen = rlo, true
		}
	}
	return w
}
