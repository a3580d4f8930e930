package timeline

import (
	"math"
	"strconv"
)

// registry holds virtual groups and their independent start/end deltas.
// Member timings are never touched; ranges are recomputed per query.
type registry struct {
	seq    int
	order  []string
	byID   map[string]*Group
	delta  map[string]Offset
	byLine map[string]map[string]struct{}
}

func newRegistry() *registry {
	return &registry{
		byID:   make(map[string]*Group),
		delta:  make(map[string]Offset),
		byLine: make(map[string]map[string]struct{}),
	}
}

// dedupe keeps the first occurrence of every id.
func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (g *registry) create(lineIDs []string, meta map[string]any) string {
	g.seq++
	id := "grp-" + strconv.Itoa(g.seq)
	grp := &Group{ID: id, LineIDs: dedupe(lineIDs), Meta: meta}
	g.byID[id] = grp
	g.order = append(g.order, id)
	g.link(grp)
	return id
}

func (g *registry) update(id string, lineIDs []string) bool {
	grp, ok := g.byID[id]
	if !ok {
		return false
	}
	g.unlink(grp)
	grp.LineIDs = dedupe(lineIDs)
	g.link(grp)
	return true
}

func (g *registry) remove(id string) bool {
	grp, ok := g.byID[id]
	if !ok {
		return false
	}
	g.unlink(grp)
	delete(g.byID, id)
	delete(g.delta, id)
	for i, gid := range g.order {
		if gid == id {
			g.order = append(g.order[:i:i], g.order[i+1:]...)
			break
		}
	}
	return true
}

func (g *registry) link(grp *Group) {
	for _, lid := range grp.LineIDs {
		set, ok := g.byLine[lid]
		if !ok {
			set = make(map[string]struct{})
			g.byLine[lid] = set
		}
		set[grp.ID] = struct{}{}
	}
}

func (g *registry) unlink(grp *Group) {
	for _, lid := range grp.LineIDs {
		delete(g.byLine[lid], grp.ID)
		if len(g.byLine[lid]) == 0 {
			delete(g.byLine, lid)
		}
	}
}

func (g *registry) has(id string) bool {
	_, ok := g.byID[id]
	return ok
}

// list returns copies in creation order.
func (g *registry) list() []Group {
	out := make([]Group, 0, len(g.order))
	for _, id := range g.order {
		grp := g.byID[id]
		out = append(out, Group{
			ID:      grp.ID,
			LineIDs: append([]string(nil), grp.LineIDs...),
			Meta:    grp.Meta,
		})
	}
	return out
}

func (g *registry) of(lineID string) []string {
	set := g.byLine[lineID]
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for _, id := range g.order {
		if _, ok := set[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

func (g *registry) shift(id string, start, end float64) bool {
	if !g.has(id) {
		return false
	}
	d := g.delta[id]
	d.Start += start
	d.End += end
	g.delta[id] = d
	return true
}

func (g *registry) clearDelta(id string) bool {
	if _, ok := g.delta[id]; !ok {
		return false
	}
	delete(g.delta, id)
	return true
}

// rangeOf spans the effective intervals of the known members plus the group
// delta. A group without known members spans nothing.
func (g *registry) rangeOf(id string, member func(lineID string) (Range, bool)) (Range, bool) {
	grp, ok := g.byID[id]
	if !ok {
		return Range{}, false
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, lid := range grp.LineIDs {
		r, ok := member(lid)
		if !ok {
			continue
		}
		lo = math.Min(lo, r.Start)
		hi = math.Max(hi, r.End)
	}
	if math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return Range{}, true
	}
	d := g.delta[id]
	return Range{Start: lo + d.Start, End: hi + d.End}, true
}
