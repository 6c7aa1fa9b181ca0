package proximity

import (
	"sort"

	"github.com/google/uuid"
)

// DefaultRadius is the interaction distance, in tile units, within which two
// players are considered close enough to share a conversation group.
const DefaultRadius = 4.0

// Point is a player position inside a single room.
type Point struct {
	UID string
	X   float64
	Y   float64
}

// Group is a transitively-closed cluster of players. Members is sorted and
// shared by every member's Assignment entry.
type Group struct {
	ID      string
	Members []string
}

// Assignment maps each grouped uid to its group. Ungrouped players are absent.
type Assignment map[string]*Group

// GroupID returns the group id for uid, or "" when ungrouped.
func (a Assignment) GroupID(uid string) string {
	if g, ok := a[uid]; ok && g != nil {
		return g.ID
	}
	return ""
}

// Engine computes proximity groups for one room at a time. It keeps no state
// of its own; callers hold the previous Assignment per room and pass it back
// in so group ids stay stable while a cluster persists.
type Engine struct {
	radius float64
	newID  func() string
}

func NewEngine(radius float64) *Engine {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Engine{radius: radius, newID: uuid.NewString}
}

// Compute partitions the room into transitively-closed groups: players within
// radius of each other share a group, and so does anyone reachable through a
// chain of such pairs. Clusters of one are ungrouped. Group ids carry over
// from prev when the new cluster overlaps an old one.
func (e *Engine) Compute(points []Point, prev Assignment) Assignment {
	next := make(Assignment, len(points))
	if len(points) == 0 {
		return next
	}

	parent := make([]int, len(points))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}

	limit := e.radius * e.radius
	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			dx := points[i].X - points[j].X
			dy := points[i].Y - points[j].Y
			if dx*dx+dy*dy <= limit {
				union(i, j)
			}
		}
	}

	clusters := make(map[int][]string)
	for i, p := range points {
		root := find(i)
		clusters[root] = append(clusters[root], p.UID)
	}

	roots := make([]int, 0, len(clusters))
	for root := range clusters {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	used := make(map[string]bool)
	for _, root := range roots {
		members := clusters[root]
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		group := &Group{ID: e.inheritID(members, prev, used), Members: members}
		used[group.ID] = true
		for _, uid := range members {
			next[uid] = group
		}
	}
	return next
}

// inheritID picks the id of the previous group sharing the most members with
// the new cluster, so a surviving cluster keeps its identity across moves.
// Ties break on the smaller id to stay deterministic.
func (e *Engine) inheritID(members []string, prev Assignment, used map[string]bool) string {
	overlap := make(map[string]int)
	for _, uid := range members {
		if g, ok := prev[uid]; ok && g != nil && !used[g.ID] {
			overlap[g.ID]++
		}
	}
	best := ""
	bestCount := 0
	for id, count := range overlap {
		if count > bestCount || (count == bestCount && (best == "" || id < best)) {
			best = id
			bestCount = count
		}
	}
	if best != "" {
		return best
	}
	return e.newID()
}

// Diff reports every uid whose grouping changed between two assignments:
// grouped to ungrouped or back, a different group id, or the same id with a
// different partner set. Callers filter out uids that left the room.
func Diff(old, next Assignment) []string {
	changed := make([]string, 0)
	seen := make(map[string]bool)
	for uid := range old {
		seen[uid] = true
		if !sameGroup(old[uid], next[uid]) {
			changed = append(changed, uid)
		}
	}
	for uid := range next {
		if seen[uid] {
			continue
		}
		if !sameGroup(old[uid], next[uid]) {
			changed = append(changed, uid)
		}
	}
	sort.Strings(changed)
	return changed
}

func sameGroup(a, b *Group) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a.ID != b.ID || len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i] != b.Members[i] {
			return false
		}
	}
	return true
}
