package proximity

import (
	"fmt"
	"testing"
)

func newTestEngine(radius float64) *Engine {
	e := NewEngine(radius)
	seq := 0
	e.newID = func() string {
		seq++
		return fmt.Sprintf("group-%d", seq)
	}
	return e
}

func TestComputeGroupsPairWithinRadius(t *testing.T) {
	e := newTestEngine(96)
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
	}, nil)

	if next.GroupID("a") == "" || next.GroupID("a") != next.GroupID("b") {
		t.Fatalf("expected a and b to share a group, got %q and %q",
			next.GroupID("a"), next.GroupID("b"))
	}
}

func TestComputeLeavesDistantPlayersUngrouped(t *testing.T) {
	e := newTestEngine(96)
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 500, Y: 0},
	}, nil)

	if len(next) != 0 {
		t.Fatalf("expected no groups, got %d entries", len(next))
	}
}

func TestComputeTransitiveClosure(t *testing.T) {
	// a-b and b-c are each within radius; a-c is not. All three still share
	// one group because membership chains through b.
	e := newTestEngine(96)
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 90, Y: 0},
		{UID: "c", X: 180, Y: 0},
	}, nil)

	id := next.GroupID("a")
	if id == "" || next.GroupID("b") != id || next.GroupID("c") != id {
		t.Fatalf("expected one transitive group, got a=%q b=%q c=%q",
			next.GroupID("a"), next.GroupID("b"), next.GroupID("c"))
	}
	if got := len(next["a"].Members); got != 3 {
		t.Fatalf("expected 3 members, got %d", got)
	}
}

func TestComputeBoundaryDistanceIsInside(t *testing.T) {
	e := newTestEngine(96)
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 96, Y: 0},
	}, nil)

	if next.GroupID("a") == "" {
		t.Fatalf("distance exactly at the radius should group")
	}
}

func TestComputeKeepsGroupIDWhenMemberLeaves(t *testing.T) {
	e := newTestEngine(96)
	prev := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
		{UID: "c", X: 100, Y: 0},
	}, nil)
	id := prev.GroupID("a")

	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
		{UID: "c", X: 900, Y: 0},
	}, prev)

	if next.GroupID("a") != id {
		t.Fatalf("surviving cluster should keep id %q, got %q", id, next.GroupID("a"))
	}
	if next.GroupID("c") != "" {
		t.Fatalf("departed member should be ungrouped, got %q", next.GroupID("c"))
	}
}

func TestComputeSplitAssignsFreshIDToSmallerHalf(t *testing.T) {
	e := newTestEngine(96)
	prev := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
		{UID: "c", X: 100, Y: 0},
		{UID: "d", X: 150, Y: 0},
	}, nil)
	id := prev.GroupID("a")

	// c and d drift away together. Both halves overlap the old group
	// equally, so exactly one inherits its id and the other gets a fresh one.
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
		{UID: "c", X: 1000, Y: 0},
		{UID: "d", X: 1050, Y: 0},
	}, prev)

	abID := next.GroupID("a")
	cdID := next.GroupID("c")
	if abID == "" || cdID == "" {
		t.Fatalf("expected both halves grouped, got ab=%q cd=%q", abID, cdID)
	}
	if abID == cdID {
		t.Fatalf("split halves must not share an id")
	}
	inherited := 0
	for _, got := range []string{abID, cdID} {
		if got == id {
			inherited++
		}
	}
	if inherited != 1 {
		t.Fatalf("exactly one half should inherit %q, got ab=%q cd=%q", id, abID, cdID)
	}
}

func TestDiffReportsPartnerSetChanges(t *testing.T) {
	e := newTestEngine(96)
	prev := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
	}, nil)

	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
		{UID: "c", X: 100, Y: 0},
	}, prev)

	changed := Diff(prev, next)
	want := []string{"a", "b", "c"}
	if len(changed) != len(want) {
		t.Fatalf("expected %v, got %v", want, changed)
	}
	for i, uid := range want {
		if changed[i] != uid {
			t.Fatalf("expected %v, got %v", want, changed)
		}
	}
}

func TestDiffEmptyWhenNothingChanged(t *testing.T) {
	e := newTestEngine(96)
	points := []Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
	}
	prev := e.Compute(points, nil)
	next := e.Compute(points, prev)

	if changed := Diff(prev, next); len(changed) != 0 {
		t.Fatalf("expected no changes, got %v", changed)
	}
}

func TestDiffReportsUngrouping(t *testing.T) {
	e := newTestEngine(96)
	prev := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 50, Y: 0},
	}, nil)
	next := e.Compute([]Point{
		{UID: "a", X: 0, Y: 0},
		{UID: "b", X: 500, Y: 0},
	}, prev)

	changed := Diff(prev, next)
	if len(changed) != 2 {
		t.Fatalf("expected both uids reported, got %v", changed)
	}
}

func TestNewEngineDefaultsRadius(t *testing.T) {
	e := NewEngine(0)
	if e.radius != DefaultRadius {
		t.Fatalf("expected default radius %v, got %v", DefaultRadius, e.radius)
	}
}
