package brep

import (
	"strings"
	"testing"

	"github.com/chazu/brepfit/pkg/nurbs"
	"gonum.org/v1/gonum/spatial/r3"
)

// square builds a face bounded by four edges around the unit square.
func square(t *testing.T) (*Model, FaceID, []EdgeID) {
	t.Helper()
	m := NewModel()
	corners := []r3.Vec{{X: 0}, {X: 1}, {X: 1, Y: 1}, {Y: 1}}
	var vs []VertexID
	for i, c := range corners {
		vs = append(vs, m.AddVertex(c, i))
	}
	var es []EdgeID
	for i := range vs {
		j := (i + 1) % len(vs)
		es = append(es, m.AddEdge(nurbs.Line(corners[i], corners[j]), vs[i], vs[j], [2]int{0, None}))
	}
	s := m.AddSurface(nil, 0, 0, true)
	f := m.AddFace(s, 0)
	return m, f, es
}

func TestModelIdentity(t *testing.T) {
	a, b := NewModel(), NewModel()
	if a.ID == b.ID {
		t.Error("models share an ID")
	}
}

func TestValidateClosedLoop(t *testing.T) {
	m, f, es := square(t)
	var trims []TrimSpec
	for _, e := range es {
		trims = append(trims, TrimSpec{Edge: e})
	}
	if _, err := m.AddLoop(f, true, false, trims); err != nil {
		t.Fatal(err)
	}
	res := Validate(m)
	if !res.OK() {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	if got := m.Stats(); got.Trims != 4 || got.Loops != 1 {
		t.Errorf("stats = %v", got)
	}
}

func TestValidateReportsOpenLoop(t *testing.T) {
	m, f, es := square(t)
	// Reversing one trim breaks the walk.
	trims := []TrimSpec{{Edge: es[0]}, {Edge: es[1], Reversed: true}, {Edge: es[2]}, {Edge: es[3]}}
	if _, err := m.AddLoop(f, true, false, trims); err != nil {
		t.Fatal(err)
	}
	res := Validate(m)
	if res.OK() {
		t.Fatal("open walk not reported")
	}
	if !strings.Contains(res.Errors[0].Error(), "ends at vertex") {
		t.Errorf("error = %v", res.Errors[0])
	}
}

func TestValidateOuterLoopCount(t *testing.T) {
	m, _, _ := square(t)
	res := Validate(m)
	found := false
	for _, e := range res.Errors {
		if e.Entity == "face" && strings.Contains(e.Message, "outer loops") {
			found = true
		}
	}
	if !found {
		t.Errorf("face without outer loop not reported: %v", res.Errors)
	}
}

func TestValidateSelfLoop(t *testing.T) {
	m := NewModel()
	v := m.AddVertex(r3.Vec{}, 0)
	w := m.AddVertex(r3.Vec{X: 1}, 1)
	closed := m.AddEdge(nurbs.Line(r3.Vec{}, r3.Vec{}), v, v, [2]int{0, None})
	open := m.AddEdge(nurbs.Line(r3.Vec{}, r3.Vec{X: 1}), v, w, [2]int{0, 1})
	f := m.AddFace(m.AddSurface(nil, 0, 0, false), 0)

	if _, err := m.AddLoop(f, true, true, []TrimSpec{{Edge: closed}}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AddLoop(f, false, false, []TrimSpec{{Edge: open}}); err != nil {
		t.Fatal(err)
	}
	res := Validate(m)
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0].Message, "ends at vertex") {
		t.Fatalf("errors = %v, want the open single-edge loop only", res.Errors)
	}
	var degenerate, unconverged bool
	for _, w := range res.Warnings {
		degenerate = degenerate || w.Entity == "loop"
		unconverged = unconverged || w.Entity == "surface"
	}
	if !degenerate || !unconverged {
		t.Errorf("warnings = %v", res.Warnings)
	}
}

func TestAddLoopRejectsMissingEdge(t *testing.T) {
	m, f, _ := square(t)
	if _, err := m.AddLoop(f, true, false, []TrimSpec{{Edge: 99}}); err == nil {
		t.Error("expected error for missing edge")
	}
	if _, err := m.AddLoop(FaceID(5), true, false, nil); err == nil {
		t.Error("expected error for missing face")
	}
}
