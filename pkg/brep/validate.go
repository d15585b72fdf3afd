package brep

import "fmt"

// ValidationSeverity indicates whether a finding makes the model unusable
// or is merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // broken topology
	SeverityWarning                           // lower fidelity
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Entity   string // "face", "loop", "edge", ...
	ID       int
	Message  string
	Severity ValidationSeverity
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s %d: %s", e.Severity, e.Entity, e.ID, e.Message)
}

// ValidationWarning describes a non-blocking advisory finding.
type ValidationWarning struct {
	Entity  string
	ID      int
	Message string
}

func (w ValidationWarning) String() string {
	return fmt.Sprintf("%s %d: %s", w.Entity, w.ID, w.Message)
}

// ValidationResult bundles errors (blocking) and warnings (advisory).
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// OK reports whether no errors were found.
func (r ValidationResult) OK() bool {
	return len(r.Errors) == 0
}

// Validate checks the model's references, that every face has exactly one
// outer loop and that every loop is a closed walk. Degenerate loops,
// unused edges and surfaces whose fit did not converge are reported as
// warnings. The model is not modified.
func Validate(m *Model) ValidationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	var res ValidationResult
	fail := func(entity string, id int, format string, args ...any) {
		res.Errors = append(res.Errors, ValidationError{
			Entity: entity, ID: id, Message: fmt.Sprintf(format, args...), Severity: SeverityError,
		})
	}
	warn := func(entity string, id int, format string, args ...any) {
		res.Warnings = append(res.Warnings, ValidationWarning{
			Entity: entity, ID: id, Message: fmt.Sprintf(format, args...),
		})
	}

	validateEdges(m, fail)
	validateFaces(m, fail, warn)
	validateLoops(m, fail, warn)

	used := make([]int, len(m.Edges))
	for _, t := range m.Trims {
		if int(t.Edge) >= 0 && int(t.Edge) < len(m.Edges) {
			used[t.Edge]++
		}
	}
	for i, n := range used {
		if n == 0 {
			warn("edge", i, "not used by any face")
		}
	}
	for _, s := range m.Surfaces {
		if !s.Converged {
			warn("surface", int(s.ID), "fit did not converge (rms %.3g, max %.3g)", s.RMS, s.Max)
		}
	}
	return res
}

type reportFunc func(entity string, id int, format string, args ...any)

func validateEdges(m *Model, fail reportFunc) {
	for _, e := range m.Edges {
		if int(e.Curve) < 0 || int(e.Curve) >= len(m.Curves) || m.Curves[e.Curve].Curve == nil {
			fail("edge", int(e.ID), "curve %d does not exist", e.Curve)
		}
		for _, v := range []VertexID{e.Start, e.End} {
			if int(v) < 0 || int(v) >= len(m.Vertices) {
				fail("edge", int(e.ID), "vertex %d does not exist", v)
			}
		}
		if e.Patches[0] == e.Patches[1] {
			fail("edge", int(e.ID), "separates patch %d from itself", e.Patches[0])
		}
	}
}

func validateFaces(m *Model, fail, warn reportFunc) {
	for _, f := range m.Faces {
		if int(f.Surface) < 0 || int(f.Surface) >= len(m.Surfaces) {
			fail("face", int(f.ID), "surface %d does not exist", f.Surface)
		}
		outer := 0
		for _, id := range append([]LoopID{f.Outer}, f.Inner...) {
			if id == None {
				continue
			}
			if int(id) < 0 || int(id) >= len(m.Loops) {
				fail("face", int(f.ID), "loop %d does not exist", id)
				continue
			}
			l := m.Loops[id]
			if l.Face != f.ID {
				fail("face", int(f.ID), "loop %d belongs to face %d", id, l.Face)
			}
			if l.Outer {
				outer++
			}
		}
		if f.Outer == None || outer != 1 {
			fail("face", int(f.ID), "has %d outer loops, want exactly 1", outer)
		}
		if len(f.Inner) > 0 {
			warn("face", int(f.ID), "has %d inner loops", len(f.Inner))
		}
	}
}

func validateLoops(m *Model, fail, warn reportFunc) {
	for _, l := range m.Loops {
		if l.Degenerate {
			warn("loop", int(l.ID), "degenerate trimming curves")
		}
		if len(l.Trims) == 0 {
			fail("loop", int(l.ID), "has no trims")
			continue
		}
		var ends [][2]VertexID
		ok := true
		for _, tid := range l.Trims {
			if int(tid) < 0 || int(tid) >= len(m.Trims) {
				fail("loop", int(l.ID), "trim %d does not exist", tid)
				ok = false
				continue
			}
			t := m.Trims[tid]
			if t.Loop != l.ID {
				fail("loop", int(l.ID), "trim %d belongs to loop %d", tid, t.Loop)
			}
			if int(t.Edge) < 0 || int(t.Edge) >= len(m.Edges) {
				fail("loop", int(l.ID), "trim %d references missing edge %d", tid, t.Edge)
				ok = false
				continue
			}
			e := m.Edges[t.Edge]
			if t.Reversed {
				ends = append(ends, [2]VertexID{e.End, e.Start})
			} else {
				ends = append(ends, [2]VertexID{e.Start, e.End})
			}
		}
		if !ok {
			continue
		}
		for i := range ends {
			next := ends[(i+1)%len(ends)]
			if ends[i][1] != next[0] {
				fail("loop", int(l.ID), "trim %d ends at vertex %d but trim %d starts at %d",
					l.Trims[i], ends[i][1], l.Trims[(i+1)%len(ends)], next[0])
			}
		}
	}
}
