package solver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan_LinearChain(t *testing.T) {
	jobs := []JobInfo{{ID: "A", Enabled: true}, {ID: "B", Enabled: true}, {ID: "C", Enabled: true}}
	edges := []Edge{{Predecessor: "A", Successor: "B"}, {Predecessor: "B", Successor: "C"}}

	order, cycles := Plan(jobs, edges)
	assert.Equal(t, []string{"A", "B", "C"}, order)
	assert.Empty(t, cycles)
}

func TestPlan_Diamond(t *testing.T) {
	// A has two dependents B and C, both of which D waits on.
	jobs := []JobInfo{{ID: "A", Enabled: true}, {ID: "B", Enabled: true}, {ID: "C", Enabled: true}, {ID: "D", Enabled: true}}
	edges := []Edge{
		{Predecessor: "A", Successor: "B"},
		{Predecessor: "A", Successor: "C"},
		{Predecessor: "B", Successor: "D"},
		{Predecessor: "C", Successor: "D"},
	}

	order, cycles := Plan(jobs, edges)
	assert.Empty(t, cycles)
	assert.Equal(t, []string{"A", "B", "C", "D"}, order)
}

func TestPlan_Cycle(t *testing.T) {
	jobs := []JobInfo{{ID: "A", Enabled: true}, {ID: "B", Enabled: true}}
	edges := []Edge{{Predecessor: "B", Successor: "A"}, {Predecessor: "A", Successor: "B"}}

	order, cycles := Plan(jobs, edges)
	assert.Empty(t, order)
	assert.Equal(t, []string{"A", "B"}, cycles)
}

func TestPlan_DisabledJobSkipped(t *testing.T) {
	jobs := []JobInfo{{ID: "A", Enabled: false}, {ID: "B", Enabled: true}}
	edges := []Edge{{Predecessor: "A", Successor: "B"}}

	order, cycles := Plan(jobs, edges)
	// A is disabled so never starts; B waits on a predecessor that never
	// becomes Running and so is reported by Cycles. A itself is not, since
	// disabled jobs are never reported.
	assert.Empty(t, order)
	assert.Equal(t, []string{"B"}, cycles)
}

func TestSolver_SeededWithAlreadyRunning(t *testing.T) {
	jobs := []JobInfo{{ID: "A", Enabled: true, Running: true}, {ID: "B", Enabled: true}}
	edges := []Edge{{Predecessor: "A", Successor: "B"}}

	s := New(jobs, edges)
	assert.Equal(t, []string{"B"}, s.Startable())
}

func TestSolver_TieBreakIsLexicographic(t *testing.T) {
	jobs := []JobInfo{{ID: "z", Enabled: true}, {ID: "a", Enabled: true}, {ID: "m", Enabled: true}}
	s := New(jobs, nil)
	assert.Equal(t, []string{"a", "m", "z"}, s.Startable())
}

func TestSolver_MarkRunningReturnsNewlyStartable(t *testing.T) {
	jobs := []JobInfo{{ID: "A", Enabled: true}, {ID: "B", Enabled: true}}
	edges := []Edge{{Predecessor: "A", Successor: "B"}}
	s := New(jobs, edges)

	assert.Equal(t, []string{"A"}, s.Startable())
	newly := s.MarkRunning("A")
	assert.Equal(t, []string{"B"}, newly)
}
