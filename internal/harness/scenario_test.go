package harness

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedraw/stagedraw/internal/selector"
	"github.com/stagedraw/stagedraw/internal/store"
)

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, files, "no scenario files found")

	for _, path := range files {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "expectation mismatches: %v", result.Errors)
		})
	}
}

func TestLoadScenarioRejectsInvalidFiles(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "steps:\n  - undo: true\n"},
		{"no steps", "name: empty\n"},
		{"step with nothing", "name: s\nsteps:\n  - expect: X\n"},
		{"draw and undo in one step", "name: s\nsteps:\n  - undo: true\n    draw: {lists: [l1], prize: p1, count: 1}\n"},
		{"zero count draw", "name: s\nsteps:\n  - draw: {lists: [l1], prize: p1, count: 0}\n"},
		{"malformed yaml", "name: [unclosed\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o644))
			_, err := LoadScenario(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestRunReportsExpectationMismatch(t *testing.T) {
	scenario := &Scenario{
		Name: "mismatch",
		IDs:  []string{"h1", "w1"},
		Seed: Seed{
			Lists:  []SeedList{{ID: "l1", Name: "L", Entries: []SeedEntry{{ID: "e1", Name: "Ada"}}}},
			Prizes: []SeedPrize{{ID: "p1", Name: "Mug", Quantity: 1}},
		},
		Steps: []Step{
			{Draw: &DrawStep{Lists: []string{"l1"}, Prize: "p1", Count: 1}, Expect: "PRIZE_NOT_FOUND"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "step succeeded")
}

func TestAsyncDrawErrorTracesIdleBeforeNextStep(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st, err := store.Open(t.TempDir(), logger)
	require.NoError(t, err)
	require.NoError(t, seed(st, Seed{
		Lists:  []SeedList{{ID: "l1", Name: "L", Entries: []SeedEntry{{ID: "e1", Name: "Ada"}}}},
		Prizes: []SeedPrize{{ID: "p1", Name: "Mug", Quantity: 1}},
	}))

	failing := func(req selector.Request) <-chan selector.Response {
		ch := make(chan selector.Response, 1)
		ch <- selector.Response{Err: errors.New("entropy source unavailable")}
		return ch
	}
	r := newRunner(st, logger, nil, failing)

	require.NoError(t, r.runStep(Step{
		Draw:   &DrawStep{Lists: []string{"l1"}, Prize: "p1", Count: 1},
		Expect: "SELECTION_FAILED",
	}))

	// The idle transition must be in the trace before the step loop moves
	// on, otherwise the error event could interleave with it.
	var types, phases []string
	for _, e := range r.result.Trace {
		types = append(types, e.Type)
		if e.Type == "phase" {
			phases = append(phases, e.Phase)
		}
	}
	assert.Equal(t, []string{"phase", "phase", "error"}, types)
	assert.Equal(t, []string{"selecting", "idle"}, phases)
	assert.True(t, r.result.Pass)
}
