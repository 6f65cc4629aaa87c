package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/cartsync/internal/fakecommerce"
)

// GoldenDir is where package tests keep trace fixtures.
const GoldenDir = "testdata/golden"

// TraceSnapshot is the golden-file form of a scenario run: what each tab
// saw after every step and what the fake API received.
type TraceSnapshot struct {
	ScenarioName string                 `json:"scenario_name"`
	Trace        []TraceEvent           `json:"trace"`
	Requests     []fakecommerce.Request `json:"requests"`
}

// Snapshot captures the golden-relevant part of a result.
func Snapshot(name string, r *Result) TraceSnapshot {
	return TraceSnapshot{ScenarioName: name, Trace: r.Trace, Requests: r.Requests}
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden runs a scenario and checks its trace against
// testdata/golden/<name>.golden. Regenerate with `go test -update`.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden checks an existing result without re-running it.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snap := Snapshot(scenarioName, result)
	data, err := snap.Marshal()
	if err != nil {
		return err
	}

	goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
		goldie.WithDiffEngine(goldie.ColoredDiff),
	).Assert(t, scenarioName, data)
	return nil
}
