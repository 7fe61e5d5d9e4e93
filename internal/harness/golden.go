package harness

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/terrane-dev/terrane/internal/engine"
)

// TimelineEntry is one row of the golden transition timeline.
type TimelineEntry struct {
	Seq    int64  `json:"seq"`
	Node   string `json:"node"`
	From   string `json:"from"`
	To     string `json:"to"`
	Action string `json:"action,omitempty"`
	Class  string `json:"error_class,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// RunWithGolden executes a scenario, checks its expectations, and
// compares the transition timeline against the scenario's golden file.
// Deterministic because Run converges with parallelism 1.
func RunWithGolden(t *testing.T, scenarioPath string) *Outcome {
	t.Helper()

	s, err := Load(scenarioPath)
	require.NoError(t, err)

	outcome, err := Run(context.Background(), s)
	require.NoError(t, err)

	for _, violation := range outcome.Check() {
		t.Error(violation)
	}

	timeline := make([]TimelineEntry, 0, len(outcome.Transitions))
	for _, tr := range outcome.Transitions {
		timeline = append(timeline, timelineEntry(tr))
	}
	data, err := json.MarshalIndent(timeline, "", "  ")
	require.NoError(t, err)
	data = append(data, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, s.Name, data)

	return outcome
}

func timelineEntry(tr engine.Transition) TimelineEntry {
	return TimelineEntry{
		Seq:    tr.Seq,
		Node:   string(tr.NodeID),
		From:   string(tr.From),
		To:     string(tr.To),
		Action: string(tr.Action),
		Class:  string(tr.Class),
		Detail: tr.Detail,
	}
}
