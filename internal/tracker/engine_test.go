package tracker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/jparent/internal/types"
)

// mockTracker implements IssueTracker for testing.
type mockTracker struct {
	name      string
	issues    map[string]*TrackerIssue
	fetchErr  error
	setErrs   map[string]error
	fetches   []string
	setCalls  []setCall
	onSet     func(key string)
	validated bool
}

type setCall struct {
	Key    string
	Parent string
}

func newMockTracker(name string, known ...string) *mockTracker {
	m := &mockTracker{
		name:    name,
		issues:  make(map[string]*TrackerIssue),
		setErrs: make(map[string]error),
	}
	for _, key := range known {
		m.issues[key] = &TrackerIssue{ID: "id-" + key, Identifier: key, Title: "Epic " + key}
	}
	return m
}

func (m *mockTracker) Name() string                           { return m.name }
func (m *mockTracker) DisplayName() string                    { return m.name }
func (m *mockTracker) ConfigPrefix() string                   { return m.name }
func (m *mockTracker) Init(_ context.Context, _ *Config) error { return nil }
func (m *mockTracker) Validate() error                        { m.validated = true; return nil }
func (m *mockTracker) Close() error                           { return nil }

func (m *mockTracker) FetchIssue(_ context.Context, key string) (*TrackerIssue, error) {
	m.fetches = append(m.fetches, key)
	if m.fetchErr != nil {
		return nil, m.fetchErr
	}
	issue, ok := m.issues[key]
	if !ok {
		return nil, fmt.Errorf("issue %s does not exist", key)
	}
	return issue, nil
}

func (m *mockTracker) SetParent(_ context.Context, key, parentKey string) error {
	m.setCalls = append(m.setCalls, setCall{Key: key, Parent: parentKey})
	if m.onSet != nil {
		m.onSet(key)
	}
	if err := m.setErrs[key]; err != nil {
		return err
	}
	if issue, ok := m.issues[key]; ok {
		issue.ParentKey = parentKey
	}
	return nil
}

func strPtr(s string) *string { return &s }

func record(key, parentKey string) types.IssueRecord {
	rec := types.NewIssueRecord(key, "id-"+key, nil, nil)
	if parentKey != "" {
		rec.ParentKey = strPtr(parentKey)
	}
	return rec
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		rec    types.IssueRecord
		target string
		want   types.Decision
	}{
		{"same parent", record("A-1", "P-1"), "P-1", types.DecisionSkip},
		{"different parent", record("A-1", "P-2"), "P-1", types.DecisionApply},
		{"no parent column", record("A-1", ""), "P-1", types.DecisionApply},
		{"blank parent cell", types.IssueRecord{Key: "A-1", ID: "1", ParentKey: strPtr("")}, "P-1", types.DecisionApply},
		{"case differs", record("A-1", "p-1"), "P-1", types.DecisionApply},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.rec, tt.target))
		})
	}
}

func TestPlanPreservesOrder(t *testing.T) {
	records := []types.IssueRecord{record("A-1", "P-1"), record("B-2", ""), record("C-3", "X-9")}
	plan := Plan(records, "P-1")
	require.Len(t, plan, 3)
	assert.Equal(t, "A-1", plan[0].Record.Key)
	assert.Equal(t, types.DecisionSkip, plan[0].Decision)
	assert.Equal(t, "B-2", plan[1].Record.Key)
	assert.Equal(t, types.DecisionApply, plan[1].Decision)
	assert.Equal(t, "C-3", plan[2].Record.Key)
	assert.Equal(t, types.DecisionApply, plan[2].Decision)
}

func TestEngineRunScenario(t *testing.T) {
	mt := newMockTracker("mock", "PROJ-100", "PROJ-1", "PROJ-2", "PROJ-3")
	records := []types.IssueRecord{
		record("PROJ-1", ""),
		record("PROJ-2", "PROJ-100"),
		record("PROJ-3", "PROJ-50"),
	}

	var seen []string
	var messages []string
	engine := NewEngine(mt)
	engine.OnItem = func(item ItemResult) { seen = append(seen, item.Record.Key) }
	engine.OnMessage = func(msg string) { messages = append(messages, msg) }

	result, err := engine.Run(context.Background(), records, Options{Target: "PROJ-100"})
	require.NoError(t, err)

	assert.Equal(t, Tally{Applied: 2, Skipped: 1, Failed: 0, Total: 3}, result.Stats)
	assert.True(t, result.Success())
	assert.Equal(t, []string{"PROJ-100"}, mt.fetches)
	assert.Equal(t, []setCall{{"PROJ-1", "PROJ-100"}, {"PROJ-3", "PROJ-100"}}, mt.setCalls)
	assert.Equal(t, []string{"PROJ-1", "PROJ-2", "PROJ-3"}, seen)
	assert.Equal(t, "mock", result.Tracker)
	assert.NotEmpty(t, result.RunID)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
	assert.Contains(t, messages, "Parent issue found: PROJ-100 - Epic PROJ-100")

	assert.Equal(t, types.OutcomeApplied, result.Items[0].Outcome)
	assert.Equal(t, types.OutcomeSkipped, result.Items[1].Outcome)
	assert.Equal(t, types.OutcomeApplied, result.Items[2].Outcome)
}

func TestEngineSkipNeverMutates(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	records := []types.IssueRecord{record("A-1", "P-1"), record("A-2", "P-1")}

	result, err := NewEngine(mt).Run(context.Background(), records, Options{Target: "P-1"})
	require.NoError(t, err)

	assert.Empty(t, mt.setCalls)
	assert.Equal(t, 2, result.Stats.Skipped)
	assert.Equal(t, 0, result.Stats.Applied)
}

func TestEngineDryRun(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	records := []types.IssueRecord{record("A-1", ""), record("A-2", "P-1"), record("A-3", "Q-7")}

	result, err := NewEngine(mt).Run(context.Background(), records, Options{Target: "P-1", DryRun: true})
	require.NoError(t, err)

	assert.Empty(t, mt.setCalls, "dry run must not call SetParent")
	assert.Equal(t, []string{"P-1"}, mt.fetches, "dry run still verifies the parent")
	assert.Equal(t, Tally{Applied: 2, Skipped: 1, Total: 3}, result.Stats)
	assert.True(t, result.DryRun)
	assert.True(t, result.Items[0].WouldApply)
	assert.False(t, result.Items[1].WouldApply)
	assert.True(t, result.Items[2].WouldApply)
}

func TestEngineFailureDoesNotStopBatch(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	mt.setErrs["A-2"] = errors.New("jira API returned 400: parent cannot be set")
	records := []types.IssueRecord{record("A-1", ""), record("A-2", ""), record("A-3", "")}

	var warnings []string
	engine := NewEngine(mt)
	engine.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	result, err := engine.Run(context.Background(), records, Options{Target: "P-1"})
	require.NoError(t, err)

	assert.Len(t, mt.setCalls, 3, "records after a failure are still attempted")
	assert.Equal(t, Tally{Applied: 2, Failed: 1, Total: 3}, result.Stats)
	assert.False(t, result.Success())
	assert.Empty(t, warnings)

	failures := result.Failures()
	require.Len(t, failures, 1)
	assert.Equal(t, "A-2", failures[0].Record.Key)

	var applyErr *ItemApplyError
	require.True(t, errors.As(failures[0].Err, &applyErr))
	assert.Equal(t, "A-2", applyErr.Key)
	assert.Contains(t, failures[0].Error, "parent cannot be set")
}

func TestEngineResolutionFailure(t *testing.T) {
	t.Run("missing parent", func(t *testing.T) {
		mt := newMockTracker("mock")
		records := []types.IssueRecord{record("A-1", ""), record("A-2", "")}

		result, err := NewEngine(mt).Run(context.Background(), records, Options{Target: "NOPE-1"})
		assert.Nil(t, result)

		var resErr *TargetResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.Equal(t, "NOPE-1", resErr.Target)
		assert.Empty(t, mt.setCalls)
	})

	t.Run("transport error", func(t *testing.T) {
		mt := newMockTracker("mock", "P-1")
		mt.fetchErr = errors.New("connection refused")

		_, err := NewEngine(mt).Run(context.Background(), []types.IssueRecord{record("A-1", "")}, Options{Target: "P-1"})
		var resErr *TargetResolutionError
		require.True(t, errors.As(err, &resErr))
		assert.ErrorIs(t, err, mt.fetchErr)
		assert.Empty(t, mt.setCalls)
	})

	t.Run("dry run", func(t *testing.T) {
		mt := newMockTracker("mock")
		_, err := NewEngine(mt).Run(context.Background(), []types.IssueRecord{record("A-1", "")}, Options{Target: "P-1", DryRun: true})
		var resErr *TargetResolutionError
		assert.True(t, errors.As(err, &resErr))
	})
}

func TestEngineNoIssues(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	result, err := NewEngine(mt).Run(context.Background(), nil, Options{Target: "P-1"})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNoIssues)
	assert.Empty(t, mt.fetches, "nothing is contacted for an empty batch")
}

func TestEngineIdempotentSecondRun(t *testing.T) {
	mt := newMockTracker("mock", "P-1", "A-1", "A-2")
	engine := NewEngine(mt)

	first, err := engine.Run(context.Background(), []types.IssueRecord{record("A-1", ""), record("A-2", "Q-1")}, Options{Target: "P-1"})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Stats.Applied)

	// Re-export after the first run: every record now carries the target.
	var reexported []types.IssueRecord
	for _, key := range []string{"A-1", "A-2"} {
		reexported = append(reexported, record(key, mt.issues[key].ParentKey))
	}

	second, err := engine.Run(context.Background(), reexported, Options{Target: "P-1"})
	require.NoError(t, err)
	assert.Equal(t, Tally{Skipped: 2, Total: 2}, second.Stats)
	assert.Len(t, mt.setCalls, 2, "second run made no further updates")
	assert.NotEqual(t, first.RunID, second.RunID)
}

func TestEngineCancellation(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mt.onSet = func(key string) {
		if key == "A-1" {
			cancel()
		}
	}

	var warnings []string
	engine := NewEngine(mt)
	engine.OnWarning = func(msg string) { warnings = append(warnings, msg) }

	records := []types.IssueRecord{record("A-1", ""), record("A-2", "P-1"), record("A-3", "")}
	result, err := engine.Run(ctx, records, Options{Target: "P-1"})
	require.NoError(t, err)

	assert.Len(t, mt.setCalls, 1, "no updates are sent after cancellation")
	assert.Equal(t, Tally{Applied: 1, Skipped: 1, Failed: 1, Total: 3}, result.Stats)
	assert.ErrorIs(t, result.Items[2].Err, context.Canceled)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "interrupted")
}

func TestEngineTotalsConsistent(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	mt.setErrs["E-2"] = errors.New("boom")
	mt.setErrs["E-5"] = errors.New("boom")

	var records []types.IssueRecord
	for i := 0; i < 8; i++ {
		parent := ""
		if i%3 == 0 {
			parent = "P-1"
		}
		records = append(records, record(fmt.Sprintf("E-%d", i), parent))
	}

	for _, dryRun := range []bool{false, true} {
		result, err := NewEngine(mt).Run(context.Background(), records, Options{Target: "P-1", DryRun: dryRun})
		require.NoError(t, err)
		assert.True(t, result.Stats.Consistent(), "dryRun=%v: %s", dryRun, result.Stats)
		assert.Equal(t, len(records), result.Stats.Total)
		assert.Len(t, result.Items, len(records))
	}
}

func TestEngineUsesProvidedRunID(t *testing.T) {
	mt := newMockTracker("mock", "P-1")
	result, err := NewEngine(mt).Run(context.Background(), []types.IssueRecord{record("A-1", "")}, Options{Target: "P-1", RunID: "run-42"})
	require.NoError(t, err)
	assert.Equal(t, "run-42", result.RunID)
}
