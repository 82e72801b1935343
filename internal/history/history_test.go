package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AndreyAkinshin/qgate/internal/config"
	"github.com/AndreyAkinshin/qgate/internal/coverage"
	gateerrors "github.com/AndreyAkinshin/qgate/internal/errors"
	"github.com/AndreyAkinshin/qgate/internal/lintscore"
	"github.com/AndreyAkinshin/qgate/internal/pipeline"
	"github.com/AndreyAkinshin/qgate/internal/testparser"
	"github.com/AndreyAkinshin/qgate/internal/trigger"
)

func sampleResult() *pipeline.Result {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r := &pipeline.Result{
		RunID:     "run-1",
		Project:   "elbow",
		Event:     trigger.Event{Kind: trigger.KindPush, Branch: "main"},
		Revision:  "4f2a9c1e0b7d",
		Toolchain: "python",
		Verdict:   pipeline.VerdictFailed,
		Tests:     &testparser.TestCounts{Passed: 11, Failed: 1, Total: 12, Parsed: true},
		LintScore: &lintscore.Verdict{Score: 9.5, Found: true, Threshold: 9, Passed: true},
		Coverage:  &coverage.Summary{LineRate: 0.91, LinesValid: 100, LinesCovered: 91},
		StartTime: start,
		EndTime:   start.Add(90 * time.Second),
		Duration:  90 * time.Second,
	}
	for _, name := range pipeline.Order {
		s := &pipeline.StageResult{Name: name, Kind: pipeline.StageKind(name), Status: pipeline.StatusPassed, Duration: time.Second}
		r.Stages = append(r.Stages, s)
	}
	test := r.Stage(pipeline.StageTest)
	test.Status = pipeline.StatusFailed
	test.ExitCode = 1
	test.Error = gateerrors.Test(pipeline.StageTest, "11 passed, 1 failed (exit status 1)")
	return r
}

func TestFromResult(t *testing.T) {
	rec := FromResult(sampleResult())

	assert.Equal(t, "run-1", rec.RunID)
	assert.Equal(t, "push to main", rec.Event)
	assert.Equal(t, "main", rec.Branch)
	assert.Equal(t, "failed", rec.Verdict)
	assert.Equal(t, gateerrors.ExitGateFailure, rec.ExitCode)
	assert.Equal(t, pipeline.StageTest, rec.FailedStage)
	assert.Equal(t, int64(90000), rec.DurationMS)
	require.NotNil(t, rec.LintScore)
	assert.InDelta(t, 9.5, *rec.LintScore, 1e-9)
	require.NotNil(t, rec.Tests)
	assert.Equal(t, TestTotals{Passed: 11, Failed: 1}, *rec.Tests)
	require.NotNil(t, rec.Coverage)
	assert.InDelta(t, 91.0, *rec.Coverage, 1e-9)

	require.Len(t, rec.Stages, len(pipeline.Order))
	test := rec.Stages[8]
	assert.Equal(t, pipeline.StageTest, test.Name)
	assert.Equal(t, "failed", test.Status)
	assert.Equal(t, 1, test.ExitCode)
	assert.Contains(t, test.Error, "1 failed")
}

func TestFromResult_Filtered(t *testing.T) {
	r := &pipeline.Result{RunID: "run-2", Project: "elbow", Verdict: pipeline.VerdictFiltered}
	rec := FromResult(r)

	assert.Equal(t, "filtered", rec.Verdict)
	assert.Equal(t, gateerrors.ExitSuccess, rec.ExitCode)
	assert.Empty(t, rec.FailedStage)
	assert.Nil(t, rec.Tests)
	assert.Nil(t, rec.LintScore)
	assert.NotNil(t, rec.Stages)
}

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.jsonl")
	rec := &FileRecorder{Path: path}
	ctx := context.Background()

	first := FromResult(sampleResult())
	second := first
	second.RunID = "run-2"
	second.Verdict = "succeeded"

	require.NoError(t, rec.Record(ctx, first))
	require.NoError(t, rec.Record(ctx, second))

	records, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-1", records[0].RunID)
	assert.Equal(t, "run-2", records[1].RunID)
	assert.True(t, records[0].StartedAt.Equal(first.StartedAt))
	assert.Len(t, records[0].Stages, len(pipeline.Order))

	newest := Last(records, 1)
	require.Len(t, newest, 1)
	assert.Equal(t, "run-2", newest[0].RunID)
	assert.Len(t, Last(records, 0), 2)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	records, err := ReadFile(filepath.Join(dir, "missing.jsonl"))
	require.NoError(t, err)
	assert.Empty(t, records)

	bad := filepath.Join(dir, "bad.jsonl")
	require.NoError(t, os.WriteFile(bad, []byte("{\"run_id\":\"a\"}\n\nnot json\n"), 0o644))
	_, err = ReadFile(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.jsonl:3")
}

type failingRecorder struct{}

func (failingRecorder) Name() string { return "broken" }

func (failingRecorder) Record(context.Context, Record) error { return errors.New("disk full") }

func TestSet(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	set, err := Open(ctx, nil, root, os.Getenv)
	require.NoError(t, err)
	assert.Empty(t, set.Recorders)
	assert.NoError(t, set.Record(ctx, Record{RunID: "x"}))

	set, err = Open(ctx, &config.HistoryConfig{File: ".qgate/history.jsonl"}, root, os.Getenv)
	require.NoError(t, err)
	require.Len(t, set.Recorders, 1)
	assert.Equal(t, filepath.Join(root, ".qgate", "history.jsonl"), set.Recorders[0].(*FileRecorder).Path)

	set.Recorders = append(set.Recorders, failingRecorder{})
	err = set.Record(ctx, FromResult(sampleResult()))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken history: disk full")
	assert.FileExists(t, filepath.Join(root, ".qgate", "history.jsonl"))
	assert.NoError(t, set.Close())
}

func TestOpen_DatabaseURLUnset(t *testing.T) {
	cfg := &config.HistoryConfig{File: "runs.jsonl", DatabaseURLEnv: "QGATE_HISTORY_URL"}
	set, err := Open(context.Background(), cfg, t.TempDir(), func(string) string { return "" })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "QGATE_HISTORY_URL is not set")
	require.NotNil(t, set)
	assert.Len(t, set.Recorders, 1, "file recorder survives a database failure")
}

func TestPostgresRecorder(t *testing.T) {
	url := os.Getenv("QGATE_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("QGATE_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	pg, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer func() { _ = pg.Close() }()

	rec := FromResult(sampleResult())
	rec.RunID = uuid.NewString()
	rec.Project = "elbow-" + rec.RunID[:8]

	require.NoError(t, pg.Record(ctx, rec))

	err = pg.Record(ctx, rec)
	assert.ErrorIs(t, err, ErrDuplicateRun)

	runs, err := pg.Recent(ctx, rec.Project, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, rec.RunID, runs[0].RunID)
	assert.Equal(t, "failed", runs[0].Verdict)
	assert.Equal(t, rec.Revision, runs[0].Revision)
	assert.Equal(t, rec.FailedStage, runs[0].FailedStage)

	all, err := pg.Recent(ctx, rec.Project, 0)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	set := &Set{Recorders: []Recorder{&FileRecorder{Path: filepath.Join(t.TempDir(), "runs.jsonl")}, pg}}
	runs, source, err := set.Recent(ctx, rec.Project, 5)
	require.NoError(t, err)
	assert.Equal(t, "postgres", source)
	assert.Len(t, runs, 1)
}

func TestSet_RecentFromFile(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	rec := &FileRecorder{Path: path}
	for _, id := range []string{"run-1", "run-2", "run-3"} {
		require.NoError(t, rec.Record(ctx, Record{RunID: id, Project: "elbow", Verdict: "succeeded"}))
	}

	set := &Set{Recorders: []Recorder{failingRecorder{}, rec}}
	runs, source, err := set.Recent(ctx, "elbow", 2)
	require.NoError(t, err)
	assert.Equal(t, "file", source)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-2", runs[1].RunID)

	_, _, err = (&Set{Recorders: []Recorder{failingRecorder{}}}).Recent(ctx, "elbow", 2)
	assert.ErrorIs(t, err, ErrNoReader)
}

func TestOpenPostgres_EmptyURL(t *testing.T) {
	_, err := OpenPostgres(context.Background(), "")
	assert.Error(t, err)
}
