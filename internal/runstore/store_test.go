package runstore_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/runstore"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/testutil"
)

func openStore(t *testing.T) *runstore.Store {
	t.Helper()
	s, err := runstore.Open(t.TempDir(), &testutil.DummyLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	clock := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	})
	return s
}

func TestRunLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	run, err := s.CreateRun(ctx, "Report-2026-05-01_08-00-00", "/tmp/allure")
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusRunning, run.Status)

	ok, err := s.StartCase(ctx, run.ID, "Login", "scenarios/login", steps.Labels{Owner: "qa", Epic: "Auth"})
	require.NoError(t, err)
	require.NoError(t, ok.Finish(ctx, nil))

	bad, err := s.StartCase(ctx, run.ID, "Import", "scenarios/import", steps.Labels{})
	require.NoError(t, err)
	require.NoError(t, bad.Finish(ctx, errors.New("invoice table empty")))

	skipped, err := s.StartCase(ctx, run.ID, "Axe", "scenarios/axe", steps.Labels{})
	require.NoError(t, err)
	require.NoError(t, skipped.Skip(ctx, "no axe script"))

	done, err := s.FinishRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, steps.StatusFailed, done.Status)
	assert.Equal(t, 1, done.Passed)
	assert.Equal(t, 1, done.Failed)
	assert.Equal(t, 1, done.Skipped)
	require.NotNil(t, done.FinishedAt)

	cases, err := s.ListCases(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, cases, 3)
	assert.Equal(t, "Login", cases[0].Name)
	assert.Equal(t, "qa", cases[0].Labels.Owner)
	assert.Equal(t, steps.StatusFailed, cases[1].Status)
	assert.Equal(t, "invoice table empty", cases[1].Message)
	assert.Equal(t, steps.StatusSkipped, cases[2].Status)
}

func TestListRunsNewestFirst(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	for _, name := range []string{"first", "second", "third"} {
		_, err := s.CreateRun(ctx, name, "")
		require.NoError(t, err)
	}
	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "third", runs[0].Name)

	runs, err = s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)

	_, err := s.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
	_, err = s.ListCases(ctx, "missing")
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
	_, err = s.StartCase(ctx, "missing", "x", "", steps.Labels{})
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
	_, err = s.FinishRun(ctx, "missing")
	assert.ErrorIs(t, err, runstore.ErrRunNotFound)
	_, err = s.ListSteps(ctx, "missing")
	assert.ErrorIs(t, err, runstore.ErrCaseNotFound)
	_, err = s.Blob("../../etc/passwd")
	assert.ErrorIs(t, err, runstore.ErrBlobNotFound)
}

func TestCaseRecorderNestsStepsAndAttachments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)
	run, err := s.CreateRun(ctx, "r", "")
	require.NoError(t, err)
	rec, err := s.StartCase(ctx, run.ID, "Import Invoice", "", steps.Labels{})
	require.NoError(t, err)

	png := testutil.TinyPNG(2, 2)
	err = rec.Step(ctx, "Open import page", steps.Success(), func(ctx context.Context) error {
		return rec.Step(ctx, "Clicked on element: #nav (attempt 1)", steps.Success(), func(ctx context.Context) error {
			return rec.Attach(ctx, "screenshot", png, "image/png")
		})
	})
	require.NoError(t, err)
	require.NoError(t, rec.Step(ctx, "Click attempt 1 failed for #save", steps.Failure("covered"), nil))
	boom := errors.New("disk full")
	assert.ErrorIs(t, rec.Step(ctx, "Upload", steps.Success(), func(context.Context) error { return boom }), boom)
	require.NoError(t, rec.Attach(ctx, "trace", []byte("log"), "text/plain"))

	list, err := s.ListSteps(ctx, rec.ID())
	require.NoError(t, err)
	require.Len(t, list, 4)

	assert.Equal(t, "Open import page", list[0].Title)
	assert.Nil(t, list[0].ParentID)
	assert.Equal(t, 0, list[0].Depth)
	assert.Empty(t, list[0].Attachments)

	require.NotNil(t, list[1].ParentID)
	assert.Equal(t, list[0].ID, *list[1].ParentID)
	assert.Equal(t, 1, list[1].Depth)
	require.Len(t, list[1].Attachments, 1)
	att := list[1].Attachments[0]
	assert.Equal(t, "image/png", att.Mime)
	sum := sha256.Sum256(png)
	assert.Equal(t, hex.EncodeToString(sum[:]), att.BlobID)

	assert.Equal(t, steps.StatusFailed, list[2].Status)
	assert.Equal(t, "covered", list[2].Reason)
	assert.Equal(t, steps.StatusBroken, list[3].Status)
	assert.Equal(t, "disk full", list[3].Reason)

	data, err := s.Blob(att.BlobID)
	require.NoError(t, err)
	assert.Equal(t, png, data)

	loose, err := s.CaseAttachments(ctx, rec.ID())
	require.NoError(t, err)
	require.Len(t, loose, 1)
	assert.Equal(t, "trace", loose[0].Name)
}

func TestCaseRecorderWorksBehindCaptureSink(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)
	run, err := s.CreateRun(ctx, "r", "")
	require.NoError(t, err)
	rec, err := s.StartCase(ctx, run.ID, "Login", "", steps.Labels{})
	require.NoError(t, err)

	page := testutil.NewFakePage()
	sink := steps.NewCaptureSink(page, rec, &testutil.DummyLogger{})
	sink.RecordStep(ctx, "Navigated to http://app.test/login", steps.Success())

	list, err := s.ListSteps(ctx, rec.ID())
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Attachments, 1)
	assert.Equal(t, "screenshot", list[0].Attachments[0].Name)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t)
	run, err := s.CreateRun(ctx, "live", "")
	require.NoError(t, err)

	events, cancel := s.Subscribe(run.ID)
	defer cancel()
	other, cancelOther := s.Subscribe("another-run")
	defer cancelOther()

	rec, err := s.StartCase(ctx, run.ID, "Login", "", steps.Labels{})
	require.NoError(t, err)
	require.NoError(t, rec.Step(ctx, "Typed \"qa\" into: #user", steps.Success(), nil))
	require.NoError(t, rec.Finish(ctx, nil))
	_, err = s.FinishRun(ctx, run.ID)
	require.NoError(t, err)

	var types []runstore.EventType
	for i := 0; i < 4; i++ {
		select {
		case ev := <-events:
			types = append(types, ev.Type)
			assert.Equal(t, run.ID, ev.RunID)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %v", types)
		}
	}
	assert.Equal(t, []runstore.EventType{
		runstore.EventCaseStarted, runstore.EventStep, runstore.EventCaseFinished, runstore.EventRunFinished,
	}, types)
	assert.Empty(t, other)

	cancel()
	_, open := <-events
	assert.False(t, open)
	cancel()
}

func TestBlobStore(t *testing.T) {
	t.Parallel()
	dir := filepath.Join(t.TempDir(), "blobs")
	bs, err := runstore.NewBlobStore(dir)
	require.NoError(t, err)

	data := []byte("hello blobstore")
	id1, err := bs.Put(data)
	require.NoError(t, err)
	id2, err := bs.Put(data)
	require.NoError(t, err)
	assert.Equal(t, id1, id2)
	assert.True(t, bs.Exists(id1))
	assert.FileExists(t, filepath.Join(dir, id1[:2], id1))

	got, err := bs.Get(id1)
	require.NoError(t, err)
	assert.Equal(t, data, got)

	// corrupt the blob on disk
	require.NoError(t, os.WriteFile(filepath.Join(dir, id1[:2], id1), []byte("tampered"), 0o644))
	_, err = bs.Get(id1)
	assert.ErrorContains(t, err, "integrity")

	assert.False(t, bs.Exists("zz"))
	_, err = bs.Get("0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, runstore.ErrBlobNotFound)
}
