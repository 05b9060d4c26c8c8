package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/raysh454/uiflow/internal/app"
	"github.com/raysh454/uiflow/internal/runstore"
	"github.com/raysh454/uiflow/internal/scenarios"
	"github.com/raysh454/uiflow/internal/server"
	"github.com/raysh454/uiflow/internal/steps"
	"github.com/raysh454/uiflow/internal/suite"
	"github.com/raysh454/uiflow/internal/testutil"
)

type fixture struct {
	srv     *server.Server
	store   *runstore.Store
	reports string
}

func newFixture(t *testing.T, run app.RunFunc) *fixture {
	t.Helper()
	dir := t.TempDir()
	logger := &testutil.DummyLogger{}
	store, err := runstore.Open(filepath.Join(dir, "store"), logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := server.Config{
		ListenAddr: ":0",
		Store:      store,
		Registry:   scenarios.Default(),
		ReportsDir: filepath.Join(dir, "a11y"),
		ResultsDir: filepath.Join(dir, "allure"),
		Logger:     logger,
	}
	if run != nil {
		orch := app.NewOrchestrator(ctx, run, logger)
		t.Cleanup(func() { _ = orch.Shutdown(context.Background()) })
		cfg.Orchestrator = orch
	}
	s, err := server.NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	return &fixture{srv: s, store: store, reports: cfg.ReportsDir}
}

// seedRun records one finished run: a passed case with a screenshot and a
// failed case.
func (f *fixture) seedRun(t *testing.T) (*runstore.Run, *runstore.CaseRecorder) {
	t.Helper()
	ctx := context.Background()
	run, err := f.store.CreateRun(ctx, "Report-2026-05-01_08-00-00", "")
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}
	ok, err := f.store.StartCase(ctx, run.ID, scenarios.PracticeLogin, "practice/login", steps.Labels{Epic: "Practice"})
	if err != nil {
		t.Fatalf("StartCase: %v", err)
	}
	err = ok.Step(ctx, "Navigated to http://127.0.0.1:9999/", steps.Success(), func(ctx context.Context) error {
		return ok.Attach(ctx, "screenshot", testutil.TinyPNG(4, 4), "image/png")
	})
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	if err := ok.Finish(ctx, nil); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	bad, err := f.store.StartCase(ctx, run.ID, scenarios.ImportInvoice, "lrp/import", steps.Labels{})
	if err != nil {
		t.Fatalf("StartCase: %v", err)
	}
	if err := bad.Finish(ctx, errors.New("page title is \"Maintenance\"")); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	done, err := f.store.FinishRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	return done, ok
}

func doJSON(t *testing.T, s http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON response: %v (body: %s)", err, rec.Body.String())
	}
}

func TestServer_RequiresStore(t *testing.T) {
	t.Parallel()
	if _, err := server.NewServer(server.Config{}); err == nil {
		t.Fatal("expected error without a store")
	}
}

func TestServer_CORS_HeaderPresent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := doJSON(t, f.srv, "GET", "/runs", "")
	if origin := rec.Header().Get("Access-Control-Allow-Origin"); origin != "*" {
		t.Errorf("expected CORS origin *, got %q", origin)
	}
}

func TestServer_OptionsPreflight(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := doJSON(t, f.srv, "OPTIONS", "/jobs", "")
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 for OPTIONS, got %d", rec.Code)
	}
	if methods := rec.Header().Get("Access-Control-Allow-Methods"); methods != "GET, POST" {
		t.Errorf("unexpected Allow-Methods %q", methods)
	}
}

func TestServer_ListScenarios(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := doJSON(t, f.srv, "GET", "/scenarios", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []server.ScenarioResponse
	decodeJSON(t, rec, &list)
	if len(list) != 4 {
		t.Fatalf("expected 4 scenarios, got %d", len(list))
	}
	if list[0].Name != scenarios.AnswersStage1 {
		t.Errorf("expected sorted names, first is %q", list[0].Name)
	}
}

func TestServer_ListRuns_Empty(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	rec := doJSON(t, f.srv, "GET", "/runs", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("expected empty array, got %s", body)
	}
}

func TestServer_RunHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	run, ok := f.seedRun(t)

	rec := doJSON(t, f.srv, "GET", "/runs", "")
	var runs []runstore.Run
	decodeJSON(t, rec, &runs)
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Fatalf("unexpected runs: %+v", runs)
	}
	if runs[0].Passed != 1 || runs[0].Failed != 1 || runs[0].Status != steps.StatusFailed {
		t.Errorf("unexpected tallies: %+v", runs[0])
	}

	rec = doJSON(t, f.srv, "GET", "/runs/"+run.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var detail server.RunDetailResponse
	decodeJSON(t, rec, &detail)
	if detail.Run == nil || len(detail.Cases) != 2 {
		t.Fatalf("unexpected detail: %+v", detail)
	}

	rec = doJSON(t, f.srv, "GET", "/runs/"+run.ID+"/cases", "")
	var cases []runstore.Case
	decodeJSON(t, rec, &cases)
	if len(cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(cases))
	}

	rec = doJSON(t, f.srv, "GET", "/cases/"+ok.ID()+"/steps", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []runstore.Step
	decodeJSON(t, rec, &list)
	if len(list) != 1 || len(list[0].Attachments) != 1 {
		t.Fatalf("unexpected steps: %+v", list)
	}

	rec = doJSON(t, f.srv, "GET", "/blobs/"+list[0].Attachments[0].BlobID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for blob, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %q", ct)
	}
}

func TestServer_NotFound(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	for _, path := range []string{
		"/runs/missing",
		"/runs/missing/cases",
		"/cases/missing/steps",
		"/blobs/" + strings.Repeat("a", 64),
		"/jobs/missing",
	} {
		rec := doJSON(t, f.srv, "GET", path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d (%s)", path, rec.Code, rec.Body.String())
		}
	}
}

func TestServer_ServesReports(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	dir := filepath.Join(f.reports, "axe-report-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Accessibility Report</h1>"), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := doJSON(t, f.srv, "GET", "/reports/a11y/axe-report-1/index.html", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Accessibility Report") {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestServer_JobsDisabled(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	if rec := doJSON(t, f.srv, "POST", "/jobs", `{}`); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if rec := doJSON(t, f.srv, "DELETE", "/jobs/x", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestServer_StartJob(t *testing.T) {
	t.Parallel()
	release := make(chan struct{})
	f := newFixture(t, func(ctx context.Context, names []string) (*suite.Summary, error) {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return &suite.Summary{RunID: "run-1", Cases: []suite.CaseResult{{Name: names[0], Status: steps.StatusPassed}}}, nil
	})

	rec := doJSON(t, f.srv, "POST", "/jobs", `{"scenarios":["nope"]}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown scenario, got %d", rec.Code)
	}
	if rec := doJSON(t, f.srv, "POST", "/jobs", `{bad`); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid JSON, got %d", rec.Code)
	}

	rec = doJSON(t, f.srv, "POST", "/jobs", `{"scenarios":["practice-login"]}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job app.Job
	decodeJSON(t, rec, &job)

	if rec := doJSON(t, f.srv, "POST", "/jobs", `{}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 while a run is active, got %d", rec.Code)
	}

	close(release)
	deadline := time.Now().Add(5 * time.Second)
	for {
		rec = doJSON(t, f.srv, "GET", "/jobs/"+job.ID, "")
		var got app.Job
		decodeJSON(t, rec, &got)
		if got.Terminal() {
			if got.Status != app.JobDone || got.RunID != "run-1" || got.Passed != 1 {
				t.Fatalf("unexpected job: %+v", got)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job did not finish: %+v", got)
		}
		time.Sleep(10 * time.Millisecond)
	}

	rec = doJSON(t, f.srv, "GET", "/jobs", "")
	var jobs []app.Job
	decodeJSON(t, rec, &jobs)
	if len(jobs) != 1 {
		t.Errorf("expected 1 job, got %d", len(jobs))
	}
}

func TestServer_CancelJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(ctx context.Context, names []string) (*suite.Summary, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	rec := doJSON(t, f.srv, "POST", "/jobs", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var job app.Job
	decodeJSON(t, rec, &job)

	if rec := doJSON(t, f.srv, "DELETE", "/jobs/"+job.ID, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if rec := doJSON(t, f.srv, "DELETE", "/jobs/unknown", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown job, got %d", rec.Code)
	}
}

func wsURL(ts *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + path
}

func TestServer_RunWebSocket(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	ctx := context.Background()
	run, err := f.store.CreateRun(ctx, "live", "")
	if err != nil {
		t.Fatal(err)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/runs/"+run.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	rec, err := f.store.StartCase(ctx, run.ID, "live-case", "", steps.Labels{})
	if err != nil {
		t.Fatal(err)
	}
	if err := rec.Finish(ctx, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := f.store.FinishRun(ctx, run.ID); err != nil {
		t.Fatal(err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var types []runstore.EventType
	for {
		var ev runstore.Event
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		types = append(types, ev.Type)
		if ev.Type == runstore.EventRunFinished {
			break
		}
	}
	want := []runstore.EventType{runstore.EventCaseStarted, runstore.EventCaseFinished, runstore.EventRunFinished}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], types[i])
		}
	}
}

func TestServer_RunWebSocket_FinishedRun(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	run, _ := f.seedRun(t)
	ts := httptest.NewServer(f.srv)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts, "/ws/runs/"+run.ID), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev runstore.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != runstore.EventRunFinished || ev.Run == nil || ev.Run.ID != run.ID {
		t.Errorf("unexpected event: %+v", ev)
	}
}
