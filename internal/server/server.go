package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/raysh454/uiflow/internal/app"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/runstore"
	_ "github.com/raysh454/uiflow/internal/server/docs" // swagger spec
)

const defaultRunLimit = 50

// Server is the HTTP + WebSocket API over the run history.
type Server struct {
	cfg      Config
	router   chi.Router
	upgrader websocket.Upgrader
	logger   logging.Logger
}

// NewServer wires the routes for cfg.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: run store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewStdoutLogger("Server")
	}

	s := &Server{
		cfg:    cfg,
		router: chi.NewRouter(),
		logger: logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict to the configured UI origin once one exists
				return true
			},
		},
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	r := s.router

	r.Use(s.corsMiddleware)

	// CORS preflight
	r.Options("/runs", s.optionsHandler("GET"))
	r.Options("/jobs", s.optionsHandler("GET, POST"))
	r.Options("/jobs/{jobID}", s.optionsHandler("GET, DELETE"))

	r.Get("/scenarios", s.handleListScenarios)

	// Run history
	r.Get("/runs", s.handleListRuns)
	r.Get("/runs/{runID}", s.handleGetRun)
	r.Get("/runs/{runID}/cases", s.handleListCases)
	r.Get("/cases/{caseID}/steps", s.handleListSteps)
	r.Get("/blobs/{blobID}", s.handleGetBlob)

	// Jobs over REST
	r.Post("/jobs", s.handleStartJob)
	r.Get("/jobs", s.handleListJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Delete("/jobs/{jobID}", s.handleCancelJob)

	// WebSockets
	r.Get("/ws/runs/{runID}", s.handleRunWS)
	r.Get("/ws/jobs/{jobID}", s.handleJobWS)

	// Generated reports
	if s.cfg.ReportsDir != "" {
		r.Handle("/reports/a11y/*", http.StripPrefix("/reports/a11y/", http.FileServer(http.Dir(s.cfg.ReportsDir))))
	}
	if s.cfg.ResultsDir != "" {
		r.Handle("/reports/allure/*", http.StripPrefix("/reports/allure/", http.FileServer(http.Dir(s.cfg.ResultsDir))))
	}

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		next.ServeHTTP(w, r)
	})
}

func (s *Server) optionsHandler(methods string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Methods", methods)
		w.WriteHeader(http.StatusNoContent)
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fields := []logging.Field{
		{Key: "method", Value: r.Method},
		{Key: "path", Value: r.URL.Path},
	}

	if q := r.URL.Query(); len(q) > 0 {
		fields = append(fields, logging.Field{Key: "query", Value: q})
	}

	if r.Body != nil && (r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch) {
		if bodyBytes, err := io.ReadAll(r.Body); err == nil {
			fields = append(fields, logging.Field{Key: "body", Value: string(bodyBytes)})
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	s.logger.Info("http_request", fields...)

	s.router.ServeHTTP(w, r)
}

// HTTPServer creates an *http.Server ready to ListenAndServe.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // allow streaming
	}
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// storeError maps not-found sentinels to 404 and everything else to 500.
func (s *Server) storeError(w http.ResponseWriter, what string, err error) {
	switch {
	case errors.Is(err, runstore.ErrRunNotFound),
		errors.Is(err, runstore.ErrCaseNotFound),
		errors.Is(err, runstore.ErrBlobNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Warn(what, logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// --- HTTP handlers ---

// handleListScenarios godoc
// @Summary List scenarios
// @Produce json
// @Success 200 {array} ScenarioResponse
// @Router /scenarios [get]
func (s *Server) handleListScenarios(w http.ResponseWriter, r *http.Request) {
	out := []ScenarioResponse{}
	if s.cfg.Registry != nil {
		list, err := s.cfg.Registry.Select()
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		for _, sc := range list {
			out = append(out, ScenarioResponse{
				Name:        sc.Name,
				FullName:    sc.FullName,
				Description: sc.Description,
				Epic:        sc.Labels.Epic,
				Feature:     sc.Labels.Feature,
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// Runs

// handleListRuns godoc
// @Summary List runs, newest first
// @Produce json
// @Param limit query int false "maximum number of runs"
// @Success 200 {array} runstore.Run
// @Router /runs [get]
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if ls := r.URL.Query().Get("limit"); ls != "" {
		if v, err := strconv.Atoi(ls); err == nil && v > 0 {
			limit = v
		}
	}
	runs, err := s.cfg.Store.ListRuns(r.Context(), limit)
	if err != nil {
		s.storeError(w, "listing runs", err)
		return
	}
	if runs == nil {
		runs = []runstore.Run{}
	}
	s.logger.Debug("listed runs", logging.Field{Key: "count", Value: len(runs)})
	writeJSON(w, http.StatusOK, runs)
}

// handleGetRun godoc
// @Summary Get a run with its cases
// @Produce json
// @Param runID path string true "run id"
// @Success 200 {object} RunDetailResponse
// @Failure 404 {object} ErrorResponse
// @Router /runs/{runID} [get]
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.cfg.Store.GetRun(r.Context(), runID)
	if err != nil {
		s.storeError(w, "getting run", err)
		return
	}
	cases, err := s.cfg.Store.ListCases(r.Context(), runID)
	if err != nil {
		s.storeError(w, "listing cases", err)
		return
	}
	if cases == nil {
		cases = []runstore.Case{}
	}
	writeJSON(w, http.StatusOK, RunDetailResponse{Run: run, Cases: cases})
}

// handleListCases godoc
// @Summary List the cases of a run
// @Produce json
// @Param runID path string true "run id"
// @Success 200 {array} runstore.Case
// @Failure 404 {object} ErrorResponse
// @Router /runs/{runID}/cases [get]
func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.cfg.Store.GetRun(r.Context(), runID); err != nil {
		s.storeError(w, "getting run", err)
		return
	}
	cases, err := s.cfg.Store.ListCases(r.Context(), runID)
	if err != nil {
		s.storeError(w, "listing cases", err)
		return
	}
	if cases == nil {
		cases = []runstore.Case{}
	}
	writeJSON(w, http.StatusOK, cases)
}

// handleListSteps godoc
// @Summary List the step tree of a case
// @Produce json
// @Param caseID path string true "case id"
// @Success 200 {array} runstore.Step
// @Failure 404 {object} ErrorResponse
// @Router /cases/{caseID}/steps [get]
func (s *Server) handleListSteps(w http.ResponseWriter, r *http.Request) {
	caseID := chi.URLParam(r, "caseID")
	if _, err := s.cfg.Store.GetCase(r.Context(), caseID); err != nil {
		s.storeError(w, "getting case", err)
		return
	}
	list, err := s.cfg.Store.ListSteps(r.Context(), caseID)
	if err != nil {
		s.storeError(w, "listing steps", err)
		return
	}
	if list == nil {
		list = []runstore.Step{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleGetBlob godoc
// @Summary Download attachment content
// @Param blobID path string true "blob id"
// @Success 200 {file} binary
// @Failure 404 {object} ErrorResponse
// @Router /blobs/{blobID} [get]
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.Store.Blob(chi.URLParam(r, "blobID"))
	if err != nil {
		s.storeError(w, "reading blob", err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Jobs (REST)

// handleStartJob godoc
// @Summary Start a suite run in the background
// @Accept json
// @Produce json
// @Param body body StartJobRequest false "scenarios to run"
// @Success 202 {object} app.Job
// @Failure 409 {object} ErrorResponse
// @Router /jobs [post]
func (s *Server) handleStartJob(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Orchestrator == nil {
		writeError(w, http.StatusServiceUnavailable, "runs are not enabled on this server")
		return
	}
	var body StartJobRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	if s.cfg.Registry != nil {
		if _, err := s.cfg.Registry.Select(body.Scenarios...); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	job, err := s.cfg.Orchestrator.StartRunJob(body.Scenarios)
	if errors.Is(err, app.ErrJobActive) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Warn("starting run job", logging.Err(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.logger.Info("started run job", logging.Field{Key: "job_id", Value: job.ID},
		logging.Field{Key: "scenarios", Value: strings.Join(body.Scenarios, ",")})
	writeJSON(w, http.StatusAccepted, job)
}

// handleGetJob godoc
// @Summary Get a job
// @Produce json
// @Param jobID path string true "job id"
// @Success 200 {object} app.Job
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [get]
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	var job *app.Job
	if s.cfg.Orchestrator != nil {
		job = s.cfg.Orchestrator.GetJob(jobID)
	}
	if job == nil {
		s.logger.Warn("getting job: not found", logging.Field{Key: "job_id", Value: jobID})
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// handleCancelJob godoc
// @Summary Cancel a job
// @Param jobID path string true "job id"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router /jobs/{jobID} [delete]
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if s.cfg.Orchestrator == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err := s.cfg.Orchestrator.CancelJob(jobID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Info("canceled job", logging.Field{Key: "job_id", Value: jobID})
	writeJSON(w, http.StatusNoContent, nil)
}

// handleListJobs godoc
// @Summary List jobs, newest first
// @Produce json
// @Success 200 {array} app.Job
// @Router /jobs [get]
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := []app.Job{}
	if s.cfg.Orchestrator != nil {
		jobs = s.cfg.Orchestrator.ListJobs()
	}
	writeJSON(w, http.StatusOK, jobs)
}

// WebSockets

// handleRunWS streams store events for one run. A finished run gets its final
// state and the socket closes.
func (s *Server) handleRunWS(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.cfg.Store.GetRun(r.Context(), runID)
	if err != nil {
		s.storeError(w, "getting run", err)
		return
	}

	// Subscribe before upgrading so no event between the check and the loop is lost.
	events, cancel := s.cfg.Store.Subscribe(runID)
	defer cancel()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	if run.FinishedAt != nil {
		_ = conn.WriteJSON(runstore.Event{Type: runstore.EventRunFinished, RunID: runID, Run: run})
		return
	}

	// Reader goroutine notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == runstore.EventRunFinished {
				return
			}
		}
	}
}

// handleJobWS streams job lifecycle events until the job ends.
func (s *Server) handleJobWS(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if s.cfg.Orchestrator == nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	events, ok := s.cfg.Orchestrator.Events(jobID)
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("upgrading to websocket", logging.Err(err))
		return
	}
	defer conn.Close()

	if job := s.cfg.Orchestrator.GetJob(jobID); job != nil {
		_ = conn.WriteJSON(job)
	}
	for ev := range events {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
