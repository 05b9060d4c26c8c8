package server

import (
	"github.com/raysh454/uiflow/internal/app"
	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/runstore"
	"github.com/raysh454/uiflow/internal/suite"
)

type Config struct {
	// ListenAddr is the HTTP listen address for the API server.
	ListenAddr string

	// Store backs the run history endpoints and the live feed. Required.
	Store *runstore.Store

	// Orchestrator starts suite runs for POST /jobs. Without it the job
	// endpoints answer 503.
	Orchestrator *app.Orchestrator

	// Registry lists the scenarios a job may name.
	Registry *suite.Registry

	// ReportsDir and ResultsDir are served read-only under /reports/a11y/
	// and /reports/allure/.
	ReportsDir string
	ResultsDir string

	Logger logging.Logger
}
