package server

import "github.com/raysh454/uiflow/internal/runstore"

// StartJobRequest names the scenarios to run. An empty list runs them all.
type StartJobRequest struct {
	Scenarios []string `json:"scenarios" example:"[\"practice-login\"]"`
}

// ScenarioResponse describes one registered scenario.
type ScenarioResponse struct {
	Name        string `json:"name" example:"practice-login"`
	FullName    string `json:"full_name" example:"practice/Sign in and draft an invoice"`
	Description string `json:"description,omitempty"`
	Epic        string `json:"epic,omitempty" example:"Practice"`
	Feature     string `json:"feature,omitempty" example:"Import Invoice"`
}

// RunDetailResponse is a run together with its cases.
type RunDetailResponse struct {
	Run   *runstore.Run   `json:"run"`
	Cases []runstore.Case `json:"cases"`
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error" example:"not found"`
}
