// Package docs holds the swagger spec served under /swagger. Regenerate it
// with `go generate ./internal/server` after changing handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "uiflow maintainers",
            "url": "https://github.com/raysh454/uiflow"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/scenarios": {
            "get": {
                "produces": ["application/json"],
                "summary": "List scenarios",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/server.ScenarioResponse"}}}
                }
            }
        },
        "/runs": {
            "get": {
                "produces": ["application/json"],
                "summary": "List runs, newest first",
                "parameters": [
                    {"type": "integer", "description": "maximum number of runs", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/runstore.Run"}}}
                }
            }
        },
        "/runs/{runID}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get a run with its cases",
                "parameters": [
                    {"type": "string", "description": "run id", "name": "runID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/server.RunDetailResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/runs/{runID}/cases": {
            "get": {
                "produces": ["application/json"],
                "summary": "List the cases of a run",
                "parameters": [
                    {"type": "string", "description": "run id", "name": "runID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/runstore.Case"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/cases/{caseID}/steps": {
            "get": {
                "produces": ["application/json"],
                "summary": "List the step tree of a case",
                "parameters": [
                    {"type": "string", "description": "case id", "name": "caseID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/runstore.Step"}}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/blobs/{blobID}": {
            "get": {
                "summary": "Download attachment content",
                "parameters": [
                    {"type": "string", "description": "blob id", "name": "blobID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "file"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jobs": {
            "get": {
                "produces": ["application/json"],
                "summary": "List jobs, newest first",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/app.Job"}}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "summary": "Start a suite run in the background",
                "parameters": [
                    {"description": "scenarios to run", "name": "body", "in": "body", "schema": {"$ref": "#/definitions/server.StartJobRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/app.Job"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/jobs/{jobID}": {
            "get": {
                "produces": ["application/json"],
                "summary": "Get a job",
                "parameters": [
                    {"type": "string", "description": "job id", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/app.Job"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "summary": "Cancel a job",
                "parameters": [
                    {"type": "string", "description": "job id", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "app.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "scenarios": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string"},
                "error": {"type": "string"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "run_id": {"type": "string"},
                "run_name": {"type": "string"},
                "passed": {"type": "integer"},
                "failed": {"type": "integer"},
                "broken": {"type": "integer"},
                "exit_code": {"type": "integer"}
            }
        },
        "runstore.Attachment": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "case_id": {"type": "string"},
                "step_id": {"type": "integer"},
                "name": {"type": "string"},
                "mime": {"type": "string"},
                "blob_id": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "runstore.Case": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "run_id": {"type": "string"},
                "name": {"type": "string"},
                "full_name": {"type": "string"},
                "labels": {"type": "object"},
                "status": {"type": "string"},
                "message": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"}
            }
        },
        "runstore.Run": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "results_dir": {"type": "string"},
                "status": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "passed": {"type": "integer"},
                "failed": {"type": "integer"},
                "broken": {"type": "integer"},
                "skipped": {"type": "integer"}
            }
        },
        "runstore.Step": {
            "type": "object",
            "properties": {
                "id": {"type": "integer"},
                "case_id": {"type": "string"},
                "parent_id": {"type": "integer"},
                "seq": {"type": "integer"},
                "depth": {"type": "integer"},
                "title": {"type": "string"},
                "status": {"type": "string"},
                "reason": {"type": "string"},
                "started_at": {"type": "string"},
                "finished_at": {"type": "string"},
                "attachments": {"type": "array", "items": {"$ref": "#/definitions/runstore.Attachment"}}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string", "example": "not found"}}
        },
        "server.RunDetailResponse": {
            "type": "object",
            "properties": {
                "run": {"$ref": "#/definitions/runstore.Run"},
                "cases": {"type": "array", "items": {"$ref": "#/definitions/runstore.Case"}}
            }
        },
        "server.ScenarioResponse": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "practice-login"},
                "full_name": {"type": "string"},
                "description": {"type": "string"},
                "epic": {"type": "string"},
                "feature": {"type": "string"}
            }
        },
        "server.StartJobRequest": {
            "type": "object",
            "properties": {
                "scenarios": {"type": "array", "items": {"type": "string"}, "example": ["practice-login"]}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "uiflow API",
	Description:      "Run history, attachments and background suite runs for uiflow.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
