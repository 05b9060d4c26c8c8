package server

//go:generate swag init -g internal/server/server.go -o internal/server/docs

// @title uiflow API
// @version 0.1
// @description Run history, attachments and background suite runs for uiflow.
// @contact.name uiflow maintainers
// @contact.url https://github.com/raysh454/uiflow
// @BasePath /
