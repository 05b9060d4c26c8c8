package logging_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/logging"
)

func newBufferLogger(t *testing.T, component string) (*logging.LogrusLogger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	l := logrus.New()
	l.SetOutput(buf)
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetLevel(logrus.DebugLevel)
	return logging.NewLogrusLogger(l, component), buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogrusLogger_WritesComponentAndFields(t *testing.T) {
	t.Parallel()
	logger, buf := newBufferLogger(t, "interact")

	logger.Info("clicked", logging.Field{Key: "attempt", Value: 2})

	entry := decodeLine(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "clicked", entry["msg"])
	assert.Equal(t, "interact", entry["component"])
	assert.EqualValues(t, 2, entry["attempt"])
}

func TestLogrusLogger_WithKeepsPersistentFields(t *testing.T) {
	t.Parallel()
	logger, buf := newBufferLogger(t, "suite")

	child := logger.With(logging.Field{Key: "case", Value: "login"})
	child.Warn("step failed", logging.Err(errors.New("boom")))

	entry := decodeLine(t, buf)
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "login", entry["case"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "suite", entry["component"])
}

func TestErr_NilError(t *testing.T) {
	t.Parallel()
	f := logging.Err(nil)
	assert.Equal(t, "error", f.Key)
	assert.Nil(t, f.Value)
}
