package a11y_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raysh454/uiflow/internal/a11y"
	"github.com/raysh454/uiflow/internal/testutil"
)

const scanJSON = `{"url":"http://x.test/","violations":[{"id":"label","impact":"critical","nodes":[{"target":["#q"],"html":"<input id=\"q\">"}]}],"passes":[{"id":"region"}]}`

// axePage answers the three evaluations a scan performs.
func axePage(present bool, injected *string) *testutil.FakePage {
	page := testutil.NewFakePage()
	page.EvalFunc = func(expr string, res any) error {
		switch {
		case strings.HasPrefix(expr, "typeof window.axe"):
			*res.(*bool) = present
		case strings.Contains(expr, "axe.run("):
			*res.(*string) = scanJSON
		default:
			*injected = expr
		}
		return nil
	}
	return page
}

func TestScannerInjectsScriptFromFile(t *testing.T) {
	script := filepath.Join(t.TempDir(), "axe.min.js")
	require.NoError(t, os.WriteFile(script, []byte("window.axe = {run: function(){}};"), 0o644))

	var injected string
	page := axePage(false, &injected)
	s := a11y.NewScanner(page, script, &testutil.DummyLogger{})
	s.Tags = []string{"wcag2a", "wcag2aa"}

	scan, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(injected, "window.axe = "))
	assert.Equal(t, "http://x.test/", scan.URL)
	require.Len(t, scan.Violations, 1)
	assert.Equal(t, "#q", scan.Violations[0].Nodes[0].Target.First())
	assert.Len(t, page.CallsWithPrefix("evaluate"), 3)
}

func TestScannerSkipsInjectionWhenAxePresent(t *testing.T) {
	var injected string
	page := axePage(true, &injected)
	s := a11y.NewScanner(page, "", nil)

	_, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.Empty(t, injected)
	assert.Len(t, page.CallsWithPrefix("evaluate"), 2)
}

func TestScannerMissingScript(t *testing.T) {
	var injected string
	s := a11y.NewScanner(axePage(false, &injected), filepath.Join(t.TempDir(), "absent.js"), nil)
	_, err := s.Scan(context.Background())
	assert.ErrorIs(t, err, a11y.ErrScriptMissing)

	s = a11y.NewScanner(axePage(false, &injected), "", nil)
	_, err = s.Scan(context.Background())
	assert.ErrorIs(t, err, a11y.ErrScriptMissing)
}

func TestScannerEvaluateError(t *testing.T) {
	page := testutil.NewFakePage()
	page.EvalFunc = func(string, any) error { return errors.New("execution context destroyed") }
	_, err := a11y.NewScanner(page, "", nil).Scan(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "probe axe")
}
