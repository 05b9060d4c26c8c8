package a11y

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"

	"github.com/raysh454/uiflow/internal/logging"
)

const JSONFile = "axe-report.json"

// WriteJSON dumps the raw scan next to the report.
func WriteJSON(dir string, scan *ScanResult) (string, error) {
	data, err := json.MarshalIndent(scan, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode scan: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, JSONFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write scan: %w", err)
	}
	return path, nil
}

// PrintSummary writes a per-level table of issue and node counts.
func PrintSummary(w io.Writer, m *ReportModel) error {
	table := tablewriter.NewWriter(w)
	table.Header("Impact", "Issues", "Nodes", "Rules")
	for _, lvl := range Impacts {
		issues := m.Groups[lvl]
		nodes := 0
		rules := make([]string, 0, len(issues))
		for _, is := range issues {
			nodes += len(is.Nodes)
			rules = append(rules, is.ID)
		}
		row := []string{lvl.Title(), strconv.Itoa(len(issues)), strconv.Itoa(nodes), strings.Join(rules, ", ")}
		if err := table.Append(row); err != nil {
			return fmt.Errorf("summary row: %w", err)
		}
	}
	return table.Render()
}

// GenerateOptions configure a full report run.
type GenerateOptions struct {
	// BaseDir receives a fresh axe-report-<timestamp>-<id> directory.
	BaseDir string
	// Dir, when set, is used as is instead of a generated directory.
	Dir      string
	Page     Page
	Title    string
	Annotate bool
	Logger   logging.Logger
	Now      func() time.Time
}

// Generated describes the files Generate wrote.
type Generated struct {
	Dir      string
	HTMLPath string
	JSONPath string
	Model    *ReportModel
}

// ReportDirName qualifies a report directory by time and a short random id
// so concurrent runs never share one.
func ReportDirName(now time.Time) string {
	ts := strings.NewReplacer(":", "-", ".", "-").Replace(now.UTC().Format("2006-01-02T15:04:05.000Z"))
	return "axe-report-" + ts + "-" + uuid.NewString()[:8]
}

// Generate aggregates scan, renders index.html and dumps axe-report.json.
func Generate(ctx context.Context, scan *ScanResult, opts GenerateOptions) (*Generated, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop{}
	}
	dir := opts.Dir
	if dir == "" {
		dir = filepath.Join(opts.BaseDir, ReportDirName(now()))
	}

	agg := NewAggregator(opts.Page, dir, logger)
	agg.Annotate = opts.Annotate
	agg.Now = now
	model, err := agg.Aggregate(ctx, scan)
	if err != nil {
		return nil, err
	}

	r := NewRenderer()
	if opts.Title != "" {
		r.Title = opts.Title
	}
	htmlPath, err := r.WriteReport(dir, model)
	if err != nil {
		return nil, err
	}
	jsonPath, err := WriteJSON(dir, scan)
	if err != nil {
		return nil, err
	}
	logger.Info("accessibility report generated",
		logging.Field{Key: "path", Value: htmlPath},
		logging.Field{Key: "issues", Value: model.Total()})
	return &Generated{Dir: dir, HTMLPath: htmlPath, JSONPath: jsonPath, Model: model}, nil
}
