// Package a11y scans pages with axe-core, groups violations by impact,
// captures evidence screenshots and renders a self-contained HTML report.
package a11y

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

var ErrMalformedScan = errors.New("malformed accessibility scan result")

// Impact is an axe-core severity level.
type Impact string

const (
	ImpactCritical Impact = "critical"
	ImpactSerious  Impact = "serious"
	ImpactModerate Impact = "moderate"
	ImpactMinor    Impact = "minor"
)

// Impacts lists levels from most to least severe.
var Impacts = []Impact{ImpactCritical, ImpactSerious, ImpactModerate, ImpactMinor}

// ParseImpact maps an axe impact string to a level. Empty and unknown values
// are moderate.
func ParseImpact(s string) Impact {
	switch Impact(strings.ToLower(strings.TrimSpace(s))) {
	case ImpactCritical:
		return ImpactCritical
	case ImpactSerious:
		return ImpactSerious
	case ImpactMinor:
		return ImpactMinor
	default:
		return ImpactModerate
	}
}

// Title is the capitalised level name.
func (i Impact) Title() string {
	if i == "" {
		return ""
	}
	return strings.ToUpper(string(i[:1])) + string(i[1:])
}

// Selectors is an axe target. Frame and shadow-DOM targets arrive as nested
// arrays and are flattened to "outer >>> inner".
type Selectors []string

func (s *Selectors) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Selectors, 0, len(raw))
	for _, r := range raw {
		var one string
		if err := json.Unmarshal(r, &one); err == nil {
			out = append(out, one)
			continue
		}
		var nested []string
		if err := json.Unmarshal(r, &nested); err != nil {
			return fmt.Errorf("target entry: %w", err)
		}
		out = append(out, strings.Join(nested, " >>> "))
	}
	*s = out
	return nil
}

// First returns the primary selector or "".
func (s Selectors) First() string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

// Node is one element affected by a violation.
type Node struct {
	Target         Selectors `json:"target"`
	HTML           string    `json:"html"`
	FailureSummary string    `json:"failureSummary,omitempty"`
	Impact         string    `json:"impact,omitempty"`
	// Screenshot is relative to the report directory; nil when no capture
	// was written.
	Screenshot *string `json:"screenshot,omitempty"`
}

// Issue is one violated rule.
type Issue struct {
	ID          string   `json:"id"`
	Impact      string   `json:"impact,omitempty"`
	Description string   `json:"description"`
	Help        string   `json:"help,omitempty"`
	HelpURL     string   `json:"helpUrl,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Nodes       []Node   `json:"nodes"`
	// MetaScreenshot is the full-page capture for document-level rules.
	MetaScreenshot *string `json:"metaScreenshot,omitempty"`
}

// Level is the impact group the issue belongs to.
func (i Issue) Level() Impact { return ParseImpact(i.Impact) }

func (i Issue) clone() Issue {
	out := i
	out.Nodes = append([]Node(nil), i.Nodes...)
	out.Tags = append([]string(nil), i.Tags...)
	return out
}

// ScanResult is the subset of an axe-core run result the report uses.
type ScanResult struct {
	URL        string      `json:"url"`
	Timestamp  string      `json:"timestamp,omitempty"`
	TestEngine *ScanEngine `json:"testEngine,omitempty"`
	Violations []Issue     `json:"violations"`
	Incomplete []Issue     `json:"incomplete,omitempty"`
	Passes     []Summary   `json:"passes,omitempty"`
}

type ScanEngine struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Summary keeps only rule ids for passed rules.
type Summary struct {
	ID string `json:"id"`
}

// ParseScan decodes axe JSON. A result without a violations array is
// malformed.
func ParseScan(data []byte) (*ScanResult, error) {
	var scan ScanResult
	if err := json.Unmarshal(data, &scan); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedScan, err)
	}
	if scan.Violations == nil {
		return nil, fmt.Errorf("%w: missing violations", ErrMalformedScan)
	}
	return &scan, nil
}

func LoadScan(path string) (*ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scan: %w", err)
	}
	return ParseScan(data)
}

// ReportModel groups issues by impact. Every level is always present.
type ReportModel struct {
	Groups      map[Impact][]Issue
	URL         string
	GeneratedAt time.Time
}

func NewReportModel(url string, at time.Time) *ReportModel {
	m := &ReportModel{Groups: make(map[Impact][]Issue, len(Impacts)), URL: url, GeneratedAt: at}
	for _, lvl := range Impacts {
		m.Groups[lvl] = []Issue{}
	}
	return m
}

// Total counts issues across all levels.
func (m *ReportModel) Total() int {
	n := 0
	for _, lvl := range Impacts {
		n += len(m.Groups[lvl])
	}
	return n
}
