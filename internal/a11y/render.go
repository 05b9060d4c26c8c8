package a11y

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var reportTemplate = template.Must(template.ParseFS(templateFS, "templates/report.html.tmpl"))

const (
	DefaultTitle = "Accessibility Report"
	ReportFile   = "index.html"
	timeLayout   = "2006-01-02 15:04:05 MST"
)

// Renderer turns a ReportModel into a standalone HTML page. Output depends
// only on the model, so only GeneratedAt differs between renders of the same
// scan.
type Renderer struct {
	Title string
}

func NewRenderer() *Renderer {
	return &Renderer{Title: DefaultTitle}
}

type reportView struct {
	Title       string
	URL         string
	GeneratedAt string
	Levels      []levelView
}

type levelView struct {
	Level  Impact
	Name   string
	Label  string
	Count  int
	Issues []issueView
}

type issueView struct {
	CardID          string
	ID              string
	Impact          string
	Description     string
	Tags            []string
	HelpURL         string
	FirstNode       *nodeView
	Screenshot      string
	ScreenshotTitle string
}

type nodeView struct {
	Target         string
	FailureSummary string
	Tag            string
}

func (r *Renderer) view(m *ReportModel) reportView {
	title := r.Title
	if title == "" {
		title = DefaultTitle
	}
	v := reportView{
		Title:       title,
		URL:         m.URL,
		GeneratedAt: m.GeneratedAt.UTC().Format(timeLayout),
	}
	for _, lvl := range Impacts {
		issues := m.Groups[lvl]
		lv := levelView{
			Level: lvl,
			Name:  lvl.Title(),
			Label: strings.ToUpper(string(lvl)),
			Count: len(issues),
		}
		for idx, issue := range issues {
			lv.Issues = append(lv.Issues, issueViewOf(lvl, idx, issue))
		}
		v.Levels = append(v.Levels, lv)
	}
	return v
}

func issueViewOf(lvl Impact, idx int, issue Issue) issueView {
	desc := issue.Description
	if desc == "" {
		desc = issue.Help
	}
	shotTitle := issue.Help
	if shotTitle == "" {
		shotTitle = issue.ID
	}
	iv := issueView{
		CardID:          fmt.Sprintf("%s-%d", lvl, idx),
		ID:              issue.ID,
		Impact:          issue.Impact,
		Description:     desc,
		Tags:            issue.Tags,
		HelpURL:         issue.HelpURL,
		ScreenshotTitle: shotTitle,
	}
	if len(issue.Nodes) > 0 {
		first := issue.Nodes[0]
		iv.FirstNode = &nodeView{
			Target:         strings.Join(first.Target, ", "),
			FailureSummary: first.FailureSummary,
			Tag:            snippetTag(first.HTML),
		}
	}
	for _, n := range issue.Nodes {
		if n.Screenshot != nil {
			iv.Screenshot = *n.Screenshot
			break
		}
	}
	if iv.Screenshot == "" && issue.MetaScreenshot != nil {
		iv.Screenshot = *issue.MetaScreenshot
	}
	return iv
}

// snippetTag returns the tag name of the first element in an axe html
// snippet.
func snippetTag(snippet string) string {
	trimmed := strings.TrimSpace(snippet)
	if trimmed == "" {
		return ""
	}
	lower := strings.ToLower(trimmed)
	for _, doc := range []string{"<html", "<head", "<body"} {
		if strings.HasPrefix(lower, doc) {
			return doc[1:]
		}
	}
	d, err := goquery.NewDocumentFromReader(strings.NewReader(trimmed))
	if err != nil {
		return ""
	}
	for _, scope := range []string{"body", "head"} {
		if first := d.Find(scope).Children().First(); first.Length() > 0 {
			return goquery.NodeName(first)
		}
	}
	return ""
}

// Render executes the report template.
func (r *Renderer) Render(m *ReportModel) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil report model", ErrMalformedScan)
	}
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, r.view(m)); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteReport renders m into dir/index.html and returns the file path.
func (r *Renderer) WriteReport(dir string, m *ReportModel) (string, error) {
	html, err := r.Render(m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	path := filepath.Join(dir, ReportFile)
	if err := os.WriteFile(path, html, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
