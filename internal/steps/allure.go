package steps

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Labels are the Allure labels a case carries.
type Labels struct {
	Owner    string   `json:"owner,omitempty" yaml:"owner"`
	Epic     string   `json:"epic,omitempty" yaml:"epic"`
	Feature  string   `json:"feature,omitempty" yaml:"feature"`
	Story    string   `json:"story,omitempty" yaml:"story"`
	Suite    string   `json:"suite,omitempty" yaml:"suite"`
	Severity string   `json:"severity,omitempty" yaml:"severity"`
	Tags     []string `json:"tags,omitempty" yaml:"tags"`
}

type allureLabel struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (l Labels) allure() []allureLabel {
	var out []allureLabel
	add := func(name, value string) {
		if value != "" {
			out = append(out, allureLabel{Name: name, Value: value})
		}
	}
	add("owner", l.Owner)
	add("epic", l.Epic)
	add("feature", l.Feature)
	add("story", l.Story)
	add("suite", l.Suite)
	add("severity", l.Severity)
	for _, t := range l.Tags {
		add("tag", t)
	}
	add("framework", "uiflow")
	add("language", "go")
	return out
}

type allureAttachment struct {
	Name   string `json:"name"`
	Source string `json:"source"`
	Type   string `json:"type"`
}

type allureStatusDetails struct {
	Message string `json:"message,omitempty"`
	Trace   string `json:"trace,omitempty"`
}

type allureStep struct {
	Name          string               `json:"name"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	StatusDetails *allureStatusDetails `json:"statusDetails,omitempty"`
	Start         int64                `json:"start"`
	Stop          int64                `json:"stop"`
	Steps         []*allureStep        `json:"steps"`
	Attachments   []allureAttachment   `json:"attachments"`
}

type allureResult struct {
	UUID          string               `json:"uuid"`
	HistoryID     string               `json:"historyId"`
	Name          string               `json:"name"`
	FullName      string               `json:"fullName"`
	Status        string               `json:"status"`
	Stage         string               `json:"stage"`
	StatusDetails *allureStatusDetails `json:"statusDetails,omitempty"`
	Start         int64                `json:"start"`
	Stop          int64                `json:"stop"`
	Labels        []allureLabel        `json:"labels"`
	Steps         []*allureStep        `json:"steps"`
	Attachments   []allureAttachment   `json:"attachments"`
}

// AllureWriter creates Allure 2 result files in Dir.
type AllureWriter struct {
	Dir string
	Now func() time.Time
}

func NewAllureWriter(dir string) (*AllureWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &AllureWriter{Dir: dir, Now: time.Now}, nil
}

func (w *AllureWriter) millis() int64 {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	return now().UnixMilli()
}

// StartCase opens a test case. Call Finish to write its result file.
func (w *AllureWriter) StartCase(name, fullName string, labels Labels) *AllureCase {
	if fullName == "" {
		fullName = name
	}
	sum := md5.Sum([]byte(fullName))
	return &AllureCase{
		w: w,
		result: allureResult{
			UUID:        uuid.NewString(),
			HistoryID:   hex.EncodeToString(sum[:]),
			Name:        name,
			FullName:    fullName,
			Stage:       "running",
			Start:       w.millis(),
			Labels:      labels.allure(),
			Steps:       []*allureStep{},
			Attachments: []allureAttachment{},
		},
	}
}

// AllureCase is a Reporter for one test case.
type AllureCase struct {
	w      *AllureWriter
	mu     sync.Mutex
	result allureResult
	stack  []*allureStep
}

var _ Reporter = (*AllureCase)(nil)

func (c *AllureCase) UUID() string { return c.result.UUID }

func (c *AllureCase) Step(ctx context.Context, title string, outcome Outcome, body func(context.Context) error) error {
	st := &allureStep{
		Name:        title,
		Stage:       "running",
		Start:       c.w.millis(),
		Status:      outcome.Status(),
		Steps:       []*allureStep{},
		Attachments: []allureAttachment{},
	}
	if outcome.Failed && outcome.Reason != "" {
		st.StatusDetails = &allureStatusDetails{Message: outcome.Reason}
	}

	c.mu.Lock()
	if n := len(c.stack); n > 0 {
		parent := c.stack[n-1]
		parent.Steps = append(parent.Steps, st)
	} else {
		c.result.Steps = append(c.result.Steps, st)
	}
	c.stack = append(c.stack, st)
	c.mu.Unlock()

	var err error
	if body != nil {
		err = body(ctx)
	}

	c.mu.Lock()
	c.stack = c.stack[:len(c.stack)-1]
	st.Stop = c.w.millis()
	st.Stage = "finished"
	if err != nil && !outcome.Failed {
		st.Status = StatusBroken
		st.StatusDetails = &allureStatusDetails{Message: err.Error()}
	}
	c.mu.Unlock()
	return err
}

// Attach writes data as a result attachment and links it to the innermost open
// step, or to the case when no step is open.
func (c *AllureCase) Attach(_ context.Context, name string, data []byte, mimeType string) error {
	ext := ".bin"
	if exts, _ := mime.ExtensionsByType(mimeType); len(exts) > 0 {
		ext = exts[0]
	}
	source := uuid.NewString() + "-attachment" + ext
	if err := os.WriteFile(filepath.Join(c.w.Dir, source), data, 0o644); err != nil {
		return fmt.Errorf("write attachment: %w", err)
	}

	att := allureAttachment{Name: name, Source: source, Type: mimeType}
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.stack); n > 0 {
		c.stack[n-1].Attachments = append(c.stack[n-1].Attachments, att)
	} else {
		c.result.Attachments = append(c.result.Attachments, att)
	}
	return nil
}

// Finish writes <uuid>-result.json. A nil err marks the case passed; errors
// are failed unless they wrap context cancellation, which is broken.
func (c *AllureCase) Finish(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.result.Stop = c.w.millis()
	c.result.Stage = "finished"
	c.result.Status = StatusOf(err)
	if err != nil {
		c.result.StatusDetails = &allureStatusDetails{Message: err.Error(), Trace: fmt.Sprintf("%+v", err)}
	}

	data, mErr := json.MarshalIndent(c.result, "", "  ")
	if mErr != nil {
		return fmt.Errorf("encode result: %w", mErr)
	}
	path := filepath.Join(c.w.Dir, c.result.UUID+"-result.json")
	if wErr := os.WriteFile(path, data, 0o644); wErr != nil {
		return fmt.Errorf("write result: %w", wErr)
	}
	return nil
}
