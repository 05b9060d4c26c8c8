// Package runstore keeps a local history of suite runs in SQLite with
// step attachments in a content-addressed blob directory.
package runstore

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/raysh454/uiflow/internal/logging"
	"github.com/raysh454/uiflow/internal/steps"
)

//go:embed schema.sql
var schemaFS embed.FS

var (
	ErrRunNotFound  = errors.New("run not found")
	ErrCaseNotFound = errors.New("case not found")
)

const (
	DBFile   = "runs.db"
	BlobsDir = "blobs"

	subscriberBuffer = 64
)

// Store is the run history. Writes are serialised through a single
// connection.
type Store struct {
	db     *sql.DB
	blobs  *BlobStore
	logger logging.Logger
	now    func() time.Time

	mu   sync.Mutex
	subs map[string]map[chan Event]struct{}
}

// Open creates root if needed and opens root/runs.db with blobs under
// root/blobs.
func Open(root string, logger logging.Logger) (*Store, error) {
	if root == "" {
		return nil, errors.New("runstore: root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root %s: %w", root, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(root, DBFile))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	blobs, err := NewBlobStore(filepath.Join(root, BlobsDir))
	if err != nil {
		db.Close()
		return nil, err
	}
	s, err := New(db, blobs, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New applies the schema to db and wraps it.
func New(db *sql.DB, blobs *BlobStore, logger logging.Logger) (*Store, error) {
	if db == nil {
		return nil, errors.New("runstore: db is nil")
	}
	if blobs == nil {
		return nil, errors.New("runstore: blob store is nil")
	}
	if logger == nil {
		logger = logging.Nop{}
	}
	db.SetMaxOpenConns(1)
	if err := applySchema(db); err != nil {
		return nil, err
	}
	return &Store{
		db:     db,
		blobs:  blobs,
		logger: logger,
		now:    time.Now,
		subs:   map[string]map[chan Event]struct{}{},
	}, nil
}

func applySchema(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	schemaSQL, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema.sql: %w", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}
	return nil
}

// SetClock replaces the time source.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) Close() error {
	s.mu.Lock()
	for runID, set := range s.subs {
		for ch := range set {
			close(ch)
		}
		delete(s.subs, runID)
	}
	s.mu.Unlock()
	return s.db.Close()
}

func (s *Store) millis() int64 { return s.now().UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func nullTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

// CreateRun starts a run. resultsDir is where Allure results for the run go.
func (s *Store) CreateRun(ctx context.Context, name, resultsDir string) (*Run, error) {
	r := &Run{
		ID:         uuid.NewString(),
		Name:       name,
		ResultsDir: resultsDir,
		Status:     StatusRunning,
	}
	started := s.millis()
	r.StartedAt = fromMillis(started)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, name, results_dir, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.ResultsDir, r.Status, started)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	s.logger.Info("run created", logging.Field{Key: "run_id", Value: r.ID}, logging.Field{Key: "name", Value: name})
	return r, nil
}

// FinishRun tallies case statuses and closes the run. The run fails when any
// case failed or broke.
func (s *Store) FinishRun(ctx context.Context, runID string) (*Run, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM cases WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan case count: %w", err)
		}
		counts[status] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("count cases: %w", err)
	}

	status := steps.StatusPassed
	if counts[steps.StatusFailed]+counts[steps.StatusBroken] > 0 {
		status = steps.StatusFailed
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, passed = ?, failed = ?, broken = ?, skipped = ? WHERE id = ?`,
		status, s.millis(), counts[steps.StatusPassed], counts[steps.StatusFailed],
		counts[steps.StatusBroken], counts[steps.StatusSkipped], runID)
	if err != nil {
		return nil, fmt.Errorf("finish run: %w", err)
	}
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.publish(Event{Type: EventRunFinished, RunID: runID, Run: run})
	return run, nil
}

const runColumns = `id, name, results_dir, status, started_at, finished_at, passed, failed, broken, skipped`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*Run, error) {
	var r Run
	var started int64
	var finished sql.NullInt64
	if err := sc.Scan(&r.ID, &r.Name, &r.ResultsDir, &r.Status, &started, &finished,
		&r.Passed, &r.Failed, &r.Broken, &r.Skipped); err != nil {
		return nil, err
	}
	r.StartedAt = fromMillis(started)
	r.FinishedAt = nullTime(finished)
	return &r, nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the newest runs first. limit <= 0 means all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()
	out := []Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// StartCase opens a case in run and returns a Reporter recording into it.
func (s *Store) StartCase(ctx context.Context, runID, name, fullName string, labels steps.Labels) (*CaseRecorder, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}
	c := Case{
		ID:       uuid.NewString(),
		RunID:    runID,
		Name:     name,
		FullName: fullName,
		Labels:   labels,
		Status:   StatusRunning,
	}
	started := s.millis()
	c.StartedAt = fromMillis(started)
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cases (id, run_id, name, full_name, labels_json, status, started_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.RunID, c.Name, c.FullName, string(labelsJSON), c.Status, started)
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	snapshot := c
	s.publish(Event{Type: EventCaseStarted, RunID: runID, Case: &snapshot})
	return &CaseRecorder{store: s, c: c}, nil
}

const caseColumns = `id, run_id, name, full_name, labels_json, status, message, started_at, finished_at`

func scanCase(sc scanner) (*Case, error) {
	var c Case
	var labels string
	var started int64
	var finished sql.NullInt64
	if err := sc.Scan(&c.ID, &c.RunID, &c.Name, &c.FullName, &labels, &c.Status, &c.Message, &started, &finished); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &c.Labels); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	c.StartedAt = fromMillis(started)
	c.FinishedAt = nullTime(finished)
	return &c, nil
}

func (s *Store) GetCase(ctx context.Context, id string) (*Case, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = ?`, id)
	c, err := scanCase(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return c, nil
}

// ListCases returns a run's cases in start order.
func (s *Store) ListCases(ctx context.Context, runID string) ([]Case, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+caseColumns+` FROM cases WHERE run_id = ? ORDER BY started_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()
	out := []Case{}
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListSteps returns a case's steps in recording order with their
// attachments.
func (s *Store) ListSteps(ctx context.Context, caseID string) ([]Step, error) {
	if _, err := s.GetCase(ctx, caseID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, parent_id, seq, depth, title, status, reason, started_at, finished_at
		 FROM steps WHERE case_id = ? ORDER BY seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	out := []Step{}
	index := map[int64]int{}
	for rows.Next() {
		var st Step
		var parent, finished sql.NullInt64
		var started int64
		if err := rows.Scan(&st.ID, &st.CaseID, &parent, &st.Seq, &st.Depth, &st.Title, &st.Status,
			&st.Reason, &started, &finished); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan step: %w", err)
		}
		if parent.Valid {
			p := parent.Int64
			st.ParentID = &p
		}
		st.StartedAt = fromMillis(started)
		st.FinishedAt = nullTime(finished)
		st.Attachments = []Attachment{}
		index[st.ID] = len(out)
		out = append(out, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}

	atts, err := s.attachments(ctx, caseID)
	if err != nil {
		return nil, err
	}
	for _, a := range atts {
		if a.StepID == nil {
			continue
		}
		if i, ok := index[*a.StepID]; ok {
			out[i].Attachments = append(out[i].Attachments, a)
		}
	}
	return out, nil
}

// CaseAttachments returns attachments recorded outside any step.
func (s *Store) CaseAttachments(ctx context.Context, caseID string) ([]Attachment, error) {
	atts, err := s.attachments(ctx, caseID)
	if err != nil {
		return nil, err
	}
	out := []Attachment{}
	for _, a := range atts {
		if a.StepID == nil {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) attachments(ctx context.Context, caseID string) ([]Attachment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, case_id, step_id, name, mime, blob_id, size FROM attachments WHERE case_id = ? ORDER BY id`, caseID)
	if err != nil {
		return nil, fmt.Errorf("list attachments: %w", err)
	}
	defer rows.Close()
	var out []Attachment
	for rows.Next() {
		var a Attachment
		var step sql.NullInt64
		if err := rows.Scan(&a.ID, &a.CaseID, &step, &a.Name, &a.Mime, &a.BlobID, &a.Size); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		if step.Valid {
			id := step.Int64
			a.StepID = &id
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Blob returns attachment content by id.
func (s *Store) Blob(id string) ([]byte, error) {
	return s.blobs.Get(id)
}

// Subscribe streams events for runID until cancel is called or the store
// closes. Slow subscribers miss events rather than block writers.
func (s *Store) Subscribe(runID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	s.mu.Lock()
	set, ok := s.subs[runID]
	if !ok {
		set = map[chan Event]struct{}{}
		s.subs[runID] = set
	}
	set[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if set, ok := s.subs[runID]; ok {
				if _, live := set[ch]; live {
					delete(set, ch)
					close(ch)
				}
				if len(set) == 0 {
					delete(s.subs, runID)
				}
			}
		})
	}
	return ch, cancel
}

func (s *Store) publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs[ev.RunID] {
		select {
		case ch <- ev:
		default:
			s.logger.Debug("dropping event for slow subscriber",
				logging.Field{Key: "run_id", Value: ev.RunID}, logging.Field{Key: "type", Value: string(ev.Type)})
		}
	}
}
