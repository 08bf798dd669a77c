// Package runstate persists the record of a run in the run-log directory:
// run.json, failure.json and summary.yaml, next to the command logs, the
// event trace and the metrics textfile.
package runstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	RunFile     = "run.json"
	FailureFile = "failure.json"
	SummaryFile = "summary.yaml"
	EventsFile  = "events.json"
	MetricsFile = "metrics.prom"
)

// Store reads and writes the run record under one directory.
//
// All writes are atomic (temp file + rename).
type Store struct {
	dir       string
	protected []string
}

func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("run-log dir is required")
	}
	return &Store{dir: filepath.Clean(dir)}, nil
}

// Protect makes Reset refuse to run while the run-log directory is one of
// paths or an ancestor of one.
func (s *Store) Protect(paths ...string) {
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			s.protected = append(s.protected, filepath.Clean(p))
		}
	}
}

// Dir is the run-log directory.
func (s *Store) Dir() string { return s.dir }

// Path returns the location of a file in the run-log directory.
func (s *Store) Path(name string) string { return filepath.Join(s.dir, name) }

// Reset empties the run-log directory, creating it if needed, so nothing
// from a previous invocation survives into this one.
func (s *Store) Reset() error {
	clean := s.dir
	if clean == "/" || clean == "." {
		return fmt.Errorf("refusing to clear run-log dir %q", clean)
	}
	for _, p := range s.protected {
		if covers(clean, p) {
			return fmt.Errorf("refusing to clear run-log dir %q: it contains %q", clean, p)
		}
	}
	info, err := os.Stat(clean)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(clean, 0o755)
		}
		return fmt.Errorf("stat run-log dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("run-log dir is not a directory: %s", clean)
	}
	entries, err := os.ReadDir(clean)
	if err != nil {
		return fmt.Errorf("read run-log dir: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(clean, e.Name())); err != nil {
			return fmt.Errorf("clear run-log dir: %w", err)
		}
	}
	return nil
}

func (s *Store) SaveRun(run Run) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("invalid run: %w", err)
	}
	if run.Phases == nil {
		run.Phases = []PhaseRecord{}
	}
	data, err := jsonMarshalStable(run)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}
	if err := writeFileAtomic(s.Path(RunFile), data, 0o644); err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

func (s *Store) LoadRun() (Run, error) {
	var run Run
	if err := readJSONStrict(s.Path(RunFile), &run); err != nil {
		return Run{}, err
	}
	if err := run.Validate(); err != nil {
		return Run{}, fmt.Errorf("invalid run on disk: %w", err)
	}
	return run, nil
}

func (s *Store) SaveFailure(failure Failure) error {
	if err := failure.Validate(); err != nil {
		return fmt.Errorf("invalid failure: %w", err)
	}
	data, err := jsonMarshalStable(failure)
	if err != nil {
		return fmt.Errorf("marshal failure: %w", err)
	}
	if err := writeFileAtomic(s.Path(FailureFile), data, 0o644); err != nil {
		return fmt.Errorf("write failure: %w", err)
	}
	return nil
}

func (s *Store) LoadFailure() (Failure, error) {
	var failure Failure
	if err := readJSONStrict(s.Path(FailureFile), &failure); err != nil {
		return Failure{}, err
	}
	if err := failure.Validate(); err != nil {
		return Failure{}, fmt.Errorf("invalid failure on disk: %w", err)
	}
	return failure, nil
}

func (s *Store) SaveSummary(summary Summary) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := writeFileAtomic(s.Path(SummaryFile), buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	return nil
}

func (s *Store) LoadSummary() (Summary, error) {
	var summary Summary
	b, err := os.ReadFile(s.Path(SummaryFile))
	if err != nil {
		return Summary{}, err
	}
	if err := yaml.Unmarshal(b, &summary); err != nil {
		return Summary{}, fmt.Errorf("invalid summary on disk: %w", err)
	}
	return summary, nil
}

func jsonMarshalStable(v any) ([]byte, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func readJSONStrict(path string, dst any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("invalid JSON: trailing content")
	}
	return nil
}

func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	_ = tmp.Sync()
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}

// covers reports whether path is dir or lies below it.
func covers(dir, path string) bool {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
