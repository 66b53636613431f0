// Package artifact manages the per-run artifacts directory tree.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns one run's artifacts directory.
//
// Layout:
//
//	<root>/<runID>/                run directory
//	<root>/<runID>/stampede.log    consolidated run log
//	<root>/<runID>/<executor>/     one isolated subdirectory per executor
//	<root>/<runID>/report.json     final aggregated report
//
// Directories are created on demand and never deleted by the store.
type Store struct {
	root   string
	runID  string
	runDir string

	mu      sync.Mutex
	subdirs map[string]bool
}

// EnvironmentError indicates the artifacts tree cannot be used.
type EnvironmentError struct {
	Path   string
	Reason string
}

func (e *EnvironmentError) Error() string {
	return "environment error at " + e.Path + ": " + e.Reason
}

// NewStore creates the artifacts root (if absent) and a fresh run
// directory beneath it.
func NewStore(root string) (*Store, error) {
	runID := newRunID()
	runDir := filepath.Join(root, runID)

	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return nil, &EnvironmentError{Path: root, Reason: err.Error()}
	}

	// MkdirAll succeeds on an existing read-only tree; probe writability
	// so the run fails before any executor launches.
	probe := filepath.Join(runDir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return nil, &EnvironmentError{Path: runDir, Reason: "directory is not writable"}
	}
	f.Close()
	os.Remove(probe)

	return &Store{
		root:    root,
		runID:   runID,
		runDir:  runDir,
		subdirs: make(map[string]bool),
	}, nil
}

// newRunID builds a sortable, collision-free run identifier.
func newRunID() string {
	stamp := time.Now().Format("2006-01-02_15-04-05")
	return stamp + "." + uuid.NewString()[:8]
}

// RunID returns the run identifier (the run directory's basename).
func (s *Store) RunID() string {
	return s.runID
}

// Root returns the artifacts root directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the run directory path.
func (s *Store) Dir() string {
	return s.runDir
}

// RunLogPath returns the consolidated run log path.
func (s *Store) RunLogPath() string {
	return filepath.Join(s.runDir, "stampede.log")
}

// ReportPath returns the path for a top-level run artifact file.
func (s *Store) ReportPath(name string) string {
	return filepath.Join(s.runDir, name)
}

// CreateFile creates a top-level run artifact file.
func (s *Store) CreateFile(name string) (*os.File, error) {
	f, err := os.Create(filepath.Join(s.runDir, name))
	if err != nil {
		return nil, &EnvironmentError{Path: s.runDir, Reason: err.Error()}
	}
	return f, nil
}

// ExecutorDir allocates a unique subdirectory for one executor instance.
//
// Names are never reused within a run: a second request for "k6" yields
// "k6-2", then "k6-3", and so on.
func (s *Store) ExecutorDir(name string) (*Dir, error) {
	s.mu.Lock()
	candidate := name
	for i := 2; s.subdirs[candidate]; i++ {
		candidate = fmt.Sprintf("%s-%d", name, i)
	}
	s.subdirs[candidate] = true
	s.mu.Unlock()

	path := filepath.Join(s.runDir, candidate)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, &EnvironmentError{Path: path, Reason: err.Error()}
	}

	return &Dir{name: candidate, path: path}, nil
}

// Dir is one executor's isolated artifact subdirectory.
type Dir struct {
	name string
	path string

	mu    sync.Mutex
	taken map[string]bool
}

// Name returns the subdirectory's basename.
func (d *Dir) Name() string {
	return d.name
}

// Path returns the subdirectory's absolute or plan-relative path.
func (d *Dir) Path() string {
	return d.path
}

// Join returns a path inside the subdirectory.
func (d *Dir) Join(elem ...string) string {
	return filepath.Join(append([]string{d.path}, elem...)...)
}

// CreateArtifact opens a new uniquely-named file "<prefix><suffix>" inside
// the subdirectory, appending a counter on collision.
func (d *Dir) CreateArtifact(prefix, suffix string) (*os.File, error) {
	d.mu.Lock()
	if d.taken == nil {
		d.taken = make(map[string]bool)
	}
	name := prefix + suffix
	for i := 2; d.taken[name] || exists(filepath.Join(d.path, name)); i++ {
		name = fmt.Sprintf("%s-%d%s", prefix, i, suffix)
	}
	d.taken[name] = true
	d.mu.Unlock()

	f, err := os.Create(filepath.Join(d.path, name))
	if err != nil {
		return nil, &EnvironmentError{Path: d.path, Reason: err.Error()}
	}
	return f, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// List returns the names of files currently in the subdirectory.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	return names, nil
}
