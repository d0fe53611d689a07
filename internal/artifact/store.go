package artifact

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/project-agent/project-agent/internal/errors"
)

const (
	// RunFileName is the artifact file inside a run directory.
	RunFileName = "run.json"
	// InstructionsFileName is the run contract handed to the agent.
	InstructionsFileName = "codex-instructions.md"
)

// RunDir returns the directory holding one run's files.
func RunDir(root, namespace, runKey string) string {
	return filepath.Join(root, namespace, runKey)
}

// Store reads and writes run files on an afero filesystem.
type Store struct {
	fs afero.Fs
}

// NewStore creates a Store. Pass afero.NewOsFs() for the real filesystem.
func NewStore(fsys afero.Fs) *Store {
	return &Store{fs: fsys}
}

// CreateIfAbsent writes a to path only when no file exists there. It reports
// whether it created the file. An existing artifact is left untouched, even
// if it is invalid.
func (s *Store) CreateIfAbsent(path string, a *RunArtifact) (bool, error) {
	data, err := Encode(a)
	if err != nil {
		return false, errors.NewArtifactError("failed to encode run artifact", err).WithPath(path)
	}
	if err := s.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, errors.NewArtifactError("failed to create run directory", err).WithPath(path)
	}

	f, err := s.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, errors.NewArtifactError("failed to create run artifact", err).WithPath(path)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		artErr := errors.NewArtifactError("failed to write run artifact", err).WithPath(path)
		if rmErr := s.fs.Remove(path); rmErr != nil {
			// A partial run.json would block every later CreateIfAbsent.
			artErr = artErr.WithSeverity(errors.SeverityCritical)
		}
		return false, artErr
	}
	if err := f.Close(); err != nil {
		_ = s.fs.Remove(path)
		return false, errors.NewArtifactError("failed to close run artifact", err).WithPath(path)
	}
	return true, nil
}

// ReadRaw returns the bytes of the file at path.
func (s *Store) ReadRaw(path string) ([]byte, error) {
	data, err := afero.ReadFile(s.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewNotFoundError("run artifact", path).WithCause(errors.ErrArtifactNotFound)
		}
		return nil, errors.NewArtifactError("failed to read run artifact", err).WithPath(path)
	}
	return data, nil
}

// Load reads and parses the artifact at path. Schema problems are returned
// as SchemaErrors wrapped with ErrArtifactSchema.
func (s *Store) Load(path string) (*RunArtifact, error) {
	data, err := s.ReadRaw(path)
	if err != nil {
		return nil, err
	}
	a, schemaErrs := Parse(data)
	if len(schemaErrs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", errors.ErrArtifactSchema, path, schemaErrs)
	}
	return a, nil
}

// Save replaces the artifact at path atomically.
func (s *Store) Save(path string, a *RunArtifact) error {
	data, err := Encode(a)
	if err != nil {
		return errors.NewArtifactError("failed to encode run artifact", err).WithPath(path)
	}
	return s.WriteFileAtomic(path, data)
}

// WriteFileAtomic writes data to path through a temp file in the same
// directory followed by a rename, so readers never see a partial file.
func (s *Store) WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return errors.NewArtifactError("failed to create directory", err).WithPath(path)
	}

	tmp, err := afero.TempFile(s.fs, dir, ".tmp-*")
	if err != nil {
		return errors.NewArtifactError("failed to create temp file", err).WithPath(path)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = s.fs.Remove(tmpPath)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.NewArtifactError("failed to write temp file", err).WithPath(path)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.NewArtifactError("failed to sync temp file", err).WithPath(path)
	}
	if err := tmp.Close(); err != nil {
		return errors.NewArtifactError("failed to close temp file", err).WithPath(path)
	}
	if err := s.fs.Rename(tmpPath, path); err != nil {
		return errors.NewArtifactError("failed to replace file", err).WithPath(path)
	}
	return nil
}
