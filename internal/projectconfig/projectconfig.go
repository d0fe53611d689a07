// Package projectconfig discovers the optional per-repository project config
// and derives the artifact namespace from it.
package projectconfig

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/project-agent/project-agent/internal/errors"
	"github.com/project-agent/project-agent/internal/slug"
)

// FileNames are the config file names looked up in a directory, in order.
var FileNames = []string{"project-agent.json", ".project-agent.json"}

// Config is the project-level configuration.
type Config struct {
	// Project is the issue-tracker project runs are scoped to.
	Project string `json:"project"`
}

// Loaded is a config together with the file it came from.
type Loaded struct {
	Path   string
	Config Config
}

// Load looks for a config file in dir. It returns nil, nil when none exists.
// A file that exists but is invalid is an error naming that file.
func Load(fsys afero.Fs, dir string) (*Loaded, error) {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		raw, err := afero.ReadFile(fsys, path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read project config at %s: %w", path, err)
		}

		cfg, err := Parse(raw, path)
		if err != nil {
			return nil, err
		}
		return &Loaded{Path: path, Config: cfg}, nil
	}
	return nil, nil
}

// Parse decodes a config document. path is only used in error messages.
func Parse(raw []byte, path string) (Config, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Config{}, errors.NewValidationError(
			fmt.Sprintf("invalid project config at %s: JSON parse failed", path)).WithCause(err)
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return Config{}, errors.NewValidationError(
			fmt.Sprintf("invalid project config at %s: expected a JSON object", path))
	}

	project, ok := obj["project"].(string)
	if !ok || strings.TrimSpace(project) == "" {
		return Config{}, errors.NewValidationError(
			fmt.Sprintf(`invalid project config at %s: "project" must be a non-empty string`, path)).
			WithField("project")
	}
	return Config{Project: strings.TrimSpace(project)}, nil
}

// Namespace returns the artifact namespace for a repository. A configured
// project wins; otherwise the repository's base name is suffixed with a short
// hash of its full path so equally named checkouts do not collide.
func Namespace(repoRoot string, cfg *Config) string {
	if cfg != nil && cfg.Project != "" {
		return SanitizeProject(cfg.Project)
	}

	name := filepath.Base(repoRoot)
	if name == "" || name == "." || name == string(filepath.Separator) {
		name = "repo"
	}
	sum := sha1.Sum([]byte(repoRoot))
	return name + "-" + hex.EncodeToString(sum[:])[:10]
}

// SanitizeProject turns a project name into a path-safe namespace.
func SanitizeProject(project string) string {
	return slug.Make(project, "project")
}
