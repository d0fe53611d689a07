// Package instructions renders the run contract handed to the coding agent.
// The contract spells out the issue workflow and the run.json fields the
// agent must fill in before the run validates.
package instructions

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// SkillsDirName is the directory next to run.json holding the run-local skills.
const SkillsDirName = "skills"

// ManifestFileName lists the run-local skills.
const ManifestFileName = "skills.json"

//go:embed contract.md.tmpl
var contractTemplate string

//go:embed skills/*.md
var skillFiles embed.FS

var tmpl = template.Must(template.New("contract").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(contractTemplate))

var skillTmpl = template.Must(template.ParseFS(skillFiles, "skills/*.md"))

const (
	prLifecycleStep = "PR lifecycle: open or update a PR for the issue branch and record the PR URL in run.json changes.pullRequestUrl."
	documentStep    = "Document: post progress + done comments with summary, tests, verification, and PR details."
)

var issueSteps = []string{
	"Triage: ensure the issue exists and acceptance criteria are explicit.",
	"Plan: post a plan comment to Linear before editing code.",
	"Implement: make focused code changes against acceptance criteria.",
	"Verify: run tests and collect concrete evidence.",
	"Commit: commit the focused changes to the issue branch.",
	prLifecycleStep,
	documentStep,
	"Transition: mark issue done only after evidence is posted.",
}

var unscopedSteps = []string{
	"Wait gate: if no concrete user request exists yet, do not start intake triage.",
	"Intake triage: once a concrete user request exists, inspect it and search for an existing relevant issue in Linear.",
	"Bind before coding: once implementation scope is clear, reuse an existing issue when possible; create one only if truly needed, then set run.json issueId before edits.",
	"Plan: post a plan comment to that issue before editing code.",
	"Implement: make focused code changes against acceptance criteria.",
	"Verify: run tests and collect concrete evidence.",
	"Commit: commit the focused changes to the issue branch.",
	prLifecycleStep,
	documentStep,
	"Transition: mark issue done only after evidence is posted.",
}

// Data is the input of a rendered contract.
type Data struct {
	// IssueID is empty for an unscoped run.
	IssueID  string
	RepoRoot string
	// Branch is the managed worktree branch, empty when running in place.
	Branch string
	// Project is the configured Linear project, if any.
	Project string
	// RunPath is the absolute path of run.json.
	RunPath string
	// Executable is the command name used in the finish gate.
	Executable string
}

// Skill is one run-local skill file.
type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`

	label    string
	template string
}

// Label is the human-readable name used in the run contract.
func (s Skill) Label() string { return s.label }

// Manifest is the content of skills.json.
type Manifest struct {
	Version int     `json:"version"`
	Skills  []Skill `json:"skills"`
}

type view struct {
	Data
	Steps           []string
	ValidateCommand string
	Skills          []Skill
	ManifestPath    string
}

type skillView struct {
	Data
	Subject string
}

// Skills returns the run-local skills rooted at runDir/skills, in manifest order.
func Skills(runDir string) []Skill {
	dir := filepath.Join(runDir, SkillsDirName)
	return []Skill{
		{
			Name:        "linear-workflow",
			Description: "Run-scoped Linear workflow rules",
			Path:        filepath.Join(dir, "linear.md"),
			label:       "Linear workflow",
			template:    "linear.md",
		},
		{
			Name:        "github-pr-workflow",
			Description: "Run-scoped GitHub workflow rules",
			Path:        filepath.Join(dir, "github.md"),
			label:       "GitHub workflow",
			template:    "github.md",
		},
	}
}

// ManifestPath returns the path of skills.json for runDir.
func ManifestPath(runDir string) string {
	return filepath.Join(runDir, SkillsDirName, ManifestFileName)
}

// RenderSkill produces the markdown of s for the run described by d.
func RenderSkill(s Skill, d Data) (string, error) {
	subject := d.IssueID
	if subject == "" {
		subject = "an unscoped run"
	}

	var buf bytes.Buffer
	if err := skillTmpl.ExecuteTemplate(&buf, s.template, skillView{Data: d, Subject: subject}); err != nil {
		return "", fmt.Errorf("failed to render skill %s: %w", s.Name, err)
	}
	return buf.String(), nil
}

// RenderManifest produces skills.json, two-space indented and newline-terminated.
func RenderManifest(skills []Skill) ([]byte, error) {
	data, err := json.MarshalIndent(Manifest{Version: 1, Skills: skills}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode skill manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Steps returns the required sequence for a run.
func Steps(issueID string) []string {
	if strings.TrimSpace(issueID) == "" {
		return unscopedSteps
	}
	return issueSteps
}

// Render produces the contract markdown, newline-terminated.
func Render(d Data) (string, error) {
	exe := d.Executable
	if exe == "" {
		exe = "project-agent"
	}
	runDir := filepath.Dir(d.RunPath)
	v := view{
		Data:            d,
		Steps:           Steps(d.IssueID),
		ValidateCommand: fmt.Sprintf("%s validate %s", exe, d.RunPath),
		Skills:          Skills(runDir),
		ManifestPath:    ManifestPath(runDir),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render run contract: %w", err)
	}
	return buf.String(), nil
}

// Prompt is the initial message passed to the agent on launch.
func Prompt(d Data, instructionsPath string) string {
	lines := []string{fmt.Sprintf("Run context prepared. Read and follow: %s", instructionsPath)}
	if d.Project != "" {
		lines = append(lines, fmt.Sprintf(
			"Default Linear project scope is %q. Query this project unless user explicitly asks for team/workspace-wide scope.", d.Project))
	} else {
		lines = append(lines, "Default Linear scope is the relevant issue context unless user explicitly asks for team/workspace-wide scope.")
	}
	if d.IssueID != "" {
		lines = append(lines, "Issue ID for this run: "+d.IssueID)
	} else {
		lines = append(lines, "No issue ID provided yet; wait for the first concrete user request before intake triage. "+
			"Do not create placeholder issues, and only bind run.json when implementation scope is confirmed.")
	}
	return strings.Join(lines, "\n")
}
