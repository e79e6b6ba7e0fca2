// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package publish performs the pipeline's repository side effects: review
// issues, dataset commits with pull requests, and rewriting files that
// import the dataset by name. It shells out to git and gh.
package publish

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

const (
	binGit = "git"
	binGH  = "gh"

	defaultBaseBranch   = "main"
	defaultBranchPrefix = "milestones/update-"
)

// Publisher creates review issues and dataset pull requests.
type Publisher interface {
	// CreateIssue opens an issue and returns its URL.
	CreateIssue(ctx context.Context, title, body string) (string, error)

	// PublishChanges commits files on a new branch, pushes it, and opens a
	// pull request. It returns the pull request URL.
	PublishChanges(ctx context.Context, files []string, title, body string) (string, error)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	Run(ctx context.Context, dir, name string, args []string, stdin io.Reader) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, dir, name string, args []string, stdin io.Reader) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return stdout.String(), eris.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

var defaultExec = &osExecutor{}

// GitHub implements Publisher with the git and gh command-line tools,
// running in the repository at Dir.
type GitHub struct {
	cfg  types.PublishConfig
	dir  string
	exec executor
	now  func() time.Time
}

// NewGitHub creates a publisher for the repository containing dir.
func NewGitHub(cfg types.PublishConfig, dir string) *GitHub {
	return newGitHub(cfg, dir, defaultExec)
}

func newGitHub(cfg types.PublishConfig, dir string, exec executor) *GitHub {
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = defaultBaseBranch
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = defaultBranchPrefix
	}
	return &GitHub{cfg: cfg, dir: dir, exec: exec, now: time.Now}
}

// Available reports ErrConfiguration when git or gh is not on PATH.
func (g *GitHub) Available() error {
	for _, bin := range []string{binGit, binGH} {
		if _, err := g.exec.LookPath(bin); err != nil {
			return eris.Wrapf(types.ErrConfiguration, "%s not found on PATH", bin)
		}
	}
	return nil
}

func (g *GitHub) repoArgs(args []string) []string {
	if g.cfg.Repo != "" {
		args = append(args, "--repo", g.cfg.Repo)
	}
	return args
}

// CreateIssue opens an issue with the configured labels and returns its URL.
func (g *GitHub) CreateIssue(ctx context.Context, title, body string) (string, error) {
	args := []string{"issue", "create", "--title", title, "--body-file", "-"}
	for _, l := range g.cfg.Labels {
		args = append(args, "--label", l)
	}
	out, err := g.exec.Run(ctx, g.dir, binGH, g.repoArgs(args), strings.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "creating issue")
	}
	return lastLine(out), nil
}

// PublishChanges commits files on a new timestamped branch, pushes it, and
// opens a pull request against the base branch. It returns the pull
// request URL.
func (g *GitHub) PublishChanges(ctx context.Context, files []string, title, body string) (string, error) {
	if len(files) == 0 {
		return "", eris.New("no files to publish")
	}
	branch := g.cfg.BranchPrefix + g.now().UTC().Format("2006-01-02-150405")

	steps := [][]string{
		{"checkout", "-b", branch},
		append([]string{"add", "--all", "--"}, files...),
		{"commit", "-m", title},
		{"push", "-u", "origin", branch},
	}
	for _, args := range steps {
		if _, err := g.exec.Run(ctx, g.dir, binGit, args, nil); err != nil {
			return "", eris.Wrapf(err, "git %s", args[0])
		}
	}

	args := []string{"pr", "create", "--title", title, "--body-file", "-", "--base", g.cfg.BaseBranch, "--head", branch}
	out, err := g.exec.Run(ctx, g.dir, binGH, g.repoArgs(args), strings.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "creating pull request")
	}
	return lastLine(out), nil
}

// lastLine returns the final non-empty line of gh output, which is the URL.
func lastLine(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
