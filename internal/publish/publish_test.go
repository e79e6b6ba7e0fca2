// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/milestone-engine/pkg/types"
)

// mockExecutor records calls and returns configured responses.
type mockExecutor struct {
	availableBins map[string]bool
	failOn        string // "bin arg0" prefix that fails
	outputs       map[string]string

	calls  []string
	stdins []string
	dirs   []string
}

func (m *mockExecutor) LookPath(file string) (string, error) {
	if m.availableBins[file] {
		return "/usr/bin/" + file, nil
	}
	return "", errors.New("not found: " + file)
}

func (m *mockExecutor) Run(_ context.Context, dir, name string, args []string, stdin io.Reader) (string, error) {
	key := name + " " + strings.Join(args, " ")
	m.calls = append(m.calls, key)
	m.dirs = append(m.dirs, dir)
	if stdin != nil {
		data, _ := io.ReadAll(stdin)
		m.stdins = append(m.stdins, string(data))
	}
	if m.failOn != "" && strings.HasPrefix(key, m.failOn) {
		return "", errors.New("exit status 1")
	}
	for prefix, out := range m.outputs {
		if strings.HasPrefix(key, prefix) {
			return out, nil
		}
	}
	return "", nil
}

func testGitHub(cfg types.PublishConfig, m *mockExecutor) *GitHub {
	g := newGitHub(cfg, "/repo", m)
	g.now = func() time.Time { return time.Date(2025, 1, 27, 9, 30, 0, 0, time.UTC) }
	return g
}

func TestAvailable(t *testing.T) {
	tests := []struct {
		name    string
		bins    map[string]bool
		wantErr string
	}{
		{"both present", map[string]bool{"git": true, "gh": true}, ""},
		{"gh missing", map[string]bool{"git": true}, "gh not found"},
		{"git missing", map[string]bool{"gh": true}, "git not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := testGitHub(types.PublishConfig{}, &mockExecutor{availableBins: tt.bins}).Available()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, types.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCreateIssue(t *testing.T) {
	m := &mockExecutor{outputs: map[string]string{
		"gh issue create": "Creating issue in acme/timeline\n\nhttps://github.com/acme/timeline/issues/42\n",
	}}
	g := testGitHub(types.PublishConfig{Repo: "acme/timeline", Labels: []string{"milestones", "review"}}, m)

	url, err := g.CreateIssue(context.Background(), "Milestone candidates 2025-01-27", "body text")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/timeline/issues/42", url)

	require.Len(t, m.calls, 1)
	assert.Equal(t, "gh issue create --title Milestone candidates 2025-01-27 --body-file - --label milestones --label review --repo acme/timeline", m.calls[0])
	assert.Equal(t, []string{"body text"}, m.stdins)
	assert.Equal(t, "/repo", m.dirs[0])
}

func TestCreateIssue_Failure(t *testing.T) {
	m := &mockExecutor{failOn: "gh issue"}
	_, err := testGitHub(types.PublishConfig{}, m).CreateIssue(context.Background(), "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating issue")
}

func TestPublishChanges(t *testing.T) {
	m := &mockExecutor{outputs: map[string]string{
		"gh pr create": "https://github.com/acme/timeline/pull/7\n",
	}}
	g := testGitHub(types.PublishConfig{}, m)

	url, err := g.PublishChanges(context.Background(),
		[]string{"data/ai-milestones_2024-01_2025-01-20.json", "src/timeline.ts"},
		"Add 3 AI milestones", "summary")
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/timeline/pull/7", url)

	assert.Equal(t, []string{
		"git checkout -b milestones/update-2025-01-27-093000",
		"git add --all -- data/ai-milestones_2024-01_2025-01-20.json src/timeline.ts",
		"git commit -m Add 3 AI milestones",
		"git push -u origin milestones/update-2025-01-27-093000",
		"gh pr create --title Add 3 AI milestones --body-file - --base main --head milestones/update-2025-01-27-093000",
	}, m.calls)
}

func TestPublishChanges_StopsAtFirstFailure(t *testing.T) {
	m := &mockExecutor{failOn: "git commit"}
	_, err := testGitHub(types.PublishConfig{}, m).PublishChanges(context.Background(), []string{"a.json"}, "t", "b")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "git commit")
	assert.Len(t, m.calls, 3)
}

func TestPublishChanges_NoFiles(t *testing.T) {
	m := &mockExecutor{}
	_, err := testGitHub(types.PublishConfig{}, m).PublishChanges(context.Background(), nil, "t", "b")
	require.Error(t, err)
	assert.Empty(t, m.calls)
}

// --- RewriteReferences ---

func TestRewriteReferences(t *testing.T) {
	dir := t.TempDir()
	importer := filepath.Join(dir, "timeline.ts")
	unrelated := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(importer, []byte(`import data from "./data/ai-milestones_2024-01_2025-01-20.json";`+"\n"), 0o644))
	require.NoError(t, os.WriteFile(unrelated, []byte("nothing here\n"), 0o644))

	changed, err := RewriteReferences(
		[]string{importer, unrelated, filepath.Join(dir, "missing.ts")},
		"data/ai-milestones_2024-01_2025-01-20.json",
		"data/ai-milestones_2024-01_2025-01-27.json",
	)
	require.NoError(t, err)
	assert.Equal(t, []string{importer}, changed)

	data, err := os.ReadFile(importer)
	require.NoError(t, err)
	assert.Equal(t, `import data from "./data/ai-milestones_2024-01_2025-01-27.json";`+"\n", string(data))
}

func TestRewriteReferences_SameName(t *testing.T) {
	changed, err := RewriteReferences([]string{"whatever"}, "a/x.json", "b/x.json")
	require.NoError(t, err)
	assert.Empty(t, changed)
}
