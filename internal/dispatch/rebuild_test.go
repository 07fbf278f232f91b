package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// initOriginRepo creates a local git repository with one commit on master
// to act as a clone source for end-to-end rebuild runs.
func initOriginRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	run := func(argv ...string) {
		t.Helper()
		cmd := exec.Command(argv[0], argv[1:]...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("%s: %v\n%s", strings.Join(argv, " "), err, out)
		}
	}

	run("git", "init", "-b", "master")
	run("git", "config", "user.email", "docbot@test")
	run("git", "config", "user.name", "docbot")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("origin\n"), 0o644))
	run("git", "add", "README")
	run("git", "commit", "-m", "initial")
	return dir
}

func newRebuildDispatcher(t *testing.T, origin, command string) (*Dispatcher, *recordingAnnouncer) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, fmt.Sprintf(`
projects:
  - name: docs
    repository_url: %s
    source: repoA
    builds:
      - name: site
        commands:
          - [sh, -c, %q]
`, origin, command))

	ann := &recordingAnnouncer{}
	// No Submit override: notifications rebuild inline, sequentially.
	d, err := New(Options{ConfigPath: path, Announcer: ann})
	require.NoError(t, err)
	return d, ann
}

func TestRebuildAnnouncesProgressAndIdle(t *testing.T) {
	d, ann := newRebuildDispatcher(t, initOriginRepo(t), "echo building")

	d.HandleNotification(context.Background(), "repoA", "refs/heads/master")

	require.Len(t, ann.statuses, 2)
	assert.Equal(t, "Rebuilding site from project docs", ann.statuses[0])
	assert.Equal(t, "docbot is idle", ann.statuses[1])

	require.NotEmpty(t, ann.logs)
	assert.Equal(t, "Rebuilding site from project docs", ann.logs[0])
	assert.Contains(t, ann.logs, "building")
	assert.Equal(t, "done.", ann.logs[len(ann.logs)-1])
	assert.Empty(t, ann.alerts)
}

func TestRebuildEchoesCommandLines(t *testing.T) {
	d, ann := newRebuildDispatcher(t, initOriginRepo(t), "echo ok")

	d.HandleNotification(context.Background(), "repoA", "refs/heads/master")

	var echoed []string
	for _, line := range ann.logs {
		if strings.HasPrefix(line, "$ ") {
			echoed = append(echoed, line)
		}
	}
	require.NotEmpty(t, echoed)
	assert.Contains(t, echoed[0], "$ git clone")
	assert.Contains(t, echoed, "$ sh -c echo ok")
}

func TestRebuildFailureAlertsOperatorAndGoesIdle(t *testing.T) {
	d, ann := newRebuildDispatcher(t, initOriginRepo(t), "echo doomed; exit 2")

	d.HandleNotification(context.Background(), "repoA", "refs/heads/master")

	require.Len(t, ann.alerts, 1)
	assert.Equal(t, "Project docs, target site is broken, traceback logged to docs", ann.alerts[0])

	// Full error detail lands on the log channel; idle always follows.
	assert.Contains(t, strings.Join(ann.logs, "\n"), "exited with code 2")
	assert.Equal(t, "docbot is idle", ann.statuses[len(ann.statuses)-1])
}
