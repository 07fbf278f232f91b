package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docbot/internal/project"
)

// recordingAnnouncer captures dispatcher output for assertions.
type recordingAnnouncer struct {
	logs     []string
	statuses []string
	alerts   []string
}

func (a *recordingAnnouncer) Log(line string)          { a.logs = append(a.logs, line) }
func (a *recordingAnnouncer) Status(subject string)    { a.statuses = append(a.statuses, subject) }
func (a *recordingAnnouncer) OperatorAlert(msg string) { a.alerts = append(a.alerts, msg) }

func writeConfigFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const twoProjectConfig = `
authorized:
  - jonas@hub.example.net
projects:
  - name: docs
    repository_url: git://example/docs.git
    source: repoA
    builds:
      - name: site
      - name: devel-site
        branch: devel
  - name: mirror
    repository_url: git://example/mirror.git
    source: repoA
    builds:
      - name: mirror-site
`

// newTestDispatcher builds a dispatcher over a temp config file, capturing
// submitted builds instead of running them.
func newTestDispatcher(t *testing.T, cfg string) (*Dispatcher, *recordingAnnouncer, *[]string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, cfg)

	var submitted []string
	ann := &recordingAnnouncer{}
	d, err := New(Options{
		ConfigPath: path,
		Announcer:  ann,
		Submit:     func(target project.Target) { submitted = append(submitted, target.Name()) },
	})
	require.NoError(t, err)
	return d, ann, &submitted
}

func TestNewFailsOnBrokenConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, ":\nnot yaml [")
	_, err := New(Options{ConfigPath: path, Announcer: &recordingAnnouncer{}})
	require.Error(t, err)
}

func TestHandleNotificationTriggersMatchingBuilds(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)

	d.HandleNotification(context.Background(), "repoA", "refs/heads/master")

	// Both projects share (repoA, master); builds appear in declaration
	// order across projects, exactly once each.
	assert.Equal(t, []string{"site", "mirror-site"}, *submitted)
}

func TestHandleNotificationBranchSegment(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)

	d.HandleNotification(context.Background(), "repoA", "refs/heads/devel")
	assert.Equal(t, []string{"devel-site"}, *submitted)
}

func TestHandleNotificationMissIsDropped(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)

	d.HandleNotification(context.Background(), "repoA", "refs/heads/unknown-branch")
	d.HandleNotification(context.Background(), "repoB", "refs/heads/master")
	assert.Empty(t, *submitted)
}

func TestHandleNotificationMalformedInput(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)

	d.HandleNotification(context.Background(), "", "refs/heads/master")
	d.HandleNotification(context.Background(), "repoA", "")
	d.HandleNotification(context.Background(), "repoA", "master")
	assert.Empty(t, *submitted)
}

func TestRebuildProjectSubmitsAllBuilds(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)

	require.NoError(t, d.RebuildProject("docs"))
	assert.Equal(t, []string{"site", "devel-site"}, *submitted)
}

func TestReloadKeepsOldSnapshotOnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, twoProjectConfig)
	d, err := New(Options{ConfigPath: path, Announcer: &recordingAnnouncer{}, Submit: func(project.Target) {}})
	require.NoError(t, err)

	before := d.Snapshot()

	writeConfigFile(t, path, "projects: [broken")
	require.Error(t, d.Reload())

	assert.Same(t, before, d.Snapshot())
	assert.Contains(t, d.Snapshot().Projects, "docs")
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, twoProjectConfig)
	d, err := New(Options{ConfigPath: path, Announcer: &recordingAnnouncer{}, Submit: func(project.Target) {}})
	require.NoError(t, err)

	writeConfigFile(t, path, `
projects:
  - name: fresh
    repository_url: git://example/fresh.git
`)
	require.NoError(t, d.Reload())

	assert.Contains(t, d.Snapshot().Projects, "fresh")
	assert.NotContains(t, d.Snapshot().Projects, "docs")
}

func TestAuthorizeKnownIdentity(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)

	reply, ok := d.Authorize("jonas@hub.example.net")
	assert.True(t, ok)
	assert.Empty(t, reply)
}

func TestAuthorizeDeniesOnceThenSilent(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)

	reply, ok := d.Authorize("intruder@example.net")
	assert.False(t, ok)
	assert.Equal(t, "You're not authorized.", reply)

	reply, ok = d.Authorize("intruder@example.net")
	assert.False(t, ok)
	assert.Empty(t, reply)
}

func TestAuthorizeBlacklistResetOnReload(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)

	_, _ = d.Authorize("intruder@example.net")
	require.NoError(t, d.Reload())

	reply, ok := d.Authorize("intruder@example.net")
	assert.False(t, ok)
	assert.Equal(t, "You're not authorized.", reply)
}
