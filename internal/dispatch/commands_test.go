package dispatch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleCommandEcho(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "foo bar", d.HandleCommand("echo foo bar"))
}

func TestHandleCommandPing(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "pong", d.HandleCommand("ping"))
}

func TestHandleCommandUnknownVerb(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "Unknown command: bogus", d.HandleCommand("bogus"))
}

func TestHandleCommandEmptyLine(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Empty(t, d.HandleCommand("   "))
}

func TestHandleCommandRebuildUnknownProject(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "Unknown project: doesnotexist", d.HandleCommand("rebuild doesnotexist"))
}

func TestHandleCommandRebuildSubmitsBuilds(t *testing.T) {
	d, _, submitted := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "rebuild triggered", d.HandleCommand("rebuild mirror"))
	assert.Equal(t, []string{"mirror-site"}, *submitted)
}

func TestHandleCommandReload(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	assert.Equal(t, "reloaded", d.HandleCommand("reload"))
}

func TestHandleCommandReloadReportsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docbot.yaml")
	writeConfigFile(t, path, twoProjectConfig)
	d, err := New(Options{ConfigPath: path, Announcer: &recordingAnnouncer{}})
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("projects: [broken"), 0o644))
	reply := d.HandleCommand("reload")
	assert.Contains(t, reply, "configuration")
	assert.NotEqual(t, "reloaded", reply)
}

func TestRegisterCommandExtendsVerbTable(t *testing.T) {
	d, _, _ := newTestDispatcher(t, twoProjectConfig)
	d.RegisterCommand("version", func(args []string) string { return "docbot 1.0" })
	assert.Equal(t, "docbot 1.0", d.HandleCommand("version"))
}
