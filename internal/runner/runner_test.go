package runner

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCheckedExitZero(t *testing.T) {
	require.NoError(t, RunChecked(context.Background(), []string{"true"}, "", nil))
}

func TestRunCheckedExitZeroWithSink(t *testing.T) {
	var lines []string
	sink := func(line []byte) { lines = append(lines, string(line)) }

	err := RunChecked(context.Background(), []string{"sh", "-c", "echo out; echo err 1>&2"}, "", sink)
	require.NoError(t, err)

	require.NotEmpty(t, lines)
	assert.Equal(t, "$ sh -c echo out; echo err 1>&2", lines[0])
	assert.Contains(t, lines, "out")
	assert.Contains(t, lines, "err")
}

func TestRunCheckedNonZeroExit(t *testing.T) {
	err := RunChecked(context.Background(), []string{"sh", "-c", "exit 3"}, "", nil)
	require.Error(t, err)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 3, cmdErr.ExitCode)
	assert.Equal(t, "sh -c exit 3", cmdErr.Command)
}

func TestRunCheckedNonZeroExitWithSink(t *testing.T) {
	sink := func(line []byte) {}
	err := RunChecked(context.Background(), []string{"sh", "-c", "echo doomed; exit 7"}, "", sink)

	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr))
	assert.Equal(t, 7, cmdErr.ExitCode)
}

func TestRunCheckedWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	resolved, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)

	var lines []string
	sink := func(line []byte) { lines = append(lines, string(line)) }

	require.NoError(t, RunChecked(context.Background(), []string{"pwd", "-P"}, dir, sink))
	assert.Contains(t, lines, resolved)
}

func TestRunCheckedFlushesUnterminatedOutput(t *testing.T) {
	var lines []string
	sink := func(line []byte) { lines = append(lines, string(line)) }

	require.NoError(t, RunChecked(context.Background(), []string{"printf", "no newline"}, "", sink))
	assert.Contains(t, lines, "no newline")
}

func TestRunCheckedEmptyArgv(t *testing.T) {
	assert.Error(t, RunChecked(context.Background(), nil, "", nil))
}
