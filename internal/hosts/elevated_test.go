package hosts

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHelper emulates the pkexec copy-then-move invocation in-process.
func fakeHelper(t *testing.T, calls *int) runFunc {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		*calls++
		require.Equal(t, "pkexec", name)
		require.Len(t, args, 7)
		staged, tmp, target := args[4], args[5], args[6]

		data, err := os.ReadFile(staged)
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(tmp, data, 0644); err != nil {
			return nil, err
		}
		return nil, os.Rename(tmp, target)
	}
}

func newTestElevated(t *testing.T) (*ElevatedWriter, string) {
	t.Helper()
	stage := t.TempDir()
	w := NewElevatedWriter("linux")
	w.stageDir = stage
	w.lookPath = func(string) (string, error) { return "/usr/bin/pkexec", nil }
	return w, stage
}

func TestElevatedWriter_SinglePromptAndCleanup(t *testing.T) {
	w, stage := newTestElevated(t)
	calls := 0
	w.run = fakeHelper(t, &calls)

	path := newTestHosts(t, "old\n")
	require.NoError(t, w.WriteFile(context.Background(), path, []byte("new\n")))

	assert.Equal(t, 1, calls)
	assert.Equal(t, "new\n", readFile(t, path))

	entries, err := os.ReadDir(stage)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged file left behind")
}

func TestElevatedWriter_Denied(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	w, stage := newTestElevated(t)
	w.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, "/bin/sh", "-c", "echo 'Request dismissed'; exit 126").CombinedOutput()
		return out, err
	}

	path := newTestHosts(t, "old\n")
	err := w.WriteFile(context.Background(), path, []byte("new\n"))

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "old\n", readFile(t, path))

	entries, _ := os.ReadDir(stage)
	assert.Empty(t, entries)
}

func TestElevatedWriter_NoHelper(t *testing.T) {
	w, _ := newTestElevated(t)
	w.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	called := false
	w.run = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		called = true
		return nil, nil
	}

	err := w.WriteFile(context.Background(), filepath.Join(t.TempDir(), "hosts"), []byte("x"))
	assert.ErrorIs(t, err, ErrNoHelper)
	assert.False(t, called)
}

func TestHelperCommand(t *testing.T) {
	name, args, err := helperCommand("darwin", "/tmp/stage it.txt", "/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "osascript", name)
	require.Len(t, args, 2)
	assert.Contains(t, args[1], "with administrator privileges")
	assert.Contains(t, args[1], `'/tmp/stage it.txt'`)
	assert.Contains(t, args[1], "/bin/mv -f '/etc/hosts.pomoblock.tmp' '/etc/hosts'")
	assert.Contains(t, args[1], "|| { /bin/rm -f '/etc/hosts.pomoblock.tmp'; exit 1; }")

	name, args, err = helperCommand("windows", `C:\Temp\s.txt`, `C:\Windows\System32\drivers\etc\hosts`)
	require.NoError(t, err)
	assert.Equal(t, "powershell.exe", name)
	script := args[len(args)-1]
	assert.Contains(t, script, "-Verb RunAs")
	assert.True(t, strings.Contains(script, `copy /Y "C:\Temp\s.txt"`))
	assert.Contains(t, script, "move /Y")
	assert.Contains(t, script, `|| (del /F /Q "C:\Windows\System32\drivers\etc\hosts.pomoblock.tmp" & exit 1)`)

	name, args, err = helperCommand("linux", "/tmp/s.txt", "/etc/hosts")
	require.NoError(t, err)
	assert.Equal(t, "pkexec", name)
	assert.Equal(t, []string{"/bin/sh", "-c", helperScript, "pomoblock", "/tmp/s.txt", "/etc/hosts.pomoblock.tmp", "/etc/hosts"}, args)

	_, _, err = helperCommand("plan9", "a", "b")
	assert.ErrorIs(t, err, ErrUnsupportedPlatform)
}

func TestElevationError(t *testing.T) {
	err := elevationError(errors.New("exit status 1"), []byte("execution error: User canceled. (-128)"))
	assert.ErrorIs(t, err, ErrPermissionDenied)

	err = elevationError(errors.New("exit status 1"), []byte("disk full"))
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "disk full")
}

// shellHelper runs the pkexec argument vector directly, without elevation.
func shellHelper(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, args[0], args[1:]...).CombinedOutput()
}

func TestElevatedWriter_ShellScriptWritesTarget(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	w, _ := newTestElevated(t)
	w.run = shellHelper

	path := newTestHosts(t, "old\n")
	require.NoError(t, w.WriteFile(context.Background(), path, []byte("new\n")))
	assert.Equal(t, "new\n", readFile(t, path))
	assert.NoFileExists(t, path+stageSuffix)
}

func TestElevatedWriter_FailedMoveRemovesCopy(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs /bin/sh")
	}
	w, _ := newTestElevated(t)
	w.run = shellHelper

	// mv -f onto a directory moves into it, and a non-empty directory of the
	// same name inside refuses the move.
	target := filepath.Join(t.TempDir(), "hosts")
	blocker := filepath.Join(target, "hosts"+stageSuffix)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "keep"), 0755))

	err := w.WriteFile(context.Background(), target, []byte("new\n"))

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.NoFileExists(t, target+stageSuffix)
	assert.DirExists(t, blocker)
}
