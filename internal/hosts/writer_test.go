package hosts

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDiskFull = errors.New("no space left on device")

// halfWrite writes the first half of data and then fails.
func halfWrite(f *os.File, data []byte) error {
	if _, err := f.Write(data[:len(data)/2]); err != nil {
		return err
	}
	return errDiskFull
}

func plainWrite(f *os.File, data []byte) error {
	_, err := f.Write(data)
	return err
}

func refuseRename(errno syscall.Errno) func(string, string) error {
	return func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}
	}
}

func assertOnlyHosts(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Equal(t, []string{"hosts"}, names, "temp file left behind")
}

func TestDirectWriter_StagedWriteFailureLeavesTarget(t *testing.T) {
	path := newTestHosts(t, "127.0.0.1 localhost\n")
	renamed := false
	w := &DirectWriter{
		write: halfWrite,
		rename: func(oldpath, newpath string) error {
			renamed = true
			return os.Rename(oldpath, newpath)
		},
	}

	err := w.WriteFile(context.Background(), path, []byte("0.0.0.0 example.com\n"))

	var werr *WriteError
	require.True(t, errors.As(err, &werr))
	assert.ErrorIs(t, err, errDiskFull)
	assert.False(t, renamed)
	assert.Equal(t, "127.0.0.1 localhost\n", readFile(t, path))
	assertOnlyHosts(t, filepath.Dir(path))
}

func TestDirectWriter_RenameBusyFallsBackInPlace(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.EBUSY, syscall.EXDEV} {
		t.Run(errno.Error(), func(t *testing.T) {
			path := newTestHosts(t, "old\n")
			w := &DirectWriter{rename: refuseRename(errno)}

			require.NoError(t, w.WriteFile(context.Background(), path, []byte("new\n")))
			assert.Equal(t, "new\n", readFile(t, path))
			assertOnlyHosts(t, filepath.Dir(path))
		})
	}
}

func TestDirectWriter_FailedInPlaceWriteRestoresOriginal(t *testing.T) {
	original := "127.0.0.1 localhost\n::1 localhost\n"
	path := newTestHosts(t, original)
	calls := 0
	w := &DirectWriter{
		rename: refuseRename(syscall.EBUSY),
		write: func(f *os.File, data []byte) error {
			calls++
			// 1: staged temp, 2: in-place write, 3: putting the original back.
			if calls == 2 {
				return halfWrite(f, data)
			}
			return plainWrite(f, data)
		},
	}

	err := w.WriteFile(context.Background(), path, []byte(strings.Repeat("0.0.0.0 example.com\n", 8)))

	require.Error(t, err)
	assert.ErrorIs(t, err, errDiskFull)
	assert.Equal(t, 3, calls)
	assert.Equal(t, original, readFile(t, path))
}

func TestDirectWriter_OtherRenameErrorDoesNotFallBack(t *testing.T) {
	path := newTestHosts(t, "old\n")
	wrote := 0
	w := &DirectWriter{
		rename: refuseRename(syscall.EIO),
		write: func(f *os.File, data []byte) error {
			wrote++
			return plainWrite(f, data)
		},
	}

	err := w.WriteFile(context.Background(), path, []byte("new\n"))

	assert.ErrorIs(t, err, syscall.EIO)
	assert.Equal(t, 1, wrote, "in-place write attempted")
	assert.Equal(t, "old\n", readFile(t, path))
	assertOnlyHosts(t, filepath.Dir(path))
}

func TestWriteError_MessageNamesPathOnce(t *testing.T) {
	path := "/etc/hosts"
	withPathErr := &WriteError{Op: "write", Path: path, Err: &fs.PathError{Op: "open", Path: path, Err: fs.ErrPermission}}
	assert.Equal(t, 1, strings.Count(withPathErr.Error(), path), withPathErr.Error())
	assert.True(t, strings.HasPrefix(withPathErr.Error(), "write: "))

	plain := &WriteError{Op: "write", Path: path, Err: errDiskFull}
	assert.Equal(t, "write /etc/hosts: no space left on device", plain.Error())
}
