package hosts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// ErrPermissionDenied marks a write refused by the OS or by the user at an
// elevation prompt.
var ErrPermissionDenied = errors.New("permission denied")

// WriteError reports a failed hosts file write. The file is left as it was.
type WriteError struct {
	Op   string
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	// A PathError already names the file.
	var pe *fs.PathError
	if errors.As(e.Err, &pe) {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// PrivilegedWriter replaces the content of a system file. Implementations
// stage the content first so the target is never partially written.
type PrivilegedWriter interface {
	WriteFile(ctx context.Context, path string, data []byte) error
	Name() string
}

// NewWriter picks the writer for the current process: direct when the
// process may already write to path, otherwise the OS elevation helper.
func NewWriter(goos, path string) PrivilegedWriter {
	if IsElevated() || canWrite(path) {
		return &DirectWriter{}
	}
	return NewElevatedWriter(goos)
}

func canWrite(path string) bool {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// DirectWriter writes without elevation: stage next to the target, then rename.
// The zero value is ready to use.
type DirectWriter struct {
	// write and rename replace the file operations in tests.
	write  func(f *os.File, data []byte) error
	rename func(oldpath, newpath string) error
}

func (w *DirectWriter) Name() string { return "direct" }

// WriteFile stages data in a temp file in the target directory and renames
// it over path. Only when the rename itself is refused (a bind mounted
// /etc/hosts in a container gives EBUSY or EXDEV), or the directory does
// not accept a temp file at all, is the file rewritten in place. A failed
// in-place write puts the previous content back.
func (w *DirectWriter) WriteFile(ctx context.Context, path string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Op: "write", Path: path, Err: err}
	}

	mode := os.FileMode(0644)
	if fi, err := os.Stat(path); err == nil {
		mode = fi.Mode().Perm()
	}

	err := w.renameInto(path, data, mode)
	if err == nil {
		return nil
	}
	if !inPlaceAllowed(err) {
		return &WriteError{Op: "write", Path: path, Err: classify(err)}
	}
	log.Debugf("staged rename into %s refused, rewriting in place: %v", path, err)

	original, rerr := os.ReadFile(path)
	if rerr != nil && !os.IsNotExist(rerr) {
		return &WriteError{Op: "read", Path: path, Err: classify(rerr)}
	}

	if err := w.writeInPlace(path, data, mode); err != nil {
		rollback := func() error { return w.writeInPlace(path, original, mode) }
		if os.IsNotExist(rerr) {
			rollback = func() error { return os.Remove(path) }
		}
		if rbErr := rollback(); rbErr != nil {
			log.Errorf("failed to put back %s after a failed write: %v", path, rbErr)
		}
		return &WriteError{Op: "write", Path: path, Err: classify(err)}
	}
	return nil
}

// stageError marks a failure to create the temp file, before any data was
// written.
type stageError struct{ err error }

func (e *stageError) Error() string { return "create temp: " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// renameError marks a failed final rename of a fully written temp file.
type renameError struct{ err error }

func (e *renameError) Error() string { return "rename: " + e.err.Error() }
func (e *renameError) Unwrap() error { return e.err }

func inPlaceAllowed(err error) bool {
	var se *stageError
	if errors.As(err, &se) {
		return errors.Is(err, fs.ErrPermission) || errors.Is(err, syscall.EROFS)
	}
	var re *renameError
	if errors.As(err, &re) {
		return errors.Is(err, syscall.EBUSY) || errors.Is(err, syscall.EXDEV)
	}
	return false
}

func (w *DirectWriter) renameInto(path string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pomoblock-*.tmp")
	if err != nil {
		return &stageError{err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := w.writeData(tmp, data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod temp: %w", err)
	}

	rename := w.rename
	if rename == nil {
		rename = os.Rename
	}
	if err := rename(tmpName, path); err != nil {
		return &renameError{err}
	}
	return nil
}

func (w *DirectWriter) writeInPlace(path string, data []byte, mode os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if err := w.writeData(f, data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (w *DirectWriter) writeData(f *os.File, data []byte) error {
	if w.write != nil {
		return w.write(f, data)
	}
	_, err := f.Write(data)
	return err
}

func classify(err error) error {
	if errors.Is(err, fs.ErrPermission) {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	return err
}
