package hosts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ErrNoHelper is returned when the OS elevation helper is not installed.
var ErrNoHelper = errors.New("elevation helper not available")

const stageSuffix = ".pomoblock.tmp"

// helperScript is run by pkexec as: sh -c helperScript pomoblock staged tmp target.
const helperScript = `cp -- "$1" "$2" && mv -f -- "$2" "$3" || { rm -f -- "$2"; exit 1; }`

// runFunc runs a command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// ElevatedWriter stages content in the temp directory and asks the OS
// elevation helper (pkexec, osascript, UAC) to copy it next to the target and
// move it into place. Both steps run in one helper call so the user sees a
// single prompt per write.
type ElevatedWriter struct {
	goos     string
	stageDir string
	run      runFunc
	lookPath func(string) (string, error)
}

// NewElevatedWriter returns an ElevatedWriter for goos.
func NewElevatedWriter(goos string) *ElevatedWriter {
	return &ElevatedWriter{
		goos:     goos,
		stageDir: os.TempDir(),
		run:      execRun,
		lookPath: exec.LookPath,
	}
}

func (w *ElevatedWriter) Name() string { return "elevated:" + helperName(w.goos) }

// Available reports whether the helper binary can be found.
func (w *ElevatedWriter) Available() bool {
	name := helperName(w.goos)
	if name == "" {
		return false
	}
	_, err := w.lookPath(name)
	return err == nil
}

// WriteFile blocks until the helper exits. Cancelling ctx kills the helper,
// which on most systems also dismisses the prompt.
func (w *ElevatedWriter) WriteFile(ctx context.Context, path string, data []byte) error {
	if !w.Available() {
		return &WriteError{Op: "elevate", Path: path, Err: fmt.Errorf("%w: %s", ErrNoHelper, helperName(w.goos))}
	}

	staged, err := os.CreateTemp(w.stageDir, "pomoblock-hosts-*.txt")
	if err != nil {
		return &WriteError{Op: "stage", Path: path, Err: err}
	}
	stagedName := staged.Name()
	defer os.Remove(stagedName)

	if _, err := staged.Write(data); err != nil {
		staged.Close()
		return &WriteError{Op: "stage", Path: path, Err: err}
	}
	if err := staged.Close(); err != nil {
		return &WriteError{Op: "stage", Path: path, Err: err}
	}

	name, args, err := helperCommand(w.goos, stagedName, path)
	if err != nil {
		return &WriteError{Op: "elevate", Path: path, Err: err}
	}

	log.Debugf("requesting elevation via %s to write %s", name, path)
	out, err := w.run(ctx, name, args...)
	if err != nil {
		return &WriteError{Op: "elevate", Path: path, Err: elevationError(err, out)}
	}
	return nil
}

func helperName(goos string) string {
	switch goos {
	case "windows":
		return "powershell.exe"
	case "darwin":
		return "osascript"
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return "pkexec"
	default:
		return ""
	}
}

// helperCommand builds the single elevated "copy then move" invocation. A
// failed step removes the copy next to the target and exits non-zero.
func helperCommand(goos, staged, target string) (string, []string, error) {
	tmpTarget := target + stageSuffix

	switch goos {
	case "windows":
		cmdLine := fmt.Sprintf(`/c copy /Y "%s" "%s" && move /Y "%s" "%s" || (del /F /Q "%s" & exit 1)`,
			staged, tmpTarget, tmpTarget, target, tmpTarget)
		script := fmt.Sprintf(
			"$p = Start-Process -FilePath 'cmd.exe' -ArgumentList '%s' -Verb RunAs -Wait -PassThru -WindowStyle Hidden; exit $p.ExitCode",
			strings.ReplaceAll(cmdLine, "'", "''"))
		return "powershell.exe", []string{"-NoProfile", "-NonInteractive", "-Command", script}, nil
	case "darwin":
		sh := fmt.Sprintf("/bin/cp %s %s && /bin/mv -f %s %s || { /bin/rm -f %s; exit 1; }",
			shellQuote(staged), shellQuote(tmpTarget), shellQuote(tmpTarget), shellQuote(target), shellQuote(tmpTarget))
		script := fmt.Sprintf(`do shell script "%s" with administrator privileges`, appleScriptEscape(sh))
		return "osascript", []string{"-e", script}, nil
	case "linux", "freebsd", "openbsd", "netbsd", "dragonfly":
		return "pkexec", []string{
			"/bin/sh", "-c", helperScript,
			"pomoblock", staged, tmpTarget, target,
		}, nil
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, goos)
	}
}

// elevationError maps helper failures to ErrPermissionDenied when the user
// dismissed or was refused the prompt.
func elevationError(err error, out []byte) error {
	msg := strings.TrimSpace(string(out))

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		// pkexec: 126 dialog dismissed, 127 not authorized.
		if code == 126 || code == 127 {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, firstNonEmpty(msg, err.Error()))
		}
	}

	lower := strings.ToLower(msg)
	for _, s := range []string{"user canceled", "canceled by the user", "cancelled by the user", "not authorized"} {
		if strings.Contains(lower, s) {
			return fmt.Errorf("%w: %s", ErrPermissionDenied, msg)
		}
	}

	if msg != "" {
		return fmt.Errorf("%w (output: %s)", err, msg)
	}
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func appleScriptEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
