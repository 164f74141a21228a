package hosts

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	log "github.com/sirupsen/logrus"
)

// defaultLines is the neutral hosts file written by ForceClean.
var defaultLines = []string{
	"# Static table lookup for hostnames.",
	"# Restored to defaults by pomoblock.",
	"",
	"127.0.0.1 localhost",
	"::1 localhost",
}

// DefaultContent returns the neutral hosts file with the given line ending.
func DefaultContent(eol string) string {
	return strings.Join(defaultLines, eol) + eol
}

// DefaultLineEnding returns the line ending native to the running OS.
func DefaultLineEnding() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Mutator computes new hosts content and writes it through a PrivilegedWriter.
// It holds no state about what is blocked; callers serialize access.
type Mutator struct {
	path   string
	writer PrivilegedWriter
	eol    string
}

// NewMutator returns a Mutator for the hosts file at path.
func NewMutator(path string, w PrivilegedWriter) *Mutator {
	return &Mutator{
		path:   path,
		writer: w,
		eol:    DefaultLineEnding(),
	}
}

// WithLineEnding overrides the line ending used for generated lines.
func (m *Mutator) WithLineEnding(eol string) *Mutator {
	m.eol = eol
	return m
}

// Path returns the hosts file path.
func (m *Mutator) Path() string { return m.path }

// Writer returns the writer selected for this Mutator.
func (m *Mutator) Writer() PrivilegedWriter { return m.writer }

// LineEnding returns the line ending used for generated lines.
func (m *Mutator) LineEnding() string { return m.eol }

// Read returns the live hosts content. A missing file reads as empty.
func (m *Mutator) Read() (string, error) {
	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read hosts file: %w", err)
	}
	return string(data), nil
}

// Install writes base followed by the marker block for set. base must be the
// backed-up content; any marker block it still carries is stripped first so
// the file never holds two blocks.
func (m *Mutator) Install(ctx context.Context, base string, set EntrySet) error {
	if len(set) == 0 {
		return fmt.Errorf("install: %w: no domains", ErrInvalidDomain)
	}
	if HasBlock(base) {
		base = Strip(base)
	}

	content := RenderBlocked(base, set, m.eol)
	if err := m.writer.WriteFile(ctx, m.path, []byte(content)); err != nil {
		return err
	}

	log.Infof("installed block for %d domains in %s", len(set), m.path)
	return nil
}

// Restore writes content back verbatim. The write is unconditional so a
// failed restore can simply be retried.
func (m *Mutator) Restore(ctx context.Context, content string) error {
	if err := m.writer.WriteFile(ctx, m.path, []byte(content)); err != nil {
		return err
	}
	log.Infof("restored %s (%d bytes)", m.path, len(content))
	return nil
}

// ForceClean overwrites the hosts file with DefaultContent, ignoring any backup.
func (m *Mutator) ForceClean(ctx context.Context) error {
	if err := m.writer.WriteFile(ctx, m.path, []byte(DefaultContent(m.eol))); err != nil {
		return err
	}
	log.Warnf("hosts file %s reset to defaults", m.path)
	return nil
}

// Access describes whether the process can change the hosts file.
type Access struct {
	Writer     string
	NeedsAdmin bool
	CanWrite   bool
	Reason     string
}

// CheckAccess checks write capability without modifying anything.
func (m *Mutator) CheckAccess() Access {
	a := Access{Writer: m.writer.Name()}

	switch w := m.writer.(type) {
	case *DirectWriter:
		a.CanWrite = true
	case *ElevatedWriter:
		a.NeedsAdmin = true
		a.CanWrite = w.Available()
		if !a.CanWrite {
			a.Reason = fmt.Sprintf("%s not found; run pomoblock as administrator", helperName(w.goos))
		}
	default:
		a.CanWrite = true
	}

	return a
}
