package hosts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/miekg/dns"
	"golang.org/x/net/idna"
)

// Marker lines delimit the region of the hosts file owned by pomoblock.
// Older releases used the same strings, so they must never change.
const (
	MarkerStart = "# Pomodoro Timer - Blocked Sites START"
	MarkerEnd   = "# Pomodoro Timer - Blocked Sites END"
)

// ErrInvalidDomain is returned for entries that are not valid host names.
var ErrInvalidDomain = errors.New("invalid domain")

// EntrySet is an ordered, deduplicated list of normalized domains.
type EntrySet []string

// NewEntrySet normalizes and deduplicates raw domains, keeping first-seen order.
// Blank entries are skipped; anything else that fails validation is an error.
func NewEntrySet(raw []string) (EntrySet, error) {
	seen := make(map[string]struct{}, len(raw))
	set := make(EntrySet, 0, len(raw))

	for _, r := range raw {
		if strings.TrimSpace(r) == "" {
			continue
		}
		d, err := NormalizeDomain(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		set = append(set, d)
	}

	return set, nil
}

// NormalizeDomain converts user input such as "WWW.Example.com." or
// "https://bücher.de/path" to the bare ASCII host name used in hosts entries.
func NormalizeDomain(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	host = strings.TrimPrefix(host, "www.")

	if host == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, raw, err)
	}

	// Hosts entries need at least one dot and no port or whitespace.
	if !strings.Contains(ascii, ".") || strings.ContainsAny(ascii, ": \t") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}
	if _, ok := dns.IsDomainName(ascii); !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, raw)
	}

	return ascii, nil
}

// Lines expands the set into hosts entries. The order per domain is fixed:
// IPv4 bare, IPv4 www, IPv6 bare, IPv6 www.
func (s EntrySet) Lines() []string {
	lines := make([]string, 0, len(s)*4)
	for _, d := range s {
		lines = append(lines,
			"127.0.0.1 "+d,
			"127.0.0.1 www."+d,
			"::1 "+d,
			"::1 www."+d,
		)
	}
	return lines
}

// RenderBlocked returns base followed by a blank separator line and the
// marker block for set. base is expected to be free of marker blocks.
func RenderBlocked(base string, set EntrySet, eol string) string {
	var sb strings.Builder
	sb.WriteString(base)
	if base != "" && !strings.HasSuffix(base, "\n") {
		sb.WriteString(eol)
	}
	sb.WriteString(eol)
	sb.WriteString(MarkerStart)
	sb.WriteString(eol)
	for _, line := range set.Lines() {
		sb.WriteString(line)
		sb.WriteString(eol)
	}
	sb.WriteString(MarkerEnd)
	sb.WriteString(eol)
	return sb.String()
}

// HasBlock reports whether content contains a marker start line.
func HasBlock(content string) bool {
	for _, line := range strings.SplitAfter(content, "\n") {
		if isMarker(line, MarkerStart) {
			return true
		}
	}
	return false
}

// CountBlocks returns the number of marker start lines in content.
func CountBlocks(content string) int {
	n := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		if isMarker(line, MarkerStart) {
			n++
		}
	}
	return n
}

// BlockedDomains returns the bare domains listed inside marker blocks.
func BlockedDomains(content string) []string {
	var domains []string
	seen := make(map[string]struct{})
	inBlock := false

	for _, line := range strings.SplitAfter(content, "\n") {
		switch {
		case isMarker(line, MarkerStart):
			inBlock = true
			continue
		case isMarker(line, MarkerEnd):
			inBlock = false
			continue
		}
		if !inBlock {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		d := strings.TrimPrefix(fields[1], "www.")
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		domains = append(domains, d)
	}

	return domains
}

// Strip removes every marker block from content, together with the blank
// separator line that RenderBlocked puts in front of it. A start marker with
// no matching end swallows the rest of the file.
func Strip(content string) string {
	lines := strings.SplitAfter(content, "\n")
	out := make([]string, 0, len(lines))
	inBlock := false

	for _, line := range lines {
		if inBlock {
			if isMarker(line, MarkerEnd) {
				inBlock = false
			}
			continue
		}
		if isMarker(line, MarkerStart) {
			inBlock = true
			if n := len(out); n > 0 && strings.TrimSpace(out[n-1]) == "" {
				out = out[:n-1]
			}
			continue
		}
		out = append(out, line)
	}

	return strings.Join(out, "")
}

func isMarker(line, marker string) bool {
	return strings.TrimRight(line, "\r\n") == marker
}
