package hosts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntrySet(t *testing.T) {
	set, err := NewEntrySet([]string{
		"Example.com",
		"www.example.com",
		"  ",
		"https://News.ycombinator.com/item?id=1",
		"reddit.com.",
		"bücher.de",
	})
	require.NoError(t, err)
	assert.Equal(t, EntrySet{"example.com", "news.ycombinator.com", "reddit.com", "xn--bcher-kva.de"}, set)
}

func TestNewEntrySet_Invalid(t *testing.T) {
	for _, raw := range []string{"localhost", "exa mple.com", "example.com:8080", "bad..com", "http://"} {
		t.Run(raw, func(t *testing.T) {
			_, err := NewEntrySet([]string{raw})
			assert.ErrorIs(t, err, ErrInvalidDomain)
		})
	}
}

func TestEntrySetLines(t *testing.T) {
	lines := EntrySet{"example.com"}.Lines()
	assert.Equal(t, []string{
		"127.0.0.1 example.com",
		"127.0.0.1 www.example.com",
		"::1 example.com",
		"::1 www.example.com",
	}, lines)
}

func TestRenderBlocked(t *testing.T) {
	got := RenderBlocked("127.0.0.1 localhost\n", EntrySet{"example.com"}, "\n")
	want := "127.0.0.1 localhost\n" +
		"\n" +
		MarkerStart + "\n" +
		"127.0.0.1 example.com\n" +
		"127.0.0.1 www.example.com\n" +
		"::1 example.com\n" +
		"::1 www.example.com\n" +
		MarkerEnd + "\n"
	assert.Equal(t, want, got)
	assert.Equal(t, 1, CountBlocks(got))
}

func TestRenderBlocked_NoTrailingNewline(t *testing.T) {
	got := RenderBlocked("127.0.0.1 localhost", EntrySet{"a.com"}, "\r\n")
	assert.True(t, strings.HasPrefix(got, "127.0.0.1 localhost\r\n\r\n"+MarkerStart+"\r\n"))
	assert.True(t, strings.HasSuffix(got, MarkerEnd+"\r\n"))
}

func TestStripRoundTrip(t *testing.T) {
	bases := []string{
		"",
		"127.0.0.1 localhost\n",
		"127.0.0.1 localhost\n\n# trailing comment\n",
		"127.0.0.1 localhost\r\n::1 localhost\r\n",
	}
	for _, base := range bases {
		for _, eol := range []string{"\n", "\r\n"} {
			blocked := RenderBlocked(base, EntrySet{"example.com", "youtube.com"}, eol)
			require.True(t, HasBlock(blocked))
			assert.Equal(t, base, Strip(blocked), "base %q eol %q", base, eol)
		}
	}
}

func TestStrip_UnterminatedBlock(t *testing.T) {
	content := "127.0.0.1 localhost\n\n" + MarkerStart + "\n127.0.0.1 example.com\n"
	assert.Equal(t, "127.0.0.1 localhost\n", Strip(content))
}

func TestStrip_MultipleBlocks(t *testing.T) {
	once := RenderBlocked("127.0.0.1 localhost\n", EntrySet{"a.com"}, "\n")
	twice := RenderBlocked(once, EntrySet{"b.com"}, "\n")
	require.Equal(t, 2, CountBlocks(twice))

	stripped := Strip(twice)
	assert.False(t, HasBlock(stripped))
	assert.NotContains(t, stripped, "a.com")
	assert.NotContains(t, stripped, "b.com")
}

func TestHasBlock_IgnoresMentions(t *testing.T) {
	assert.False(t, HasBlock("# see "+MarkerStart+" for details\n"))
	assert.True(t, HasBlock("x\r\n"+MarkerStart+"\r\n"+MarkerEnd+"\r\n"))
}

func TestBlockedDomains(t *testing.T) {
	content := RenderBlocked("127.0.0.1 localhost\n", EntrySet{"example.com", "reddit.com"}, "\n")
	assert.Equal(t, []string{"example.com", "reddit.com"}, BlockedDomains(content))
	assert.Empty(t, BlockedDomains("127.0.0.1 localhost\n"))
}
