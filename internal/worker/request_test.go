package worker

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRequestNoCRLF(t *testing.T) {
	_, _, ok := parseRequest([]byte("/hello.txt"))
	require.False(t, ok)
}

func TestParseRequestSelectorOnly(t *testing.T) {
	sel, q, ok := parseRequest([]byte("/hello.txt\r\n"))
	require.True(t, ok)
	require.Equal(t, "/hello.txt", sel)
	require.Empty(t, q)
}

func TestParseRequestEmptySelector(t *testing.T) {
	sel, q, ok := parseRequest([]byte("\r\n"))
	require.True(t, ok)
	require.Empty(t, sel)
	require.Empty(t, q)
}

func TestParseRequestWithQuery(t *testing.T) {
	sel, q, ok := parseRequest([]byte("/cgi/run\tfoo\r\n"))
	require.True(t, ok)
	require.Equal(t, "/cgi/run", sel)
	require.Equal(t, "foo", q)
}

func TestParseRequestQueryMayContainTab(t *testing.T) {
	sel, q, ok := parseRequest([]byte("/search\ta\tb\r\n"))
	require.True(t, ok)
	require.Equal(t, "/search", sel)
	require.Equal(t, "a\tb", q)
}

func TestSelectorIsSafe(t *testing.T) {
	require.True(t, selectorIsSafe(""))
	require.True(t, selectorIsSafe("/hello.txt"))
	require.True(t, selectorIsSafe("/cgi/run"))
	require.False(t, selectorIsSafe("/../etc/passwd"))
	require.False(t, selectorIsSafe("/.hidden"))
	require.False(t, selectorIsSafe("/a/.b/c"))
}

func TestNormalizeSelector(t *testing.T) {
	require.Equal(t, ".", normalizeSelector(""))
	require.Equal(t, "./hello.txt", normalizeSelector("/hello.txt"))
	require.Equal(t, "./cgi/run", normalizeSelector("/cgi/run"))
	require.Equal(t, "./cgi/run", normalizeSelector("cgi/run"))
}
