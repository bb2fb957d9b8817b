package worker

import (
	"bytes"
	"strings"
)

// parseRequest looks for the first CRLF in buf. If found, it returns the
// selector and query (empty if no TAB precedes the CRLF) and ok=true. If no
// CRLF is present, ok is false and the caller must wait for more data (or
// reject for being full).
func parseRequest(buf []byte) (selector, query string, ok bool) {
	idx := bytes.Index(buf, []byte("\r\n"))
	if idx < 0 {
		return "", "", false
	}
	line := buf[:idx]
	if tab := bytes.IndexByte(line, '\t'); tab >= 0 {
		return string(line[:tab]), string(line[tab+1:]), true
	}
	return string(line), "", true
}

// selectorIsSafe rejects any path segment beginning with '.', blocking both
// hidden files and ".." traversal in one check (spec §4.4.3/§4.4.11).
func selectorIsSafe(selector string) bool {
	for _, seg := range strings.Split(selector, "/") {
		if seg == "" {
			continue
		}
		if seg[0] == '.' {
			return false
		}
	}
	return true
}

// normalizeSelector builds a root-relative filename from a validated
// selector: "." for the empty selector, otherwise "./seg1/seg2/...".
func normalizeSelector(selector string) string {
	var b strings.Builder
	b.WriteByte('.')
	for _, seg := range strings.Split(selector, "/") {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}
	return b.String()
}
