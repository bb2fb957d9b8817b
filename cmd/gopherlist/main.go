// Command gopherlist is a CGI-style executable: dropped into a directory it
// generates a gopher menu of that directory's contents. A worker invokes it
// like any other executable selector, with its stdout connected to the
// client socket and SCRIPT_NAME/SERVER_NAME/SERVER_PORT describing the
// request (spec §4.6).
package main

import (
	"os"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/gophernest/sgopherd/internal/constants"
	"github.com/gophernest/sgopherd/internal/menu"
	"github.com/gophernest/sgopherd/internal/writebuf"
)

func main() {
	selector := os.Getenv("SCRIPT_NAME")
	hostname := os.Getenv("SERVER_NAME")
	portStr := os.Getenv("SERVER_PORT")
	query := os.Getenv("QUERY_STRING")
	if selector == "" || hostname == "" || portStr == "" {
		return
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return
	}

	dirSelector := normalizeDirSelector(selector)

	entries, err := os.ReadDir(".")
	if err != nil {
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	out := writebuf.New(int(os.Stdout.Fd()), constants.ListFlushTimeoutMs, make([]byte, constants.ListBufferSize))
	defer out.Flush()

	_ = menu.FormatInfoLine(out, "Directory listing of "+hostname+dirSelector, hostname, port)

	if query != "" {
		_ = menu.FormatInfoLine(out, "Query: "+query, hostname, port)
	}

	if parent, ok := parentSelector(dirSelector); ok {
		_ = menu.FormatLine(out, menu.TypeSubmenu, "..", parent, hostname, port)
	}

	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		mode := info.Mode()

		if mode.Perm()&0004 == 0 {
			continue
		}

		var t menu.TypeCode
		switch {
		case mode.IsDir() && mode.Perm()&0001 != 0:
			t = menu.TypeSubmenu
		case mode.IsDir():
			continue
		case mode.IsRegular() && mode.Perm()&0001 != 0:
			t = menu.TypeSearch
		case mode.IsRegular():
			t = menu.ClassifyExtension(name)
		default:
			continue
		}

		_ = menu.FormatLine(out, t, name, dirSelector+name, hostname, port)
	}

	_, _ = out.Write([]byte(menu.EndOfMenu))
}

// normalizeDirSelector collapses repeated slashes and guarantees a leading
// and trailing slash, matching the original gopherlist's cosmetic
// normalization of SCRIPT_NAME.
func normalizeDirSelector(selector string) string {
	clean := path.Clean("/" + selector)
	if clean == "/" {
		return "/"
	}
	return clean + "/"
}

// parentSelector derives the selector for ".." from dir's second-to-last
// slash, per spec. The root directory has no parent.
func parentSelector(dir string) (string, bool) {
	if dir == "/" {
		return "", false
	}
	trimmed := strings.TrimSuffix(dir, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx <= 0 {
		return "/", true
	}
	return trimmed[:idx] + "/", true
}
