// Package menu formats gopher protocol menu lines and canned error bodies.
// It is shared by internal/worker (canned error responses) and
// cmd/gopherlist (directory listings).
package menu

import (
	"fmt"
	"io"
	"path"
	"strings"
)

// TypeCode is a single gopher item-type byte.
type TypeCode byte

const (
	TypeText        TypeCode = '0'
	TypeSubmenu     TypeCode = '1'
	TypeSearch      TypeCode = '7'
	TypeBinary      TypeCode = '9'
	TypeHTML        TypeCode = 'h'
	TypeGIF         TypeCode = 'g'
	TypeImage       TypeCode = 'I'
	TypeSound       TypeCode = 's'
	TypeInfo        TypeCode = 'i'
	TypeError       TypeCode = '3'
)

// EndOfMenu terminates every gopher menu response.
const EndOfMenu = ".\r\n"

var extensionTable = map[string]TypeCode{
	".txt":  TypeText,
	".c":    TypeText,
	".cpp":  TypeText,
	".h":    TypeText,
	".gif":  TypeGIF,
	".jpg":  TypeImage,
	".jpeg": TypeImage,
	".png":  TypeImage,
	".bmp":  TypeImage,
	".pcx":  TypeImage,
	".tif":  TypeImage,
	".tiff": TypeImage,
	".mp3":  TypeSound,
	".ogg":  TypeSound,
	".wav":  TypeSound,
	".htm":  TypeHTML,
	".html": TypeHTML,
}

// ClassifyExtension maps a filename's suffix to a gopher type code for
// regular, non-executable files. Unrecognized extensions are binary.
func ClassifyExtension(name string) TypeCode {
	ext := strings.ToLower(path.Ext(name))
	if t, ok := extensionTable[ext]; ok {
		return t
	}
	return TypeBinary
}

// FormatLine writes one gopher menu line:
// <type><display>\t<selector>\t<host>\t<port>\r\n
func FormatLine(w io.Writer, t TypeCode, display, selector, host string, port int) error {
	_, err := fmt.Fprintf(w, "%c%s\t%s\t%s\t%d\r\n", byte(t), display, selector, host, port)
	return err
}

// FormatInfoLine writes an informational (type 'i') line, which carries no
// navigable selector.
func FormatInfoLine(w io.Writer, text, host string, port int) error {
	return FormatLine(w, TypeInfo, text, "", host, port)
}

// ErrorMenuBody renders a one-line error menu body:
// "3<reason>\r\n.\r\n"
func ErrorMenuBody(reason string) []byte {
	return []byte(fmt.Sprintf("%c%s\r\n%s", byte(TypeError), reason, EndOfMenu))
}
