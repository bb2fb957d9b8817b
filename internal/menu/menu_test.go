package menu

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatLine(&buf, TypeText, "Hello", "/hello.txt", "localhost", 70))
	require.Equal(t, "0Hello\t/hello.txt\tlocalhost\t70\r\n", buf.String())
}

func TestFormatInfoLine(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatInfoLine(&buf, "Welcome", "localhost", 70))
	require.Equal(t, "iWelcome\t\tlocalhost\t70\r\n", buf.String())
}

func TestErrorMenuBody(t *testing.T) {
	require.Equal(t, "3404 Not Found\r\n.\r\n", string(ErrorMenuBody("404 Not Found")))
}

func TestClassifyExtension(t *testing.T) {
	cases := map[string]TypeCode{
		"readme.txt":  TypeText,
		"main.c":      TypeText,
		"photo.jpg":   TypeImage,
		"anim.gif":    TypeGIF,
		"song.mp3":    TypeSound,
		"index.html":  TypeHTML,
		"archive.zip": TypeBinary,
		"noext":       TypeBinary,
		"PHOTO.JPG":   TypeImage,
	}
	for name, want := range cases {
		require.Equal(t, want, ClassifyExtension(name), "classifying %s", name)
	}
}
