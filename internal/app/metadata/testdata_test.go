package metadata

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// id3v2Frame builds an ID3v2.3 text frame with ISO-8859-1 encoding.
func id3v2Frame(id, text string) []byte {
	body := append([]byte{0x00}, []byte(text)...)
	var buf bytes.Buffer
	buf.WriteString(id)
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(body)))
	buf.Write([]byte{0x00, 0x00})
	buf.Write(body)
	return buf.Bytes()
}

// id3v2Tag builds a complete ID3v2.3 tag from frames, followed by padding.
func id3v2Tag(frames ...[]byte) []byte {
	var body bytes.Buffer
	for _, f := range frames {
		body.Write(f)
	}
	body.Write(make([]byte, 256))

	size := body.Len()
	header := []byte{
		'I', 'D', '3', 0x03, 0x00, 0x00,
		byte(size>>21) & 0x7f,
		byte(size>>14) & 0x7f,
		byte(size>>7) & 0x7f,
		byte(size) & 0x7f,
	}
	return append(header, body.Bytes()...)
}

// id3v1Tag builds the 128-byte legacy block.
func id3v1Tag(title, artist string) []byte {
	b := make([]byte, 128)
	copy(b[0:3], "TAG")
	copy(b[3:33], title)
	copy(b[33:63], artist)
	b[127] = 0xff
	return b
}

// fakeAudio stands in for MPEG frames; the resolver never decodes audio.
func fakeAudio() []byte {
	return bytes.Repeat([]byte{0xff, 0xfb, 0x90, 0x64}, 256)
}

func writeFile(t *testing.T, dir, name string, parts ...[]byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, bytes.Join(parts, nil), 0o644))
	return path
}
