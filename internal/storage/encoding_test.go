package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeShortTextStaysPlain(t *testing.T) {
	text := "short content"
	stored := EncodeContent(text)

	assert.Equal(t, text, stored)
	assert.Equal(t, EncodingPlain, DetectEncoding(stored))
}

func TestEncodeLongTextCompresses(t *testing.T) {
	text := strings.Repeat("compressible content line\n", 1000)
	stored := EncodeContent(text)

	assert.Equal(t, EncodingGzipBase64, DetectEncoding(stored))
	assert.Less(t, len(stored), len(text))

	decoded, err := DecodeContent(stored)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestEncodePrefixCollisionAlwaysCompressed(t *testing.T) {
	// Text that happens to start with the wire tag must not be stored
	// plain, or decoding would misread it.
	text := "GZ: looks like an encoded value but is not"
	stored := EncodeContent(text)

	assert.Equal(t, EncodingGzipBase64, DetectEncoding(stored))

	decoded, err := DecodeContent(stored)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestDecodePlainPassthrough(t *testing.T) {
	decoded, err := DecodeContent("plain stored value")
	require.NoError(t, err)
	assert.Equal(t, "plain stored value", decoded)
}

func TestDecodeCorruptBase64(t *testing.T) {
	_, err := DecodeContent("GZ:!!!not-base64!!!")
	assert.Error(t, err)
}

func TestDecodeCorruptGzip(t *testing.T) {
	// Valid base64, invalid gzip stream.
	_, err := DecodeContent("GZ:aGVsbG8=")
	assert.Error(t, err)
}

func TestEncodeEmptyText(t *testing.T) {
	stored := EncodeContent("")
	assert.Equal(t, "", stored)

	decoded, err := DecodeContent(stored)
	require.NoError(t, err)
	assert.Equal(t, "", decoded)
}

func TestEncodeRandomishTextRoundTrip(t *testing.T) {
	// Above the threshold but poorly compressible; round trip must still
	// hold whichever form wins.
	var b strings.Builder
	for i := 0; i < 5000; i++ {
		b.WriteByte(byte('a' + (i*7+i*i*13)%26))
	}
	text := b.String()

	decoded, err := DecodeContent(EncodeContent(text))
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}
