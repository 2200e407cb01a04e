package storage

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// ContentEncoding identifies how a stored content value is encoded.
type ContentEncoding int

const (
	// EncodingPlain stores the text as-is.
	EncodingPlain ContentEncoding = iota
	// EncodingGzipBase64 stores the text gzip-compressed, base64-encoded,
	// behind the "GZ:" wire prefix.
	EncodingGzipBase64
)

const (
	// gzipPrefix tags gzip+base64 encoded values on the wire.
	gzipPrefix = "GZ:"

	// compressThreshold is the minimum text length worth compressing.
	compressThreshold = 4096
)

// DetectEncoding inspects a stored value's tag.
func DetectEncoding(stored string) ContentEncoding {
	if strings.HasPrefix(stored, gzipPrefix) {
		return EncodingGzipBase64
	}
	return EncodingPlain
}

// EncodeContent encodes text for storage. Short text is stored plain;
// longer text is gzip-compressed and tagged. Text that happens to start
// with the tag itself is always compressed so decoding stays unambiguous.
func EncodeContent(text string) string {
	if len(text) < compressThreshold && !strings.HasPrefix(text, gzipPrefix) {
		return text
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(text)); err != nil {
		_ = zw.Close()
		return text
	}
	if err := zw.Close(); err != nil {
		return text
	}

	encoded := gzipPrefix + base64.StdEncoding.EncodeToString(buf.Bytes())
	if len(encoded) >= len(text) {
		// Compression did not pay off; only legal when the plain form
		// cannot be mistaken for an encoded one.
		if !strings.HasPrefix(text, gzipPrefix) {
			return text
		}
	}
	return encoded
}

// DecodeContent decodes a stored value back to plain text, checking the
// encoding tag before treating the value as plain.
func DecodeContent(stored string) (string, error) {
	if DetectEncoding(stored) == EncodingPlain {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, gzipPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid base64 content: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("invalid gzip content: %w", err)
	}
	defer func() { _ = zr.Close() }()

	text, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("failed to decompress content: %w", err)
	}
	return string(text), nil
}
