// Package codecx provides the pure text/byte transforms used by the
// decryption pipeline: base64 in both padded and unpadded form, and the
// post-decryption decompression step named by an envelope's compression tag.
package codecx

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Compression tags carried on encrypted envelopes. CompressionDeflate is a
// deprecated alias kept for old data; new envelopes are only ever written
// with CompressionGzip.
const (
	CompressionGzip    = "gz"
	CompressionDeflate = "deflate"
)

var ErrUnsupportedCompression = errors.New("unsupported compression type")

// EncodeBase64 encodes b in the canonical (padded) base64 form.
func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBase64 decodes both padded and unpadded base64 text. The variant is
// detected by the trailing '=' so data written by either producer generation
// decodes to the same bytes.
func DecodeBase64(s string) ([]byte, error) {
	if strings.HasSuffix(s, "=") {
		return base64.StdEncoding.DecodeString(s)
	}
	return base64.RawStdEncoding.DecodeString(s)
}

// Decompress applies the decompression algorithm named by tag to b.
// An empty tag means no compression and returns b unchanged. Both "gz" and
// "deflate" map to the same gzip inflate routine: the deflate tag was
// abandoned for cross-implementation incompatibility and survives only as an
// alias on read.
func Decompress(tag string, b []byte) ([]byte, error) {
	switch tag {
	case "":
		return b, nil
	case CompressionGzip, CompressionDeflate:
		r, err := gzip.NewReader(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("inflating payload: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("inflating payload: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCompression, tag)
	}
}

// Compress gzip-compresses b. Used by the encryption side for payloads above
// the compression threshold.
func Compress(b []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(b); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
