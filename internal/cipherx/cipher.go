// Package cipherx implements the platform's authenticated symmetric cipher
// format "mgs4": chunked XChaCha20-Poly1305 with a 24-byte random header
// nonce. Large payloads are split into 64 KiB plaintext chunks so files can
// be decrypted as a stream; the final chunk is sealed with a distinct
// associated-data marker so a truncated ciphertext fails authentication.
//
// The format tag is carried on every encrypted envelope. Only mgs4 is
// supported in this version; unknown tags fail with ErrUnsupportedFormat.
package cipherx

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

const (
	// FormatMGS4 is the single supported cipher format tag.
	FormatMGS4 = "mgs4"

	// KeySize is the required secret key length in bytes.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the header nonce length in bytes.
	NonceSize = chacha20poly1305.NonceSizeX

	// chunkSize is the plaintext chunk length for the streamed cipher.
	chunkSize = 64 * 1024

	// chunkOverhead is the Poly1305 tag appended to every sealed chunk.
	chunkOverhead = chacha20poly1305.Overhead

	// CompressionThreshold is the payload size above which cleartext is
	// gzip-compressed before encryption.
	CompressionThreshold = 200
)

var (
	ErrUnsupportedFormat = errors.New("unsupported encryption format")
	ErrDecryptionFailed  = errors.New("decryption failed")
	ErrInvalidKeySize    = errors.New("invalid key size")
	ErrInvalidNonceSize  = errors.New("invalid nonce size")
)

// finalChunkAAD marks the last sealed chunk of a ciphertext. Opening the
// final chunk with the wrong marker fails the Poly1305 check, so dropping
// trailing chunks cannot go unnoticed.
var finalChunkAAD = []byte{0x01}

// Result holds the output of a single encryption.
type Result struct {
	Format      string
	Nonce       []byte
	Ciphertext  []byte
	Digest      []byte
	Compression string // "" or codecx.CompressionGzip
	Key         []byte // secret key the payload was sealed with
}

func chunkNonce(header []byte, counter uint64) []byte {
	n := make([]byte, NonceSize)
	copy(n, header)
	tail := binary.BigEndian.Uint64(n[NonceSize-8:])
	binary.BigEndian.PutUint64(n[NonceSize-8:], tail^counter)
	return n
}

// Encrypt seals cleartext with an existing secret key. Payloads larger than
// CompressionThreshold are gzip-compressed first and the returned Result
// carries the matching compression tag so the decrypting side knows to
// inflate after decryption.
func Encrypt(cleartext, key []byte) (*Result, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}

	compression := ""
	payload := cleartext
	if len(cleartext) > CompressionThreshold {
		compressed, err := codecx.Compress(cleartext)
		if err != nil {
			return nil, fmt.Errorf("compressing payload: %w", err)
		}
		payload = compressed
		compression = codecx.CompressionGzip
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	header := common.GenerateRandByteArray(NonceSize)

	// Seal full chunks, then the final (possibly empty) chunk with the
	// end-of-stream marker.
	var ciphertext []byte
	var counter uint64
	for len(payload) > chunkSize {
		ciphertext = aead.Seal(ciphertext, chunkNonce(header, counter), payload[:chunkSize], nil)
		payload = payload[chunkSize:]
		counter++
	}
	ciphertext = aead.Seal(ciphertext, chunkNonce(header, counter), payload, finalChunkAAD)

	digest := blake2b.Sum256(ciphertext)

	return &Result{
		Format:      FormatMGS4,
		Nonce:       header,
		Ciphertext:  ciphertext,
		Digest:      digest[:],
		Compression: compression,
		Key:         key,
	}, nil
}

// Decrypt reverses Encrypt in a single call: authenticated decryption
// followed by the optional decompression step named by the compression tag.
// It produces output byte-identical to running the same ciphertext through a
// streamed Decryptor.
func Decrypt(format string, key, nonce, ciphertext []byte, compression string) ([]byte, error) {
	if format != FormatMGS4 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	d, err := NewDecryptor(key, nonce)
	if err != nil {
		return nil, err
	}

	out, err := d.Write(ciphertext)
	if err != nil {
		return nil, err
	}
	tail, err := d.Finalize()
	if err != nil {
		return nil, err
	}
	out = append(out, tail...)

	return codecx.Decompress(compression, out)
}
