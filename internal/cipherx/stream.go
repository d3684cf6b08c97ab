package cipherx

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Decryptor decrypts an mgs4 ciphertext incrementally. Feed ciphertext bytes
// with Write in any sized pieces, then call Finalize exactly once to open the
// last chunk. Used by the file-open path where the blob arrives as a stream;
// metadata decryption goes through the one-shot Decrypt which shares this
// implementation.
type Decryptor struct {
	aead    cipher.AEAD
	header  []byte
	buf     []byte
	counter uint64
	done    bool
}

// NewDecryptor validates the key and header nonce and prepares a streamed
// decryption.
func NewDecryptor(key, nonce []byte) (*Decryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidNonceSize, len(nonce), NonceSize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	header := make([]byte, NonceSize)
	copy(header, nonce)

	return &Decryptor{aead: aead, header: header}, nil
}

// Write buffers ciphertext and opens every chunk that is known to be
// non-final. A chunk can only be opened as non-final once more ciphertext is
// buffered behind it, so the final chunk is always left for Finalize.
func (d *Decryptor) Write(p []byte) ([]byte, error) {
	if d.done {
		return nil, fmt.Errorf("%w: write after finalize", ErrDecryptionFailed)
	}
	d.buf = append(d.buf, p...)

	var out []byte
	const sealed = chunkSize + chunkOverhead
	for len(d.buf) > sealed {
		plain, err := d.aead.Open(nil, chunkNonce(d.header, d.counter), d.buf[:sealed], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
		out = append(out, plain...)
		d.buf = d.buf[sealed:]
		d.counter++
	}
	return out, nil
}

// Finalize opens the remaining buffered bytes as the final chunk and returns
// the last plaintext piece. Any tampering, truncation or wrong key surfaces
// here (or in Write) as ErrDecryptionFailed.
func (d *Decryptor) Finalize() ([]byte, error) {
	if d.done {
		return nil, fmt.Errorf("%w: finalize called twice", ErrDecryptionFailed)
	}
	d.done = true

	if len(d.buf) < chunkOverhead {
		return nil, fmt.Errorf("%w: truncated ciphertext", ErrDecryptionFailed)
	}
	plain, err := d.aead.Open(nil, chunkNonce(d.header, d.counter), d.buf, finalChunkAAD)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	d.buf = nil
	return plain, nil
}
