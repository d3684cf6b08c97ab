package cipherx

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"tiny", []byte("x")},
		{"below threshold", bytes.Repeat([]byte("a"), CompressionThreshold)},
		{"above threshold", bytes.Repeat([]byte("b"), CompressionThreshold+1)},
		{"exactly one chunk", common.GenerateRandByteArray(64 * 1024)},
		{"multi chunk", common.GenerateRandByteArray(64*1024*2 + 1234)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Encrypt(tt.plaintext, key)
			require.NoError(t, err)
			assert.Equal(t, FormatMGS4, res.Format)
			assert.Len(t, res.Nonce, NonceSize)
			assert.Equal(t, key, res.Key)

			out, err := Decrypt(res.Format, key, res.Nonce, res.Ciphertext, res.Compression)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(tt.plaintext, out),
				"decrypted output differs from plaintext")
		})
	}
}

func TestEncrypt_CompressionPolicy(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	small := bytes.Repeat([]byte("s"), CompressionThreshold)
	res, err := Encrypt(small, key)
	require.NoError(t, err)
	assert.Empty(t, res.Compression, "payloads at or below the threshold must not be compressed")

	large := bytes.Repeat([]byte("l"), CompressionThreshold+1)
	res, err = Encrypt(large, key)
	require.NoError(t, err)
	assert.Equal(t, codecx.CompressionGzip, res.Compression)

	out, err := Decrypt(res.Format, key, res.Nonce, res.Ciphertext, res.Compression)
	require.NoError(t, err)
	assert.Equal(t, large, out)
}

func TestDecrypt_TamperDetection(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := []byte("integrity protected payload")

	res, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	// Flipping any single byte of the ciphertext must fail authentication,
	// never return different plaintext.
	for i := range res.Ciphertext {
		corrupted := make([]byte, len(res.Ciphertext))
		copy(corrupted, res.Ciphertext)
		corrupted[i] ^= 0x01

		_, err := Decrypt(res.Format, key, res.Nonce, corrupted, res.Compression)
		assert.ErrorIs(t, err, ErrDecryptionFailed, "byte %d", i)
	}
}

func TestDecrypt_TamperedMultiChunk(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := common.GenerateRandByteArray(64*1024 + 500)

	res, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	// One flip in the first chunk, one in the final chunk.
	for _, pos := range []int{100, len(res.Ciphertext) - 10} {
		corrupted := make([]byte, len(res.Ciphertext))
		copy(corrupted, res.Ciphertext)
		corrupted[pos] ^= 0x80

		_, err := Decrypt(res.Format, key, res.Nonce, corrupted, res.Compression)
		assert.ErrorIs(t, err, ErrDecryptionFailed, "position %d", pos)
	}
}

func TestDecrypt_TruncatedCiphertext(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := common.GenerateRandByteArray(64*1024*2 + 17)

	res, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	// Dropping the final chunk leaves a ciphertext whose last remaining
	// chunk is not sealed with the end-of-stream marker.
	truncated := res.Ciphertext[:64*1024+chunkOverhead]
	_, err = Decrypt(res.Format, key, res.Nonce, truncated, res.Compression)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_WrongKey(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	other := common.GenerateRandByteArray(KeySize)

	res, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Decrypt(res.Format, other, res.Nonce, res.Ciphertext, res.Compression)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_UnsupportedFormat(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	_, err := Decrypt("mgs3", key, make([]byte, NonceSize), []byte("x"), "")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecrypt_MalformedKeyAndNonce(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	res, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	_, err = Decrypt(res.Format, key[:16], res.Nonce, res.Ciphertext, res.Compression)
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = Decrypt(res.Format, key, res.Nonce[:12], res.Ciphertext, res.Compression)
	assert.ErrorIs(t, err, ErrInvalidNonceSize)
}

func TestDecryptor_StreamMatchesOneShot(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	plaintext := common.GenerateRandByteArray(64*1024*3 + 999)

	res, err := Encrypt(plaintext, key)
	require.NoError(t, err)

	oneShot, err := Decrypt(res.Format, key, res.Nonce, res.Ciphertext, "")
	require.NoError(t, err)

	for _, step := range []int{1, 7, 4096, 64 * 1024, len(res.Ciphertext)} {
		d, err := NewDecryptor(key, res.Nonce)
		require.NoError(t, err)

		var streamed []byte
		for off := 0; off < len(res.Ciphertext); off += step {
			end := off + step
			if end > len(res.Ciphertext) {
				end = len(res.Ciphertext)
			}
			out, err := d.Write(res.Ciphertext[off:end])
			require.NoError(t, err)
			streamed = append(streamed, out...)
		}
		tail, err := d.Finalize()
		require.NoError(t, err)
		streamed = append(streamed, tail...)

		assert.True(t, bytes.Equal(oneShot, streamed), "step %d", step)
	}
}

func TestDecryptor_FinalizeTwice(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)
	res, err := Encrypt([]byte("payload"), key)
	require.NoError(t, err)

	d, err := NewDecryptor(key, res.Nonce)
	require.NoError(t, err)
	_, err = d.Write(res.Ciphertext)
	require.NoError(t, err)
	_, err = d.Finalize()
	require.NoError(t, err)

	_, err = d.Finalize()
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestEncrypt_FreshNoncePerCall(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	a, err := Encrypt([]byte("same payload"), key)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same payload"), key)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}
