// Package keymaster implements the "encrypt with a new key" entry point of
// the cipher adapter: deriving a fresh secret key tied to a domain through
// X25519 agreement with the platform master public key, producing a signed
// key-ownership assertion, and wrapping the secret for every trusted
// recipient public key so the key-master service can later re-deliver it.
package keymaster

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"

	"github.com/dmitrijs2005/feedkeeper/internal/cipherx"
	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
)

var (
	ErrNotInitialized = errors.New("master public key not initialized")
	ErrNoRecipients   = errors.New("no system encryption keys are available")
	ErrInvalidKey     = errors.New("invalid key material")
)

// Recipient is one trusted key-master public key a fresh secret must be
// wrapped for.
type Recipient struct {
	Fingerprint string
	PublicKey   []byte // X25519, 32 bytes
}

// Fingerprint derives the canonical identifier of an X25519 public key.
func Fingerprint(pub []byte) string {
	sum := blake2b.Sum256(pub)
	return hex.EncodeToString(sum[:])
}

// Keymaster holds the platform master public key and the currently trusted
// recipient keys. It is initialized once at session setup and read-only
// afterwards.
type Keymaster struct {
	masterPub  []byte
	recipients []Recipient
}

// New builds a Keymaster from the hex-encoded master public key. An empty
// string yields an uninitialized Keymaster: reads stay possible, generating
// keys fails with ErrNotInitialized.
func New(masterPubHex string) (*Keymaster, error) {
	if masterPubHex == "" {
		return &Keymaster{}, nil
	}
	pub, err := hex.DecodeString(masterPubHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(pub) != curve25519.PointSize {
		return nil, fmt.Errorf("%w: master public key must be %d bytes", ErrInvalidKey, curve25519.PointSize)
	}
	return &Keymaster{masterPub: pub}, nil
}

// SetRecipients replaces the trusted recipient set. Keys with a bad length
// are rejected; fingerprints are derived when absent.
func (k *Keymaster) SetRecipients(rs []Recipient) error {
	valid := make([]Recipient, 0, len(rs))
	for _, r := range rs {
		if len(r.PublicKey) != curve25519.PointSize {
			return fmt.Errorf("%w: recipient public key must be %d bytes", ErrInvalidKey, curve25519.PointSize)
		}
		if r.Fingerprint == "" {
			r.Fingerprint = Fingerprint(r.PublicKey)
		}
		valid = append(valid, r)
	}
	k.recipients = valid
	return nil
}

// GeneratedKey is a fresh domain-bound secret key.
type GeneratedKey struct {
	KeyID     string
	Secret    []byte
	Peer      []byte // ephemeral X25519 public key, kept for the key-master
	Assertion string // signed key-ownership assertion (JWT, EdDSA)
}

type assertionClaims struct {
	Domains []string `json:"domains"`
	Peer    string   `json:"peer"`
	Version int      `json:"v"`
	jwt.RegisteredClaims
}

// GenerateSecretKey derives a fresh secret through X25519 agreement against
// the master public key and signs a key-ownership assertion binding it to the
// given domains. The key identifier is the hash of the assertion, so it is
// stable for the key's lifetime and verifiable by the key-master.
func (k *Keymaster) GenerateSecretKey(domains []string) (*GeneratedKey, error) {
	if k.masterPub == nil {
		return nil, ErrNotInitialized
	}

	eph := common.GenerateRandByteArray(curve25519.ScalarSize)
	peer, err := curve25519.X25519(eph, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("deriving peer public key: %w", err)
	}
	shared, err := curve25519.X25519(eph, k.masterPub)
	if err != nil {
		return nil, fmt.Errorf("deriving shared secret: %w", err)
	}
	secret := blake2b.Sum256(shared)

	claims := assertionClaims{
		Domains: domains,
		Peer:    codecx.EncodeBase64(peer),
		Version: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}
	signer := ed25519.NewKeyFromSeed(secret[:])
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(signer)
	if err != nil {
		return nil, fmt.Errorf("signing key assertion: %w", err)
	}

	id := blake2b.Sum256([]byte(assertion))

	return &GeneratedKey{
		KeyID:     hex.EncodeToString(id[:]),
		Secret:    secret[:],
		Peer:      peer,
		Assertion: assertion,
	}, nil
}

// VerifyAssertion checks that assertion was signed by the holder of secret.
func VerifyAssertion(assertion string, secret []byte) error {
	if len(secret) != cipherx.KeySize {
		return ErrInvalidKey
	}
	pub := ed25519.NewKeyFromSeed(secret).Public()
	_, err := jwt.ParseWithClaims(assertion, &assertionClaims{}, func(*jwt.Token) (any, error) {
		return pub, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}))
	return err
}

// WrapSecretKey seals secret for every trusted recipient. Each wrapped copy
// is ephemeralPub || nonce || AEAD(secret), base64-encoded, keyed by the
// recipient fingerprint.
func (k *Keymaster) WrapSecretKey(secret []byte) (map[string]string, error) {
	if len(k.recipients) == 0 {
		return nil, ErrNoRecipients
	}
	wrapped := make(map[string]string, len(k.recipients))
	for _, r := range k.recipients {
		w, err := wrapFor(secret, r.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("wrapping key for %s: %w", r.Fingerprint, err)
		}
		wrapped[r.Fingerprint] = w
	}
	return wrapped, nil
}

func wrapFor(secret, recipientPub []byte) (string, error) {
	eph := common.GenerateRandByteArray(curve25519.ScalarSize)
	ephPub, err := curve25519.X25519(eph, curve25519.Basepoint)
	if err != nil {
		return "", err
	}
	shared, err := curve25519.X25519(eph, recipientPub)
	if err != nil {
		return "", err
	}
	wrapKey := blake2b.Sum256(shared)

	aead, err := chacha20poly1305.New(wrapKey[:])
	if err != nil {
		return "", err
	}
	nonce := common.GenerateRandByteArray(aead.NonceSize())

	out := make([]byte, 0, len(ephPub)+len(nonce)+len(secret)+aead.Overhead())
	out = append(out, ephPub...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, secret, nil)

	return codecx.EncodeBase64(out), nil
}

// UnwrapSecretKey reverses WrapSecretKey with the recipient's private scalar.
// The viewer itself never holds recipient keys in production (unwrapping is
// the key-master's job); this is the contract's other half, used in tests and
// by local tooling.
func UnwrapSecretKey(wrapped string, recipientPriv []byte) ([]byte, error) {
	raw, err := codecx.DecodeBase64(wrapped)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) < curve25519.PointSize+chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: wrapped key too short", ErrInvalidKey)
	}

	ephPub := raw[:curve25519.PointSize]
	nonce := raw[curve25519.PointSize : curve25519.PointSize+chacha20poly1305.NonceSize]
	sealed := raw[curve25519.PointSize+chacha20poly1305.NonceSize:]

	shared, err := curve25519.X25519(recipientPriv, ephPub)
	if err != nil {
		return nil, err
	}
	wrapKey := blake2b.Sum256(shared)

	aead, err := chacha20poly1305.New(wrapKey[:])
	if err != nil {
		return nil, err
	}
	secret, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return secret, nil
}

// DomainEncryptResult is the output of the new-key encryption path: the
// sealed payload plus everything the key-master needs to register the key.
type DomainEncryptResult struct {
	cipherx.Result
	KeyID       string
	Assertion   string
	WrappedKeys map[string]string
}

// EncryptForDomain seals cleartext with a freshly generated domain-bound key.
// Reusing an existing key goes through cipherx.Encrypt directly.
func (k *Keymaster) EncryptForDomain(cleartext []byte, domain string) (*DomainEncryptResult, error) {
	if domain == "" {
		return nil, errors.New("domain must be provided")
	}
	gen, err := k.GenerateSecretKey([]string{domain})
	if err != nil {
		return nil, err
	}
	wrapped, err := k.WrapSecretKey(gen.Secret)
	if err != nil {
		return nil, err
	}
	res, err := cipherx.Encrypt(cleartext, gen.Secret)
	if err != nil {
		return nil, err
	}
	return &DomainEncryptResult{
		Result:      *res,
		KeyID:       gen.KeyID,
		Assertion:   gen.Assertion,
		WrappedKeys: wrapped,
	}, nil
}
