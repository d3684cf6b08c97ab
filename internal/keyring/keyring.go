// Package keyring consumes unwrapped key bundles and maintains the per-fetch
// mapping from key identifier to raw secret key bytes. The asymmetric unwrap
// itself is performed by the transport collaborator; this package only builds
// and merges the resulting maps.
package keyring

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

var (
	// ErrKeyUnwrapFailed means the key bundle itself reported failure.
	ErrKeyUnwrapFailed = errors.New("key unwrap failed")

	// ErrNoKeysAvailable means the bundle unwrapped fine but carried no key
	// list. Callers treat this as "no decryptable content", not a fatal
	// error.
	ErrNoKeysAvailable = errors.New("no decrypted key information")
)

// UnwrappedKey is one (key id, secret) pair delivered by the key-master.
type UnwrappedKey struct {
	KeyID        string `json:"cle_id"`
	SecretBase64 string `json:"cle_secrete_base64"`
}

// KeyDispatch is the unwrapped form of a wrapped key bundle, as returned by
// the transport's decryptMessage capability.
type KeyDispatch struct {
	Ok   bool           `json:"ok"`
	Err  string         `json:"err,omitempty"`
	Keys []UnwrappedKey `json:"cles,omitempty"`
}

// KeyMap maps a key identifier to raw secret key bytes. It is built fresh
// per fetch and treated as immutable once handed to the decryptors; callers
// needing cross-fetch persistence carry prior maps forward explicitly.
type KeyMap map[string][]byte

// Resolve builds a KeyMap from an unwrapped bundle. Later entries for a
// duplicate key id overwrite earlier ones (in practice duplicates are
// identical). A secret that fails base64 decoding fails the whole resolve:
// the bundle is produced by our own key-master and is load-bearing.
func Resolve(d *KeyDispatch) (KeyMap, error) {
	if d == nil || !d.Ok {
		msg := ""
		if d != nil {
			msg = d.Err
		}
		return nil, fmt.Errorf("%w: %s", ErrKeyUnwrapFailed, msg)
	}
	if d.Keys == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoKeysAvailable, d.Err)
	}

	m := make(KeyMap, len(d.Keys))
	for _, k := range d.Keys {
		secret, err := codecx.DecodeBase64(k.SecretBase64)
		if err != nil {
			return nil, fmt.Errorf("%w: decoding secret for %s: %v", ErrKeyUnwrapFailed, k.KeyID, err)
		}
		m[k.KeyID] = secret
	}
	return m, nil
}

// Merge returns a new map holding the union of m and other; entries from
// other win on collision. Neither input is modified.
func (m KeyMap) Merge(other KeyMap) KeyMap {
	out := make(KeyMap, len(m)+len(other))
	for id, secret := range m {
		out[id] = secret
	}
	for id, secret := range other {
		out[id] = secret
	}
	return out
}

// FileKey resolves an attached file's embedded key reference against the
// map. A missing key returns nil rather than an error: the caller renders a
// placeholder instead of the file.
func (m KeyMap) FileKey(ref *models.AttachedFile) []byte {
	if ref == nil {
		return nil
	}
	return m[ref.Decryption.KeyID]
}
