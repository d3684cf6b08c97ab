// Package feeds implements the entity decryptors: feed metadata, feed views
// and both generations of data items. All of them resolve their envelope's
// key reference against a per-fetch key map and run the shared
// decrypt/decompress/parse pipeline; they differ in failure policy. The feed
// itself is load-bearing and fails fast, everything else is skip-on-error so
// one bad item never aborts a batch.
package feeds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/cipherx"
	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

var (
	// ErrMissingKeyReference means the envelope carries no key id at all.
	ErrMissingKeyReference = errors.New("key id missing")

	// ErrUnknownKey means the envelope's key id did not resolve in the key
	// map.
	ErrUnknownKey = errors.New("unknown key")

	// ErrMalformedEnvelope means the envelope is structurally unusable:
	// missing format or nonce, or undecodable transport encoding.
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// decryptEnvelope runs the common pipeline for one envelope: resolve the key
// reference, validate format and nonce, base64-decode, decrypt and
// decompress. Returns the cleartext and the secret key that was used so the
// caller can retain it alongside the decrypted entity.
func decryptEnvelope(env *models.EncryptedData, keys keyring.KeyMap) (cleartext, secret []byte, err error) {
	if env == nil {
		return nil, nil, fmt.Errorf("%w: no encrypted data", ErrMalformedEnvelope)
	}
	if env.KeyID == "" {
		return nil, nil, ErrMissingKeyReference
	}
	secret = keys[env.KeyID]
	if secret == nil {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownKey, env.KeyID)
	}
	if env.Format == "" || env.Nonce == "" {
		return nil, nil, fmt.Errorf("%w: format/nonce missing", ErrMalformedEnvelope)
	}

	nonce, err := codecx.DecodeBase64(env.Nonce)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decoding nonce: %v", ErrMalformedEnvelope, err)
	}
	ciphertext, err := codecx.DecodeBase64(env.CiphertextBase64)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: decoding ciphertext: %v", ErrMalformedEnvelope, err)
	}

	cleartext, err = cipherx.Decrypt(env.Format, secret, nonce, ciphertext, env.Compression)
	if err != nil {
		return nil, nil, err
	}
	return cleartext, secret, nil
}

// DecryptFeed decrypts the single load-bearing feed record. Any failure is
// returned to the caller and aborts the containing fetch: without the feed
// there is nothing meaningful to show.
func DecryptFeed(f models.Feed, keys keyring.KeyMap) (*models.DecryptedFeed, error) {
	cleartext, secret, err := decryptEnvelope(&f.EncryptedFeedInformation, keys)
	if err != nil {
		return nil, fmt.Errorf("decrypting feed %s: %w", f.FeedID, err)
	}

	var info models.FeedInformation
	if err := json.Unmarshal(cleartext, &info); err != nil {
		return nil, fmt.Errorf("parsing feed %s metadata: %w", f.FeedID, err)
	}

	return &models.DecryptedFeed{Feed: f, Info: &info, SecretKey: secret}, nil
}

// DecryptFeeds decrypts a list of feed records with per-item isolation: a
// feed that fails is logged and omitted, the rest of the batch goes through.
// Output order follows input order.
func DecryptFeeds(ctx context.Context, fs []models.Feed, keys keyring.KeyMap, log logging.Logger) []models.DecryptedFeed {
	out := make([]models.DecryptedFeed, 0, len(fs))
	for _, f := range fs {
		decrypted, err := DecryptFeed(f, keys)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable feed", "feed_id", f.FeedID, "err", err)
			continue
		}
		out = append(out, *decrypted)
	}
	return out
}

// DecryptFeedView decrypts a single view record and flattens the decrypted
// metadata onto it. Used by the single-view fetch, where failures propagate.
func DecryptFeedView(v models.FeedView, keys keyring.KeyMap) (*models.DecryptedFeedView, error) {
	cleartext, secret, err := decryptEnvelope(v.EncryptedData, keys)
	if err != nil {
		return nil, fmt.Errorf("decrypting feed view %s: %w", v.FeedViewID, err)
	}

	var info models.FeedViewInformation
	if err := json.Unmarshal(cleartext, &info); err != nil {
		return nil, fmt.Errorf("parsing feed view %s metadata: %w", v.FeedViewID, err)
	}

	merged := mergeView(v, &info)
	merged.SecretKey = secret
	return &merged, nil
}

// DecryptFeedViews decrypts a view list with per-item isolation. A view with
// no envelope at all is not an error: it is logged in its undecrypted state
// and excluded from the result.
func DecryptFeedViews(ctx context.Context, vs []models.FeedView, keys keyring.KeyMap, log logging.Logger) []models.DecryptedFeedView {
	out := make([]models.DecryptedFeedView, 0, len(vs))
	for _, v := range vs {
		if v.EncryptedData == nil {
			log.Debug(ctx, "feed view has no encrypted data", "feed_view_id", v.FeedViewID)
			continue
		}
		decrypted, err := DecryptFeedView(v, keys)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable feed view", "feed_view_id", v.FeedViewID, "err", err)
			continue
		}
		out = append(out, *decrypted)
	}
	return out
}

// mergeView composes the flattened view-model from the raw record and its
// decrypted metadata. Decrypted fields win on collision; absent optional
// fields fall back to the record.
func mergeView(v models.FeedView, info *models.FeedViewInformation) models.DecryptedFeedView {
	merged := models.DecryptedFeedView{
		FeedViewID: v.FeedViewID,
		FeedID:     v.FeedID,
		Name:       v.Name,
		Active:     v.Active,
		Decrypted:  v.Decrypted,
	}
	if info == nil {
		return merged
	}
	if info.Name != "" {
		merged.Name = info.Name
	}
	merged.MappingCode = info.MappingCode
	if info.Active != nil {
		merged.Active = *info.Active
	}
	if info.Decrypted != nil {
		merged.Decrypted = *info.Decrypted
	}
	return merged
}

// DecryptDataItems decrypts a batch of legacy flat items. Items whose key
// cannot be resolved, whose envelope is malformed, or whose payload fails to
// decrypt or parse are logged and omitted; the batch continues. Output keeps
// the server's delivery order (filtering, never reordering).
func DecryptDataItems(ctx context.Context, items []models.DataItem, keys keyring.KeyMap, log logging.Logger) []models.DecryptedDataItem {
	out := make([]models.DecryptedDataItem, 0, len(items))
	for _, item := range items {
		cleartext, secret, err := decryptEnvelope(&item.EncryptedData, keys)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable data item", "data_id", item.DataID, "err", err)
			continue
		}
		var payload json.RawMessage
		if err := json.Unmarshal(cleartext, &payload); err != nil {
			log.Warn(ctx, "skipping unparsable data item", "data_id", item.DataID, "err", err)
			continue
		}
		out = append(out, models.DecryptedDataItem{
			Item:      item,
			Data:      payload,
			SecretKey: secret,
			Files:     item.Files,
		})
	}
	return out
}

// DecryptFeedViewItems decrypts a batch of feed-view items under the same
// per-item isolation contract as DecryptDataItems. The two routines stay
// separate because the wire shapes are not convertible: the legacy shape has
// no group/file cross-references.
func DecryptFeedViewItems(ctx context.Context, items []models.FeedViewDataItem, keys keyring.KeyMap, log logging.Logger) []models.DecryptedFeedViewItem {
	out := make([]models.DecryptedFeedViewItem, 0, len(items))
	for _, item := range items {
		cleartext, secret, err := decryptEnvelope(&item.EncryptedData, keys)
		if err != nil {
			log.Warn(ctx, "skipping undecryptable feed view item", "data_id", item.DataID, "err", err)
			continue
		}
		var data models.ItemData
		if err := json.Unmarshal(cleartext, &data); err != nil {
			log.Warn(ctx, "skipping unparsable feed view item", "data_id", item.DataID, "err", err)
			continue
		}
		out = append(out, models.DecryptedFeedViewItem{
			Item:      item,
			Data:      &data,
			SecretKey: secret,
		})
	}
	return out
}
