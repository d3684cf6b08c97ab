package feeds

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/feedkeeper/internal/cipherx"
	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/common"
	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

// sealEnvelope encrypts v as JSON under key and returns the wire envelope
// referencing keyID.
func sealEnvelope(t *testing.T, keyID string, key []byte, v any) models.EncryptedData {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)

	res, err := cipherx.Encrypt(payload, key)
	require.NoError(t, err)

	return models.EncryptedData{
		Format:           res.Format,
		KeyID:            keyID,
		Nonce:            codecx.EncodeBase64(res.Nonce),
		CiphertextBase64: codecx.EncodeBase64(res.Ciphertext),
		Compression:      res.Compression,
		Digest:           codecx.EncodeBase64(res.Digest),
	}
}

func testKeyMap(keyID string) (keyring.KeyMap, []byte) {
	key := common.GenerateRandByteArray(cipherx.KeySize)
	return keyring.KeyMap{keyID: key}, key
}

func TestDecryptFeed(t *testing.T) {
	keys, key := testKeyMap("feed-key")
	info := models.FeedInformation{
		Name:      "World news",
		URL:       "https://example.com/rss",
		UserAgent: "feedkeeper/1.0",
	}
	feed := models.Feed{
		FeedID:                   "feed-1",
		FeedType:                 "web.scraper.python_custom",
		Active:                   true,
		EncryptedFeedInformation: sealEnvelope(t, "feed-key", key, info),
	}

	decrypted, err := DecryptFeed(feed, keys)
	require.NoError(t, err)

	assert.Equal(t, "feed-1", decrypted.Feed.FeedID)
	assert.Equal(t, &info, decrypted.Info)
	assert.Equal(t, key, decrypted.SecretKey, "secret key must be retained for re-encryption")
}

func TestDecryptFeed_Failures(t *testing.T) {
	keys, key := testKeyMap("feed-key")
	good := sealEnvelope(t, "feed-key", key, models.FeedInformation{Name: "n"})

	tests := []struct {
		name    string
		mutate  func(e *models.EncryptedData)
		wantErr error
	}{
		{"missing key id", func(e *models.EncryptedData) { e.KeyID = "" }, ErrMissingKeyReference},
		{"unknown key", func(e *models.EncryptedData) { e.KeyID = "other" }, ErrUnknownKey},
		{"missing format", func(e *models.EncryptedData) { e.Format = "" }, ErrMalformedEnvelope},
		{"missing nonce", func(e *models.EncryptedData) { e.Nonce = "" }, ErrMalformedEnvelope},
		{"bad nonce encoding", func(e *models.EncryptedData) { e.Nonce = "%%%" }, ErrMalformedEnvelope},
		{"unsupported format", func(e *models.EncryptedData) { e.Format = "mgs9" }, cipherx.ErrUnsupportedFormat},
		{"unsupported compression", func(e *models.EncryptedData) { e.Compression = "br" }, codecx.ErrUnsupportedCompression},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := good
			tt.mutate(&env)
			feed := models.Feed{FeedID: "feed-1", EncryptedFeedInformation: env}

			_, err := DecryptFeed(feed, keys)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestDecryptFeed_TamperedCiphertext(t *testing.T) {
	keys, key := testKeyMap("feed-key")
	env := sealEnvelope(t, "feed-key", key, models.FeedInformation{Name: "n"})

	raw, err := codecx.DecodeBase64(env.CiphertextBase64)
	require.NoError(t, err)
	raw[0] ^= 0xff
	env.CiphertextBase64 = codecx.EncodeBase64(raw)

	_, err = DecryptFeed(models.Feed{FeedID: "f", EncryptedFeedInformation: env}, keys)
	assert.ErrorIs(t, err, cipherx.ErrDecryptionFailed)
}

func TestDecryptFeeds_SkipsBadEntries(t *testing.T) {
	keys, key := testKeyMap("k")

	good := models.Feed{FeedID: "good", EncryptedFeedInformation: sealEnvelope(t, "k", key, models.FeedInformation{Name: "ok"})}
	bad := models.Feed{FeedID: "bad", EncryptedFeedInformation: sealEnvelope(t, "missing", key, models.FeedInformation{Name: "nope"})}

	out := DecryptFeeds(context.Background(), []models.Feed{bad, good}, keys, logging.Nop{})

	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].Feed.FeedID)
}

func TestDecryptFeedView_FlattenMerge(t *testing.T) {
	keys, key := testKeyMap("view-key")

	active := false
	info := models.FeedViewInformation{
		Name:        "Decrypted name",
		MappingCode: "def map(item): return item",
		Active:      &active,
	}
	env := sealEnvelope(t, "view-key", key, info)
	view := models.FeedView{
		FeedViewID:    "view-1",
		FeedID:        "feed-1",
		Name:          "Record name",
		Active:        true,
		Decrypted:     true,
		EncryptedData: &env,
	}

	decrypted, err := DecryptFeedView(view, keys)
	require.NoError(t, err)

	// Decrypted fields win on collision; untouched record fields persist.
	assert.Equal(t, "Decrypted name", decrypted.Name)
	assert.Equal(t, "def map(item): return item", decrypted.MappingCode)
	assert.False(t, decrypted.Active)
	assert.True(t, decrypted.Decrypted)
	assert.Equal(t, "feed-1", decrypted.FeedID)
	assert.Equal(t, key, decrypted.SecretKey)
}

func TestDecryptFeedView_RecordFieldsFallBack(t *testing.T) {
	keys, key := testKeyMap("view-key")

	env := sealEnvelope(t, "view-key", key, models.FeedViewInformation{MappingCode: "pass"})
	view := models.FeedView{FeedViewID: "v", Name: "Record name", Active: true, EncryptedData: &env}

	decrypted, err := DecryptFeedView(view, keys)
	require.NoError(t, err)
	assert.Equal(t, "Record name", decrypted.Name)
	assert.True(t, decrypted.Active)
}

func TestDecryptFeedView_NoEnvelopePropagates(t *testing.T) {
	keys, _ := testKeyMap("view-key")
	_, err := DecryptFeedView(models.FeedView{FeedViewID: "v"}, keys)
	assert.ErrorIs(t, err, ErrMalformedEnvelope)
}

func TestDecryptFeedViews_SkipPolicy(t *testing.T) {
	keys, key := testKeyMap("view-key")

	goodEnv := sealEnvelope(t, "view-key", key, models.FeedViewInformation{Name: "good"})
	badEnv := sealEnvelope(t, "unknown", key, models.FeedViewInformation{Name: "bad"})

	views := []models.FeedView{
		{FeedViewID: "plain"}, // no envelope: legitimate, excluded
		{FeedViewID: "good", EncryptedData: &goodEnv},
		{FeedViewID: "bad", EncryptedData: &badEnv},
	}

	out := DecryptFeedViews(context.Background(), views, keys, logging.Nop{})

	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].FeedViewID)
}

type testPayload struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

func TestDecryptDataItems_PerItemIsolation(t *testing.T) {
	keys, key := testKeyMap("item-key")

	items := make([]models.DataItem, 0, 5)
	for _, id := range []string{"1", "2", "3", "4", "5"} {
		keyID := "item-key"
		if id == "3" {
			keyID = "absent-key"
		}
		items = append(items, models.DataItem{
			DataID:        id,
			FeedID:        "feed-1",
			EncryptedData: sealEnvelope(t, keyID, key, testPayload{Label: "item " + id}),
		})
	}

	out := DecryptDataItems(context.Background(), items, keys, logging.Nop{})

	require.Len(t, out, 4)
	gotIDs := make([]string, 0, len(out))
	for _, item := range out {
		gotIDs = append(gotIDs, item.Item.DataID)
	}
	assert.Equal(t, []string{"1", "2", "4", "5"}, gotIDs, "skipped item omitted, relative order kept")
}

func TestDecryptDataItems_PayloadAndFiles(t *testing.T) {
	keys, key := testKeyMap("item-key")

	files := []models.AttachedFile{{
		Fuuid:      "zthumb1",
		Decryption: models.EncryptedData{KeyID: "item-key", Format: cipherx.FormatMGS4, Nonce: "bm9uY2U"},
	}}
	item := models.DataItem{
		DataID:        "d1",
		EncryptedData: sealEnvelope(t, "item-key", key, testPayload{Label: "hello", URL: "https://example.com"}),
		Files:         files,
	}

	out := DecryptDataItems(context.Background(), []models.DataItem{item}, keys, logging.Nop{})
	require.Len(t, out, 1)

	var payload testPayload
	require.NoError(t, json.Unmarshal(out[0].Data, &payload))
	assert.Equal(t, "hello", payload.Label)
	assert.Equal(t, files, out[0].Files)
	assert.Equal(t, key, out[0].SecretKey, "resolved key retained for file opening")
}

func TestDecryptDataItems_UnsupportedCompressionSkipsItem(t *testing.T) {
	keys, key := testKeyMap("item-key")

	bad := models.DataItem{DataID: "bad", EncryptedData: sealEnvelope(t, "item-key", key, testPayload{Label: "x"})}
	bad.EncryptedData.Compression = "lz4"
	good := models.DataItem{DataID: "good", EncryptedData: sealEnvelope(t, "item-key", key, testPayload{Label: "y"})}

	out := DecryptDataItems(context.Background(), []models.DataItem{bad, good}, keys, logging.Nop{})

	require.Len(t, out, 1)
	assert.Equal(t, "good", out[0].Item.DataID)
}

func TestDecryptFeedViewItems(t *testing.T) {
	keys, key := testKeyMap("item-key")

	label := "Trending topic"
	url := "https://example.com/article"
	item := models.FeedViewDataItem{
		DataID:        "fv-1",
		FeedViewID:    "view-1",
		GroupID:       "group-7",
		EncryptedData: sealEnvelope(t, "item-key", key, models.ItemData{Label: &label, URL: &url}),
	}
	badItem := models.FeedViewDataItem{
		DataID:        "fv-2",
		FeedViewID:    "view-1",
		EncryptedData: models.EncryptedData{}, // no key id
	}

	out := DecryptFeedViewItems(context.Background(), []models.FeedViewDataItem{item, badItem}, keys, logging.Nop{})

	require.Len(t, out, 1)
	require.NotNil(t, out[0].Data)
	assert.Equal(t, label, *out[0].Data.Label)
	assert.Equal(t, url, *out[0].Data.URL)
	assert.Equal(t, "group-7", out[0].Item.GroupID)
	assert.Equal(t, key, out[0].SecretKey)
}
