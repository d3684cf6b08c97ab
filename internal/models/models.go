// Package models defines the wire shapes exchanged with the feed services
// and the decrypted aggregates handed to the viewer. JSON tags follow the
// platform protocol (key references are "cle_id", ciphertext travels as
// "ciphertext_base64", and so on).
package models

import "encoding/json"

// EncryptedData is the universal at-rest ciphertext envelope: a format tag, a
// key reference, a nonce, the transport-encoded ciphertext and an optional
// compression tag. The same shape, minus ciphertext, describes an attached
// file's decryption parameters. An envelope without KeyID, or without
// Format/Nonce, cannot be decrypted.
type EncryptedData struct {
	Format           string `json:"format,omitempty"`
	KeyID            string `json:"cle_id,omitempty"`
	Nonce            string `json:"nonce,omitempty"`
	CiphertextBase64 string `json:"ciphertext_base64,omitempty"`
	Compression      string `json:"compression,omitempty"`
	// Digest is carried but not required by the read pipeline; it is dropped
	// before re-encryption on update.
	Digest string `json:"digest,omitempty"`
}

// Feed is the raw server record of a configured external data source. The
// sensitive part (name, URL, credentials, scraping code) lives inside the
// encrypted envelope.
type Feed struct {
	FeedID                   string        `json:"feed_id"`
	FeedType                 string        `json:"feed_type"`
	SecurityLevel            string        `json:"security_level,omitempty"`
	PollRate                 *int          `json:"poll_rate,omitempty"`
	Active                   bool          `json:"active"`
	DecryptInDatabase        bool          `json:"decrypt_in_database"`
	EncryptedFeedInformation EncryptedData `json:"encrypted_feed_information"`
	UserID                   string        `json:"user_id,omitempty"`
	Deleted                  bool          `json:"deleted,omitempty"`
}

// FeedInformation is the decrypted feed metadata.
type FeedInformation struct {
	Name       string `json:"name"`
	URL        string `json:"url,omitempty"`
	Username   string `json:"username,omitempty"`
	Password   string `json:"password,omitempty"`
	CustomCode string `json:"custom_code,omitempty"`
	UserAgent  string `json:"user_agent,omitempty"`
}

// DecryptedFeed pairs the raw record with its decrypted metadata and the raw
// secret key it was decrypted with. The key is retained so a later update can
// re-encrypt the metadata without re-wrapping. The value is immutable: a
// cached entry is replaced wholesale after a successful server update.
type DecryptedFeed struct {
	Feed      Feed
	Info      *FeedInformation
	SecretKey []byte
}

// FeedView is the raw record of a named projection over a feed's items. A
// view may legitimately carry no encrypted payload at all.
type FeedView struct {
	FeedViewID    string         `json:"feed_view_id"`
	FeedID        string         `json:"feed_id"`
	Name          string         `json:"name,omitempty"`
	Active        bool           `json:"active"`
	Decrypted     bool           `json:"decrypted"`
	EncryptedData *EncryptedData `json:"encrypted_data,omitempty"`
}

// FeedViewInformation is a view's decrypted metadata. Optional fields are
// pointers so the flatten-merge can tell "absent" from zero values.
type FeedViewInformation struct {
	Name        string `json:"name,omitempty"`
	MappingCode string `json:"mapping_code,omitempty"`
	Active      *bool  `json:"active,omitempty"`
	Decrypted   *bool  `json:"decrypted,omitempty"`
}

// DecryptedFeedView is the flattened result of merging a view's decrypted
// metadata onto its raw record (decrypted fields win on collision), plus the
// view's own secret key.
type DecryptedFeedView struct {
	FeedViewID  string
	FeedID      string
	Name        string
	MappingCode string
	Active      bool
	Decrypted   bool
	SecretKey   []byte
}

// AttachedFile references a binary asset (e.g. a thumbnail) collected with a
// data item. Decryption carries the file's own format/nonce/key reference;
// the key itself is expected in the owning fetch's key map.
type AttachedFile struct {
	Fuuid      string        `json:"fuuid"`
	Decryption EncryptedData `json:"decryption"`
}

// DataItem is the legacy flat item record: feed-type-specific payload with no
// group/file envelope nesting.
type DataItem struct {
	DataID        string         `json:"data_id"`
	FeedID        string         `json:"feed_id"`
	PubDate       int64          `json:"pub_date,omitempty"`
	EncryptedData EncryptedData  `json:"encrypted_data"`
	Files         []AttachedFile `json:"files,omitempty"`
}

// DecryptedDataItem is a legacy item with its free-form decrypted payload.
type DecryptedDataItem struct {
	Item      DataItem
	Data      json.RawMessage
	SecretKey []byte
	Files     []AttachedFile
}

// FeedViewDataItem is the newer item record produced by feed views, with
// explicit grouping and per-item file cross-references.
type FeedViewDataItem struct {
	DataID        string         `json:"data_id"`
	FeedViewID    string         `json:"feed_view_id"`
	FeedID        string         `json:"feed_id,omitempty"`
	PubDate       int64          `json:"pub_date,omitempty"`
	GroupID       string         `json:"group_id,omitempty"`
	EncryptedData EncryptedData  `json:"encrypted_data"`
	Files         []AttachedFile `json:"files,omitempty"`
}

// ItemData is the decrypted payload of a feed-view item. The shape is
// feed-type-specific; unknown structure lands in Group untouched.
type ItemData struct {
	Label      *string         `json:"label,omitempty"`
	PubDate    *int64          `json:"pub_date,omitempty"`
	URL        *string         `json:"url,omitempty"`
	ItemSource *string         `json:"item_source,omitempty"`
	Group      json.RawMessage `json:"group,omitempty"`
}

// DecryptedFeedViewItem pairs a feed-view item record with its decrypted
// payload and the key that opened it, so the file path needs no re-resolve.
type DecryptedFeedViewItem struct {
	Item      FeedViewDataItem
	Data      *ItemData
	SecretKey []byte
}
