// Package services contains application services for the feed viewer client.
// This file defines the feed service: listing with cache refresh, creating
// and editing feeds with the matching encryption work, and deletion.
package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/cipherx"
	feedsrepo "github.com/dmitrijs2005/feedkeeper/internal/client/repositories/feeds"
	"github.com/dmitrijs2005/feedkeeper/internal/codecx"
	"github.com/dmitrijs2005/feedkeeper/internal/fetch"
	"github.com/dmitrijs2005/feedkeeper/internal/keymaster"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
	"github.com/dmitrijs2005/feedkeeper/internal/transport"
)

// encryptionDomain tags generated secrets so the key master can scope who
// may unwrap them later.
const encryptionDomain = "collector"

var ErrNoRetainedKey = errors.New("decrypted feed carries no secret key")

// commander is the slice of the bus connection used for write commands.
type commander interface {
	SendCommand(ctx context.Context, subject string, payload any) error
}

// FeedService defines feed operations for the client.
//
// Contract:
//   - Refresh: fetch and decrypt the listing, then replace the local cache.
//   - ListCached: return the cached raw records without touching the bus.
//   - AddFeed: generate a fresh secret, encrypt the metadata and submit.
//   - UpdateFeed: re-encrypt edited metadata under the feed's existing key.
//   - DeleteFeed: delete on the server and drop the cached record.
type FeedService interface {
	Refresh(ctx context.Context) (*fetch.FeedList, error)
	ListCached(ctx context.Context) ([]models.Feed, error)
	AddFeed(ctx context.Context, feedType string, info models.FeedInformation) error
	UpdateFeed(ctx context.Context, f *models.DecryptedFeed, info models.FeedInformation) error
	DeleteFeed(ctx context.Context, feedID string) error
}

type feedService struct {
	pipeline  *fetch.Pipeline
	bus       commander
	keymaster *keymaster.Keymaster
	db        *sql.DB
	log       logging.Logger
}

func NewFeedService(pipeline *fetch.Pipeline, bus commander, km *keymaster.Keymaster, db *sql.DB, log logging.Logger) FeedService {
	return &feedService{pipeline: pipeline, bus: bus, keymaster: km, db: db, log: log}
}

func (s *feedService) Refresh(ctx context.Context) (*fetch.FeedList, error) {
	list, err := s.pipeline.FetchFeeds(ctx)
	if err != nil {
		return nil, err
	}

	records := make([]models.Feed, 0, len(list.Feeds))
	for _, f := range list.Feeds {
		records = append(records, f.Feed)
	}
	if err := feedsrepo.ReplaceAll(ctx, s.db, records); err != nil {
		// The listing is still usable; the cache just lags behind.
		s.log.Warn(ctx, "feed cache refresh failed", "error", err)
	}

	return list, nil
}

func (s *feedService) ListCached(ctx context.Context) ([]models.Feed, error) {
	return feedsrepo.NewSQLiteRepository(s.db).GetAll(ctx)
}

type addFeedCommand struct {
	FeedType                 string               `json:"feed_type"`
	SecurityLevel            string               `json:"security_level"`
	Active                   bool                 `json:"active"`
	EncryptedFeedInformation models.EncryptedData `json:"encrypted_feed_information"`
	KeyAssertion             string               `json:"signature"`
	WrappedKeys              map[string]string    `json:"cles"`
}

func (s *feedService) AddFeed(ctx context.Context, feedType string, info models.FeedInformation) error {
	cleartext, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding feed information: %w", err)
	}

	res, err := s.keymaster.EncryptForDomain(cleartext, encryptionDomain)
	if err != nil {
		return fmt.Errorf("encrypting feed information: %w", err)
	}

	cmd := addFeedCommand{
		FeedType:      feedType,
		SecurityLevel: "2.prive",
		Active:        true,
		EncryptedFeedInformation: models.EncryptedData{
			Format:           res.Format,
			KeyID:            res.KeyID,
			Nonce:            codecx.EncodeBase64(res.Nonce),
			CiphertextBase64: codecx.EncodeBase64(res.Ciphertext),
			Compression:      res.Compression,
			Digest:           codecx.EncodeBase64(res.Digest),
		},
		KeyAssertion: res.Assertion,
		WrappedKeys:  res.WrappedKeys,
	}

	return s.bus.SendCommand(ctx, transport.SubjectAddFeed, cmd)
}

type updateFeedCommand struct {
	FeedID                   string               `json:"feed_id"`
	EncryptedFeedInformation models.EncryptedData `json:"encrypted_feed_information"`
}

// UpdateFeed re-encrypts the edited metadata under the key the feed was
// decrypted with, so no re-wrapping round trip is needed. The key reference
// is carried over; the digest is not, since the server recomputes it.
func (s *feedService) UpdateFeed(ctx context.Context, f *models.DecryptedFeed, info models.FeedInformation) error {
	if f == nil || len(f.SecretKey) != cipherx.KeySize {
		return ErrNoRetainedKey
	}

	cleartext, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encoding feed information: %w", err)
	}

	res, err := cipherx.Encrypt(cleartext, f.SecretKey)
	if err != nil {
		return fmt.Errorf("encrypting feed information: %w", err)
	}

	envelope := models.EncryptedData{
		Format:           res.Format,
		KeyID:            f.Feed.EncryptedFeedInformation.KeyID,
		Nonce:            codecx.EncodeBase64(res.Nonce),
		CiphertextBase64: codecx.EncodeBase64(res.Ciphertext),
		Compression:      res.Compression,
	}

	cmd := updateFeedCommand{FeedID: f.Feed.FeedID, EncryptedFeedInformation: envelope}
	if err := s.bus.SendCommand(ctx, transport.SubjectUpdateFeed, cmd); err != nil {
		return err
	}

	// Keep the cached record in step with what the server now holds.
	updated := f.Feed
	updated.EncryptedFeedInformation = envelope
	if err := feedsrepo.NewSQLiteRepository(s.db).Upsert(ctx, &updated); err != nil {
		s.log.Warn(ctx, "feed cache update failed", "feed_id", f.Feed.FeedID, "error", err)
	}
	return nil
}

func (s *feedService) DeleteFeed(ctx context.Context, feedID string) error {
	cmd := map[string]string{"feed_id": feedID}
	if err := s.bus.SendCommand(ctx, transport.SubjectDeleteFeed, cmd); err != nil {
		return err
	}

	if err := feedsrepo.NewSQLiteRepository(s.db).DeleteByID(ctx, feedID); err != nil {
		s.log.Warn(ctx, "feed cache delete failed", "feed_id", feedID, "error", err)
	}
	return nil
}
