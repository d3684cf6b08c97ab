// Package fetch turns raw bus responses into decrypted pages. Each fetch
// resolves the response's key bundle once, hands the key map to the entity
// decryptors and reports a page total derived from the server's estimate.
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/feedkeeper/internal/feeds"
	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
	"github.com/dmitrijs2005/feedkeeper/internal/transport"
)

// Querier is the slice of the bus connection the pipeline reads through.
type Querier interface {
	GetFeeds(ctx context.Context) (*transport.FeedsResponse, error)
	GetFeedData(ctx context.Context, q transport.DataQuery) (*transport.DataItemsResponse, error)
	GetFeedViews(ctx context.Context, feedID string) (*transport.FeedViewsResponse, error)
	GetFeedViewData(ctx context.Context, q transport.ViewDataQuery) (*transport.FeedViewDataResponse, error)
	DecryptKeys(ctx context.Context, keys json.RawMessage) (*keyring.KeyDispatch, error)
}

type Pipeline struct {
	conn Querier
	log  logging.Logger
}

func NewPipeline(conn Querier, log logging.Logger) *Pipeline {
	return &Pipeline{conn: conn, log: log}
}

// resolveKeys opens a response's key bundle into a usable key map. A nil
// bundle yields an empty map.
//
// A dispatch that succeeded but carried no keys (keyring.ErrNoKeysAvailable)
// is reported as ok=false with a nil map: the caller renders empty content
// instead of an error state.
func (p *Pipeline) resolveKeys(ctx context.Context, raw json.RawMessage) (keys keyring.KeyMap, ok bool, err error) {
	if len(raw) == 0 {
		return keyring.KeyMap{}, true, nil
	}
	dispatch, err := p.conn.DecryptKeys(ctx, raw)
	if err != nil {
		return nil, false, fmt.Errorf("requesting key decryption: %w", err)
	}
	keys, err = keyring.Resolve(dispatch)
	if err != nil {
		if errors.Is(err, keyring.ErrNoKeysAvailable) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return keys, true, nil
}

// FeedList is a decrypted feed listing plus the key map it was opened with,
// kept for later re-encryption of edits.
type FeedList struct {
	Feeds []models.DecryptedFeed
	Keys  keyring.KeyMap
}

func (p *Pipeline) FetchFeeds(ctx context.Context) (*FeedList, error) {
	resp, err := p.conn.GetFeeds(ctx)
	if err != nil {
		return nil, err
	}

	// Nothing to decrypt, nothing to unwrap.
	if len(resp.Feeds) == 0 {
		return &FeedList{Feeds: []models.DecryptedFeed{}, Keys: keyring.KeyMap{}}, nil
	}

	keys, ok, err := p.resolveKeys(ctx, resp.Keys)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &FeedList{Feeds: []models.DecryptedFeed{}, Keys: keyring.KeyMap{}}, nil
	}

	return &FeedList{
		Feeds: feeds.DecryptFeeds(ctx, resp.Feeds, keys, p.log),
		Keys:  keys,
	}, nil
}

// ItemsPage is one decrypted page of a feed's items, together with the owning
// feed. The feed is load-bearing: its decryption failure fails the fetch.
type ItemsPage struct {
	Feed           *models.DecryptedFeed
	Items          []models.DecryptedDataItem
	Keys           keyring.KeyMap
	EstimatedCount int
	PageCount      int
}

func (p *Pipeline) FetchDataItems(ctx context.Context, feedID string, q PageQuery) (*ItemsPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	resp, err := p.conn.GetFeedData(ctx, transport.DataQuery{
		FeedID:    feedID,
		Skip:      q.skip(),
		Limit:     q.PageSize,
		StartDate: q.StartDate,
		EndDate:   q.EndDate,
	})
	if err != nil {
		return nil, err
	}

	page := &ItemsPage{
		Items:          []models.DecryptedDataItem{},
		Keys:           keyring.KeyMap{},
		EstimatedCount: resp.EstimatedCount,
		PageCount:      PageCount(resp.EstimatedCount, q.PageSize),
	}
	if resp.Feed == nil && len(resp.Items) == 0 {
		return page, nil
	}

	keys, ok, err := p.resolveKeys(ctx, resp.Keys)
	if err != nil {
		return nil, err
	}
	if !ok {
		return page, nil
	}

	if resp.Feed != nil {
		decrypted, err := feeds.DecryptFeed(*resp.Feed, keys)
		if err != nil {
			return nil, err
		}
		page.Feed = decrypted
	}
	page.Keys = keys
	page.Items = feeds.DecryptDataItems(ctx, resp.Items, keys, p.log)
	return page, nil
}

// ViewList pairs a feed's decrypted views with the owning feed. The feed is
// load-bearing for rendering, so its decryption failure fails the whole
// fetch; individual views are skipped.
type ViewList struct {
	Feed  *models.DecryptedFeed
	Views []models.DecryptedFeedView
	Keys  keyring.KeyMap
}

func (p *Pipeline) FetchFeedViews(ctx context.Context, feedID string) (*ViewList, error) {
	resp, err := p.conn.GetFeedViews(ctx, feedID)
	if err != nil {
		return nil, err
	}

	if resp.Feed == nil && len(resp.Views) == 0 {
		return &ViewList{Views: []models.DecryptedFeedView{}, Keys: keyring.KeyMap{}}, nil
	}

	keys, ok, err := p.resolveKeys(ctx, resp.Keys)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ViewList{Views: []models.DecryptedFeedView{}, Keys: keyring.KeyMap{}}, nil
	}

	out := &ViewList{
		Views: feeds.DecryptFeedViews(ctx, resp.Views, keys, p.log),
		Keys:  keys,
	}
	if resp.Feed != nil {
		decrypted, err := feeds.DecryptFeed(*resp.Feed, keys)
		if err != nil {
			return nil, err
		}
		out.Feed = decrypted
	}
	return out, nil
}

// ViewItemsPage is one decrypted page of a view's items.
type ViewItemsPage struct {
	Items          []models.DecryptedFeedViewItem
	Keys           keyring.KeyMap
	EstimatedCount int
	PageCount      int
}

func (p *Pipeline) FetchFeedViewData(ctx context.Context, feedViewID string, q PageQuery) (*ViewItemsPage, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	resp, err := p.conn.GetFeedViewData(ctx, transport.ViewDataQuery{
		FeedViewID: feedViewID,
		Skip:       q.skip(),
		Limit:      q.PageSize,
	})
	if err != nil {
		return nil, err
	}

	page := &ViewItemsPage{
		Items:          []models.DecryptedFeedViewItem{},
		Keys:           keyring.KeyMap{},
		EstimatedCount: resp.EstimatedCount,
		PageCount:      PageCount(resp.EstimatedCount, q.PageSize),
	}
	if len(resp.Items) == 0 {
		return page, nil
	}

	keys, ok, err := p.resolveKeys(ctx, resp.Keys)
	if err != nil {
		return nil, err
	}
	if !ok {
		return page, nil
	}
	page.Keys = keys
	page.Items = feeds.DecryptFeedViewItems(ctx, resp.Items, keys, p.log)
	return page, nil
}
