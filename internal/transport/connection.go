// Package transport talks to the collector services over the message bus.
// Every exchange is request/reply with JSON bodies; responses carry an "ok"
// flag and, for encrypted payloads, a key bundle the key service can open.
package transport

import (
	"context"
	"encoding/json"

	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
	"github.com/dmitrijs2005/feedkeeper/internal/models"
)

// Connection is the client's view of the bus. Implementations are safe for
// concurrent use.
type Connection interface {
	Close()
	Authenticate(ctx context.Context, username, password string) error
	GetFeeds(ctx context.Context) (*FeedsResponse, error)
	GetFeedData(ctx context.Context, q DataQuery) (*DataItemsResponse, error)
	GetFeedViews(ctx context.Context, feedID string) (*FeedViewsResponse, error)
	GetFeedViewData(ctx context.Context, q ViewDataQuery) (*FeedViewDataResponse, error)
	DecryptKeys(ctx context.Context, keys json.RawMessage) (*keyring.KeyDispatch, error)
	GetFilehostToken(ctx context.Context) (string, error)
	SendCommand(ctx context.Context, subject string, payload any) error
}

// DataQuery selects a page of a feed's items. StartDate/EndDate are unix
// millisecond bounds; zero means unbounded.
type DataQuery struct {
	FeedID    string `json:"feed_id"`
	Skip      int    `json:"skip"`
	Limit     int    `json:"limit"`
	StartDate int64  `json:"start_date,omitempty"`
	EndDate   int64  `json:"end_date,omitempty"`
}

// ViewDataQuery selects a page of a view's items.
type ViewDataQuery struct {
	FeedViewID string `json:"feed_view_id"`
	Skip       int    `json:"skip"`
	Limit      int    `json:"limit"`
}

type FeedsResponse struct {
	Ok    bool            `json:"ok"`
	Err   string          `json:"err,omitempty"`
	Feeds []models.Feed   `json:"feeds"`
	Keys  json.RawMessage `json:"keys,omitempty"`
}

// DataItemsResponse carries a page of a feed's raw items. The owning feed
// record is echoed back so the listing can render without a separate fetch.
type DataItemsResponse struct {
	Ok             bool              `json:"ok"`
	Err            string            `json:"err,omitempty"`
	Feed           *models.Feed      `json:"feed,omitempty"`
	Items          []models.DataItem `json:"items"`
	Keys           json.RawMessage   `json:"keys,omitempty"`
	EstimatedCount int               `json:"estimated_count"`
}

// FeedViewsResponse lists a feed's views and echoes back the owning feed
// record so a deep link can render without a separate feed fetch.
type FeedViewsResponse struct {
	Ok    bool              `json:"ok"`
	Err   string            `json:"err,omitempty"`
	Feed  *models.Feed      `json:"feed,omitempty"`
	Views []models.FeedView `json:"feed_views"`
	Keys  json.RawMessage   `json:"keys,omitempty"`
}

type FeedViewDataResponse struct {
	Ok             bool                      `json:"ok"`
	Err            string                    `json:"err,omitempty"`
	Items          []models.FeedViewDataItem `json:"items"`
	Keys           json.RawMessage           `json:"keys,omitempty"`
	EstimatedCount int                       `json:"estimated_count"`
}

type authResponse struct {
	Ok    bool   `json:"ok"`
	Err   string `json:"err,omitempty"`
	Token string `json:"token,omitempty"`
}

type commandResponse struct {
	Ok  bool   `json:"ok"`
	Err string `json:"err,omitempty"`
}
