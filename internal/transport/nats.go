package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/dmitrijs2005/feedkeeper/internal/keyring"
	"github.com/dmitrijs2005/feedkeeper/internal/logging"
)

// Bus subjects served by the collector backend.
const (
	SubjectAuthLogin     = "collector.auth.login"
	SubjectGetFeeds      = "collector.feeds.list"
	SubjectGetFeedData   = "collector.feeds.data"
	SubjectGetFeedViews  = "collector.feeds.views"
	SubjectGetViewData   = "collector.views.data"
	SubjectDecryptKeys   = "collector.keys.decrypt"
	SubjectFilehostToken = "collector.filehost.token"
	SubjectAddFeed       = "collector.feeds.add"
	SubjectUpdateFeed    = "collector.feeds.update"
	SubjectDeleteFeed    = "collector.feeds.delete"
)

const (
	authHeader      = "Authorization"
	requestIDHeader = "X-Request-Id"
)

// requester is the slice of *nats.Conn the connection needs. Tests substitute
// an in-process implementation.
type requester interface {
	RequestMsgWithContext(ctx context.Context, msg *nats.Msg) (*nats.Msg, error)
	Drain() error
}

// NatsConnection implements Connection over a NATS request/reply bus.
type NatsConnection struct {
	nc      requester
	log     logging.Logger
	timeout time.Duration
	token   string
}

// NewNatsConnection dials the bus. A positive timeout bounds every exchange;
// zero leaves deadlines to the caller's context.
func NewNatsConnection(url string, timeout time.Duration, log logging.Logger) (*NatsConnection, error) {
	nc, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", url, err)
	}
	return &NatsConnection{nc: nc, log: log, timeout: timeout}, nil
}

func (c *NatsConnection) Close() {
	if err := c.nc.Drain(); err != nil {
		c.log.Warn(context.Background(), "drain failed", "error", err)
	}
}

// request marshals req, performs the exchange and unmarshals the reply into
// resp. Bus-level failures map to ErrUnavailable.
func (c *NatsConnection) request(ctx context.Context, subject string, req any, resp any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	msg := nats.NewMsg(subject)
	msg.Data = body
	msg.Header.Set(requestIDHeader, uuid.NewString())
	if c.token != "" {
		msg.Header.Set(authHeader, "Bearer "+c.token)
	}

	reply, err := c.nc.RequestMsgWithContext(ctx, msg)
	if err != nil {
		if errors.Is(err, nats.ErrNoResponders) || errors.Is(err, nats.ErrTimeout) {
			return fmt.Errorf("%w: %s", ErrUnavailable, subject)
		}
		return fmt.Errorf("request %s: %w", subject, err)
	}

	if err := json.Unmarshal(reply.Data, resp); err != nil {
		return fmt.Errorf("decoding reply from %s: %w", subject, err)
	}
	return nil
}

func (c *NatsConnection) Authenticate(ctx context.Context, username, password string) error {
	req := map[string]string{"username": username, "password": password}

	var resp authResponse
	if err := c.request(ctx, SubjectAuthLogin, req, &resp); err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Err)
	}

	c.token = resp.Token
	return nil
}

func (c *NatsConnection) GetFeeds(ctx context.Context) (*FeedsResponse, error) {
	var resp FeedsResponse
	if err := c.request(ctx, SubjectGetFeeds, struct{}{}, &resp); err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return &resp, nil
}

func (c *NatsConnection) GetFeedData(ctx context.Context, q DataQuery) (*DataItemsResponse, error) {
	var resp DataItemsResponse
	if err := c.request(ctx, SubjectGetFeedData, q, &resp); err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return &resp, nil
}

func (c *NatsConnection) GetFeedViews(ctx context.Context, feedID string) (*FeedViewsResponse, error) {
	req := map[string]string{"feed_id": feedID}

	var resp FeedViewsResponse
	if err := c.request(ctx, SubjectGetFeedViews, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return &resp, nil
}

func (c *NatsConnection) GetFeedViewData(ctx context.Context, q ViewDataQuery) (*FeedViewDataResponse, error) {
	var resp FeedViewDataResponse
	if err := c.request(ctx, SubjectGetViewData, q, &resp); err != nil {
		return nil, err
	}
	if !resp.Ok {
		return nil, fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return &resp, nil
}

// DecryptKeys forwards a response's key bundle to the key service, which
// unwraps the secrets for this session and answers with a key dispatch.
func (c *NatsConnection) DecryptKeys(ctx context.Context, keys json.RawMessage) (*keyring.KeyDispatch, error) {
	req := map[string]json.RawMessage{"keys": keys}

	var resp keyring.KeyDispatch
	if err := c.request(ctx, SubjectDecryptKeys, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *NatsConnection) GetFilehostToken(ctx context.Context) (string, error) {
	var resp authResponse
	if err := c.request(ctx, SubjectFilehostToken, struct{}{}, &resp); err != nil {
		return "", err
	}
	if !resp.Ok {
		return "", fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return resp.Token, nil
}

func (c *NatsConnection) SendCommand(ctx context.Context, subject string, payload any) error {
	var resp commandResponse
	if err := c.request(ctx, subject, payload, &resp); err != nil {
		return err
	}
	if !resp.Ok {
		return fmt.Errorf("%w: %s", ErrServer, resp.Err)
	}
	return nil
}
