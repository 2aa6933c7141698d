package telegram

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

// gatewayError is the error envelope the gateway uses for non-2xx
// responses.
type gatewayError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Seconds int    `json:"seconds,omitempty"`
}

func (e *gatewayError) Error() string {
	return e.Type + ": " + e.Message
}

// asDomain translates the envelope into the package's error values.
func (e *gatewayError) asDomain() error {
	switch e.Type {
	case "flood_wait":
		return &FloodWaitError{Seconds: e.Seconds}
	case "peer_unresolved":
		return ErrPeerUnresolved
	case "invite_expired":
		return ErrInviteExpired
	case "invite_requested":
		return ErrInviteRequested
	case "already_participant":
		return ErrAlreadyParticipant
	case "user_banned":
		return ErrUserBanned
	}
	return e
}

// ClientConfig defines how a GatewayClient should be constructed.
type ClientConfig struct {
	BaseURL string
	Session string
	Timeout time.Duration
	// Requests per second to the gateway, and burst size. Zero means
	// no limiting.
	RPS, Burst int
}

// GatewayClient implements Client against the MTProto gateway's HTTP
// API, authenticating with a per-account session token.
type GatewayClient struct {
	rest *resty.Client
}

func NewGatewayClient(config ClientConfig) *GatewayClient {
	rest := resty.New().
		SetHostURL(config.BaseURL).
		SetHeader("X-Telegram-Session", config.Session)
	if config.Timeout > 0 {
		rest.SetTimeout(config.Timeout)
	}
	if config.RPS > 0 {
		rest.SetTransport(RateLimitedTransport(http.DefaultTransport, config.RPS, config.Burst))
	}
	return &GatewayClient{rest: rest}
}

func (c *GatewayClient) ResolveEntity(ctx context.Context, link string) (*Entity, error) {
	var entity Entity
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("link", link).
		SetResult(&entity).
		SetError(&gatewayError{}).
		Get("/v1/entity")
	if err != nil {
		return nil, errors.Wrap(err, "resolving entity")
	}
	if resp.IsError() {
		return nil, gwErr(resp)
	}
	return &entity, nil
}

func (c *GatewayClient) ImportInvite(ctx context.Context, hash string) error {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("hash", hash).
		SetError(&gatewayError{}).
		Post("/v1/invites/import")
	if err != nil {
		return errors.Wrap(err, "importing invite")
	}
	if resp.IsError() {
		return gwErr(resp)
	}
	return nil
}

func (c *GatewayClient) FullChannel(ctx context.Context, peer int64) (*FullChannel, error) {
	var full FullChannel
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("peer", strconv.FormatInt(peer, 10)).
		SetResult(&full).
		SetError(&gatewayError{}).
		Get("/v1/channels/full")
	if err != nil {
		return nil, errors.Wrap(err, "getting full channel")
	}
	if resp.IsError() {
		return nil, gwErr(resp)
	}
	return &full, nil
}

func (c *GatewayClient) Messages(ctx context.Context, peer int64, offsetID, limit int) ([]Message, error) {
	var messages []Message
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"peer":      strconv.FormatInt(peer, 10),
			"offset_id": strconv.Itoa(offsetID),
			"limit":     strconv.Itoa(limit),
		}).
		SetResult(&messages).
		SetError(&gatewayError{}).
		Get("/v1/messages")
	if err != nil {
		return nil, errors.Wrap(err, "getting messages")
	}
	if resp.IsError() {
		return nil, gwErr(resp)
	}
	return messages, nil
}

func (c *GatewayClient) ProfilePhoto(ctx context.Context, peer int64) ([]byte, error) {
	resp, err := c.rest.R().
		SetContext(ctx).
		SetQueryParam("peer", strconv.FormatInt(peer, 10)).
		SetError(&gatewayError{}).
		Get("/v1/photo")
	if err != nil {
		return nil, errors.Wrap(err, "downloading profile photo")
	}
	if resp.StatusCode() == http.StatusNoContent {
		return nil, nil
	}
	if resp.IsError() {
		return nil, gwErr(resp)
	}
	return resp.Body(), nil
}

func gwErr(resp *resty.Response) error {
	if e, ok := resp.Error().(*gatewayError); ok && e.Type != "" {
		return e.asDomain()
	}
	return errors.Errorf("gateway returned %s", resp.Status())
}
