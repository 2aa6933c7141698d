// Package parser turns a channel link into channel metadata and
// 24-hour statistics, using a session from the telegram pool.
package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-kit/kit/log"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/telegram"
)

const (
	// How long a single channel fetch may take before we assume the
	// session has been silently banned.
	defaultFetchTimeout = 60 * time.Second

	// After a join request is sent for a private channel, how often and
	// how many times to retry resolving it.
	inviteRetryDelay = 10 * time.Second
	inviteRetries    = 3

	messagesPageSize = 100
)

type Parser struct {
	pool    *telegram.Pool
	metrics Metrics
	logger  log.Logger

	fetchTimeout time.Duration
	retryDelay   time.Duration
}

func New(pool *telegram.Pool, metrics Metrics, logger log.Logger) *Parser {
	return &Parser{
		pool:         pool,
		metrics:      metrics,
		logger:       logger,
		fetchTimeout: defaultFetchTimeout,
		retryDelay:   inviteRetryDelay,
	}
}

// ChannelInfo fetches a channel's metadata and last-24h statistics,
// and optionally its logo. It acquires a session from the pool for the
// duration of the fetch; if the fetch times out, the session is marked
// banned, since a healthy session answers well within the limit.
func (p *Parser) ChannelInfo(ctx context.Context, link string, withLogo bool) (channel tgwatch.Channel, logo []byte, err error) {
	defer func(begin time.Time) {
		p.metrics.FetchDuration.With(
			"success", fmt.Sprint(err == nil),
		).Observe(time.Since(begin).Seconds())
	}(time.Now())

	session, err := p.pool.Acquire(ctx)
	if err != nil {
		return tgwatch.Channel{}, nil, tgwatch.CoverAllError(err)
	}
	defer session.Release()

	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	channel, logo, err = p.fetch(fetchCtx, session.Client, link, withLogo)
	if err != nil {
		if fetchCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			session.MarkBanned()
			p.logger.Log("link", link, "session", session.Name, "err", "fetch timed out; marking session banned")
			return tgwatch.Channel{}, nil, tgwatch.ErrUserBanned("timeout while getting channel info; session may be banned")
		}
		return tgwatch.Channel{}, nil, p.mapError(session, link, err)
	}
	return channel, logo, nil
}

// mapError translates session-level telegram errors into API errors,
// recording flood-waits and bans against the session on the way.
func (p *Parser) mapError(session *telegram.Session, link string, err error) error {
	switch e := err.(type) {
	case *tgwatch.Error:
		return e
	case *telegram.FloodWaitError:
		session.FloodWait(time.Duration(e.Seconds) * time.Second)
		return tgwatch.ErrFloodWait(e.Seconds)
	}
	if err == telegram.ErrUserBanned {
		session.MarkBanned()
		return tgwatch.ErrUserBanned(err.Error())
	}
	return tgwatch.CoverAllError(err)
}

func (p *Parser) fetch(ctx context.Context, client telegram.Client, link string, withLogo bool) (tgwatch.Channel, []byte, error) {
	entity, err := p.resolveEntity(ctx, client, link)
	if err != nil {
		return tgwatch.Channel{}, nil, err
	}

	full, err := client.FullChannel(ctx, entity.ID)
	if err != nil {
		return tgwatch.Channel{}, nil, err
	}

	views, count, err := p.scanPosts(ctx, client, entity.ID)
	if err != nil {
		return tgwatch.Channel{}, nil, err
	}

	var logo []byte
	if withLogo {
		logo, err = client.ProfilePhoto(ctx, entity.ID)
		if err != nil {
			// A missing logo never fails the parse
			p.logger.Log("link", link, "logo_err", err)
			logo = nil
			err = nil
		}
	}

	return tgwatch.Channel{
		ID:          full.ID,
		Link:        tgwatch.NormalizeLink(link),
		Name:        entity.Title,
		Description: full.About,
		Subscribers: full.Participants,
		Views24h:    views,
		PostsCount:  count,
	}, logo, nil
}

// resolveEntity resolves a link to a channel peer, joining private
// channels by invite hash when necessary.
func (p *Parser) resolveEntity(ctx context.Context, client telegram.Client, link string) (*telegram.Entity, error) {
	entity, err := client.ResolveEntity(ctx, link)
	switch err {
	case nil:
	case telegram.ErrPeerUnresolved:
		entity, err = p.joinPrivateChannel(ctx, client, link)
		if err != nil {
			switch e := err.(type) {
			case *telegram.FloodWaitError:
				return nil, e
			}
			switch err {
			case telegram.ErrInviteExpired:
				return nil, tgwatch.ErrInvalidChannelLink(link, err.Error())
			case telegram.ErrUserBanned:
				return nil, err
			default:
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, tgwatch.ErrInvalidChannelLink(link, err.Error())
			}
		}
	default:
		if _, ok := err.(*telegram.FloodWaitError); ok {
			return nil, err
		}
		if err == telegram.ErrUserBanned || ctx.Err() != nil {
			return nil, err
		}
		return nil, tgwatch.ErrInvalidChannelLink(link, err.Error())
	}
	if entity == nil {
		return nil, tgwatch.ErrCannotGetChannelInfo(link)
	}
	return entity, nil
}

func (p *Parser) joinPrivateChannel(ctx context.Context, client telegram.Client, link string) (*telegram.Entity, error) {
	hash := tgwatch.InviteHash(link)
	err := client.ImportInvite(ctx, hash)
	switch err {
	case nil:
	case telegram.ErrAlreadyParticipant:
		return client.ResolveEntity(ctx, link)
	case telegram.ErrInviteRequested:
		// The join needs approval; give it a few chances to come through.
		for i := 0; i < inviteRetries; i++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.retryDelay):
			}
			entity, err := client.ResolveEntity(ctx, link)
			if err == telegram.ErrPeerUnresolved {
				continue
			}
			return entity, err
		}
	default:
		return nil, err
	}
	return client.ResolveEntity(ctx, link)
}

// scanPosts walks messages newest-first until they fall outside the
// 24h window, counting posts and keeping the view counter of the last
// counted post that has one.
func (p *Parser) scanPosts(ctx context.Context, client telegram.Client, peer int64) (views, count int, err error) {
	cutoff := time.Now().Add(-tgwatch.Window24h)
	offsetID := 0
	for {
		messages, err := client.Messages(ctx, peer, offsetID, messagesPageSize)
		if err != nil {
			return 0, 0, err
		}
		if len(messages) == 0 {
			return views, count, nil
		}
		for _, msg := range messages {
			if msg.Date.Before(cutoff) {
				return views, count, nil
			}
			if msg.Views != nil {
				views = *msg.Views
			}
			count++
		}
		if len(messages) < messagesPageSize {
			return views, count, nil
		}
		offsetID = messages[len(messages)-1].ID
	}
}
