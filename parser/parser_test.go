package parser

import (
	"context"
	"testing"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/telegram"
)

func intp(v int) *int { return &v }

func newTestParser(client telegram.Client) (*Parser, *telegram.Pool) {
	pool := telegram.NewPool(log.NewNopLogger())
	pool.Add("test", client)
	p := New(pool, Metrics{FetchDuration: discard.NewHistogram()}, log.NewNopLogger())
	p.retryDelay = time.Millisecond
	return p, pool
}

func publicChannelClient() *telegram.MockClient {
	now := time.Now()
	return &telegram.MockClient{
		ResolveEntityFunc: func(_ context.Context, link string) (*telegram.Entity, error) {
			return &telegram.Entity{ID: 42, Title: "Some Channel", Username: "somechannel"}, nil
		},
		FullChannelFunc: func(_ context.Context, peer int64) (*telegram.FullChannel, error) {
			return &telegram.FullChannel{ID: 42, About: "news", Participants: 100}, nil
		},
		MessagesFunc: func(_ context.Context, peer int64, offsetID, limit int) ([]telegram.Message, error) {
			return []telegram.Message{
				{ID: 9, Date: now.Add(-1 * time.Hour), Views: intp(500)},
				{ID: 8, Date: now.Add(-2 * time.Hour)},
				{ID: 7, Date: now.Add(-3 * time.Hour), Views: intp(300)},
				{ID: 6, Date: now.Add(-30 * time.Hour), Views: intp(100)},
			}, nil
		},
		ProfilePhotoFunc: func(_ context.Context, peer int64) ([]byte, error) {
			return []byte("logo-bytes"), nil
		},
	}
}

func TestChannelInfo(t *testing.T) {
	p, _ := newTestParser(publicChannelClient())

	channel, logo, err := p.ChannelInfo(context.Background(), "https://t.me/somechannel", false)
	if err != nil {
		t.Fatal(err)
	}
	if logo != nil {
		t.Error("expected no logo when not requested")
	}
	if channel.ID != 42 || channel.Name != "Some Channel" || channel.Description != "news" {
		t.Errorf("unexpected channel %+v", channel)
	}
	if channel.Link != "t.me/somechannel" {
		t.Errorf("expected normalized link, got %q", channel.Link)
	}
	if channel.Subscribers != 100 {
		t.Errorf("expected 100 subscribers, got %d", channel.Subscribers)
	}
	// Three posts inside the 24h window; the out-of-window post and
	// its views are not counted.
	if channel.PostsCount != 3 {
		t.Errorf("expected 3 posts, got %d", channel.PostsCount)
	}
	if channel.Views24h != 300 {
		t.Errorf("expected views 300, got %d", channel.Views24h)
	}
}

func TestChannelInfoWithLogo(t *testing.T) {
	p, _ := newTestParser(publicChannelClient())

	_, logo, err := p.ChannelInfo(context.Background(), "t.me/somechannel", true)
	if err != nil {
		t.Fatal(err)
	}
	if string(logo) != "logo-bytes" {
		t.Errorf("expected logo bytes, got %q", logo)
	}
}

func TestChannelInfoLogoFailureIsIgnored(t *testing.T) {
	client := publicChannelClient()
	client.ProfilePhotoFunc = func(_ context.Context, peer int64) ([]byte, error) {
		return nil, telegram.ErrPeerUnresolved
	}
	p, _ := newTestParser(client)

	channel, logo, err := p.ChannelInfo(context.Background(), "t.me/somechannel", true)
	if err != nil {
		t.Fatal(err)
	}
	if logo != nil {
		t.Error("expected no logo on download failure")
	}
	if channel.ID != 42 {
		t.Errorf("expected parse to succeed regardless, got %+v", channel)
	}
}

func TestPrivateChannelJoin(t *testing.T) {
	client := publicChannelClient()
	var resolves, imports int
	client.ResolveEntityFunc = func(_ context.Context, link string) (*telegram.Entity, error) {
		resolves++
		// Unresolvable until the join request has gone through, and
		// even then not on the first retry.
		if resolves < 3 {
			return nil, telegram.ErrPeerUnresolved
		}
		return &telegram.Entity{ID: 42, Title: "Private Channel"}, nil
	}
	client.ImportInviteFunc = func(_ context.Context, hash string) error {
		imports++
		if hash != "AbCdEf" {
			t.Errorf("expected invite hash AbCdEf, got %q", hash)
		}
		return telegram.ErrInviteRequested
	}
	p, _ := newTestParser(client)

	channel, _, err := p.ChannelInfo(context.Background(), "t.me/+AbCdEf", false)
	if err != nil {
		t.Fatal(err)
	}
	if imports != 1 {
		t.Errorf("expected one invite import, got %d", imports)
	}
	if channel.Name != "Private Channel" {
		t.Errorf("unexpected channel %+v", channel)
	}
}

func TestInviteExpired(t *testing.T) {
	client := publicChannelClient()
	client.ResolveEntityFunc = func(_ context.Context, link string) (*telegram.Entity, error) {
		return nil, telegram.ErrPeerUnresolved
	}
	client.ImportInviteFunc = func(_ context.Context, hash string) error {
		return telegram.ErrInviteExpired
	}
	p, _ := newTestParser(client)

	_, _, err := p.ChannelInfo(context.Background(), "t.me/+stale", false)
	terr, ok := err.(*tgwatch.Error)
	if !ok || terr.Type != tgwatch.User {
		t.Fatalf("expected a user error for an expired invite, got %v", err)
	}
}

func TestFloodWait(t *testing.T) {
	client := publicChannelClient()
	client.ResolveEntityFunc = func(_ context.Context, link string) (*telegram.Entity, error) {
		return nil, &telegram.FloodWaitError{Seconds: 42}
	}
	p, _ := newTestParser(client)

	_, _, err := p.ChannelInfo(context.Background(), "t.me/somechannel", false)
	if !tgwatch.IsFloodWait(err) {
		t.Fatalf("expected flood wait error, got %v", err)
	}
	if err.(*tgwatch.Error).RetryAfterSeconds != 42 {
		t.Errorf("expected retry-after of 42s, got %d", err.(*tgwatch.Error).RetryAfterSeconds)
	}
}

func TestFetchTimeoutBansSession(t *testing.T) {
	client := publicChannelClient()
	client.MessagesFunc = func(ctx context.Context, peer int64, offsetID, limit int) ([]telegram.Message, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	p, pool := newTestParser(client)
	p.fetchTimeout = 50 * time.Millisecond

	_, _, err := p.ChannelInfo(context.Background(), "t.me/somechannel", false)
	if err == nil {
		t.Fatal("expected a timeout error")
	}

	// The only session should now be banned
	if _, err := pool.Acquire(context.Background()); err != telegram.ErrNoSessions {
		t.Errorf("expected the session to be banned, got %v", err)
	}
}
