// Package telegram provides access to Telegram through an MTProto
// gateway sidecar. Each account session gets its own rate-limited
// HTTP client; the pool hands out sessions and tracks flood-waits and
// bans, so that callers never have to pick an account themselves.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Entity is a resolved channel peer.
type Entity struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Username string `json:"username,omitempty"`
}

// FullChannel carries the extended channel information.
type FullChannel struct {
	ID           int64  `json:"id"`
	About        string `json:"about"`
	Participants int    `json:"participants_count"`
}

// Message is a channel post. Views is nil for service messages, which
// have no view counter.
type Message struct {
	ID    int       `json:"id"`
	Date  time.Time `json:"date"`
	Views *int      `json:"views,omitempty"`
}

// Client is one account session's view of the gateway.
type Client interface {
	// ResolveEntity resolves a channel link to a peer. For private
	// invite links of channels the session has not joined, it fails
	// with ErrPeerUnresolved.
	ResolveEntity(ctx context.Context, link string) (*Entity, error)
	// ImportInvite joins a private channel by invite hash.
	ImportInvite(ctx context.Context, hash string) error
	FullChannel(ctx context.Context, peer int64) (*FullChannel, error)
	// Messages returns up to limit posts older than offsetID (or the
	// newest posts, if offsetID is zero), newest first.
	Messages(ctx context.Context, peer int64, offsetID, limit int) ([]Message, error)
	ProfilePhoto(ctx context.Context, peer int64) ([]byte, error)
}

// Errors the gateway reports, mirroring Telegram's RPC errors.
var (
	ErrPeerUnresolved     = errors.New("peer cannot be resolved from link")
	ErrInviteExpired      = errors.New("invite link has expired")
	ErrInviteRequested    = errors.New("join request sent; approval pending")
	ErrAlreadyParticipant = errors.New("session is already a participant")
	ErrUserBanned         = errors.New("session is banned or deactivated")
)

// FloodWaitError is returned when Telegram rate limits the session.
type FloodWaitError struct {
	Seconds int
}

func (e *FloodWaitError) Error() string {
	return fmt.Sprintf("flood wait: retry in %d seconds", e.Seconds)
}
