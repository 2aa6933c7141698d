package tgwatch

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Channel is the record we keep (and report) for a tracked Telegram
// channel: identity plus the numbers from the most recent parse.
type Channel struct {
	ID          int64  `json:"channel_id"`
	Link        string `json:"link"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Subscribers int    `json:"subscribers"`
	Views24h    int    `json:"views"`
	PostsCount  int    `json:"posts_count"`
}

// ChannelInfo is a stored channel together with the time its latest
// statistics snapshot was recorded.
type ChannelInfo struct {
	LastUpdate int64   `json:"last_update"`
	Channel    Channel `json:"channel"`
}

// StatsItem is one historical statistics snapshot for a channel.
type StatsItem struct {
	Views       int   `json:"views"`
	Subscribers int   `json:"subscribers"`
	PostsCount  int   `json:"posts_count"`
	Time        int64 `json:"time"`
}

// StatsSort selects the ordering of statistics snapshots.
type StatsSort string

const (
	SortNewest StatsSort = "newest"
	SortOldest StatsSort = "oldest"
)

func ParseStatsSort(s string) (StatsSort, error) {
	switch StatsSort(s) {
	case "":
		return SortNewest, nil
	case SortNewest:
		return SortNewest, nil
	case SortOldest:
		return SortOldest, nil
	}
	return "", fmt.Errorf(`invalid sort %q; expected "newest" or "oldest"`, s)
}

// NormalizeLink strips the URL scheme from a channel link. Links are
// stored and looked up in this form, so that t.me/chan and
// https://t.me/chan name the same channel.
func NormalizeLink(link string) string {
	link = strings.TrimPrefix(link, "https://")
	link = strings.TrimPrefix(link, "http://")
	return link
}

// InviteHash extracts the invite hash from a private channel link,
// e.g. "t.me/+AbCdEf" or "t.me/joinchat/AbCdEf".
func InviteHash(link string) string {
	parts := strings.Split(link, "/")
	hash := parts[len(parts)-1]
	return strings.TrimPrefix(hash, "+")
}

// Window24h is the look-back period over which post counts and views
// are collected.
const Window24h = 24 * time.Hour

// Token is the bearer credential sent by API clients. The standalone
// server ignores it; it is honoured when the API is fronted by an
// authenticating proxy.
type Token string

func (t Token) Set(req *http.Request) {
	if string(t) != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Scope-Probe token=%s", t))
	}
}
