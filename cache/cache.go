// Package cache is a read-through cache for parsed channel info,
// keyed by normalized channel link. It keeps repeat lookups of
// popular channels from burning Telegram sessions.
package cache

import (
	"errors"
	"strings"
	"time"

	"github.com/tgwatch/tgwatch"
)

var ErrNotCached = errors.New("channel info not in cache")

type Reader interface {
	GetKey(k Keyer) ([]byte, time.Time, error)
}

type Writer interface {
	SetKey(k Keyer, v []byte) error
}

type Client interface {
	Reader
	Writer
	Stop()
}

// Keyer provides the key under which to store the data.
type Keyer interface {
	Key() string
}

type channelInfoKey struct {
	link string
}

func NewChannelInfoKey(link string) Keyer {
	return &channelInfoKey{tgwatch.NormalizeLink(link)}
}

func (k *channelInfoKey) Key() string {
	return strings.Join([]string{
		"channelinfov1", // Just to version in case we need to change format later.
		k.link,
	}, "|")
}
