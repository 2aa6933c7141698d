// Package store persists channels and their statistics snapshots.
//
// A channel row carries the identity of the channel (id, link, name,
// description); every successful parse appends a snapshot row with the
// numbers observed at that moment. Reads join the channel with its
// most recent snapshot.
package store

import (
	"github.com/tgwatch/tgwatch"
)

type Store interface {
	// UpsertChannel records the result of a parse: the channel row is
	// created or updated, and a statistics snapshot is appended. It
	// reports whether the channel was newly created.
	UpsertChannel(c tgwatch.Channel) (created bool, err error)
	Channel(id int64) (tgwatch.ChannelInfo, error)
	ChannelByLink(link string) (tgwatch.ChannelInfo, error)
	ChannelIDs() ([]int64, error)
	Statistics(id int64, sort tgwatch.StatsSort) ([]tgwatch.StatsItem, error)
}
