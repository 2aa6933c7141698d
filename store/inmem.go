package store

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/tgwatch/tgwatch"
)

// NewInMem returns a Store keeping everything in process memory. Used
// for tests and `memory://` runs; it is safe for concurrent use.
func NewInMem() Store {
	return &inmem{
		channels:  map[int64]tgwatch.Channel{},
		snapshots: map[int64][]snapshot{},
	}
}

type snapshot struct {
	subscribers int
	views24h    int
	postsCount  int
	recordedAt  time.Time
}

type inmem struct {
	mtx       sync.Mutex
	channels  map[int64]tgwatch.Channel
	snapshots map[int64][]snapshot
}

func (s *inmem) UpsertChannel(c tgwatch.Channel) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c.Link = tgwatch.NormalizeLink(c.Link)
	_, exists := s.channels[c.ID]
	s.channels[c.ID] = c
	s.snapshots[c.ID] = append(s.snapshots[c.ID], snapshot{
		subscribers: c.Subscribers,
		views24h:    c.Views24h,
		postsCount:  c.PostsCount,
		recordedAt:  time.Now(),
	})
	return !exists, nil
}

func (s *inmem) Channel(id int64) (tgwatch.ChannelInfo, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	c, ok := s.channels[id]
	if !ok {
		return tgwatch.ChannelInfo{}, tgwatch.ErrChannelNotFound(strconv.FormatInt(id, 10))
	}
	return s.infoFor(c, strconv.FormatInt(id, 10))
}

func (s *inmem) ChannelByLink(link string) (tgwatch.ChannelInfo, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	link = tgwatch.NormalizeLink(link)
	for _, c := range s.channels {
		if c.Link == link {
			return s.infoFor(c, link)
		}
	}
	return tgwatch.ChannelInfo{}, tgwatch.ErrChannelNotFound(link)
}

func (s *inmem) infoFor(c tgwatch.Channel, spec string) (tgwatch.ChannelInfo, error) {
	snaps := s.snapshots[c.ID]
	if len(snaps) == 0 {
		return tgwatch.ChannelInfo{}, tgwatch.ErrStatsNotFound(spec)
	}
	latest := snaps[len(snaps)-1]
	c.Subscribers = latest.subscribers
	c.Views24h = latest.views24h
	c.PostsCount = latest.postsCount
	return tgwatch.ChannelInfo{
		LastUpdate: latest.recordedAt.Unix(),
		Channel:    c,
	}, nil
}

func (s *inmem) ChannelIDs() ([]int64, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	ids := make([]int64, 0, len(s.channels))
	for id := range s.channels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (s *inmem) Statistics(id int64, statsSort tgwatch.StatsSort) ([]tgwatch.StatsItem, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.channels[id]; !ok {
		return nil, tgwatch.ErrChannelNotFound(strconv.FormatInt(id, 10))
	}
	snaps := s.snapshots[id]
	items := make([]tgwatch.StatsItem, 0, len(snaps))
	for _, snap := range snaps {
		items = append(items, tgwatch.StatsItem{
			Views:       snap.views24h,
			Subscribers: snap.subscribers,
			PostsCount:  snap.postsCount,
			Time:        snap.recordedAt.Unix(),
		})
	}
	if statsSort != tgwatch.SortOldest {
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
	}
	return items, nil
}
