package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/db"
)

var storeCounter int

func setupSQL(t *testing.T) Store {
	storeCounter++
	source := fmt.Sprintf("memory://store-test-%d.db", storeCounter)
	if _, err := db.Migrate(source, "../db/migrations"); err != nil {
		t.Fatal(err)
	}
	s, err := NewSQL("ql-mem", source)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestStore(t *testing.T) {
	for name, setup := range map[string]func(*testing.T) Store{
		"sql":   setupSQL,
		"inmem": func(*testing.T) Store { return NewInMem() },
	} {
		t.Run(name, func(t *testing.T) {
			testStore(t, setup(t))
		})
	}
}

func testStore(t *testing.T, s Store) {
	// Nothing there yet
	if _, err := s.Channel(42); !tgwatch.IsMissing(err) {
		t.Fatalf("expected missing error, got %v", err)
	}
	if _, err := s.ChannelByLink("t.me/nothere"); !tgwatch.IsMissing(err) {
		t.Fatalf("expected missing error, got %v", err)
	}
	if _, err := s.Statistics(42, tgwatch.SortNewest); !tgwatch.IsMissing(err) {
		t.Fatalf("expected missing error, got %v", err)
	}

	c := tgwatch.Channel{
		ID:          42,
		Link:        "https://t.me/somechannel",
		Name:        "Some Channel",
		Description: "news",
		Subscribers: 100,
		Views24h:    1000,
		PostsCount:  5,
	}
	created, err := s.UpsertChannel(c)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Error("expected first upsert to create the channel")
	}

	info, err := s.Channel(42)
	if err != nil {
		t.Fatal(err)
	}
	// Link is stored scheme-stripped
	if info.Channel.Link != "t.me/somechannel" {
		t.Errorf("expected normalized link, got %q", info.Channel.Link)
	}
	if info.Channel.Subscribers != 100 || info.Channel.Views24h != 1000 || info.Channel.PostsCount != 5 {
		t.Errorf("unexpected latest snapshot values: %+v", info.Channel)
	}
	if info.LastUpdate == 0 {
		t.Error("expected a last update timestamp")
	}

	// Lookup by link works with or without scheme
	if _, err := s.ChannelByLink("t.me/somechannel"); err != nil {
		t.Error(err)
	}
	if _, err := s.ChannelByLink("https://t.me/somechannel"); err != nil {
		t.Error(err)
	}

	// Second parse updates in place and appends a snapshot
	time.Sleep(10 * time.Millisecond)
	c.Subscribers = 110
	c.Views24h = 1200
	created, err = s.UpsertChannel(c)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Error("expected second upsert to update, not create")
	}

	info, err = s.Channel(42)
	if err != nil {
		t.Fatal(err)
	}
	if info.Channel.Subscribers != 110 {
		t.Errorf("expected latest snapshot (110 subscribers), got %d", info.Channel.Subscribers)
	}

	ids, err := s.ChannelIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Errorf("expected ids [42], got %v", ids)
	}

	newest, err := s.Statistics(42, tgwatch.SortNewest)
	if err != nil {
		t.Fatal(err)
	}
	if len(newest) != 2 {
		t.Fatalf("expected 2 snapshots, got %d", len(newest))
	}
	if newest[0].Subscribers != 110 || newest[1].Subscribers != 100 {
		t.Errorf("expected newest-first ordering, got %+v", newest)
	}

	oldest, err := s.Statistics(42, tgwatch.SortOldest)
	if err != nil {
		t.Fatal(err)
	}
	if oldest[0].Subscribers != 100 || oldest[1].Subscribers != 110 {
		t.Errorf("expected oldest-first ordering, got %+v", oldest)
	}
}
