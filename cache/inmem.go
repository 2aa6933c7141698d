package cache

import (
	"sync"
	"time"
)

type inmemEntry struct {
	data   []byte
	expiry time.Time
}

type inmem struct {
	mx    sync.Mutex
	items map[string]inmemEntry
}

// NewInMem returns a process-local Client, mostly useful in tests and
// for running without a memcached.
func NewInMem() Client {
	return &inmem{items: map[string]inmemEntry{}}
}

func (c *inmem) GetKey(k Keyer) ([]byte, time.Time, error) {
	c.mx.Lock()
	defer c.mx.Unlock()
	entry, ok := c.items[k.Key()]
	if !ok || time.Now().After(entry.expiry) {
		return nil, time.Time{}, ErrNotCached
	}
	return entry.data, entry.expiry, nil
}

func (c *inmem) SetKey(k Keyer, v []byte) error {
	c.mx.Lock()
	defer c.mx.Unlock()
	c.items[k.Key()] = inmemEntry{data: v, expiry: time.Now().Add(expiry)}
	return nil
}

func (c *inmem) Stop() {}
