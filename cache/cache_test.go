package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChannelInfoKeyNormalizesLink(t *testing.T) {
	a := NewChannelInfoKey("https://t.me/somechannel")
	b := NewChannelInfoKey("t.me/somechannel")
	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, "channelinfov1|t.me/somechannel", a.Key())
}

func TestInMemRoundtrip(t *testing.T) {
	c := NewInMem()
	defer c.Stop()

	k := NewChannelInfoKey("t.me/somechannel")
	_, _, err := c.GetKey(k)
	assert.Equal(t, ErrNotCached, err)

	assert.NoError(t, c.SetKey(k, []byte("payload")))

	data, deadline, err := c.GetKey(k)
	assert.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
	assert.False(t, deadline.IsZero())
}
