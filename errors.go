package tgwatch

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Representation of errors in the API. These are divided into a small
// number of categories, essentially distinguished by whose fault the
// error is; i.e., is this error:
//  - a transient problem with the service, so worth trying again?
//  - not going to work until the user takes some other action, e.g.,
//    supplying a valid channel link?
type Error struct {
	Type Type
	// a message that can be printed out for the user
	Help string `json:"help"`
	// the underlying error that can be e.g., logged for developers to look at
	Err error
	// for flood-wait errors, how long Telegram asked us to back off
	RetryAfterSeconds int `json:"retry_after,omitempty"`
}

func (e *Error) Error() string {
	return e.Err.Error()
}

type Type string

const (
	// The operation looked fine on paper, but something went wrong
	Server Type = "server"
	// The thing you mentioned, whatever it is, just doesn't exist
	Missing = "missing"
	// The operation was well-formed, but you asked for something that
	// can't happen at present (e.g., an invalid or expired link)
	User = "user"
	// Telegram told us to back off; retry after RetryAfterSeconds
	FloodWait = "flood_wait"
)

func IsMissing(err error) bool {
	if err, ok := err.(*Error); ok && err.Type == Missing {
		return true
	}
	return false
}

func IsFloodWait(err error) bool {
	if err, ok := err.(*Error); ok && err.Type == FloodWait {
		return true
	}
	return false
}

func (e *Error) MarshalJSON() ([]byte, error) {
	var errMsg string
	if e.Err != nil {
		errMsg = e.Err.Error()
	}
	jsonable := &struct {
		Type       string `json:"type"`
		Help       string `json:"help"`
		Err        string `json:"error,omitempty"`
		RetryAfter int    `json:"retry_after,omitempty"`
	}{
		Type:       string(e.Type),
		Help:       e.Help,
		Err:        errMsg,
		RetryAfter: e.RetryAfterSeconds,
	}
	return json.Marshal(jsonable)
}

func (e *Error) UnmarshalJSON(data []byte) error {
	jsonable := &struct {
		Type       string `json:"type"`
		Help       string `json:"help"`
		Err        string `json:"error,omitempty"`
		RetryAfter int    `json:"retry_after,omitempty"`
	}{}
	if err := json.Unmarshal(data, &jsonable); err != nil {
		return err
	}
	if jsonable != nil {
		e.Type = Type(jsonable.Type)
		e.Help = jsonable.Help
		e.RetryAfterSeconds = jsonable.RetryAfter
		if jsonable.Err != "" {
			e.Err = errors.New(jsonable.Err)
		}
	}
	return nil
}

func CoverAllError(err error) *Error {
	return &Error{
		Type: Server,
		Err:  err,
		Help: `Internal error: ` + err.Error() + `

We don't have a specific help message for the error above. If it
persists, please quote the message at the top when reporting it.
`,
	}
}

func ErrInvalidChannelLink(link, reason string) error {
	return &Error{
		Type: User,
		Err:  fmt.Errorf("invalid channel link %q: %s", link, reason),
		Help: `The channel link could not be resolved.

Check that the link points at an existing channel, and that invite
links have not expired.
`,
	}
}

func ErrCannotGetChannelInfo(link string) error {
	return &Error{
		Type: Server,
		Err:  fmt.Errorf("cannot get channel info for %q", link),
		Help: `Telegram returned no entity for this link.

This is usually transient; retrying after a while may help.
`,
	}
}

func ErrUserBanned(reason string) error {
	return &Error{
		Type: Server,
		Err:  fmt.Errorf("client session banned: %s", reason),
		Help: `The Telegram session used for this request has been banned or
deactivated. The request may succeed when retried on another session.
`,
	}
}

func ErrFloodWait(seconds int) error {
	return &Error{
		Type:              FloodWait,
		Err:               fmt.Errorf("flood wait: retry in %d seconds", seconds),
		RetryAfterSeconds: seconds,
		Help: `Telegram is rate limiting us.

Retry the request after the indicated number of seconds.
`,
	}
}

func ErrChannelNotFound(spec string) error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("no channel found for %q", spec),
		Help: `The channel you asked for is not tracked by this server.

Run a parse on its link first, e.g.

    tgwatchctl parse --link <link>
`,
	}
}

func ErrStatsNotFound(spec string) error {
	return &Error{
		Type: Missing,
		Err:  fmt.Errorf("no statistics recorded for %q", spec),
		Help: `The channel is known, but no statistics snapshot has been
recorded for it yet. A pending parse may still be running.
`,
	}
}
