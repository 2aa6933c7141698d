// Package client is the Go client for the API, used by tgwatchctl.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/api"
	transport "github.com/tgwatch/tgwatch/http"
	"github.com/tgwatch/tgwatch/jobs"
)

type Client struct {
	client   *http.Client
	token    tgwatch.Token
	router   *mux.Router
	endpoint string
}

var _ api.Service = &Client{}

func New(c *http.Client, router *mux.Router, endpoint string, t tgwatch.Token) *Client {
	return &Client{
		client:   c,
		token:    t,
		router:   router,
		endpoint: endpoint,
	}
}

func (c *Client) ChannelInfo(ctx context.Context, link string, withLogo bool) (api.ChannelInfoResponse, error) {
	var res api.ChannelInfoResponse
	err := c.get(ctx, &res, transport.ChannelInfo, "link", link, "with_logo", strconv.FormatBool(withLogo))
	return res, err
}

type postParseResponse struct {
	Status string     `json:"status"`
	ID     jobs.JobID `json:"id"`
}

func (c *Client) EnqueueParse(ctx context.Context, link string, withLogo bool) (jobs.JobID, error) {
	var res postParseResponse
	err := c.post(ctx, &res, transport.PostParse, "link", link, "with_logo", strconv.FormatBool(withLogo))
	return res.ID, err
}

func (c *Client) JobStatus(ctx context.Context, id jobs.JobID) (jobs.Job, error) {
	var res jobs.Job
	err := c.get(ctx, &res, transport.JobStatus, "id", string(id))
	return res, err
}

func (c *Client) Channel(ctx context.Context, id int64) (tgwatch.ChannelInfo, error) {
	var res tgwatch.ChannelInfo
	err := c.getWithPathParams(ctx, &res, transport.GetChannel, []string{"id", strconv.FormatInt(id, 10)})
	return res, err
}

func (c *Client) ChannelByLink(ctx context.Context, link string) (tgwatch.ChannelInfo, error) {
	var res tgwatch.ChannelInfo
	err := c.get(ctx, &res, transport.GetChannelByLink, "link", link)
	return res, err
}

func (c *Client) ChannelIDs(ctx context.Context) ([]int64, error) {
	var res []int64
	err := c.get(ctx, &res, transport.ListChannels)
	return res, err
}

func (c *Client) Statistics(ctx context.Context, id int64, sort tgwatch.StatsSort) (api.StatisticsResponse, error) {
	var res api.StatisticsResponse
	err := c.getWithPathParams(ctx, &res, transport.GetStatistics,
		[]string{"id", strconv.FormatInt(id, 10)},
		"sort", string(sort))
	return res, err
}

func (c *Client) Ping(ctx context.Context) error {
	return c.get(ctx, nil, transport.Ping)
}

func (c *Client) Version(ctx context.Context) (string, error) {
	var res string
	err := c.get(ctx, &res, transport.Version)
	return res, err
}

func (c *Client) get(ctx context.Context, dest interface{}, route string, queryParams ...string) error {
	return c.methodWithResp(ctx, "GET", dest, route, nil, queryParams...)
}

func (c *Client) post(ctx context.Context, dest interface{}, route string, queryParams ...string) error {
	return c.methodWithResp(ctx, "POST", dest, route, nil, queryParams...)
}

// getWithPathParams handles routes with URL path variables, e.g. the
// channel ID in GetChannel. pathParams are pairs, as mux wants them.
func (c *Client) getWithPathParams(ctx context.Context, dest interface{}, route string, pathParams []string, queryParams ...string) error {
	u, err := transport.MakeURLWithPath(c.endpoint, c.router, route, pathParams, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}
	return c.execute(ctx, "GET", u.String(), dest)
}

// methodWithResp handles query-param encoding, and decodes the
// response into dest when one is given.
func (c *Client) methodWithResp(ctx context.Context, method string, dest interface{}, route string, body interface{}, queryParams ...string) error {
	u, err := transport.MakeURL(c.endpoint, c.router, route, queryParams...)
	if err != nil {
		return errors.Wrap(err, "constructing URL")
	}
	return c.execute(ctx, method, u.String(), dest)
}

func (c *Client) execute(ctx context.Context, method, url string, dest interface{}) error {
	req, err := http.NewRequest(method, url, nil)
	if err != nil {
		return errors.Wrapf(err, "constructing request %s", url)
	}
	req = req.WithContext(ctx)
	c.token.Set(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "executing HTTP request")
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusNoContent:
	default:
		// Use the content type to discriminate between our error
		// representation and any old error
		if strings.HasPrefix(resp.Header.Get(http.CanonicalHeaderKey("Content-Type")), "application/json") {
			var niceError tgwatch.Error
			if err := json.NewDecoder(resp.Body).Decode(&niceError); err != nil {
				return errors.Wrap(err, "decoding error in response body")
			}
			return &niceError
		}
		body, err := ioutil.ReadAll(resp.Body)
		if err != nil {
			return errors.Wrap(err, "reading assumed plaintext response body")
		}
		return fmt.Errorf("%s %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if dest == nil {
		return nil
	}
	respBytes, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response from server")
	}
	if len(respBytes) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBytes, dest); err != nil {
		return errors.Wrap(err, "decoding response from server")
	}
	return nil
}
