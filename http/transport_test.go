package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics/discard"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/api"
	tgwhttp "github.com/tgwatch/tgwatch/http"
	"github.com/tgwatch/tgwatch/http/client"
	"github.com/tgwatch/tgwatch/jobs"
)

// stubService answers with fixtures, so the test exercises only the
// transport: routing, encoding, and error mapping.
type stubService struct {
	channel tgwatch.Channel
	jobID   jobs.JobID
}

func (s *stubService) ChannelInfo(_ context.Context, link string, withLogo bool) (api.ChannelInfoResponse, error) {
	switch link {
	case "t.me/flooded":
		return api.ChannelInfoResponse{}, tgwatch.ErrFloodWait(42)
	case "t.me/banned":
		return api.ChannelInfoResponse{}, tgwatch.ErrUserBanned("test ban")
	}
	res := api.ChannelInfoResponse{Channel: s.channel}
	if withLogo {
		res.Logo = []byte("logo-bytes")
	}
	return res, nil
}

func (s *stubService) EnqueueParse(_ context.Context, link string, withLogo bool) (jobs.JobID, error) {
	if link == "" {
		return "", tgwatch.ErrInvalidChannelLink(link, "empty link")
	}
	return s.jobID, nil
}

func (s *stubService) JobStatus(_ context.Context, id jobs.JobID) (jobs.Job, error) {
	if id != s.jobID {
		return jobs.Job{}, jobs.ErrNoSuchJob
	}
	return jobs.Job{
		ID:      id,
		Method:  jobs.ParseChannelJob,
		Done:    true,
		Success: true,
		Result:  jobs.ParseChannelResult{Channel: s.channel, Logo: []byte("logo-bytes")},
	}, nil
}

func (s *stubService) Channel(_ context.Context, id int64) (tgwatch.ChannelInfo, error) {
	if id != s.channel.ID {
		return tgwatch.ChannelInfo{}, tgwatch.ErrChannelNotFound("unknown")
	}
	return tgwatch.ChannelInfo{LastUpdate: 1700000000, Channel: s.channel}, nil
}

func (s *stubService) ChannelByLink(_ context.Context, link string) (tgwatch.ChannelInfo, error) {
	if link != s.channel.Link {
		return tgwatch.ChannelInfo{}, tgwatch.ErrChannelNotFound(link)
	}
	return tgwatch.ChannelInfo{LastUpdate: 1700000000, Channel: s.channel}, nil
}

func (s *stubService) ChannelIDs(_ context.Context) ([]int64, error) {
	return []int64{s.channel.ID}, nil
}

func (s *stubService) Statistics(_ context.Context, id int64, sort tgwatch.StatsSort) (api.StatisticsResponse, error) {
	if id != s.channel.ID {
		return api.StatisticsResponse{}, tgwatch.ErrChannelNotFound("unknown")
	}
	return api.StatisticsResponse{
		Sort: sort,
		Data: []tgwatch.StatsItem{{Views: 300, Subscribers: 100, PostsCount: 3, Time: 1700000000}},
	}, nil
}

func (s *stubService) Ping(_ context.Context) error { return nil }

func (s *stubService) Version(_ context.Context) (string, error) { return "test-version", nil }

func newTestClient(t *testing.T) (*client.Client, func()) {
	svc := &stubService{
		channel: tgwatch.Channel{
			ID:          42,
			Link:        "t.me/somechannel",
			Name:        "Some Channel",
			Subscribers: 100,
			Views24h:    300,
			PostsCount:  3,
		},
		jobID: jobs.NewJobID(),
	}
	handler := tgwhttp.NewHandler(svc, tgwhttp.NewRouter(), log.NewNopLogger(), discard.NewHistogram())
	server := httptest.NewServer(handler)
	return client.New(http.DefaultClient, tgwhttp.NewRouter(), server.URL, ""), server.Close
}

func TestChannelInfoRoundtrip(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()
	ctx := context.Background()

	res, err := c.ChannelInfo(ctx, "t.me/somechannel", false)
	if err != nil {
		t.Fatal(err)
	}
	if res.Channel.ID != 42 || res.Channel.Name != "Some Channel" {
		t.Errorf("unexpected channel %+v", res.Channel)
	}
	if res.Logo != nil {
		t.Error("expected no logo")
	}

	res, err = c.ChannelInfo(ctx, "t.me/somechannel", true)
	if err != nil {
		t.Fatal(err)
	}
	if string(res.Logo) != "logo-bytes" {
		t.Errorf("expected logo bytes, got %q", res.Logo)
	}
}

func TestFloodWaitOverTheWire(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()

	_, err := c.ChannelInfo(context.Background(), "t.me/flooded", false)
	if !tgwatch.IsFloodWait(err) {
		t.Fatalf("expected flood wait error, got %v", err)
	}
	if err.(*tgwatch.Error).RetryAfterSeconds != 42 {
		t.Errorf("expected retry-after 42, got %d", err.(*tgwatch.Error).RetryAfterSeconds)
	}
}

func TestServerErrorOverTheWire(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()

	_, err := c.ChannelInfo(context.Background(), "t.me/banned", false)
	terr, ok := err.(*tgwatch.Error)
	if !ok || terr.Type != tgwatch.Server {
		t.Fatalf("expected a server error, got %v", err)
	}
}

func TestParseAndJobStatusRoundtrip(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()
	ctx := context.Background()

	id, err := c.EnqueueParse(ctx, "t.me/somechannel", false)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("expected a job ID")
	}

	job, err := c.JobStatus(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if job.ID != id || !job.Done || !job.Success {
		t.Errorf("unexpected job %+v", job)
	}
	res, ok := job.Result.(jobs.ParseChannelResult)
	if !ok || res.Channel.Link != "t.me/somechannel" || string(res.Logo) != "logo-bytes" {
		t.Errorf("unexpected job result %+v", job.Result)
	}

	if _, err := c.JobStatus(ctx, "nonexistent"); !tgwatch.IsMissing(err) {
		t.Errorf("expected a missing error, got %v", err)
	}
}

func TestChannelRoundtrip(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()
	ctx := context.Background()

	info, err := c.Channel(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if info.Channel.Link != "t.me/somechannel" {
		t.Errorf("unexpected channel %+v", info.Channel)
	}

	info, err = c.ChannelByLink(ctx, "t.me/somechannel")
	if err != nil {
		t.Fatal(err)
	}
	if info.Channel.ID != 42 {
		t.Errorf("unexpected channel %+v", info.Channel)
	}

	if _, err := c.Channel(ctx, 999); !tgwatch.IsMissing(err) {
		t.Errorf("expected a missing error, got %v", err)
	}

	ids, err := c.ChannelIDs(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 42 {
		t.Errorf("unexpected ids %v", ids)
	}
}

func TestStatisticsRoundtrip(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()

	res, err := c.Statistics(context.Background(), 42, tgwatch.SortOldest)
	if err != nil {
		t.Fatal(err)
	}
	if res.Sort != tgwatch.SortOldest {
		t.Errorf("unexpected sort %q", res.Sort)
	}
	if len(res.Data) != 1 || res.Data[0].Views != 300 {
		t.Errorf("unexpected data %+v", res.Data)
	}
}

func TestPingAndVersion(t *testing.T) {
	c, stop := newTestClient(t)
	defer stop()

	if err := c.Ping(context.Background()); err != nil {
		t.Fatal(err)
	}
	version, err := c.Version(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if version != "test-version" {
		t.Errorf("unexpected version %q", version)
	}
}
