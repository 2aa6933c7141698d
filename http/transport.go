// Package http is the API transport: the route table shared by server
// and client, the handlers, and the error representation on the wire.
package http

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/metrics"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/tgwatch/tgwatch"
	"github.com/tgwatch/tgwatch/api"
	"github.com/tgwatch/tgwatch/jobs"
)

// NewRouter is the route table, used on both ends: the server mounts
// handlers on it, the client builds URLs from it.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.NewRoute().Name(ChannelInfo).Methods("GET").Path("/v1/channel_info").Queries("link", "{link}")
	r.NewRoute().Name(PostParse).Methods("POST").Path("/v1/parse").Queries("link", "{link}")
	r.NewRoute().Name(JobStatus).Methods("GET").Path("/v1/jobs").Queries("id", "{id}")
	r.NewRoute().Name(GetStatistics).Methods("GET").Path("/v1/channels/{id:[0-9]+}/statistics")
	r.NewRoute().Name(GetChannel).Methods("GET").Path("/v1/channels/{id:[0-9]+}")
	r.NewRoute().Name(GetChannelByLink).Methods("GET").Path("/v1/channel").Queries("link", "{link}")
	r.NewRoute().Name(ListChannels).Methods("GET").Path("/v1/channels")
	r.NewRoute().Name(Ping).Methods("HEAD", "GET").Path("/v1/ping")
	r.NewRoute().Name(Version).Methods("GET").Path("/v1/version")
	return r
}

func NewHandler(s api.Service, r *mux.Router, logger log.Logger, requestDuration metrics.Histogram) http.Handler {
	for method, handlerFunc := range map[string]func(api.Service) http.Handler{
		ChannelInfo:      handleChannelInfo,
		PostParse:        handlePostParse,
		JobStatus:        handleJobStatus,
		GetChannel:       handleGetChannel,
		GetChannelByLink: handleGetChannelByLink,
		ListChannels:     handleListChannels,
		GetStatistics:    handleGetStatistics,
		Ping:             handlePing,
		Version:          handleVersion,
	} {
		var handler http.Handler
		handler = handlerFunc(s)
		handler = logging(handler, log.With(logger, "method", method))
		handler = observing(handler, requestDuration, method)

		r.Get(method).Handler(handler)
	}
	return r
}

func handleChannelInfo(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link := mux.Vars(r)["link"]
		withLogo, err := boolParam(r, "with_logo")
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		res, err := s.ChannelInfo(r.Context(), link, withLogo)
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, res)
	})
}

type postParseResponse struct {
	Status string     `json:"status"`
	ID     jobs.JobID `json:"id"`
}

func handlePostParse(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link := mux.Vars(r)["link"]
		withLogo, err := boolParam(r, "with_logo")
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		id, err := s.EnqueueParse(r.Context(), link, withLogo)
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, postParseResponse{
			Status: "Queued.",
			ID:     id,
		})
	})
}

func handleJobStatus(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		job, err := s.JobStatus(r.Context(), jobs.JobID(id))
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, job)
	})
}

func handleGetChannel(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, errors.Wrap(err, "parsing channel id"))
			return
		}
		info, err := s.Channel(r.Context(), id)
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, info)
	})
}

func handleGetChannelByLink(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		link := mux.Vars(r)["link"]
		info, err := s.ChannelByLink(r.Context(), link)
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, info)
	})
}

func handleListChannels(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids, err := s.ChannelIDs(r.Context())
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		if ids == nil {
			ids = []int64{}
		}
		jsonResponse(w, r, ids)
	})
}

func handleGetStatistics(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, errors.Wrap(err, "parsing channel id"))
			return
		}
		sort, err := tgwatch.ParseStatsSort(r.URL.Query().Get("sort"))
		if err != nil {
			WriteError(w, r, http.StatusBadRequest, err)
			return
		}
		res, err := s.Statistics(r.Context(), id, sort)
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, res)
	})
}

func handlePing(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Ping(r.Context()); err != nil {
			errorResponse(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func handleVersion(s api.Service) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		version, err := s.Version(r.Context())
		if err != nil {
			errorResponse(w, r, err)
			return
		}
		jsonResponse(w, r, version)
	})
}

func boolParam(r *http.Request, name string) (bool, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Wrapf(err, "parsing %s", name)
	}
	return b, nil
}

func jsonResponse(w http.ResponseWriter, r *http.Request, result interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		WriteError(w, r, http.StatusInternalServerError, err)
	}
}

// errorResponse maps service errors onto HTTP status codes: it's the
// user's fault (422), the thing is missing (404), Telegram told us to
// back off (429), or something broke (500).
func errorResponse(w http.ResponseWriter, r *http.Request, apiError error) {
	switch err := apiError.(type) {
	case *tgwatch.Error:
		switch err.Type {
		case tgwatch.Missing:
			WriteError(w, r, http.StatusNotFound, err)
		case tgwatch.User:
			WriteError(w, r, http.StatusUnprocessableEntity, err)
		case tgwatch.FloodWait:
			w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds))
			WriteError(w, r, http.StatusTooManyRequests, err)
		default:
			WriteError(w, r, http.StatusInternalServerError, err)
		}
	default:
		WriteError(w, r, http.StatusInternalServerError, apiError)
	}
}

func WriteError(w http.ResponseWriter, r *http.Request, code int, err error) {
	// An Accept header with "application/json" or no Accept header
	// means the client will parse our error representation.
	accept := r.Header.Get("Accept")
	if accept == "" || strings.Contains(accept, "application/json") {
		body := err
		if _, ok := err.(*tgwatch.Error); !ok {
			body = tgwatch.CoverAllError(err)
		}
		bytes, encodeErr := json.Marshal(body)
		if encodeErr == nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(code)
			w.Write(bytes)
			return
		}
	}
	http.Error(w, err.Error(), code)
}

// MakeURL builds a request URL from the route table, so that client
// and server cannot drift apart.
func MakeURL(endpoint string, router *mux.Router, routeName string, urlParams ...string) (*url.URL, error) {
	if len(urlParams)%2 != 0 {
		panic("urlParams must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}

	// URLPath, not URL: the query string is built below, and URL would
	// demand values for every query template on the route.
	routeURL, err := router.Get(routeName).URLPath()
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		v.Add(urlParams[i], urlParams[i+1])
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

// MakeURLWithPath is MakeURL for routes with path variables, like the
// channel ID in GetChannel.
func MakeURLWithPath(endpoint string, router *mux.Router, routeName string, pathParams []string, urlParams ...string) (*url.URL, error) {
	if len(pathParams)%2 != 0 || len(urlParams)%2 != 0 {
		panic("params must be even!")
	}

	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing endpoint %s", endpoint)
	}

	routeURL, err := router.Get(routeName).URLPath(pathParams...)
	if err != nil {
		return nil, errors.Wrapf(err, "retrieving route path %s", routeName)
	}

	v := url.Values{}
	for i := 0; i < len(urlParams); i += 2 {
		if urlParams[i+1] != "" {
			v.Add(urlParams[i], urlParams[i+1])
		}
	}

	endpointURL.Path = path.Join(endpointURL.Path, routeURL.Path)
	endpointURL.RawQuery = v.Encode()
	return endpointURL, nil
}

func observing(next http.Handler, h metrics.Histogram, method string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		cw := &codeWriter{w, http.StatusOK}
		next.ServeHTTP(cw, r)
		h.With(
			"method", method,
			"status_code", strconv.Itoa(cw.code),
		).Observe(time.Since(begin).Seconds())
	})
}

func logging(next http.Handler, logger log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		begin := time.Now()
		cw := &codeWriter{w, http.StatusOK}
		tw := &teeWriter{cw, bytes.Buffer{}}

		next.ServeHTTP(tw, r)

		requestLogger := log.With(logger,
			"url", mustUnescape(r.URL.String()),
			"took", time.Since(begin).String(),
			"status_code", cw.code,
		)
		if cw.code != http.StatusOK {
			requestLogger = log.With(requestLogger, "error", strings.TrimSpace(tw.buf.String()))
		}
		requestLogger.Log()
	})
}

// codeWriter intercepts the HTTP status code. WriteHeader may not be called in
// case of success, so either prepopulate code with http.StatusOK, or check for
// zero on the read side.
type codeWriter struct {
	http.ResponseWriter
	code int
}

func (w *codeWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *codeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response does not implement http.Hijacker")
	}
	return hj.Hijack()
}

// teeWriter intercepts and stores the HTTP response.
type teeWriter struct {
	http.ResponseWriter
	buf bytes.Buffer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.buf.Write(p) // best-effort
	return w.ResponseWriter.Write(p)
}

func (w *teeWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response does not implement http.Hijacker")
	}
	return hj.Hijack()
}

func mustUnescape(s string) string {
	if unescaped, err := url.QueryUnescape(s); err == nil {
		return unescaped
	}
	return s
}
