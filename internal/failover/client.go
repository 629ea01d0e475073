// Package failover issues requests against an ordered list of redundant
// endpoints. The first endpoint that answers without a transport failure
// and without a structured error envelope wins; later endpoints are not
// contacted. There is no temporal retry of a single endpoint.
package failover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"leakdesk/internal/apperr"
	"leakdesk/internal/metrics"
)

const maxBody = 32 << 20

type Request struct {
	// Query is appended to the endpoint as-is, e.g. "?sheet=Ticket".
	Query string
	// Body switches the request to POST when non-nil.
	Body        []byte
	ContentType string
}

type Response struct {
	Endpoint   string
	Index      int
	StatusCode int
	Header     http.Header
	Body       []byte
}

type Client struct {
	endpoints []string
	http      *http.Client
	log       zerolog.Logger
}

func New(endpoints []string, hc *http.Client, log zerolog.Logger) (*Client, error) {
	clean := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e = strings.TrimSpace(e); e != "" {
			clean = append(clean, e)
		}
	}
	if len(clean) == 0 {
		return nil, errors.New("failover: no endpoints configured")
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{
		endpoints: clean,
		http:      hc,
		log:       log.With().Str("component", "failover").Logger(),
	}, nil
}

func (c *Client) Endpoints() []string { return append([]string(nil), c.endpoints...) }

// Do walks the endpoint list in order. On exhaustion it returns an
// *apperr.UnavailableError whose Last is the most recent transport error,
// or apperr.ErrAllEndpointsFailed when every endpoint answered with an
// error envelope.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	var (
		last   error
		remote []*apperr.ApplicationError
		tried  int
	)
	for i, base := range c.endpoints {
		if err := ctx.Err(); err != nil {
			last = err
			break
		}
		tried++
		label := "e" + strconv.Itoa(i+1)

		resp, err := c.attempt(ctx, base, req)
		if err != nil {
			last = &apperr.TransportError{Endpoint: label, Err: err}
			metrics.EndpointAttemptsTotal.WithLabelValues(label, "transport").Inc()
			c.log.Warn().Err(err).Str("endpoint", label).Msg("endpoint unreachable")
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			last = &apperr.TransportError{Endpoint: label, Status: resp.StatusCode}
			metrics.EndpointAttemptsTotal.WithLabelValues(label, "transport").Inc()
			c.log.Warn().Int("status", resp.StatusCode).Str("endpoint", label).Msg("endpoint returned non-2xx")
			continue
		}
		if msg, failed := errorEnvelope(resp); failed {
			remote = append(remote, &apperr.ApplicationError{Endpoint: label, Message: msg})
			metrics.EndpointAttemptsTotal.WithLabelValues(label, "remote_error").Inc()
			c.log.Warn().Str("endpoint", label).Str("message", msg).Msg("endpoint reported an error")
			continue
		}

		metrics.EndpointAttemptsTotal.WithLabelValues(label, "ok").Inc()
		resp.Index = i
		resp.Endpoint = label
		return resp, nil
	}

	if last == nil {
		last = apperr.ErrAllEndpointsFailed
	}
	return nil, &apperr.UnavailableError{Last: last, Remote: remote, Tried: tried}
}

func (c *Client) attempt(ctx context.Context, base string, req Request) (*Response, error) {
	method := http.MethodGet
	var body io.Reader
	if req.Body != nil {
		method = http.MethodPost
		body = bytes.NewReader(req.Body)
	}
	hr, err := http.NewRequestWithContext(ctx, method, joinQuery(base, req.Query), body)
	if err != nil {
		return nil, err
	}
	if req.Body != nil {
		ct := req.ContentType
		if ct == "" {
			ct = "application/json"
		}
		hr.Header.Set("Content-Type", ct)
	}
	hr.Header.Set("Accept", "application/json")

	res, err := c.http.Do(hr)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

// errorEnvelope inspects the body only when it is declared as JSON.
// Arrays (sheet reads) never count as envelopes.
func errorEnvelope(resp *Response) (string, bool) {
	if !strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "application/json") {
		return "", false
	}
	trimmed := bytes.TrimSpace(resp.Body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return "", false
	}
	var env struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return "", false
	}
	if !strings.EqualFold(env.Status, "error") {
		return "", false
	}
	if env.Message == "" {
		env.Message = "unspecified remote error"
	}
	return env.Message, true
}

func joinQuery(base, query string) string {
	switch {
	case query == "":
		return base
	case strings.HasPrefix(query, "/"):
		return strings.TrimSuffix(base, "/") + query
	}
	query = strings.TrimPrefix(query, "?")
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}
