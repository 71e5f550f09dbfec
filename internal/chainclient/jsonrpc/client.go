package jsonrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/ava-labs/ethscraper/internal/chainclient"
	"github.com/ava-labs/ethscraper/pkg/metrics"
)

// Client is a chainclient.Transport backed by the go-ethereum RPC client.
// It speaks HTTP(S) or WebSocket depending on the URL scheme.
type Client struct {
	rpc        *rpc.Client
	url        string
	timeout    time.Duration
	httpClient *http.Client
	metrics    *metrics.Metrics // nil if metrics disabled
}

var _ chainclient.Transport = (*Client)(nil)

// Option configures the Client.
type Option func(*Client)

// WithMetrics enables metrics collection for the client.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithTimeout bounds every call. Zero disables the per-call deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithHTTPClient overrides the HTTP client used for http(s) endpoints.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New dials the node at url.
func New(ctx context.Context, url string, opts ...Option) (*Client, error) {
	client := &Client{url: url}
	for _, opt := range opts {
		opt(client)
	}

	var dialOpts []rpc.ClientOption
	if client.httpClient != nil {
		dialOpts = append(dialOpts, rpc.WithHTTPClient(client.httpClient))
	}

	c, err := rpc.DialOptions(ctx, url, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("dial json-rpc %s: %w", url, err)
	}
	client.rpc = c

	return client, nil
}

func (c *Client) URL() string {
	return c.url
}

// Call issues one request. Error envelopes from the node are returned in the
// Response; anything else that prevents a response wraps chainclient.ErrTransportFailure.
func (c *Client) Call(ctx context.Context, method string, params ...any) (*chainclient.Response, error) {
	start := time.Now()

	c.metrics.IncRPCInFlight()
	defer c.metrics.DecRPCInFlight()

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var result json.RawMessage
	err := c.rpc.CallContext(ctx, &result, method, params...)
	resp, err := c.toResponse(method, result, err)

	c.metrics.RecordRPCCall(method, err, time.Since(start).Seconds())
	return resp, err
}

func (c *Client) toResponse(method string, result json.RawMessage, err error) (*chainclient.Response, error) {
	resp := &chainclient.Response{URL: c.url}

	var rpcErr rpc.Error
	switch {
	case err == nil:
		resp.Result = result
		return resp, nil
	case errors.Is(err, rpc.ErrNoResult):
		// Response without a result member; treated like null.
		return resp, nil
	case errors.As(err, &rpcErr):
		resp.Error = &chainclient.ProtocolError{
			Code:    rpcErr.ErrorCode(),
			Message: rpcErr.Error(),
		}
		var dataErr rpc.DataError
		if errors.As(err, &dataErr) && dataErr.ErrorData() != nil {
			if data, mErr := json.Marshal(dataErr.ErrorData()); mErr == nil {
				resp.Error.Data = data
			}
		}
		c.metrics.RecordRPCProtocolError(method, resp.Error.Code)
		return resp, nil
	default:
		return nil, fmt.Errorf("%w: %s %s: %w", chainclient.ErrTransportFailure, method, c.url, err)
	}
}

// Close closes the underlying RPC client.
func (c *Client) Close() {
	c.rpc.Close()
}
