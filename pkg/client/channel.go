package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"eis-ingest-be/pkg/eis"

	"github.com/pkg/errors"
)

// Channel is one connection to the ingestion server. Exactly one of Abort or
// Close is expected to be called when the channel is no longer needed.
type Channel interface {
	StartSession(ctx context.Context, meta *eis.SessionMetadata) (*eis.CommandResult, error)
	PushSample(ctx context.Context, sample *eis.Sample) (*eis.CommandResult, error)
	EndSession(ctx context.Context) (*eis.CommandResult, error)
	// Abort drops the connection without waiting for in-flight work.
	Abort()
	// Close releases the connection gracefully.
	Close() error
}

// ChannelFactory creates a fresh channel.
type ChannelFactory func() (Channel, error)

const basePath = "/api/eis/v1"

type envelope struct {
	Success bool               `json:"success"`
	Code    int                `json:"code"`
	Message string             `json:"message"`
	Data    *eis.CommandResult `json:"data"`
}

// HTTPChannel speaks the session protocol over HTTP/JSON.
type HTTPChannel struct {
	baseURL   string
	http      *http.Client
	transport *http.Transport

	mu       sync.Mutex
	released bool
}

// NewHTTPChannel creates a channel with its own connection pool so that
// aborting it does not affect other channels.
func NewHTTPChannel(serverURL string, timeout time.Duration) *HTTPChannel {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &HTTPChannel{
		baseURL:   strings.TrimRight(serverURL, "/") + basePath,
		transport: transport,
		http:      &http.Client{Transport: transport, Timeout: timeout},
	}
}

// HTTPChannelFactory returns a factory creating HTTP channels to serverURL.
func HTTPChannelFactory(serverURL string, timeout time.Duration) ChannelFactory {
	return func() (Channel, error) {
		if serverURL == "" {
			return nil, errors.New("server url is empty")
		}
		return NewHTTPChannel(serverURL, timeout), nil
	}
}

func (c *HTTPChannel) StartSession(ctx context.Context, meta *eis.SessionMetadata) (*eis.CommandResult, error) {
	return c.call(ctx, "/session/start", meta)
}

func (c *HTTPChannel) PushSample(ctx context.Context, sample *eis.Sample) (*eis.CommandResult, error) {
	return c.call(ctx, "/session/sample", sample)
}

func (c *HTTPChannel) EndSession(ctx context.Context) (*eis.CommandResult, error) {
	return c.call(ctx, "/session/end", nil)
}

func (c *HTTPChannel) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.transport.CloseIdleConnections()
}

func (c *HTTPChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return ErrChannelReleased
	}
	c.released = true
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPChannel) call(ctx context.Context, path string, body interface{}) (*eis.CommandResult, error) {
	c.mu.Lock()
	released := c.released
	c.mu.Unlock()
	if released {
		return nil, transportError(ErrChannelReleased, "POST %s", path)
	}

	var payload io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Wrap(err, "encode request failed")
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, payload)
	if err != nil {
		return nil, errors.Wrap(err, "build request failed")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err, "POST %s", path)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(err, "read %s response", path)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, transportError(err, "decode %s response (HTTP %d)", path, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !env.Success || env.Data == nil {
		return nil, transportError(errors.New(env.Message), "POST %s returned HTTP %d", path, resp.StatusCode)
	}
	return env.Data, nil
}
