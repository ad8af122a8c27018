// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package realtime subscribes to the backend's server-sent event stream and
// delivers user-record change events to the session manager.
package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/session"
)

const (
	// realtimePath is the backend's SSE endpoint.
	realtimePath = "/realtime"

	// defaultBackoff is the initial delay before reconnecting a dropped stream.
	defaultBackoff = time.Second

	// maxBackoff caps the reconnect delay.
	maxBackoff = 30 * time.Second
)

// ClientParams holds the dependencies for a realtime client.
type ClientParams struct {
	// BaseURL is the backend base URL, e.g. "http://localhost:8090". Required.
	BaseURL string

	// HTTPClient is the HTTP client used for the stream. Streaming requests
	// must not carry a client-level timeout. Optional.
	HTTPClient *http.Client

	// Logger receives stream lifecycle logs. Optional.
	Logger *logging.Logger
}

// Client consumes the backend's SSE stream. It reconnects with exponential
// backoff when the stream drops and stops when the subscription context is
// canceled. A Client satisfies session.Channel.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger

	mu    sync.Mutex
	token string
	topic string
}

// NewClient creates a realtime client for the given backend.
func NewClient(params *ClientParams) (*Client, error) {
	if params == nil || params.BaseURL == "" {
		return nil, fmt.Errorf("realtime: base URL is required")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}
	return &Client{
		baseURL:    strings.TrimRight(params.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// SetToken sets the bearer token sent with stream requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// SetTopic scopes the stream to one user record. The backend rejects topics
// that do not match the token's subject; when no topic is set the backend
// scopes the stream to the subject itself.
func (c *Client) SetTopic(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topic = topic
}

// Subscribe opens the event stream and returns a channel of change events.
// The channel is closed when ctx is canceled. Stream drops are handled
// internally by reconnecting; consumers never see a dropped connection.
func (c *Client) Subscribe(ctx context.Context) (<-chan session.Event, error) {
	events := make(chan session.Event, 16)
	go c.stream(ctx, events)
	return events, nil
}

// stream runs the connect/read/reconnect loop until ctx is canceled.
func (c *Client) stream(ctx context.Context, events chan<- session.Event) {
	defer close(events)

	backoff := defaultBackoff
	for {
		connected, err := c.consume(ctx, events)
		if ctx.Err() != nil {
			return
		}
		if connected {
			// The stream was healthy before it dropped; start the
			// backoff ladder over.
			backoff = defaultBackoff
		}
		if err != nil {
			c.logger.Warn("event stream dropped, reconnecting",
				"backoff", backoff.String(),
				"error", err.Error())
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the reconnect delay up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	if d *= 2; d > maxBackoff {
		return maxBackoff
	}
	return d
}

// consume opens one stream connection and forwards its events. It reports
// whether the connection was established so the caller can reset its backoff.
func (c *Client) consume(ctx context.Context, events chan<- session.Event) (bool, error) {
	c.mu.Lock()
	token, topic := c.token, c.topic
	c.mu.Unlock()

	endpoint := c.baseURL + realtimePath
	if topic != "" {
		endpoint += "?topic=" + url.QueryEscape(topic)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("realtime: unexpected status %d", resp.StatusCode)
	}

	c.logger.Debug("event stream connected")

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				c.dispatch(ctx, events, data.String())
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// event names, ids, comments, and retry hints are ignored;
			// the payload carries everything the session manager needs.
		}
	}
	return true, scanner.Err()
}

// dispatch decodes one SSE data payload and forwards it.
func (c *Client) dispatch(ctx context.Context, events chan<- session.Event, data string) {
	var event session.Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		c.logger.Debug("discarding undecodable stream event", "error", err.Error())
		return
	}
	select {
	case events <- event:
	case <-ctx.Done():
	}
}
