package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blackmichael/snippet-feed/internal/client"
	"github.com/blackmichael/snippet-feed/internal/domain"
)

// EventsPath is the websocket endpoint served by the hub.
const EventsPath = "/api/v1/mobile/events"

// EventsURL derives the websocket URL from an API base URL.
func EventsURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + EventsPath
	return u.String(), nil
}

// HeaderFunc supplies the headers for each connection attempt.
type HeaderFunc func() (http.Header, error)

// Subscriber connects to the events endpoint and invokes a handler per
// event.
type Subscriber struct {
	url     string
	header  HeaderFunc
	handler func(domain.Event)
	logger  *slog.Logger
	backoff time.Duration
}

// NewSubscriber creates a subscriber for eventsURL. header is called on
// every dial so a changed credential is picked up on reconnect.
func NewSubscriber(eventsURL string, header HeaderFunc, handler func(domain.Event), logger *slog.Logger) *Subscriber {
	return &Subscriber{
		url:     eventsURL,
		header:  header,
		handler: handler,
		logger:  logger,
		backoff: 5 * time.Second,
	}
}

// Start receives events until the context is cancelled, reconnecting on
// transient errors. Credential errors are returned immediately.
func (s *Subscriber) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := s.subscribe(ctx); err != nil {
				if errors.Is(err, client.ErrMissingCredential) || errors.Is(err, client.ErrInvalidCredential) {
					return err
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.Error("event stream error, reconnecting", "error", err)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(s.backoff):
				}
			}
		}
	}
}

func (s *Subscriber) subscribe(ctx context.Context) error {
	header, err := s.header()
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, s.url, header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return client.ErrInvalidCredential
		}
		return fmt.Errorf("dial events: %w", err)
	}
	defer conn.Close()

	s.logger.Info("connected to event stream", "url", s.url)

	// ReadMessage does not observe ctx.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read message: %w", err)
		}

		var event domain.Event
		if err := json.Unmarshal(message, &event); err != nil {
			s.logger.Error("failed to parse event", "error", err)
			continue
		}
		s.handler(event)
	}
}
