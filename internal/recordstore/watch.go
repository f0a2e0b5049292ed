package recordstore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/starford/ansuz/internal/models"
)

const reconnectDelay = 2 * time.Second

// Event is a record change notification from the node's change feed.
type Event struct {
	Type string `json:"type"`
	Data struct {
		Program string `json:"program"`
		Key     string `json:"key"`
	} `json:"data"`
}

// Address returns the record the event refers to.
func (e Event) Address() models.RecordAddress {
	return models.RecordAddress{ProgramID: e.Data.Program, Key: e.Data.Key}
}

// Watch subscribes to the node's websocket change feed and calls cb for every
// event about addr. Dropped connections are re-dialled until ctx is
// cancelled.
func Watch(ctx context.Context, baseURL string, addr models.RecordAddress, logger *slog.Logger, cb func(Event)) error {
	wsURL, err := feedURL(baseURL)
	if err != nil {
		return err
	}

	for {
		err := watchOnce(ctx, wsURL, addr, cb)
		if ctx.Err() != nil {
			return nil
		}
		logger.Debug("recordstore: change feed dropped",
			slog.String("url", wsURL),
			slog.String("error", fmt.Sprint(err)))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func watchOnce(ctx context.Context, wsURL string, addr models.RecordAddress, cb func(Event)) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev Event
		if err := json.Unmarshal(message, &ev); err != nil {
			continue
		}
		if ev.Address() != addr {
			continue
		}
		cb(ev)
	}
}

func feedURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", fmt.Errorf("recordstore: parse node url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("recordstore: unsupported node url scheme %q", u.Scheme)
	}
	u.Path += "/api/ws"
	return u.String(), nil
}
