package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/five82/cubespace/internal/cube"
	"github.com/five82/cubespace/internal/logging"
)

const maxBackoff = 30 * time.Second

// ErrFeedClosed is reported when the store closes the feed while the
// subscription is still wanted.
var ErrFeedClosed = errors.New("docstore: feed closed by server")

// SubscribeCubes delivers every full cube snapshot to onData until the
// returned function is called. Errors go to onError. Callbacks run on a
// background goroutine and must not block for long.
func (c *Client) SubscribeCubes(ctx context.Context, onData func([]cube.RemoteCubeView, Meta), onError func(error)) func() {
	return subscribe(ctx, c, CollectionCubes, c.FetchCubes, onData, onError)
}

// SubscribeOwners is SubscribeCubes for the owner collection.
func (c *Client) SubscribeOwners(ctx context.Context, onData func([]cube.RemoteOwnerView, Meta), onError func(error)) func() {
	return subscribe(ctx, c, CollectionOwners, c.FetchOwners, onData, onError)
}

func subscribe[T any](
	parent context.Context,
	c *Client,
	collection string,
	fetch func(context.Context) ([]T, error),
	onData func([]T, Meta),
	onError func(error),
) func() {
	if onError == nil {
		onError = func(error) {}
	}
	ctx, cancel := context.WithCancel(parent)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if c.feed == FeedPoll {
			poll(ctx, c.pollInterval, fetch, onData, onError)
			return
		}
		if err := stream(ctx, c, collection, onData); err != nil && ctx.Err() == nil {
			c.log.Warn(ctx, "feed closed", logging.String("collection", collection), logging.Err(err))
			onError(err)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

// poll fetches the collection at interval, backing off while requests fail.
func poll[T any](ctx context.Context, interval time.Duration, fetch func(context.Context) ([]T, error), onData func([]T, Meta), onError func(error)) {
	failures := 0
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		items, err := fetch(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			failures++
			onError(err)
		} else {
			failures = 0
			onData(items, Meta{Source: string(FeedPoll), ReceivedAt: time.Now()})
		}
		timer.Reset(calculateBackoff(failures, interval))
	}
}

// calculateBackoff doubles base for each consecutive failure, capped at
// maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// stream reads snapshot frames from the feed websocket until ctx is done or
// the connection fails.
func stream[T any](ctx context.Context, c *Client, collection string, onData func([]T, Meta)) error {
	wsURL := *c.baseURL
	switch wsURL.Scheme {
	case "https":
		wsURL.Scheme = "wss"
	default:
		wsURL.Scheme = "ws"
	}
	wsURL.Path = "/api/feed"
	wsURL.RawQuery = url.Values{"collection": {collection}}.Encode()

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	if token := c.Token(); token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: requestTimeout}
	conn, resp, err := dialer.DialContext(ctx, wsURL.String(), header)
	if err != nil {
		if resp != nil {
			return &StatusError{Path: "/api/feed", Code: resp.StatusCode}
		}
		return fmt.Errorf("dial feed: %w", err)
	}
	defer func() { _ = conn.Close() }()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return ErrFeedClosed
			}
			return fmt.Errorf("read feed: %w", err)
		}
		var msg FeedMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("decode feed frame: %w", err)
		}
		if msg.Type != "snapshot" || msg.Collection != collection {
			continue
		}
		var records []T
		if len(msg.Records) > 0 && string(msg.Records) != "null" {
			if err := json.Unmarshal(msg.Records, &records); err != nil {
				return fmt.Errorf("decode feed records: %w", err)
			}
		}
		onData(records, Meta{Source: string(FeedWebsocket), Seq: msg.Seq, ReceivedAt: time.Now()})
	}
}
