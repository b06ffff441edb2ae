package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/five82/cubespace/internal/cube"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // 32s capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	for failures := 0; failures <= 64; failures++ {
		if got := calculateBackoff(failures, 2*time.Second); got > maxBackoff {
			t.Errorf("calculateBackoff(%d) = %v, exceeds maxBackoff %v", failures, got, maxBackoff)
		}
	}
}

func TestSubscribeCubes_WebsocketDeliversSnapshots(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	var gotAuth atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/feed" || r.URL.Query().Get("collection") != CollectionCubes {
			http.NotFound(w, r)
			return
		}
		gotAuth.Store(r.Header.Get("Authorization"))
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		frames := []FeedMessage{
			{Type: "snapshot", Collection: CollectionOwners, Seq: 1, Records: json.RawMessage(`[]`)},
			{Type: "snapshot", Collection: CollectionCubes, Seq: 2, Records: json.RawMessage(`[{"remoteId":"r1","color":"#fff"}]`)},
		}
		for _, f := range frames {
			if err := conn.WriteJSON(f); err != nil {
				return
			}
		}
		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.token = "tok"

	got := make(chan []cube.RemoteCubeView, 4)
	var meta atomic.Value
	errs := make(chan error, 1)
	unsubscribe := c.SubscribeCubes(context.Background(), func(records []cube.RemoteCubeView, m Meta) {
		meta.Store(m)
		got <- records
	}, func(err error) { errs <- err })

	select {
	case records := <-got:
		if len(records) != 1 || records[0].RemoteID != "r1" {
			t.Fatalf("records = %+v", records)
		}
	case err := <-errs:
		t.Fatalf("unexpected feed error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for snapshot")
	}
	unsubscribe()
	unsubscribe()

	if m := meta.Load().(Meta); m.Seq != 2 || m.Source != "websocket" {
		t.Fatalf("meta = %+v", m)
	}
	if gotAuth.Load() != "Bearer tok" {
		t.Fatalf("Authorization = %v", gotAuth.Load())
	}
	select {
	case err := <-errs:
		t.Fatalf("unsubscribe reported error: %v", err)
	default:
	}
}

func TestSubscribeCubes_WebsocketReportsServerClose(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		_ = conn.Close()
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	errs := make(chan error, 1)
	unsubscribe := c.SubscribeCubes(context.Background(), func([]cube.RemoteCubeView, Meta) {}, func(err error) { errs <- err })
	defer unsubscribe()

	select {
	case err := <-errs:
		if !errors.Is(err, ErrFeedClosed) {
			t.Fatalf("error = %v, want ErrFeedClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for error")
	}
}

func TestSubscribeOwners_PollRecoversAfterFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"ownerId":"o1","name":"Ada"}]}`))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Options{BaseURL: server.URL, Feed: FeedPoll, PollInterval: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	got := make(chan []cube.RemoteOwnerView, 8)
	errs := make(chan error, 8)
	unsubscribe := c.SubscribeOwners(context.Background(), func(records []cube.RemoteOwnerView, m Meta) {
		got <- records
	}, func(err error) { errs <- err })
	defer unsubscribe()

	select {
	case err := <-errs:
		var se *StatusError
		if !errors.As(err, &se) || se.Code != http.StatusServiceUnavailable {
			t.Fatalf("first error = %v, want 503", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for first error")
	}
	select {
	case records := <-got:
		if len(records) != 1 || records[0].Name != "Ada" {
			t.Fatalf("records = %+v", records)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for recovery")
	}
}
