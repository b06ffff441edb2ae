package docserver

import (
	"sync"
)

const clientBuffer = 16

// client is one feed connection. The connection's writer goroutine drains
// out; closing done tells it to stop.
type client struct {
	collection string
	out        chan []byte
	done       chan struct{}
	once       sync.Once
}

func (c *client) close() {
	c.once.Do(func() { close(c.done) })
}

// hub fans snapshot frames out to feed clients per collection.
type hub struct {
	mu      sync.Mutex
	clients map[string]map[*client]struct{}
	seq     map[string]uint64
	onCount func(collection string, n int)
}

func newHub(onCount func(string, int)) *hub {
	if onCount == nil {
		onCount = func(string, int) {}
	}
	return &hub{
		clients: map[string]map[*client]struct{}{},
		seq:     map[string]uint64{},
		onCount: onCount,
	}
}

func (h *hub) add(collection string) *client {
	c := &client{
		collection: collection,
		out:        make(chan []byte, clientBuffer),
		done:       make(chan struct{}),
	}
	h.mu.Lock()
	set := h.clients[collection]
	if set == nil {
		set = map[*client]struct{}{}
		h.clients[collection] = set
	}
	set[c] = struct{}{}
	n := len(set)
	h.mu.Unlock()
	h.onCount(collection, n)
	return c
}

func (h *hub) remove(c *client) {
	h.mu.Lock()
	set := h.clients[c.collection]
	delete(set, c)
	n := len(set)
	h.mu.Unlock()
	c.close()
	h.onCount(c.collection, n)
}

// nextSeq returns the sequence number for the next frame of collection.
func (h *hub) nextSeq(collection string) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq[collection]++
	return h.seq[collection]
}

// broadcast queues frame for every client of collection. A client whose
// buffer is full is disconnected; it would otherwise miss a snapshot.
func (h *hub) broadcast(collection string, frame []byte) {
	h.mu.Lock()
	var slow []*client
	for c := range h.clients[collection] {
		select {
		case c.out <- frame:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.Unlock()
	for _, c := range slow {
		h.remove(c)
	}
}

// send queues frame for one client.
func (h *hub) send(c *client, frame []byte) bool {
	select {
	case c.out <- frame:
		return true
	default:
		return false
	}
}

func (h *hub) count(collection string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients[collection])
}

func (h *hub) closeAll() {
	h.mu.Lock()
	var all []*client
	for _, set := range h.clients {
		for c := range set {
			all = append(all, c)
		}
	}
	h.mu.Unlock()
	for _, c := range all {
		h.remove(c)
	}
}
