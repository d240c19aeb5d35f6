package ws

import "sync"

// QueueSize bounds how many undelivered payloads a subscriber may hold before
// the hub evicts it.
const QueueSize = 32

// Subscriber abstracts a streaming client.
type Subscriber interface {
	Send([]byte) error
	Close()
}

// Hub fans payloads out to subscribers grouped by topic. Membership changes
// happen on a single goroutine and each subscriber is fed by its own pump.
type Hub struct {
	topics    map[string]map[Subscriber]*outbox
	register  chan subscription
	unreg     chan subscription
	failed    chan subscription
	broadcast chan message
	count     chan countRequest
	done      chan struct{}
	stopped   chan struct{}
	pumps     sync.WaitGroup
	closeOnce sync.Once
	queueSize int
}

type outbox struct {
	queue chan []byte
	quit  chan struct{}
	evict chan struct{}
}

type message struct {
	topic   string
	payload []byte
}

type subscription struct {
	topic  string
	client Subscriber
}

type countRequest struct {
	topic string
	reply chan int
}

// NewHub creates a Hub and starts its loop.
func NewHub() *Hub {
	return newHub(QueueSize)
}

func newHub(queueSize int) *Hub {
	if queueSize < 1 {
		queueSize = 1
	}
	h := &Hub{
		topics:    make(map[string]map[Subscriber]*outbox),
		register:  make(chan subscription),
		unreg:     make(chan subscription),
		failed:    make(chan subscription),
		broadcast: make(chan message),
		count:     make(chan countRequest),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
		queueSize: queueSize,
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	defer close(h.stopped)
	for {
		select {
		case sub := <-h.register:
			h.add(sub)
		case sub := <-h.unreg:
			h.drop(sub, false)
		case sub := <-h.failed:
			h.drop(sub, false)
		case msg := <-h.broadcast:
			for c, box := range h.topics[msg.topic] {
				select {
				case box.queue <- msg.payload:
				default:
					h.drop(subscription{topic: msg.topic, client: c}, true)
				}
			}
		case req := <-h.count:
			req.reply <- len(h.topics[req.topic])
		case <-h.done:
			for topic, clients := range h.topics {
				for _, box := range clients {
					close(box.evict)
				}
				delete(h.topics, topic)
			}
			h.pumps.Wait()
			return
		}
	}
}

func (h *Hub) add(sub subscription) {
	clients, ok := h.topics[sub.topic]
	if !ok {
		clients = make(map[Subscriber]*outbox)
		h.topics[sub.topic] = clients
	}
	if _, member := clients[sub.client]; member {
		return
	}
	box := &outbox{
		queue: make(chan []byte, h.queueSize),
		quit:  make(chan struct{}),
		evict: make(chan struct{}),
	}
	clients[sub.client] = box
	h.pumps.Add(1)
	go h.pump(sub, box)
}

// drop removes a subscriber. When evict is set the pump closes the client
// once its in-flight Send returns.
func (h *Hub) drop(sub subscription, evict bool) {
	clients, ok := h.topics[sub.topic]
	if !ok {
		return
	}
	box, member := clients[sub.client]
	if !member {
		return
	}
	if evict {
		close(box.evict)
	} else {
		close(box.quit)
	}
	delete(clients, sub.client)
	if len(clients) == 0 {
		delete(h.topics, sub.topic)
	}
}

func (h *Hub) pump(sub subscription, box *outbox) {
	defer h.pumps.Done()
	for {
		select {
		case <-box.quit:
			return
		case <-box.evict:
			sub.client.Close()
			return
		default:
		}
		select {
		case <-box.quit:
			return
		case <-box.evict:
			sub.client.Close()
			return
		case payload := <-box.queue:
			if err := sub.client.Send(payload); err != nil {
				sub.client.Close()
				select {
				case h.failed <- sub:
				case <-h.done:
				}
				return
			}
		}
	}
}

// Register adds a client to a topic.
func (h *Hub) Register(topic string, client Subscriber) {
	select {
	case h.register <- subscription{topic: topic, client: client}:
	case <-h.done:
		client.Close()
	}
}

// Unregister removes a client from a topic without closing it.
func (h *Hub) Unregister(topic string, client Subscriber) {
	select {
	case h.unreg <- subscription{topic: topic, client: client}:
	case <-h.done:
	}
}

// Broadcast queues payload for every client of topic and returns without
// waiting for delivery. Subscribers whose queue is full or whose Send fails
// are closed and removed.
func (h *Hub) Broadcast(topic string, payload []byte) {
	select {
	case h.broadcast <- message{topic: topic, payload: payload}:
	case <-h.done:
	}
}

// Subscribers reports how many clients listen on topic.
func (h *Hub) Subscribers(topic string) int {
	reply := make(chan int, 1)
	select {
	case h.count <- countRequest{topic: topic, reply: reply}:
		return <-reply
	case <-h.done:
		return 0
	}
}

// Close stops the loop, closes every remaining subscriber and waits for the
// pumps to exit.
func (h *Hub) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
	<-h.stopped
}
