package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/dbdemo/showcase/internal/model"
	"github.com/dbdemo/showcase/internal/poller"
)

const (
	sendBuffer   = 256
	pingInterval = 30 * time.Second
)

// WatchFunc starts a status watch for a job
type WatchFunc func(ctx context.Context, jobID string, observe poller.Observer) *poller.Watch

// Client represents a WebSocket client
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// NewClient creates a client subscribed to jobID
func NewClient(jobID string, conn *websocket.Conn) *Client {
	return &Client{
		JobID: jobID,
		Conn:  conn,
		Send:  make(chan []byte, sendBuffer),
	}
}

// Hub fans job status out to every connection watching the same job. The
// first subscriber of a job starts one watch, the last one to leave stops it.
type Hub struct {
	// Clients grouped by job ID
	clients map[string]map[*Client]bool

	// Running watches by job ID
	watches map[string]*poller.Watch

	// Latest status and terminal message per job, replayed to late subscribers
	latest map[string][]byte
	final  map[string][]byte

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage

	startWatch WatchFunc
	ctx        context.Context
	done       chan struct{}

	mu sync.RWMutex
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	JobID   string
	Type    string
	Message []byte
}

// NewHub creates a new Hub. startWatch may be nil, in which case the hub
// only relays broadcasts.
func NewHub(startWatch WatchFunc) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		watches:    make(map[string]*poller.Watch),
		latest:     make(map[string][]byte),
		final:      make(map[string][]byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, sendBuffer),
		startWatch: startWatch,
		ctx:        context.Background(),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	h.ctx = ctx
	defer close(h.done)
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.addClient(client)
			log.Printf("[WS] Client registered for job %s", client.JobID)

		case client := <-h.unregister:
			h.removeClient(client)
			log.Printf("[WS] Client unregistered from job %s", client.JobID)

		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

// Register adds a new client
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		close(client.Send)
	}
}

// Unregister removes a client
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribers returns the number of clients watching jobID
func (h *Hub) Subscribers(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[client.JobID] == nil {
		h.clients[client.JobID] = make(map[*Client]bool)
	}
	h.clients[client.JobID][client] = true

	for _, replay := range [][]byte{h.latest[client.JobID], h.final[client.JobID]} {
		if replay != nil {
			client.Send <- replay
		}
	}

	if _, running := h.watches[client.JobID]; !running && h.startWatch != nil {
		h.watches[client.JobID] = h.watch(client.JobID)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[client.JobID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
	}
	if len(clients) == 0 {
		h.forgetJob(client.JobID)
	}
}

// forgetJob must be called with h.mu held
func (h *Hub) forgetJob(jobID string) {
	delete(h.clients, jobID)
	delete(h.latest, jobID)
	delete(h.final, jobID)
	if w, ok := h.watches[jobID]; ok {
		delete(h.watches, jobID)
		// the watch may be blocked on h.broadcast, never wait for it here
		go w.Stop()
	}
}

func (h *Hub) deliver(msg *BroadcastMessage) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.clients[msg.JobID]
	if !ok {
		return
	}
	switch msg.Type {
	case model.WSMessageTypeStatus:
		h.latest[msg.JobID] = msg.Message
	case model.WSMessageTypeComplete:
		h.final[msg.JobID] = msg.Message
	}

	for client := range clients {
		select {
		case client.Send <- msg.Message:
		default:
			close(client.Send)
			delete(clients, client)
		}
	}
	if len(clients) == 0 {
		h.forgetJob(msg.JobID)
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for jobID, clients := range h.clients {
		for client := range clients {
			close(client.Send)
		}
		h.forgetJob(jobID)
	}
}

func (h *Hub) watch(jobID string) *poller.Watch {
	w := h.startWatch(h.ctx, jobID, func(u model.StatusUpdate) {
		h.BroadcastStatus(u)
		if !u.Transient && u.Status.Terminal() {
			h.BroadcastComplete(jobID, u.Status)
		}
	})
	go func() {
		if _, err := w.Wait(); errors.Is(err, poller.ErrPollLimit) {
			h.BroadcastError(jobID, "POLL_LIMIT", err.Error())
		}
	}()
	return w
}

// BroadcastStatus sends a polling update to all job subscribers
func (h *Hub) BroadcastStatus(update model.StatusUpdate) {
	h.send(update.JobID, model.WSMessageTypeStatus, model.WSStatusMessage{
		Type:   model.WSMessageTypeStatus,
		Update: update,
	})
}

// BroadcastComplete sends the terminal status to all job subscribers
func (h *Hub) BroadcastComplete(jobID string, status model.JobStatus) {
	h.send(jobID, model.WSMessageTypeComplete, NewCompleteMessage(jobID, status))
}

// BroadcastArchived announces a stored copy of the job's image
func (h *Hub) BroadcastArchived(jobID, key string) {
	h.send(jobID, model.WSMessageTypeArchived, model.WSArchivedMessage{
		Type:  model.WSMessageTypeArchived,
		JobID: jobID,
		Key:   key,
	})
}

// BroadcastError sends an error message to all job subscribers
func (h *Hub) BroadcastError(jobID string, code, message string) {
	h.send(jobID, model.WSMessageTypeError, model.WSErrorMessage{
		Type:  model.WSMessageTypeError,
		JobID: jobID,
		Error: model.WSError{
			Code:    code,
			Message: message,
		},
	})
}

func (h *Hub) send(jobID, msgType string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] Failed to marshal %s message: %v", msgType, err)
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{JobID: jobID, Type: msgType, Message: data}:
	case <-h.done:
	}
}

// NewCompleteMessage builds the terminal message for a job
func NewCompleteMessage(jobID string, status model.JobStatus) model.WSCompleteMessage {
	return model.WSCompleteMessage{
		Type:     model.WSMessageTypeComplete,
		JobID:    jobID,
		Status:   status,
		Text:     status.Text(),
		ImageURL: status.ImageURL,
	}
}

// HandleConnection subscribes c to jobID until the peer goes away
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := NewClient(jobID, c)

	h.Register(client)
	defer h.Unregister(client)

	go writePump(c, client.Send)

	readPump(c, func(msg model.WSMessage) {
		if msg.Type == model.WSMessageTypePing {
			h.reply(client, model.WSMessage{Type: model.WSMessageTypePong})
		}
	})
}

func (h *Hub) reply(client *Client, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[client.JobID][client] {
		select {
		case client.Send <- data:
		default:
		}
	}
}

// writePump owns all writes to c until send is closed
func writePump(c *websocket.Conn, send <-chan []byte) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-send:
			if !ok {
				c.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// keep-alive
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump decodes client messages until the connection fails
func readPump(c *websocket.Conn, handle func(model.WSMessage)) {
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[WS] WebSocket error: %v", err)
			}
			return
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		handle(msg)
	}
}
