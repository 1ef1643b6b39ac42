package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/WEBSTUDIOCSE/AUTOGRAM-sub001/internal/model"
)

// AllRuns subscribes a client to every run
const AllRuns = "*"

// Client represents a WebSocket client
type Client struct {
	RunID string
	Conn  *websocket.Conn
	Send  chan []byte

	mu     sync.Mutex
	closed bool
}

// trySend queues data without blocking; false when the queue is full or
// the client was already dropped
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// Hub fans out run progress to subscribed WebSocket clients
type Hub struct {
	// Clients grouped by run ID; AllRuns receives everything
	clients map[string]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *BroadcastMessage
	// done is closed once Run returns
	done chan struct{}

	mu  sync.RWMutex
	log zerolog.Logger
}

// BroadcastMessage represents a message to broadcast
type BroadcastMessage struct {
	RunID   string
	Message []byte
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run starts the hub's main loop and returns when ctx is done. Remaining
// clients are closed on the way out.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, clients := range h.clients {
				for client := range clients {
					client.close()
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.RunID] == nil {
				h.clients[client.RunID] = make(map[*Client]bool)
			}
			h.clients[client.RunID][client] = true
			h.mu.Unlock()
			h.log.Debug().Str("run_id", client.RunID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.log.Debug().Str("run_id", client.RunID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.Lock()
			h.deliver(msg.RunID, msg.Message)
			if msg.RunID != AllRuns {
				h.deliver(AllRuns, msg.Message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver drops clients that cannot keep up; caller holds mu
func (h *Hub) deliver(runID string, data []byte) {
	for client := range h.clients[runID] {
		if !client.trySend(data) {
			h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.RunID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		client.close()
		if len(clients) == 0 {
			delete(h.clients, client.RunID)
		}
	}
}

// Register and Unregister do not block once Run has returned
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// NotifyStage broadcasts an entry snapshot after a stage transition
func (h *Hub) NotifyStage(runID string, entry model.RunLogEntry) {
	h.publish(runID, model.WSStageMessage{
		Type:  model.WSMessageTypeStage,
		RunID: runID,
		Entry: &entry,
	})
}

// RunCompleted broadcasts the tick summary
func (h *Hub) RunCompleted(run *model.PipelineRun) {
	h.publish(run.RunID, model.WSSummaryMessage{
		Type:        model.WSMessageTypeSummary,
		RunID:       run.RunID,
		Run:         run,
		SuccessRate: run.SuccessRate(),
	})
}

// publish never blocks the pipeline; a full queue drops the message
func (h *Hub) publish(runID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to marshal websocket message")
		return
	}
	select {
	case h.broadcast <- &BroadcastMessage{RunID: runID, Message: data}:
	default:
		h.log.Warn().Str("run_id", runID).Msg("websocket broadcast queue full, dropping message")
	}
}

// HandleConnection handles a WebSocket connection
func (h *Hub) HandleConnection(c *websocket.Conn, runID string) {
	if runID == "" {
		runID = AllRuns
	}
	client := &Client{
		RunID: runID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.Register(client)
	defer h.Unregister(client)

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Warn().Err(err).Msg("websocket error")
			}
			break
		}

		h.handleMessage(client, message)
	}
}

// handleMessage answers client pings; anything else is ignored
func (h *Hub) handleMessage(client *Client, message []byte) {
	var msg model.WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}
	if msg.Type == model.WSMessageTypePing {
		data, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
		client.trySend(data)
	}
}
