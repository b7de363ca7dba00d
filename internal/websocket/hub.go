package websocket

import (
	"encoding/json"

	"github.com/gorilla/websocket"

	"consult-platform/internal/models"
	"consult-platform/pkg/logger"
)

type Client struct {
	Hub       *Hub
	Conn      *websocket.Conn
	Send      chan []byte
	AccountID string
}

type push struct {
	AccountID string
	Payload   models.Notification
}

// Hub fans lifecycle notifications out to each account's live connection.
// Delivery is best effort: a slow or absent client just misses the push, the
// Notification record is already in the inbox.
type Hub struct {
	Clients    map[string]*Client
	Register   chan *Client
	Unregister chan *Client
	broadcast  chan push
}

func NewHub() *Hub {
	return &Hub{
		Clients:    make(map[string]*Client),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		broadcast:  make(chan push, 64),
	}
}

// Push implements messaging.Sink. Never blocks.
func (h *Hub) Push(accountID string, n models.Notification) {
	select {
	case h.broadcast <- push{AccountID: accountID, Payload: n}:
	default:
		logger.Warnf("websocket: broadcast queue full, dropping push for %s", accountID)
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.Clients[client.AccountID] = client
			logger.Infof("websocket: client registered for account %s", client.AccountID)

		case client := <-h.Unregister:
			if _, ok := h.Clients[client.AccountID]; ok {
				delete(h.Clients, client.AccountID)
				close(client.Send)
				logger.Infof("websocket: client unregistered for account %s", client.AccountID)
			}

		case p := <-h.broadcast:
			client, ok := h.Clients[p.AccountID]
			if !ok {
				continue
			}
			jsonData, err := json.Marshal(p.Payload)
			if err != nil {
				logger.Errorf("websocket: failed to marshal notification: %v", err)
				continue
			}
			select {
			case client.Send <- jsonData:
			default:
				close(client.Send)
				delete(h.Clients, client.AccountID)
			}
		}
	}
}
