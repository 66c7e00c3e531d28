// Package gateway fans broadcast events out to websocket viewers. It
// subscribes to the auction event subjects and relays every envelope to the
// connections watching that auction.
package gateway

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ConnectionManager tracks websocket connections per auction.
type ConnectionManager struct {
	mu          sync.RWMutex
	connections map[uuid.UUID]map[*Connection]bool
	upgrader    websocket.Upgrader
	config      ConnectionConfig
	relayCh     chan relayMessage
}

// Connection is one viewer's websocket.
type Connection struct {
	ID        string
	AuctionID uuid.UUID
	Conn      *websocket.Conn
	Send      chan []byte
	manager   *ConnectionManager
}

// ConnectionConfig holds websocket tuning knobs.
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

type relayMessage struct {
	auctionID uuid.UUID
	data      []byte
}

func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  1024,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		relayCh: make(chan relayMessage, 1000),
	}
}

// Start processes relay messages until the context is cancelled.
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case msg := <-cm.relayCh:
			cm.relay(msg)
		}
	}
}

// Upgrade turns an HTTP request into a websocket viewer connection for the
// auction.
func (cm *ConnectionManager) Upgrade(w http.ResponseWriter, r *http.Request, auctionID uuid.UUID) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &Connection{
		ID:        uuid.New().String(),
		AuctionID: auctionID,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		manager:   cm,
	}
	cm.register(c)
	go c.writePump()
	go c.readPump()

	log.Info().
		Str("connection_id", c.ID).
		Str("auction_id", auctionID.String()).
		Msg("viewer connected")
	return nil
}

// Relay queues raw envelope bytes for every viewer of the auction. Drops the
// message when the relay buffer is full.
func (cm *ConnectionManager) Relay(auctionID uuid.UUID, data []byte) {
	select {
	case cm.relayCh <- relayMessage{auctionID: auctionID, data: data}:
	default:
		log.Warn().Str("auction_id", auctionID.String()).Msg("relay channel full, dropping message")
	}
}

// ViewerCount returns the number of connected viewers for the auction.
func (cm *ConnectionManager) ViewerCount(auctionID uuid.UUID) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections[auctionID])
}

func (cm *ConnectionManager) register(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.connections[c.AuctionID] == nil {
		cm.connections[c.AuctionID] = make(map[*Connection]bool)
	}
	cm.connections[c.AuctionID][c] = true
}

func (cm *ConnectionManager) unregister(c *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	conns, ok := cm.connections[c.AuctionID]
	if !ok {
		return
	}
	if _, ok := conns[c]; !ok {
		return
	}
	delete(conns, c)
	close(c.Send)
	if len(conns) == 0 {
		delete(cm.connections, c.AuctionID)
	}
	log.Debug().
		Str("connection_id", c.ID).
		Str("auction_id", c.AuctionID.String()).
		Msg("viewer disconnected")
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for id, conns := range cm.connections {
		for c := range conns {
			close(c.Send)
			c.Conn.Close()
		}
		delete(cm.connections, id)
	}
}

func (cm *ConnectionManager) relay(msg relayMessage) {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections[msg.auctionID]))
	for c := range cm.connections[msg.auctionID] {
		conns = append(conns, c)
	}
	cm.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.Send <- msg.data:
		default:
			// Slow consumer; drop the connection rather than the auction.
			log.Warn().Str("connection_id", c.ID).Msg("send buffer full, closing viewer")
			cm.unregister(c)
			c.Conn.Close()
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.manager.unregister(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pongs and close frames are processed.
// Viewers are read-only; inbound payloads are ignored.
func (c *Connection) readPump() {
	defer func() {
		c.manager.unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Str("connection_id", c.ID).Msg("unexpected websocket close")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.manager.config.ReadTimeout))
	}
}
