package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"community-energy/internal/api/models"
	"community-energy/internal/ledger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	streamWriteWait = 10 * time.Second
	streamBuffer    = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// BlockStream fans committed blocks out to websocket clients.
// Publish is meant to be registered as a ledger commit hook.
type BlockStream struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan models.BlockInfo
	logger  *zap.Logger
}

func NewBlockStream(logger *zap.Logger) *BlockStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlockStream{
		clients: make(map[*websocket.Conn]chan models.BlockInfo),
		logger:  logger,
	}
}

// Publish queues b for every client. Clients whose buffer is full are dropped.
func (s *BlockStream) Publish(b ledger.Block) {
	info := blockInfo(b)
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.clients {
		select {
		case ch <- info:
		default:
			s.logger.Warn("Dropping slow block stream client", zap.String("remote", conn.RemoteAddr().String()))
			s.removeLocked(conn)
		}
	}
}

// Clients returns the number of connected clients.
func (s *BlockStream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client.
func (s *BlockStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		s.removeLocked(conn)
	}
}

// ServeWS handles GET /ws/blocks
func (s *BlockStream) ServeWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}
	ch := make(chan models.BlockInfo, streamBuffer)
	s.mu.Lock()
	s.clients[conn] = ch
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(c.Request.Context())
	go s.readLoop(conn, cancel)
	s.writeLoop(ctx, conn, ch)
}

// readLoop discards client messages and notices when the peer goes away.
func (s *BlockStream) readLoop(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *BlockStream) writeLoop(ctx context.Context, conn *websocket.Conn, ch <-chan models.BlockInfo) {
	defer s.remove(conn)
	for {
		select {
		case <-ctx.Done():
			return
		case info, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(info); err != nil {
				return
			}
		}
	}
}

func (s *BlockStream) remove(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(conn)
}

func (s *BlockStream) removeLocked(conn *websocket.Conn) {
	ch, ok := s.clients[conn]
	if !ok {
		return
	}
	delete(s.clients, conn)
	close(ch)
	conn.Close()
}
