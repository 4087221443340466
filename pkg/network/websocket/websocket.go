package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/questrover/relay/pkg/com"
	"github.com/questrover/relay/pkg/logger"
)

const (
	maxMessageSize = 10 * 1024
	pingTime       = pongTime * 9 / 10
	pongTime       = 60 * time.Second
	writeWait      = 10 * time.Second
)

type WS struct {
	id   com.Uid
	conn deadlinedConn
	send chan []byte
	log  *logger.Logger

	OnMessage WSMessageHandler

	closed   bool
	mu       sync.Mutex
	shutdown *sync.WaitGroup
	Done     chan struct{}
}

type WSMessageHandler func(message []byte, err error)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	WriteBufferPool: &sync.Pool{},
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewServer upgrades an incoming HTTP request to a websocket peer.
func NewServer(w http.ResponseWriter, r *http.Request, log *logger.Logger) (*WS, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newSocket(conn, log), nil
}

func newSocket(conn *websocket.Conn, log *logger.Logger) *WS {
	shut := sync.WaitGroup{}
	shut.Add(2)

	ws := &WS{
		id:       com.NewUid(),
		conn:     deadlinedConn{sock: conn, wt: writeWait},
		send:     make(chan []byte, 256),
		log:      log,
		shutdown: &shut,
		Done:     make(chan struct{}, 1),
	}
	return ws
}

func (ws *WS) Id() com.Uid { return ws.id }

// Listen starts the reader and writer pumps.
// The OnMessage handler must be set before the call.
func (ws *WS) Listen() {
	go ws.writer()
	go ws.reader()
}

// reader pumps messages from the websocket connection to the OnMessage callback.
// Blocking, must be called as goroutine. Serializes all websocket reads.
func (ws *WS) reader() {
	defer func() {
		ws.mu.Lock()
		ws.closed = true
		close(ws.send)
		ws.mu.Unlock()
		ws.shutdown.Done()
		ws.close()
	}()
	ws.conn.setup(func(conn *websocket.Conn) {
		conn.SetReadLimit(maxMessageSize)
		_ = conn.SetReadDeadline(time.Now().Add(pongTime))
		conn.SetPongHandler(func(string) error { _ = conn.SetReadDeadline(time.Now().Add(pongTime)); return nil })
	})
	for {
		message, err := ws.conn.read()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ws.log.Debug().Str("cid", ws.id.Short()).Err(err).Msg("ws read")
			}
			break
		}
		ws.OnMessage(message, err)
	}
}

// writer pumps messages from the send channel to the websocket connection.
// Blocking, must be called as goroutine. Serializes all websocket writes.
func (ws *WS) writer() {
	ticker := time.NewTicker(pingTime)
	defer func() {
		ticker.Stop()
		ws.shutdown.Done()
		ws.close()
	}()
	for {
		select {
		case message, ok := <-ws.send:
			if !ok {
				_ = ws.conn.write(websocket.CloseMessage, []byte{})
				return
			}
			if err := ws.conn.write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.conn.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Write queues a message for the writer pump.
// Messages sent after the connection closed are dropped.
func (ws *WS) Write(data []byte) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return
	}
	select {
	case ws.send <- data:
	default:
		ws.log.Warn().Str("cid", ws.id.Short()).Msg("send queue overflow, message dropped")
	}
}

// Close sends a normal closure frame to the peer.
func (ws *WS) Close() { ws.CloseWithReason(websocket.CloseNormalClosure, "") }

// CloseWithReason sends a closure frame with the given code and reason text.
// The read pump unwinds when the peer responds or the connection drops.
func (ws *WS) CloseWithReason(code int, reason string) {
	_ = ws.conn.write(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

func (ws *WS) close() {
	ws.shutdown.Wait()
	_ = ws.conn.close()
	ws.Done <- struct{}{}
}
