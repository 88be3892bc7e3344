// Package wsapi is the websocket transport subscribers use to receive
// alert events as they are raised (spec.md §4.5's broadcast fan-out, the
// "external subscribers" named in SPEC_FULL §1/§6). Grounded on the
// teacher's main.go Client type and serveWS handler: one struct holding the
// connection and a bounded send channel, a reader goroutine enforcing a
// read deadline/pong handler, and a writer goroutine pumping the send
// channel plus a ping ticker. Auth is adapted from websocket_auth.go's
// authenticator-interface shape, backed by internal/auth's JWT verifier
// instead of the teacher's HMAC parser.
package wsapi

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/fleetalert/engine/internal/auth"
	"github.com/fleetalert/engine/internal/broadcast"
	"github.com/fleetalert/engine/internal/logging"
	"github.com/fleetalert/engine/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = pongWait * 9 / 10
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Verifier authenticates the bearer token on an incoming connection request.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Server upgrades subscriber connections and registers each one with a
// broadcast.Registry so it receives every event the dispatcher raises.
type Server struct {
	registry *broadcast.Registry
	verifier Verifier
	logger   *logging.Logger
}

// NewServer constructs a subscriber transport over registry. verifier may
// be nil, in which case every connection is accepted unauthenticated — the
// teacher's allowAllAuthenticator fallback, used only for local dev.
func NewServer(registry *broadcast.Registry, verifier Verifier, logger *logging.Logger) *Server {
	return &Server{registry: registry, verifier: verifier, logger: logger}
}

// ServeHTTP upgrades the request to a websocket, authenticates it, registers
// a send handle with the broadcast registry, and pumps events to the client
// until it disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subject, err := s.authenticate(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.warnf("websocket upgrade failed: %v", err)
		return
	}

	connID := uuid.NewString()
	client := newClient(conn, subject)
	closed := make(chan struct{})
	id := s.registry.Add(broadcast.Handle{Events: client.send, Closed: closed})
	if s.logger != nil {
		s.logger.Info("websocket subscriber connected",
			logging.String("conn_id", connID),
			logging.String("subject", subject),
			logging.Int64("registry_id", int64(id)),
		)
	}

	go s.writePump(client, closed)
	s.readPump(client, id, closed)
}

func (s *Server) authenticate(r *http.Request) (string, error) {
	if s.verifier == nil {
		return "", nil
	}
	token := bearerToken(r)
	claims, err := s.verifier.Verify(token)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func bearerToken(r *http.Request) string {
	if header := strings.TrimSpace(r.Header.Get("Authorization")); header != "" {
		const prefix = "Bearer "
		if strings.HasPrefix(header, prefix) {
			return strings.TrimSpace(header[len(prefix):])
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("auth_token"))
}

type client struct {
	conn *websocket.Conn
	send chan model.Event
}

func newClient(conn *websocket.Conn, subject string) *client {
	return &client{conn: conn, send: make(chan model.Event, sendBufferSize)}
}

// readPump enforces the read deadline/pong-handler keepalive and blocks
// until the connection closes, at which point it deregisters the client
// and signals the writer to stop.
func (s *Server) readPump(c *client, id uint64, closed chan struct{}) {
	defer func() {
		s.registry.Remove(id)
		close(closed)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				s.warnf("websocket read deadline exceeded: %v", err)
			} else if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.warnf("websocket read error: %v", err)
			}
			return
		}
		// Subscribers are push-only; any inbound frame is discarded once it
		// has refreshed the read deadline above.
	}
}

// writePump pumps events and periodic pings to the client until closed
// fires or a write fails.
func (s *Server) writePump(c *client, closed chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case evt := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(evt); err != nil {
				s.warnf("websocket write error: %v", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) warnf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warnf(format, args...)
	}
}
