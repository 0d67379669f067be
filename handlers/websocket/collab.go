package websocket

import (
	"collab-server/core"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	defaultPingInterval = 30 * time.Second
	defaultWriteWait    = 10 * time.Second
	maxMessageSize      = 5000000
)

var errAccessDenied = errors.New("access denied")

// Server upgrades authenticated requests into live collaboration sessions
// and fans document traffic out to room peers.
type Server struct {
	store     core.DocumentStore
	validator core.TokenValidator
	registry  *Registry

	// pingInterval is overridable so tests can run the liveness loop fast.
	pingInterval time.Duration
	writeWait    time.Duration

	upgrader websocket.Upgrader
}

func NewServer(store core.DocumentStore, validator core.TokenValidator, registry *Registry) *Server {
	return &Server{
		store:        store,
		validator:    validator,
		registry:     registry,
		pingInterval: defaultPingInterval,
		writeWait:    defaultWriteWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// ServeHTTP is the collaboration handshake: verify the upgrade request,
// authenticate the token, optionally bind to the requested document, then
// hand the socket to the liveness loop and the read loop.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}

	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusUnauthorized)
		return
	}

	userID, err := s.validator.Validate(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	documentID := r.URL.Query().Get("documentId")

	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response.
		logrus.WithError(err).Debug("Websocket upgrade failed")
		return
	}

	c := newConn(sock, userID)
	log := logrus.WithField("user_id", userID)

	if documentID != "" {
		if err := s.bind(context.Background(), c, documentID); err != nil {
			if errors.Is(err, errAccessDenied) {
				log.WithField("document_id", documentID).Warn("Document access denied at handshake")
				c.writeError("access denied", s.writeWait)
				c.closeWithCode(websocket.ClosePolicyViolation, "access denied", s.writeWait)
			} else {
				log.WithError(err).Error("Failed to verify document access at handshake")
				c.closeWithCode(websocket.CloseInternalServerErr, "internal error", s.writeWait)
			}
			return
		}
	}

	if err := c.writeJSON(newConnectedMessage(userID, documentID), s.writeWait); err != nil {
		log.WithError(err).Warn("Failed to send connected ack")
		s.teardown(c)
		return
	}

	log.WithField("document_id", documentID).Info("Collaboration session established")

	go s.watchLiveness(c)
	s.readLoop(c)
}

// bind runs the membership check and registers the connection with its room.
func (s *Server) bind(ctx context.Context, c *Conn, documentID string) error {
	ok, err := s.store.IsMember(ctx, documentID, c.UserID())
	if err != nil {
		return err
	}
	if !ok {
		return errAccessDenied
	}
	c.setDocument(documentID)
	s.registry.Bind(documentID, c)
	return nil
}

func (s *Server) readLoop(c *Conn) {
	defer s.teardown(c)

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetPongHandler(func(string) error {
		c.markAlive()
		return nil
	})

	for {
		_, frame, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithFields(logrus.Fields{
					"user_id": c.UserID(),
					"error":   err,
				}).Debug("Connection read failed")
			}
			return
		}
		s.dispatch(context.Background(), c, frame)
	}
}

// teardown removes the connection from its room and closes the socket.
// Idempotent: the read loop and the liveness loop may both reach it.
func (s *Server) teardown(c *Conn) {
	s.registry.Unbind(c)
	c.terminate()
}
