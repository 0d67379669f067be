package websocket

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/sirupsen/logrus"
)

// Message types exchanged over the collaboration socket.
const (
	TypeUpdate    = "update"
	TypeCursor    = "cursor"
	TypePresence  = "presence"
	TypeConnected = "connected"
)

// Envelope is the wire format in both directions. Data is opaque to the
// protocol; for updates it is the document content to persist.
type Envelope struct {
	Type       string          `json:"type"`
	DocumentID string          `json:"documentId"`
	UserID     string          `json:"userId"`
	Data       json.RawMessage `json:"data,omitempty"`
}

type errorMessage struct {
	Error string `json:"error"`
}

type connectedMessage struct {
	Type       string  `json:"type"`
	UserID     string  `json:"userId"`
	DocumentID *string `json:"documentId"`
}

func newConnectedMessage(userID, documentID string) connectedMessage {
	msg := connectedMessage{Type: TypeConnected, UserID: userID}
	if documentID != "" {
		msg.DocumentID = &documentID
	}
	return msg
}

// dispatch handles one inbound frame. Every failure is local to the sender:
// an in-band error reply, never a close and never a partial broadcast.
func (s *Server) dispatch(ctx context.Context, c *Conn, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		c.writeError("invalid message format", s.writeWait)
		return
	}

	switch env.Type {
	case TypeUpdate, TypeCursor, TypePresence:
	default:
		c.writeError("unknown message type", s.writeWait)
		return
	}

	if env.DocumentID == "" {
		c.writeError("documentId is required", s.writeWait)
		return
	}

	if bound := c.DocumentID(); bound != "" {
		if bound != env.DocumentID {
			c.writeError("document mismatch", s.writeWait)
			return
		}
	} else {
		// First message establishes the binding, access-checked. Cursor and
		// presence go through the same gate as updates.
		if err := s.bind(ctx, c, env.DocumentID); err != nil {
			if errors.Is(err, errAccessDenied) {
				c.writeError("access denied", s.writeWait)
			} else {
				logrus.WithFields(logrus.Fields{
					"user_id":     c.UserID(),
					"document_id": env.DocumentID,
					"error":       err,
				}).Error("Membership check failed")
				c.writeError("failed to verify document access", s.writeWait)
			}
			return
		}
	}

	// Attribution comes from the authenticated session, not the payload.
	env.UserID = c.UserID()

	switch env.Type {
	case TypeUpdate:
		if err := s.store.ApplyUpdate(ctx, env.DocumentID, env.UserID, env.Data); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id":     env.UserID,
				"document_id": env.DocumentID,
				"error":       err,
			}).Error("Failed to persist update")
			// Peers must never observe a state the store rejected.
			c.writeError("failed to save update", s.writeWait)
			return
		}
		s.broadcast(env.DocumentID, &env, c)
	case TypeCursor, TypePresence:
		s.broadcast(env.DocumentID, &env, c)
	}
}

// broadcast delivers the envelope to every other connection in the room.
// Delivery is at-most-once over a membership snapshot; a failed recipient is
// logged and skipped.
func (s *Server) broadcast(documentID string, env *Envelope, sender *Conn) {
	for _, peer := range s.registry.BroadcastTargets(documentID, sender) {
		if err := peer.writeJSON(env, s.writeWait); err != nil {
			logrus.WithFields(logrus.Fields{
				"document_id": documentID,
				"peer_id":     peer.UserID(),
				"error":       err,
			}).Warn("Failed to deliver message to peer")
		}
	}
}
