package websocket

import (
	"time"

	"github.com/sirupsen/logrus"
)

// watchLiveness probes the peer on a fixed interval. A connection that has
// not answered since the previous probe is terminated; so is one whose probe
// cannot be sent. Termination always unbinds the connection from its room.
func (s *Server) watchLiveness(c *Conn) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if !c.consumeAlive() {
				logrus.WithField("user_id", c.UserID()).Info("Terminating unresponsive connection")
				s.teardown(c)
				return
			}
			if err := c.ping(s.writeWait); err != nil {
				logrus.WithFields(logrus.Fields{
					"user_id": c.UserID(),
					"error":   err,
				}).Debug("Heartbeat probe failed")
				s.teardown(c)
				return
			}
		}
	}
}
