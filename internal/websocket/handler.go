package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"classhub/internal/auth"
	"classhub/internal/config"
	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

// EventSink consumes connection lifecycle transitions and inbound
// events. The coordinator implements it.
type EventSink interface {
	// ConnectionAttached is called once after a connection has been
	// registered.
	ConnectionAttached(conn interfaces.Connection)

	// HandleEvent is called for every inbound text frame.
	HandleEvent(conn interfaces.Connection, data []byte)

	// ConnectionClosed is called once after the read pump exits, before
	// the socket is torn down.
	ConnectionClosed(connID string)
}

// HostVerifier confirms that a user is the host of record for a class.
type HostVerifier interface {
	VerifyHost(ctx context.Context, classID, userID string) error
}

// Handler upgrades authenticated HTTP requests to websocket connections
// and runs their read pumps.
type Handler struct {
	registry *Registry
	sink     EventSink
	verifier *auth.Verifier
	hosts    HostVerifier
	cfg      config.WebSocketConfig
	log      *logrus.Entry

	upgrader websocket.Upgrader
}

// NewHandler creates a websocket handler.
func NewHandler(registry *Registry, sink EventSink, verifier *auth.Verifier, hosts HostVerifier, cfg config.WebSocketConfig, log *logrus.Entry) *Handler {
	return &Handler{
		registry: registry,
		sink:     sink,
		verifier: verifier,
		hosts:    hosts,
		cfg:      cfg,
		log:      log.WithField("component", "websocket"),
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			CheckOrigin:      func(r *http.Request) bool { return true },
		},
	}
}

// ServeWS handles GET /ws. The handshake carries a token plus exactly
// one of class_id or study_group_id; host role is only granted to an
// admin token belonging to the class host of record.
func (h *Handler) ServeWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}

	claims, err := h.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	classID := c.Query("class_id")
	groupID := c.Query("study_group_id")
	if (classID == "") == (groupID == "") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exactly one of class_id or study_group_id is required"})
		return
	}

	sessionID := classID
	sessionKind := types.SessionKindClass
	if groupID != "" {
		sessionID = groupID
		sessionKind = types.SessionKindStudyGroup
	}
	if !types.IsValidID(sessionID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	role := types.RoleParticipant
	if c.Query("role") == types.RoleHost {
		if sessionKind != types.SessionKindClass {
			c.JSON(http.StatusBadRequest, gin.H{"error": "host role only applies to classes"})
			return
		}
		if !claims.IsAdmin {
			c.JSON(http.StatusForbidden, gin.H{"error": "host role requires an admin token"})
			return
		}
		if err := h.hosts.VerifyHost(c.Request.Context(), classID, claims.UserID()); err != nil {
			if errors.Is(err, interfaces.ErrClassNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "class not found"})
			} else {
				c.JSON(http.StatusForbidden, gin.H{"error": "not the host of this class"})
			}
			return
		}
		role = types.RoleHost
	}

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	conn := NewConnection(uuid.New().String(), ws, Identity{
		UserID:      claims.UserID(),
		UserName:    claims.Name,
		SessionID:   sessionID,
		SessionKind: sessionKind,
		Role:        role,
	})

	if err := h.registry.Attach(conn); err != nil {
		h.log.WithError(err).Error("failed to register connection")
		conn.Close()
		return
	}

	h.log.WithFields(logrus.Fields{
		"connection_id": conn.GetID(),
		"user_id":       conn.GetUserID(),
		"session_id":    sessionID,
		"session_kind":  sessionKind,
		"role":          role,
	}).Info("connection established")

	h.sink.ConnectionAttached(conn)

	go h.readPump(conn, ws)
}

// readPump reads frames until the peer goes away, feeding each text
// frame to the sink. It owns connection teardown.
func (h *Handler) readPump(conn *Connection, ws *websocket.Conn) {
	defer func() {
		h.sink.ConnectionClosed(conn.GetID())
		conn.Close()
	}()

	ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
		return nil
	})

	go h.pingLoop(conn)

	for {
		messageType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.WithError(err).WithField("connection_id", conn.GetID()).Debug("connection closed unexpectedly")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.sink.HandleEvent(conn, data)
	}
}

// pingLoop keeps the connection alive until its context is cancelled.
func (h *Handler) pingLoop(conn *Connection) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := conn.ping(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
				conn.Close()
				return
			}
		case <-conn.Context().Done():
			return
		}
	}
}
