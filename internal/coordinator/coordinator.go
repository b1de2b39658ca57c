package coordinator

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"classhub/internal/config"
	"classhub/internal/websocket"
	"classhub/pkg/interfaces"
	"classhub/pkg/types"
)

// storeTimeout bounds persistence calls made from event handlers.
const storeTimeout = 10 * time.Second

// Coordinator owns the live-session state: which connections belong to
// which session, whether a host stream is active, and the fan-out of
// signaling and chat events. All registry mutations happen through its
// handlers.
type Coordinator struct {
	registry *websocket.Registry
	messages interfaces.MessageStore
	audio    interfaces.AudioStore
	cfg      config.CoordinatorConfig
	log      *logrus.Entry

	mu          sync.Mutex
	graceTimers map[string]*time.Timer
}

// New creates a coordinator over the given registry and stores.
func New(registry *websocket.Registry, messages interfaces.MessageStore, audio interfaces.AudioStore, cfg config.CoordinatorConfig, log *logrus.Entry) *Coordinator {
	return &Coordinator{
		registry:    registry,
		messages:    messages,
		audio:       audio,
		cfg:         cfg,
		log:         log.WithField("component", "coordinator"),
		graceTimers: make(map[string]*time.Timer),
	}
}

// ConnectionAttached reacts to a freshly registered connection. Study
// group joins are announced to the other members; class joins are not,
// late joiners learn about the host via check-host-status instead. A
// returning host cancels any pending session-end countdown.
func (c *Coordinator) ConnectionAttached(conn interfaces.Connection) {
	sessionID := conn.GetSessionID()

	if conn.GetRole() == types.RoleHost {
		c.cancelSessionEnd(sessionID)
	}

	if conn.GetSessionKind() == types.SessionKindStudyGroup {
		c.broadcast(c.registry.OthersOf(sessionID, conn.GetID()), EventUserJoinedStudyGroup, PresencePayload{
			UserID:   conn.GetUserID(),
			UserName: conn.GetUserName(),
		})
	}
}

// ConnectionClosed removes a connection after its transport dropped and
// fans out the resulting presence and host-stream transitions.
func (c *Coordinator) ConnectionClosed(connID string) {
	result := c.registry.Detach(connID)
	if !result.Found {
		return
	}
	c.afterDetach(result)
}

// HandleEvent decodes an inbound frame and dispatches it.
func (c *Coordinator) HandleEvent(conn interfaces.Connection, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil || env.Event == "" {
		c.sendError(conn, "malformed event envelope")
		return
	}

	switch env.Event {
	case EventCheckHostStatus:
		c.handleCheckHostStatus(conn)
	case EventHostStreamStarted:
		c.handleHostStreamStarted(conn)
	case EventHostStreamStopped:
		c.handleHostStreamStopped(conn)
	case EventRequestOffer:
		c.handleRequestOffer(conn)
	case EventOffer, EventAnswer, EventICECandidate:
		c.handleSignal(conn, env.Event, env.Data)
	case EventSendMessage:
		c.handleSendMessage(conn, env.Data)
	case EventSendAudio:
		c.handleSendAudio(conn, env.Data)
	case EventStudyGroupMessage:
		c.handleStudyGroupMessage(conn, env.Data)
	case EventHostAudioState, EventHostVideoState:
		c.handleMediaState(conn, env.Event, env.Data)
	case EventLeaveClass, EventLeaveStudyGroup:
		c.handleLeave(conn)
	default:
		c.log.WithFields(logrus.Fields{
			"event":         env.Event,
			"connection_id": conn.GetID(),
		}).Warn("unknown event")
		c.sendError(conn, ErrUnknownEvent.Error()+": "+env.Event)
	}
}

// handleCheckHostStatus answers from current registry state. With an
// active stream the host is additionally prompted to re-emit its offer
// toward the requester.
func (c *Coordinator) handleCheckHostStatus(conn interfaces.Connection) {
	sessionID := conn.GetSessionID()
	active := c.registry.HostStreamActive(sessionID)

	c.send(conn, EventHostStatus, HostStatusPayload{IsHostActive: active})

	if active {
		c.promptHostOffer(conn)
	}
}

// handleRequestOffer asks the host to re-emit its offer toward the
// requester, without re-answering host status.
func (c *Coordinator) handleRequestOffer(conn interfaces.Connection) {
	if !c.registry.HostStreamActive(conn.GetSessionID()) {
		c.sendError(conn, "no active host stream")
		return
	}
	c.promptHostOffer(conn)
}

func (c *Coordinator) promptHostOffer(requester interfaces.Connection) {
	host, ok := c.registry.HostConnection(requester.GetSessionID())
	if !ok {
		return
	}
	c.send(host, EventOfferRequested, OfferRequestedPayload{
		RequesterID: requester.GetID(),
		UserID:      requester.GetUserID(),
		UserName:    requester.GetUserName(),
	})
}

func (c *Coordinator) handleHostStreamStarted(conn interfaces.Connection) {
	if conn.GetRole() != types.RoleHost {
		c.sendError(conn, ErrNotHost.Error())
		return
	}
	if !c.registry.StartHostStream(conn.GetSessionID(), conn.GetID()) {
		c.sendError(conn, "not the announced host for this session")
		return
	}

	c.log.WithFields(logrus.Fields{
		"session_id": conn.GetSessionID(),
		"user_id":    conn.GetUserID(),
	}).Info("host stream started")

	c.broadcast(c.registry.OthersOf(conn.GetSessionID(), conn.GetID()), EventHostStreamAvailable, nil)
}

func (c *Coordinator) handleHostStreamStopped(conn interfaces.Connection) {
	if !c.registry.StopHostStream(conn.GetSessionID(), conn.GetID()) {
		return
	}

	c.log.WithFields(logrus.Fields{
		"session_id": conn.GetSessionID(),
		"user_id":    conn.GetUserID(),
	}).Info("host stream stopped")

	c.broadcast(c.registry.OthersOf(conn.GetSessionID(), conn.GetID()), EventHostStreamEnded, nil)
}

// handleSignal fans an opaque signaling payload out to the other session
// members. Only the session id is inspected; sdp and candidate bodies
// pass through untouched.
func (c *Coordinator) handleSignal(conn interfaces.Connection, event string, data json.RawMessage) {
	if len(data) > 0 {
		var p SignalPayload
		if err := json.Unmarshal(data, &p); err != nil {
			c.sendError(conn, ErrMalformedPayload.Error())
			return
		}
		if p.SessionID != "" && p.SessionID != conn.GetSessionID() {
			c.sendError(conn, ErrSessionMismatch.Error())
			return
		}
	}

	others := c.registry.OthersOf(conn.GetSessionID(), conn.GetID())
	for _, member := range others {
		if err := member.WriteJSON(outbound{Event: event, Data: data}); err != nil {
			c.log.WithError(err).WithField("connection_id", member.GetID()).Debug("signal relay failed")
		}
	}
}

// handleSendMessage persists a text message and then fans it out to the
// whole session, sender included, so every member sees the canonical
// server-assigned id and timestamp.
func (c *Coordinator) handleSendMessage(conn interfaces.Connection, data json.RawMessage) {
	var p SendMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(conn, ErrMalformedPayload.Error())
		return
	}

	msg := &types.ChatMessage{
		SessionID:  conn.GetSessionID(),
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Content:    p.Content,
		Kind:       types.MessageKindText,
	}
	c.persistAndBroadcast(conn, msg)
}

// handleSendAudio stores the audio blob first so the persisted message
// carries a reference path instead of the raw bytes.
func (c *Coordinator) handleSendAudio(conn interfaces.Connection, data json.RawMessage) {
	var p SendAudioPayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(conn, ErrMalformedPayload.Error())
		return
	}
	if p.Data == "" {
		c.sendError(conn, "empty audio payload")
		return
	}

	path, err := c.audio.SaveAudio(p.Data, p.SenderID)
	if err != nil {
		c.log.WithError(err).Warn("failed to store audio blob")
		c.sendError(conn, "failed to store audio")
		return
	}

	msg := &types.ChatMessage{
		SessionID:  conn.GetSessionID(),
		SenderID:   p.SenderID,
		SenderName: p.SenderName,
		Content:    path,
		Kind:       types.MessageKindAudio,
	}
	c.persistAndBroadcast(conn, msg)
}

// persistAndBroadcast validates, saves, then notifies. A message that
// fails validation or persistence is never broadcast.
func (c *Coordinator) persistAndBroadcast(conn interfaces.Connection, msg *types.ChatMessage) {
	if err := msg.Validate(); err != nil {
		c.sendError(conn, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.messages.SaveMessage(ctx, msg); err != nil {
		c.log.WithError(err).WithField("session_id", msg.SessionID).Error("failed to save message")
		c.sendError(conn, "failed to save message")
		return
	}

	c.broadcast(c.registry.MembersOf(msg.SessionID), EventReceiveMessage, msg)
}

func (c *Coordinator) handleStudyGroupMessage(conn interfaces.Connection, data json.RawMessage) {
	if conn.GetSessionKind() != types.SessionKindStudyGroup {
		c.sendError(conn, ErrWrongSessionKind.Error())
		return
	}

	var p StudyGroupMessagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(conn, ErrMalformedPayload.Error())
		return
	}

	msg := &types.StudyGroupMessage{
		StudyGroupID: conn.GetSessionID(),
		SenderID:     p.SenderID,
		Content:      p.Content,
	}
	if err := msg.Validate(); err != nil {
		c.sendError(conn, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := c.messages.SaveStudyGroupMessage(ctx, msg); err != nil {
		c.log.WithError(err).WithField("study_group_id", msg.StudyGroupID).Error("failed to save study group message")
		c.sendError(conn, "failed to save message")
		return
	}

	c.broadcast(c.registry.MembersOf(conn.GetSessionID()), EventStudyGroupMessage, msg)
}

// handleMediaState relays the host's track on/off toggles to the other
// members under the same event name.
func (c *Coordinator) handleMediaState(conn interfaces.Connection, event string, data json.RawMessage) {
	if conn.GetRole() != types.RoleHost {
		c.sendError(conn, ErrNotHost.Error())
		return
	}

	var p MediaStatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		c.sendError(conn, ErrMalformedPayload.Error())
		return
	}

	c.broadcast(c.registry.OthersOf(conn.GetSessionID(), conn.GetID()), event, p)
}

// handleLeave is the explicit counterpart of a transport disconnect and
// shares its teardown path. Leaving twice is a no-op.
func (c *Coordinator) handleLeave(conn interfaces.Connection) {
	result := c.registry.Detach(conn.GetID())
	if result.Found {
		c.afterDetach(result)
	}
	conn.Close()
}

// afterDetach fans out the consequences of a removal computed by the
// registry. Host teardown notices go to the members that remained at the
// moment of detach.
func (c *Coordinator) afterDetach(result websocket.DetachResult) {
	conn := result.Conn
	sessionID := conn.GetSessionID()

	c.log.WithFields(logrus.Fields{
		"connection_id": conn.GetID(),
		"user_id":       conn.GetUserID(),
		"session_id":    sessionID,
		"was_host":      result.WasHost,
	}).Info("connection detached")

	if conn.GetSessionKind() == types.SessionKindStudyGroup {
		c.broadcast(result.Remaining, EventUserLeftStudyGroup, PresencePayload{
			UserID:   conn.GetUserID(),
			UserName: conn.GetUserName(),
		})
		return
	}

	if result.WasHost {
		if result.WasStreamActive {
			c.broadcast(result.Remaining, EventHostStreamEnded, nil)
		}
		c.scheduleSessionEnd(sessionID)
		return
	}

	c.broadcast(result.Remaining, EventUserLeft, PresencePayload{
		UserID:   conn.GetUserID(),
		UserName: conn.GetUserName(),
	})
}

// scheduleSessionEnd ends the session for the remaining members, either
// immediately or after the configured grace window. The countdown is
// abandoned if a host reconnects in time.
func (c *Coordinator) scheduleSessionEnd(sessionID string) {
	if c.cfg.HostGrace <= 0 {
		c.endSession(sessionID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.graceTimers[sessionID]; ok {
		t.Stop()
	}
	c.graceTimers[sessionID] = time.AfterFunc(c.cfg.HostGrace, func() {
		c.mu.Lock()
		delete(c.graceTimers, sessionID)
		c.mu.Unlock()

		if _, ok := c.registry.HostConnection(sessionID); ok {
			return
		}
		c.endSession(sessionID)
	})
}

func (c *Coordinator) cancelSessionEnd(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t, ok := c.graceTimers[sessionID]; ok {
		t.Stop()
		delete(c.graceTimers, sessionID)
	}
}

func (c *Coordinator) endSession(sessionID string) {
	members := c.registry.MembersOf(sessionID)
	if len(members) == 0 {
		return
	}

	c.log.WithField("session_id", sessionID).Info("session ended")
	c.broadcast(members, EventClassEnded, nil)
}

// Shutdown stops pending grace timers.
func (c *Coordinator) Shutdown() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for sessionID, t := range c.graceTimers {
		t.Stop()
		delete(c.graceTimers, sessionID)
	}
}

func (c *Coordinator) send(conn interfaces.Connection, event string, data interface{}) {
	if err := conn.WriteJSON(outbound{Event: event, Data: data}); err != nil {
		c.log.WithError(err).WithField("connection_id", conn.GetID()).Debug("send failed")
	}
}

func (c *Coordinator) sendError(conn interfaces.Connection, message string) {
	c.send(conn, EventError, ErrorPayload{Message: message})
}

func (c *Coordinator) broadcast(members []interfaces.Connection, event string, data interface{}) {
	for _, member := range members {
		c.send(member, event, data)
	}
}

var _ websocket.EventSink = (*Coordinator)(nil)
