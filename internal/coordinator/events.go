package coordinator

import "encoding/json"

// Client-emitted event names.
const (
	EventCheckHostStatus   = "check-host-status"
	EventHostStreamStarted = "host-stream-started"
	EventHostStreamStopped = "host-stream-stopped"
	EventRequestOffer      = "request-offer"
	EventOffer             = "offer"
	EventAnswer            = "answer"
	EventICECandidate      = "ice-candidate"
	EventSendMessage       = "send_message"
	EventSendAudio         = "send_audio"
	EventStudyGroupMessage = "study_group_message"
	EventHostAudioState    = "host_audio_state"
	EventHostVideoState    = "host_video_state"
	EventLeaveClass        = "leave_class"
	EventLeaveStudyGroup   = "leave_study_group"
)

// Server-emitted event names.
const (
	EventHostStatus           = "host-status"
	EventHostStreamAvailable  = "host-stream-available"
	EventHostStreamEnded      = "host-stream-ended"
	EventOfferRequested       = "offer-requested"
	EventClassEnded           = "class_ended"
	EventUserLeft             = "user_left"
	EventUserJoinedStudyGroup = "user_joined_study_group"
	EventUserLeftStudyGroup   = "user_left_study_group"
	EventReceiveMessage       = "receive_message"
	EventError                = "error"
)

// Envelope is the wire frame for inbound events. The payload stays raw
// until the event name selects a concrete type.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outbound is the wire frame for server-emitted events.
type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// SignalPayload is the decoded slice of a signaling payload. Everything
// beyond the session id is relayed opaque.
type SignalPayload struct {
	SessionID string `json:"session_id,omitempty"`
}

// SendMessagePayload is a text chat submission.
type SendMessagePayload struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Content    string `json:"content"`
}

// SendAudioPayload is an audio chat submission. Data carries the encoded
// blob, optionally with a data-URL prefix.
type SendAudioPayload struct {
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Data       string `json:"data"`
}

// StudyGroupMessagePayload is a study-group chat submission.
type StudyGroupMessagePayload struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// MediaStatePayload toggles the host's audio or video track state.
type MediaStatePayload struct {
	Enabled bool `json:"enabled"`
}

// HostStatusPayload answers a check-host-status query.
type HostStatusPayload struct {
	IsHostActive bool `json:"is_host_active"`
}

// OfferRequestedPayload prompts the host to re-emit its offer toward a
// late joiner.
type OfferRequestedPayload struct {
	RequesterID string `json:"requester_id"`
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
}

// PresencePayload identifies a participant in join/leave notices.
type PresencePayload struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// ErrorPayload carries an error message back to the sender.
type ErrorPayload struct {
	Message string `json:"message"`
}
