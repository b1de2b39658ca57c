package coordinator

import "errors"

var (
	ErrUnknownEvent     = errors.New("unknown event")
	ErrMalformedPayload = errors.New("malformed event payload")
	ErrNotHost          = errors.New("only the host may perform this action")
	ErrWrongSessionKind = errors.New("event does not apply to this session kind")
	ErrSessionMismatch  = errors.New("payload session does not match connection session")
)
