package relay

// ErrorKind classifies recoverable relay errors. Authentication failures are
// not represented here: they reject the handshake before a connection exists.
type ErrorKind int

const (
	KindAuthorization ErrorKind = iota // insufficient permission
	KindNotFound                       // unknown worker or session id
	KindOffline                        // target worker has no live connection
	KindValidation                     // malformed or incomplete payload
	KindInternal                       // collaborator lookup failed
)

// EventError is surfaced to the originating connection as an in-band `error`
// event; the connection stays open.
type EventError struct {
	Kind    ErrorKind
	Message string
}

func (e *EventError) Error() string {
	return e.Message
}

func denied(msg string) *EventError {
	return &EventError{Kind: KindAuthorization, Message: msg}
}

func notFound(msg string) *EventError {
	return &EventError{Kind: KindNotFound, Message: msg}
}

func offline(msg string) *EventError {
	return &EventError{Kind: KindOffline, Message: msg}
}

func invalid(msg string) *EventError {
	return &EventError{Kind: KindValidation, Message: msg}
}

func internal(msg string) *EventError {
	return &EventError{Kind: KindInternal, Message: msg}
}
