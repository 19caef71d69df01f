package party

// Event type discriminators.
const (
	EventState = "state"
	EventUsers = "users"
	EventQueue = "queue"
	EventError = "error"
)

// StateEvent is a playback snapshot computed at send time.
type StateEvent struct {
	Type        string  `json:"type"`
	CurrentTime float64 `json:"current_time"`
	Length      int     `json:"length"`
	Playing     bool    `json:"playing"`
	QueueIndex  int     `json:"queue_index"`
}

// UsersEvent lists the current members.
type UsersEvent struct {
	Type  string   `json:"type"`
	Count int      `json:"count"`
	Users []Member `json:"users"`
}

// QueueEvent is the full queue plus the play cursor.
type QueueEvent struct {
	Type  string  `json:"type"`
	Queue []Track `json:"queue"`
	Index int     `json:"index"`
}

// ErrorEvent is sent to a single connection when its request failed.
type ErrorEvent struct {
	Type    string `json:"type"`
	Error   Kind   `json:"error"`
	Message string `json:"message"`
}

// NewErrorEvent builds an error event.
func NewErrorEvent(kind Kind, message string) ErrorEvent {
	return ErrorEvent{Type: EventError, Error: kind, Message: message}
}
