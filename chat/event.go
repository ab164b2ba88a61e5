package chat

import (
	"time"

	"github.com/poiesic/docchat/core"
)

// EventKind tags the events of a streamed reply.
type EventKind string

const (
	// EventUser echoes the persisted user message. Always first.
	EventUser EventKind = "user"
	// EventFragment carries one piece of the agent's reply.
	EventFragment EventKind = "fragment"
	// EventDone carries the persisted agent message. Always last on success.
	EventDone EventKind = "done"
	// EventError ends a turn that produced no agent message.
	EventError EventKind = "error"
)

// Event is one element of a streamed reply.
type Event struct {
	Kind      EventKind
	Role      core.Role
	Content   string
	Message   *core.Message // set for EventUser and EventDone
	Err       error         // set for EventError
	Timestamp time.Time
}
