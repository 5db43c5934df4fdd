package turn

import (
	"errors"
	"fmt"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/pkg/logger"
)

// ErrIllegalTransition is returned for a transition the lifecycle forbids.
var ErrIllegalTransition = errors.New("illegal turn state transition")

// Lifecycle: idle -> connecting -> streaming <-> processing-tool -> completed,
// any live state -> error, completed|error -> idle.
var transitions = map[event.Status][]event.Status{
	event.StatusIdle:           {event.StatusConnecting, event.StatusError},
	event.StatusConnecting:     {event.StatusStreaming, event.StatusError},
	event.StatusStreaming:      {event.StatusProcessingTool, event.StatusCompleted, event.StatusError},
	event.StatusProcessingTool: {event.StatusStreaming, event.StatusCompleted, event.StatusError},
	event.StatusCompleted:      {event.StatusIdle},
	event.StatusError:          {event.StatusIdle},
}

// Transition records one state change.
type Transition struct {
	From event.Status
	To   event.Status
	At   time.Time
}

// StateMachine tracks the lifecycle of one turn. It is not safe for
// concurrent use; the owning Turn serializes access.
type StateMachine struct {
	turnID  string
	state   event.Status
	history []Transition
	now     func() time.Time
}

// NewStateMachine starts in idle.
func NewStateMachine(turnID string, now func() time.Time) *StateMachine {
	if now == nil {
		now = time.Now
	}
	return &StateMachine{turnID: turnID, state: event.StatusIdle, now: now}
}

// State returns the current state.
func (sm *StateMachine) State() event.Status {
	return sm.state
}

// CanTransition reports whether to is reachable from the current state.
func (sm *StateMachine) CanTransition(to event.Status) bool {
	for _, s := range transitions[sm.state] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves to the given state.
func (sm *StateMachine) TransitionTo(to event.Status) error {
	if !sm.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, sm.state, to)
	}
	t := Transition{From: sm.state, To: to, At: sm.now()}
	sm.history = append(sm.history, t)
	sm.state = to
	logger.DebugX(moduleName, "[TurnState] transition", "turn", sm.turnID, "from", t.From, "to", t.To)
	return nil
}

// History returns every transition taken, oldest first.
func (sm *StateMachine) History() []Transition {
	return append([]Transition(nil), sm.history...)
}
