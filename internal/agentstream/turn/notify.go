package turn

import (
	"errors"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a user-visible report of an engine error.
type Notification struct {
	Kind    errno.Kind
	Level   Level
	Title   string
	Message string
	Code    string
	TurnID  string
	At      time.Time
	Err     error
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

type nopNotifier struct{}

func (nopNotifier) Notify(Notification) {}

var titles = map[errno.Kind]string{
	errno.KindConnection:    "Connection lost",
	errno.KindProtocol:      "Unreadable event",
	errno.KindToolExecution: "Tool failed",
	errno.KindPersistence:   "Could not save",
}

// NotificationFor classifies err. Tool failures are warnings because the
// turn continues; everything else is an error.
func NotificationFor(turnID string, err error) Notification {
	n := Notification{Level: LevelError, Message: err.Error(), TurnID: turnID, At: time.Now(), Err: err}
	var se *errno.StreamError
	if errors.As(err, &se) {
		n.Kind = se.Kind
		n.Code = se.Code
		n.Message = se.Message
		if se.Err != nil {
			n.Message += ": " + se.Err.Error()
		}
	}
	if n.Kind == errno.KindToolExecution {
		n.Level = LevelWarning
	}
	n.Title = titles[n.Kind]
	if n.Title == "" {
		n.Title = "Error"
	}
	return n
}
