package dashboard

import "time"

// Level is the severity of a notification.
type Level int

// Notification levels.
const (
	LevelInfo Level = iota
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	if l == LevelError {
		return "error"
	}
	return "info"
}

// Notification is one user-facing message.
type Notification struct {
	Level   Level
	Message string
	Time    time.Time
}

// Notifier receives user-facing notifications. It is called synchronously
// and must not block.
type Notifier func(Notification)

// notify logs msg and forwards it to the notifier.
func (c *Controller) notify(level Level, msg string) {
	if level == LevelError {
		c.logger.Warn("notification", "message", msg)
	} else {
		c.logger.Info("notification", "message", msg)
	}

	c.hookMu.RLock()
	n := c.notifier
	c.hookMu.RUnlock()
	if n != nil {
		n(Notification{Level: level, Message: msg, Time: time.Now()})
	}
}
