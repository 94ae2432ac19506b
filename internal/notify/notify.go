package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Message describes a lifecycle event worth telling someone about.
type Message struct {
	RequestID string
	Event     string
	Summary   string
}

// Sender delivers notifications. Implementations are fire-and-forget
// collaborators: a failed send is logged and dropped, never retried, and
// never affects the committed transition that triggered it.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender is the default sender: it writes the notification to the
// structured log. A real email/SMS provider slots in behind the same
// interface.
type LogSender struct {
	Log *logrus.Logger
}

func (s LogSender) Send(_ context.Context, m Message) error {
	s.Log.WithFields(logrus.Fields{
		"requestId": m.RequestID,
		"event":     m.Event,
	}).Info(m.Summary)
	return nil
}

// Async sends m on a fresh goroutine after the caller's transaction has
// committed. The send gets its own deadline so a slow provider cannot hold
// the request handler's context alive.
func Async(s Sender, log *logrus.Logger, m Message) {
	if s == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Send(ctx, m); err != nil {
			log.WithFields(logrus.Fields{
				"requestId": m.RequestID,
				"event":     m.Event,
			}).WithError(err).Warn("notification send failed")
		}
	}()
}
