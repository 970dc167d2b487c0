package natsadapter

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
)

// PushMessage is delivered to a user's notification subject.
type PushMessage struct {
	UserID string    `json:"user_id"`
	Title  string    `json:"title"`
	Body   string    `json:"body"`
	SentAt time.Time `json:"sent_at"`
}

// Notifier implements ports.NotificationService by publishing to a
// per-user subject that websocket clients subscribe to.
type Notifier struct {
	conn *nats.Conn
	now  func() time.Time
}

// NewNotifier creates a Notifier on an existing connection.
func NewNotifier(conn *nats.Conn) *Notifier {
	return &Notifier{conn: conn, now: time.Now}
}

// SendPush publishes the message and flushes so delivery errors surface.
func (n *Notifier) SendPush(ctx context.Context, userID, title, body string) error {
	if err := checkToken("user", userID); err != nil {
		return err
	}
	data, err := json.Marshal(PushMessage{UserID: userID, Title: title, Body: body, SentAt: n.now()})
	if err != nil {
		return err
	}
	if err := n.conn.Publish(NotifySubject(userID), data); err != nil {
		return err
	}
	return n.conn.FlushWithContext(ctx)
}
