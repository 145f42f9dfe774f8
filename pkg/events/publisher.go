package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/go-go-golems/damay/pkg/session"
)

const (
	MetadataSessionKey = "session_key"
	MetadataEventType  = "event_type"
)

// Envelope is the wire form of a session event.
type Envelope struct {
	ID         string        `json:"id"`
	SessionKey string        `json:"session_key"`
	Time       time.Time     `json:"time"`
	Event      session.Event `json:"event"`
}

// Publisher forwards session events to a watermill topic.
type Publisher struct {
	pub        message.Publisher
	topic      string
	sessionKey string
	now        func() time.Time
}

var _ session.EventSink = &Publisher{}

func NewPublisher(pub message.Publisher, topic, sessionKey string) (*Publisher, error) {
	if pub == nil {
		return nil, errors.New("event publisher: publisher is nil")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("event publisher: topic is empty")
	}
	return &Publisher{pub: pub, topic: topic, sessionKey: sessionKey, now: time.Now}, nil
}

func (p *Publisher) Emit(ctx context.Context, ev session.Event) error {
	env := Envelope{
		ID:         uuid.NewString(),
		SessionKey: p.sessionKey,
		Time:       p.now().UTC(),
		Event:      ev,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "marshal session event")
	}
	msg := message.NewMessage(env.ID, payload)
	msg.Metadata.Set(MetadataSessionKey, p.sessionKey)
	msg.Metadata.Set(MetadataEventType, string(ev.Type))
	msg.SetContext(ctx)
	if err := p.pub.Publish(p.topic, msg); err != nil {
		return errors.Wrapf(err, "publish session event to %s", p.topic)
	}
	return nil
}
