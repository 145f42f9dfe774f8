package events

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// HandlerFunc processes one decoded envelope. Returning an error nacks the
// message.
type HandlerFunc func(ctx context.Context, env Envelope) error

// Consume subscribes to topic and calls fn for every event until ctx is done
// or the subscription is closed. Undecodable messages are logged and acked.
func Consume(ctx context.Context, sub message.Subscriber, topic string, fn HandlerFunc) error {
	if sub == nil {
		return errors.New("consume session events: subscriber is nil")
	}
	msgs, err := sub.Subscribe(ctx, topic)
	if err != nil {
		return errors.Wrapf(err, "subscribe to %s", topic)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			env, err := Decode(msg)
			if err != nil {
				log.Warn().Err(err).Str("id", msg.UUID).Msg("dropping malformed session event")
				msg.Ack()
				continue
			}
			if err := fn(ctx, env); err != nil {
				log.Debug().Err(err).Str("id", msg.UUID).Msg("session event handler failed")
				msg.Nack()
				continue
			}
			msg.Ack()
		}
	}
}

// Decode parses the payload of a published session event.
func Decode(msg *message.Message) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(msg.Payload, &env); err != nil {
		return Envelope{}, errors.Wrap(err, "decode session event")
	}
	if env.ID == "" {
		env.ID = msg.UUID
	}
	if env.SessionKey == "" {
		env.SessionKey = msg.Metadata.Get(MetadataSessionKey)
	}
	return env, nil
}
